package cli

import (
	"fmt"
	"io"
	"sort"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/ZINKUNO/MyIPWhispererBot/internal/domain/similarity"
	"github.com/ZINKUNO/MyIPWhispererBot/pkg/errors"
)

type similarityOptions struct {
	reference string
	candidate string
	threshold float64
	explain   bool
}

// TermWeight is one row of the --explain breakdown.
type TermWeight struct {
	Term      string  `json:"term"`
	Reference float64 `json:"reference"`
	Candidate float64 `json:"candidate"`
}

// SimilarityOutput is the result of the similarity command.
type SimilarityOutput struct {
	Score     float64      `json:"score"`
	Threshold float64      `json:"threshold"`
	Match     bool         `json:"match"`
	Terms     []TermWeight `json:"terms,omitempty"`
}

// NewSimilarityCmd scores two texts the way the scanner does.
func NewSimilarityCmd() *cobra.Command {
	opts := &similarityOptions{}

	cmd := &cobra.Command{
		Use:   "similarity [reference] [candidate]",
		Short: "Score the TF-IDF cosine similarity of two texts",
		Example: `  whisperer similarity "Sigma Remix bass heavy" "bass heavy sigma remix"
  whisperer similarity --reference "..." --candidate "..." --explain -o json`,
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				opts.reference = args[0]
			}
			if len(args) > 1 {
				opts.candidate = args[1]
			}
			return runSimilarity(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.reference, "reference", "", "reference text")
	cmd.Flags().StringVar(&opts.candidate, "candidate", "", "candidate text")
	cmd.Flags().Float64Var(&opts.threshold, "threshold", 0.80, "match threshold in [0,1]")
	cmd.Flags().BoolVar(&opts.explain, "explain", false, "print the per-term weights")
	return cmd
}

func runSimilarity(cmd *cobra.Command, opts *similarityOptions) error {
	if opts.reference == "" || opts.candidate == "" {
		return errors.InvalidParam("both reference and candidate text are required")
	}
	if opts.threshold < 0 || opts.threshold > 1 {
		return errors.InvalidParam(fmt.Sprintf("threshold %.2f outside [0,1]", opts.threshold))
	}

	scorer := similarity.NewScorer(nil)
	refVec, candVec := scorer.Vectorize(opts.reference, opts.candidate)
	score := similarity.Cosine(refVec, candVec)

	out := SimilarityOutput{
		Score:     score,
		Threshold: opts.threshold,
		Match:     score >= opts.threshold,
	}
	if opts.explain {
		out.Terms = termWeights(refVec, candVec)
	}

	format := "table"
	if cc, err := GetCLIContext(cmd); err == nil {
		format = cc.OutputFormat
	}
	if format == "json" {
		return printJSON(cmd.OutOrStdout(), out)
	}
	printSimilarity(cmd.OutOrStdout(), out)
	return nil
}

// termWeights merges both vectors, shared terms first, then by combined
// weight.
func termWeights(ref, cand similarity.TermVector) []TermWeight {
	seen := make(map[string]bool, len(ref)+len(cand))
	var rows []TermWeight
	for _, vec := range []similarity.TermVector{ref, cand} {
		for _, t := range vec.Terms() {
			if seen[t] {
				continue
			}
			seen[t] = true
			rows = append(rows, TermWeight{Term: t, Reference: ref[t], Candidate: cand[t]})
		}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		si := rows[i].Reference > 0 && rows[i].Candidate > 0
		sj := rows[j].Reference > 0 && rows[j].Candidate > 0
		if si != sj {
			return si
		}
		return rows[i].Reference+rows[i].Candidate > rows[j].Reference+rows[j].Candidate
	})
	return rows
}

func printSimilarity(w io.Writer, out SimilarityOutput) {
	verdict := color.YellowString("NO MATCH")
	if out.Match {
		verdict = color.RedString("MATCH")
	}
	fmt.Fprintf(w, "Similarity: %.4f (threshold %.2f) %s\n", out.Score, out.Threshold, verdict)
	if len(out.Terms) == 0 {
		return
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Term", "Reference", "Candidate"})
	table.SetBorder(false)
	for _, tw := range out.Terms {
		table.Append([]string{tw.Term, weight(tw.Reference), weight(tw.Candidate)})
	}
	table.Render()
}

func weight(v float64) string {
	if v == 0 {
		return "-"
	}
	return fmt.Sprintf("%.3f", v)
}
