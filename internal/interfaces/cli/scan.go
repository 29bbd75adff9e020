package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/ZINKUNO/MyIPWhispererBot/internal/application/monitoring"
	"github.com/ZINKUNO/MyIPWhispererBot/internal/domain/asset"
	"github.com/ZINKUNO/MyIPWhispererBot/pkg/errors"
)

type scanOptions struct {
	name        string
	description string
	keywords    []string
	source      string
	threshold   float64
	registry    bool
}

// ScanOutput is the result of an ad-hoc scan.
type ScanOutput struct {
	Query      map[asset.Source]string `json:"queries"`
	Threshold  float64                 `json:"threshold"`
	Violations []asset.ViolationRecord `json:"violations"`
}

// NewScanCmd scans the configured sources for copies of a described work, or
// with --registry runs one scheduler tick over every registered asset.
func NewScanCmd() *cobra.Command {
	opts := &scanOptions{}

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Search content sources for copies of a work",
		Example: `  whisperer scan --name "Sigma Remix" --description "bass heavy remix" --keywords dj,synth
  whisperer scan --name "Sigma Remix" --source social -o json
  whisperer scan --registry`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.registry {
				return runRegistryTick(cmd)
			}
			return runScan(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.name, "name", "", "name of the work")
	f.StringVar(&opts.description, "description", "", "description of the work")
	f.StringSliceVar(&opts.keywords, "keywords", nil, "extra keywords for the social query")
	f.StringVar(&opts.source, "source", "", "scan a single source (web, social, archive)")
	f.Float64Var(&opts.threshold, "threshold", 0, "override the configured similarity threshold")
	f.BoolVar(&opts.registry, "registry", false, "run one monitoring tick over the registry instead")
	return cmd
}

func runScan(cmd *cobra.Command, opts *scanOptions) error {
	if strings.TrimSpace(opts.name) == "" {
		return errors.InvalidParam("--name is required")
	}
	if opts.threshold < 0 || opts.threshold > 1 {
		return errors.InvalidParam(fmt.Sprintf("threshold %.2f outside [0,1]", opts.threshold))
	}
	cc, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}

	infra, err := openInfrastructure(cc.Config, cc.Logger)
	if err != nil {
		return err
	}
	defer infra.Close()

	mon := infra.BuildMonitoring()
	if opts.threshold > 0 {
		mon.Aggregator.SetThreshold(opts.threshold)
	}

	ip := &asset.IPAsset{
		ID:          "adhoc",
		OwnerID:     "cli",
		Name:        opts.name,
		Description: opts.description,
		Keywords:    opts.keywords,
	}

	ctx, cancel := commandContext(cmd, cc)
	defer cancel()

	out := ScanOutput{Query: map[asset.Source]string{}, Threshold: mon.Aggregator.Threshold()}
	if opts.source != "" {
		name := asset.Source(strings.ToLower(opts.source))
		out.Query[name] = asset.QueryFor(name, ip)
		out.Violations, err = mon.Aggregator.ScanSource(ctx, ip, name)
		if err != nil {
			return err
		}
	} else {
		for _, name := range mon.Aggregator.Sources() {
			out.Query[name] = asset.QueryFor(name, ip)
		}
		out.Violations = mon.Aggregator.ScanAll(ctx, ip)
	}
	if out.Violations == nil {
		out.Violations = []asset.ViolationRecord{}
	}

	if cc.OutputFormat == "json" {
		return printJSON(cmd.OutOrStdout(), out)
	}
	printViolations(cmd.OutOrStdout(), out)
	return nil
}

func runRegistryTick(cmd *cobra.Command) error {
	cc, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}
	infra, err := openInfrastructure(cc.Config, cc.Logger)
	if err != nil {
		return err
	}
	defer infra.Close()

	ctx, cancel := commandContext(cmd, cc)
	defer cancel()

	report := infra.BuildMonitoring().Scheduler.RunOnce(ctx)
	if cc.OutputFormat == "json" {
		return printJSON(cmd.OutOrStdout(), report)
	}
	printTickReport(cmd.OutOrStdout(), report)
	return nil
}

func printViolations(w io.Writer, out ScanOutput) {
	if len(out.Violations) == 0 {
		fmt.Fprintf(w, "%s no content at or above %.0f%% similarity\n",
			color.GreenString("Clean:"), out.Threshold*100)
		return
	}
	fmt.Fprintf(w, "%s %d possible copies\n", color.RedString("Found:"), len(out.Violations))

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Similarity", "Platform", "Engagement", "URL"})
	table.SetAutoWrapText(false)
	for _, v := range out.Violations {
		table.Append([]string{
			fmt.Sprintf("%d%%", v.SimilarityPercent()),
			v.Platform,
			fmt.Sprintf("%d", v.Engagement),
			v.URL,
		})
	}
	table.Render()
}

func printTickReport(w io.Writer, r monitoring.TickReport) {
	if r.Skipped {
		fmt.Fprintln(w, color.YellowString("Tick skipped: another replica holds the scheduler lock"))
		return
	}
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Assets", "Failures", "Violations", "Duration"})
	table.Append([]string{
		fmt.Sprintf("%d", r.Assets),
		fmt.Sprintf("%d", r.Failures),
		fmt.Sprintf("%d", r.Violations),
		r.Duration.Round(time.Millisecond).String(),
	})
	table.Render()
}
