package asset

import (
	"strings"
	"time"
	"unicode/utf8"
)

// Candidate is a raw search hit before it is scored.
type Candidate struct {
	Content     string    `json:"content"`
	URL         string    `json:"url"`
	Engagement  int64     `json:"engagement"`
	ImageURL    string    `json:"image_url,omitempty"`
	Author      string    `json:"author,omitempty"`
	PublishedAt time.Time `json:"published_at,omitempty"`
}

const (
	webDescriptionLimit = 50
	socialTermLimit     = 5
	socialMinTermLength = 3
)

// WebQuery quotes the asset name and appends the first 50 runes of the
// description.
func WebQuery(a *IPAsset) string {
	desc := strings.TrimSpace(a.Description)
	if utf8.RuneCountInString(desc) > webDescriptionLimit {
		desc = strings.TrimSpace(string([]rune(desc)[:webDescriptionLimit]))
	}
	q := `"` + strings.TrimSpace(a.Name) + `"`
	if desc != "" {
		q += " " + desc
	}
	return q
}

// SocialQuery ORs together the first five words longer than two runes taken
// from the name, then the description, then the keywords.
func SocialQuery(a *IPAsset) string {
	words := strings.Fields(a.Name)
	words = append(words, strings.Fields(a.Description)...)
	words = append(words, a.Keywords...)

	terms := make([]string, 0, socialTermLimit)
	for _, w := range words {
		if utf8.RuneCountInString(w) < socialMinTermLength {
			continue
		}
		terms = append(terms, w)
		if len(terms) == socialTermLimit {
			break
		}
	}
	return strings.Join(terms, " OR ")
}

// ArchiveQuery is the full reference text.
func ArchiveQuery(a *IPAsset) string {
	return strings.TrimSpace(a.ReferenceText())
}

// QueryFor builds the query of the given source.
func QueryFor(source Source, a *IPAsset) string {
	switch source {
	case SourceWeb:
		return WebQuery(a)
	case SourceSocial:
		return SocialQuery(a)
	default:
		return ArchiveQuery(a)
	}
}
