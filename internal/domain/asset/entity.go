package asset

import (
	"strings"
	"time"

	"github.com/ZINKUNO/MyIPWhispererBot/pkg/errors"
)

// License is the usage terms chosen at registration.
type License string

const (
	LicenseCommercial    License = "Commercial"
	LicenseNonCommercial License = "Non-Commercial"
	LicenseNoDerivatives License = "No-Derivatives"
	LicenseCustom        License = "Custom"
)

// LicenseFromChoice maps the menu answers "1".."4" to a License. Anything
// else yields LicenseCommercial.
func LicenseFromChoice(choice string) License {
	switch strings.TrimSpace(choice) {
	case "2":
		return LicenseNonCommercial
	case "3":
		return LicenseNoDerivatives
	case "4":
		return LicenseCustom
	default:
		return LicenseCommercial
	}
}

// Source names a content source. Platform is the label shown to users.
type Source string

const (
	SourceWeb     Source = "web"
	SourceSocial  Source = "social"
	SourceArchive Source = "archive"
)

// Platform returns the user-facing label of the source.
func (s Source) Platform() string {
	switch s {
	case SourceWeb:
		return "Web"
	case SourceSocial:
		return "Twitter"
	case SourceArchive:
		return "Archive"
	default:
		return string(s)
	}
}

// ViolationRecord is one piece of external content that scored at or above
// the similarity threshold. Records are values and never mutated.
type ViolationRecord struct {
	Source       Source    `json:"source"`
	Platform     string    `json:"platform"`
	Content      string    `json:"content"`
	URL          string    `json:"url"`
	Similarity   float64   `json:"similarity"`
	Engagement   int64     `json:"engagement"`
	ImageURL     string    `json:"image_url,omitempty"`
	Author       string    `json:"author,omitempty"`
	PublishedAt  time.Time `json:"published_at,omitempty"`
	DiscoveredAt time.Time `json:"discovered_at"`
}

// SimilarityPercent renders Similarity as a whole percentage.
func (v ViolationRecord) SimilarityPercent() int {
	return int(v.Similarity*100 + 0.5)
}

// IPAsset is a registered work under monitoring.
type IPAsset struct {
	ID           string    `json:"ip_id"`
	OwnerID      string    `json:"owner_id"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	Category     string    `json:"category,omitempty"`
	Creator      string    `json:"creator,omitempty"`
	MediaURL     string    `json:"media_url,omitempty"`
	ContentHash  string    `json:"content_hash,omitempty"`
	Keywords     []string  `json:"keywords,omitempty"`
	License      License   `json:"license"`
	TxRef        string    `json:"tx_ref,omitempty"`
	MetadataURI  string    `json:"metadata_uri,omitempty"`
	RegisteredAt time.Time `json:"registered_at"`

	PendingViolations []ViolationRecord `json:"pending_violations"`
}

// ReferenceText is the text every candidate is scored against.
func (a *IPAsset) ReferenceText() string {
	return a.Name + " " + a.Description
}

// Validate checks the fields the registry relies on.
func (a *IPAsset) Validate() error {
	if a == nil {
		return errors.New(errors.ErrCodeAssetInvalid, "asset is nil")
	}
	if strings.TrimSpace(a.ID) == "" {
		return errors.New(errors.ErrCodeAssetInvalid, "ip id cannot be empty")
	}
	if strings.TrimSpace(a.OwnerID) == "" {
		return errors.New(errors.ErrCodeAssetInvalid, "owner id cannot be empty")
	}
	if strings.TrimSpace(a.Name) == "" {
		return errors.New(errors.ErrCodeAssetInvalid, "name cannot be empty")
	}
	return nil
}

// Clone returns a deep copy so callers cannot mutate registry state.
func (a *IPAsset) Clone() *IPAsset {
	if a == nil {
		return nil
	}
	c := *a
	if a.Keywords != nil {
		c.Keywords = append([]string(nil), a.Keywords...)
	}
	c.PendingViolations = append([]ViolationRecord(nil), a.PendingViolations...)
	return &c
}

// Draft is the partially collected description of a work during chat intake.
type Draft struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Creator     string   `json:"creator"`
	MediaURL    string   `json:"media_url,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	License     License  `json:"license"`
}

// ParseTags splits a comma separated answer, trimming entries and dropping
// empty ones. "skip" in any case yields nil.
func ParseTags(input string) []string {
	if strings.EqualFold(strings.TrimSpace(input), "skip") {
		return nil
	}
	var tags []string
	for _, part := range strings.Split(input, ",") {
		if t := strings.TrimSpace(part); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// ParseMedia returns "" for "skip" in any case, otherwise the trimmed input.
func ParseMedia(input string) string {
	trimmed := strings.TrimSpace(input)
	if strings.EqualFold(trimmed, "skip") {
		return ""
	}
	return trimmed
}
