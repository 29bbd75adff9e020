package asset

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Creator is an entry in the metadata creators list.
type Creator struct {
	Name                string `json:"name"`
	Address             string `json:"address,omitempty"`
	Description         string `json:"description,omitempty"`
	ContributionPercent int    `json:"contributionPercent"`
}

// Attribute is a key/value pair attached to metadata.
type Attribute struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// IPMetadata is the document describing the work itself.
type IPMetadata struct {
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Image       string      `json:"image,omitempty"`
	ImageHash   string      `json:"imageHash,omitempty"`
	MediaURL    string      `json:"mediaUrl,omitempty"`
	MediaHash   string      `json:"mediaHash,omitempty"`
	MediaType   string      `json:"mediaType"`
	Creators    []Creator   `json:"creators"`
	Attributes  []Attribute `json:"attributes"`
}

// NFTMetadata is the document describing the ownership token.
type NFTMetadata struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Image       string      `json:"image,omitempty"`
	Attributes  []Attribute `json:"attributes"`
}

// MetadataBundle holds both documents with their encodings and digests.
type MetadataBundle struct {
	IP      IPMetadata
	NFT     NFTMetadata
	IPJSON  []byte
	NFTJSON []byte
	IPHash  string
	NFTHash string
}

// BuildMetadata assembles the registration documents for a draft and hashes
// their JSON encodings with SHA-256 ("0x" prefixed hex).
func BuildMetadata(d Draft) (*MetadataBundle, error) {
	attrs := make([]Attribute, 0, len(d.Tags)+3)
	if d.Category != "" {
		attrs = append(attrs, Attribute{Key: "Category", Value: d.Category})
	}
	for _, tag := range d.Tags {
		attrs = append(attrs, Attribute{Key: "Tag", Value: tag})
	}
	license := d.License
	if license == "" {
		license = LicenseCommercial
	}
	attrs = append(attrs, Attribute{Key: "License", Value: string(license)})

	creator := d.Creator
	if creator == "" {
		creator = "Unknown"
	}
	description := d.Description
	if description == "" {
		description = "IP Asset registered via IP Whisperer"
	}

	ip := IPMetadata{
		Title:       d.Name,
		Description: description,
		Image:       d.MediaURL,
		MediaURL:    d.MediaURL,
		MediaType:   "image/png",
		Creators: []Creator{{
			Name:                creator,
			Description:         "IP Whisperer User",
			ContributionPercent: 100,
		}},
		Attributes: append(append([]Attribute{}, attrs...), Attribute{Key: "Source", Value: "IP Whisperer Agent"}),
	}
	nft := NFTMetadata{
		Name:        d.Name,
		Description: description,
		Image:       d.MediaURL,
		Attributes:  attrs,
	}

	ipJSON, err := json.Marshal(ip)
	if err != nil {
		return nil, fmt.Errorf("marshal ip metadata: %w", err)
	}
	nftJSON, err := json.Marshal(nft)
	if err != nil {
		return nil, fmt.Errorf("marshal nft metadata: %w", err)
	}

	return &MetadataBundle{
		IP:      ip,
		NFT:     nft,
		IPJSON:  ipJSON,
		NFTJSON: nftJSON,
		IPHash:  Digest(ipJSON),
		NFTHash: Digest(nftJSON),
	}, nil
}

// Digest returns the "0x" prefixed SHA-256 hex digest of data.
func Digest(data []byte) string {
	sum := sha256.Sum256(data)
	return "0x" + hex.EncodeToString(sum[:])
}
