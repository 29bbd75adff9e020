package asset

import "context"

// RegistrationRequest is what the registration service needs to record a
// work on chain.
type RegistrationRequest struct {
	Name            string      `json:"name"`
	Description     string      `json:"description"`
	MediaURL        string      `json:"media_url,omitempty"`
	ContentHash     string      `json:"content_hash,omitempty"`
	Attributes      []Attribute `json:"attributes"`
	IPMetadataURI   string      `json:"ip_metadata_uri,omitempty"`
	IPMetadataHash  string      `json:"ip_metadata_hash,omitempty"`
	NFTMetadataURI  string      `json:"nft_metadata_uri,omitempty"`
	NFTMetadataHash string      `json:"nft_metadata_hash,omitempty"`
}

// Registration is a successful registration.
type Registration struct {
	IPID  string `json:"ip_id"`
	TxRef string `json:"tx_hash"`
	Mock  bool   `json:"mock,omitempty"`
}

// DisputeRequest raises a dispute against infringing content.
type DisputeRequest struct {
	IPID       string  `json:"ip_id"`
	Platform   string  `json:"platform"`
	URL        string  `json:"url"`
	Similarity float64 `json:"similarity"`
	Content    string  `json:"content"`
	Evidence   string  `json:"evidence"`
}

// Dispute is the dispute service's answer. Degraded marks a locally
// synthesised id used when the service failed.
type Dispute struct {
	DisputeID string `json:"dispute_id"`
	TxRef     string `json:"tx_hash"`
	Mock      bool   `json:"mock,omitempty"`
	Degraded  bool   `json:"degraded,omitempty"`
}

// Ledger is the on-chain registration and dispute service.
type Ledger interface {
	Register(ctx context.Context, req RegistrationRequest) (*Registration, error)
	CreateDispute(ctx context.Context, req DisputeRequest) (*Dispute, error)
}

// MetadataStore publishes metadata documents and returns their public URI.
type MetadataStore interface {
	PutMetadata(ctx context.Context, key string, doc []byte) (string, error)
}
