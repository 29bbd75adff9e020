package asset

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildMetadata(t *testing.T) {
	d := Draft{
		Name:        "Sigma Music Remix",
		Description: "Epic electronic music remix",
		Category:    "Music",
		Creator:     "DJ Sigma",
		MediaURL:    "https://cdn.example/cover.png",
		Tags:        []string{"edm", "remix"},
		License:     LicenseNonCommercial,
	}

	b, err := BuildMetadata(d)
	require.NoError(t, err)

	assert.Equal(t, "Sigma Music Remix", b.IP.Title)
	require.Len(t, b.IP.Creators, 1)
	assert.Equal(t, "DJ Sigma", b.IP.Creators[0].Name)
	assert.Equal(t, 100, b.IP.Creators[0].ContributionPercent)
	assert.Contains(t, b.IP.Attributes, Attribute{Key: "Source", Value: "IP Whisperer Agent"})
	assert.Contains(t, b.IP.Attributes, Attribute{Key: "License", Value: "Non-Commercial"})
	assert.NotContains(t, b.NFT.Attributes, Attribute{Key: "Source", Value: "IP Whisperer Agent"})
	assert.Len(t, b.NFT.Attributes, 4)

	var decoded IPMetadata
	require.NoError(t, json.Unmarshal(b.IPJSON, &decoded))
	assert.Equal(t, b.IP, decoded)

	assert.True(t, strings.HasPrefix(b.IPHash, "0x"))
	assert.Len(t, b.IPHash, 66)
	assert.Equal(t, Digest(b.IPJSON), b.IPHash)
	assert.NotEqual(t, b.IPHash, b.NFTHash)
}

func TestBuildMetadata_Defaults(t *testing.T) {
	b, err := BuildMetadata(Draft{Name: "Untitled"})
	require.NoError(t, err)

	assert.Equal(t, "Unknown", b.IP.Creators[0].Name)
	assert.Equal(t, "IP Asset registered via IP Whisperer", b.IP.Description)
	assert.Contains(t, b.NFT.Attributes, Attribute{Key: "License", Value: "Commercial"})
}

func TestDigest_Deterministic(t *testing.T) {
	assert.Equal(t, Digest([]byte("abc")), Digest([]byte("abc")))
	assert.Equal(t, "0xba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", Digest([]byte("abc")))
}
