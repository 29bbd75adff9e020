package ledger

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZINKUNO/MyIPWhispererBot/internal/domain/asset"
	"github.com/ZINKUNO/MyIPWhispererBot/pkg/errors"
)

type recordingMetrics struct {
	mu    sync.Mutex
	calls map[string][]error
}

func (m *recordingMetrics) ObserveLedgerCall(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.calls == nil {
		m.calls = make(map[string][]error)
	}
	m.calls[op] = append(m.calls[op], err)
}

func TestNewClient_RequiresEndpointOutsideMockMode(t *testing.T) {
	_, err := NewClient(Config{}, nil, nil)
	require.Error(t, err)
	assert.True(t, errors.IsNotConfigured(err))

	c, err := NewClient(Config{MockMode: true}, nil, nil)
	require.NoError(t, err)
	assert.True(t, c.MockMode())
}

func TestRegister_MockModeIssuesDistinctIDs(t *testing.T) {
	metrics := &recordingMetrics{}
	c, err := NewClient(Config{MockMode: true}, metrics, nil)
	require.NoError(t, err)
	fixed := time.UnixMilli(1700000000000)
	c.now = func() time.Time { return fixed }

	a, err := c.Register(context.Background(), asset.RegistrationRequest{Name: "Song"})
	require.NoError(t, err)
	b, err := c.Register(context.Background(), asset.RegistrationRequest{Name: "Song 2"})
	require.NoError(t, err)

	assert.Equal(t, "0xMOCK_IP_1700000000000", a.IPID)
	assert.Equal(t, "0xMOCK_TX_1700000000000", a.TxRef)
	assert.True(t, a.Mock)
	assert.Equal(t, "0xMOCK_IP_1700000000001", b.IPID)
	assert.Len(t, metrics.calls[opRegister], 2)
}

func TestRegister_RejectsEmptyName(t *testing.T) {
	c, err := NewClient(Config{MockMode: true}, nil, nil)
	require.NoError(t, err)

	_, err = c.Register(context.Background(), asset.RegistrationRequest{Name: " "})
	assert.True(t, errors.IsValidation(err))
}

func TestRegister_PostsToGateway(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/ip-assets", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"ip_id":"0xabc","tx_hash":"0xdef"}`))
	}))
	defer srv.Close()

	metrics := &recordingMetrics{}
	c, err := NewClient(Config{Endpoint: srv.URL + "/", APIKey: "secret"}, metrics, nil)
	require.NoError(t, err)

	reg, err := c.Register(context.Background(), asset.RegistrationRequest{
		Name:          "Song",
		Description:   "a song",
		IPMetadataURI: "http://minio/ip.json",
	})
	require.NoError(t, err)
	assert.Equal(t, "0xabc", reg.IPID)
	assert.Equal(t, "0xdef", reg.TxRef)
	assert.False(t, reg.Mock)

	assert.Equal(t, "Song", got["name"])
	assert.Equal(t, "http://minio/ip.json", got["ip_metadata_uri"])
	assert.Equal(t, defaultNetwork, got["network"])
	require.Len(t, metrics.calls[opRegister], 1)
	assert.NoError(t, metrics.calls[opRegister][0])
}

func TestRegister_GatewayErrorIsClassified(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "insufficient funds", http.StatusInternalServerError)
	}))
	defer srv.Close()

	metrics := &recordingMetrics{}
	c, err := NewClient(Config{Endpoint: srv.URL}, metrics, nil)
	require.NoError(t, err)

	_, err = c.Register(context.Background(), asset.RegistrationRequest{Name: "Song"})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeRegistrationFailed))
	assert.True(t, errors.IsCode(err, errors.ErrCodeExternalService))
	assert.True(t, strings.Contains(err.Error(), "insufficient funds"))
	assert.Error(t, metrics.calls[opRegister][0])
}

func TestRegister_MissingIPIDFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"tx_hash":"0xdef"}`))
	}))
	defer srv.Close()

	c, err := NewClient(Config{Endpoint: srv.URL}, nil, nil)
	require.NoError(t, err)

	_, err = c.Register(context.Background(), asset.RegistrationRequest{Name: "Song"})
	assert.True(t, errors.IsCode(err, errors.ErrCodeRegistrationFailed))
}

func TestCreateDispute_MockMode(t *testing.T) {
	c, err := NewClient(Config{MockMode: true}, nil, nil)
	require.NoError(t, err)

	d, err := c.CreateDispute(context.Background(), asset.DisputeRequest{IPID: "0x1", URL: "https://x"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(d.DisputeID, "0xMOCK_DISPUTE_"))
	assert.True(t, strings.HasPrefix(d.TxRef, "0xMOCK_TX_"))
	assert.True(t, d.Mock)
	assert.False(t, d.Degraded)
}

func TestCreateDispute_SendsDisputeTerms(t *testing.T) {
	var got disputeBody
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/disputes", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"dispute_id":"42","tx_hash":"0xfeed"}`))
	}))
	defer srv.Close()

	c, err := NewClient(Config{Endpoint: srv.URL, Network: "mainnet"}, nil, nil)
	require.NoError(t, err)

	d, err := c.CreateDispute(context.Background(), asset.DisputeRequest{
		IPID:       "0x1",
		Platform:   "Twitter",
		URL:        "https://twitter.com/a/status/1",
		Similarity: 0.92,
	})
	require.NoError(t, err)
	assert.Equal(t, "42", d.DisputeID)
	assert.Equal(t, "0xfeed", d.TxRef)

	assert.Equal(t, "0x1", got.TargetIPID)
	assert.Equal(t, DisputeTargetTag, got.TargetTag)
	assert.Equal(t, DisputeBondWei, got.BondWei)
	assert.Equal(t, DisputeLiveness, got.Liveness)
	assert.Equal(t, "mainnet", got.Network)
	assert.InDelta(t, 0.92, got.Similarity, 1e-9)
}

func TestCreateDispute_UnauthorizedMapsCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c, err := NewClient(Config{Endpoint: srv.URL}, nil, nil)
	require.NoError(t, err)

	_, err = c.CreateDispute(context.Background(), asset.DisputeRequest{IPID: "0x1"})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeDisputeFailed))
	assert.True(t, errors.IsCode(err, errors.ErrCodeUnauthorized))
}

func TestCreateDispute_RequiresIPID(t *testing.T) {
	c, err := NewClient(Config{MockMode: true}, nil, nil)
	require.NoError(t, err)
	_, err = c.CreateDispute(context.Background(), asset.DisputeRequest{})
	assert.True(t, errors.IsValidation(err))
}
