//go:build integration

package repositories_test

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/ZINKUNO/MyIPWhispererBot/internal/domain/asset"
	"github.com/ZINKUNO/MyIPWhispererBot/internal/infrastructure/database/postgres"
	"github.com/ZINKUNO/MyIPWhispererBot/internal/infrastructure/database/postgres/repositories"
	"github.com/ZINKUNO/MyIPWhispererBot/internal/infrastructure/monitoring/logging"
)

// startPostgres launches a PostgreSQL 16 container with the schema applied.
func startPostgres(t *testing.T) *postgres.Connection {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "test",
				"POSTGRES_PASSWORD": "test",
				"POSTGRES_DB":       "whisperer_test",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)
	portNum, err := strconv.Atoi(port.Port())
	require.NoError(t, err)

	log := logging.NewNopLogger()
	conn, err := postgres.NewConnection(postgres.PostgresConfig{
		Host: host, Port: portNum, Database: "whisperer_test", Username: "test", Password: "test",
	}, log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	require.NoError(t, postgres.RunMigrations(conn.DB(), log))
	return conn
}

func TestMigrations_StatusAndRollback(t *testing.T) {
	conn := startPostgres(t)

	version, dirty, err := postgres.MigrationStatus(conn.DB())
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)
	assert.False(t, dirty)

	require.NoError(t, postgres.RollbackMigration(conn.DB(), 1))
	version, _, err = postgres.MigrationStatus(conn.DB())
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)

	require.NoError(t, postgres.RunMigrations(conn.DB(), logging.NewNopLogger()))
}

func TestAssetRepo_RoundTrip(t *testing.T) {
	conn := startPostgres(t)
	repo := repositories.NewPostgresAssetRepo(conn, logging.NewNopLogger())
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	a := &asset.IPAsset{
		ID: "0xMOCK_IP_1", OwnerID: "u1", Name: "Sigma Music", Description: "Epic remix",
		Keywords: []string{"sigma"}, License: asset.LicenseCommercial, RegisteredAt: now,
	}
	b := &asset.IPAsset{ID: "0xMOCK_IP_2", OwnerID: "u1", Name: "Beta", License: asset.LicenseCustom, RegisteredAt: now}
	require.NoError(t, repo.Save(ctx, a))
	require.NoError(t, repo.Save(ctx, b))

	first := []asset.ViolationRecord{{Source: asset.SourceWeb, Platform: "Web", Content: "c1", URL: "https://1", Similarity: 0.9, DiscoveredAt: now}}
	second := []asset.ViolationRecord{{Source: asset.SourceSocial, Platform: "Twitter", Content: "c2", URL: "https://2", Similarity: 0.8, Engagement: 5, DiscoveredAt: now}}
	require.NoError(t, repo.AppendViolations(ctx, a.ID, first))
	require.NoError(t, repo.AppendViolations(ctx, a.ID, second))

	got, err := repo.FindByID(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, got.PendingViolations, 2)
	assert.Equal(t, "c1", got.PendingViolations[0].Content)
	assert.Equal(t, int64(5), got.PendingViolations[1].Engagement)
	assert.Equal(t, []string{"sigma"}, got.Keywords)

	owned, err := repo.FindByOwner(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, owned, 2)
	assert.Equal(t, a.ID, owned[0].ID)

	require.NoError(t, repo.ClearViolations(ctx, a.ID))
	got, err = repo.FindByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Empty(t, got.PendingViolations)

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}
