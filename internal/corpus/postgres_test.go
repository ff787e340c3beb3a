//-------------------------------------------------------------------------
//
// pgEdge RAG Assistant
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package corpus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/pgEdge/pgedge-rag-assistant/internal/config"
	"github.com/pgEdge/pgedge-rag-assistant/internal/llm/mock"
)

func TestBuildConnectionString(t *testing.T) {
	t.Setenv("PGUSER", "")
	t.Setenv("USER", "fallback")

	tests := []struct {
		name string
		cfg  config.DatabaseConfig
		want string
	}{
		{
			name: "url wins",
			cfg:  config.DatabaseConfig{URL: "postgres://u@h/db", Host: "ignored"},
			want: "postgres://u@h/db",
		},
		{
			name: "fields",
			cfg: config.DatabaseConfig{
				Host: "localhost", Port: 5432, Database: "rag",
				Username: "app", Password: "secret", SSLMode: "disable",
			},
			want: "host=localhost port=5432 dbname=rag user=app password=secret sslmode=disable",
		},
		{
			name: "user from environment",
			cfg:  config.DatabaseConfig{Host: "db", Port: 5433, Database: "rag"},
			want: "host=db port=5433 dbname=rag user=fallback",
		},
		{
			name: "certificates",
			cfg: config.DatabaseConfig{
				Host: "db", Port: 5432, Database: "rag", Username: "app",
				SSLCert: "/c.pem", SSLKey: "/k.pem", SSLRootCA: "/ca.pem",
			},
			want: "host=db port=5432 dbname=rag user=app sslcert=/c.pem sslkey=/k.pem sslrootcert=/ca.pem",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, buildConnectionString(tt.cfg))
		})
	}
}

func startPGStore(t *testing.T) *PGStore {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	container, err := postgres.Run(ctx, "pgvector/pgvector:pg17",
		postgres.WithDatabase("rag"),
		postgres.WithUsername("rag"),
		postgres.WithPassword("rag"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	url, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	store, err := NewPGStore(ctx, PGStoreConfig{
		Database: config.DatabaseConfig{URL: url},
		Table:    "test_chunks",
		Embedder: mock.NewEmbeddingProvider(64),
	})
	require.NoError(t, err)
	t.Cleanup(store.Close)
	return store
}

func TestPGStore_RoundTrip(t *testing.T) {
	store := startPGStore(t)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, makeChunks(120, "f1"), 50))
	require.NoError(t, store.Insert(ctx, []Chunk{{
		Content:  "项目预算为500000元",
		Metadata: map[string]any{MetaSource: "budget.txt", MetaFileID: "f2"},
	}}, 50))

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 121, n)

	docs, err := store.VectorSearch(ctx, "项目预算", 1)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "budget.txt", docs[0].String(MetaSource))

	docs, err = store.LexicalSearch(ctx, "项目的金额是多少", 3)
	require.NoError(t, err)
	require.NotEmpty(t, docs)
	assert.Equal(t, "项目预算为500000元", docs[0].Content)

	docs[0].Metadata[MetaSource] = "mutated.txt"
	again, err := store.LexicalSearch(ctx, "项目的金额是多少", 3)
	require.NoError(t, err)
	require.NotEmpty(t, again)
	assert.Equal(t, "budget.txt", again[0].String(MetaSource))

	removed, err := store.DeleteByFileID(ctx, "f1")
	require.NoError(t, err)
	assert.Equal(t, 120, removed)

	contents, _, err := store.GetAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"项目预算为500000元"}, contents)
}
