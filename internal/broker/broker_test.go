package broker

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/avdataccess/internal/routing"
)

func testTable(t *testing.T) *routing.Table {
	t.Helper()

	table, err := routing.NewTable([]routing.RouteRule{
		{
			Source: routing.SourceCriteria{
				Paths: &routing.Criterion{Includes: []string{"/tmp"}},
			},
			Target: routing.RouteTarget{
				Scheme: "file",
				Host:   "tmp-store",
				Auth: map[string]string{
					"read":  "dev-read.json",
					"write": "dev-write.json",
				},
			},
		},
		{
			Target: routing.RouteTarget{
				Scheme: "gs",
				Host:   "dev-datalager-store",
				Auth: map[string]string{
					"read":  "dev-datalager-store",
					"write": "dev-datalager-store",
				},
			},
		},
	})
	require.NoError(t, err)

	return table
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestLocalBrokerIssueReadToken(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	b := NewLocalBroker(testTable(t), time.Hour, WithLocalClock(fixedClock(now)))

	tests := []struct {
		name      string
		parentURI string
		wantToken string
		wantErr   error
	}{
		{
			name:      "routed authority uses auth reference",
			parentURI: "file://tmp-store/tmp/ds1",
			wantToken: "dev-read.json-read-token",
		},
		{
			name:      "catch-all authority",
			parentURI: "gs://dev-datalager-store/skatt/person",
			wantToken: "dev-datalager-store-read-token",
		},
		{
			name:      "unrouted authority falls back to host",
			parentURI: "gs://unknown-bucket/some/path",
			wantToken: "unknown-bucket-read-token",
		},
		{
			name:      "malformed parent URI",
			parentURI: "not a uri",
			wantErr:   ErrInvalidParentURI,
		},
		{
			name:      "empty parent URI",
			parentURI: "",
			wantErr:   ErrInvalidParentURI,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			token, err := b.IssueReadToken(context.Background(), "alice", tt.parentURI)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantToken, token.Token)
			assert.Equal(t, tt.parentURI, token.ParentURI)
			assert.Equal(t, now.Add(time.Hour).UnixMilli(), token.ExpiresAtMillis)
		})
	}
}

func TestLocalBrokerIssueWriteToken(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	b := NewLocalBroker(testTable(t), 30*time.Minute, WithLocalClock(fixedClock(now)))

	route := &routing.RouteRule{
		Target: routing.RouteTarget{
			Scheme: "gs",
			Host:   "dev-datalager-store",
			Auth:   map[string]string{"write": "dev-datalager-store"},
		},
	}

	token, err := b.IssueWriteToken(context.Background(), "alice", route)
	require.NoError(t, err)
	assert.Equal(t, "dev-datalager-store-write-token", token.Token)
	assert.Equal(t, "gs://dev-datalager-store", token.ParentURI)
	assert.Equal(t, now.Add(30*time.Minute).UnixMilli(), token.ExpiresAtMillis)
}

func TestLocalBrokerWriteTokenUsesAuthority(t *testing.T) {
	t.Parallel()

	b := NewLocalBroker(testTable(t), 0)

	t.Run("auth reference is ignored", func(t *testing.T) {
		t.Parallel()

		// The tmp-store route names dev-write.json as its write auth
		// reference; the stub write token still derives from the authority.
		route, err := testTable(t).ResolveTarget("file", "tmp-store")
		require.NoError(t, err)
		require.Equal(t, "dev-write.json", route.Target.Auth["write"])

		token, err := b.IssueWriteToken(context.Background(), "bob", route)
		require.NoError(t, err)
		assert.Equal(t, "tmp-store-write-token", token.Token)
	})

	t.Run("route without auth map", func(t *testing.T) {
		t.Parallel()

		route := &routing.RouteRule{
			Target: routing.RouteTarget{Scheme: "gs", Host: "plain-bucket"},
		}

		token, err := b.IssueWriteToken(context.Background(), "bob", route)
		require.NoError(t, err)
		assert.Equal(t, "plain-bucket-write-token", token.Token)
	})
}

func TestLocalBrokerScopeIsolation(t *testing.T) {
	t.Parallel()

	// The same route must yield distinct tokens for read and write so a
	// read grant can never be replayed as a write credential.
	b := NewLocalBroker(testTable(t), time.Hour)

	read, err := b.IssueReadToken(context.Background(), "alice", "file://tmp-store/tmp/ds1")
	require.NoError(t, err)

	route, err := testTable(t).ResolveTarget("file", "tmp-store")
	require.NoError(t, err)

	write, err := b.IssueWriteToken(context.Background(), "alice", route)
	require.NoError(t, err)

	assert.NotEqual(t, read.Token, write.Token)
	assert.True(t, strings.HasSuffix(read.Token, "-read-token"))
	assert.True(t, strings.HasSuffix(write.Token, "-write-token"))
}

func newVaultTestServer(t *testing.T, handler http.HandlerFunc) VaultConfig {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return VaultConfig{Address: srv.URL, Token: "unit-test-token"}
}

func TestVaultBrokerIssueReadToken(t *testing.T) {
	t.Parallel()

	var gotPath string
	cfg := newVaultTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "1h0m0s", body["ttl"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"auth":{"client_token":"hvs.read123","lease_duration":1800}}`))
	})

	now := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	b, err := NewVaultBroker(cfg, testTable(t), time.Hour, WithVaultClock(fixedClock(now)))
	require.NoError(t, err)

	token, err := b.IssueReadToken(context.Background(), "alice", "file://tmp-store/tmp/ds1")
	require.NoError(t, err)
	assert.Equal(t, "/v1/auth/token/create/dev-read.json", gotPath)
	assert.Equal(t, "hvs.read123", token.Token)
	assert.Equal(t, now.Add(30*time.Minute).UnixMilli(), token.ExpiresAtMillis)
	assert.Equal(t, "file://tmp-store/tmp/ds1", token.ParentURI)
}

func TestVaultBrokerIssueWriteToken(t *testing.T) {
	t.Parallel()

	var gotPath string
	cfg := newVaultTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"auth":{"client_token":"hvs.write456","lease_duration":3600}}`))
	})

	b, err := NewVaultBroker(cfg, testTable(t), time.Hour)
	require.NoError(t, err)

	route, err := testTable(t).ResolveTarget("gs", "dev-datalager-store")
	require.NoError(t, err)

	token, err := b.IssueWriteToken(context.Background(), "alice", route)
	require.NoError(t, err)
	assert.Equal(t, "/v1/auth/token/create/dev-datalager-store", gotPath)
	assert.Equal(t, "hvs.write456", token.Token)
}

func TestVaultBrokerErrors(t *testing.T) {
	t.Parallel()

	t.Run("unrouted authority", func(t *testing.T) {
		t.Parallel()

		cfg := newVaultTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			t.Error("no request expected")
		})

		b, err := NewVaultBroker(cfg, testTable(t), time.Hour)
		require.NoError(t, err)

		_, err = b.IssueReadToken(context.Background(), "alice", "s3://nowhere/x")
		require.ErrorIs(t, err, ErrMissingAuthRef)
	})

	t.Run("route without auth reference", func(t *testing.T) {
		t.Parallel()

		cfg := newVaultTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			t.Error("no request expected")
		})

		b, err := NewVaultBroker(cfg, testTable(t), time.Hour)
		require.NoError(t, err)

		route := &routing.RouteRule{
			Target: routing.RouteTarget{Scheme: "gs", Host: "bare"},
		}
		_, err = b.IssueWriteToken(context.Background(), "alice", route)
		require.ErrorIs(t, err, ErrMissingAuthRef)
	})

	t.Run("vault server error", func(t *testing.T) {
		t.Parallel()

		cfg := newVaultTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"errors":["permission denied"]}`, http.StatusForbidden)
		})

		b, err := NewVaultBroker(cfg, testTable(t), time.Hour)
		require.NoError(t, err)

		_, err = b.IssueReadToken(context.Background(), "alice", "file://tmp-store/tmp/ds1")
		require.ErrorIs(t, err, ErrMintFailure)
	})

	t.Run("empty auth payload", func(t *testing.T) {
		t.Parallel()

		cfg := newVaultTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{}`))
		})

		b, err := NewVaultBroker(cfg, testTable(t), time.Hour)
		require.NoError(t, err)

		_, err = b.IssueReadToken(context.Background(), "alice", "file://tmp-store/tmp/ds1")
		require.ErrorIs(t, err, ErrMintFailure)
	})
}

func TestNewBrokerFactory(t *testing.T) {
	t.Parallel()

	table := testTable(t)

	t.Run("local provider", func(t *testing.T) {
		t.Parallel()

		b, err := New(Config{Provider: ProviderLocal}, table, nil)
		require.NoError(t, err)
		assert.IsType(t, &localBroker{}, b)
	})

	t.Run("empty provider defaults to local", func(t *testing.T) {
		t.Parallel()

		b, err := New(Config{}, table, nil)
		require.NoError(t, err)
		assert.IsType(t, &localBroker{}, b)
	})

	t.Run("vault provider", func(t *testing.T) {
		t.Parallel()

		b, err := New(Config{
			Provider: ProviderVault,
			Vault:    VaultConfig{Address: "http://127.0.0.1:8200"},
		}, table, nil)
		require.NoError(t, err)
		assert.IsType(t, &vaultBroker{}, b)
	})

	t.Run("unknown provider", func(t *testing.T) {
		t.Parallel()

		_, err := New(Config{Provider: "gcp"}, table, nil)
		require.ErrorIs(t, err, ErrUnknownProvider)
	})
}
