package access

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/avdataccess/internal/broker"
	"github.com/vyrodovalexey/avdataccess/internal/catalog"
	"github.com/vyrodovalexey/avdataccess/internal/metadata"
	"github.com/vyrodovalexey/avdataccess/internal/policy"
	"github.com/vyrodovalexey/avdataccess/internal/routing"
)

type fakeCatalog struct {
	record *catalog.DatasetRecord
	err    error
}

func (f *fakeCatalog) Get(ctx context.Context, path string, version int64, bearer string) (*catalog.DatasetRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.record, nil
}

type fakePolicy struct {
	allowed bool
	err     error
	got     *policy.CheckRequest
}

func (f *fakePolicy) HasAccess(ctx context.Context, check policy.CheckRequest, bearer string) (bool, error) {
	f.got = &check
	if f.err != nil {
		return false, f.err
	}
	return f.allowed, nil
}

type fakeBroker struct {
	readToken  *broker.AccessToken
	writeToken *broker.AccessToken
	err        error
}

func (f *fakeBroker) IssueReadToken(ctx context.Context, userID, parentURI string) (*broker.AccessToken, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.readToken, nil
}

func (f *fakeBroker) IssueWriteToken(ctx context.Context, userID string, route *routing.RouteRule) (*broker.AccessToken, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.writeToken, nil
}

func newTestSigner(t *testing.T) *metadata.Signer {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	signer, err := metadata.NewSigner(key)
	require.NoError(t, err)
	return signer
}

func newTestTable(t *testing.T) *routing.Table {
	t.Helper()

	table, err := routing.NewTable([]routing.RouteRule{
		{
			Source: routing.SourceCriteria{
				Paths: &routing.Criterion{Includes: []string{"/tmp"}},
			},
			Target: routing.RouteTarget{
				Scheme: "file",
				Host:   "tmp-store",
				Auth:   map[string]string{"read": "dev-read.json", "write": "dev-write.json"},
			},
		},
		{
			Target: routing.RouteTarget{
				Scheme: "gs",
				Host:   "dev-datalager-store",
				Auth:   map[string]string{"read": "dev-datalager-store", "write": "dev-datalager-store"},
			},
		},
	})
	require.NoError(t, err)
	return table
}

func validMetadataJSON(t *testing.T) []byte {
	t.Helper()

	data, err := json.Marshal(map[string]any{
		"id":        map[string]string{"path": "/skatt/person/rawdata-2019", "version": "1585640088000"},
		"valuation": "SENSITIVE",
		"state":     "RAW",
		"createdBy": "spoofed-identity",
	})
	require.NoError(t, err)
	return data
}

func TestReadLocationAllowed(t *testing.T) {
	t.Parallel()

	pol := &fakePolicy{allowed: true}
	svc := NewService(
		&fakeCatalog{record: &catalog.DatasetRecord{
			Path:      "/skatt/person/rawdata-2019",
			Version:   1585640088000,
			Valuation: "SENSITIVE",
			State:     "RAW",
			ParentURI: "gs://dev-datalager-store",
		}},
		pol,
		&fakeBroker{readToken: &broker.AccessToken{Token: "read-token", ExpiresAtMillis: 42}},
		newTestTable(t),
		newTestSigner(t),
	)

	resp, err := svc.ReadLocation(context.Background(), &ReadRequest{
		UserID: "johndoe",
		Path:   "/skatt/person/rawdata-2019",
	})
	require.NoError(t, err)
	assert.True(t, resp.AccessAllowed)
	assert.Equal(t, "gs://dev-datalager-store", resp.ParentURI)
	assert.Equal(t, int64(1585640088000), resp.Version)
	assert.Equal(t, "read-token", resp.Token)
	assert.Equal(t, int64(42), resp.ExpiresAtMillis)

	require.NotNil(t, pol.got)
	assert.Equal(t, policy.PrivilegeRead, pol.got.Privilege)
	assert.Equal(t, "SENSITIVE", pol.got.Valuation)
	assert.Equal(t, "RAW", pol.got.State)
}

func TestReadLocationNotFound(t *testing.T) {
	t.Parallel()

	svc := NewService(
		&fakeCatalog{record: &catalog.DatasetRecord{Path: ""}},
		&fakePolicy{allowed: true},
		&fakeBroker{},
		newTestTable(t),
		newTestSigner(t),
	)

	_, err := svc.ReadLocation(context.Background(), &ReadRequest{UserID: "johndoe", Path: "/missing/path"})
	require.ErrorIs(t, err, ErrNotFound)

	var accessErr *AccessError
	require.ErrorAs(t, err, &accessErr)
	assert.Equal(t, "readLocation", accessErr.Op)
	assert.Equal(t, "/missing/path", accessErr.Path)
}

func TestReadLocationDenied(t *testing.T) {
	t.Parallel()

	svc := NewService(
		&fakeCatalog{record: &catalog.DatasetRecord{Path: "/path/to/dataset", Valuation: "INTERNAL", State: "INPUT"}},
		&fakePolicy{allowed: false},
		&fakeBroker{readToken: &broker.AccessToken{Token: "should-not-appear"}},
		newTestTable(t),
		newTestSigner(t),
	)

	resp, err := svc.ReadLocation(context.Background(), &ReadRequest{UserID: "johndoe", Path: "/path/to/dataset"})
	require.NoError(t, err)
	assert.False(t, resp.AccessAllowed)
	assert.Empty(t, resp.Token)
	assert.Empty(t, resp.ParentURI)
}

func TestReadLocationDownstreamErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		catalog *fakeCatalog
		policy  *fakePolicy
		broker  *fakeBroker
		wantErr error
	}{
		{
			name:    "catalog timeout",
			catalog: &fakeCatalog{err: catalog.ErrTimeout},
			policy:  &fakePolicy{allowed: true},
			broker:  &fakeBroker{},
			wantErr: ErrDownstreamTimeout,
		},
		{
			name:    "catalog failure",
			catalog: &fakeCatalog{err: catalog.ErrUnavailable},
			policy:  &fakePolicy{allowed: true},
			broker:  &fakeBroker{},
			wantErr: ErrDownstreamFailure,
		},
		{
			name:    "policy timeout",
			catalog: &fakeCatalog{record: &catalog.DatasetRecord{Path: "/p", Valuation: "OPEN", State: "INPUT"}},
			policy:  &fakePolicy{err: policy.ErrTimeout},
			broker:  &fakeBroker{},
			wantErr: ErrDownstreamTimeout,
		},
		{
			name:    "broker failure",
			catalog: &fakeCatalog{record: &catalog.DatasetRecord{Path: "/p", Valuation: "OPEN", State: "INPUT"}},
			policy:  &fakePolicy{allowed: true},
			broker:  &fakeBroker{err: errors.New("vault sealed")},
			wantErr: ErrDownstreamFailure,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			svc := NewService(tt.catalog, tt.policy, tt.broker, newTestTable(t), newTestSigner(t))
			_, err := svc.ReadLocation(context.Background(), &ReadRequest{UserID: "u", Path: "/p"})
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestWriteLocationAllowed(t *testing.T) {
	t.Parallel()

	signer := newTestSigner(t)
	pol := &fakePolicy{allowed: true}
	svc := NewService(
		&fakeCatalog{},
		pol,
		&fakeBroker{writeToken: &broker.AccessToken{Token: "write-token", ExpiresAtMillis: 99}},
		newTestTable(t),
		signer,
		WithNonceSource(func() string { return "nonce-1" }),
	)

	resp, err := svc.WriteLocation(context.Background(), &WriteRequest{
		UserID:       "user",
		MetadataJSON: validMetadataJSON(t),
	})
	require.NoError(t, err)
	assert.True(t, resp.AccessAllowed)
	assert.Equal(t, "gs://dev-datalager-store", resp.ParentURI)
	assert.Equal(t, "write-token", resp.Token)
	assert.Equal(t, int64(99), resp.ExpiresAtMillis)

	assert.Equal(t, policy.PrivilegeCreate, pol.got.Privilege)

	// The signed envelope carries the authenticated user, not the
	// caller-submitted createdBy.
	var signed metadata.DatasetMeta
	require.NoError(t, json.Unmarshal(resp.ValidMetadataJSON, &signed))
	assert.Equal(t, "user", signed.CreatedBy)

	var signedAll metadata.DatasetMetaAll
	require.NoError(t, json.Unmarshal(resp.AllValidMetadataJSON, &signedAll))
	assert.Equal(t, "user", signedAll.CreatedBy)
	assert.Equal(t, "nonce-1", signedAll.Random)
	assert.Equal(t, "gs://dev-datalager-store", signedAll.ParentURI)

	verifier := signer.Verifier()
	assert.True(t, verifier.Verify(resp.ValidMetadataJSON, resp.MetadataSignature))
	assert.True(t, verifier.Verify(resp.AllValidMetadataJSON, resp.AllMetadataSignature))
}

func TestWriteLocationDenied(t *testing.T) {
	t.Parallel()

	svc := NewService(
		&fakeCatalog{},
		&fakePolicy{allowed: false},
		&fakeBroker{writeToken: &broker.AccessToken{Token: "should-not-appear"}},
		newTestTable(t),
		newTestSigner(t),
	)

	resp, err := svc.WriteLocation(context.Background(), &WriteRequest{
		UserID:       "user",
		MetadataJSON: validMetadataJSON(t),
	})
	require.NoError(t, err)
	assert.False(t, resp.AccessAllowed)
	assert.Empty(t, resp.Token)
	assert.Empty(t, resp.ValidMetadataJSON)
	assert.Empty(t, resp.MetadataSignature)
}

func TestWriteLocationInvalidMetadata(t *testing.T) {
	t.Parallel()

	svc := NewService(&fakeCatalog{}, &fakePolicy{allowed: true}, &fakeBroker{}, newTestTable(t), newTestSigner(t))

	tests := []struct {
		name string
		json string
	}{
		{name: "not json", json: "{"},
		{name: "missing path", json: `{"id":{"path":""},"valuation":"OPEN","state":"RAW"}`},
		{name: "unknown valuation", json: `{"id":{"path":"/p"},"valuation":"TOP_SECRET","state":"RAW"}`},
		{name: "unknown field", json: `{"id":{"path":"/p"},"valuation":"OPEN","state":"RAW","extra":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := svc.WriteLocation(context.Background(), &WriteRequest{
				UserID:       "user",
				MetadataJSON: []byte(tt.json),
			})
			require.ErrorIs(t, err, ErrInvalidArgument)
		})
	}
}

func TestWriteLocationNoRoute(t *testing.T) {
	t.Parallel()

	// A table without a catch-all rule cannot place this dataset.
	table, err := routing.NewTable([]routing.RouteRule{
		{
			Source: routing.SourceCriteria{
				Paths: &routing.Criterion{Includes: []string{"/tmp"}},
			},
			Target: routing.RouteTarget{Scheme: "file", Host: "tmp-store"},
		},
	})
	require.NoError(t, err)

	svc := NewService(&fakeCatalog{}, &fakePolicy{allowed: true}, &fakeBroker{}, table, newTestSigner(t))

	_, err = svc.WriteLocation(context.Background(), &WriteRequest{
		UserID:       "user",
		MetadataJSON: validMetadataJSON(t),
	})
	require.ErrorIs(t, err, routing.ErrNoRouteFound)
}

func TestWriteAccessToken(t *testing.T) {
	t.Parallel()

	signer := newTestSigner(t)
	svc := NewService(
		&fakeCatalog{},
		&fakePolicy{allowed: true},
		&fakeBroker{writeToken: &broker.AccessToken{Token: "fresh-write-token", ExpiresAtMillis: 7}},
		newTestTable(t),
		signer,
	)

	meta, err := metadata.ParseDatasetMeta(validMetadataJSON(t))
	require.NoError(t, err)
	payload, err := meta.CanonicalJSON()
	require.NoError(t, err)
	sig, err := signer.Sign(payload)
	require.NoError(t, err)

	t.Run("valid signature mints token", func(t *testing.T) {
		t.Parallel()

		resp, err := svc.WriteAccessToken(context.Background(), &WriteAccessTokenRequest{
			UserID:       "user",
			MetadataJSON: payload,
			Signature:    sig,
		})
		require.NoError(t, err)
		assert.Equal(t, "fresh-write-token", resp.Token)
		assert.Equal(t, int64(7), resp.ExpiresAtMillis)
	})

	t.Run("tampered payload is rejected", func(t *testing.T) {
		t.Parallel()

		tampered := append([]byte(nil), payload...)
		tampered[len(tampered)-2] ^= 0xff

		_, err := svc.WriteAccessToken(context.Background(), &WriteAccessTokenRequest{
			UserID:       "user",
			MetadataJSON: tampered,
			Signature:    sig,
		})
		require.ErrorIs(t, err, ErrInvalidArgument)
	})

	t.Run("foreign signature is rejected", func(t *testing.T) {
		t.Parallel()

		otherSig, err := newTestSigner(t).Sign(payload)
		require.NoError(t, err)

		_, err = svc.WriteAccessToken(context.Background(), &WriteAccessTokenRequest{
			UserID:       "user",
			MetadataJSON: payload,
			Signature:    otherSig,
		})
		require.ErrorIs(t, err, ErrInvalidArgument)
	})
}

func TestWriteAccessTokenWithRotatedVerifier(t *testing.T) {
	t.Parallel()

	// During key rotation the service signs with the new key but must
	// still accept envelopes issued under the previous one.
	previousSigner := newTestSigner(t)
	currentSigner := newTestSigner(t)

	svc := NewService(
		&fakeCatalog{},
		&fakePolicy{allowed: true},
		&fakeBroker{writeToken: &broker.AccessToken{Token: "rotated-write-token"}},
		newTestTable(t),
		currentSigner,
		WithVerifier(previousSigner.Verifier()),
	)

	meta, err := metadata.ParseDatasetMeta(validMetadataJSON(t))
	require.NoError(t, err)
	payload, err := meta.CanonicalJSON()
	require.NoError(t, err)

	t.Run("previous key envelope is accepted", func(t *testing.T) {
		t.Parallel()

		sig, err := previousSigner.Sign(payload)
		require.NoError(t, err)

		resp, err := svc.WriteAccessToken(context.Background(), &WriteAccessTokenRequest{
			UserID:       "user",
			MetadataJSON: payload,
			Signature:    sig,
		})
		require.NoError(t, err)
		assert.Equal(t, "rotated-write-token", resp.Token)
	})

	t.Run("current key envelope is rejected by the configured verifier", func(t *testing.T) {
		t.Parallel()

		sig, err := currentSigner.Sign(payload)
		require.NoError(t, err)

		_, err = svc.WriteAccessToken(context.Background(), &WriteAccessTokenRequest{
			UserID:       "user",
			MetadataJSON: payload,
			Signature:    sig,
		})
		require.ErrorIs(t, err, ErrInvalidArgument)
	})
}

func TestDeleteLocation(t *testing.T) {
	t.Parallel()

	// The record's parentUri is stale on purpose: the response must carry
	// the location the routing table resolves today.
	record := &catalog.DatasetRecord{
		Path:      "/tmp/scratch-ds",
		Version:   100,
		Valuation: "INTERNAL",
		State:     "TEMP",
		ParentURI: "file://decommissioned-store",
	}

	t.Run("allowed", func(t *testing.T) {
		t.Parallel()

		pol := &fakePolicy{allowed: true}
		svc := NewService(
			&fakeCatalog{record: record},
			pol,
			&fakeBroker{writeToken: &broker.AccessToken{Token: "delete-write-token", ExpiresAtMillis: 5}},
			newTestTable(t),
			newTestSigner(t),
		)

		resp, err := svc.DeleteLocation(context.Background(), &DeleteRequest{
			UserID:  "user",
			Path:    "/tmp/scratch-ds",
			Version: 100,
		})
		require.NoError(t, err)
		assert.True(t, resp.AccessAllowed)
		assert.Equal(t, "file://tmp-store", resp.ParentURI)
		assert.NotEqual(t, record.ParentURI, resp.ParentURI)
		assert.Equal(t, "delete-write-token", resp.Token)

		// The check runs against the catalog record's classification,
		// never a caller-asserted one.
		assert.Equal(t, policy.PrivilegeDelete, pol.got.Privilege)
		assert.Equal(t, "INTERNAL", pol.got.Valuation)
		assert.Equal(t, "TEMP", pol.got.State)
	})

	t.Run("denied", func(t *testing.T) {
		t.Parallel()

		svc := NewService(
			&fakeCatalog{record: record},
			&fakePolicy{allowed: false},
			&fakeBroker{},
			newTestTable(t),
			newTestSigner(t),
		)

		resp, err := svc.DeleteLocation(context.Background(), &DeleteRequest{UserID: "user", Path: "/tmp/scratch-ds"})
		require.NoError(t, err)
		assert.False(t, resp.AccessAllowed)
		assert.Empty(t, resp.Token)
	})

	t.Run("not found", func(t *testing.T) {
		t.Parallel()

		svc := NewService(
			&fakeCatalog{record: &catalog.DatasetRecord{}},
			&fakePolicy{allowed: true},
			&fakeBroker{},
			newTestTable(t),
			newTestSigner(t),
		)

		_, err := svc.DeleteLocation(context.Background(), &DeleteRequest{UserID: "user", Path: "/gone"})
		require.ErrorIs(t, err, ErrNotFound)
	})
}
