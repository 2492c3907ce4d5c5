package access

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/vyrodovalexey/avdataccess/internal/broker"
	"github.com/vyrodovalexey/avdataccess/internal/catalog"
	"github.com/vyrodovalexey/avdataccess/internal/metadata"
	"github.com/vyrodovalexey/avdataccess/internal/observability"
	"github.com/vyrodovalexey/avdataccess/internal/policy"
	"github.com/vyrodovalexey/avdataccess/internal/routing"
)

// DefaultDownstreamTimeout bounds every catalog, policy and broker call.
const DefaultDownstreamTimeout = 10 * time.Second

// Service orchestrates dataset access decisions. Every flow is a
// sequential state machine with no retries; a failed downstream call
// fails the whole request.
type Service interface {
	// ReadLocation resolves where a dataset lives and mints a read
	// credential when the caller is authorized.
	ReadLocation(ctx context.Context, req *ReadRequest) (*ReadResponse, error)

	// WriteLocation authorizes a dataset write, signs the authoritative
	// metadata and mints a write credential.
	WriteLocation(ctx context.Context, req *WriteRequest) (*WriteResponse, error)

	// WriteAccessToken exchanges a previously issued signed envelope for
	// a fresh write credential after re-verifying the signature.
	WriteAccessToken(ctx context.Context, req *WriteAccessTokenRequest) (*WriteAccessTokenResponse, error)

	// DeleteLocation authorizes a dataset deletion and mints the write
	// credential the caller needs to perform it. It never deletes.
	DeleteLocation(ctx context.Context, req *DeleteRequest) (*DeleteResponse, error)
}

type service struct {
	catalog  catalog.Client
	policy   policy.Client
	broker   broker.Broker
	table    *routing.Table
	signer   *metadata.Signer
	verifier *metadata.Verifier

	timeout  time.Duration
	logger   observability.Logger
	tracer   *observability.Tracer
	newNonce func() string
}

// Option configures the orchestrator.
type Option func(*service)

// WithLogger sets the logger.
func WithLogger(logger observability.Logger) Option {
	return func(s *service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithTracer enables tracing of flows.
func WithTracer(tracer *observability.Tracer) Option {
	return func(s *service) {
		s.tracer = tracer
	}
}

// WithDownstreamTimeout overrides the per-call downstream timeout.
func WithDownstreamTimeout(timeout time.Duration) Option {
	return func(s *service) {
		if timeout > 0 {
			s.timeout = timeout
		}
	}
}

// WithVerifier overrides the signature verifier. Defaults to the signing
// key's own public half; set it during key rotation, when envelopes
// signed by the previous key must still be accepted.
func WithVerifier(verifier *metadata.Verifier) Option {
	return func(s *service) {
		if verifier != nil {
			s.verifier = verifier
		}
	}
}

// WithNonceSource overrides the nonce generator. Used in tests.
func WithNonceSource(fn func() string) Option {
	return func(s *service) {
		if fn != nil {
			s.newNonce = fn
		}
	}
}

// NewService creates the access orchestrator.
func NewService(
	cat catalog.Client,
	pol policy.Client,
	brk broker.Broker,
	table *routing.Table,
	signer *metadata.Signer,
	opts ...Option,
) Service {
	s := &service{
		catalog:  cat,
		policy:   pol,
		broker:   brk,
		table:    table,
		signer:   signer,
		timeout:  DefaultDownstreamTimeout,
		logger:   observability.NewNopLogger(),
		newNonce: uuid.NewString,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.verifier == nil && signer != nil {
		s.verifier = signer.Verifier()
	}

	return s
}

// ReadLocation implements Service.
func (s *service) ReadLocation(ctx context.Context, req *ReadRequest) (*ReadResponse, error) {
	const op = "readLocation"
	finish := s.startFlow(&ctx, op, req.Path)

	record, err := s.getDataset(ctx, op, req.Path, req.Version, req.Bearer)
	if err != nil {
		finish(outcomeFromErr(err))
		return nil, err
	}

	allowed, err := s.checkAccess(ctx, op, policy.CheckRequest{
		UserID:    req.UserID,
		Privilege: policy.PrivilegeRead,
		Path:      record.Path,
		Valuation: record.Valuation,
		State:     record.State,
	}, req.Bearer)
	if err != nil {
		finish(outcomeFailed)
		return nil, err
	}
	if !allowed {
		s.logger.Info("read access denied",
			observability.String("user_id", req.UserID),
			observability.String("path", req.Path))
		finish(outcomeDenied)
		return &ReadResponse{AccessAllowed: false}, nil
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	token, err := s.broker.IssueReadToken(callCtx, req.UserID, record.ParentURI)
	cancel()
	if err != nil {
		finish(outcomeFailed)
		return nil, opErr(op, req.Path, downstreamErr(err))
	}

	finish(outcomeAllowed)
	return &ReadResponse{
		AccessAllowed:   true,
		ParentURI:       record.ParentURI,
		Version:         record.Version,
		Token:           token.Token,
		ExpiresAtMillis: token.ExpiresAtMillis,
	}, nil
}

// WriteLocation implements Service.
func (s *service) WriteLocation(ctx context.Context, req *WriteRequest) (*WriteResponse, error) {
	const op = "writeLocation"

	meta, err := metadata.ParseDatasetMeta(req.MetadataJSON)
	if err != nil {
		getMetrics().flowsTotal.WithLabelValues(op, outcomeFailed).Inc()
		return nil, opErr(op, "", fmt.Errorf("%w: %v", ErrInvalidArgument, err))
	}

	finish := s.startFlow(&ctx, op, meta.ID.Path)

	allowed, err := s.checkAccess(ctx, op, policy.CheckRequest{
		UserID:    req.UserID,
		Privilege: policy.PrivilegeCreate,
		Path:      meta.ID.Path,
		Valuation: meta.Valuation,
		State:     meta.State,
	}, req.Bearer)
	if err != nil {
		finish(outcomeFailed)
		return nil, err
	}
	if !allowed {
		s.logger.Info("write access denied",
			observability.String("user_id", req.UserID),
			observability.String("path", meta.ID.Path))
		finish(outcomeDenied)
		return &WriteResponse{AccessAllowed: false}, nil
	}

	route, err := s.table.Resolve(meta.Locator())
	if err != nil {
		finish(outcomeFailed)
		return nil, opErr(op, meta.ID.Path, err)
	}
	parentURI := route.Target.URI()

	// The only field the service ever overwrites. Everything else in the
	// envelope is the caller's submission, authorized above.
	meta.CreatedBy = req.UserID

	signedMeta, metaSig, err := s.signMeta(meta)
	if err != nil {
		finish(outcomeFailed)
		return nil, opErr(op, meta.ID.Path, err)
	}

	metaAll := &metadata.DatasetMetaAll{
		ID:           meta.ID,
		Type:         meta.Type,
		Valuation:    meta.Valuation,
		State:        meta.State,
		PseudoConfig: meta.PseudoConfig,
		CreatedBy:    meta.CreatedBy,
		Random:       s.newNonce(),
		ParentURI:    parentURI,
	}
	signedMetaAll, metaAllSig, err := s.signMetaAll(metaAll)
	if err != nil {
		finish(outcomeFailed)
		return nil, opErr(op, meta.ID.Path, err)
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	token, err := s.broker.IssueWriteToken(callCtx, req.UserID, route)
	cancel()
	if err != nil {
		finish(outcomeFailed)
		return nil, opErr(op, meta.ID.Path, downstreamErr(err))
	}

	finish(outcomeAllowed)
	return &WriteResponse{
		AccessAllowed:        true,
		ParentURI:            parentURI,
		ValidMetadataJSON:    signedMeta,
		MetadataSignature:    metaSig,
		AllValidMetadataJSON: signedMetaAll,
		AllMetadataSignature: metaAllSig,
		Token:                token.Token,
		ExpiresAtMillis:      token.ExpiresAtMillis,
	}, nil
}

// WriteAccessToken implements Service.
func (s *service) WriteAccessToken(ctx context.Context, req *WriteAccessTokenRequest) (*WriteAccessTokenResponse, error) {
	const op = "writeAccessToken"

	if !s.verifier.Verify(req.MetadataJSON, req.Signature) {
		getMetrics().flowsTotal.WithLabelValues(op, outcomeFailed).Inc()
		return nil, opErr(op, "", fmt.Errorf("%w: %v", ErrInvalidArgument, metadata.ErrSignatureMismatch))
	}

	meta, err := metadata.ParseDatasetMeta(req.MetadataJSON)
	if err != nil {
		getMetrics().flowsTotal.WithLabelValues(op, outcomeFailed).Inc()
		return nil, opErr(op, "", fmt.Errorf("%w: %v", ErrInvalidArgument, err))
	}

	finish := s.startFlow(&ctx, op, meta.ID.Path)

	route, err := s.table.Resolve(meta.Locator())
	if err != nil {
		finish(outcomeFailed)
		return nil, opErr(op, meta.ID.Path, err)
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	token, err := s.broker.IssueWriteToken(callCtx, req.UserID, route)
	cancel()
	if err != nil {
		finish(outcomeFailed)
		return nil, opErr(op, meta.ID.Path, downstreamErr(err))
	}

	finish(outcomeAllowed)
	return &WriteAccessTokenResponse{
		Token:           token.Token,
		ExpiresAtMillis: token.ExpiresAtMillis,
		ParentURI:       token.ParentURI,
	}, nil
}

// DeleteLocation implements Service.
func (s *service) DeleteLocation(ctx context.Context, req *DeleteRequest) (*DeleteResponse, error) {
	const op = "deleteLocation"
	finish := s.startFlow(&ctx, op, req.Path)

	// Deletion is authorized against the record's actual classification,
	// never a caller-asserted one.
	record, err := s.getDataset(ctx, op, req.Path, req.Version, req.Bearer)
	if err != nil {
		finish(outcomeFromErr(err))
		return nil, err
	}

	allowed, err := s.checkAccess(ctx, op, policy.CheckRequest{
		UserID:    req.UserID,
		Privilege: policy.PrivilegeDelete,
		Path:      record.Path,
		Valuation: record.Valuation,
		State:     record.State,
	}, req.Bearer)
	if err != nil {
		finish(outcomeFailed)
		return nil, err
	}
	if !allowed {
		s.logger.Info("delete access denied",
			observability.String("user_id", req.UserID),
			observability.String("path", req.Path))
		finish(outcomeDenied)
		return &DeleteResponse{AccessAllowed: false}, nil
	}

	locator := routing.DatasetLocator{
		Path:    record.Path,
		Version: record.Version,
	}
	locator.Valuation, _ = routing.ParseValuation(record.Valuation)
	locator.State, _ = routing.ParseDatasetState(record.State)

	route, err := s.table.Resolve(locator)
	if err != nil {
		finish(outcomeFailed)
		return nil, opErr(op, req.Path, err)
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	token, err := s.broker.IssueWriteToken(callCtx, req.UserID, route)
	cancel()
	if err != nil {
		finish(outcomeFailed)
		return nil, opErr(op, req.Path, downstreamErr(err))
	}

	finish(outcomeAllowed)
	return &DeleteResponse{
		AccessAllowed:   true,
		ParentURI:       route.Target.URI(),
		Version:         record.Version,
		Token:           token.Token,
		ExpiresAtMillis: token.ExpiresAtMillis,
	}, nil
}

// getDataset fetches the catalog record, translating a blank echoed path
// into ErrNotFound.
func (s *service) getDataset(ctx context.Context, op, path string, version int64, bearer string) (*catalog.DatasetRecord, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	record, err := s.catalog.Get(callCtx, path, version, bearer)
	if err != nil {
		return nil, opErr(op, path, downstreamErr(err))
	}
	if record.Path == "" {
		return nil, opErr(op, path, ErrNotFound)
	}
	return record, nil
}

// checkAccess asks the policy service for a decision.
func (s *service) checkAccess(ctx context.Context, op string, check policy.CheckRequest, bearer string) (bool, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	allowed, err := s.policy.HasAccess(callCtx, check, bearer)
	if err != nil {
		return false, opErr(op, check.Path, downstreamErr(err))
	}
	return allowed, nil
}

func (s *service) signMeta(meta *metadata.DatasetMeta) ([]byte, []byte, error) {
	data, err := meta.CanonicalJSON()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrSigningFailure, err)
	}
	sig, err := s.signer.Sign(data)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrSigningFailure, err)
	}
	return data, sig, nil
}

func (s *service) signMetaAll(meta *metadata.DatasetMetaAll) ([]byte, []byte, error) {
	data, err := meta.CanonicalJSON()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrSigningFailure, err)
	}
	sig, err := s.signer.Sign(data)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrSigningFailure, err)
	}
	return data, sig, nil
}

// startFlow begins metrics and tracing for one flow and returns the
// completion callback.
func (s *service) startFlow(ctx *context.Context, flow, path string) func(outcome string) {
	start := time.Now()

	var end func()
	if s.tracer != nil {
		newCtx, span := s.tracer.StartSpan(*ctx, "access."+flow,
			attribute.String("dataset.path", path))
		*ctx = newCtx
		end = func() { span.End() }
	}

	return func(outcome string) {
		getMetrics().flowsTotal.WithLabelValues(flow, outcome).Inc()
		getMetrics().flowDuration.WithLabelValues(flow).Observe(time.Since(start).Seconds())
		if end != nil {
			end()
		}
	}
}

// downstreamErr classifies a collaborator error as timeout or failure.
func downstreamErr(err error) error {
	switch {
	case errors.Is(err, catalog.ErrTimeout),
		errors.Is(err, policy.ErrTimeout),
		errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", ErrDownstreamTimeout, err)
	default:
		return fmt.Errorf("%w: %v", ErrDownstreamFailure, err)
	}
}

// outcomeFromErr picks the metrics outcome label for a failed flow.
func outcomeFromErr(err error) string {
	if errors.Is(err, ErrNotFound) {
		return outcomeNotFound
	}
	return outcomeFailed
}
