package metadata

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/vyrodovalexey/avdataccess/internal/routing"
)

// DatasetID identifies a dataset snapshot. Version is an epoch-millisecond
// timestamp encoded as a string, matching the catalog wire format.
type DatasetID struct {
	Path    string `json:"path"`
	Version string `json:"version,omitempty"`
}

// DatasetMeta is the caller-submitted dataset metadata. The service trusts
// none of it except after the write-path policy check, and the only field
// the service ever mutates is CreatedBy.
//
// The canonical encoding signed by the service is the encoding/json
// serialization of this struct: fields in declaration order, no
// indentation, UTF-8. Any re-serialization that changes byte order or
// whitespace invalidates the signature. This is part of the wire contract.
type DatasetMeta struct {
	ID           DatasetID       `json:"id"`
	Type         string          `json:"type,omitempty"`
	Valuation    string          `json:"valuation"`
	State        string          `json:"state"`
	PseudoConfig json.RawMessage `json:"pseudoConfig,omitempty"`
	CreatedBy    string          `json:"createdBy,omitempty"`
}

// DatasetMetaAll is the extended envelope payload produced on the write
// path. It adds the resolved parent URI and a random nonce so that two
// writes of identical metadata never produce identical signed payloads.
type DatasetMetaAll struct {
	ID           DatasetID       `json:"id"`
	Type         string          `json:"type,omitempty"`
	Valuation    string          `json:"valuation"`
	State        string          `json:"state"`
	PseudoConfig json.RawMessage `json:"pseudoConfig,omitempty"`
	CreatedBy    string          `json:"createdBy,omitempty"`
	Random       string          `json:"random"`
	ParentURI    string          `json:"parentUri"`
}

// ParseDatasetMeta decodes untrusted metadata JSON. Unknown fields are
// rejected so a caller cannot smuggle fields past the signature.
func ParseDatasetMeta(data []byte) (*DatasetMeta, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var meta DatasetMeta
	if err := dec.Decode(&meta); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMetadata, err)
	}
	if err := meta.Validate(); err != nil {
		return nil, err
	}
	return &meta, nil
}

// Validate checks the fields required for routing and policy checks.
func (m *DatasetMeta) Validate() error {
	if strings.TrimSpace(m.ID.Path) == "" {
		return fmt.Errorf("%w: missing dataset path", ErrInvalidMetadata)
	}
	if _, err := routing.ParseValuation(m.Valuation); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMetadata, err)
	}
	if _, err := routing.ParseDatasetState(m.State); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMetadata, err)
	}
	return nil
}

// Locator maps the metadata to a routing locator.
func (m *DatasetMeta) Locator() routing.DatasetLocator {
	valuation, _ := routing.ParseValuation(m.Valuation)
	state, _ := routing.ParseDatasetState(m.State)

	var version int64
	if m.ID.Version != "" {
		version, _ = strconv.ParseInt(m.ID.Version, 10, 64)
	}

	return routing.DatasetLocator{
		Path:      m.ID.Path,
		Valuation: valuation,
		State:     state,
		Version:   version,
	}
}

// CanonicalJSON returns the canonical byte serialization of the metadata.
func (m *DatasetMeta) CanonicalJSON() ([]byte, error) {
	return json.Marshal(m)
}

// CanonicalJSON returns the canonical byte serialization of the extended
// metadata.
func (m *DatasetMetaAll) CanonicalJSON() ([]byte, error) {
	return json.Marshal(m)
}

// SignedEnvelope is a canonical metadata payload plus its detached
// signature. Created per write request, returned to the caller, never
// stored server-side.
type SignedEnvelope struct {
	MetadataJSON []byte
	Signature    []byte
}
