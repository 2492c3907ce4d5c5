package routing

import (
	"fmt"
	"strings"
)

// Valuation is the sensitivity classification of a dataset.
type Valuation string

// Known valuations.
const (
	ValuationOpen      Valuation = "OPEN"
	ValuationInternal  Valuation = "INTERNAL"
	ValuationShielded  Valuation = "SHIELDED"
	ValuationSensitive Valuation = "SENSITIVE"
)

// knownValuations is the closed set of valuation values. Anything outside
// this set fails closed during route resolution.
var knownValuations = map[Valuation]bool{
	ValuationOpen:      true,
	ValuationInternal:  true,
	ValuationShielded:  true,
	ValuationSensitive: true,
}

// ParseValuation parses a valuation string case-insensitively.
func ParseValuation(s string) (Valuation, error) {
	v := Valuation(strings.ToUpper(strings.TrimSpace(s)))
	if !knownValuations[v] {
		return "", fmt.Errorf("%w: valuation %q", ErrUnknownEnumValue, s)
	}
	return v, nil
}

// Known reports whether the valuation is a member of the known set.
func (v Valuation) Known() bool {
	return knownValuations[v]
}

// String returns the canonical upper-case name.
func (v Valuation) String() string {
	return string(v)
}

// DatasetState is the lifecycle stage of a dataset.
type DatasetState string

// Known dataset states.
const (
	StateRaw       DatasetState = "RAW"
	StateInput     DatasetState = "INPUT"
	StateProcessed DatasetState = "PROCESSED"
	StateOutput    DatasetState = "OUTPUT"
	StateProduct   DatasetState = "PRODUCT"
	StateTemp      DatasetState = "TEMP"
	StateOther     DatasetState = "OTHER"
)

var knownStates = map[DatasetState]bool{
	StateRaw:       true,
	StateInput:     true,
	StateProcessed: true,
	StateOutput:    true,
	StateProduct:   true,
	StateTemp:      true,
	StateOther:     true,
}

// ParseDatasetState parses a dataset state string case-insensitively.
func ParseDatasetState(s string) (DatasetState, error) {
	st := DatasetState(strings.ToUpper(strings.TrimSpace(s)))
	if !knownStates[st] {
		return "", fmt.Errorf("%w: state %q", ErrUnknownEnumValue, s)
	}
	return st, nil
}

// Known reports whether the state is a member of the known set.
func (s DatasetState) Known() bool {
	return knownStates[s]
}

// String returns the canonical upper-case name.
func (s DatasetState) String() string {
	return string(s)
}

// DatasetLocator identifies a dataset for route resolution. Version is an
// epoch-millisecond snapshot selector; zero means latest. Immutable value,
// constructed per request.
type DatasetLocator struct {
	Path      string
	Valuation Valuation
	State     DatasetState
	Version   int64
}

// Validate checks the structural constraints of the locator. Unknown
// valuation or state values are not an error here; they fail closed in
// Table.Resolve instead.
func (l DatasetLocator) Validate() error {
	if strings.TrimSpace(l.Path) == "" {
		return ErrEmptyPath
	}
	return nil
}
