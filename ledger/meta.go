package ledger

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SESSION METADATA - Typed payload, versioned codec at the store edge
// =============================================================================

// sessionMetaVersion is bumped when the encoded shape changes. The
// decoder accepts every version it knows how to read.
const sessionMetaVersion = 1

// SessionMeta is the method/source provenance attached to a WorkSession.
// Inside the engine it is always this struct; serialization to and from
// the record store goes through EncodeSessionMeta/DecodeSessionMeta.
type SessionMeta struct {
	// Method is the resolved pay method a leave valuation used.
	Method PayMethod

	// Source records how the value was produced: "history_average",
	// "fixed_rate", "current_rate", "override".
	Source string

	// Kind is the base leave kind for leave sessions.
	Kind BaseKind

	// Portion is the day fraction a leave session consumes (1 or 0.5).
	// Zero means unset and is read as a full day.
	Portion decimal.Decimal

	// Primary marks the segment that carries the daily rate for a global
	// employee's day.
	Primary bool
}

// IsZero reports whether no metadata was recorded.
func (m SessionMeta) IsZero() bool {
	return m.Method == "" && m.Source == "" && m.Kind == "" && m.Portion.IsZero() && !m.Primary
}

type sessionMetaWire struct {
	V       int    `json:"v"`
	Method  string `json:"method,omitempty"`
	Source  string `json:"source,omitempty"`
	Kind    string `json:"kind,omitempty"`
	Portion string `json:"portion,omitempty"`
	Primary bool   `json:"primary,omitempty"`
}

// EncodeSessionMeta serializes metadata for storage. Empty metadata
// encodes to the empty string.
func EncodeSessionMeta(m SessionMeta) (string, error) {
	if m.IsZero() {
		return "", nil
	}
	wire := sessionMetaWire{
		V:       sessionMetaVersion,
		Method:  string(m.Method),
		Source:  m.Source,
		Kind:    string(m.Kind),
		Primary: m.Primary,
	}
	if !m.Portion.IsZero() {
		wire.Portion = m.Portion.String()
	}
	b, err := json.Marshal(wire)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// DecodeSessionMeta parses stored metadata. Unknown versions fail loudly
// rather than being guessed at.
func DecodeSessionMeta(s string) (SessionMeta, error) {
	if s == "" {
		return SessionMeta{}, nil
	}
	var wire sessionMetaWire
	if err := json.Unmarshal([]byte(s), &wire); err != nil {
		return SessionMeta{}, fmt.Errorf("decode session metadata: %w", err)
	}
	if wire.V != sessionMetaVersion {
		return SessionMeta{}, fmt.Errorf("decode session metadata: unknown version %d", wire.V)
	}
	m := SessionMeta{
		Method:  PayMethod(wire.Method),
		Source:  wire.Source,
		Kind:    BaseKind(wire.Kind),
		Primary: wire.Primary,
	}
	if wire.Portion != "" {
		p, err := decimal.NewFromString(wire.Portion)
		if err != nil {
			return SessionMeta{}, fmt.Errorf("decode session metadata portion: %w", err)
		}
		m.Portion = p
	}
	return m, nil
}
