package conflict

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"

	"collabsearch-be/internal/entity"
)

// ErrManualRequired signals that the write cannot be auto-resolved and a
// ConflictRecord must be raised for explicit resolution.
var ErrManualRequired = errors.New("manual conflict resolution required")

// Decision is the resolver verdict for a write that lost the version race.
type Decision struct {
	Value  json.RawMessage
	Source entity.ChangeSource

	// Superseded holds the losing candidate value when last-write-wins
	// discards a write; recorded for audit, not surfaced as an error.
	Superseded json.RawMessage
}

type Resolver struct{}

func NewResolver() *Resolver {
	return &Resolver{}
}

// Resolve decides the outcome of a concurrent write. currentValue is the
// server's accepted value, incomingValue the late write, baseValue the
// previous value both writers started from (used by merge).
func (r *Resolver) Resolve(strategy entity.ResolutionStrategy, baseValue, currentValue, incomingValue json.RawMessage) (Decision, error) {
	switch strategy {
	case entity.StrategyLastWriteWins:
		// Winner is determined by server ingress order, not client
		// clocks: the write being resolved arrived later, so it wins.
		return Decision{
			Value:      incomingValue,
			Source:     entity.SourceUser,
			Superseded: currentValue,
		}, nil

	case entity.StrategyMerge:
		merged, ok := MergeShallow(baseValue, currentValue, incomingValue)
		if !ok {
			return Decision{}, ErrManualRequired
		}
		return Decision{
			Value:  merged,
			Source: entity.SourceMerge,
		}, nil

	case entity.StrategyManual:
		return Decision{}, ErrManualRequired

	default:
		return Decision{}, ErrManualRequired
	}
}

// MergeShallow attempts a field-wise merge of two JSON object values that
// diverged from base. It succeeds only when the two writers changed
// disjoint key sets; overlapping changes fall back to manual resolution.
func MergeShallow(baseValue, currentValue, incomingValue json.RawMessage) (json.RawMessage, bool) {
	base, ok := asObject(baseValue)
	if !ok {
		base = map[string]json.RawMessage{}
	}
	current, ok := asObject(currentValue)
	if !ok {
		return nil, false
	}
	incoming, ok := asObject(incomingValue)
	if !ok {
		return nil, false
	}

	currentChanged := changedKeys(base, current)
	incomingChanged := changedKeys(base, incoming)

	for key := range incomingChanged {
		if _, overlap := currentChanged[key]; overlap {
			return nil, false
		}
	}

	merged := make(map[string]json.RawMessage, len(current)+len(incoming))
	for k, v := range current {
		merged[k] = v
	}
	for k := range incomingChanged {
		if v, present := incoming[k]; present {
			merged[k] = v
		} else {
			delete(merged, k) // key removed by the incoming writer
		}
	}

	out, err := json.Marshal(merged)
	if err != nil {
		return nil, false
	}
	return out, true
}

// HashValue is the content hash stored on every state entry, used for
// integrity checks and write dedup.
func HashValue(value json.RawMessage) string {
	sum := sha256.Sum256(compactJSON(value))
	return hex.EncodeToString(sum[:])
}

func asObject(raw json.RawMessage) (map[string]json.RawMessage, bool) {
	if len(raw) == 0 {
		return nil, false
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, false
	}
	return obj, true
}

// changedKeys returns the keys whose values differ between base and next,
// including keys added or removed.
func changedKeys(base, next map[string]json.RawMessage) map[string]struct{} {
	changed := make(map[string]struct{})
	for k, v := range next {
		if bv, present := base[k]; !present || !bytes.Equal(compactJSON(bv), compactJSON(v)) {
			changed[k] = struct{}{}
		}
	}
	for k := range base {
		if _, present := next[k]; !present {
			changed[k] = struct{}{}
		}
	}
	return changed
}

func compactJSON(raw json.RawMessage) []byte {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return raw
	}
	return buf.Bytes()
}
