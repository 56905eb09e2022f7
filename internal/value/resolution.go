package value

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Kind discriminates the variants of Resolution.
type Kind uint8

const (
	// KindAbstain is the zero value: the rule has no opinion.
	KindAbstain Kind = iota
	// KindCancel means "refund all positions instead of settling a winner".
	KindCancel
	KindBool
	KindNumber
	KindString
	KindList
	KindMapping
)

// Resolution is the value a rule evaluation produces. It is a closed sum of
// Abstain | Cancel | Bool | Number | String | List | Mapping, so the coercion
// protocol can branch exhaustively instead of comparing sentinels.
//
// The zero Resolution is Abstain.
type Resolution struct {
	kind    Kind
	b       bool
	num     float64
	str     string
	list    []Resolution
	mapping map[int]float64
}

func Abstain() Resolution { return Resolution{} }

func Cancel() Resolution { return Resolution{kind: KindCancel} }

func Bool(b bool) Resolution { return Resolution{kind: KindBool, b: b} }

func Number(f float64) Resolution { return Resolution{kind: KindNumber, num: f} }

func String(s string) Resolution { return Resolution{kind: KindString, str: s} }

func List(items ...Resolution) Resolution { return Resolution{kind: KindList, list: items} }

// Mapping wraps a weighted answer-index map. The map is used as given, not
// copied; callers must not mutate it afterwards.
func Mapping(m map[int]float64) Resolution { return Resolution{kind: KindMapping, mapping: m} }

func (r Resolution) Kind() Kind      { return r.kind }
func (r Resolution) IsAbstain() bool { return r.kind == KindAbstain }
func (r Resolution) IsCancel() bool  { return r.kind == KindCancel }

// Num returns the numeric payload. Bools count as 0/1 so that boolean results
// can feed arithmetic combinators the way the wire format allows.
func (r Resolution) Num() float64 {
	switch r.kind {
	case KindBool:
		if r.b {
			return 1
		}
		return 0
	case KindNumber:
		return r.num
	}
	return 0
}

func (r Resolution) Map() map[int]float64 { return r.mapping }

// Truthy converts a raw resolution to a boolean the way the combinators need:
// Abstain is false, Cancel is truthy, empty collections and zero are false.
func (r Resolution) Truthy() bool {
	switch r.kind {
	case KindAbstain:
		return false
	case KindCancel:
		return true
	case KindBool:
		return r.b
	case KindNumber:
		return r.num != 0
	case KindString:
		return r.str != ""
	case KindList:
		return len(r.list) > 0
	case KindMapping:
		return len(r.mapping) > 0
	}
	return false
}

func (r Resolution) String() string {
	switch r.kind {
	case KindAbstain:
		return "None"
	case KindCancel:
		return "CANCEL"
	case KindBool:
		if r.b {
			return "True"
		}
		return "False"
	case KindNumber:
		return strconv.FormatFloat(r.num, 'g', -1, 64)
	case KindString:
		return r.str
	case KindList:
		parts := make([]string, len(r.list))
		for i, item := range r.list {
			parts[i] = item.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case KindMapping:
		keys := make([]int, 0, len(r.mapping))
		for k := range r.mapping {
			keys = append(keys, k)
		}
		sort.Ints(keys)
		var sb strings.Builder
		sb.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "%d: %s", k, strconv.FormatFloat(r.mapping[k], 'g', -1, 64))
		}
		sb.WriteByte('}')
		return sb.String()
	}
	return "?"
}

// Equal compares two resolutions structurally. Numeric comparison is exact;
// use it for tests and idempotency checks, not for float tolerance.
func (r Resolution) Equal(other Resolution) bool {
	if r.kind != other.kind {
		return false
	}
	switch r.kind {
	case KindBool:
		return r.b == other.b
	case KindNumber:
		return r.num == other.num
	case KindString:
		return r.str == other.str
	case KindList:
		if len(r.list) != len(other.list) {
			return false
		}
		for i := range r.list {
			if !r.list[i].Equal(other.list[i]) {
				return false
			}
		}
		return true
	case KindMapping:
		if len(r.mapping) != len(other.mapping) {
			return false
		}
		for k, v := range r.mapping {
			if ov, ok := other.mapping[k]; !ok || ov != v {
				return false
			}
		}
		return true
	}
	return true
}

// MarshalJSON round-trips a Resolution through the generic nested form rule
// trees are persisted in: null, bool, number, "CANCEL", string, array, or an
// object keyed by answer index.
func (r Resolution) MarshalJSON() ([]byte, error) {
	switch r.kind {
	case KindAbstain:
		return []byte("null"), nil
	case KindCancel:
		return []byte(`"CANCEL"`), nil
	case KindBool:
		return json.Marshal(r.b)
	case KindNumber:
		return json.Marshal(r.num)
	case KindString:
		return json.Marshal(r.str)
	case KindList:
		return json.Marshal(r.list)
	case KindMapping:
		m := make(map[string]float64, len(r.mapping))
		for k, v := range r.mapping {
			m[strconv.Itoa(k)] = v
		}
		return json.Marshal(m)
	}
	return nil, fmt.Errorf("value: cannot marshal resolution kind %d", r.kind)
}

func (r *Resolution) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" {
		*r = Abstain()
		return nil
	}
	switch trimmed[0] {
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		*r = Bool(b)
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "CANCEL" {
			*r = Cancel()
		} else {
			*r = String(s)
		}
	case '[':
		var items []Resolution
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		*r = List(items...)
	case '{':
		var raw map[string]float64
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		m := make(map[int]float64, len(raw))
		for k, v := range raw {
			idx, err := strconv.Atoi(k)
			if err != nil {
				return fmt.Errorf("value: mapping key %q is not an answer index: %w", k, err)
			}
			m[idx] = v
		}
		*r = Mapping(m)
	default:
		var f float64
		if err := json.Unmarshal(data, &f); err != nil {
			return err
		}
		*r = Number(f)
	}
	return nil
}

// integral reports whether f has no fractional part.
func integral(f float64) bool {
	return f == math.Trunc(f) && !math.IsInf(f, 0) && !math.IsNaN(f)
}
