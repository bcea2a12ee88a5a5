package props

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Option is a single allowed value of a prop.
type Option struct {
	Label string `json:"label"`
	Value any    `json:"value"`
}

// OptionSet is an insertion-ordered set of options keyed by value.
type OptionSet struct {
	items []Option
	keys  map[string]struct{}
}

// NewOptionSet builds a set from opts, keeping the first occurrence of each value.
func NewOptionSet(opts ...Option) *OptionSet {
	s := &OptionSet{keys: make(map[string]struct{}, len(opts))}
	for _, o := range opts {
		s.Add(o)
	}
	return s
}

// Add inserts o unless an option with the same value is present.
func (s *OptionSet) Add(o Option) bool {
	if s.keys == nil {
		s.keys = make(map[string]struct{})
	}
	k := valueKey(o.Value)
	if _, ok := s.keys[k]; ok {
		return false
	}
	s.keys[k] = struct{}{}
	s.items = append(s.items, o)
	return true
}

// Contains reports whether v is one of the allowed values.
func (s *OptionSet) Contains(v any) bool {
	if s == nil {
		return false
	}
	_, ok := s.keys[valueKey(v)]
	return ok
}

func (s *OptionSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.items)
}

// Options returns a copy of the options in insertion order.
func (s *OptionSet) Options() []Option {
	if s == nil {
		return nil
	}
	out := make([]Option, len(s.items))
	copy(out, s.items)
	return out
}

// String lists the allowed values, comma separated.
func (s *OptionSet) String() string {
	if s == nil {
		return ""
	}
	vals := make([]string, len(s.items))
	for i, o := range s.items {
		vals[i] = FormatValue(o.Value)
	}
	return strings.Join(vals, ", ")
}

func (s *OptionSet) MarshalJSON() ([]byte, error) {
	if s == nil {
		return []byte("null"), nil
	}
	items := s.items
	if items == nil {
		items = []Option{}
	}
	return json.Marshal(items)
}

func (s *OptionSet) UnmarshalJSON(data []byte) error {
	var items []Option
	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}
	*s = OptionSet{}
	for _, o := range items {
		s.Add(o)
	}
	return nil
}

// FormatValue renders a scalar value for error messages.
func FormatValue(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case nil:
		return "null"
	case json.Number:
		return x.String()
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	}
	if b, err := json.Marshal(v); err == nil {
		return string(b)
	}
	return fmt.Sprint(v)
}

// valueKey canonicalizes a value so that 3, 3.0 and json.Number("3") compare equal
// while "3" (a string) does not.
func valueKey(v any) string {
	switch x := v.(type) {
	case string:
		return "s:" + x
	case bool:
		return "b:" + strconv.FormatBool(x)
	case nil:
		return "null"
	case json.Number:
		if f, err := x.Float64(); err == nil {
			return numberKey(f)
		}
		return "n:" + x.String()
	case float64:
		return numberKey(x)
	case float32:
		return numberKey(float64(x))
	case int:
		return "n:" + strconv.FormatInt(int64(x), 10)
	case int32:
		return "n:" + strconv.FormatInt(int64(x), 10)
	case int64:
		return "n:" + strconv.FormatInt(x, 10)
	case uint:
		return "n:" + strconv.FormatUint(uint64(x), 10)
	case uint64:
		return "n:" + strconv.FormatUint(x, 10)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "x:" + fmt.Sprint(v)
	}
	return "j:" + string(b)
}

func numberKey(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return "n:" + strconv.FormatInt(int64(f), 10)
	}
	return "n:" + strconv.FormatFloat(f, 'g', -1, 64)
}
