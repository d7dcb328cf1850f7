package openapi

import (
	"math"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Scalar is a number whose source text does not survive a decode and
// re-encode, such as 1.0, 2.50 or 0755. It is written back as read.
type Scalar struct {
	Tag   string
	Value string
}

var jsonNumber = regexp.MustCompile(`^-?(0|[1-9][0-9]*)(\.[0-9]+)?([eE][+-]?[0-9]+)?$`)

// Interface returns the decoded value, falling back to the source text.
func (s Scalar) Interface() any {
	var v any
	n := &yaml.Node{Kind: yaml.ScalarNode, Tag: s.Tag, Value: s.Value}
	if err := n.Decode(&v); err != nil {
		return s.Value
	}
	return v
}

func (s Scalar) String() string {
	return s.Value
}

// MarshalJSON writes the source text when it is a valid JSON number and the
// decoded value otherwise. Infinities and NaN become strings.
func (s Scalar) MarshalJSON() ([]byte, error) {
	if jsonNumber.MatchString(s.Value) {
		return []byte(s.Value), nil
	}
	v := s.Interface()
	if f, ok := v.(float64); ok && (math.IsInf(f, 0) || math.IsNaN(f)) {
		return jsonAPI.Marshal(s.Value)
	}
	return jsonAPI.Marshal(v)
}
