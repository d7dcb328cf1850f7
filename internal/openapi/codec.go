package openapi

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// Format is the textual serialization of a document.
type Format int

const (
	FormatYAML Format = iota
	FormatJSON
)

func (f Format) String() string {
	if f == FormatJSON {
		return "json"
	}
	return "yaml"
}

// FormatFor picks the serialization for a file path from its extension.
func FormatFor(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return FormatJSON
	}
	return FormatYAML
}

// rootOrder is the order top-level fields are written in; anything else
// follows alphabetically.
var rootOrder = []string{
	"openapi", "info", "jsonSchemaDialect", "servers", "security",
	"tags", "paths", "webhooks", "components", "externalDocs",
}

var jsonAPI = jsoniter.Config{
	EscapeHTML:             false,
	SortMapKeys:            true,
	ValidateJsonRawMessage: true,
}.Froze()

// Load reads and decodes the document at path. A missing file is reported as
// a MissingInputError.
func Load(fs afero.Fs, path string) (Document, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &MissingInputError{Path: path, Cause: err}
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return Decode(data, path)
}

// Decode parses YAML or JSON into a Document and checks its shape. source
// names the document in errors.
func Decode(data []byte, source string) (Document, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, &MalformedDocumentError{Source: source, Cause: err}
	}
	if root.Kind == 0 || (root.Kind == yaml.DocumentNode && len(root.Content) == 0) {
		return nil, &MalformedDocumentError{Source: source, Message: "empty document"}
	}
	v, err := nodeValue(&root, "")
	if err != nil {
		var malformed *MalformedDocumentError
		if errors.As(err, &malformed) {
			malformed.Source = source
		}
		return nil, err
	}
	m, ok := asMap(v)
	if !ok {
		return nil, &MalformedDocumentError{Source: source, Line: root.Line, Message: "document root is not a mapping"}
	}
	doc := Document(m)
	if err := CheckShape(doc); err != nil {
		var malformed *MalformedDocumentError
		if errors.As(err, &malformed) {
			malformed.Source = source
		}
		return nil, err
	}
	return doc, nil
}

func nodeValue(n *yaml.Node, field string) (any, error) {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return nil, nil
		}
		return nodeValue(n.Content[0], field)
	case yaml.AliasNode:
		return nodeValue(n.Alias, field)
	case yaml.ScalarNode:
		// Timestamps stay strings so they are written back the way they were read.
		if n.ShortTag() == "!!timestamp" {
			return n.Value, nil
		}
		var v any
		if err := n.Decode(&v); err != nil {
			return nil, &MalformedDocumentError{Field: field, Line: n.Line, Column: n.Column, Cause: err}
		}
		if tag := n.ShortTag(); (tag == "!!int" || tag == "!!float") && !reencodes(v, n) {
			return Scalar{Tag: tag, Value: n.Value}, nil
		}
		return v, nil
	case yaml.SequenceNode:
		out := make([]any, 0, len(n.Content))
		for i, child := range n.Content {
			v, err := nodeValue(child, fmt.Sprintf("%s[%d]", field, i))
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	case yaml.MappingNode:
		return mappingValue(n, field)
	default:
		return nil, &MalformedDocumentError{Field: field, Line: n.Line, Column: n.Column, Message: "unsupported node"}
	}
}

// reencodes reports whether encoding v yields the same text and tag as n.
func reencodes(v any, n *yaml.Node) bool {
	var out yaml.Node
	if err := out.Encode(v); err != nil {
		return false
	}
	return out.Value == n.Value && out.ShortTag() == n.ShortTag()
}

func mappingValue(n *yaml.Node, field string) (map[string]any, error) {
	out := make(map[string]any, len(n.Content)/2)
	var merges []*yaml.Node
	for i := 0; i+1 < len(n.Content); i += 2 {
		key, value := n.Content[i], n.Content[i+1]
		if key.Kind == yaml.AliasNode {
			key = key.Alias
		}
		if key.Kind != yaml.ScalarNode {
			return nil, &MalformedDocumentError{Field: field, Line: key.Line, Column: key.Column, Message: "mapping key is not a scalar"}
		}
		if key.ShortTag() == "!!merge" {
			merges = append(merges, value)
			continue
		}
		if _, dup := out[key.Value]; dup {
			return nil, &MalformedDocumentError{Field: joinField(field, key.Value), Line: key.Line, Column: key.Column, Message: "duplicate key"}
		}
		v, err := nodeValue(value, joinField(field, key.Value))
		if err != nil {
			return nil, err
		}
		out[key.Value] = v
	}
	// Explicit keys win over merged ones.
	for _, m := range merges {
		sources := []*yaml.Node{m}
		if m.Kind == yaml.SequenceNode {
			sources = m.Content
		}
		for _, src := range sources {
			v, err := nodeValue(src, field)
			if err != nil {
				return nil, err
			}
			sm, ok := asMap(v)
			if !ok {
				return nil, &MalformedDocumentError{Field: field, Line: src.Line, Column: src.Column, Message: "merge value is not a mapping"}
			}
			for k, sv := range sm {
				if _, ok := out[k]; !ok {
					out[k] = sv
				}
			}
		}
	}
	return out, nil
}

func joinField(parent, key string) string {
	if parent == "" {
		return key
	}
	return parent + "." + key
}

// Encode serializes doc in the given format.
func Encode(doc Document, format Format) ([]byte, error) {
	if format == FormatJSON {
		data, err := jsonAPI.MarshalIndent(map[string]any(doc), "", "  ")
		if err != nil {
			return nil, err
		}
		return append(data, '\n'), nil
	}

	node, err := encodeNode(map[string]any(doc), true)
	if err != nil {
		return nil, err
	}
	buf := &bytes.Buffer{}
	enc := yaml.NewEncoder(buf)
	enc.SetIndent(2)
	if err := enc.Encode(node); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeNode(v any, root bool) (*yaml.Node, error) {
	if m, ok := asMap(v); ok {
		n := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		for _, k := range orderedKeys(m, root) {
			child, err := encodeNode(m[k], false)
			if err != nil {
				return nil, err
			}
			n.Content = append(n.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k}, child)
		}
		return n, nil
	}
	if s, ok := asSlice(v); ok {
		n := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, item := range s {
			child, err := encodeNode(item, false)
			if err != nil {
				return nil, err
			}
			n.Content = append(n.Content, child)
		}
		return n, nil
	}
	if s, ok := v.(Scalar); ok {
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: s.Tag, Value: s.Value}, nil
	}
	n := &yaml.Node{}
	if err := n.Encode(v); err != nil {
		return nil, fmt.Errorf("encode %T: %w", v, err)
	}
	return n, nil
}

func orderedKeys(m map[string]any, root bool) []string {
	if !root {
		return sortedKeys(m)
	}
	rank := make(map[string]int, len(rootOrder))
	for i, k := range rootOrder {
		rank[k] = i
	}
	keys := sortedKeys(m)
	sort.SliceStable(keys, func(i, j int) bool {
		ri, iok := rank[keys[i]]
		rj, jok := rank[keys[j]]
		switch {
		case iok && jok:
			return ri < rj
		case iok != jok:
			return iok
		default:
			return false
		}
	})
	return keys
}

// Write encodes doc in the format chosen by the path's extension and stores it
// atomically. It returns the number of bytes written.
func Write(fs afero.Fs, path string, doc Document) (int, error) {
	data, err := Encode(doc, FormatFor(path))
	if err != nil {
		return 0, &WriteFailureError{Path: path, Cause: err}
	}
	if err := WriteFile(fs, path, data); err != nil {
		return 0, err
	}
	return len(data), nil
}

// WriteFile stores data at path through a temporary sibling file that is
// renamed into place, so readers never observe a partial document. On failure
// the temporary file is removed and any previous file at path is untouched.
// A replaced file keeps its permissions; a new one gets 0644.
func WriteFile(fs afero.Fs, path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return &WriteFailureError{Path: path, Cause: err}
	}
	f, err := afero.TempFile(fs, dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return &WriteFailureError{Path: path, Cause: err}
	}
	tmp := f.Name()
	fail := func(err error) error {
		_ = f.Close()
		_ = fs.Remove(tmp)
		return &WriteFailureError{Path: path, Cause: err}
	}
	if _, err := f.Write(data); err != nil {
		return fail(err)
	}
	if err := f.Sync(); err != nil {
		return fail(err)
	}
	if err := f.Close(); err != nil {
		_ = fs.Remove(tmp)
		return &WriteFailureError{Path: path, Cause: err}
	}
	mode := os.FileMode(0o644)
	if info, err := fs.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}
	if err := fs.Chmod(tmp, mode); err != nil {
		_ = fs.Remove(tmp)
		return &WriteFailureError{Path: path, Cause: err}
	}
	if err := fs.Rename(tmp, path); err != nil {
		_ = fs.Remove(tmp)
		return &WriteFailureError{Path: path, Cause: err}
	}
	return nil
}
