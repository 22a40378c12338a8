package csrf

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// YAMLSource decodes settings from a YAML mapping. When Section is set the
// options are read from that top-level key instead, e.g. "csrf".
//
//	csrf:
//	  secret_key: change-me
//	  cookie_samesite: strict
//	  methods: [POST, DELETE]
type YAMLSource struct {
	Data    []byte
	Section string
}

// FromYAMLFile reads path into a YAMLSource.
func FromYAMLFile(path, section string) (YAMLSource, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return YAMLSource{}, fmt.Errorf("read %s: %w", path, err)
	}
	return YAMLSource{Data: b, Section: section}, nil
}

// FromYAML reads r into a YAMLSource.
func FromYAML(r io.Reader, section string) (YAMLSource, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return YAMLSource{}, fmt.Errorf("read yaml: %w", err)
	}
	return YAMLSource{Data: b, Section: section}, nil
}

func (s YAMLSource) Settings() ([]Setting, error) {
	var doc map[string]any
	if err := yaml.NewDecoder(bytes.NewReader(s.Data)).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("decode yaml: %w", err)
	}

	if s.Section != "" {
		raw, ok := doc[s.Section]
		if !ok || raw == nil {
			return nil, nil
		}
		section, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("yaml section %q is %T, want a mapping", s.Section, raw)
		}
		doc = section
	}
	return Map(doc).Settings()
}
