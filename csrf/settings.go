package csrf

import "sort"

// Setting is one named option handed to LoadConfig.
type Setting struct {
	Key   string
	Value any
}

// Source provides the raw settings LoadConfig resolves.
type Source interface {
	Settings() ([]Setting, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func() ([]Setting, error)

func (f SourceFunc) Settings() ([]Setting, error) { return f() }

// Pairs is an ordered list of settings.
//
//	cfg, err := csrf.LoadConfig(csrf.Pairs{
//	    {"secret_key", "secret"},
//	    {"max_age", 600},
//	})
type Pairs []Setting

func (p Pairs) Settings() ([]Setting, error) { return p, nil }

// Map is an unordered set of settings.
type Map map[string]any

func (m Map) Settings() ([]Setting, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]Setting, 0, len(keys))
	for _, k := range keys {
		out = append(out, Setting{Key: k, Value: m[k]})
	}
	return out, nil
}
