// Package metadata holds free-form name/value annotations attached to probe
// records.
package metadata

import (
	"fmt"
	"strings"
)

// NameValue is a BigQuery-compatible type for ClientMetadata "name"/"value" pairs.
type NameValue struct {
	Name  string
	Value string
}

// Flag collects repeated name=value command line arguments.
type Flag []NameValue

// String implements flag.Value.
func (f *Flag) String() string {
	parts := make([]string, 0, len(*f))
	for _, nv := range *f {
		parts = append(parts, nv.Name+"="+nv.Value)
	}
	return strings.Join(parts, ",")
}

// Set implements flag.Value.
func (f *Flag) Set(s string) error {
	name, value, ok := strings.Cut(s, "=")
	if !ok || name == "" {
		return fmt.Errorf("metadata must look like name=value, got %q", s)
	}
	*f = append(*f, NameValue{Name: name, Value: value})
	return nil
}
