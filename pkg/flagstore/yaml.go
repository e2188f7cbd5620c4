package flagstore

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cgk-platform/cgk-sub021/pkg/feature"
)

// File is the on-disk layout of a flag definition file.
//
//	flags:
//	  - key: new-checkout
//	    type: percentage
//	    enabled: true
//	    salt: 9f3c0a7d2b6e4f1a8c5d0e3b7a2f6c4d
//	    percentage: 25
type File struct {
	Flags []*feature.Flag `yaml:"flags"`
}

// LoadYAML decodes and validates flag definitions.
// Every flag must carry its salt: regenerating it on each load would reshuffle buckets.
func LoadYAML(r io.Reader) ([]*feature.Flag, error) {
	var file File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, errors.Join(ErrDecodeFile, err)
	}

	seen := make(map[string]struct{}, len(file.Flags))
	var errs []error
	for i, f := range file.Flags {
		if f == nil {
			errs = append(errs, fmt.Errorf("flags[%d]: empty entry", i))
			continue
		}
		if _, dup := seen[f.Key]; dup {
			errs = append(errs, fmt.Errorf("flags[%d] %q: %w", i, f.Key, ErrFlagExists))
			continue
		}
		seen[f.Key] = struct{}{}

		if f.Salt == "" {
			errs = append(errs, fmt.Errorf("flags[%d] %q: %w", i, f.Key, ErrMissingSalt))
			continue
		}
		if err := f.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("flags[%d] %q: %w", i, f.Key, err))
			continue
		}
		for id, o := range f.UserOverrides {
			o.FlagKey, o.Scope, o.ScopeID = f.Key, feature.ScopeUser, id
			f.UserOverrides[id] = o
		}
		for id, o := range f.TenantOverrides {
			o.FlagKey, o.Scope, o.ScopeID = f.Key, feature.ScopeTenant, id
			f.TenantOverrides[id] = o
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	return file.Flags, nil
}

// LoadYAMLFile reads flag definitions from path.
func LoadYAMLFile(path string) ([]*feature.Flag, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Join(ErrDecodeFile, err)
	}
	defer f.Close()

	return LoadYAML(f)
}

// NewMemoryStoreFromFile loads path into a new MemoryStore.
func NewMemoryStoreFromFile(path string, opts ...MemoryOption) (*MemoryStore, error) {
	flags, err := LoadYAMLFile(path)
	if err != nil {
		return nil, err
	}
	return NewMemoryStore(append(opts, WithFlags(flags...))...)
}
