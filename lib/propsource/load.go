package propsource

import (
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/pthm/pagetree"
)

// sourcesFile is the YAML layout of a data file:
//
//	sources:
//	  site:
//	    value:
//	      title: Docs
//	    cache:
//	      tags: [site]
//	      max_age: 300
type sourcesFile struct {
	Sources map[string]sourceEntry `yaml:"sources"`
}

type sourceEntry struct {
	Value any                     `yaml:"value"`
	Cache *pagetree.CacheMetadata `yaml:"cache"`
}

// LoadYAML registers every source in the data file. A source without a
// cache section never expires.
func (r *Resolver) LoadYAML(in io.Reader) error {
	var f sourcesFile
	dec := yaml.NewDecoder(in)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("propsource: decode: %w", err)
	}

	for _, name := range slices.Sorted(maps.Keys(f.Sources)) {
		e := f.Sources[name]
		cache := pagetree.PermanentCache()
		if e.Cache != nil {
			cache = *e.Cache
		}
		if err := r.SetSource(name, e.Value, cache); err != nil {
			return err
		}
	}
	return nil
}

// LoadFile reads sources from a YAML file.
func (r *Resolver) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("propsource: %w", err)
	}
	defer f.Close()
	return r.LoadYAML(f)
}
