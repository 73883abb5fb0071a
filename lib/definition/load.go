package definition

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/pthm/pagetree"
)

// file is the YAML layout of a definitions file:
//
//	components:
//	  - id: heading
//	    version: v2
//	    kind: design
//	    active: true
//	    slots:
//	      - name: body
//	        default_content: "<p>Nothing here yet</p>"
//	    props:
//	      - name: text
//	        inline: true
//	    cache:
//	      tags: [heading]
//	      max_age: 300
type file struct {
	Components []fileDefinition `yaml:"components"`
}

type fileDefinition struct {
	ID      string                    `yaml:"id"`
	Version string                    `yaml:"version"`
	Kind    pagetree.Kind             `yaml:"kind"`
	Label   string                    `yaml:"label"`
	Slots   []pagetree.SlotDefinition `yaml:"slots"`
	Props   []pagetree.PropDefinition `yaml:"props"`
	Cache   *pagetree.CacheMetadata   `yaml:"cache"`
	Script  string                    `yaml:"script"`
	Active  bool                      `yaml:"active"`
}

func (fd fileDefinition) definition() *pagetree.Definition {
	cache := pagetree.PermanentCache()
	if fd.Cache != nil {
		cache = *fd.Cache
	}
	return &pagetree.Definition{
		ID:      fd.ID,
		Version: fd.Version,
		Kind:    fd.Kind,
		Label:   fd.Label,
		Slots:   fd.Slots,
		Props:   fd.Props,
		Cache:   cache,
		Script:  fd.Script,
	}
}

// LoadYAML reads definitions from in and registers them. An entry marked
// active becomes the active version of its id. A definition without a
// cache section never expires.
func (r *Registry) LoadYAML(in io.Reader) error {
	var f file
	dec := yaml.NewDecoder(in)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("definition: decode: %w", err)
	}

	defs := make([]*pagetree.Definition, 0, len(f.Components))
	for _, fd := range f.Components {
		// Prepared up front so content-derived versions are known for
		// activation.
		d, err := prepare(fd.definition())
		if err != nil {
			return err
		}
		defs = append(defs, d)
	}
	if err := r.Add(defs...); err != nil {
		return err
	}

	for i, fd := range f.Components {
		if fd.Active {
			if err := r.Activate(defs[i].ID, defs[i].Version); err != nil {
				return err
			}
		}
	}
	return nil
}

// LoadFile reads definitions from a YAML file.
func (r *Registry) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("definition: %w", err)
	}
	defer f.Close()
	return r.LoadYAML(f)
}
