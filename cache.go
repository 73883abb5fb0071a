package pagetree

import (
	"slices"

	"gopkg.in/yaml.v3"
)

// Permanent is the max-age of content that never expires on its own.
const Permanent = -1

// CacheMetadata is the (tags, contexts, max-age) triple handed to the HTTP
// caching layer. MaxAge is in seconds; 0 means uncacheable and Permanent
// means unbounded.
type CacheMetadata struct {
	Tags     []string `json:"tags,omitempty" yaml:"tags,omitempty"`
	Contexts []string `json:"contexts,omitempty" yaml:"contexts,omitempty"`
	MaxAge   int      `json:"max_age" yaml:"max_age"`
}

// PermanentCache returns metadata that imposes no expiry.
func PermanentCache(tags ...string) CacheMetadata {
	return CacheMetadata{Tags: normalizeSet(tags), MaxAge: Permanent}
}

// IsPermanent reports whether the metadata imposes no expiry.
func (c CacheMetadata) IsPermanent() bool {
	return c.MaxAge == Permanent
}

// Merge combines two contributors: tags and contexts are unioned and the
// most restrictive max-age wins.
func (c CacheMetadata) Merge(other CacheMetadata) CacheMetadata {
	return CacheMetadata{
		Tags:     normalizeSet(append(slices.Clone(c.Tags), other.Tags...)),
		Contexts: normalizeSet(append(slices.Clone(c.Contexts), other.Contexts...)),
		MaxAge:   minMaxAge(c.MaxAge, other.MaxAge),
	}
}

// UnmarshalYAML defaults max_age to Permanent when the key is absent.
func (c *CacheMetadata) UnmarshalYAML(node *yaml.Node) error {
	type plain CacheMetadata
	p := plain{MaxAge: Permanent}
	if err := node.Decode(&p); err != nil {
		return err
	}
	*c = CacheMetadata(p)
	c.Tags = normalizeSet(c.Tags)
	c.Contexts = normalizeSet(c.Contexts)
	return nil
}

func minMaxAge(a, b int) int {
	switch {
	case a == Permanent:
		return b
	case b == Permanent:
		return a
	case a < b:
		return a
	}
	return b
}

// normalizeSet sorts and deduplicates, returning nil for an empty set so
// that equal metadata compares equal.
func normalizeSet(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := slices.Clone(in)
	slices.Sort(out)
	out = slices.Compact(out)
	return out
}
