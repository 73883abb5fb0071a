package pagetree

import "github.com/microcosm-cc/bluemonday"

// PropErrorPolicy decides what a prop resolution failure does to a pass.
type PropErrorPolicy int

const (
	// PropErrorsPlaceholder substitutes the prop's declared default (or nil)
	// and keeps going. The error stays attached to the node.
	PropErrorsPlaceholder PropErrorPolicy = iota

	// PropErrorsEscalate hydrates the whole tree, then fails the pass with
	// every prop error joined. Used while authoring to surface validation
	// errors.
	PropErrorsEscalate
)

// Option configures Linearize, Hydrate, Assemble and the Engine.
//
//	engine := pagetree.New(defs, props,
//	    pagetree.WithSkipBrokenSubtrees(),
//	    pagetree.WithLocator(locator),
//	)
type Option func(*options)

type options struct {
	skipBroken bool
	propErrors PropErrorPolicy
	locator    AssetLocator
	policy     *bluemonday.Policy
}

func buildOptions(opts []Option) *options {
	o := &options{
		locator: DefaultLocator,
		policy:  bluemonday.UGCPolicy(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithSkipBrokenSubtrees drops a node whose definition cannot be resolved,
// together with its descendants, instead of failing the pass. The lookup
// error is reported as a diagnostic.
func WithSkipBrokenSubtrees() Option {
	return func(o *options) {
		o.skipBroken = true
	}
}

// WithPropErrorPolicy selects how prop resolution failures are handled.
func WithPropErrorPolicy(p PropErrorPolicy) Option {
	return func(o *options) {
		o.propErrors = p
	}
}

// WithLocator sets where code component scripts are served from.
func WithLocator(l AssetLocator) Option {
	return func(o *options) {
		if l != nil {
			o.locator = l
		}
	}
}

// WithHTMLPolicy replaces the sanitizer applied to html-format inline props.
func WithHTMLPolicy(p *bluemonday.Policy) Option {
	return func(o *options) {
		if p != nil {
			o.policy = p
		}
	}
}
