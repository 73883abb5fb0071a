package pagetree

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/pthm/pagetree/lib/ctxlog"
)

const instrumentationName = "github.com/pthm/pagetree"

// Engine runs render passes against a pair of collaborators. It holds no
// per-pass state, so one Engine may serve concurrent requests.
type Engine struct {
	defs   DefinitionResolver
	props  PropResolver
	opts   []Option
	tracer trace.Tracer
}

// New creates an engine. A nil props resolver means StaticProps.
func New(defs DefinitionResolver, props PropResolver, opts ...Option) *Engine {
	if props == nil {
		props = StaticProps
	}
	return &Engine{
		defs:   defs,
		props:  props,
		opts:   opts,
		tracer: otel.Tracer(instrumentationName),
	}
}

// Run performs one pass: linearize, hydrate, assemble.
//
// A structural error, or a definition lookup error without
// WithSkipBrokenSubtrees, aborts the pass and no page is returned. Prop
// resolution errors stay on their nodes (see PropErrorPolicy) and are also
// listed in Page.Diagnostics.
//
// records is treated as an immutable snapshot for the duration of the call.
func (e *Engine) Run(ctx context.Context, records []PlacementRecord, preview bool) (*Page, error) {
	start := time.Now()
	logger := ctxlog.FromContext(ctx).With("preview", preview)
	ctx = ctxlog.WithLogger(ctx, logger)

	ctx, span := e.tracer.Start(ctx, "pagetree.run", trace.WithAttributes(
		attribute.Int("pagetree.records", len(records)),
		attribute.Bool("pagetree.preview", preview),
	))
	defer span.End()

	page, err := e.run(ctx, records, preview)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Warn("pass aborted", "error", err, "uuid", ErrorUUID(err))
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("pagetree.roots", len(page.Roots)),
		attribute.Int("pagetree.diagnostics", len(page.Diagnostics)),
		attribute.Int("pagetree.max_age", page.Cache().MaxAge),
	)
	logger.Debug("pass complete", "roots", len(page.Roots), "diagnostics", len(page.Diagnostics), "elapsed", time.Since(start))
	return page, nil
}

func (e *Engine) run(ctx context.Context, records []PlacementRecord, preview bool) (*Page, error) {
	lctx, span := e.tracer.Start(ctx, "pagetree.linearize")
	roots, diags, err := Linearize(lctx, records, e.defs, e.opts...)
	endSpan(span, err)
	if err != nil {
		return nil, err
	}

	hctx, span := e.tracer.Start(ctx, "pagetree.hydrate")
	hydrated, hdiags, err := Hydrate(hctx, roots, e.props, e.defs, preview, e.opts...)
	endSpan(span, err)
	if err != nil {
		return nil, err
	}
	diags = append(diags, hdiags...)

	actx, span := e.tracer.Start(ctx, "pagetree.assemble")
	defer span.End()

	page := &Page{Preview: preview, Roots: make([]Descriptor, 0, len(hydrated))}
	for _, h := range hydrated {
		d, err := Assemble(actx, h, preview, e.opts...)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		page.Roots = append(page.Roots, d)
		for _, pe := range collectPropErrors(h) {
			diags = append(diags, pe)
		}
	}
	page.Diagnostics = diags
	return page, nil
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// collectPropErrors lists the prop errors of a hydrated subtree in
// canonical order.
func collectPropErrors(n HydratedNode) []*PropResolutionError {
	errs := append([]*PropResolutionError(nil), n.PropErrors...)
	for _, s := range n.Slots {
		for _, c := range s.Children {
			errs = append(errs, collectPropErrors(c)...)
		}
	}
	return errs
}
