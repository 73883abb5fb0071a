package pagetree

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/a-h/templ"

	"github.com/pthm/pagetree/lib/ctxlog"
)

// Markup serializes a descriptor tree into instrumented HTML.
//
// Each node's renderer output is bracketed by its node markers, and every
// slot's children (or default content) by its slot markers. Renderers are
// picked by kind; kinds without one use FallbackRenderer.
//
// A renderer failure is isolated to its node: the node renders as an error
// marker between its node markers and the rest of the page still renders.
//
//	page, _ := engine.Run(ctx, records, false)
//	for _, root := range page.Roots {
//	    pagetree.Markup(root, renderers).Render(ctx, w)
//	}
func Markup(d Descriptor, renderers Renderers) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		return writeNode(ctx, w, d, renderers)
	})
}

func writeNode(ctx context.Context, w io.Writer, d Descriptor, renderers Renderers) error {
	b := d.Base()

	slots := make(map[string]templ.Component, len(b.Slots))
	for _, s := range b.Slots {
		slots[s.Name] = slotMarkup(s, renderers)
	}

	r := renderers[d.Kind()]
	if r == nil {
		r = FallbackRenderer
	}

	var buf bytes.Buffer
	if c := r.Render(ctx, d, slots); c != nil {
		if err := c.Render(ctx, &buf); err != nil {
			ctxlog.FromContext(ctx).Warn("markup: renderer failed", "uuid", b.UUID, "kind", d.Kind(), "error", err)
			_, err = io.WriteString(w, b.Markers.Wrap(ErrorMarker(b.UUID)))
			return err
		}
	}

	if _, err := io.WriteString(w, b.Markers.Start); err != nil {
		return err
	}
	if _, err := w.Write(buf.Bytes()); err != nil {
		return err
	}
	_, err := io.WriteString(w, b.Markers.End)
	return err
}

// slotMarkup renders one slot bracketed by its markers. Default content is
// already markup and is written verbatim.
func slotMarkup(s SlotDescriptor, renderers Renderers) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, s.Markers.Start); err != nil {
			return err
		}
		if s.UsedDefault {
			if _, err := io.WriteString(w, s.DefaultContent); err != nil {
				return err
			}
		}
		for _, child := range s.Children {
			if err := writeNode(ctx, w, child, renderers); err != nil {
				return err
			}
		}
		_, err := io.WriteString(w, s.Markers.End)
		return err
	})
}

// FallbackRenderer renders a neutral wrapper: the inline props, escaped
// settings for blocks, a module script tag for code components, then every
// slot in declared order.
var FallbackRenderer Renderer = RendererFunc(func(_ context.Context, d Descriptor, slots map[string]templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		b := d.Base()

		var sb strings.Builder
		sb.WriteString(`<div data-pagetree-component="`)
		sb.WriteString(html.EscapeString(b.ComponentID))
		sb.WriteString(`" data-pagetree-kind="`)
		sb.WriteString(html.EscapeString(string(d.Kind())))
		sb.WriteString(`">`)

		for _, name := range slices.Sorted(maps.Keys(b.Inline)) {
			sb.WriteString(`<span data-pagetree-prop="`)
			sb.WriteString(html.EscapeString(name))
			sb.WriteString(`">`)
			sb.WriteString(b.Inline[name].Markup)
			sb.WriteString(`</span>`)
		}

		if block, ok := d.(*BlockDescriptor); ok {
			for _, name := range slices.Sorted(maps.Keys(block.Settings)) {
				v := block.Settings[name]
				if v == nil {
					continue
				}
				sb.WriteString(`<span data-pagetree-setting="`)
				sb.WriteString(html.EscapeString(name))
				sb.WriteString(`">`)
				sb.WriteString(html.EscapeString(fmt.Sprint(v)))
				sb.WriteString(`</span>`)
			}
		}

		if code, ok := d.(*CodeDescriptor); ok && code.ScriptURL != "" {
			sb.WriteString(`<script type="module" src="`)
			sb.WriteString(html.EscapeString(code.ScriptURL))
			sb.WriteString(`"></script>`)
		}

		if _, err := io.WriteString(w, sb.String()); err != nil {
			return err
		}
		for _, s := range b.Slots {
			if c := slots[s.Name]; c != nil {
				if err := c.Render(ctx, w); err != nil {
					return err
				}
			}
		}
		_, err := io.WriteString(w, `</div>`)
		return err
	})
})
