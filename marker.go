package pagetree

import "strings"

// Markers are the invisible start/end comments the visual editor uses to
// map DOM regions back to tree nodes.
type Markers struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Wrap brackets content with the markers.
func (m Markers) Wrap(content string) string {
	return m.Start + content + m.End
}

const markerPrefix = "pagetree-"

// NodeMarkers returns the markers around a node's rendered output.
func NodeMarkers(uuid string) Markers {
	return markers("start:"+uuid, "end:"+uuid)
}

// SlotMarkers returns the markers around a slot's content.
func SlotMarkers(uuid, slot string) Markers {
	ref := uuid + "/" + slot
	return markers("slot-start:"+ref, "slot-end:"+ref)
}

// PropMarkers returns the markers around an inline-renderable prop value.
func PropMarkers(uuid, prop string) Markers {
	ref := uuid + "/" + prop
	return markers("prop-start:"+ref, "prop-end:"+ref)
}

// ErrorMarker marks a node whose renderer failed.
func ErrorMarker(uuid string) string {
	return comment("error:" + uuid)
}

func markers(start, end string) Markers {
	return Markers{Start: comment(start), End: comment(end)}
}

// comment renders an HTML comment. "--" cannot appear inside a comment, so
// runs of dashes are split until none is left; uuids and slot names never
// legitimately contain them. The space before the closing delimiter keeps a
// trailing dash from joining it.
func comment(body string) string {
	for strings.Contains(body, "--") {
		body = strings.ReplaceAll(body, "--", "- -")
	}
	return "<!-- " + markerPrefix + body + " -->"
}
