package pagetree

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/pthm/pagetree/lib/encoding"
)

// AssetLocator decides where externally mutable resources, such as a code
// component's compiled script, are served from.
type AssetLocator interface {
	Published(def *Definition) string
	Draft(def *Definition) string
}

// DefaultLocator serves published scripts from /pagetree/assets and drafts
// from /pagetree/draft without signed tokens.
var DefaultLocator AssetLocator = &SignedLocator{}

const draftPurpose = "pagetree.draft"

// SignedLocator builds asset URLs from prefixes. With an Encoder set, draft
// URLs carry a signed token so the draft-serving endpoint can verify which
// component version it was asked for. Encrypt makes the token opaque, for
// drafts whose component id or version should not be readable from the URL.
type SignedLocator struct {
	AssetPrefix string // default "/pagetree/assets"
	DraftPrefix string // default "/pagetree/draft"
	Encoder     *encoding.Encoder
	Encrypt     bool
}

// draftToken is the payload of a draft URL token.
type draftToken struct {
	ComponentID string
	Version     string
}

func (t draftToken) TokenFields() map[string]any {
	return map[string]any{"c": t.ComponentID, "v": t.Version}
}

func (t *draftToken) SetTokenFields(m map[string]any) error {
	id, ok1 := m["c"].(string)
	version, ok2 := m["v"].(string)
	if !ok1 || !ok2 || id == "" {
		return fmt.Errorf("%w: draft token fields", encoding.ErrInvalidFormat)
	}
	t.ComponentID, t.Version = id, version
	return nil
}

// Published returns the definition's script, or one derived from the asset
// prefix.
func (l *SignedLocator) Published(def *Definition) string {
	if def.Script != "" {
		return def.Script
	}
	return assetPath(orDefault(l.AssetPrefix, "/pagetree/assets"), def)
}

// Draft returns the draft-serving URL for the definition.
func (l *SignedLocator) Draft(def *Definition) string {
	u := assetPath(orDefault(l.DraftPrefix, "/pagetree/draft"), def)
	if l.Encoder == nil {
		return u
	}
	token, err := l.Encoder.Seal(draftPurpose, draftToken{ComponentID: def.ID, Version: def.Version}, l.Encrypt)
	if err != nil {
		return u
	}
	return u + "?t=" + url.QueryEscape(token)
}

// VerifyDraft checks a draft URL token and returns the component id and
// version it was minted for.
func (l *SignedLocator) VerifyDraft(token string) (componentID, version string, err error) {
	if l.Encoder == nil {
		return "", "", fmt.Errorf("pagetree: draft tokens are not enabled")
	}
	var t draftToken
	if err := l.Encoder.Open(draftPurpose, token, l.Encrypt, &t); err != nil {
		return "", "", fmt.Errorf("pagetree: draft token: %w", err)
	}
	return t.ComponentID, t.Version, nil
}

func assetPath(prefix string, def *Definition) string {
	v := def.Version
	if v == "" {
		v = "latest"
	}
	return strings.TrimSuffix(prefix, "/") + "/" + url.PathEscape(def.ID) + "/" + url.PathEscape(v) + ".js"
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
