package pagetree

import (
	"github.com/pthm/pagetree/lib/encoding"
)

// Encoder is an alias for encoding.Encoder for convenience. It signs the
// draft URL tokens minted by SignedLocator.
type Encoder = encoding.Encoder

// NewEncoder creates a new encoder with the given signing key.
func NewEncoder(key []byte) (*Encoder, error) {
	return encoding.NewEncoder(key)
}

// NewSignedLocator returns a locator whose draft URLs carry tokens signed
// with key. An empty key disables tokens.
func NewSignedLocator(assetPrefix, draftPrefix string, key []byte) (*SignedLocator, error) {
	l := &SignedLocator{AssetPrefix: assetPrefix, DraftPrefix: draftPrefix}
	if len(key) == 0 {
		return l, nil
	}
	enc, err := NewEncoder(key)
	if err != nil {
		return nil, err
	}
	l.Encoder = enc
	return l, nil
}
