// Package encoding seals small values into URL-safe tokens.
//
// Tokens are msgpack payloads that are either signed (visible but
// tamper-proof) or encrypted with AES-256-GCM (opaque). Every token is bound
// to a purpose string so a token minted for one locator cannot be replayed
// against another.
package encoding

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
)

// Sentinel errors returned by Open.
var (
	ErrInvalidFormat    = errors.New("encoding: invalid token format")
	ErrSignatureInvalid = errors.New("encoding: signature verification failed")
	ErrDecryptFailed    = errors.New("encoding: token decryption failed")
)

// sigLen is the truncated HMAC length in bytes (128 bits).
const sigLen = 16

// Encoder seals and opens tokens with a single key.
type Encoder struct {
	key []byte
	gcm cipher.AEAD
}

// NewEncoder creates an encoder. Keys shorter than 32 bytes are stretched
// with SHA-256.
func NewEncoder(key []byte) (*Encoder, error) {
	if len(key) == 0 {
		return nil, errors.New("encoding: empty key")
	}
	if len(key) < 32 {
		h := sha256.Sum256(key)
		key = h[:]
	}

	block, err := aes.NewCipher(key[:32])
	if err != nil {
		return nil, fmt.Errorf("encoding: cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("encoding: gcm: %w", err)
	}

	return &Encoder{key: key, gcm: gcm}, nil
}

// Encodable is implemented by types that provide their own wire map.
type Encodable interface {
	TokenFields() map[string]any
}

// Decodable is the counterpart of Encodable.
type Decodable interface {
	SetTokenFields(map[string]any) error
}

// Seal serializes v for purpose. Sensitive tokens are encrypted, the rest
// are signed.
func (e *Encoder) Seal(purpose string, v any, sensitive bool) (string, error) {
	var (
		packed []byte
		err    error
	)
	if enc, ok := v.(Encodable); ok {
		packed, err = msgpack.Marshal(enc.TokenFields())
	} else {
		packed, err = msgpack.Marshal(v)
	}
	if err != nil {
		return "", fmt.Errorf("encoding: marshal: %w", err)
	}

	if sensitive {
		return e.encrypt(purpose, packed)
	}
	return e.sign(purpose, packed), nil
}

// Open reverses Seal. The purpose and sensitivity must match the ones used
// to seal the token.
func (e *Encoder) Open(purpose, token string, sensitive bool, v any) error {
	var (
		packed []byte
		err    error
	)
	if sensitive {
		packed, err = e.decrypt(purpose, token)
	} else {
		packed, err = e.verify(purpose, token)
	}
	if err != nil {
		return err
	}

	if dec, ok := v.(Decodable); ok {
		var m map[string]any
		if err := msgpack.Unmarshal(packed, &m); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidFormat, err)
		}
		return dec.SetTokenFields(m)
	}
	if err := msgpack.Unmarshal(packed, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	return nil
}

func (e *Encoder) mac(purpose string, data []byte) []byte {
	m := hmac.New(sha256.New, e.key)
	m.Write([]byte(purpose))
	m.Write([]byte{0})
	m.Write(data)
	return m.Sum(nil)[:sigLen]
}

// sign produces payload.signature, both base64url without padding.
func (e *Encoder) sign(purpose string, data []byte) string {
	return base64.RawURLEncoding.EncodeToString(data) + "." +
		base64.RawURLEncoding.EncodeToString(e.mac(purpose, data))
}

func (e *Encoder) verify(purpose, token string) ([]byte, error) {
	payload, sigPart, ok := strings.Cut(token, ".")
	if !ok {
		return nil, fmt.Errorf("%w: missing signature", ErrInvalidFormat)
	}
	data, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	sig, err := base64.RawURLEncoding.DecodeString(sigPart)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	if !hmac.Equal(sig, e.mac(purpose, data)) {
		return nil, ErrSignatureInvalid
	}
	return data, nil
}

// encrypt seals data with the purpose as additional authenticated data.
func (e *Encoder) encrypt(purpose string, data []byte) (string, error) {
	nonce := make([]byte, e.gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("encoding: nonce: %w", err)
	}
	sealed := e.gcm.Seal(nonce, nonce, data, []byte(purpose))
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

func (e *Encoder) decrypt(purpose, token string) ([]byte, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	n := e.gcm.NonceSize()
	if len(raw) < n {
		return nil, fmt.Errorf("%w: token too short", ErrInvalidFormat)
	}
	data, err := e.gcm.Open(nil, raw[:n], raw[n:], []byte(purpose))
	if err != nil {
		return nil, ErrDecryptFailed
	}
	return data, nil
}
