// Package delegation implements the two-token protocol the external AI
// agent uses to invoke ticket operations on behalf of an organization
// member. The tool-context token scopes which tenant's integration is
// calling; the per-call user token scopes which member is acting. Both
// verifications fail closed.
package delegation

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
)

// ContextPayload is the plaintext of a tool-context token. All fields are
// required; a payload missing any of them is rejected on open.
type ContextPayload struct {
	MemberID         string `json:"member_id"`
	MemberEmail      string `json:"member_email"`
	OrganizationID   string `json:"organization_id"`
	OrganizationName string `json:"organization_name"`
}

func (p *ContextPayload) validate() error {
	if p.MemberID == "" || p.MemberEmail == "" || p.OrganizationID == "" || p.OrganizationName == "" {
		return errors.New("context payload missing required field")
	}
	return nil
}

// TokenSealer encrypts and decrypts tool-context tokens with AES-256-GCM.
// A failed open is the tamper signal; callers translate any error into the
// uniform authorization denial.
type TokenSealer struct {
	aead cipher.AEAD
}

// NewTokenSealer derives the sealing key from the configured secret.
func NewTokenSealer(secret string) (*TokenSealer, error) {
	if secret == "" {
		return nil, errors.New("delegation context secret required")
	}
	key := sha256.Sum256([]byte(secret))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &TokenSealer{aead: aead}, nil
}

// Seal produces the opaque token string: base64url(nonce || ciphertext).
func (s *TokenSealer) Seal(payload ContextPayload) (string, error) {
	if err := payload.validate(); err != nil {
		return "", err
	}
	plaintext, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	sealed := s.aead.Seal(nonce, nonce, plaintext, nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Open decrypts and validates a token. Every failure mode (bad encoding,
// truncated blob, tampered ciphertext, unparseable or incomplete payload)
// returns an error with no further detail.
func (s *TokenSealer) Open(token string) (*ContextPayload, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, errors.New("malformed context token")
	}
	if len(raw) < s.aead.NonceSize() {
		return nil, errors.New("malformed context token")
	}
	nonce, ciphertext := raw[:s.aead.NonceSize()], raw[s.aead.NonceSize():]
	plaintext, err := s.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, errors.New("context token rejected")
	}
	var payload ContextPayload
	if err := json.Unmarshal(plaintext, &payload); err != nil {
		return nil, errors.New("context token rejected")
	}
	if err := payload.validate(); err != nil {
		return nil, err
	}
	return &payload, nil
}
