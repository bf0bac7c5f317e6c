package middleware

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aretw0/mjtree/pkg/domain"
	"github.com/aretw0/mjtree/pkg/ports"
)

// sealedPrefix marks markup that holds an encrypted payload.
const sealedPrefix = "sealed:v1:"

// ErrNotSealed is returned when a stored template was written without encryption.
var ErrNotSealed = errors.New("template is missing encrypted data envelope")

// EncryptionConfig holds the keys for encryption and decryption.
type EncryptionConfig struct {
	// ActiveKey is the key used for encrypting new data.
	// Must be 32 bytes for AES-256.
	ActiveKey []byte

	// FallbackKeys is a list of old keys to try when decryption fails.
	// This enables zero-downtime key rotation.
	FallbackKeys [][]byte
}

// payload is the part of a template that is encrypted. Name, mode and
// timestamps stay readable so that listing and ordering keep working.
type payload struct {
	Markup string        `json:"markup"`
	Tree   domain.Forest `json:"tree,omitempty"`
}

type encryptionMiddleware struct {
	next   ports.TemplateStore
	config EncryptionConfig
}

// NewEncryptionMiddleware creates a middleware that encrypts template markup
// and trees using AES-GCM before they reach the wrapped store.
func NewEncryptionMiddleware(config EncryptionConfig) Middleware {
	if len(config.ActiveKey) != 32 {
		panic("active key must be 32 bytes (AES-256)")
	}
	return func(next ports.TemplateStore) ports.TemplateStore {
		return keepWatch(&encryptionMiddleware{next: next, config: config}, next)
	}
}

// ParseKey decodes a base64 AES-256 key.
func ParseKey(encoded string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return nil, fmt.Errorf("failed to decode key base64: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("key must be 32 bytes (AES-256), got %d", len(key))
	}
	return key, nil
}

func (m *encryptionMiddleware) Save(ctx context.Context, tpl *domain.Template) (*domain.Template, error) {
	plainText, err := json.Marshal(payload{Markup: tpl.Markup, Tree: tpl.Tree})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal template: %w", err)
	}

	ciphertext, err := encrypt(plainText, m.config.ActiveKey)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt template: %w", err)
	}

	envelope := &domain.Template{
		Name:      tpl.Name,
		Markup:    sealedPrefix + base64.StdEncoding.EncodeToString(ciphertext),
		Mode:      tpl.Mode,
		CreatedAt: tpl.CreatedAt,
	}
	stored, err := m.next.Save(ctx, envelope)
	if err != nil {
		return nil, err
	}

	out := tpl.Clone()
	out.Mode = stored.Mode
	out.CreatedAt = stored.CreatedAt
	out.LastEditedAt = stored.LastEditedAt
	return out, nil
}

func (m *encryptionMiddleware) Get(ctx context.Context, name string) (*domain.Template, error) {
	envelope, err := m.next.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	return m.open(envelope)
}

func (m *encryptionMiddleware) List(ctx context.Context) ([]*domain.Template, error) {
	envelopes, err := m.next.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Template, 0, len(envelopes))
	for _, e := range envelopes {
		t, err := m.open(e)
		if err != nil {
			return nil, fmt.Errorf("template %q: %w", e.Name, err)
		}
		out = append(out, t)
	}
	return out, nil
}

func (m *encryptionMiddleware) Delete(ctx context.Context, name string) error {
	return m.next.Delete(ctx, name)
}

func (m *encryptionMiddleware) open(envelope *domain.Template) (*domain.Template, error) {
	encoded, ok := strings.CutPrefix(envelope.Markup, sealedPrefix)
	if !ok {
		// Fail secure: a plain template in an encrypted store was not written by us.
		return nil, ErrNotSealed
	}

	ciphertext, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode ciphertext base64: %w", err)
	}

	plainText, err := decryptWithRotation(ciphertext, m.config.ActiveKey, m.config.FallbackKeys)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt template: %w", err)
	}

	var p payload
	if err := json.Unmarshal(plainText, &p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal decrypted template: %w", err)
	}

	out := *envelope
	out.Markup = p.Markup
	out.Tree = p.Tree
	return &out, nil
}

// Helpers

func encrypt(plaintext []byte, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func decryptWithRotation(ciphertext []byte, activeKey []byte, fallbackKeys [][]byte) ([]byte, error) {
	if plain, err := decrypt(ciphertext, activeKey); err == nil {
		return plain, nil
	}

	for _, key := range fallbackKeys {
		if plain, err := decrypt(ciphertext, key); err == nil {
			return plain, nil
		}
	}

	return nil, errors.New("decryption failed with all available keys")
}

func decrypt(ciphertext []byte, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}

	nonce := ciphertext[:gcm.NonceSize()]
	ciphertextBytes := ciphertext[gcm.NonceSize():]

	return gcm.Open(nil, nonce, ciphertextBytes, nil)
}
