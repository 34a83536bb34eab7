package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"io"

	"github.com/flexprice/billingcore/internal/config"
	ierr "github.com/flexprice/billingcore/internal/errors"
	"github.com/samber/lo"
	"golang.org/x/crypto/hkdf"
)

// keyInfo binds derived keys to their use so the master key is never used directly
const keyInfo = "billingcore/provider-credentials/v1"

// Codec seals provider credentials with AES-256-GCM. New values are sealed
// with the current master key; values sealed under a previous key still open.
type Codec struct {
	current  cipher.AEAD
	previous []cipher.AEAD
}

// NewCodec builds the credentials codec from secrets configuration
func NewCodec(cfg *config.Configuration) (*Codec, error) {
	if cfg.Secrets.EncryptionKey == "" {
		return nil, ierr.NewError("master encryption key not configured").
			WithHint("Set secrets.encryption_key").
			Mark(ierr.ErrConfiguration)
	}

	current, err := newAEAD(cfg.Secrets.EncryptionKey)
	if err != nil {
		return nil, err
	}

	c := &Codec{current: current}
	for _, key := range lo.Compact(cfg.Secrets.PreviousKeys) {
		aead, err := newAEAD(key)
		if err != nil {
			return nil, err
		}
		c.previous = append(c.previous, aead)
	}
	return c, nil
}

func newAEAD(master string) (cipher.AEAD, error) {
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(master), nil, []byte(keyInfo)), key); err != nil {
		return nil, ierr.WithError(err).WithHint("Failed to derive encryption key").Mark(ierr.ErrSystem)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, ierr.WithError(err).WithHint("Failed to create cipher block").Mark(ierr.ErrSystem)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, ierr.WithError(err).WithHint("Failed to create GCM").Mark(ierr.ErrSystem)
	}
	return aead, nil
}

// Encrypt returns base64(nonce || ciphertext). Empty input stays empty.
func (c *Codec) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	nonce := make([]byte, c.current.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", ierr.WithError(err).WithHint("Failed to generate nonce").Mark(ierr.ErrSystem)
	}

	sealed := c.current.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (c *Codec) Decrypt(ciphertext string) (string, error) {
	if ciphertext == "" {
		return "", nil
	}

	decoded, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", ierr.WithError(err).WithHint("Stored credential is not valid base64").Mark(ierr.ErrValidation)
	}

	for _, aead := range append([]cipher.AEAD{c.current}, c.previous...) {
		nonceSize := aead.NonceSize()
		if len(decoded) < nonceSize {
			break
		}
		if plaintext, err := aead.Open(nil, decoded[:nonceSize], decoded[nonceSize:], nil); err == nil {
			return string(plaintext), nil
		}
	}

	return "", ierr.NewError("ciphertext could not be opened with any configured key").
		WithHint("Stored credential could not be decrypted").
		Mark(ierr.ErrValidation)
}
