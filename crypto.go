// FILE: lixenwraith/confbind/crypto.go
package confbind

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

// Argon2id parameters used by DeriveKey.
const (
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
)

// Decryptor decrypts values tagged with its name. Ciphertexts are base64(nonce || sealed)
// under XChaCha20-Poly1305.
type Decryptor struct {
	name string
	aead cipher.AEAD
}

// NewDecryptor creates a decryptor for the provider name with a 32-byte key.
func NewDecryptor(name string, key []byte) (*Decryptor, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: decryptor name cannot be empty", ErrInvalidAttributes)
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("decryptor %q: %w", name, err)
	}
	return &Decryptor{name: name, aead: aead}, nil
}

// NewPassphraseDecryptor derives the key from passphrase and salt with argon2id.
func NewPassphraseDecryptor(name, passphrase string, salt []byte) (*Decryptor, error) {
	return NewDecryptor(name, DeriveKey(passphrase, salt))
}

// DeriveKey stretches a passphrase into a 32-byte key.
func DeriveKey(passphrase string, salt []byte) []byte {
	return argon2.IDKey([]byte(passphrase), salt, argonTime, argonMemory, argonThreads, chacha20poly1305.KeySize)
}

// Name returns the provider name matched against encrypted tags.
func (d *Decryptor) Name() string { return d.name }

// Process decrypts records tagged with the decryptor's name and clears the tag.
// Records tagged for another provider, or not tagged at all, are left untouched.
func (d *Decryptor) Process(rec *ValueRecord) error {
	if rec.EncryptionProvider != d.name {
		return nil
	}
	s, ok := rec.Value.Get()
	if !ok {
		rec.EncryptionProvider = ""
		return nil
	}
	plain, err := d.Decrypt(s)
	if err != nil {
		return fmt.Errorf("%w: key %q: %v", ErrValueFormat, rec.Key, err)
	}
	rec.Value = Of(plain)
	rec.EncryptionProvider = ""
	return nil
}

// Decrypt opens a ciphertext produced by Encrypt.
func (d *Decryptor) Decrypt(ciphertext string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("decryptor %q: invalid encoding: %w", d.name, err)
	}
	ns := d.aead.NonceSize()
	if len(raw) < ns+d.aead.Overhead() {
		return "", fmt.Errorf("decryptor %q: ciphertext too short", d.name)
	}
	plain, err := d.aead.Open(nil, raw[:ns], raw[ns:], nil)
	if err != nil {
		return "", fmt.Errorf("decryptor %q: %w", d.name, err)
	}
	return string(plain), nil
}

// Encrypt seals plaintext with a random nonce.
func (d *Decryptor) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, d.aead.NonceSize(), d.aead.NonceSize()+len(plaintext)+d.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("nonce generation failed: %w", err)
	}
	sealed := d.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}
