// Package vault implements the Credential Vault: at-rest encryption for SSH
// passwords and private keys. Grounded in shape on the teacher's remote-auth
// handling and on control-plane's internal/crypto package (master-key
// lookup, Encrypt/Decrypt, Mask), but with different primitives per §3 —
// AES-256-GCM with a scrypt-derived key rather than fernet — since the spec
// fixes the on-disk format to "iv:authTag:ciphertext" hex.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/scrypt"
)

// deploymentSalt is fixed per-deployment (not per-secret): the key derived
// from a master password is stable across restarts without persisting a
// separate salt file. Rotating it invalidates every encrypted record.
var deploymentSalt = []byte("termstation-credential-vault-v1")

const (
	keyLen   = 32 // AES-256
	scryptN  = 1 << 15
	scryptR  = 8
	scryptP  = 1
	nonceLen = 12 // GCM standard nonce size
)

var (
	// ErrInvalidFormat is returned when a stored value does not match the
	// "iv:authTag:ciphertext" hex layout.
	ErrInvalidFormat = errors.New("vault: invalid encrypted record format")
	// ErrAuthentication is returned when GCM tag verification fails — a
	// wrong master password or tampered ciphertext.
	ErrAuthentication = errors.New("vault: authentication failed")
)

// Vault derives an AES-256-GCM key from a master password and uses it to
// encrypt/decrypt credential fields. Plaintext secrets exist only in memory
// between Decrypt and use by the caller; the Vault itself never logs them.
type Vault struct {
	gcm cipher.AEAD
}

// New derives the vault's encryption key from masterPassword via scrypt and
// constructs the AES-256-GCM cipher. Deriving the key is deliberately slow
// (scrypt N=2^15); call this once at startup, not per-operation.
func New(masterPassword string) (*Vault, error) {
	if masterPassword == "" {
		return nil, errors.New("vault: master password must not be empty")
	}
	key, err := scrypt.Key([]byte(masterPassword), deploymentSalt, scryptN, scryptR, scryptP, keyLen)
	if err != nil {
		return nil, fmt.Errorf("vault: derive key: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("vault: new cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("vault: new gcm: %w", err)
	}
	return &Vault{gcm: gcm}, nil
}

// Encrypt seals plaintext and returns it as "iv:authTag:ciphertext", all hex.
// GCM appends the auth tag to the sealed output, so it is split back out
// before encoding for the wire/disk format the spec mandates.
func (v *Vault) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, nonceLen)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("vault: read nonce: %w", err)
	}
	sealed := v.gcm.Seal(nil, nonce, []byte(plaintext), nil)
	tagLen := v.gcm.Overhead()
	ciphertext := sealed[:len(sealed)-tagLen]
	authTag := sealed[len(sealed)-tagLen:]

	return strings.Join([]string{
		hex.EncodeToString(nonce),
		hex.EncodeToString(authTag),
		hex.EncodeToString(ciphertext),
	}, ":"), nil
}

// Decrypt reverses Encrypt. Returns ErrInvalidFormat for a malformed record
// and ErrAuthentication when the tag does not verify (wrong master password
// or tampered data).
func (v *Vault) Decrypt(record string) (string, error) {
	if record == "" {
		return "", nil
	}
	parts := strings.SplitN(record, ":", 3)
	if len(parts) != 3 {
		return "", ErrInvalidFormat
	}
	nonce, err := hex.DecodeString(parts[0])
	if err != nil {
		return "", ErrInvalidFormat
	}
	authTag, err := hex.DecodeString(parts[1])
	if err != nil {
		return "", ErrInvalidFormat
	}
	ciphertext, err := hex.DecodeString(parts[2])
	if err != nil {
		return "", ErrInvalidFormat
	}
	if len(nonce) != nonceLen {
		return "", ErrInvalidFormat
	}

	sealed := append(append([]byte{}, ciphertext...), authTag...)
	plaintext, err := v.gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", ErrAuthentication
	}
	return string(plaintext), nil
}

// Mask renders a secret for logs/UI display as four asterisks followed by
// its last four characters; a value of four characters or fewer renders as
// four asterisks only, and an empty value stays empty.
func Mask(value string) string {
	if value == "" {
		return ""
	}
	if len(value) > 4 {
		return "****" + value[len(value)-4:]
	}
	return "****"
}
