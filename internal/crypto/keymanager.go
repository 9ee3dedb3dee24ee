// Package crypto provides the Ed25519 signer used for orders and settlement
// messages, password-sealed storage of its seed, and HMAC request signing
// for the operator API.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"golang.org/x/crypto/pbkdf2"
)

const (
	pbkdf2Iterations = 480_000
	saltLen          = 16
	aesKeyLen        = 32
	sealVersion      = 1
)

// sealedSeed is the on-disk format of a password-protected Ed25519 seed.
type sealedSeed struct {
	Version    int    `json:"version"`
	PublicKey  string `json:"public_key"`
	Salt       string `json:"salt"`
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
}

// KeyConfig says where the settlement signer's seed comes from.
type KeyConfig struct {
	// RawSeed is a 0x-prefixed hex seed. It wins over SealedPath.
	RawSeed string
	// SealedPath points at a file produced by SealSeed.
	SealedPath string
	Password   string
}

// SealSeed encrypts an Ed25519 seed with a password (PBKDF2-HMAC-SHA256,
// AES-256-GCM) and returns the JSON blob to store.
func SealSeed(seed []byte, password string) ([]byte, error) {
	if password == "" {
		return nil, errors.New("crypto: password must not be empty")
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("crypto: expected %d-byte seed, got %d", ed25519.SeedSize, len(seed))
	}

	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("crypto: generating salt: %w", err)
	}
	gcm, err := newGCM(password, salt)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("crypto: generating nonce: %w", err)
	}

	pub := ed25519.NewKeyFromSeed(seed).Public().(ed25519.PublicKey)
	// The public key is bound as associated data so a swapped header fails to open.
	ciphertext := gcm.Seal(nil, nonce, seed, pub)

	return json.MarshalIndent(sealedSeed{
		Version:    sealVersion,
		PublicKey:  hexutil.Encode(pub),
		Salt:       base64.StdEncoding.EncodeToString(salt),
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
		Ciphertext: base64.StdEncoding.EncodeToString(ciphertext),
	}, "", "  ")
}

// OpenSeed reverses SealSeed.
func OpenSeed(blob []byte, password string) ([]byte, error) {
	if password == "" {
		return nil, errors.New("crypto: password must not be empty")
	}
	var stored sealedSeed
	if err := json.Unmarshal(blob, &stored); err != nil {
		return nil, fmt.Errorf("crypto: parsing sealed seed: %w", err)
	}
	if stored.Version != sealVersion {
		return nil, fmt.Errorf("crypto: unsupported version %d", stored.Version)
	}

	pub, err := hexutil.Decode(stored.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("crypto: decoding public key: %w", err)
	}
	salt, err := base64.StdEncoding.DecodeString(stored.Salt)
	if err != nil {
		return nil, fmt.Errorf("crypto: decoding salt: %w", err)
	}
	nonce, err := base64.StdEncoding.DecodeString(stored.Nonce)
	if err != nil {
		return nil, fmt.Errorf("crypto: decoding nonce: %w", err)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(stored.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("crypto: decoding ciphertext: %w", err)
	}

	gcm, err := newGCM(password, salt)
	if err != nil {
		return nil, err
	}
	seed, err := gcm.Open(nil, nonce, ciphertext, pub)
	if err != nil {
		return nil, fmt.Errorf("crypto: decryption failed (wrong password?): %w", err)
	}
	return seed, nil
}

// LoadSigner resolves the settlement signer from cfg.
func LoadSigner(cfg KeyConfig) (*Signer, error) {
	if cfg.RawSeed != "" {
		return NewSignerFromHex(cfg.RawSeed)
	}
	if cfg.SealedPath != "" {
		blob, err := os.ReadFile(cfg.SealedPath)
		if err != nil {
			return nil, fmt.Errorf("crypto: reading sealed seed: %w", err)
		}
		seed, err := OpenSeed(blob, cfg.Password)
		if err != nil {
			return nil, err
		}
		return NewSigner(seed)
	}
	return nil, errors.New("crypto: no signer source configured (set RawSeed or SealedPath)")
}

func newGCM(password string, salt []byte) (cipher.AEAD, error) {
	derived := pbkdf2.Key([]byte(password), salt, pbkdf2Iterations, aesKeyLen, sha256.New)
	block, err := aes.NewCipher(derived)
	if err != nil {
		return nil, fmt.Errorf("crypto: creating cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("crypto: creating GCM: %w", err)
	}
	return gcm, nil
}
