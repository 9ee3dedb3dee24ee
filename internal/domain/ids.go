package domain

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Pubkey is a 32-byte Ed25519 public key. It identifies users, operators,
// the settlement signer and markets. The zero key means "none".
type Pubkey [32]byte

// Hash is a 32-byte digest (order hashes, termination digests).
type Hash [32]byte

// Signature is a 64-byte Ed25519 signature.
type Signature [64]byte

// IsZero reports whether the key is unset.
func (p Pubkey) IsZero() bool { return p == Pubkey{} }

func (p Pubkey) String() string { return hexutil.Encode(p[:]) }

// MarshalText encodes the key as 0x-prefixed hex.
func (p Pubkey) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// UnmarshalText decodes a 0x-prefixed hex key.
func (p *Pubkey) UnmarshalText(text []byte) error {
	return decodeFixed(p[:], string(text), "pubkey")
}

// ParsePubkey decodes a 0x-prefixed hex string into a Pubkey.
func ParsePubkey(s string) (Pubkey, error) {
	var p Pubkey
	if err := p.UnmarshalText([]byte(s)); err != nil {
		return Pubkey{}, err
	}
	return p, nil
}

// PubkeyFromBytes copies b into a Pubkey. b must be exactly 32 bytes.
func PubkeyFromBytes(b []byte) (Pubkey, error) {
	var p Pubkey
	if len(b) != len(p) {
		return Pubkey{}, fmt.Errorf("pubkey: want %d bytes, got %d", len(p), len(b))
	}
	copy(p[:], b)
	return p, nil
}

// IsZero reports whether the hash is unset.
func (h Hash) IsZero() bool { return h == Hash{} }

func (h Hash) String() string { return hexutil.Encode(h[:]) }

// MarshalText encodes the hash as 0x-prefixed hex.
func (h Hash) MarshalText() ([]byte, error) { return []byte(h.String()), nil }

// UnmarshalText decodes a 0x-prefixed hex hash.
func (h *Hash) UnmarshalText(text []byte) error {
	return decodeFixed(h[:], string(text), "hash")
}

// HashFromBytes copies b into a Hash. b must be exactly 32 bytes.
func HashFromBytes(b []byte) (Hash, error) {
	var h Hash
	if len(b) != len(h) {
		return Hash{}, fmt.Errorf("hash: want %d bytes, got %d", len(h), len(b))
	}
	copy(h[:], b)
	return h, nil
}

func (s Signature) String() string { return hexutil.Encode(s[:]) }

// MarshalText encodes the signature as 0x-prefixed hex.
func (s Signature) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText decodes a 0x-prefixed hex signature.
func (s *Signature) UnmarshalText(text []byte) error {
	return decodeFixed(s[:], string(text), "signature")
}

func decodeFixed(dst []byte, s, what string) error {
	raw, err := hexutil.Decode(s)
	if err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	if len(raw) != len(dst) {
		return fmt.Errorf("%s: want %d bytes, got %d", what, len(dst), len(raw))
	}
	copy(dst, raw)
	return nil
}
