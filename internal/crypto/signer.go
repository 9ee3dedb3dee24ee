package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/alanyoungcy/marketengine/internal/domain"
	"github.com/alanyoungcy/marketengine/internal/order"
)

// Signer holds an Ed25519 key and produces the signatures the engine
// verifies: order signatures and settlement-message signatures.
type Signer struct {
	key    ed25519.PrivateKey
	public domain.Pubkey
}

// NewSigner creates a Signer from a 32-byte seed.
func NewSigner(seed []byte) (*Signer, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("crypto/signer: seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	key := ed25519.NewKeyFromSeed(seed)
	s := &Signer{key: key}
	copy(s.public[:], key.Public().(ed25519.PublicKey))
	return s, nil
}

// NewSignerFromHex creates a Signer from a 0x-prefixed hex seed.
func NewSignerFromHex(seedHex string) (*Signer, error) {
	seed, err := hexutil.Decode(seedHex)
	if err != nil {
		return nil, fmt.Errorf("crypto/signer: invalid seed: %w", err)
	}
	return NewSigner(seed)
}

// GenerateSigner creates a Signer with a fresh random key.
func GenerateSigner() (*Signer, error) {
	seed := make([]byte, ed25519.SeedSize)
	if _, err := rand.Read(seed); err != nil {
		return nil, fmt.Errorf("crypto/signer: generating seed: %w", err)
	}
	return NewSigner(seed)
}

// PublicKey returns the signer's identity.
func (s *Signer) PublicKey() domain.Pubkey {
	return s.public
}

// Seed returns the 32-byte private seed.
func (s *Signer) Seed() []byte {
	return s.key.Seed()
}

// Sign signs an arbitrary message.
func (s *Signer) Sign(msg []byte) domain.Signature {
	var sig domain.Signature
	copy(sig[:], ed25519.Sign(s.key, msg))
	return sig
}

// SignOrder signs the order hash. The order's Signer field must be zero or
// equal to this key for verification to succeed.
func (s *Signer) SignOrder(o domain.Order) domain.SignedOrder {
	h := order.Hash(o)
	return domain.SignedOrder{Order: o, Signature: s.Sign(h[:])}
}

// SignSettlement signs a trade settlement message.
func (s *Signer) SignSettlement(m domain.SettlementMessage) domain.Signature {
	return s.Sign(order.EncodeSettlement(m))
}
