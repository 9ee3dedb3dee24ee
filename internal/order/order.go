// Package order implements the canonical order encoding, hashing, pricing
// and validation rules shared by every fill path.
package order

import (
	"crypto/ed25519"
	"encoding/binary"
	"fmt"
	"time"

	"lukechampine.com/blake3"

	"github.com/alanyoungcy/marketengine/internal/domain"
	"github.com/alanyoungcy/marketengine/internal/fixedpoint"
)

// DomainSeparator prefixes every order hash preimage.
const DomainSeparator = "Catallaxyz Exchange v1"

// EncodedSize is the length of Encode's output.
const EncodedSize = 8 + 32*4 + 1 + 8 + 8 + 8 + 8 + 2 + 1

// Encode returns the fixed little-endian layout that is hashed and signed.
func Encode(o domain.Order) []byte {
	b := make([]byte, 0, EncodedSize)
	b = binary.LittleEndian.AppendUint64(b, o.Salt)
	b = append(b, o.Maker[:]...)
	b = append(b, o.Signer[:]...)
	b = append(b, o.Taker[:]...)
	b = append(b, o.Market[:]...)
	b = append(b, byte(o.TokenID))
	b = binary.LittleEndian.AppendUint64(b, o.MakerAmount)
	b = binary.LittleEndian.AppendUint64(b, o.TakerAmount)
	b = binary.LittleEndian.AppendUint64(b, uint64(o.Expiration))
	b = binary.LittleEndian.AppendUint64(b, o.Nonce)
	b = binary.LittleEndian.AppendUint16(b, o.FeeRateBps)
	b = append(b, byte(o.Side))
	return b
}

// Hash returns blake3(DomainSeparator || Encode(o)).
func Hash(o domain.Order) domain.Hash {
	preimage := make([]byte, 0, len(DomainSeparator)+EncodedSize)
	preimage = append(preimage, DomainSeparator...)
	preimage = append(preimage, Encode(o)...)
	return blake3.Sum256(preimage)
}

// Price returns the order's unit price at 1e6 scale: collateral over shares
// for buys, shares over collateral inverted for sells. A zero denominator
// yields 0.
func Price(o domain.Order) (uint64, error) {
	num, den := o.MakerAmount, o.TakerAmount
	if o.Side == domain.SideSell {
		num, den = o.TakerAmount, o.MakerAmount
	}
	return fixedpoint.MulDivOrZero(num, fixedpoint.Scale, den)
}

// Validate checks the order's own fields against the maker's nonce floor
// and the fee cap.
func Validate(o domain.Order, now time.Time, nonceFloor uint64, maxFeeBps uint16) error {
	if o.IsExpired(now) {
		return domain.ErrOrderExpired
	}
	if o.Nonce < nonceFloor {
		return domain.ErrInvalidNonce
	}
	if o.FeeRateBps > maxFeeBps {
		return domain.ErrFeeTooHigh
	}
	if !o.TokenID.Valid() {
		return domain.ErrInvalidTokenID
	}
	if o.Side > domain.SideSell {
		return domain.ErrInvalidSide
	}
	if o.MakerAmount == 0 || o.TakerAmount == 0 {
		return domain.ErrInvalidAmount
	}
	return nil
}

// ValidateTaker checks a restricted order against the party taking it.
func ValidateTaker(o domain.Order, caller domain.Pubkey) error {
	if o.IsPublic() || o.Taker == caller {
		return nil
	}
	return domain.ErrInvalidTaker
}

// Verifier is the signature-verification primitive.
type Verifier interface {
	Verify(key domain.Pubkey, msg []byte, sig domain.Signature) bool
}

// Ed25519Verifier verifies plain Ed25519 signatures.
type Ed25519Verifier struct{}

// Verify implements Verifier.
func (Ed25519Verifier) Verify(key domain.Pubkey, msg []byte, sig domain.Signature) bool {
	return ed25519.Verify(ed25519.PublicKey(key[:]), msg, sig[:])
}

// VerifySigned checks that the order's signing key signed its hash and
// returns that hash.
func VerifySigned(v Verifier, so domain.SignedOrder) (domain.Hash, error) {
	h := Hash(so.Order)
	if !v.Verify(so.Order.SigningKey(), h[:], so.Signature) {
		return domain.Hash{}, fmt.Errorf("order %s: %w", h, domain.ErrInvalidSignature)
	}
	return h, nil
}
