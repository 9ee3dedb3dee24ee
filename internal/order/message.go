package order

import (
	"encoding/binary"

	"github.com/alanyoungcy/marketengine/internal/domain"
)

// EncodeSettlement returns the byte layout the settlement signer signs:
// market, nonce, maker, taker, outcome, side, size, price.
func EncodeSettlement(m domain.SettlementMessage) []byte {
	b := make([]byte, 0, 32+8+32+32+1+1+8+8)
	b = append(b, m.Market[:]...)
	b = binary.LittleEndian.AppendUint64(b, m.Nonce)
	b = append(b, m.Fill.Maker[:]...)
	b = append(b, m.Fill.Taker[:]...)
	b = append(b, byte(m.Fill.Outcome), byte(m.Fill.Side))
	b = binary.LittleEndian.AppendUint64(b, m.Fill.Size)
	b = binary.LittleEndian.AppendUint64(b, m.Fill.Price)
	return b
}
