package domain

import "time"

// TradeFill is the body of an exchange-signed trade settlement message.
// Side is the taker's side.
type TradeFill struct {
	Maker   Pubkey  `json:"maker"`
	Taker   Pubkey  `json:"taker"`
	Outcome Outcome `json:"outcome"`
	Side    Side    `json:"side"`
	Size    uint64  `json:"size"`  // shares, 1e6 scale
	Price   uint64  `json:"price"` // 1e6 scale
}

// SettlementMessage is what the settlement signer signs for one trade.
type SettlementMessage struct {
	Market Pubkey    `json:"market"`
	Nonce  uint64    `json:"nonce"`
	Fill   TradeFill `json:"fill"`
}

// RandomnessReading is a single oracle sample.
type RandomnessReading struct {
	Value     [32]byte
	Slot      uint64
	Timestamp time.Time
}
