package domain

// CustodyKind names a class of collateral holding outside the per-market
// position ledger.
type CustodyKind string

const (
	CustodyWallet           CustodyKind = "wallet"
	CustodyVault            CustodyKind = "vault"
	CustodyPlatformTreasury CustodyKind = "platform_treasury"
	CustodyCreatorTreasury  CustodyKind = "creator_treasury"
	CustodyRewardTreasury   CustodyKind = "reward_treasury"
)

// CustodyKey addresses one collateral holding. Owner is the user for
// wallets, the market id for vaults and zero for treasuries.
type CustodyKey struct {
	Kind  CustodyKind
	Owner Pubkey
}

func (k CustodyKey) String() string {
	if k.Owner.IsZero() {
		return string(k.Kind)
	}
	return string(k.Kind) + ":" + k.Owner.String()
}

// WalletOf returns the wallet holding of user.
func WalletOf(user Pubkey) CustodyKey { return CustodyKey{Kind: CustodyWallet, Owner: user} }

// VaultOf returns the collateral vault of market.
func VaultOf(market Pubkey) CustodyKey { return CustodyKey{Kind: CustodyVault, Owner: market} }

// PlatformTreasury collects trading and creation fees.
func PlatformTreasury() CustodyKey { return CustodyKey{Kind: CustodyPlatformTreasury} }

// CreatorTreasury holds accrued creator incentives until payout.
func CreatorTreasury() CustodyKey { return CustodyKey{Kind: CustodyCreatorTreasury} }

// RewardTreasury funds keeper rewards.
func RewardTreasury() CustodyKey { return CustodyKey{Kind: CustodyRewardTreasury} }

// Transfer records one collateral movement between holdings.
type Transfer struct {
	From   CustodyKey `json:"from"`
	To     CustodyKey `json:"to"`
	Amount uint64     `json:"amount"`
}
