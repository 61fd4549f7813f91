package types

import (
	"fmt"
	"math/big"
	"strings"
)

// AssetRef identifies a balance class tracked by the settlement service. Native
// currency balances use the native denomination with a zero nonce; registered
// semi-fungible units carry the registry identifier and the batch nonce.
type AssetRef struct {
	TokenID string `json:"tokenId"`
	Nonce   uint64 `json:"nonce"`
}

// NativeAsset returns the reference for the supplied native denomination.
func NativeAsset(denom string) AssetRef {
	return AssetRef{TokenID: NormalizeTokenID(denom)}
}

// IsZero reports whether the reference names no asset at all.
func (a AssetRef) IsZero() bool { return a.TokenID == "" && a.Nonce == 0 }

func (a AssetRef) String() string {
	if a.Nonce == 0 {
		return a.TokenID
	}
	return fmt.Sprintf("%s-%02x", a.TokenID, a.Nonce)
}

// NormalizeTokenID trims whitespace and upper-cases the ticker portion of a
// token identifier. The random suffix issued by the registry is lower-case hex
// and is preserved.
func NormalizeTokenID(id string) string {
	trimmed := strings.TrimSpace(id)
	ticker, suffix, found := strings.Cut(trimmed, "-")
	if !found {
		return strings.ToUpper(trimmed)
	}
	return strings.ToUpper(ticker) + "-" + strings.ToLower(suffix)
}

// Payment is a value attached to an invocation.
type Payment struct {
	Asset  AssetRef `json:"asset"`
	Amount *big.Int `json:"amount"`
}

// Transfer is a single leg moved by the settlement service.
type Transfer struct {
	From   [20]byte
	To     [20]byte
	Asset  AssetRef
	Amount *big.Int
	Memo   []byte
}

// BalanceEntry is a balance snapshot written back to state.
type BalanceEntry struct {
	Owner  [20]byte
	Asset  AssetRef
	Amount *big.Int
}
