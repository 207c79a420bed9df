package session

import (
	"errors"

	"github.com/shopspring/decimal"
)

// State is the lifecycle position of the store.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
)

// WalletSession is the authoritative record of a connected custodial wallet.
type WalletSession struct {
	HolderID   string          `json:"holderId"`
	Address    string          `json:"address"`
	TotalValue decimal.Decimal `json:"totalValue"`
	Tokens     []TokenHolding  `json:"tokens"`
}

// TokenHolding is one token balance held by the wallet. Balances are opaque strings.
type TokenHolding struct {
	Address string `json:"address"`
	Balance string `json:"balance"`
	Name    string `json:"name"`
	Symbol  string `json:"symbol"`
}

var (
	errMissingHolderID     = errors.New("holder id is required")
	errMissingAddress      = errors.New("address is required")
	errMissingTokenAddress = errors.New("token address is required")
)

// Validate reports whether the session is fully populated.
func (s *WalletSession) Validate() error {
	if s == nil {
		return errMissingAddress
	}
	if s.HolderID == "" {
		return errMissingHolderID
	}
	if s.Address == "" {
		return errMissingAddress
	}
	for _, token := range s.Tokens {
		if token.Address == "" {
			return errMissingTokenAddress
		}
	}
	return nil
}

// Clone returns a deep copy so callers never share the store's token slice.
func (s *WalletSession) Clone() *WalletSession {
	if s == nil {
		return nil
	}
	out := *s
	out.Tokens = make([]TokenHolding, len(s.Tokens))
	copy(out.Tokens, s.Tokens)
	return &out
}

// Equal compares two sessions field by field.
func (s *WalletSession) Equal(other *WalletSession) bool {
	if s == nil || other == nil {
		return s == other
	}
	if s.HolderID != other.HolderID || s.Address != other.Address || !s.TotalValue.Equal(other.TotalValue) {
		return false
	}
	if len(s.Tokens) != len(other.Tokens) {
		return false
	}
	for i := range s.Tokens {
		if s.Tokens[i] != other.Tokens[i] {
			return false
		}
	}
	return true
}
