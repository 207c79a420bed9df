package metal

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// TokenAsset describes a token created or looked up through the service.
type TokenAsset struct {
	ID          string `json:"id"`
	Address     string `json:"address"`
	Name        string `json:"name"`
	Symbol      string `json:"symbol"`
	Decimals    int    `json:"decimals"`
	TotalSupply string `json:"totalSupply"`
}

// TokenHolder is one entry of a token's holder list.
type TokenHolder struct {
	Address string `json:"address"`
	Balance string `json:"balance"`
}

// CreateTokenInput captures the data needed to create a token. A nil Decimals means
// DefaultDecimals.
type CreateTokenInput struct {
	Name     string
	Symbol   string
	Decimals *int
}

// DistributionRequest is a one-shot transfer command. Amount is a decimal string and is
// forwarded verbatim.
type DistributionRequest struct {
	TokenAddress     string
	RecipientAddress string
	Amount           string
}

// DistributionResult is the service's answer to a distribution.
type DistributionResult struct {
	Success bool   `json:"success"`
	TxHash  string `json:"txHash"`
}

// amountString accepts either a JSON string or a bare JSON number and keeps its text.
type amountString string

func (a *amountString) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		*a = ""
		return nil
	}
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*a = amountString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(trimmed, &n); err != nil {
		return fmt.Errorf("amount must be a string or number: %w", err)
	}
	*a = amountString(n.String())
	return nil
}
