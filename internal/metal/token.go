package metal

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/shieldfi/shieldfi/internal/apperrors"
)

// DefaultDecimals is used when a token is created without explicit decimals.
const DefaultDecimals = 18

const (
	maxDecimals = 255

	opCreateToken = "create token"
	opGetToken    = "get token"
	opGetHolders  = "get token holders"
	opDistribute  = "distribute tokens"
)

// TokenClient talks to the token endpoints. Every call is a single request with no
// caching and no retry.
type TokenClient struct {
	client *Client
}

// NewTokenClient wraps a shared transport.
func NewTokenClient(client *Client) *TokenClient {
	return &TokenClient{client: client}
}

type createTokenBody struct {
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals int    `json:"decimals"`
	Network  string `json:"network"`
}

type distributeBody struct {
	Recipient string `json:"recipient"`
	Amount    string `json:"amount"`
	Network   string `json:"network"`
}

type tokenResponse struct {
	ID          *string      `json:"id"`
	Address     *string      `json:"address"`
	Name        string       `json:"name"`
	Symbol      string       `json:"symbol"`
	Decimals    *int         `json:"decimals"`
	TotalSupply amountString `json:"totalSupply"`
}

type holderRecord struct {
	Address *string      `json:"address"`
	Balance amountString `json:"balance"`
}

type distributeResponse struct {
	Success *bool  `json:"success"`
	TxHash  string `json:"txHash"`
}

// Create registers a new fungible token on the configured network.
func (t *TokenClient) Create(ctx context.Context, input CreateTokenInput) (TokenAsset, error) {
	name := strings.TrimSpace(input.Name)
	symbol := strings.TrimSpace(input.Symbol)
	if name == "" {
		return TokenAsset{}, apperrors.NewInvalidInput(opCreateToken, "name is required")
	}
	if symbol == "" {
		return TokenAsset{}, apperrors.NewInvalidInput(opCreateToken, "symbol is required")
	}
	decimals := DefaultDecimals
	if input.Decimals != nil {
		decimals = *input.Decimals
	}
	if decimals < 0 || decimals > maxDecimals {
		return TokenAsset{}, apperrors.NewInvalidInput(opCreateToken, fmt.Sprintf("decimals must be between 0 and %d", maxDecimals))
	}

	body := createTokenBody{Name: name, Symbol: symbol, Decimals: decimals, Network: t.client.network}
	var resp tokenResponse
	if err := t.client.do(ctx, opCreateToken, http.MethodPost, "/token", body, &resp); err != nil {
		return TokenAsset{}, err
	}
	return resp.toAsset(opCreateToken)
}

// GetDetails fetches token metadata.
func (t *TokenClient) GetDetails(ctx context.Context, tokenAddress string) (TokenAsset, error) {
	if strings.TrimSpace(tokenAddress) == "" {
		return TokenAsset{}, apperrors.NewInvalidInput(opGetToken, "token address is required")
	}
	var resp tokenResponse
	if err := t.client.do(ctx, opGetToken, http.MethodGet, "/token/"+pathSegment(tokenAddress), nil, &resp); err != nil {
		return TokenAsset{}, err
	}
	return resp.toAsset(opGetToken)
}

// GetHolders lists addresses holding the token.
func (t *TokenClient) GetHolders(ctx context.Context, tokenAddress string) ([]TokenHolder, error) {
	if strings.TrimSpace(tokenAddress) == "" {
		return nil, apperrors.NewInvalidInput(opGetHolders, "token address is required")
	}
	var records []holderRecord
	path := fmt.Sprintf("/token/%s/holders", pathSegment(tokenAddress))
	if err := t.client.do(ctx, opGetHolders, http.MethodGet, path, nil, &records); err != nil {
		return nil, err
	}

	holders := make([]TokenHolder, 0, len(records))
	for i, record := range records {
		if record.Address == nil || *record.Address == "" {
			return nil, apperrors.NewInvalidResponse(opGetHolders, fmt.Sprintf("holder %d address missing", i), nil)
		}
		holders = append(holders, TokenHolder{Address: *record.Address, Balance: string(record.Balance)})
	}
	return holders, nil
}

// Distribute sends amount of the token to the recipient. A response with success=false is
// returned as a result, not an error; callers must not resend it blindly.
func (t *TokenClient) Distribute(ctx context.Context, req DistributionRequest) (DistributionResult, error) {
	tokenAddress := strings.TrimSpace(req.TokenAddress)
	recipient := strings.TrimSpace(req.RecipientAddress)
	if tokenAddress == "" {
		return DistributionResult{}, apperrors.NewInvalidInput(opDistribute, "token address is required")
	}
	if recipient == "" {
		return DistributionResult{}, apperrors.NewInvalidInput(opDistribute, "recipient address is required")
	}
	amount, err := ValidateAmount(req.Amount)
	if err != nil {
		return DistributionResult{}, apperrors.NewInvalidInput(opDistribute, err.Error())
	}

	body := distributeBody{Recipient: recipient, Amount: amount, Network: t.client.network}
	var resp distributeResponse
	path := fmt.Sprintf("/token/%s/distribute", pathSegment(tokenAddress))
	if err := t.client.do(ctx, opDistribute, http.MethodPost, path, body, &resp); err != nil {
		return DistributionResult{}, err
	}
	if resp.Success == nil {
		return DistributionResult{}, apperrors.NewInvalidResponse(opDistribute, "success flag missing", nil)
	}
	if *resp.Success && resp.TxHash == "" {
		return DistributionResult{}, apperrors.NewInvalidResponse(opDistribute, "txHash missing", nil)
	}
	return DistributionResult{Success: *resp.Success, TxHash: resp.TxHash}, nil
}

// ValidateAmount checks that amount is a positive plain decimal and returns it trimmed.
// The value is only parsed for validation; the original text is what gets sent.
func ValidateAmount(amount string) (string, error) {
	trimmed := strings.TrimSpace(amount)
	if trimmed == "" {
		return "", fmt.Errorf("amount is required")
	}
	if strings.ContainsAny(trimmed, "eE") {
		return "", fmt.Errorf("amount %q must be a plain decimal", amount)
	}
	parsed, err := decimal.NewFromString(trimmed)
	if err != nil {
		return "", fmt.Errorf("amount %q is not a decimal", amount)
	}
	if !parsed.IsPositive() {
		return "", fmt.Errorf("amount must be positive")
	}
	return trimmed, nil
}

func (r tokenResponse) toAsset(op string) (TokenAsset, error) {
	if r.Address == nil || *r.Address == "" {
		return TokenAsset{}, apperrors.NewInvalidResponse(op, "token address missing", nil)
	}
	if r.ID == nil || *r.ID == "" {
		return TokenAsset{}, apperrors.NewInvalidResponse(op, "token id missing", nil)
	}
	asset := TokenAsset{
		ID:          *r.ID,
		Address:     *r.Address,
		Name:        r.Name,
		Symbol:      r.Symbol,
		Decimals:    DefaultDecimals,
		TotalSupply: string(r.TotalSupply),
	}
	if r.Decimals != nil {
		asset.Decimals = *r.Decimals
	}
	return asset, nil
}
