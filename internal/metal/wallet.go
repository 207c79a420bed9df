package metal

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/shieldfi/shieldfi/internal/apperrors"
	"github.com/shieldfi/shieldfi/internal/session"
)

const (
	opResolveHolder     = "resolve holder"
	opFetchHolder       = "fetch holder"
	opFetchTransactions = "fetch transactions"
)

// WalletClient talks to the holder endpoints.
type WalletClient struct {
	client *Client
}

// NewWalletClient wraps a shared transport.
func NewWalletClient(client *Client) *WalletClient {
	return &WalletClient{client: client}
}

type holderResponse struct {
	ID         *string             `json:"id"`
	Address    *string             `json:"address"`
	TotalValue *decimal.Decimal    `json:"totalValue"`
	Tokens     []holderTokenRecord `json:"tokens"`
}

type holderTokenRecord struct {
	Address *string      `json:"address"`
	Balance amountString `json:"balance"`
	Name    string       `json:"name"`
	Symbol  string       `json:"symbol"`
}

// ResolveOrCreate returns the wallet bound to username, creating it on first use. The
// service is expected to return the same address for repeated calls.
func (w *WalletClient) ResolveOrCreate(ctx context.Context, username string) (*session.WalletSession, error) {
	if strings.TrimSpace(username) == "" {
		return nil, apperrors.NewInvalidInput(opResolveHolder, "username is required")
	}
	var resp holderResponse
	if err := w.client.do(ctx, opResolveHolder, http.MethodPut, "/holder/"+pathSegment(username), nil, &resp); err != nil {
		return nil, err
	}
	return resp.toSession(opResolveHolder)
}

// FetchBalance returns the current balance and holdings for address.
func (w *WalletClient) FetchBalance(ctx context.Context, address string) (*session.WalletSession, error) {
	if strings.TrimSpace(address) == "" {
		return nil, apperrors.NewInvalidInput(opFetchHolder, "address is required")
	}
	var resp holderResponse
	if err := w.client.do(ctx, opFetchHolder, http.MethodGet, "/holder/"+pathSegment(address), nil, &resp); err != nil {
		return nil, err
	}
	return resp.toSession(opFetchHolder)
}

// FetchTransactions returns the holder's transaction records untouched.
func (w *WalletClient) FetchTransactions(ctx context.Context, address string) ([]json.RawMessage, error) {
	if strings.TrimSpace(address) == "" {
		return nil, apperrors.NewInvalidInput(opFetchTransactions, "address is required")
	}
	var records []json.RawMessage
	path := fmt.Sprintf("/holder/%s/transactions", pathSegment(address))
	if err := w.client.do(ctx, opFetchTransactions, http.MethodGet, path, nil, &records); err != nil {
		return nil, err
	}
	if records == nil {
		records = []json.RawMessage{}
	}
	return records, nil
}

func (r holderResponse) toSession(op string) (*session.WalletSession, error) {
	switch {
	case r.Address == nil || *r.Address == "":
		return nil, apperrors.NewInvalidResponse(op, "address missing", nil)
	case r.ID == nil || *r.ID == "":
		return nil, apperrors.NewInvalidResponse(op, "holder id missing", nil)
	case r.TotalValue == nil:
		return nil, apperrors.NewInvalidResponse(op, "totalValue missing", nil)
	}

	tokens := make([]session.TokenHolding, 0, len(r.Tokens))
	for i, token := range r.Tokens {
		if token.Address == nil || *token.Address == "" {
			return nil, apperrors.NewInvalidResponse(op, fmt.Sprintf("token %d address missing", i), nil)
		}
		tokens = append(tokens, session.TokenHolding{
			Address: *token.Address,
			Balance: string(token.Balance),
			Name:    token.Name,
			Symbol:  token.Symbol,
		})
	}

	return &session.WalletSession{
		HolderID:   *r.ID,
		Address:    *r.Address,
		TotalValue: *r.TotalValue,
		Tokens:     tokens,
	}, nil
}
