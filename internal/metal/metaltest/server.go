// Package metaltest provides an in-process fake of the custodial wallet service for tests.
package metaltest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"

	"github.com/shopspring/decimal"
)

// APIKey is the credential the fake accepts unless overridden.
const APIKey = "test-api-key"

// Holder is the fake's view of a custodial wallet.
type Holder struct {
	ID         string          `json:"id"`
	Address    string          `json:"address"`
	TotalValue decimal.Decimal `json:"totalValue"`
	Tokens     []HolderToken   `json:"tokens"`
}

// HolderToken is a token balance inside Holder.
type HolderToken struct {
	Address string `json:"address"`
	Balance string `json:"balance"`
	Name    string `json:"name"`
	Symbol  string `json:"symbol"`
}

type token struct {
	ID          string `json:"id"`
	Address     string `json:"address"`
	Name        string `json:"name"`
	Symbol      string `json:"symbol"`
	Decimals    int    `json:"decimals"`
	TotalSupply string `json:"totalSupply"`
}

// Server is a fake custodial service backed by maps.
type Server struct {
	*httptest.Server

	mu           sync.Mutex
	apiKey       string
	holders      map[string]*Holder
	byAddress    map[string]*Holder
	tokens       map[string]*token
	balances     map[string]map[string]decimal.Decimal
	transactions map[string][]map[string]any
	override     http.HandlerFunc
	requests     []*http.Request
	bodies       []map[string]any
	seq          int
}

// NewServer starts the fake. Close it when done.
func NewServer() *Server {
	s := &Server{
		apiKey:       APIKey,
		holders:      make(map[string]*Holder),
		byAddress:    make(map[string]*Holder),
		tokens:       make(map[string]*token),
		balances:     make(map[string]map[string]decimal.Decimal),
		transactions: make(map[string][]map[string]any),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("PUT /holder/{id}", s.resolveHolder)
	mux.HandleFunc("GET /holder/{id}", s.getHolder)
	mux.HandleFunc("GET /holder/{id}/transactions", s.getTransactions)
	mux.HandleFunc("POST /token", s.createToken)
	mux.HandleFunc("GET /token/{id}", s.getToken)
	mux.HandleFunc("GET /token/{id}/holders", s.getHolders)
	mux.HandleFunc("POST /token/{id}/distribute", s.distribute)

	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests = append(s.requests, r.Clone(r.Context()))
		override := s.override
		key := s.apiKey
		s.mu.Unlock()

		if r.Header.Get("x-api-key") != key {
			http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
			return
		}
		if override != nil {
			override(w, r)
			return
		}
		mux.ServeHTTP(w, r)
	}))
	return s
}

// Override replaces every route with fn until Override(nil) is called.
func (s *Server) Override(fn http.HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.override = fn
}

// Requests returns the requests seen so far.
func (s *Server) Requests() []*http.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*http.Request(nil), s.requests...)
}

// Bodies returns the decoded JSON bodies of write requests, in order.
func (s *Server) Bodies() []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]map[string]any(nil), s.bodies...)
}

// SetTotalValue changes the aggregate balance reported for address.
func (s *Server) SetTotalValue(address string, value decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if h, ok := s.byAddress[address]; ok {
		h.TotalValue = value
	}
}

func (s *Server) nextID() int {
	s.seq++
	return s.seq
}

func (s *Server) resolveHolder(w http.ResponseWriter, r *http.Request) {
	username := r.PathValue("id")
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.holders[username]
	if !ok {
		n := s.nextID()
		h = &Holder{
			ID:         fmt.Sprintf("h%d", n),
			Address:    fmt.Sprintf("0x%040x", n),
			TotalValue: decimal.Zero,
		}
		s.holders[username] = h
		s.byAddress[h.Address] = h
	}
	writeJSON(w, http.StatusOK, s.holderView(h))
}

func (s *Server) getHolder(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.byAddress[r.PathValue("id")]
	if !ok {
		http.Error(w, `{"error":"holder not found"}`, http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, s.holderView(h))
}

func (s *Server) getTransactions(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	txs := s.transactions[r.PathValue("id")]
	if txs == nil {
		txs = []map[string]any{}
	}
	writeJSON(w, http.StatusOK, txs)
}

func (s *Server) createToken(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name     string `json:"name"`
		Symbol   string `json:"symbol"`
		Decimals int    `json:"decimals"`
		Network  string `json:"network"`
	}
	if !s.decode(w, r, &body) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.nextID()
	t := &token{
		ID:          fmt.Sprintf("t%d", n),
		Address:     fmt.Sprintf("0x%040x", 0xf0000+n),
		Name:        body.Name,
		Symbol:      body.Symbol,
		Decimals:    body.Decimals,
		TotalSupply: "0",
	}
	s.tokens[t.Address] = t
	s.balances[t.Address] = make(map[string]decimal.Decimal)
	writeJSON(w, http.StatusCreated, t)
}

func (s *Server) getToken(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[r.PathValue("id")]
	if !ok {
		http.Error(w, `{"error":"token not found"}`, http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) getHolders(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	balances, ok := s.balances[r.PathValue("id")]
	if !ok {
		http.Error(w, `{"error":"token not found"}`, http.StatusNotFound)
		return
	}
	out := make([]map[string]string, 0, len(balances))
	for address, balance := range balances {
		out = append(out, map[string]string{"address": address, "balance": balance.String()})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) distribute(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Recipient string `json:"recipient"`
		Amount    string `json:"amount"`
		Network   string `json:"network"`
	}
	if !s.decode(w, r, &body) {
		return
	}
	amount, err := decimal.NewFromString(body.Amount)
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]any{"success": false, "txHash": ""})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[r.PathValue("id")]
	if !ok {
		http.Error(w, `{"error":"token not found"}`, http.StatusNotFound)
		return
	}
	balances := s.balances[t.Address]
	balances[body.Recipient] = balances[body.Recipient].Add(amount)
	supply, _ := decimal.NewFromString(t.TotalSupply)
	t.TotalSupply = supply.Add(amount).String()

	txHash := fmt.Sprintf("0x%064x", s.nextID())
	s.transactions[body.Recipient] = append(s.transactions[body.Recipient], map[string]any{
		"hash":   txHash,
		"token":  t.Address,
		"amount": body.Amount,
	})
	if h, ok := s.byAddress[body.Recipient]; ok {
		h.Tokens = upsertHolding(h.Tokens, t, balances[body.Recipient])
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "txHash": txHash})
}

func upsertHolding(tokens []HolderToken, t *token, balance decimal.Decimal) []HolderToken {
	for i := range tokens {
		if tokens[i].Address == t.Address {
			tokens[i].Balance = balance.String()
			return tokens
		}
	}
	return append(tokens, HolderToken{Address: t.Address, Balance: balance.String(), Name: t.Name, Symbol: t.Symbol})
}

func (s *Server) holderView(h *Holder) Holder {
	view := *h
	view.Tokens = append([]HolderToken{}, h.Tokens...)
	return view
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	var raw map[string]any
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		http.Error(w, `{"error":"invalid body"}`, http.StatusBadRequest)
		return false
	}
	s.mu.Lock()
	s.bodies = append(s.bodies, raw)
	s.mu.Unlock()

	payload, _ := json.Marshal(raw)
	if err := json.Unmarshal(payload, target); err != nil {
		http.Error(w, `{"error":"invalid body"}`, http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
