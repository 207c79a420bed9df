package persistence

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/shieldfi/shieldfi/internal/apperrors"
	"github.com/shieldfi/shieldfi/internal/session"
)

// DefaultKey is the fixed slot the wallet session is stored under.
const DefaultKey = "shieldfi:wallet:session"

// Mirror serializes the wallet session into a Backend and recovers from corrupt records.
type Mirror struct {
	backend Backend
	key     string
	logger  *slog.Logger
}

// NewMirror builds the session persistence adapter over backend.
func NewMirror(backend Backend, key string, logger *slog.Logger) *Mirror {
	if key == "" {
		key = DefaultKey
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Mirror{backend: backend, key: key, logger: logger}
}

// Key returns the slot used by this mirror.
func (m *Mirror) Key() string {
	return m.key
}

// Load returns the stored session or nil. A record that fails to decode is deleted and
// reported as absent.
func (m *Mirror) Load(ctx context.Context) *session.WalletSession {
	raw, err := m.backend.Get(ctx, m.key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			m.logger.Warn("load persisted session", slog.String("key", m.key), slog.Any("error", err))
		}
		return nil
	}

	stored, err := decodeSession(raw)
	if err != nil {
		corrupt := apperrors.NewPersistenceCorrupt("load session", err)
		m.logger.Warn("discarding persisted session",
			slog.String("key", m.key),
			slog.String("error_kind", string(corrupt.Kind)),
			slog.Any("error", corrupt),
		)
		if err := m.backend.Delete(ctx, m.key); err != nil && !errors.Is(err, ErrNotFound) {
			m.logger.Error("clear corrupt session", slog.String("key", m.key), slog.Any("error", err))
		}
		return nil
	}
	return stored
}

// Save writes the full snapshot in a single Put.
func (m *Mirror) Save(ctx context.Context, s *session.WalletSession) error {
	if err := s.Validate(); err != nil {
		return fmt.Errorf("refusing to persist incomplete session: %w", err)
	}
	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := m.backend.Put(ctx, m.key, payload); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return nil
}

// Clear removes the stored session. Clearing an empty slot succeeds.
func (m *Mirror) Clear(ctx context.Context) error {
	if err := m.backend.Delete(ctx, m.key); err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

type storedSession struct {
	HolderID   *string                `json:"holderId"`
	Address    *string                `json:"address"`
	TotalValue *decimal.Decimal       `json:"totalValue"`
	Tokens     []session.TokenHolding `json:"tokens"`
}

func decodeSession(raw []byte) (*session.WalletSession, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()

	var stored storedSession
	if err := dec.Decode(&stored); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	if dec.More() {
		return nil, errors.New("trailing data after session record")
	}
	if stored.HolderID == nil || stored.Address == nil || stored.TotalValue == nil {
		return nil, errors.New("session record is missing required fields")
	}

	out := &session.WalletSession{
		HolderID:   *stored.HolderID,
		Address:    *stored.Address,
		TotalValue: *stored.TotalValue,
		Tokens:     stored.Tokens,
	}
	if out.Tokens == nil {
		out.Tokens = []session.TokenHolding{}
	}
	if err := out.Validate(); err != nil {
		return nil, err
	}
	return out, nil
}
