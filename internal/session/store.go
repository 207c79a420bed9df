package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/shieldfi/shieldfi/internal/apperrors"
)

const (
	opConnect      = "connect"
	opRefresh      = "refresh"
	opDisconnect   = "disconnect"
	opTransactions = "transactions"
)

// ErrSuperseded is returned to callers whose in-flight connect or refresh was overtaken by
// a disconnect or a newer connect. The remote result was discarded.
var ErrSuperseded = errors.New("session operation superseded")

// Remote is the custodial wallet boundary used by the store.
type Remote interface {
	ResolveOrCreate(ctx context.Context, username string) (*WalletSession, error)
	FetchBalance(ctx context.Context, address string) (*WalletSession, error)
	FetchTransactions(ctx context.Context, address string) ([]json.RawMessage, error)
}

// Persistence mirrors the last completed session durably. Load never fails: unreadable
// records are treated as absent.
type Persistence interface {
	Load(ctx context.Context) *WalletSession
	Save(ctx context.Context, session *WalletSession) error
	Clear(ctx context.Context) error
}

// Store owns the canonical in-memory wallet session.
type Store struct {
	remote   Remote
	persist  Persistence
	notifier Notifier
	logger   *slog.Logger
	group    singleflight.Group

	mu         sync.Mutex
	state      State
	current    *WalletSession
	pending    string
	generation uint64
	seq        uint64
	cancel     context.CancelFunc

	// notifyMu orders delivery; events stamped before the last delivered one are dropped.
	notifyMu  sync.Mutex
	delivered uint64
}

// NewStore builds a disconnected store. Call Restore once at startup to seed it.
func NewStore(remote Remote, persist Persistence, notifier Notifier, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		remote:   remote,
		persist:  persist,
		notifier: notifier,
		logger:   logger,
		state:    StateDisconnected,
	}
}

// Snapshot returns the current state and a copy of the visible session.
func (s *Store) Snapshot() (State, *WalletSession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, s.current.Clone()
}

// Restore seeds the store from persistence without a remote round-trip.
func (s *Store) Restore(ctx context.Context) State {
	if s.persist == nil {
		return StateDisconnected
	}
	loaded := s.persist.Load(ctx)

	s.mu.Lock()
	if s.state != StateDisconnected || s.pending != "" {
		state := s.state
		s.mu.Unlock()
		s.logger.Warn("restore skipped, store already active", slog.String("state", string(state)))
		return state
	}
	if loaded == nil {
		s.mu.Unlock()
		return StateDisconnected
	}
	s.current = loaded.Clone()
	s.state = StateConnected
	seq := s.stamp()
	s.mu.Unlock()

	s.logger.Info("session restored", slog.String("address", loaded.Address))
	s.notify(ctx, seq, Event{Kind: EventSessionChanged, State: StateConnected, Session: loaded.Clone()})
	return StateConnected
}

// Connect resolves (or creates) the wallet bound to username. Concurrent calls share the
// single in-flight request and its result.
func (s *Store) Connect(ctx context.Context, username string) (*WalletSession, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		err := apperrors.NewInvalidInput(opConnect, "username is required")
		s.notifyFailure(ctx, opConnect, err)
		return nil, err
	}

	v, err, _ := s.group.Do(opConnect, func() (any, error) {
		return s.connect(ctx, username)
	})
	if err != nil {
		return nil, err
	}
	return v.(*WalletSession).Clone(), nil
}

func (s *Store) connect(ctx context.Context, username string) (*WalletSession, error) {
	callCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	defer cancel()

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
		s.group.Forget(opRefresh)
	}
	s.generation++
	gen := s.generation
	s.state = StateConnecting
	s.pending = opConnect
	s.cancel = cancel
	s.mu.Unlock()

	s.logger.Debug("connecting wallet", slog.String("username", username))
	fetched, err := s.remote.ResolveOrCreate(callCtx, username)
	if err == nil {
		err = checkRemoteSession(opConnect, fetched)
	}

	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return nil, ErrSuperseded
	}
	s.pending = ""
	s.cancel = nil

	if err != nil {
		hadSession := s.current != nil
		s.state = StateDisconnected
		s.current = nil
		seq := s.stamp()
		s.mu.Unlock()

		s.logger.Warn("connect failed", slog.String("username", username), slog.Any("error", err))
		if hadSession {
			s.notify(ctx, seq, Event{Kind: EventSessionChanged, State: StateDisconnected})
		}
		s.notifyFailure(ctx, opConnect, err)
		return nil, err
	}

	s.writeThrough(callCtx, opConnect, fetched)
	s.current = fetched.Clone()
	s.state = StateConnected
	seq := s.stamp()
	s.mu.Unlock()

	s.logger.Info("wallet connected", slog.String("holder_id", fetched.HolderID), slog.String("address", fetched.Address))
	s.notify(ctx, seq, Event{Kind: EventSessionChanged, State: StateConnected, Session: fetched.Clone()})
	return fetched, nil
}

// Refresh re-fetches balance and holdings for the connected address. On failure the
// previously visible session is kept.
func (s *Store) Refresh(ctx context.Context) (*WalletSession, error) {
	v, err, _ := s.group.Do(opRefresh, func() (any, error) {
		return s.refresh(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(*WalletSession).Clone(), nil
}

// Resync is Refresh for callers that know the remote balance just changed. A result
// shared with a refresh that was already in flight may predate the change, so it is
// followed by exactly one more refresh.
func (s *Store) Resync(ctx context.Context) (*WalletSession, error) {
	v, err, shared := s.group.Do(opRefresh, func() (any, error) {
		return s.refresh(ctx)
	})
	if shared {
		v, err, _ = s.group.Do(opRefresh, func() (any, error) {
			return s.refresh(ctx)
		})
	}
	if err != nil {
		return nil, err
	}
	return v.(*WalletSession).Clone(), nil
}

func (s *Store) refresh(ctx context.Context) (*WalletSession, error) {
	callCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	defer cancel()

	s.mu.Lock()
	if s.state != StateConnected || s.current == nil {
		pending := s.pending
		s.mu.Unlock()
		msg := "no connected wallet"
		if pending == opConnect {
			msg = "connect in progress"
		}
		err := apperrors.NewInvalidInput(opRefresh, msg)
		s.notifyFailure(ctx, opRefresh, err)
		return nil, err
	}
	address := s.current.Address
	s.generation++
	gen := s.generation
	s.state = StateConnecting
	s.pending = opRefresh
	s.cancel = cancel
	s.mu.Unlock()

	fetched, err := s.remote.FetchBalance(callCtx, address)
	if err == nil {
		err = checkRemoteSession(opRefresh, fetched)
	}
	if err == nil && fetched.Address != address {
		err = apperrors.NewInvalidResponse(opRefresh, fmt.Sprintf("address changed from %s to %s", address, fetched.Address), nil)
	}

	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return nil, ErrSuperseded
	}
	s.pending = ""
	s.cancel = nil
	s.state = StateConnected

	if err != nil {
		s.mu.Unlock()
		s.logger.Warn("refresh failed, keeping last known session", slog.String("address", address), slog.Any("error", err))
		s.notifyFailure(ctx, opRefresh, err)
		return nil, err
	}

	s.writeThrough(callCtx, opRefresh, fetched)
	s.current = fetched.Clone()
	seq := s.stamp()
	s.mu.Unlock()

	s.logger.Debug("wallet refreshed", slog.String("address", address), slog.String("total_value", fetched.TotalValue.String()))
	s.notify(ctx, seq, Event{Kind: EventSessionChanged, State: StateConnected, Session: fetched.Clone()})
	return fetched, nil
}

// Disconnect drops the session in memory and in persistence. Any in-flight connect or
// refresh is cancelled and its eventual result discarded.
func (s *Store) Disconnect(ctx context.Context) error {
	s.mu.Lock()
	changed := s.state != StateDisconnected || s.current != nil || s.pending != ""
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.generation++
	s.group.Forget(opConnect)
	s.group.Forget(opRefresh)
	s.pending = ""
	s.state = StateDisconnected
	s.current = nil
	seq := s.stamp()
	var err error
	if s.persist != nil {
		err = s.persist.Clear(ctx)
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("clear persisted session", slog.Any("error", err))
		err = fmt.Errorf("%s: clear persisted session: %w", opDisconnect, err)
	}
	if changed {
		s.logger.Info("wallet disconnected")
		s.notify(ctx, seq, Event{Kind: EventSessionChanged, State: StateDisconnected})
	}
	return err
}

// Transactions returns the raw transaction history of the connected wallet.
func (s *Store) Transactions(ctx context.Context) ([]json.RawMessage, error) {
	s.mu.Lock()
	current := s.current
	s.mu.Unlock()
	if current == nil {
		return nil, apperrors.NewInvalidInput(opTransactions, "no connected wallet")
	}
	return s.remote.FetchTransactions(ctx, current.Address)
}

// writeThrough must be called with s.mu held so no disconnect can interleave between the
// durable write and the in-memory transition.
func (s *Store) writeThrough(ctx context.Context, op string, session *WalletSession) {
	if s.persist == nil {
		return
	}
	if err := s.persist.Save(ctx, session); err != nil {
		s.logger.Warn("persist session", slog.String("operation", op), slog.Any("error", err))
	}
}

// stamp must be called with s.mu held, right after the transition the event describes.
func (s *Store) stamp() uint64 {
	s.seq++
	return s.seq
}

// notify delivers events in stamp order. An event overtaken by a later transition is
// dropped so subscribers never end on a stale state.
func (s *Store) notify(ctx context.Context, seq uint64, event Event) {
	if s.notifier == nil {
		return
	}
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	if seq <= s.delivered {
		s.logger.Debug("dropping superseded event", slog.String("kind", string(event.Kind)), slog.String("state", string(event.State)))
		return
	}
	s.delivered = seq
	event.At = time.Now().UTC()
	s.notifier.Notify(ctx, event)
}

func (s *Store) notifyFailure(ctx context.Context, op string, err error) {
	s.mu.Lock()
	state := s.state
	current := s.current.Clone()
	seq := s.stamp()
	s.mu.Unlock()
	s.notify(ctx, seq, Event{
		Kind:      EventOperationFailed,
		State:     state,
		Session:   current,
		Operation: op,
		ErrorKind: apperrors.KindOf(err),
		Message:   err.Error(),
	})
}

func checkRemoteSession(op string, fetched *WalletSession) error {
	if fetched == nil {
		return apperrors.NewInvalidResponse(op, "empty wallet response", nil)
	}
	if err := fetched.Validate(); err != nil {
		return apperrors.NewInvalidResponse(op, "incomplete wallet response", err)
	}
	return nil
}
