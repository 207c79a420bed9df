package tokens

import (
	"context"
	"log/slog"
	"strings"

	"github.com/shieldfi/shieldfi/internal/metal"
	"github.com/shieldfi/shieldfi/internal/session"
)

// Client is the subset of metal.TokenClient the service needs.
type Client interface {
	Create(ctx context.Context, input metal.CreateTokenInput) (metal.TokenAsset, error)
	GetDetails(ctx context.Context, tokenAddress string) (metal.TokenAsset, error)
	GetHolders(ctx context.Context, tokenAddress string) ([]metal.TokenHolder, error)
	Distribute(ctx context.Context, req metal.DistributionRequest) (metal.DistributionResult, error)
}

// Sessions is the view of the session store used to keep the connected wallet current.
type Sessions interface {
	Snapshot() (session.State, *session.WalletSession)
	Resync(ctx context.Context) (*session.WalletSession, error)
}

// Service exposes token commands on top of the remote token client.
type Service struct {
	client   Client
	sessions Sessions
	logger   *slog.Logger
}

// NewService builds a token service. sessions may be nil when no wallet store is in play.
func NewService(client Client, sessions Sessions, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{client: client, sessions: sessions, logger: logger}
}

// Create registers a new token.
func (s *Service) Create(ctx context.Context, input metal.CreateTokenInput) (metal.TokenAsset, error) {
	asset, err := s.client.Create(ctx, input)
	if err != nil {
		return metal.TokenAsset{}, err
	}
	s.logger.Info("token created",
		slog.String("address", asset.Address),
		slog.String("symbol", asset.Symbol),
		slog.Int("decimals", asset.Decimals),
	)
	return asset, nil
}

// Get returns token metadata.
func (s *Service) Get(ctx context.Context, tokenAddress string) (metal.TokenAsset, error) {
	return s.client.GetDetails(ctx, tokenAddress)
}

// Holders lists the token's holders.
func (s *Service) Holders(ctx context.Context, tokenAddress string) ([]metal.TokenHolder, error) {
	return s.client.GetHolders(ctx, tokenAddress)
}

// Distribute sends tokens once. When the recipient is the connected wallet the session is
// refreshed so its holdings reflect the transfer; a failed refresh does not fail the
// distribution.
func (s *Service) Distribute(ctx context.Context, req metal.DistributionRequest) (metal.DistributionResult, error) {
	result, err := s.client.Distribute(ctx, req)
	if err != nil {
		s.logger.Warn("distribution failed",
			slog.String("token", req.TokenAddress),
			slog.String("recipient", req.RecipientAddress),
			slog.Any("error", err),
		)
		return metal.DistributionResult{}, err
	}
	if !result.Success {
		s.logger.Warn("distribution rejected",
			slog.String("token", req.TokenAddress),
			slog.String("recipient", req.RecipientAddress),
		)
		return result, nil
	}

	s.logger.Info("distribution sent",
		slog.String("token", req.TokenAddress),
		slog.String("recipient", req.RecipientAddress),
		slog.String("tx_hash", result.TxHash),
	)
	if s.isConnectedWallet(req.RecipientAddress) {
		if _, err := s.sessions.Resync(ctx); err != nil {
			s.logger.Warn("refresh after distribution", slog.Any("error", err))
		}
	}
	return result, nil
}

func (s *Service) isConnectedWallet(address string) bool {
	if s.sessions == nil {
		return false
	}
	state, current := s.sessions.Snapshot()
	if state != session.StateConnected || current == nil {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(address), current.Address)
}
