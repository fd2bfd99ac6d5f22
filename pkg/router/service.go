package router

import (
	"context"
	"time"

	"github.com/wayfinder-hq/wayfinder-router/pkg/blockchain"
	"github.com/wayfinder-hq/wayfinder-router/pkg/logger"
	"github.com/wayfinder-hq/wayfinder-router/pkg/metrics"
	"github.com/wayfinder-hq/wayfinder-router/pkg/models"
	"github.com/wayfinder-hq/wayfinder-router/pkg/store"
)

// ServiceSettings configures the background loops
type ServiceSettings struct {
	// MonitorInterval is how often submitted records are checked on-chain
	MonitorInterval time.Duration
	// SweepInterval is how often waiting records are checked for expiry
	SweepInterval time.Duration
	// SubmittedTimeout fails submitted records with no confirmation
	SubmittedTimeout time.Duration
	// PreparedTimeout expires records stuck before routing completed
	PreparedTimeout time.Duration
}

// DefaultServiceSettings returns settings suitable for production
func DefaultServiceSettings() ServiceSettings {
	return ServiceSettings{
		MonitorInterval:  15 * time.Second,
		SweepInterval:    30 * time.Second,
		SubmittedTimeout: 10 * time.Minute,
		PreparedTimeout:  5 * time.Minute,
	}
}

// Service runs the router's background loops: the settlement monitor
// confirms submitted transactions on-chain, and the expiry sweeper
// moves records whose quotes lapsed into the expired state. Both exist
// for crash recovery; in the happy path a record settles synchronously
// during ResumeWithSignature.
type Service struct {
	router   *Router
	chain    *blockchain.Client
	store    store.Store
	settings ServiceSettings
	logger   logger.Logger
}

// NewService creates the background service. The blockchain client may
// be nil, in which case submitted records are only failed by timeout.
func NewService(router *Router, chain *blockchain.Client, st store.Store, settings ServiceSettings, log logger.Logger) *Service {
	return &Service{
		router:   router,
		chain:    chain,
		store:    st,
		settings: settings,
		logger:   log,
	}
}

// Start launches the background loops. They run until the context is
// cancelled.
func (s *Service) Start(ctx context.Context) {
	go s.runSettlementMonitor(ctx)
	go s.runExpirySweeper(ctx)
	s.logger.Info("background service started (monitor every %s, sweep every %s)",
		s.settings.MonitorInterval, s.settings.SweepInterval)
}

func (s *Service) runSettlementMonitor(ctx context.Context) {
	ticker := time.NewTicker(s.settings.MonitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("settlement monitor stopped")
			return
		case <-ticker.C:
			s.checkSubmitted(ctx)
		}
	}
}

// checkSubmitted resolves records left in the submitted state, which
// only happens when the process died between submission and settlement
func (s *Service) checkSubmitted(ctx context.Context) {
	records, err := s.store.ListByStatus(ctx, models.StatusSubmitted)
	if err != nil {
		s.logger.Error("settlement monitor failed to list records: %v", err)
		return
	}

	now := time.Now()
	for _, record := range records {
		// Leave freshly submitted records to their in-flight resume call
		if now.Sub(record.UpdatedAt) < s.settings.MonitorInterval {
			continue
		}

		if ref := record.SettlementReference; ref != nil && ref.TxHash != "" && s.chain != nil && s.chain.Supports(ref.ChainID) {
			state, err := s.chain.ReceiptStatus(ctx, ref.ChainID, ref.TxHash)
			if err != nil {
				s.logger.ErrorWithChain(ref.ChainID, "receipt lookup for %s failed: %v", record.ID, err)
				continue
			}
			switch state {
			case blockchain.ReceiptConfirmed:
				if err := s.router.updateStatus(ctx, record, models.StatusSubmitted, models.StatusSettled); err == nil {
					s.logger.NoticeWithChain(ref.ChainID, "record %s confirmed settled on-chain: %s", record.ID, ref.TxHash)
				}
				continue
			case blockchain.ReceiptReverted:
				record.FailureReason = "settlement transaction reverted on-chain"
				if err := s.router.updateStatus(ctx, record, models.StatusSubmitted, models.StatusFailed); err == nil {
					metrics.FailedCommands.WithLabelValues("reverted").Inc()
					s.logger.ErrorWithChain(ref.ChainID, "record %s reverted: %s", record.ID, ref.TxHash)
				}
				continue
			}
		}

		if now.Sub(record.UpdatedAt) > s.settings.SubmittedTimeout {
			record.FailureReason = "no settlement confirmation within timeout"
			if err := s.router.updateStatus(ctx, record, models.StatusSubmitted, models.StatusFailed); err == nil {
				metrics.FailedCommands.WithLabelValues("settlement_timeout").Inc()
				s.logger.Error("record %s timed out waiting for settlement", record.ID)
			}
		}
	}
}

func (s *Service) runExpirySweeper(ctx context.Context) {
	ticker := time.NewTicker(s.settings.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("expiry sweeper stopped")
			return
		case <-ticker.C:
			s.sweepExpired(ctx)
		}
	}
}

// sweepExpired expires waiting records whose quotes lapsed and prepared
// records whose routing never completed
func (s *Service) sweepExpired(ctx context.Context) {
	now := time.Now()

	waiting, err := s.store.ListByStatus(ctx, models.StatusAwaitingAuthorization)
	if err != nil {
		s.logger.Error("expiry sweeper failed to list records: %v", err)
		return
	}
	for _, record := range waiting {
		if record.Quote == nil || !record.Quote.Expired(now) {
			continue
		}
		record.FailureReason = "quote expired before authorization"
		if err := s.router.updateStatus(ctx, record, models.StatusAwaitingAuthorization, models.StatusExpired); err == nil {
			metrics.ExpiredQuotes.Inc()
			s.logger.Debug("record %s expired waiting for authorization", record.ID)
		}
	}

	prepared, err := s.store.ListByStatus(ctx, models.StatusPrepared)
	if err != nil {
		s.logger.Error("expiry sweeper failed to list records: %v", err)
		return
	}
	for _, record := range prepared {
		if now.Sub(record.CreatedAt) <= s.settings.PreparedTimeout {
			continue
		}
		record.FailureReason = "routing did not complete"
		if err := s.router.updateStatus(ctx, record, models.StatusPrepared, models.StatusExpired); err == nil {
			s.logger.Debug("record %s expired before routing completed", record.ID)
		}
	}
}
