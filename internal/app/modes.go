package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/poolbook/internal/notify"
	"github.com/alanyoungcy/poolbook/internal/server"
	"github.com/alanyoungcy/poolbook/internal/server/handler"
	"github.com/alanyoungcy/poolbook/internal/server/ws"
	"github.com/alanyoungcy/poolbook/internal/service"
)

// shutdownTimeout bounds the graceful HTTP shutdown.
const shutdownTimeout = 5 * time.Second

// defaultRetentionDays is used when s3.retention_days is unset.
const defaultRetentionDays = 30

// ServerMode runs the HTTP API, the WebSocket hub, and the notification
// relay until the context is cancelled.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	g, ctx := errgroup.WithContext(ctx)

	auth := service.NewAuthService(
		deps.Accounts, a.logger,
		a.cfg.Auth.JWTSecret, a.cfg.Auth.TokenTTL.Duration,
		a.cfg.Economy.StartingBalance,
	)
	ledger := service.NewLedgerService(
		deps.Accounts, deps.SignalBus, a.logger,
		a.cfg.Economy.BonusMin, a.cfg.Economy.BonusMax,
	)
	markets := service.NewMarketService(
		deps.Markets, deps.SummaryCache, deps.SignalBus, deps.Audit, a.logger,
	)
	stakes := service.NewStakeService(
		deps.Markets, deps.Stakes, deps.SummaryCache, deps.SignalBus,
		a.logger, a.cfg.Economy.MinStake,
	)
	settle := service.NewSettleService(
		deps.Markets, deps.Settlements, deps.Audit,
		deps.LockManager, deps.SummaryCache, deps.SignalBus, a.logger,
	)

	hub := ws.NewHub(deps.SignalBus, a.logger)
	g.Go(func() error {
		if err := hub.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("server mode: ws hub: %w", err)
		}
		return nil
	})

	relay := notify.NewRelay(deps.SignalBus, deps.Notifier, a.logger)
	g.Go(func() error {
		if err := relay.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("server mode: notify relay: %w", err)
		}
		return nil
	})

	srv := server.NewServer(
		server.Config{
			Port:            a.cfg.Server.Port,
			CORSOrigins:     a.cfg.Server.CORSOrigins,
			RateLimit:       a.cfg.Server.RateLimit,
			RateLimitWindow: a.cfg.Server.RateLimitWindow.Duration,
		},
		server.Handlers{
			Health:   handler.NewHealthHandler(a.logger),
			Auth:     handler.NewAuthHandler(auth, a.logger),
			Accounts: handler.NewAccountHandler(ledger, a.logger),
			Markets:  handler.NewMarketHandler(markets, settle, a.logger),
			Stakes:   handler.NewStakeHandler(stakes, a.logger),
		},
		auth,
		deps.RateLimiter,
		hub,
		a.logger,
	)
	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// ArchiveMode exports markets settled before the retention cutoff to object
// storage and exits.
func (a *App) ArchiveMode(ctx context.Context, deps *Dependencies) error {
	if deps.Archiver == nil {
		return fmt.Errorf("archive mode: s3 storage is not configured")
	}

	days := a.cfg.S3.RetentionDays
	if days <= 0 {
		days = defaultRetentionDays
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -days)

	a.logger.InfoContext(ctx, "starting archive mode",
		slog.Time("cutoff", cutoff),
		slog.Int("retention_days", days),
	)

	archived, err := deps.Archiver.ArchiveSettlements(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("archive mode: %w", err)
	}

	a.logger.InfoContext(ctx, "archive complete",
		slog.Int64("markets", archived),
	)
	return nil
}
