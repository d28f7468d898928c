package app

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cinafi/leverbot/internal/pipeline"
	"github.com/cinafi/leverbot/internal/server"
	"github.com/cinafi/leverbot/internal/server/handler"
	"github.com/cinafi/leverbot/internal/server/ws"
	"github.com/cinafi/leverbot/internal/service"
)

// receiptScanInterval is how often the watcher scans for unresolved actions.
const receiptScanInterval = 30 * time.Second

// services groups the orchestration services shared by the HTTP handlers.
type services struct {
	approvals *service.ApprovalService
	positions *service.PositionService
	loans     *service.FlashLoanService
	admin     *service.AdminService
}

func (a *App) buildServices(deps *Dependencies) *services {
	approvals := service.NewApprovalService(deps.Chain, a.cfg.Chain, a.logger)
	return &services{
		approvals: approvals,
		positions: service.NewPositionService(
			deps.Chain, approvals, deps.ActionStore, deps.PositionCache,
			deps.RequestGuard, deps.SignalBus, deps.AuditStore, a.cfg.Chain, a.logger,
		),
		loans: service.NewFlashLoanService(
			deps.Chain, deps.ActionStore, deps.RequestGuard,
			deps.SignalBus, deps.AuditStore, a.cfg.Chain, a.logger,
		),
		admin: service.NewAdminService(deps.Chain, deps.SignalBus, deps.AuditStore, a.cfg.Chain, a.logger),
	}
}

// ServerMode runs the HTTP + WebSocket API. Receipts are awaited inline by the
// orchestration services; no background watchers run in this mode.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startHTTPServer(ctx, g, deps)
	return g.Wait()
}

// MonitorMode runs the background workers only: the receipt watcher resolves
// actions whose inline receipt poll timed out, the event bridge forwards
// lifecycle events to notification channels, and the archive loop exports old
// rows to cold storage.
func (a *App) MonitorMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting monitor mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startWorkers(ctx, g, deps)
	return g.Wait()
}

// FullMode runs the API and all background workers in one process.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startHTTPServer(ctx, g, deps)
	a.startWorkers(ctx, g, deps)
	return g.Wait()
}

// startHTTPServer adds the WebSocket hub and the HTTP server to the errgroup.
// The server is shut down gracefully when the context is cancelled.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	svcs := a.buildServices(deps)

	hub := ws.NewHub(deps.SignalBus, a.cfg.Mode, a.logger)
	g.Go(func() error {
		return hub.Run(ctx)
	})

	walletAddr := ""
	if deps.Wallet != nil {
		walletAddr = deps.Wallet.Address().Hex()
	}

	handlers := server.Handlers{
		Health:     handler.NewHealthHandler(deps.Pingers, a.logger),
		Meta:       handler.NewMetaHandler(a.cfg.Chain.Meta(), walletAddr, a.cfg.Mode),
		Positions:  handler.NewPositionHandler(svcs.positions, a.logger),
		Actions:    handler.NewActionHandler(deps.ActionStore, svcs.positions, a.logger),
		FlashLoans: handler.NewFlashLoanHandler(svcs.loans, a.cfg.Chain.Meta(), a.logger),
		Approve:    handler.NewApproveHandler(svcs.approvals, a.cfg.Chain.Meta(), a.logger),
		Admin:      handler.NewAdminHandler(svcs.admin, a.logger),
		Cache:      handler.NewCacheHandler(deps.PositionCache, a.logger),
	}

	srv := server.New(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
		RateLimit:   a.cfg.Server.RateLimit,
	}, handlers, hub, deps.RateLimiter, a.logger)

	g.Go(srv.Start)

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}

// startWorkers adds the background workers to the errgroup.
func (a *App) startWorkers(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	watcher := pipeline.NewReceiptWatcher(deps.ActionStore, deps.Chain, deps.SignalBus, receiptScanInterval, a.logger)
	g.Go(func() error {
		return watcher.RunLoop(ctx)
	})

	if deps.Notifier.Enabled() {
		bridge := pipeline.NewEventBridge(deps.SignalBus, deps.Notifier, a.logger)
		g.Go(func() error {
			return bridge.Run(ctx)
		})
	} else {
		a.logger.Info("no notification channels configured, event bridge disabled")
	}

	if a.cfg.Archive.Enabled && deps.Archiver != nil {
		runner := pipeline.NewArchiveRunner(
			deps.Archiver,
			a.cfg.Archive.RetentionDays,
			a.cfg.Archive.Interval.Duration,
			a.logger,
		)
		g.Go(func() error {
			return runner.RunLoop(ctx)
		})
	}

	a.logger.InfoContext(ctx, "background workers started",
		slog.Bool("notifications", deps.Notifier.Enabled()),
		slog.Bool("archival", a.cfg.Archive.Enabled),
	)
}
