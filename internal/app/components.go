package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/marketengine/internal/crypto"
	"github.com/alanyoungcy/marketengine/internal/domain"
	"github.com/alanyoungcy/marketengine/internal/engine"
	"github.com/alanyoungcy/marketengine/internal/order"
	"github.com/alanyoungcy/marketengine/internal/server"
	"github.com/alanyoungcy/marketengine/internal/server/handler"
	"github.com/alanyoungcy/marketengine/internal/server/ws"
	"github.com/alanyoungcy/marketengine/internal/service"
)

const (
	shutdownTimeout = 10 * time.Second
	rateLimit       = 120
	rateWindow      = time.Minute
)

// services are the host services shared by every component.
type services struct {
	exchange *service.ExchangeService
	admin    *service.AdminService
	query    *service.QueryService
}

func (a *App) buildServices(deps *Dependencies) *services {
	eng := engine.New(order.Ed25519Verifier{}, a.logger)
	d := service.Deps{
		Tx:       deps.Postgres,
		Locks:    deps.Locks,
		Clock:    service.NewWallClock(a.cfg.Engine.Genesis, a.cfg.Engine.SlotDuration.Duration),
		Bus:      deps.Bus,
		Cache:    deps.MarketCache,
		Notifier: deps.Notifier,
		LockTTL:  a.cfg.Engine.LockTTL.Duration,
		Logger:   a.logger,
	}
	if deps.Metrics != nil {
		d.Metrics = deps.Metrics
	}
	return &services{
		exchange: service.NewExchangeService(eng, d, deps.Randomness),
		admin:    service.NewAdminService(eng, d).WithRandomness(deps.Randomness),
		query:    service.NewQueryService(deps.Postgres, deps.MarketCache, a.logger),
	}
}

// bootstrap stores the configured GlobalConfig when the database has none
// and checks the loaded settlement key against the active config.
func (a *App) bootstrap(ctx context.Context, svc *services, deps *Dependencies) error {
	seed, err := a.cfg.GlobalConfig(time.Now().UTC())
	if err != nil {
		return fmt.Errorf("app: %w", err)
	}
	created, err := svc.admin.Bootstrap(ctx, seed)
	if err != nil {
		return fmt.Errorf("app: %w", err)
	}
	cfg, err := svc.query.CurrentConfig(ctx)
	if err != nil {
		return fmt.Errorf("app: %w", err)
	}
	a.logger.InfoContext(ctx, "global config loaded",
		slog.Bool("bootstrapped", created),
		slog.Uint64("version", cfg.Version),
		slog.String("authority", cfg.Authority.String()),
	)

	if deps.Signer != nil && deps.Signer.PublicKey() != cfg.SettlementSigner {
		a.logger.WarnContext(ctx, "wallet key is not the configured settlement signer",
			slog.String("wallet", deps.Signer.PublicKey().String()),
			slog.String("settlement_signer", cfg.SettlementSigner.String()),
		)
	}
	return nil
}

func (a *App) runComponents(ctx context.Context, svc *services, deps *Dependencies) error {
	g, ctx := errgroup.WithContext(ctx)

	if a.cfg.Keeper.Enabled {
		var identity domain.Pubkey
		if s := a.cfg.Keeper.Identity; s != "" {
			var err error
			if identity, err = domain.ParsePubkey(s); err != nil {
				return fmt.Errorf("app: keeper identity: %w", err)
			}
		}
		keeper := service.NewKeeper(svc.exchange, svc.query, identity,
			a.cfg.Keeper.Interval.Duration, a.cfg.Keeper.Concurrency, a.logger)
		g.Go(func() error { return keeper.Run(ctx) })
	}

	if a.cfg.Archive.Enabled && deps.Archiver != nil {
		var m service.ArchiveMetrics
		if deps.Metrics != nil {
			m = deps.Metrics
		}
		archive := service.NewArchiveService(deps.Archiver, m, a.cfg.Archive.Interval.Duration, a.logger)
		g.Go(func() error { return archive.Run(ctx) })
	}

	if a.cfg.Server.Enabled {
		hub := ws.NewHub(deps.Bus, service.ChannelEvents, a.cfg.Server.CORSOrigins, a.logger)
		g.Go(func() error { return hub.Run(ctx) })

		srv := a.buildServer(svc, deps, hub)
		g.Go(srv.Start)
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (a *App) buildServer(svc *services, deps *Dependencies, hub *ws.Hub) *server.Server {
	pingers := map[string]handler.Pinger{
		"postgres": deps.Postgres,
		"redis":    deps.Redis,
	}
	if deps.S3 != nil {
		pingers["s3"] = deps.S3
	}

	h := server.Handlers{
		Health:  handler.NewHealthHandler(pingers, a.logger),
		Markets: handler.NewMarketHandler(svc.exchange, svc.query, a.logger),
		Orders:  handler.NewOrderHandler(svc.exchange, svc.admin, svc.query, a.logger),
		Admin:   handler.NewAdminHandler(svc.admin, svc.query, a.logger),
	}
	if deps.Metrics != nil {
		h.Metrics = deps.Metrics.Handler()
	}

	cfg := server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
		RateLimit:   rateLimit,
		RateWindow:  rateWindow,
		MetricsPath: a.cfg.Metrics.Path,
	}
	if a.cfg.Server.HMACSecret != "" {
		cfg.Signer = &crypto.RequestAuth{
			Secret: []byte(a.cfg.Server.HMACSecret),
			Window: a.cfg.Server.HMACWindow.Duration,
		}
	}
	routes := server.Routes(cfg, h, hub, deps.RateLimiter, a.logger)
	return server.NewServer(cfg, routes, a.logger)
}
