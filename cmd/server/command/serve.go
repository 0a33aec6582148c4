package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"

	"github.com/iliyamo/sound-rental/internal/config"
	"github.com/iliyamo/sound-rental/internal/geo"
	"github.com/iliyamo/sound-rental/internal/handler"
	"github.com/iliyamo/sound-rental/internal/logx"
	"github.com/iliyamo/sound-rental/internal/middleware"
	"github.com/iliyamo/sound-rental/internal/payment"
	"github.com/iliyamo/sound-rental/internal/reservation"
	"github.com/iliyamo/sound-rental/internal/router"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the background expiry sweeper",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()
	loc, err := time.LoadLocation(cfg.BusinessTimezone)
	if err != nil {
		return fmt.Errorf("BUSINESS_TIMEZONE %q: %w", cfg.BusinessTimezone, err)
	}
	a, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	e := newEcho()
	var ready handler.Pinger
	if a.db != nil {
		ready = a.db
	}
	limit := middleware.NewTokenBucket(config.LoadRateLimitConfig(), a.rdb)
	router.RegisterRoutes(e, handler.Ready(ready))
	router.RegisterPublic(e,
		handler.NewQuoteHandler(loc),
		handler.NewCityHandler(geo.NewClient(cfg.GeoAPIURL, cfg.GeoTimeout)),
		middleware.NewRedisCache(config.LoadCacheConfig(), a.rdb),
		limit,
	)
	router.RegisterReservations(e, handler.NewReservationHandler(a.svc, loc), limit)
	router.RegisterPayments(e, handler.NewWebhookHandler(payment.NewWebhookParser(cfg.StripeWebhookSecret), a.svc))
	router.RegisterAdmin(e, handler.NewAdminHandler(a.svc, a.ledgerReader()), cfg.JWTSecret)

	go runSweeper(ctx, a.svc, cfg.ExpirySweepInterval)

	errc := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Port
		logx.Info(ctx, "listening", slog.String("addr", addr), slog.String("env", cfg.Env))
		errc <- e.Start(addr)
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}
	logx.Info(context.Background(), "shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

// newEcho builds the echo instance with validation, panic recovery and
// access logs routed through logx.
func newEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewRequestValidator()
	e.Use(echomw.Recover())
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			attrs := []slog.Attr{
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
				slog.String("remote_ip", v.RemoteIP),
			}
			if v.Error != nil {
				logx.Error(c.Request().Context(), "request", append(attrs, logx.Err(v.Error))...)
				return nil
			}
			logx.Info(c.Request().Context(), "request", attrs...)
			return nil
		},
	}))
	return e
}

// runSweeper expires overdue holds and replays failed confirmations every
// interval until ctx is done.
func runSweeper(ctx context.Context, svc *reservation.Service, interval time.Duration) {
	if interval <= 0 {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n, err := svc.ExpireStale(ctx); err != nil {
				logx.Warn(ctx, "expiry sweep failed", logx.Err(err))
			} else if n > 0 {
				logx.Info(ctx, "expiry sweep", slog.Int("expired", n))
			}
			if n, err := svc.ReplayConfirmations(ctx); err != nil {
				logx.Warn(ctx, "confirmation replay failed", logx.Err(err))
			} else if n > 0 {
				logx.Info(ctx, "confirmations replayed", slog.Int("replayed", n))
			}
		}
	}
}
