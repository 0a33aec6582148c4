package command

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/sound-rental/internal/availability"
	"github.com/iliyamo/sound-rental/internal/config"
	"github.com/iliyamo/sound-rental/internal/database"
	"github.com/iliyamo/sound-rental/internal/handler"
	"github.com/iliyamo/sound-rental/internal/lock"
	"github.com/iliyamo/sound-rental/internal/logx"
	"github.com/iliyamo/sound-rental/internal/payment"
	"github.com/iliyamo/sound-rental/internal/queue"
	"github.com/iliyamo/sound-rental/internal/repository"
	"github.com/iliyamo/sound-rental/internal/reservation"
	queue_publisher "github.com/iliyamo/sound-rental/internal/service"
)

// verifyLockTTL bounds how long a crashed instance can keep a reservation's
// verification lock.
const verifyLockTTL = 30 * time.Second

// app holds the dependencies shared by serve and sweep.
type app struct {
	cfg    config.Config
	db     *sql.DB       // nil with the memory store
	rdb    *redis.Client // nil when Redis is unreachable
	svc    *reservation.Service
	ledger *queue.Ledger
}

func (a *app) Close() {
	if a.db != nil {
		_ = a.db.Close()
	}
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
}

// ledgerReader returns the ledger for the admin handler, or a nil interface
// when Redis is unavailable so the endpoint answers ledger_unavailable.
func (a *app) ledgerReader() handler.LedgerReader {
	if a.ledger == nil {
		return nil
	}
	return a.ledger
}

func buildApp(ctx context.Context, cfg config.Config) (*app, error) {
	a := &app{cfg: cfg}

	var store reservation.Store
	switch cfg.StoreDriver {
	case "memory":
		logx.Warn(ctx, "using in-memory reservation store; data is lost on restart")
		store = repository.NewMemoryReservationRepo()
	case "mysql":
		db, err := database.Open(ctx, database.Settings{
			User: cfg.DBUser, Pass: cfg.DBPass, Host: cfg.DBHost, Port: cfg.DBPort, Name: cfg.DBName,
		})
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		if err := database.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return nil, err
		}
		a.db = db
		store = repository.NewReservationRepo(db)
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}

	// Redis is optional: without it the lock is per process and there is no
	// ledger to report from, since the consumer writes its totals to Redis.
	a.rdb = config.NewRedisClient()
	var guard lock.Guard = lock.NewLocalGuard()
	if a.rdb != nil {
		guard = lock.NewRedisGuard(a.rdb, "lock", verifyLockTTL)
		a.ledger = queue.NewLedger(a.rdb, io.Discard, "ledger")
	} else {
		logx.Warn(ctx, "redis unreachable; using in-process locks, cache, rate limiting and ledger disabled")
	}

	provider := payment.NewStripeProvider(payment.StripeConfig{
		SecretKey:  cfg.StripeSecretKey,
		SuccessURL: cfg.PaymentSuccessURL,
		CancelURL:  cfg.PaymentCancelURL,
	})
	checker := availability.NewChecker(store, cfg.PoolCapacity)
	a.svc = reservation.NewService(store, provider, checker, reservation.Options{
		HoldTTL:     cfg.HoldTTL,
		VerifyRPS:   cfg.VerifyRPS,
		VerifyBurst: cfg.VerifyBurst,
		Guard:       guard,
		Notifier:    queue_publisher.NewPublisher(cfg.RabbitURL),
	})
	return a, nil
}
