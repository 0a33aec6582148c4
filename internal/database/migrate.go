package database

import (
	"context"
	"database/sql"
	"fmt"
)

// schema is applied in order by Migrate.  Statements are idempotent so the
// server can run them on every start.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS reservations (
		id              CHAR(36)     NOT NULL PRIMARY KEY,
		package_id      VARCHAR(32)  NOT NULL,
		family          VARCHAR(16)  NOT NULL,
		tier            CHAR(1)      NOT NULL,
		headcount       INT          NOT NULL,
		starts_at       DATETIME     NOT NULL,
		ends_at         DATETIME     NOT NULL,
		zone            VARCHAR(32)  NOT NULL,
		postal_code     CHAR(5)      NOT NULL,
		total_cents     BIGINT       NOT NULL,
		deposit_cents   BIGINT       NOT NULL,
		balance_cents   BIGINT       NOT NULL,
		caution_cents   BIGINT       NOT NULL,
		email           VARCHAR(255) NOT NULL,
		status          VARCHAR(20)  NOT NULL,
		payment_ref     VARCHAR(255) NULL,
		hold_expires_at DATETIME     NOT NULL,
		notified_at     DATETIME     NULL,
		created_at      DATETIME     NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at      DATETIME     NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		UNIQUE KEY uq_reservations_payment_ref (payment_ref),
		KEY idx_reservations_family_span (family, starts_at, ends_at),
		KEY idx_reservations_status_hold (status, hold_expires_at),
		KEY idx_reservations_status_notified (status, notified_at)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// Migrate creates the tables the reservation store needs.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate step %d: %w", i+1, err)
		}
	}
	return nil
}
