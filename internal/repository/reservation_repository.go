package repository

import (
    "context"
    "database/sql"
    "errors"
    "time"

    "github.com/go-sql-driver/mysql"

    "github.com/iliyamo/sound-rental/internal/model"
)

// ReservationRepo stores reservations in the reservations table.  All
// timestamp columns are UTC; the DSN built by database.Open sets loc=UTC so
// values scan back as UTC time.Time.
type ReservationRepo struct {
    db *sql.DB
}

// NewReservationRepo returns a new ReservationRepo bound to the given database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

const reservationColumns = `id, package_id, family, tier, headcount, starts_at, ends_at, zone, postal_code,
    total_cents, deposit_cents, balance_cents, caution_cents, email, status, payment_ref,
    hold_expires_at, notified_at, created_at, updated_at`

// mysqlDuplicateEntry is ER_DUP_ENTRY.
const mysqlDuplicateEntry = 1062

// Create inserts a reservation.  CreatedAt and UpdatedAt are set on the
// provided record.  A duplicate id or payment reference yields ErrConflict.
func (r *ReservationRepo) Create(ctx context.Context, res *model.Reservation) error {
    now := time.Now().UTC()
    res.CreatedAt, res.UpdatedAt = now, now
    const q = `INSERT INTO reservations (` + reservationColumns + `)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
    _, err := r.db.ExecContext(ctx, q,
        res.ID, res.PackageID, string(res.Family), string(res.Tier), res.Headcount,
        res.StartsAt.UTC(), res.EndsAt.UTC(), res.Zone, res.PostalCode,
        res.TotalCents, res.DepositCents, res.BalanceCents, res.CautionCents,
        res.Email, string(res.Status), res.PaymentRef,
        res.HoldExpiresAt.UTC(), res.NotifiedAt, res.CreatedAt, res.UpdatedAt,
    )
    var myErr *mysql.MySQLError
    if errors.As(err, &myErr) && myErr.Number == mysqlDuplicateEntry {
        return ErrConflict
    }
    return err
}

// Get loads a reservation by id.  ErrNotFound is returned when it does not
// exist.
func (r *ReservationRepo) Get(ctx context.Context, id string) (*model.Reservation, error) {
    row := r.db.QueryRowContext(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id = ?`, id)
    return scanOne(row)
}

// GetByPaymentRef loads the reservation that owns a payment session.
func (r *ReservationRepo) GetByPaymentRef(ctx context.Context, ref string) (*model.Reservation, error) {
    row := r.db.QueryRowContext(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE payment_ref = ?`, ref)
    return scanOne(row)
}

// CompareAndSetStatus moves a reservation from one status to another in a
// single statement.  It reports false when the row was not in the expected
// status, which includes the case where another caller already moved it.
func (r *ReservationRepo) CompareAndSetStatus(ctx context.Context, id string, from, to model.Status) (bool, error) {
    const q = `UPDATE reservations SET status = ?, updated_at = ? WHERE id = ? AND status = ?`
    res, err := r.db.ExecContext(ctx, q, string(to), time.Now().UTC(), id, string(from))
    if err != nil {
        return false, err
    }
    n, err := res.RowsAffected()
    if err != nil {
        return false, err
    }
    return n == 1, nil
}

// ListOverlapping returns the reservations of a family whose span overlaps
// the given one and which still occupy their slot at now: confirmed ones and
// unpaid holds that have not yet expired.
func (r *ReservationRepo) ListOverlapping(ctx context.Context, family model.Family, span model.Span, now time.Time) ([]model.Reservation, error) {
    const q = `SELECT ` + reservationColumns + ` FROM reservations
        WHERE family = ? AND starts_at < ? AND ends_at > ?
          AND (status = 'CONFIRMED' OR (status = 'AWAITING_PAYMENT' AND hold_expires_at > ?))
        ORDER BY starts_at`
    rows, err := r.db.QueryContext(ctx, q, string(family), span.End.UTC(), span.Start.UTC(), now.UTC())
    if err != nil {
        return nil, err
    }
    return scanAll(rows)
}

// ListExpirable returns unpaid holds whose expiry is at or before now,
// oldest first.  limit <= 0 means no limit.
func (r *ReservationRepo) ListExpirable(ctx context.Context, now time.Time, limit int) ([]model.Reservation, error) {
    q := `SELECT ` + reservationColumns + ` FROM reservations
        WHERE status = 'AWAITING_PAYMENT' AND hold_expires_at <= ?
        ORDER BY hold_expires_at`
    args := []interface{}{now.UTC()}
    if limit > 0 {
        q += ` LIMIT ?`
        args = append(args, limit)
    }
    rows, err := r.db.QueryContext(ctx, q, args...)
    if err != nil {
        return nil, err
    }
    return scanAll(rows)
}

// ListLapsed returns the unpaid holds of a family overlapping span whose
// expiry is at or before now.  They no longer count against the pool but
// have not been settled yet.
func (r *ReservationRepo) ListLapsed(ctx context.Context, family model.Family, span model.Span, now time.Time) ([]model.Reservation, error) {
    const q = `SELECT ` + reservationColumns + ` FROM reservations
        WHERE family = ? AND starts_at < ? AND ends_at > ?
          AND status = 'AWAITING_PAYMENT' AND hold_expires_at <= ?
        ORDER BY hold_expires_at`
    rows, err := r.db.QueryContext(ctx, q, string(family), span.End.UTC(), span.Start.UTC(), now.UTC())
    if err != nil {
        return nil, err
    }
    return scanAll(rows)
}

// MarkNotified records that the confirmation of a reservation was published.
// A row already marked keeps its first timestamp.
func (r *ReservationRepo) MarkNotified(ctx context.Context, id string, at time.Time) error {
    const q = `UPDATE reservations SET notified_at = ? WHERE id = ? AND notified_at IS NULL`
    _, err := r.db.ExecContext(ctx, q, at.UTC(), id)
    return err
}

// ListUnnotified returns confirmed reservations whose confirmation has not
// been published and which were last updated before the given instant.
func (r *ReservationRepo) ListUnnotified(ctx context.Context, before time.Time, limit int) ([]model.Reservation, error) {
    q := `SELECT ` + reservationColumns + ` FROM reservations
        WHERE status = 'CONFIRMED' AND notified_at IS NULL AND updated_at <= ?
        ORDER BY updated_at`
    args := []interface{}{before.UTC()}
    if limit > 0 {
        q += ` LIMIT ?`
        args = append(args, limit)
    }
    rows, err := r.db.QueryContext(ctx, q, args...)
    if err != nil {
        return nil, err
    }
    return scanAll(rows)
}

// List returns reservations newest first, optionally filtered by status.
func (r *ReservationRepo) List(ctx context.Context, status model.Status, limit int) ([]model.Reservation, error) {
    q := `SELECT ` + reservationColumns + ` FROM reservations`
    var args []interface{}
    if status != "" {
        q += ` WHERE status = ?`
        args = append(args, string(status))
    }
    q += ` ORDER BY created_at DESC`
    if limit > 0 {
        q += ` LIMIT ?`
        args = append(args, limit)
    }
    rows, err := r.db.QueryContext(ctx, q, args...)
    if err != nil {
        return nil, err
    }
    return scanAll(rows)
}

type scanner interface {
    Scan(dest ...interface{}) error
}

func scanReservation(s scanner) (*model.Reservation, error) {
    var (
        res                  model.Reservation
        family, tier, status string
        ref                  sql.NullString
        notified             sql.NullTime
    )
    err := s.Scan(&res.ID, &res.PackageID, &family, &tier, &res.Headcount,
        &res.StartsAt, &res.EndsAt, &res.Zone, &res.PostalCode,
        &res.TotalCents, &res.DepositCents, &res.BalanceCents, &res.CautionCents,
        &res.Email, &status, &ref, &res.HoldExpiresAt, &notified, &res.CreatedAt, &res.UpdatedAt)
    if err != nil {
        return nil, err
    }
    res.Family = model.Family(family)
    res.Tier = model.Tier(tier)
    res.Status = model.Status(status)
    if ref.Valid {
        v := ref.String
        res.PaymentRef = &v
    }
    if notified.Valid {
        t := notified.Time
        res.NotifiedAt = &t
    }
    return &res, nil
}

func scanOne(row *sql.Row) (*model.Reservation, error) {
    res, err := scanReservation(row)
    if errors.Is(err, sql.ErrNoRows) {
        return nil, ErrNotFound
    }
    return res, err
}

func scanAll(rows *sql.Rows) ([]model.Reservation, error) {
    defer rows.Close()
    var out []model.Reservation
    for rows.Next() {
        res, err := scanReservation(rows)
        if err != nil {
            return nil, err
        }
        out = append(out, *res)
    }
    return out, rows.Err()
}
