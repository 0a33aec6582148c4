package repository

import (
    "context"
    "database/sql/driver"
    "regexp"
    "testing"
    "time"

    "github.com/DATA-DOG/go-sqlmock"
    "github.com/go-sql-driver/mysql"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/iliyamo/sound-rental/internal/model"
)

var columns = []string{"id", "package_id", "family", "tier", "headcount", "starts_at", "ends_at", "zone", "postal_code",
    "total_cents", "deposit_cents", "balance_cents", "caution_cents", "email", "status", "payment_ref",
    "hold_expires_at", "notified_at", "created_at", "updated_at"}

func newMock(t *testing.T) (*ReservationRepo, sqlmock.Sqlmock) {
    t.Helper()
    db, mock, err := sqlmock.New()
    require.NoError(t, err)
    t.Cleanup(func() { db.Close() })
    return NewReservationRepo(db), mock
}

func sampleRow(id string, status model.Status, ref interface{}) []driver.Value {
    start := time.Date(2025, 6, 1, 18, 0, 0, 0, time.UTC)
    return []driver.Value{id, "soiree", "soiree", "M", 60, start, start.Add(8 * time.Hour), "petite_couronne", "92100",
        int64(61000), int64(18300), int64(42700), int64(96000), "a@b.fr", string(status), ref,
        start.Add(-time.Hour), nil, start.Add(-2 * time.Hour), start.Add(-2 * time.Hour)}
}

func TestReservationRepoGet(t *testing.T) {
    repo, mock := newMock(t)
    mock.ExpectQuery(regexp.QuoteMeta("FROM reservations WHERE id = ?")).
        WithArgs("r1").
        WillReturnRows(sqlmock.NewRows(columns).AddRow(sampleRow("r1", model.StatusAwaitingPayment, "cs_1")...))

    res, err := repo.Get(context.Background(), "r1")
    require.NoError(t, err)
    assert.Equal(t, model.FamilySoiree, res.Family)
    assert.Equal(t, model.TierM, res.Tier)
    assert.Equal(t, model.StatusAwaitingPayment, res.Status)
    require.NotNil(t, res.PaymentRef)
    assert.Equal(t, "cs_1", *res.PaymentRef)
    assert.Nil(t, res.NotifiedAt)
    assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReservationRepoGetMissing(t *testing.T) {
    repo, mock := newMock(t)
    mock.ExpectQuery(regexp.QuoteMeta("FROM reservations WHERE payment_ref = ?")).
        WithArgs("cs_missing").
        WillReturnRows(sqlmock.NewRows(columns))

    _, err := repo.GetByPaymentRef(context.Background(), "cs_missing")
    assert.ErrorIs(t, err, ErrNotFound)
}

func TestReservationRepoCreateDuplicate(t *testing.T) {
    repo, mock := newMock(t)
    mock.ExpectExec("INSERT INTO reservations").
        WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})

    ref := "cs_1"
    err := repo.Create(context.Background(), &model.Reservation{ID: "r1", PaymentRef: &ref, Status: model.StatusAwaitingPayment})
    assert.ErrorIs(t, err, ErrConflict)
}

func TestReservationRepoCompareAndSetStatus(t *testing.T) {
    repo, mock := newMock(t)
    q := regexp.QuoteMeta("UPDATE reservations SET status = ?, updated_at = ? WHERE id = ? AND status = ?")
    mock.ExpectExec(q).
        WithArgs("CONFIRMED", sqlmock.AnyArg(), "r1", "AWAITING_PAYMENT").
        WillReturnResult(sqlmock.NewResult(0, 1))
    mock.ExpectExec(q).
        WithArgs("CONFIRMED", sqlmock.AnyArg(), "r1", "AWAITING_PAYMENT").
        WillReturnResult(sqlmock.NewResult(0, 0))

    ok, err := repo.CompareAndSetStatus(context.Background(), "r1", model.StatusAwaitingPayment, model.StatusConfirmed)
    require.NoError(t, err)
    assert.True(t, ok)
    ok, err = repo.CompareAndSetStatus(context.Background(), "r1", model.StatusAwaitingPayment, model.StatusConfirmed)
    require.NoError(t, err)
    assert.False(t, ok)
    assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReservationRepoListOverlappingFiltersHolds(t *testing.T) {
    repo, mock := newMock(t)
    now := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
    sp := model.Span{Start: time.Date(2025, 6, 1, 18, 0, 0, 0, time.UTC), End: time.Date(2025, 6, 2, 2, 0, 0, 0, time.UTC)}
    mock.ExpectQuery(regexp.QuoteMeta("status = 'AWAITING_PAYMENT' AND hold_expires_at > ?")).
        WithArgs("soiree", sp.End, sp.Start, now).
        WillReturnRows(sqlmock.NewRows(columns).
            AddRow(sampleRow("r1", model.StatusConfirmed, nil)...).
            AddRow(sampleRow("r2", model.StatusAwaitingPayment, "cs_2")...))

    got, err := repo.ListOverlapping(context.Background(), model.FamilySoiree, sp, now)
    require.NoError(t, err)
    require.Len(t, got, 2)
    assert.Nil(t, got[0].PaymentRef)
    assert.Equal(t, "r2", got[1].ID)
    assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReservationRepoListAppliesFilterAndLimit(t *testing.T) {
    repo, mock := newMock(t)
    mock.ExpectQuery(regexp.QuoteMeta("WHERE status = ? ORDER BY created_at DESC LIMIT ?")).
        WithArgs("EXPIRED", 10).
        WillReturnRows(sqlmock.NewRows(columns))

    got, err := repo.List(context.Background(), model.StatusExpired, 10)
    require.NoError(t, err)
    assert.Empty(t, got)
    assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReservationRepoListLapsed(t *testing.T) {
    repo, mock := newMock(t)
    now := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
    sp := model.Span{Start: time.Date(2025, 6, 1, 18, 0, 0, 0, time.UTC), End: time.Date(2025, 6, 2, 2, 0, 0, 0, time.UTC)}
    mock.ExpectQuery(regexp.QuoteMeta("status = 'AWAITING_PAYMENT' AND hold_expires_at <= ?")).
        WithArgs("soiree", sp.End, sp.Start, now).
        WillReturnRows(sqlmock.NewRows(columns).AddRow(sampleRow("r1", model.StatusAwaitingPayment, "cs_1")...))

    got, err := repo.ListLapsed(context.Background(), model.FamilySoiree, sp, now)
    require.NoError(t, err)
    require.Len(t, got, 1)
    assert.Equal(t, "r1", got[0].ID)
    assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReservationRepoNotificationOutbox(t *testing.T) {
    repo, mock := newMock(t)
    at := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
    mock.ExpectExec(regexp.QuoteMeta("UPDATE reservations SET notified_at = ? WHERE id = ? AND notified_at IS NULL")).
        WithArgs(at, "r1").
        WillReturnResult(sqlmock.NewResult(0, 1))
    require.NoError(t, repo.MarkNotified(context.Background(), "r1", at))

    row := sampleRow("r2", model.StatusConfirmed, "cs_2")
    mock.ExpectQuery(regexp.QuoteMeta("WHERE status = 'CONFIRMED' AND notified_at IS NULL AND updated_at <= ?")).
        WithArgs(at, 50).
        WillReturnRows(sqlmock.NewRows(columns).AddRow(row...))
    got, err := repo.ListUnnotified(context.Background(), at, 50)
    require.NoError(t, err)
    require.Len(t, got, 1)
    assert.Equal(t, "r2", got[0].ID)
    assert.Nil(t, got[0].NotifiedAt)

    row[17] = at
    mock.ExpectQuery(regexp.QuoteMeta("FROM reservations WHERE id = ?")).
        WithArgs("r2").
        WillReturnRows(sqlmock.NewRows(columns).AddRow(row...))
    res, err := repo.Get(context.Background(), "r2")
    require.NoError(t, err)
    require.NotNil(t, res.NotifiedAt)
    assert.Equal(t, at, *res.NotifiedAt)
    assert.NoError(t, mock.ExpectationsWereMet())
}
