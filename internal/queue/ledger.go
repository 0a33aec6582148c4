package queue

import (
    "context"
    "fmt"
    "io"
    "strconv"
    "sync"
    "time"

    "github.com/redis/go-redis/v9"
)

// recordScript marks a reservation as recorded and adds its amounts in one
// step, so a redelivered event can neither double-count revenue nor be
// counted without its marker.
var recordScript = redis.NewScript(`
    if redis.call('SET', KEYS[1], ARGV[1], 'NX', 'EX', ARGV[2]) then
        redis.call('INCRBY', KEYS[2], ARGV[3])
        redis.call('INCRBY', KEYS[3], ARGV[4])
        redis.call('INCR', KEYS[4])
        return 1
    end
    return 0
`)

// Totals are the running figures kept by the ledger.
type Totals struct {
    Confirmed    int64 `json:"confirmed"`
    DepositCents int64 `json:"deposit_cents"`
    TotalCents   int64 `json:"total_cents"`
}

// Ledger records each confirmed reservation once.  With a Redis client the
// dedupe markers and totals are shared by every consumer; without one they
// live in process memory.  Every first-time record is also written as a
// line to out.
type Ledger struct {
    rdb    *redis.Client
    out    io.Writer
    prefix string
    keep   time.Duration

    mu     sync.Mutex
    seen   map[string]bool
    totals Totals
}

func NewLedger(rdb *redis.Client, out io.Writer, prefix string) *Ledger {
    if prefix == "" {
        prefix = "ledger"
    }
    if out == nil {
        out = io.Discard
    }
    return &Ledger{rdb: rdb, out: out, prefix: prefix, keep: 180 * 24 * time.Hour, seen: map[string]bool{}}
}

func (l *Ledger) key(parts ...string) string {
    k := l.prefix
    for _, p := range parts {
        k += ":" + p
    }
    return k
}

// Record adds ev to the ledger.  It reports false when the reservation had
// already been recorded.
func (l *Ledger) Record(ctx context.Context, ev ReservationConfirmedEvent) (bool, error) {
    if ev.ReservationID == "" {
        return false, fmt.Errorf("ledger: event without reservation id")
    }
    first, err := l.mark(ctx, ev)
    if err != nil || !first {
        return false, err
    }
    line := fmt.Sprintf("[%s] Reservation confirmed | reservation_id=%s | package=%s | tier=%s | headcount=%d | starts_at=%s | zone=%s | total=%d cents | deposit=%d cents\n",
        ev.ConfirmedAt, ev.ReservationID, ev.PackageID, ev.Tier, ev.Headcount, ev.StartsAt, ev.Zone, ev.TotalCents, ev.DepositCents)
    l.mu.Lock()
    defer l.mu.Unlock()
    if _, err := io.WriteString(l.out, line); err != nil {
        return true, fmt.Errorf("ledger: write: %w", err)
    }
    return true, nil
}

func (l *Ledger) mark(ctx context.Context, ev ReservationConfirmedEvent) (bool, error) {
    if l.rdb == nil {
        l.mu.Lock()
        defer l.mu.Unlock()
        if l.seen[ev.ReservationID] {
            return false, nil
        }
        l.seen[ev.ReservationID] = true
        l.totals.Confirmed++
        l.totals.DepositCents += ev.DepositCents
        l.totals.TotalCents += ev.TotalCents
        return true, nil
    }
    n, err := recordScript.Run(ctx, l.rdb,
        []string{l.key("seen", ev.ReservationID), l.key("deposit_cents"), l.key("total_cents"), l.key("confirmed")},
        ev.ConfirmedAt, int64(l.keep/time.Second), ev.DepositCents, ev.TotalCents,
    ).Int()
    if err != nil {
        return false, fmt.Errorf("ledger: record: %w", err)
    }
    return n == 1, nil
}

// Totals returns the running figures.
func (l *Ledger) Totals(ctx context.Context) (Totals, error) {
    if l.rdb == nil {
        l.mu.Lock()
        defer l.mu.Unlock()
        return l.totals, nil
    }
    vals, err := l.rdb.MGet(ctx, l.key("confirmed"), l.key("deposit_cents"), l.key("total_cents")).Result()
    if err != nil {
        return Totals{}, err
    }
    num := func(v interface{}) int64 {
        s, _ := v.(string)
        n, _ := strconv.ParseInt(s, 10, 64)
        return n
    }
    return Totals{Confirmed: num(vals[0]), DepositCents: num(vals[1]), TotalCents: num(vals[2])}, nil
}
