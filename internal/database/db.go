package database

import (
	"context"
	"database/sql"
	"net"
	"time"

	"github.com/go-sql-driver/mysql"
)

// Settings describes the MySQL connection.  Zero pool values use the
// defaults below.
type Settings struct {
	User, Pass, Host, Port, Name string

	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

// DSN builds the driver DSN.  parseTime maps DATETIME columns to time.Time
// and loc=UTC keeps stored instants in UTC, which the reservation overlap
// queries rely on.
func (s Settings) DSN() string {
	cfg := mysql.NewConfig()
	cfg.User = s.User
	cfg.Passwd = s.Pass
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(s.Host, s.Port)
	cfg.DBName = s.Name
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	cfg.Params = map[string]string{"charset": "utf8mb4"}
	return cfg.FormatDSN()
}

// Open connects to MySQL and verifies the connection.
func Open(ctx context.Context, s Settings) (*sql.DB, error) {
	db, err := sql.Open("mysql", s.DSN())
	if err != nil {
		return nil, err
	}

	// Pool settings
	if s.MaxOpenConns <= 0 {
		s.MaxOpenConns = 25
	}
	if s.ConnMaxLifetime <= 0 {
		s.ConnMaxLifetime = 30 * time.Minute
	}
	db.SetMaxOpenConns(s.MaxOpenConns)
	db.SetMaxIdleConns(s.MaxOpenConns)
	db.SetConnMaxLifetime(s.ConnMaxLifetime)

	// Ping with timeout
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
