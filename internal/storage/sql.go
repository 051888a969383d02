package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Credentials struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
}

func (c *Credentials) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		c.Host,
		c.Port,
		c.User,
		c.Password,
		c.DBName)
}

// SQLStore keeps session values in a single table. The same statements run
// on sqlite and postgres.
type SQLStore struct {
	db     *sql.DB
	driver string
}

func NewSQLiteStore(path string) (*SQLStore, error) {
	dsn := path
	if !strings.Contains(dsn, "?") {
		dsn += "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}
	return openSQL(DriverSQLite, dsn)
}

func NewPostgresStore(cred *Credentials) (*SQLStore, error) {
	s, err := openSQL(DriverPostgres, cred.DSN())
	if err != nil {
		return nil, err
	}
	s.db.SetMaxOpenConns(100)
	s.db.SetMaxIdleConns(10)
	return s, nil
}

func openSQL(driver, dsn string) (*SQLStore, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLStore{db: db, driver: driver}, nil
}

func (s *SQLStore) RunMigrations() error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("could not open migrations: %w", err)
	}

	var driver database.Driver
	switch s.driver {
	case DriverPostgres:
		driver, err = postgres.WithInstance(s.db, &postgres.Config{})
	default:
		driver, err = sqlite.WithInstance(s.db, &sqlite.Config{})
	}
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, s.driver, driver)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", err)
	}

	return nil
}

func (s *SQLStore) Get(ctx context.Context, sessionID, key string) ([]byte, error) {
	query := `
		SELECT payload
		FROM session_values
		WHERE session_id = $1 AND item_key = $2
	`

	var payload string
	err := s.db.QueryRowContext(ctx, query, sessionID, key).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session value: %w", err)
	}
	return []byte(payload), nil
}

func (s *SQLStore) Set(ctx context.Context, sessionID, key string, value []byte) error {
	query := `
		INSERT INTO session_values (session_id, item_key, payload, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (session_id, item_key)
		DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at
	`

	if _, err := s.db.ExecContext(ctx, query, sessionID, key, string(value), time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to set session value: %w", err)
	}
	return nil
}

func (s *SQLStore) Delete(ctx context.Context, sessionID, key string) error {
	query := `DELETE FROM session_values WHERE session_id = $1 AND item_key = $2`

	if _, err := s.db.ExecContext(ctx, query, sessionID, key); err != nil {
		return fmt.Errorf("failed to delete session value: %w", err)
	}
	return nil
}

// PurgeOlderThan removes values not written since cutoff.
func (s *SQLStore) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM session_values WHERE updated_at < $1`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to purge session values: %w", err)
	}
	return res.RowsAffected()
}

func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}
