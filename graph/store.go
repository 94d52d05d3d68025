package graph

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/seemabhatta/CustomerCallCenterAnalytics-sub002/health"
	"github.com/seemabhatta/CustomerCallCenterAnalytics-sub002/schema"
)

// DatabaseFile is the name of the database file inside the data directory.
const DatabaseFile = "graph.db"

// Store owns the single connection pool to the embedded engine and implements every
// read and mutate operation on the graph.
//
// Reads may run concurrently from any goroutine. Mutations must be serialized by the
// caller: the engine admits one writer at a time, and the write queue in package queue
// is the intended way to funnel concurrent producers into one writer.
type Store struct {
	db     *sql.DB
	dir    string
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Store.
type Option func(*options)

type options struct {
	logger       *slog.Logger
	clock        func() time.Time
	busyTimeout  time.Duration
	maxOpenConns int
}

func defaultOptions() options {
	return options{
		logger:       slog.Default(),
		clock:        time.Now,
		busyTimeout:  5 * time.Second,
		maxOpenConns: 8,
	}
}

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithClock sets the clock used for store-assigned timestamps.
func WithClock(clock func() time.Time) Option {
	return func(o *options) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithBusyTimeout sets how long a connection waits on a locked database.
func WithBusyTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.busyTimeout = d
		}
	}
}

// WithMaxOpenConns bounds the connection pool shared by readers and the writer.
func WithMaxOpenConns(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxOpenConns = n
		}
	}
}

// Open opens (creating if absent) the graph database under dir and declares the schema.
// Schema declaration is idempotent, so reopening an existing directory is safe.
func Open(ctx context.Context, dir string, opts ...Option) (*Store, error) {
	const op = "Open"

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	if dir == "" {
		return nil, fmt.Errorf("%w: data directory is required", ErrInvalidArgument)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &StoreError{Op: op, Kind: KindIO, Err: err}
	}

	dsn := fmt.Sprintf(
		"file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_txlock=immediate",
		filepath.Join(dir, DatabaseFile),
		o.busyTimeout.Milliseconds(),
	)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, &StoreError{Op: op, Kind: KindIO, Err: err}
	}
	db.SetMaxOpenConns(o.maxOpenConns)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, wrapErr(op, err)
	}

	for _, stmt := range schema.DDL() {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, wrapErr(op, fmt.Errorf("declare schema: %w", err))
		}
	}

	s := &Store{
		db:     db,
		dir:    dir,
		logger: o.logger.With("component", "graph"),
		now:    o.clock,
	}
	s.logger.Info("graph store opened", "dir", dir)
	return s, nil
}

// Close releases the engine handle.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	if err != nil {
		return wrapErr("Close", err)
	}
	return nil
}

// Dir returns the data directory.
func (s *Store) Dir() string {
	return s.dir
}

// Health checks the data directory and that the engine answers a trivial query.
func (s *Store) Health(ctx context.Context) health.Status {
	return health.Combine(
		health.FileCheck(filepath.Join(s.dir, DatabaseFile)),
		health.ErrorCheck("engine", s.ping(ctx)),
	)
}

func (s *Store) ping(ctx context.Context) error {
	if s.db == nil {
		return ErrClosed
	}
	var one int
	if err := s.db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return err
	}
	if one != 1 {
		return fmt.Errorf("unexpected query result: %d", one)
	}
	return nil
}

// timestamp returns the store-assigned write time in the stored representation.
func (s *Store) timestamp() int64 {
	return s.now().UTC().UnixNano()
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// reader returns the handle reads run against.
func (s *Store) reader() (querier, error) {
	if s.db == nil {
		return nil, ErrClosed
	}
	return s.db, nil
}

// withTx executes fn within a transaction. If fn returns an error the transaction is
// rolled back, otherwise it is committed. The returned error is wrapped for op.
func (s *Store) withTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	if s.db == nil {
		return ErrClosed
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapErr(op, fmt.Errorf("begin transaction: %w", err))
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return wrapErr(op, fmt.Errorf("%w (rollback: %v)", err, rbErr))
		}
		return wrapErr(op, err)
	}

	if err := tx.Commit(); err != nil {
		return wrapErr(op, fmt.Errorf("commit transaction: %w", err))
	}
	return nil
}
