package pgsmith

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/puddle/v2"
	"github.com/rs/zerolog"
)

// Config describes how to reach the database and how connections are
// managed. User, Password, and Database are required.
type Config struct {
	Host     string // default localhost
	Port     uint16 // default 5432
	User     string
	Password string
	Database string

	// ConnectTimeout bounds connection establishment. Zero means no limit.
	ConnectTimeout time.Duration

	// MaxConns selects the connection mode: zero means a single lazily
	// created connection, anything greater a pool of that size. The mode is
	// fixed at construction.
	MaxConns int32

	// TypeMap overrides the process-wide decoder registry. Nil means
	// DefaultTypeMap.
	TypeMap *TypeMap

	// Logger receives suppressed rollback and shutdown errors. The zero
	// value discards everything.
	Logger zerolog.Logger
}

func (c *Config) validate() error {
	if c.User == "" {
		return &ConfigError{Field: "user"}
	}
	if c.Password == "" {
		return &ConfigError{Field: "password"}
	}
	if c.Database == "" {
		return &ConfigError{Field: "database"}
	}
	return nil
}

func (c *Config) connString() string {
	host := c.Host
	if host == "" {
		host = "localhost"
	}
	port := c.Port
	if port == 0 {
		port = 5432
	}

	parts := []string{
		"host=" + dsnValue(host),
		fmt.Sprintf("port=%d", port),
		"user=" + dsnValue(c.User),
		"password=" + dsnValue(c.Password),
		"dbname=" + dsnValue(c.Database),
	}
	if c.ConnectTimeout > 0 {
		parts = append(parts, fmt.Sprintf("connect_timeout=%d", int(c.ConnectTimeout.Seconds())))
	}
	return strings.Join(parts, " ")
}

// dsnValue quotes a keyword/value DSN value so spaces, quotes, and
// backslashes survive parsing.
func dsnValue(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	return "'" + r.Replace(s) + "'"
}

// DB hands out connections, either from a bounded pool or from a single
// cached connection, depending on Config.MaxConns.
type DB struct {
	config  Config
	logger  zerolog.Logger
	typeMap *TypeMap
	builder *StatementBuilder

	dial func(ctx context.Context) (wire, error)
	pool *puddle.Pool[wire]

	// single-connection mode state
	mu     sync.Mutex
	single wire
}

// New validates the config and constructs a DB. The default decoder
// registry is initialized here; doing so repeatedly has no further effect.
// In pool mode the pool is created empty and fills on demand; in
// single-connection mode the first Acquire dials.
func New(cfg Config) (*DB, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	typeMap := cfg.TypeMap
	if typeMap == nil {
		typeMap = DefaultTypeMap()
	}

	db := &DB{
		config:  cfg,
		logger:  cfg.Logger,
		typeMap: typeMap,
		builder: NewStatementBuilder(),
	}
	db.dial = func(ctx context.Context) (wire, error) {
		connConfig, err := pgconn.ParseConfig(db.config.connString())
		if err != nil {
			return nil, err
		}
		conn, err := pgconn.ConnectConfig(ctx, connConfig)
		if err != nil {
			return nil, err
		}
		return &pgWire{conn: conn}, nil
	}

	if cfg.MaxConns > 0 {
		pool, err := puddle.NewPool(&puddle.Config[wire]{
			Constructor: func(ctx context.Context) (wire, error) {
				return db.dial(ctx)
			},
			Destructor: func(w wire) {
				if err := w.close(context.Background()); err != nil {
					db.logger.Debug().Err(err).Msg("error closing pooled connection")
				}
			},
			MaxSize: cfg.MaxConns,
		})
		if err != nil {
			return nil, err
		}
		db.pool = pool
	}

	return db, nil
}

// Acquire returns a connection. In pool mode it blocks until a pool slot is
// available; in single-connection mode it dials on first use and hands out
// the cached connection thereafter.
func (db *DB) Acquire(ctx context.Context) (*Conn, error) {
	if db.pool != nil {
		res, err := db.pool.Acquire(ctx)
		if err != nil {
			return nil, err
		}
		return db.newConn(res.Value(), func(err error) {
			if err != nil {
				res.Destroy()
			} else {
				res.Release()
			}
		}), nil
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	if db.single == nil || db.single.isClosed() {
		w, err := db.dial(ctx)
		if err != nil {
			return nil, err
		}
		db.single = w
	}

	w := db.single
	return db.newConn(w, func(err error) {
		if err == nil {
			return
		}
		// The connection was reported unhealthy. Drop the cache so the next
		// Acquire dials fresh.
		db.mu.Lock()
		defer db.mu.Unlock()
		if db.single == w {
			if closeErr := w.close(context.Background()); closeErr != nil {
				db.logger.Debug().Err(closeErr).Msg("error closing invalidated connection")
			}
			db.single = nil
		}
	}), nil
}

func (db *DB) newConn(w wire, release func(error)) *Conn {
	return &Conn{
		wire:    w,
		typeMap: db.typeMap,
		builder: db.builder,
		logger:  db.logger,
		release: release,
	}
}

// WithConn acquires a connection, runs fn, and releases the connection with
// fn's error so failed units of work discard their connection.
func (db *DB) WithConn(ctx context.Context, fn func(*Conn) error) error {
	conn, err := db.Acquire(ctx)
	if err != nil {
		return err
	}
	defer func() {
		conn.Release(err)
	}()
	err = fn(conn)
	return err
}

// Transact acquires a connection and runs fn inside a transaction on it.
func (db *DB) Transact(ctx context.Context, fn func(*Conn) error) error {
	return db.WithConn(ctx, func(conn *Conn) error {
		return conn.Transact(ctx, fn)
	})
}

// Close shuts the DB down: pool mode drains and closes the pool, single
// mode closes the cached connection if one exists. Shutdown errors are
// logged and swallowed.
func (db *DB) Close(ctx context.Context) {
	if db.pool != nil {
		db.pool.Close()
		return
	}

	db.mu.Lock()
	defer db.mu.Unlock()
	if db.single != nil {
		if err := db.single.close(ctx); err != nil {
			db.logger.Debug().Err(err).Msg("error closing connection during shutdown")
		}
		db.single = nil
	}
}
