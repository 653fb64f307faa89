package database

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// Dialect selects the placeholder style and insert strategy of a driver.
type Dialect string

const (
	DialectMySQL    Dialect = "mysql"
	DialectPostgres Dialect = "pgx"
	DialectSQLite   Dialect = "sqlite3"
)

// DB is a *sql.DB that knows which SQL dialect it talks.  Repositories
// write queries with `?` placeholders and call Rebind before executing.
type DB struct {
	*sql.DB
	Dialect Dialect
}

// Wrap pairs an open handle with its dialect.
func Wrap(db *sql.DB, d Dialect) *DB { return &DB{DB: db, Dialect: d} }

// Options describes how to reach the database.
type Options struct {
	Driver string // mysql (default) or pgx
	User   string
	Pass   string
	Host   string
	Port   string
	Name   string
}

// DSN builds the driver name and connection string for opts.
func DSN(opts Options) (Dialect, string, error) {
	switch strings.ToLower(opts.Driver) {
	case "", "mysql":
		auth := opts.User
		if opts.Pass != "" {
			auth = fmt.Sprintf("%s:%s", opts.User, opts.Pass)
		}
		// parseTime=true -> DATETIME -> time.Time | loc=UTC keeps times consistent
		// clientFoundRows=true -> RowsAffected counts matched rows, not changed ones
		return DialectMySQL, fmt.Sprintf("%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=true&loc=UTC&clientFoundRows=true",
			auth, opts.Host, opts.Port, opts.Name), nil
	case "pgx", "postgres", "postgresql":
		return DialectPostgres, fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable&timezone=UTC",
			opts.User, opts.Pass, opts.Host, opts.Port, opts.Name), nil
	default:
		return "", "", fmt.Errorf("unsupported DB_DRIVER %q", opts.Driver)
	}
}

// Open connects to MySQL or Postgres and verifies the connection.
func Open(opts Options) (*DB, error) {
	dialect, dsn, err := DSN(opts)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(string(dialect), dsn)
	if err != nil {
		return nil, err
	}

	// Pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(30 * time.Minute)

	// Ping with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return Wrap(db, dialect), nil
}

// Rebind rewrites `?` placeholders into `$1, $2, ...` for Postgres and
// returns the query untouched for the other dialects.
func (d *DB) Rebind(query string) string {
	if d.Dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// InsertID executes an INSERT and returns the generated primary key.
// Postgres has no LastInsertId so the statement is run with RETURNING.
func (d *DB) InsertID(ctx context.Context, query string, args ...any) (uint64, error) {
	if d.Dialect == DialectPostgres {
		var id int64
		if err := d.QueryRowContext(ctx, d.Rebind(query)+" RETURNING id", args...).Scan(&id); err != nil {
			return 0, err
		}
		return uint64(id), nil
	}
	res, err := d.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}
