// Package database opens gorm connections from SQLAlchemy-style URIs.
//
// The same URIs describe the metadata ("index") database and every engine a
// query can run on:
//
//	sqlite://                        in-memory SQLite
//	sqlite:///djqs.db                relative path
//	sqlite:////var/lib/djqs.db       absolute path
//	postgresql://user:pw@host:5432/db
//	mysql://user:pw@host:3306/db
//	mssql://user:pw@host:1433/db
package database

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/driver/sqlserver"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Options tunes the connection pool.
type Options struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// DefaultOptions mirrors the pool settings used for the index database.
func DefaultOptions() Options {
	return Options{
		MaxOpenConns:    25,
		MaxIdleConns:    10,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: 2 * time.Minute,
	}
}

// Open parses uri, opens the database, applies opts and verifies the
// connection with a ping.
func Open(ctx context.Context, uri string, opts Options) (*gorm.DB, error) {
	driver, dsn, err := ParseURI(uri)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}

	dialector, err := buildDialector(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("database: build dialector: %w", err)
	}

	// The only ping is the PingContext below, which honours ctx.
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:               logger.Default.LogMode(logger.Silent), // pkg/logger owns logging
		DisableAutomaticPing: true,
		TranslateError:       true,
	})
	if err != nil {
		return nil, fmt.Errorf("database: open: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("database: get sql.DB: %w", err)
	}

	if driver == "sqlite" && isMemorySQLite(dsn) {
		// Every new connection to :memory: is a fresh, empty database.
		opts.MaxOpenConns = 1
		opts.MaxIdleConns = 1
		opts.ConnMaxLifetime = 0
		opts.ConnMaxIdleTime = 0
	}
	if opts.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(opts.MaxIdleConns)
	}
	sqlDB.SetConnMaxLifetime(opts.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(opts.ConnMaxIdleTime)

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("database: ping: %w", err)
	}

	return db, nil
}

// Close releases the pool behind db.
func Close(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping checks that db is reachable.
func Ping(ctx context.Context, db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("database: not connected")
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// IsDuplicateKey reports whether err is a unique constraint violation.
// The sqlite dialector does not translate mattn errors, so those are matched
// by their extended code.
func IsDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}

// ParseURI translates a SQLAlchemy-style URI into a gorm driver name and the
// DSN that driver expects.
func ParseURI(uri string) (driver, dsn string, err error) {
	scheme, rest, ok := strings.Cut(strings.TrimSpace(uri), "://")
	if !ok {
		return "", "", fmt.Errorf("invalid database URI %q", uri)
	}
	// "postgresql+psycopg2" → "postgresql"
	scheme, _, _ = strings.Cut(strings.ToLower(scheme), "+")

	switch scheme {
	case "sqlite", "sqlite3":
		return "sqlite", sqliteDSN(rest), nil
	case "postgres", "postgresql":
		return "postgres", "postgres://" + rest, nil
	case "mysql", "mariadb":
		dsn, err := mysqlDSN(rest)
		return "mysql", dsn, err
	case "mssql", "sqlserver":
		return "sqlserver", "sqlserver://" + rest, nil
	default:
		return "", "", fmt.Errorf("unsupported database scheme %q (supported: sqlite, postgresql, mysql, mssql)", scheme)
	}
}

func sqliteDSN(rest string) string {
	switch {
	case rest == "" || rest == "/" || rest == "/:memory:":
		return ":memory:"
	case strings.HasPrefix(rest, "/"):
		// sqlite:///rel.db → "rel.db", sqlite:////abs.db → "/abs.db"
		return strings.TrimPrefix(rest, "/")
	default:
		return rest
	}
}

func isMemorySQLite(dsn string) bool {
	return dsn == ":memory:" || strings.Contains(dsn, "mode=memory")
}

// mysqlDSN converts "user:pw@host:3306/db?x=y" into the go-sql-driver form
// "user:pw@tcp(host:3306)/db?parseTime=true&x=y".
func mysqlDSN(rest string) (string, error) {
	u, err := url.Parse("mysql://" + rest)
	if err != nil {
		return "", fmt.Errorf("invalid mysql URI: %w", err)
	}

	var auth string
	if u.User != nil {
		auth = u.User.Username()
		if pw, ok := u.User.Password(); ok {
			auth += ":" + pw
		}
		auth += "@"
	}

	host := u.Host
	if u.Port() == "" {
		host += ":3306"
	}

	q := u.Query()
	if q.Get("parseTime") == "" {
		q.Set("parseTime", "true")
	}

	return fmt.Sprintf("%stcp(%s)/%s?%s", auth, host, strings.TrimPrefix(u.Path, "/"), q.Encode()), nil
}

func buildDialector(driver, dsn string) (gorm.Dialector, error) {
	switch driver {
	case "sqlite":
		return sqlite.Open(dsn), nil
	case "postgres":
		return postgres.Open(dsn), nil
	case "mysql":
		// SELECT VERSION() would run without ctx, so it is skipped.
		return mysql.New(mysql.Config{DSN: dsn, SkipInitializeWithVersion: true}), nil
	case "sqlserver":
		return sqlserver.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}
}
