//go:build integration

package itests

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"RefineAPI/internal/config"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"
)

const testDBName = "refine_test"

// DeriveTestDSN points baseDSN at the test database and at the postgres
// maintenance database used to create and drop it.
func DeriveTestDSN(baseDSN string) (testDSN, adminDSN string, err error) {
	u, err := url.Parse(baseDSN)
	if err != nil {
		return "", "", fmt.Errorf("parse DSN: %w", err)
	}
	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return "", "", errors.New("only URL DSN supported: postgres://...")
	}
	if host := u.Hostname(); host != "localhost" && host != "127.0.0.1" {
		return "", "", fmt.Errorf("refuse non-local host for tests: %s", host)
	}

	u.Path = "/" + testDBName
	testDSN = u.String()
	u.Path = "/postgres"
	return testDSN, u.String(), nil
}

func withAdmin(adminDSN string, timeout time.Duration, fn func(context.Context, *sql.DB) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	conn, err := sql.Open("pgx", adminDSN)
	if err != nil {
		return err
	}
	defer conn.Close()
	return fn(ctx, conn)
}

func CreateTestDatabase(adminDSN string) error {
	return withAdmin(adminDSN, 10*time.Second, func(ctx context.Context, conn *sql.DB) error {
		var exists bool
		if err := conn.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM pg_database WHERE datname=$1)`, testDBName,
		).Scan(&exists); err != nil {
			return err
		}
		if exists {
			return nil
		}
		_, err := conn.ExecContext(ctx, `CREATE DATABASE `+pqIdent(testDBName))
		return err
	})
}

func DropTestDatabase(adminDSN string) error {
	return withAdmin(adminDSN, 15*time.Second, func(ctx context.Context, conn *sql.DB) error {
		_, _ = conn.ExecContext(ctx, `
			SELECT pg_terminate_backend(pid)
			FROM pg_stat_activity
			WHERE datname = $1 AND pid <> pg_backend_pid()
		`, testDBName)
		_, err := conn.ExecContext(ctx, `DROP DATABASE IF EXISTS `+pqIdent(testDBName))
		return err
	})
}

func pqIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func applyMigrations(testDSN string) error {
	root, err := config.FindRepoRoot()
	if err != nil {
		return fmt.Errorf("repo root not found: %w", err)
	}
	abs, err := filepath.Abs(filepath.Join(root, "test_db", "migrations"))
	if err != nil {
		return fmt.Errorf("abs migrations: %w", err)
	}

	m, err := migrate.New("file://"+filepath.ToSlash(abs), testDSN)
	if err != nil {
		return fmt.Errorf("migrate.New: %w", err)
	}
	defer func() { _, _ = m.Close() }()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}

// SetupTestDB creates and migrates the test database, then hands its DSN to
// initFunc. The returned teardown drops it again.
func SetupTestDB(baseDSN string, initFunc func(string) error) (teardown func() error, err error) {
	if os.Getenv("APP_ENV") == "production" {
		return nil, errors.New("APP_ENV=production, aborting tests")
	}
	testDSN, adminDSN, err := DeriveTestDSN(baseDSN)
	if err != nil {
		return nil, err
	}

	if err := CreateTestDatabase(adminDSN); err != nil {
		return nil, fmt.Errorf("create DB %q: %w (POSTGRES_DSN=%s)", testDBName, err, redactDSN(baseDSN))
	}
	if err := applyMigrations(testDSN); err != nil {
		_ = DropTestDatabase(adminDSN)
		return nil, err
	}
	log.Printf("test DB %q migrated", testDBName)

	if initFunc != nil {
		if err := initFunc(testDSN); err != nil {
			_ = DropTestDatabase(adminDSN)
			return nil, fmt.Errorf("init postgres: %w (POSTGRES_DSN=%s)", err, redactDSN(baseDSN))
		}
	}
	return func() error { return DropTestDatabase(adminDSN) }, nil
}

func redactDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.User == nil || u.User.Username() == "" {
		return dsn
	}
	u.User = url.UserPassword(u.User.Username(), "******")
	return u.String()
}
