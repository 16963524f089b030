//go:build integration

package postgres

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

var (
	testPool    *pgxpool.Pool
	pgContainer testcontainers.Container
	setupErr    error
)

func TestMain(m *testing.M) {
	ctx := context.Background()
	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		Env:          map[string]string{"POSTGRES_PASSWORD": "secret", "POSTGRES_USER": "postgres", "POSTGRES_DB": "backtester"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start postgres container: %v\n", err)
		os.Exit(1)
	}
	pgContainer = container

	setupErr = initialiseDatabase(ctx)
	exitCode := 0
	if setupErr != nil {
		fmt.Fprintf(os.Stderr, "postgres price source tests skipped: %v\n", setupErr)
	} else {
		exitCode = m.Run()
	}

	if testPool != nil {
		testPool.Close()
	}
	if pgContainer != nil {
		_ = pgContainer.Terminate(ctx)
	}
	os.Exit(exitCode)
}

func initialiseDatabase(ctx context.Context) error {
	host, err := pgContainer.Host(ctx)
	if err != nil {
		return fmt.Errorf("container host: %w", err)
	}
	port, err := pgContainer.MappedPort(ctx, "5432/tcp")
	if err != nil {
		return fmt.Errorf("container port: %w", err)
	}
	dsn := fmt.Sprintf("postgres://postgres:secret@%s:%s/backtester?sslmode=disable", host, port.Port())

	if err := ApplyMigrations(ctx, dsn); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return fmt.Errorf("pgx pool: %w", err)
	}
	testPool = pool
	return nil
}

func TestSourceBarRoundTrip(t *testing.T) {
	if setupErr != nil {
		t.Skipf("postgres setup unavailable: %v", setupErr)
	}
	ctx := context.Background()

	date := time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC)
	_, err := testPool.Exec(ctx,
		`INSERT INTO daily_bars (symbol, trading_date, open, high, low, close, volume) VALUES ($1,$2,$3,$4,$5,$6,$7)
		 ON CONFLICT (symbol, trading_date) DO UPDATE SET open=EXCLUDED.open, close=EXCLUDED.close`,
		"AAPL", date, 100.0, 105.0, 99.0, 102.5, 1_000_000.0)
	if err != nil {
		t.Fatalf("seed daily_bars: %v", err)
	}

	src := New(testPool)
	bar, err := src.Bar("AAPL", date)
	if err != nil {
		t.Fatalf("bar: %v", err)
	}
	if bar.Close != 102.5 {
		t.Fatalf("expected close 102.5, got %v", bar.Close)
	}
	if bar.Open != 100.0 {
		t.Fatalf("expected open 100.0, got %v", bar.Open)
	}
}

func TestSourceBarMissingReturnsOutOfRange(t *testing.T) {
	if setupErr != nil {
		t.Skipf("postgres setup unavailable: %v", setupErr)
	}
	src := New(testPool)
	if _, err := src.Bar("NOPE", time.Date(1999, 1, 1, 0, 0, 0, 0, time.UTC)); err == nil {
		t.Fatalf("expected error for missing bar")
	}
}
