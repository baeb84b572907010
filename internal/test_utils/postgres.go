package test_utils

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/empbudget/budgetgrid/internal/config"
	"github.com/empbudget/budgetgrid/internal/database"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

const (
	testDbName   = "budgetgrid"
	testDbUser   = "test_budgetgrid"
	testDbPass   = "test_budgetgrid"
	testDbSchema = "budgetgrid"
)

func preparePostgresContainer(ctx context.Context) (container *postgres.PostgresContainer, err error) {
	// testcontainers panics when it cannot find a docker host at all.
	defer func() {
		if r := recover(); r != nil {
			container, err = nil, fmt.Errorf("no container runtime: %v", r)
		}
	}()

	projectRoot, err := findProjectRoot()
	if err != nil {
		return nil, fmt.Errorf("failed to find project root: %w", err)
	}

	return postgres.Run(
		ctx, "postgres:18.1-alpine",
		postgres.WithInitScripts(filepath.Join(projectRoot, "dev", "init.sql")),
		postgres.WithDatabase(testDbName),
		postgres.WithUsername(testDbUser),
		postgres.WithPassword(testDbPass),
		postgres.BasicWaitStrategies(),
	)
}

// TestWithDB starts a Postgres container, applies all migrations and returns a pool
// on it together with a cleanup function. It returns an error when no container
// runtime is available; callers skip their database tests in that case.
func TestWithDB() (*pgxpool.Pool, func(), error) {
	ctx := context.Background()

	container, err := preparePostgresContainer(ctx)
	if err != nil {
		return nil, func() {}, fmt.Errorf("failed to start postgres container: %w", err)
	}
	terminate := func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			log.Warnf("Failed to terminate postgres container: %v", err)
		}
	}

	host, err := container.Host(ctx)
	if err != nil {
		terminate()
		return nil, func() {}, err
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		terminate()
		return nil, func() {}, err
	}
	log.Infof("Postgres container started at %s:%d", host, port.Int())

	cfg := config.Database{
		Host:   host,
		Port:   port.Int(),
		User:   testDbUser,
		Pass:   testDbPass,
		Name:   testDbName,
		Schema: testDbSchema,
	}
	if err := database.Migrate(cfg); err != nil {
		terminate()
		return nil, func() {}, fmt.Errorf("failed to apply migrations: %w", err)
	}

	pool, err := database.Open(ctx, cfg)
	if err != nil {
		terminate()
		return nil, func() {}, err
	}
	return pool, func() {
		pool.Close()
		terminate()
	}, nil
}

// findProjectRoot walks up from the working directory to the directory holding go.mod.
func findProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("could not find project root")
		}
		dir = parent
	}
}
