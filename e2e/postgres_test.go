package e2e_test

import (
	"context"
	"sync"
	"testing"

	"github.com/testcontainers/testcontainers-go"
	pgcontainer "github.com/testcontainers/testcontainers-go/modules/postgres"
)

var (
	testContainerOnce sync.Once
	testDSN           string
	testContainerErr  error
)

// getSharedPostgresDatabase returns the DSN of a PostgreSQL container started
// once for the E2E run. The container is terminated by the Ryuk reaper when
// the test process exits.
func getSharedPostgresDatabase(t *testing.T) (dsn string) {
	t.Helper()

	testContainerOnce.Do(func() {
		ctx := context.Background()

		pgContainer, err := pgcontainer.Run(ctx,
			"postgres:18-alpine",
			pgcontainer.WithDatabase("testdb"),
			pgcontainer.WithUsername("testuser"),
			pgcontainer.WithPassword("testpass"),
			pgcontainer.BasicWaitStrategies(),
		)
		if err != nil {
			testContainerErr = err
			return
		}

		connectionStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
		if err != nil {
			_ = testcontainers.TerminateContainer(pgContainer)
			testContainerErr = err
			return
		}

		testDSN = connectionStr
	})

	if testContainerErr != nil {
		t.Fatalf("failed to start postgres container: %v", testContainerErr)
	}

	return testDSN
}
