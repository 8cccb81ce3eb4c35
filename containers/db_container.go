package containers

import (
	"context"
	"log"
	"path/filepath"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	postgresImage = "postgres:16.3-alpine"
	dbName        = "global_leaderboard"
	dbUser        = "leaderboard"
	dbPassword    = "secret"
)

// Relative to the test's package directory, which sits right below the module root.
var schemaFile = filepath.Join("..", "schema", "schema.sql")

type DBContainer struct {
	postgres *postgres.PostgresContainer
}

// NewDBContainer starts postgres with the leaderboard schema applied.
func NewDBContainer() *DBContainer {
	started, err := postgres.Run(context.Background(), postgresImage,
		postgres.WithDatabase(dbName),
		postgres.WithUsername(dbUser),
		postgres.WithPassword(dbPassword),
		postgres.WithInitScripts(schemaFile),
		// postgres restarts once after running the init scripts
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(10*time.Second)),
	)
	if err != nil {
		log.Fatalf("error starting postgres container: %v", err)
	}
	return &DBContainer{postgres: started}
}

func (c *DBContainer) Shutdown() {
	terminate("postgres", c.postgres)
}

// ConnectionString is a pgx connection string for the test database, without TLS.
func (c *DBContainer) ConnectionString() string {
	conn, err := c.postgres.ConnectionString(context.Background(), "sslmode=disable")
	if err != nil {
		log.Fatalf("error getting postgres connection string: %v", err)
	}
	return conn
}
