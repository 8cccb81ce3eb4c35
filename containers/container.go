// Package containers starts the backing services of integration tests.
package containers

import (
	"context"
	"log"

	"github.com/testcontainers/testcontainers-go"
)

// Stops and removes the container. Tests cannot continue without it, so
// failures are fatal.
func terminate(name string, c testcontainers.Container) {
	if err := c.Terminate(context.Background()); err != nil {
		log.Fatalf("error terminating %s container: %v", name, err)
	}
}
