package config

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/strategos/pkg/domain/interfaces"
	"github.com/secmon-lab/strategos/pkg/repository/firestore"
	"github.com/secmon-lab/strategos/pkg/repository/memory"
	"github.com/secmon-lab/strategos/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

// Repository holds CLI flags for memory store backend configuration
type Repository struct {
	backend    string
	projectID  string
	databaseID string
	capacity   int
	patternTTL time.Duration
}

// Flags returns CLI flags for memory store configuration
func (r *Repository) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "memory-backend",
			Usage:       "Memory store backend type (firestore or memory)",
			Value:       "memory",
			Sources:     cli.EnvVars("STRATEGOS_MEMORY_BACKEND"),
			Destination: &r.backend,
		},
		&cli.StringFlag{
			Name:        "firestore-project-id",
			Usage:       "Firestore Project ID (required when using firestore backend)",
			Sources:     cli.EnvVars("STRATEGOS_FIRESTORE_PROJECT_ID"),
			Destination: &r.projectID,
		},
		&cli.StringFlag{
			Name:        "firestore-database-id",
			Usage:       "Firestore Database ID",
			Sources:     cli.EnvVars("STRATEGOS_FIRESTORE_DATABASE_ID"),
			Destination: &r.databaseID,
		},
		&cli.IntFlag{
			Name:        "memory-capacity",
			Usage:       "Maximum entries held by the in-memory backend",
			Value:       memory.DefaultCapacity,
			Sources:     cli.EnvVars("STRATEGOS_MEMORY_CAPACITY"),
			Destination: &r.capacity,
		},
		&cli.DurationFlag{
			Name:        "pattern-ttl",
			Usage:       "TTL of aggregated content patterns",
			Value:       memory.DefaultPatternTTL,
			Sources:     cli.EnvVars("STRATEGOS_PATTERN_TTL"),
			Destination: &r.patternTTL,
		},
	}
}

// Backend returns the configured backend type
func (r *Repository) Backend() string {
	return r.backend
}

// Configure initializes and returns a memory store based on the configured
// backend. The caller is responsible for calling Close() on the returned
// store.
func (r *Repository) Configure(ctx context.Context) (interfaces.MemoryStore, error) {
	switch r.backend {
	case "firestore":
		if r.projectID == "" {
			return nil, goerr.New("firestore-project-id is required when using firestore backend")
		}
		store, err := firestore.New(ctx, r.projectID, r.databaseID,
			firestore.WithPatternTTL(r.patternTTL),
		)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to initialize firestore memory store")
		}
		logging.Default().Info("Using Firestore memory store",
			"project_id", r.projectID,
			"database_id", r.databaseID,
		)
		return store, nil

	case "memory":
		logging.Default().Info("Using in-memory memory store (development mode)")
		return memory.New(
			memory.WithCapacity(r.capacity),
			memory.WithPatternTTL(r.patternTTL),
		), nil

	default:
		return nil, goerr.New("invalid memory store backend", goerr.V("backend", r.backend))
	}
}
