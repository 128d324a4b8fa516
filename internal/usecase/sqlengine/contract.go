package sqlengine

import (
	"context"
	"database/sql"

	"github.com/kailas-cloud/talkdb/internal/domain"
)

// Generator translates questions into SQL.
type Generator interface {
	Generate(ctx context.Context, p domain.Prompt) (string, error)
}

// Opener opens and verifies a connection pool.
type Opener func(ctx context.Context, driverName, conn string) (*sql.DB, error)
