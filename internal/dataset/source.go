package dataset

import (
	"context"
	"fmt"

	"github.com/david/bid-filter/internal/models"
)

// Loader is a database-backed record source.
type Loader interface {
	LoadOpportunities(ctx context.Context) ([]models.Opportunity, error)
}

// Load reads records from the named source: "embedded", "file" (path) or
// "postgres" (db).
func Load(ctx context.Context, source, path string, db Loader) ([]models.Opportunity, error) {
	switch source {
	case "", "embedded":
		return LoadEmbedded()
	case "file":
		return LoadFile(path)
	case "postgres":
		if db == nil {
			return nil, fmt.Errorf("postgres dataset source needs a database connection")
		}
		return db.LoadOpportunities(ctx)
	default:
		return nil, fmt.Errorf("unknown dataset source %q", source)
	}
}
