// Package source defines the port for loading the earthquake catalog.
package source

import (
	"context"

	"github.com/seistech/quakefeed/internal/domain/catalog"
)

// Source loads the full catalog once at startup. Implementations read
// CSV files, Postgres or SQLite; the replay queue is built from the
// returned collection and never consults the source again.
type Source interface {
	Load(ctx context.Context) (*catalog.Collection, error)
}
