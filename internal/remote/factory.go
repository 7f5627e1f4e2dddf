package remote

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"placekit/internal/blob"
	"placekit/internal/infra/remote/blobrecords"
	"placekit/internal/infra/remote/httpapi"
	"placekit/internal/infra/remote/postgres"
	"placekit/internal/infra/remote/sqlite"
	"placekit/internal/remote/core"
)

// Config selects and parameterizes a remote backend.
type Config struct {
	Driver      Driver
	SQLitePath  string
	PostgresDSN string
	// Blob configures the backend used by DriverBlob.
	Blob       blob.Config
	BlobPrefix string
	URL        string
	Timeout    time.Duration
	// Logger receives warnings about stored records a driver skips.
	Logger core.Logger
}

// Open constructs the remote store described by cfg. The returned closer
// releases database handles and is never nil.
func Open(ctx context.Context, cfg Config) (Store, io.Closer, error) {
	switch cfg.Driver {
	case DriverMemory, "":
		return NewMemory(), nopCloser{}, nil
	case DriverSQLite:
		s, err := sqlite.NewStore(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		s.SetLogger(cfg.Logger)
		return s, s, nil
	case DriverPostgres:
		s, err := postgres.NewStore(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		s.SetLogger(cfg.Logger)
		return s, s, nil
	case DriverBlob:
		blobs, err := blob.Open(ctx, cfg.Blob)
		if err != nil {
			return nil, nil, fmt.Errorf("open blob backend: %w", err)
		}
		return blobrecords.New(blobs, cfg.BlobPrefix, blobrecords.WithLogger(cfg.Logger)), nopCloser{}, nil
	case DriverHTTP:
		if cfg.URL == "" {
			return nil, nil, fmt.Errorf("remote driver %s requires a URL", cfg.Driver)
		}
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		return httpapi.New(cfg.URL, &http.Client{Timeout: timeout}), nopCloser{}, nil
	default:
		return nil, nil, fmt.Errorf("unknown remote driver %s", cfg.Driver)
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
