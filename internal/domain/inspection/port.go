package inspection

import (
	"context"
	"errors"
)

// Repository port for persisting and querying analyses
type Repository interface {
	Save(ctx context.Context, a *Analysis) error
	Get(ctx context.Context, tenant string, id AnalysisID) (*Analysis, error)
	Paginate(ctx context.Context, tenant string, page, pageSize int) ([]*Analysis, error)
}

// EvidenceStore port for keeping the analysed media.
type EvidenceStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// ErrNotFound is returned by repositories when an analysis does not exist.
var ErrNotFound = errors.New("analysis not found")
