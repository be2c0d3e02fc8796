package storage

import (
	"context"
	"io"
)

// Client abstracts where accepted avatar files live (local disk or S3/R2).
type Client interface {
	Save(ctx context.Context, name string, r io.Reader) error
	Remove(ctx context.Context, name string) error
	List(ctx context.Context) ([]string, error)
}
