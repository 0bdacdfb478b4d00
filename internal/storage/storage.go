package storage

import (
	"context"
	"errors"
	"io"
)

var ErrNotConfigured = errors.New("storage: provider not configured")

type File struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

type Object struct {
	PublicID string
	URL      string
	Size     int64
}

type Store interface {
	Upload(ctx context.Context, file File, folder string) (Object, error)
	Delete(ctx context.Context, publicID string) error
}

// Disabled refuses uploads. Deleting is a no-op since nothing was stored.
type Disabled struct{}

func (Disabled) Upload(context.Context, File, string) (Object, error) {
	return Object{}, ErrNotConfigured
}

func (Disabled) Delete(context.Context, string) error {
	return nil
}
