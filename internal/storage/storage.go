package storage

import (
	"context"
	"io"
	"time"
)

type Uploader interface {
	// Upload stores r under objectName and returns the stored object key.
	Upload(ctx context.Context, objectName string, contentType string, r io.Reader) (storedPath string, err error)
}

type Signer interface {
	SignedGetURL(ctx context.Context, objectName string, ttl time.Duration) (string, error)
}
