// Package storage keeps uploaded visit documents on local disk or an S3-compatible bucket.
package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
)

// Store abstracts where documents live. Put returns the URL clients use to fetch the object.
type Store interface {
	Name() string
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
}

// Allowed upload types and their canonical extensions.
var allowedTypes = map[string]string{
	"application/pdf": ".pdf",
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
}

// MaxDocumentSize is the largest accepted upload in bytes.
const MaxDocumentSize = 10 << 20

// Extension returns the file extension for an accepted content type.
func Extension(contentType string) (string, bool) {
	ext, ok := allowedTypes[strings.ToLower(strings.TrimSpace(contentType))]
	return ext, ok
}

// VisitDocumentKey builds a collision-free key for a document attached to a request.
func VisitDocumentKey(requestID uuid.UUID, contentType string) (string, error) {
	ext, ok := Extension(contentType)
	if !ok {
		return "", fmt.Errorf("unsupported content type %q", contentType)
	}
	return path.Join("visits", requestID.String(), uuid.NewString()+ext), nil
}
