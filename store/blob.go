package store

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
)

var (
	ErrBlobNotFound = fmt.Errorf("blob not found")
	ErrInvalidPath  = fmt.Errorf("invalid blob path")
)

// Blob - photo storage. A ref is either a storage path like
// "fieldPhotos/<uuid>-a.jpg" or a URL previously returned by Upload.
type Blob interface {
	Upload(ctx context.Context, path string, r io.Reader, contentType string) (string, error)
	Open(ctx context.Context, ref string) (io.ReadCloser, error)
	Delete(ctx context.Context, ref string) error
	URL(ctx context.Context, path string) (string, error)
}

// cancelReadCloser keeps the transfer context alive until the reader is closed
type cancelReadCloser struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c cancelReadCloser) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}

// refToPath strips the url prefix from a ref. Refs without the prefix are
// taken as storage paths.
func refToPath(ref, prefix string) (string, error) {
	p := ref
	if strings.HasPrefix(ref, prefix) {
		p = strings.TrimPrefix(ref, prefix)
		if i := strings.IndexByte(p, '?'); i >= 0 {
			p = p[:i]
		}
		unescaped, err := url.PathUnescape(p)
		if err != nil {
			return "", err
		}
		p = unescaped
	} else if strings.Contains(ref, "://") {
		return "", ErrInvalidPath
	}

	p = strings.TrimPrefix(p, "/")
	if p == "" || strings.Contains(p, "..") {
		return "", ErrInvalidPath
	}
	return p, nil
}
