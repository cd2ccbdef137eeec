package report

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/stl-inc/as-report-api/schema"
	"github.com/stl-inc/as-report-api/store"
)

const logPrefix = "report"

// ObjectPath returns the storage path of an attachment:
// <bucket folder>/<unique id>-<original name>
func ObjectPath(bucket schema.Bucket, id, name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" {
		name = "photo"
	}
	return bucket.Folder() + "/" + id + "-" + name
}

// Uploader stores attachments in the blob storage
type Uploader struct {
	blob  store.Blob
	newID func() string
}

func NewUploader(blob store.Blob) *Uploader {
	return &Uploader{
		blob:  blob,
		newID: func() string { return uuid.New().String() },
	}
}

// Upload sends every bucket concurrently, and every file of a bucket
// concurrently. The returned URLs keep the order of the attachments. On
// failure the files already stored are removed and nothing is returned.
func (u *Uploader) Upload(ctx context.Context, attachments map[schema.Bucket][]Attachment) (schema.Photos, error) {
	results := make([][]string, len(schema.Buckets))

	g, gctx := errgroup.WithContext(ctx)
	for i, b := range schema.Buckets {
		i, b := i, b
		files := attachments[b]
		results[i] = make([]string, len(files))

		g.Go(func() error {
			fg, fctx := errgroup.WithContext(gctx)
			for j, a := range files {
				j, a := j, a
				fg.Go(func() error {
					p := ObjectPath(b, u.newID(), a.Name)
					url, err := u.blob.Upload(fctx, p, bytes.NewReader(a.Data), a.ContentType)
					if err != nil {
						return fmt.Errorf("upload %s: %w", p, err)
					}
					results[i][j] = url
					return nil
				})
			}
			return fg.Wait()
		})
	}

	var photos schema.Photos
	if err := g.Wait(); err != nil {
		u.discard(results)
		return photos, err
	}

	for i, b := range schema.Buckets {
		photos.Set(b, results[i])
	}
	return photos, nil
}

func (u *Uploader) discard(results [][]string) {
	for _, urls := range results {
		for _, url := range urls {
			if url == "" {
				continue
			}
			if err := u.blob.Delete(context.Background(), url); err != nil {
				log.WithField("prefix", logPrefix).Warnf("discard uploaded photo %s: %s", url, err)
			}
		}
	}
}
