package store

import (
	"context"
	"io"
	"net/url"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	gridfsLogPrefix  = "gridfs"
	gridfsBucketName = "photos"

	// PhotoRoute is where the api serves gridfs photos
	PhotoRoute = "/api/photos/"
)

// GridFSBlob keeps photos in a mongo gridfs bucket. Photo URLs point back to
// this service.
type GridFSBlob struct {
	database  *mongo.Database
	publicURL string
}

func NewGridFSBlob(client *mongo.Client, database, publicURL string) *GridFSBlob {
	return &GridFSBlob{
		database:  client.Database(database),
		publicURL: strings.TrimSuffix(publicURL, "/"),
	}
}

// bucket returns a fresh handle since deadlines are set on the bucket itself
func (g *GridFSBlob) bucket(deadline time.Time) (*gridfs.Bucket, error) {
	b, err := gridfs.NewBucket(g.database, options.GridFSBucket().SetName(gridfsBucketName))
	if err != nil {
		return nil, err
	}
	if err := b.SetWriteDeadline(deadline); err != nil {
		return nil, err
	}
	if err := b.SetReadDeadline(deadline); err != nil {
		return nil, err
	}
	return b, nil
}

func deadlineOf(ctx context.Context) time.Time {
	if d, ok := ctx.Deadline(); ok {
		return d
	}
	return time.Now().Add(blobTimeout)
}

func (g *GridFSBlob) Upload(ctx context.Context, path string, r io.Reader, contentType string) (string, error) {
	ctx, cancel := withTimeout(ctx, blobTimeout)
	defer cancel()

	b, err := g.bucket(deadlineOf(ctx))
	if err != nil {
		return "", err
	}

	opts := options.GridFSUpload().SetMetadata(bson.M{"contentType": contentType})
	if _, err := b.UploadFromStream(path, r, opts); err != nil {
		log.WithField("prefix", gridfsLogPrefix).WithField("path", path).Errorf("upload: %s", err)
		return "", err
	}
	return g.URL(ctx, path)
}

func (g *GridFSBlob) URL(_ context.Context, path string) (string, error) {
	if path == "" {
		return "", ErrInvalidPath
	}
	u := url.URL{Path: PhotoRoute + path}
	return g.publicURL + u.EscapedPath(), nil
}

func (g *GridFSBlob) Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	path, err := refToPath(ref, g.publicURL+PhotoRoute)
	if err != nil {
		return nil, err
	}

	ctx, cancel := withTimeout(ctx, blobTimeout)
	b, err := g.bucket(deadlineOf(ctx))
	if err != nil {
		cancel()
		return nil, err
	}

	stream, err := b.OpenDownloadStreamByName(path)
	if err != nil {
		cancel()
		if err == gridfs.ErrFileNotFound {
			return nil, ErrBlobNotFound
		}
		return nil, err
	}
	return cancelReadCloser{ReadCloser: stream, cancel: cancel}, nil
}

func (g *GridFSBlob) Delete(ctx context.Context, ref string) error {
	path, err := refToPath(ref, g.publicURL+PhotoRoute)
	if err != nil {
		return err
	}

	ctx, cancel := withTimeout(ctx, blobTimeout)
	defer cancel()

	b, err := g.bucket(deadlineOf(ctx))
	if err != nil {
		return err
	}

	cursor, err := b.Find(bson.M{"filename": path})
	if err != nil {
		return err
	}

	var files []struct {
		ID primitive.ObjectID `bson:"_id"`
	}
	if err := cursor.All(ctx, &files); err != nil {
		return err
	}
	if len(files) == 0 {
		return ErrBlobNotFound
	}

	for _, f := range files {
		if err := b.Delete(f.ID); err != nil && err != gridfs.ErrFileNotFound {
			return err
		}
	}
	return nil
}

// ContentType reads the content type recorded at upload
func (g *GridFSBlob) ContentType(ctx context.Context, ref string) (string, error) {
	path, err := refToPath(ref, g.publicURL+PhotoRoute)
	if err != nil {
		return "", err
	}

	ctx, cancel := withTimeout(ctx, defaultTimeout)
	defer cancel()

	var file struct {
		Metadata struct {
			ContentType string `bson:"contentType"`
		} `bson:"metadata"`
	}
	err = g.database.Collection(gridfsBucketName+".files").
		FindOne(ctx, bson.M{"filename": path}).Decode(&file)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return "", ErrBlobNotFound
		}
		return "", err
	}
	return file.Metadata.ContentType, nil
}
