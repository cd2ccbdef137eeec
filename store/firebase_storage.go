package store

import (
	"context"
	"io"
	"net/url"

	gcs "cloud.google.com/go/storage"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const (
	firebaseStorageLogPrefix = "firebase-storage"

	firebaseStorageHost = "https://firebasestorage.googleapis.com/v0/b/"

	// downloadTokenKey is the object metadata key firebase uses for download tokens
	downloadTokenKey = "firebaseStorageDownloadTokens"
)

// FirebaseBlob keeps photos in the firebase storage bucket of the project
type FirebaseBlob struct {
	bucket     *gcs.BucketHandle
	bucketName string
}

func NewFirebaseBlob(bucket *gcs.BucketHandle, bucketName string) *FirebaseBlob {
	return &FirebaseBlob{
		bucket:     bucket,
		bucketName: bucketName,
	}
}

func (f *FirebaseBlob) prefix() string {
	return firebaseStorageHost + f.bucketName + "/o/"
}

func (f *FirebaseBlob) downloadURL(path, token string) string {
	u := f.prefix() + url.PathEscape(path) + "?alt=media"
	if token != "" {
		u += "&token=" + token
	}
	return u
}

func (f *FirebaseBlob) Upload(ctx context.Context, path string, r io.Reader, contentType string) (string, error) {
	ctx, cancel := withTimeout(ctx, blobTimeout)
	defer cancel()

	token := uuid.New().String()

	w := f.bucket.Object(path).NewWriter(ctx)
	w.ContentType = contentType
	w.Metadata = map[string]string{downloadTokenKey: token}

	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		log.WithField("prefix", firebaseStorageLogPrefix).WithField("path", path).Errorf("upload: %s", err)
		return "", err
	}
	if err := w.Close(); err != nil {
		log.WithField("prefix", firebaseStorageLogPrefix).WithField("path", path).Errorf("finalize upload: %s", err)
		return "", err
	}

	return f.downloadURL(path, token), nil
}

func (f *FirebaseBlob) URL(ctx context.Context, path string) (string, error) {
	ctx, cancel := withTimeout(ctx, defaultTimeout)
	defer cancel()

	attrs, err := f.bucket.Object(path).Attrs(ctx)
	if err != nil {
		if err == gcs.ErrObjectNotExist {
			return "", ErrBlobNotFound
		}
		return "", err
	}
	return f.downloadURL(path, attrs.Metadata[downloadTokenKey]), nil
}

func (f *FirebaseBlob) Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	path, err := refToPath(ref, f.prefix())
	if err != nil {
		return nil, err
	}

	ctx, cancel := withTimeout(ctx, blobTimeout)
	r, err := f.bucket.Object(path).NewReader(ctx)
	if err != nil {
		cancel()
		if err == gcs.ErrObjectNotExist {
			return nil, ErrBlobNotFound
		}
		return nil, err
	}
	return cancelReadCloser{ReadCloser: r, cancel: cancel}, nil
}

func (f *FirebaseBlob) Delete(ctx context.Context, ref string) error {
	path, err := refToPath(ref, f.prefix())
	if err != nil {
		return err
	}

	ctx, cancel := withTimeout(ctx, defaultTimeout)
	defer cancel()

	if err := f.bucket.Object(path).Delete(ctx); err != nil {
		if err == gcs.ErrObjectNotExist {
			return ErrBlobNotFound
		}
		return err
	}
	return nil
}
