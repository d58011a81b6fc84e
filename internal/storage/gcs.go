package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"time"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

type GCSStore struct {
	client     *gcs.Client
	bucket     string
	host       string
	publicRead bool
}

func NewGCSStore(ctx context.Context, bucket, credentialsFile string, publicRead bool) (*GCSStore, error) {
	c, err := gcs.NewClient(ctx, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, err
	}
	return &GCSStore{
		client:     c,
		bucket:     bucket,
		host:       bucket + ".storage.googleapis.com",
		publicRead: publicRead,
	}, nil
}

func (u *GCSStore) Close() error { return u.client.Close() }

func (u *GCSStore) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	obj := u.client.Bucket(u.bucket).Object(key)

	w := obj.NewWriter(ctx)
	w.ContentType = contentType
	w.ContentDisposition = "inline"

	// the object only becomes visible when Close succeeds
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		_ = w.Close()
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}

	// fine-grained ACL buckets only; uniform buckets grant read at bucket level
	if u.publicRead {
		if err := obj.ACL().Set(ctx, gcs.AllUsers, gcs.RoleReader); err != nil {
			return "", err
		}
	}

	return BuildURL(u.host, key), nil
}

func (u *GCSStore) Delete(ctx context.Context, key string) error {
	err := u.client.Bucket(u.bucket).Object(key).Delete(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return nil
	}
	return err
}

func (u *GCSStore) SignedGetURL(_ context.Context, key string, ttl time.Duration) (string, error) {
	return u.client.Bucket(u.bucket).SignedURL(key, &gcs.SignedURLOptions{
		Method:  "GET",
		Scheme:  gcs.SigningSchemeV4,
		Expires: time.Now().Add(ttl),
	})
}
