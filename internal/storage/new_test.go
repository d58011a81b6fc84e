package storage

import (
	"context"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/sameboat/backend/config"
	"github.com/sameboat/backend/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsIncompleteConfig(t *testing.T) {
	cases := []struct {
		name    string
		cfg     config.StorageConfig
		missing []string
	}{
		{"s3 empty", config.StorageConfig{Driver: "s3"},
			[]string{"AWS_ACCESS_KEY_ID", "AWS_SECRET_ACCESS_KEY", "STORAGE_BUCKET", "STORAGE_REGION"}},
		{"s3 no region", config.StorageConfig{Driver: "s3", Bucket: "b", AccessKeyID: "k", SecretAccessKey: "s"},
			[]string{"STORAGE_REGION"}},
		{"gcs no credentials", config.StorageConfig{Driver: "gcs", Bucket: "b", Region: "us"},
			[]string{"GOOGLE_APPLICATION_CREDENTIALS"}},
		{"unknown driver", config.StorageConfig{Driver: "ftp"}, []string{"ftp"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(context.Background(), tc.cfg)
			require.Error(t, err)
			assert.True(t, utils.IsCode(err, utils.CodeConfig))
			for _, m := range tc.missing {
				assert.Contains(t, err.Error(), m)
			}
		})
	}
}

func TestS3StoreOffline(t *testing.T) {
	c, err := New(context.Background(), config.StorageConfig{
		Driver:          "s3",
		Bucket:          "sameboat-files",
		Region:          "eu-west-1",
		AccessKeyID:     "AKIDEXAMPLE",
		SecretAccessKey: "secret",
	})
	require.NoError(t, err)

	key := BuildKey("u1", "resume.pdf")
	signed, err := c.SignedGetURL(context.Background(), key, 10*time.Minute)
	require.NoError(t, err)

	u, err := url.Parse(signed)
	require.NoError(t, err)
	assert.Equal(t, "/"+key, u.Path)
	assert.True(t, strings.HasPrefix(u.Host, "sameboat-files.s3."), u.Host)
	assert.Equal(t, "600", u.Query().Get("X-Amz-Expires"))
	assert.NotEmpty(t, u.Query().Get("X-Amz-Signature"))

	// the stored URL for the same key round-trips back to it
	got, err := ExtractKey(BuildURL(c.(*S3Store).host, key))
	require.NoError(t, err)
	assert.Equal(t, key, got)
}
