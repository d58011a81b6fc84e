package storage

import (
	"testing"
	"testing/quick"

	"github.com/sameboat/backend/config"
	"github.com/sameboat/backend/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractKeyInvertsBuildURL(t *testing.T) {
	hosts := []string{
		"my-bucket.s3.ap-south-1.amazonaws.com",
		"my-bucket.storage.googleapis.com",
	}
	for _, host := range hosts {
		roundTrip := func(owner, filename string) bool {
			key := BuildKey(owner, filename)
			got, err := ExtractKey(BuildURL(host, key))
			return err == nil && got == key
		}
		require.NoError(t, quick.Check(roundTrip, nil), host)
	}
}

func TestExtractKeyOddFilenames(t *testing.T) {
	names := []string{"cv.pdf", "my cv (final).pdf", "a?b#c.pdf", "100%.txt", "ümlaut.docx", ""}
	for _, name := range names {
		key := BuildKey("7f1c2a9e-8d2b-4c61-9d0e-1a2b3c4d5e6f", name)
		got, err := ExtractKey(BuildURL("b.s3.us-east-1.amazonaws.com", key))
		require.NoError(t, err, name)
		assert.Equal(t, key, got, name)
	}
}

func TestBuildKeyPattern(t *testing.T) {
	assert.Equal(t, "user_uploads/u1/resume.pdf", BuildKey("u1", "resume.pdf"))
}

func TestExtractKeyRejects(t *testing.T) {
	_, err := ExtractKey("")
	assert.ErrorIs(t, err, ErrEmptyURL)

	for _, raw := range []string{"   ", "not a url", "ftp://host/key", "https:///key", "https://host/", "https://host", "%zz"} {
		_, err := ExtractKey(raw)
		assert.Error(t, err, raw)
	}
}

func TestNewRequiresConfiguration(t *testing.T) {
	_, err := New(t.Context(), configFor("s3", "", "", "", ""))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AWS_ACCESS_KEY_ID")
	assert.Contains(t, err.Error(), "STORAGE_REGION")
	assert.True(t, utils.IsCode(err, utils.CodeConfig))

	_, err = New(t.Context(), configFor("gcs", "bucket", "", "", ""))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GOOGLE_APPLICATION_CREDENTIALS")

	_, err = New(t.Context(), configFor("azure", "b", "r", "k", "s"))
	require.Error(t, err)
}

func configFor(driver, bucket, region, keyID, secret string) config.StorageConfig {
	return config.StorageConfig{
		Driver:          driver,
		Bucket:          bucket,
		Region:          region,
		AccessKeyID:     keyID,
		SecretAccessKey: secret,
	}
}
