package storage

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

const KeyPrefix = "user_uploads"

var (
	ErrEmptyURL     = errors.New("empty storage url")
	ErrMalformedURL = errors.New("malformed storage url")
)

// BuildKey is the object key for an owner's uploaded file. Two uploads of the
// same filename by the same owner share a key.
func BuildKey(ownerID, filename string) string {
	return fmt.Sprintf("%s/%s/%s", KeyPrefix, ownerID, filename)
}

// BuildURL addresses key on a virtual-hosted bucket endpoint, so the URL path
// is exactly the key.
func BuildURL(host, key string) string {
	u := url.URL{Scheme: "https", Host: host, Path: "/" + key}
	return u.String()
}

// ExtractKey inverts BuildURL: scheme and host are dropped along with the
// leading slash of the path.
func ExtractKey(raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", ErrEmptyURL
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedURL, err)
	}
	if (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		return "", fmt.Errorf("%w: %q", ErrMalformedURL, raw)
	}
	key := strings.TrimLeft(u.Path, "/")
	if key == "" {
		return "", fmt.Errorf("%w: no object path in %q", ErrMalformedURL, raw)
	}
	return key, nil
}
