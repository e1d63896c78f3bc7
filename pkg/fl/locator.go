package fl

import (
	"errors"
	"fmt"
	"strings"
)

var errBadLocator = errors.New("malformed blob locator")

// Locator addresses one blob in an object store as scheme://bucket/key.
type Locator struct {
	Scheme string
	Bucket string
	Key    string
}

func (l Locator) String() string {
	return fmt.Sprintf("%s://%s/%s", l.Scheme, l.Bucket, l.Key)
}

// ParseLocator splits a scheme://bucket/key... string. Everything after the
// bucket segment is the key; a locator without a key fails rather than
// producing an empty path downstream.
func ParseLocator(s string) (Locator, error) {
	scheme, rest, ok := strings.Cut(s, "://")
	if !ok || scheme == "" {
		return Locator{}, fmt.Errorf("%w: %q", errBadLocator, s)
	}

	bucket, key, ok := strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return Locator{}, fmt.Errorf("%w: %q has no key segments", errBadLocator, s)
	}

	return Locator{Scheme: scheme, Bucket: bucket, Key: key}, nil
}
