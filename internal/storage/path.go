package storage

import (
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"
)

// URIScheme prefixes object store locations in configuration values.
const URIScheme = "s3://"

// RunArchivePrefix is the top-level key segment of archived runs. Every
// other key holds a schema document.
const RunArchivePrefix = "runs"

var pathComponentPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,127}$`)

// BuildRunArchivePath returns runs/YYYY/MM/DD/<run-id>.parquet for a run
// started at startedAt (UTC).
func BuildRunArchivePath(runID string, startedAt time.Time) (string, error) {
	if err := validatePathComponent(runID, "run id"); err != nil {
		return "", err
	}
	ts := startedAt.UTC()
	return path.Join(
		RunArchivePrefix,
		fmt.Sprintf("%04d", ts.Year()),
		fmt.Sprintf("%02d", ts.Month()),
		fmt.Sprintf("%02d", ts.Day()),
		runID+".parquet",
	), nil
}

// IsObjectURI reports whether location points into the object store.
func IsObjectURI(location string) bool {
	return strings.HasPrefix(strings.TrimSpace(location), URIScheme)
}

// ObjectKeyFromURI strips the s3:// scheme from location.
func ObjectKeyFromURI(location string) (string, error) {
	location = strings.TrimSpace(location)
	if !strings.HasPrefix(location, URIScheme) {
		return "", fmt.Errorf("object location %q must start with %s", location, URIScheme)
	}
	key := strings.Trim(strings.TrimPrefix(location, URIScheme), "/")
	if key == "" {
		return "", fmt.Errorf("object location %q has no key", location)
	}
	return key, nil
}

// IsRunArchiveKey reports whether key lies under RunArchivePrefix.
func IsRunArchiveKey(key string) bool {
	return strings.HasPrefix(strings.TrimLeft(key, "/"), RunArchivePrefix+"/")
}

func validatePathComponent(value, field string) error {
	if !pathComponentPattern.MatchString(value) {
		return fmt.Errorf("invalid %s: %q", field, value)
	}
	return nil
}
