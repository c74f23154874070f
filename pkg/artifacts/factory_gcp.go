//go:build gcp

package artifacts

import (
	"context"
	"fmt"
	"os"
)

// defaultGCSPrefix namespaces artifact objects under a bucket that may
// be shared with other feedlot billing pipelines.
const defaultGCSPrefix = "feedlot-ap/artifacts/"

func newGCSStoreFromEnv(ctx context.Context) (Store, error) {
	bucket := os.Getenv("ARTIFACT_GCS_BUCKET")
	if bucket == "" {
		return nil, fmt.Errorf("ARTIFACT_GCS_BUCKET is required for GCS storage")
	}

	prefix := os.Getenv("ARTIFACT_GCS_PREFIX")
	if prefix == "" {
		prefix = defaultGCSPrefix
	}

	return NewGCSStore(ctx, GCSStoreConfig{Bucket: bucket, Prefix: prefix})
}
