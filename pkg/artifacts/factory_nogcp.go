//go:build !gcp

package artifacts

import (
	"context"
	"fmt"
)

// newGCSStoreFromEnv is the stub wired when the gcp build tag is absent:
// apctl and the worker binaries default to this build, so an operator
// who sets ARTIFACT_STORAGE_TYPE=gcs without rebuilding with -tags gcp
// gets a clear error instead of a missing-symbol link failure.
func newGCSStoreFromEnv(ctx context.Context) (Store, error) {
	return nil, fmt.Errorf("GCS storage is not enabled in this build (rebuild with -tags gcp)")
}
