package service

import (
	"context"
	"path"
	"strings"

	"radarsync/internal/keys"
	"radarsync/internal/models"
)

// UploadImporter applies one user CSV snapshot.
type UploadImporter interface {
	Import(ctx context.Context, content []byte, fileName string, force bool) (models.ImportResult, error)
}

// UploadResult is the outcome of importing one uploaded object.
type UploadResult struct {
	Key    string
	Result models.ImportResult
	Err    error
}

// Archived reports whether key is an archived copy written by the importer
// itself, which must not be imported again.
func Archived(_, key string) bool {
	return strings.HasPrefix(key, keys.UploadsPrefix)
}

// ImportUploads imports every uploaded object, one at a time and in arrival
// order, since each import replaces the previous snapshot.
func ImportUploads(ctx context.Context, objects <-chan *FetchedObject[[]byte], im UploadImporter) <-chan UploadResult {
	out := make(chan UploadResult)
	go func() {
		defer close(out)
		for obj := range objects {
			res, err := im.Import(ctx, obj.Data, path.Base(obj.Key), false)
			if err != nil {
				logger.Error("import failed", "bucket", obj.Bucket, "key", obj.Key, "error", err)
			}
			select {
			case out <- UploadResult{Key: obj.Key, Result: res, Err: err}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
