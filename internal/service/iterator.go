// Package service turns MinIO bucket notifications delivered over Kafka into
// loaded objects, and feeds uploaded CSV files to the importer.
package service

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7/pkg/notification"
	"github.com/segmentio/kafka-go"

	"radarsync/internal/logging"
)

var logger = logging.For("service")

// Iterator reads notification messages, loads each created object with a
// LoaderFunc and yields the results on a channel. It is generic over the
// loaded item type T.
//
// The Iterator does not manage the lifecycle of the underlying message source;
// callers start and stop their consumer outside.
type Iterator[T any] struct {
	msgIterator MessageIterator
	loader      LoaderFunc[T]
	skip        func(bucket, key string) bool
}

func NewIterator[T any](iterator MessageIterator, loader LoaderFunc[T]) *Iterator[T] {
	return &Iterator[T]{
		msgIterator: iterator,
		loader:      loader,
	}
}

// Skip sets a filter for objects that must not be loaded. Skipped objects are
// committed like handled ones.
func (it *Iterator[T]) Skip(fn func(bucket, key string) bool) *Iterator[T] {
	it.skip = fn
	return it
}

// Objects starts a goroutine that decodes every message as a notification,
// loads the objects it announces and sends them on the returned channel. A
// message is committed once all of its objects were received by the caller.
// Messages that fail to decode are logged and committed; a failed load leaves
// the message uncommitted so it is redelivered after a restart.
//
// The channel is closed when the message channel closes or ctx is done.
func (it *Iterator[T]) Objects(ctx context.Context) <-chan *FetchedObject[T] {
	out := make(chan *FetchedObject[T])
	go func() {
		defer close(out)

		for msg := range it.msgIterator.Messages() {
			var info notification.Info
			if err := json.Unmarshal(msg.Value, &info); err != nil {
				logger.Warn("skipping undecodable notification", "offset", msg.Offset, "error", err)
				it.commit(ctx, msg)
				continue
			}

			handled := true
			for _, event := range info.Records {
				obj, err := it.load(ctx, event)
				if err != nil {
					handled = false
					continue
				}
				if obj == nil {
					continue
				}
				select {
				case out <- obj:
				case <-ctx.Done():
					return
				}
			}
			if handled {
				it.commit(ctx, msg)
			}
		}
	}()
	return out
}

// load returns a nil object without error for events that are skipped.
func (it *Iterator[T]) load(ctx context.Context, event notification.Event) (*FetchedObject[T], error) {
	if !strings.HasPrefix(event.EventName, "s3:ObjectCreated:") {
		return nil, nil
	}
	bucket := event.S3.Bucket.Name
	objectKey, err := url.QueryUnescape(event.S3.Object.Key)
	if err != nil {
		logger.Warn("skipping undecodable object key", "key", event.S3.Object.Key, "error", err)
		return nil, nil
	}
	if it.skip != nil && it.skip(bucket, objectKey) {
		logger.Debug("skipping object", "bucket", bucket, "key", objectKey)
		return nil, nil
	}

	data, err := it.loader(ctx, bucket, objectKey)
	if err != nil {
		logger.Error("error loading object", "bucket", bucket, "key", objectKey, "error", err)
		return nil, err
	}
	return &FetchedObject[T]{Data: data, Bucket: bucket, Key: objectKey, Event: event}, nil
}

func (it *Iterator[T]) commit(ctx context.Context, msg kafka.Message) {
	if err := it.msgIterator.CommitOffset(ctx, msg); err != nil {
		logger.Error("failed to commit offset", "partition", msg.Partition, "offset", msg.Offset, "error", err)
	}
}
