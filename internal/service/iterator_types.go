package service

import (
	"context"

	"github.com/minio/minio-go/v7/pkg/notification"
	"github.com/segmentio/kafka-go"
)

// MessageIterator is the consumer side of a Kafka topic.
//
// Implementations are responsible for the lifecycle of the consumer connection.
type MessageIterator interface {
	// Messages returns a receive-only channel of Kafka messages. The channel
	// is closed by the implementation when the consumer is stopped.
	Messages() <-chan kafka.Message

	// CommitOffset acknowledges that a message has been handled.
	CommitOffset(ctx context.Context, msg kafka.Message) error
}

// LoaderFunc loads the object a storage event refers to. It must honor ctx
// and must not modify the object.
type LoaderFunc[T any] func(ctx context.Context, bucket, key string) (T, error)

// FetchedObject pairs a loaded object with the event that announced it.
type FetchedObject[T any] struct {
	Data   T
	Bucket string
	Key    string
	Event  notification.Event
}
