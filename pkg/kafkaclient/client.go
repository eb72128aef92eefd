package kafkaclient

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaReader is the part of kafka.Reader the consumer uses. FetchMessage
// does not commit, so offsets only move through CommitMessages.
type KafkaReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaConsumer reads a topic in a background goroutine and hands messages
// out on a channel. Offsets are committed explicitly by the caller.
type KafkaConsumer struct {
	reader KafkaReader
	// doneChan signals a graceful shutdown.
	doneChan chan struct{}
	stopOnce sync.Once
	cancel   context.CancelFunc
	mu       sync.Mutex
	wg       sync.WaitGroup
	// messageChan holds fetched messages until the caller takes them.
	messageChan chan kafka.Message
	// retryDelay is the pause after a failed fetch.
	retryDelay time.Duration
}

// NewKafkaConsumer creates a consumer in group groupID.
func NewKafkaConsumer(topic, groupID, broker string) (*KafkaConsumer, error) {
	if topic == "" || groupID == "" || broker == "" {
		return nil, errors.New("kafka topic, group ID and broker are required")
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: []string{broker},
		Topic:   topic,
		GroupID: groupID,
		// Offsets are committed by CommitOffset only.
		CommitInterval: 0,
		MinBytes:       1,
		MaxBytes:       10e6,
	})
	return newConsumer(reader), nil
}

func newConsumer(reader KafkaReader) *KafkaConsumer {
	return &KafkaConsumer{
		reader:      reader,
		doneChan:    make(chan struct{}),
		messageChan: make(chan kafka.Message),
		retryDelay:  time.Second,
	}
}

// Messages returns the channel of fetched messages. It is closed when the
// consumer stops.
func (kc *KafkaConsumer) Messages() <-chan kafka.Message {
	return kc.messageChan
}

// CommitOffset marks msg as processed for the consumer group.
func (kc *KafkaConsumer) CommitOffset(ctx context.Context, msg kafka.Message) error {
	log.Printf("Committing offset for topic=%s, partition=%d, offset=%d", msg.Topic, msg.Partition, msg.Offset)
	return kc.reader.CommitMessages(ctx, msg)
}

// StartConsuming begins the consumption loop in a separate goroutine. The
// loop ends when ctx is done, Stop is called or the reader is exhausted.
func (kc *KafkaConsumer) StartConsuming(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	kc.mu.Lock()
	kc.cancel = cancel
	kc.mu.Unlock()

	kc.wg.Add(1)
	go func() {
		defer kc.wg.Done()
		defer close(kc.messageChan)

		log.Println("Starting Kafka consumer loop...")
		for {
			msg, err := kc.reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil || errors.Is(err, io.EOF) {
					log.Println("Kafka consumer loop stopped.")
					return
				}
				log.Printf("Error reading message: %v", err)
				select {
				case <-time.After(kc.retryDelay):
					continue
				case <-ctx.Done():
					return
				case <-kc.doneChan:
					return
				}
			}

			select {
			case kc.messageChan <- msg:
				log.Printf("Message received: topic=%s, partition=%d, offset=%d", msg.Topic, msg.Partition, msg.Offset)
			case <-ctx.Done():
				log.Println("Context canceled, stopping consumer before sending message.")
				return
			case <-kc.doneChan:
				log.Println("Shutdown signal received, stopping consumer before sending message.")
				return
			}
		}
	}()
}

// Stop shuts the consumer down and closes the reader. It is safe to call more
// than once.
func (kc *KafkaConsumer) Stop() {
	kc.stopOnce.Do(func() {
		log.Println("Attempting to stop Kafka consumer...")
		close(kc.doneChan)
		kc.mu.Lock()
		if kc.cancel != nil {
			kc.cancel()
		}
		kc.mu.Unlock()
		kc.wg.Wait()
		if err := kc.reader.Close(); err != nil {
			log.Printf("Failed to close Kafka reader: %v", err)
		}
		log.Println("Kafka consumer stopped gracefully.")
	})
}
