package main

import (
	"context"
	"log"
	"os"

	"radarsync/internal/app"
	"radarsync/internal/config"
	"radarsync/internal/service"
	"radarsync/pkg/graceful"
	"radarsync/pkg/kafkaclient"
)

// The importer waits for MinIO notifications of new CSV uploads on Kafka and
// imports each uploaded file as the current user snapshot.
func main() {
	config.LoadEnv()
	ctx, cancel := graceful.Context(context.Background())
	defer cancel()

	cfg, err := config.Load(os.Getenv("RADARSYNC_CONFIG"))
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.Kafka.Broker == "" || cfg.Kafka.UploadTopic == "" || cfg.Kafka.GroupID == "" {
		log.Fatal("Kafka broker, upload topic and group ID must be set")
	}

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer a.Close()
	if a.Objects == nil {
		log.Fatal("The importer needs an object store; set MINIO_ENDPOINT")
	}

	log.Printf("Connecting to Kafka broker: %s on topic: %s with group ID: %s", cfg.Kafka.Broker, cfg.Kafka.UploadTopic, cfg.Kafka.GroupID)
	consumer, err := kafkaclient.NewKafkaConsumer(cfg.Kafka.UploadTopic, cfg.Kafka.GroupID, cfg.Kafka.Broker)
	if err != nil {
		log.Fatalf("Failed to create kafka consumer %v", err)
	}
	consumer.StartConsuming(ctx)

	iterator := service.NewIterator[[]byte](consumer, a.Objects.GetObject).Skip(service.Archived)
	importer := a.Importer()
	for res := range service.ImportUploads(ctx, iterator.Objects(ctx), importer) {
		a.Metrics.ObserveImport(res.Result)
		switch {
		case res.Err != nil:
			log.Printf("Import of %s failed: %v", res.Key, res.Err)
		case res.Result.Imported:
			s := res.Result.Summary
			log.Printf("Imported %s: created=%d updated=%d deactivated=%d dropped=%d",
				res.Key, s.Created, s.Updated, s.Deactivated, s.Dropped)
		default:
			log.Printf("Skipped %s: %s", res.Key, res.Result.Reason)
		}
	}

	consumer.Stop()
	log.Println("Importer finished, application exiting.")
}
