package main

import (
	"context"
	"log"
	"os"

	"radarsync/internal/app"
	"radarsync/internal/config"
	"radarsync/internal/geocode"
	"radarsync/internal/ingest"
	"radarsync/pkg/graceful"
	"radarsync/pkg/kafkaclient"
)

func main() {
	config.LoadEnv()
	ctx, cancel := graceful.Context(context.Background())
	defer cancel()

	cfg, err := config.Load(os.Getenv("RADARSYNC_CONFIG"))
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer a.Close()

	var (
		geo   geocode.Geocoder
		stats func() geocode.Stats
	)
	if cfg.Sources.OfficialD.Enabled() {
		limited, err := a.Geocoder()
		if err != nil {
			log.Fatal(err)
		}
		geo, stats = limited, limited.Stats
	}

	adapters := ingest.Adapters(cfg.Sources, a.Fetcher(), a.Parser, geo)
	if len(adapters) == 0 {
		log.Fatal("No sources configured; set RADARSYNC_SOURCES_OFFICIALA_URL or another source location.")
	}

	opts := []ingest.Option{ingest.WithRecorder(a.Metrics, stats)}
	if cfg.Kafka.Broker != "" && cfg.Kafka.SummaryTopic != "" {
		publisher, err := kafkaclient.NewPublisher(cfg.Kafka.Broker, cfg.Kafka.SummaryTopic)
		if err != nil {
			log.Fatal(err)
		}
		defer publisher.Close()
		opts = append(opts, ingest.WithPublisher(publisher))
	}
	runner := ingest.NewRunner(a.Engine, adapters, opts...)

	if cfg.Sync.Interval > 0 {
		log.Printf("Syncing %d sources every %s", len(adapters), cfg.Sync.Interval)
		runner.Process(ctx, ingest.Ticks(ctx, cfg.Sync.Interval))
	} else {
		run := runner.RunOnce(ctx)
		for _, s := range run.Summaries() {
			log.Printf("%s: total=%d created=%d updated=%d unchanged=%d dropped=%d",
				s.Source, s.Total, s.Created, s.Updated, s.Unchanged, s.Dropped)
		}
	}

	if url := cfg.Metrics.PushgatewayURL; url != "" {
		if err := a.Metrics.Push(context.Background(), url, cfg.Metrics.Job); err != nil {
			log.Printf("Failed to push metrics: %v", err)
		}
	}
	log.Println("Syncer finished, application exiting.")
}
