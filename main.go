package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/yourorg/listing-gateway/internal/cache"
	"github.com/yourorg/listing-gateway/internal/config"
	"github.com/yourorg/listing-gateway/internal/events"
	"github.com/yourorg/listing-gateway/internal/observability"
	"github.com/yourorg/listing-gateway/internal/refresh"
	"github.com/yourorg/listing-gateway/vista"
)

func main() {
	cfg := config.Load()
	metrics := observability.New(nil)
	observability.Start(fmt.Sprintf("%d", cfg.MetricsPort))

	client := vista.NewClient(vista.ClientConfig{
		APIKey:   cfg.VistaAPIKey,
		BaseURL:  cfg.VistaBaseURL,
		RetryMax: cfg.RetryMax,
		Timeout:  cfg.RequestTimeout,
		RPS:      cfg.UpstreamRPS,
		Metrics:  metrics,
	})

	opts := vista.Options{
		Metrics:        metrics,
		Publisher:      events.NewInMemory(256),
		PhotosEndpoint: cfg.PhotosEndpoint,
		CDNHost:        cfg.CDNHost,
	}
	if cfg.RedisAddr != "" {
		// shared gallery/detail caches across replicas
		details := cache.NewRedis[vista.Property](cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, "prop:detail:")
		galleries := cache.NewRedis[vista.Gallery](cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, "prop:gallery:")
		if err := details.Ping(context.Background()); err != nil {
			log.Fatalf("redis unreachable: %v", err)
		}
		opts.Details = details
		opts.Galleries = galleries
	}
	provider := vista.NewProvider(client, opts)

	// degraded galleries are re-resolved off the request path
	refresher := refresh.New(256, 2, func(ctx context.Context, j refresh.Job) {
		if _, err := provider.GetPropertyPhotos(ctx, j.PropertyID); err != nil {
			log.Printf("[WARN] background gallery refresh %s: %v", j.PropertyID, err)
		}
	})
	go func() {
		for evt := range opts.Publisher.SubscribeGalleryDegraded() {
			refresher.Enqueue(refresh.Job{PropertyID: evt.PropertyID})
		}
	}()

	router := BuildRouter(provider)

	log.Printf("listing-gateway listening on :%d", cfg.Port)
	if err := http.ListenAndServe(fmt.Sprintf(":%d", cfg.Port), router); err != nil {
		log.Fatal(err)
	}
}
