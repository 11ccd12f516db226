package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/yourorg/listing-gateway/internal/config"
	"github.com/yourorg/listing-gateway/internal/warm"
	"github.com/yourorg/listing-gateway/vista"
)

func main() {
	cfg := config.Load()

	cities := splitList(os.Getenv("WARMER_CITIES"))
	if len(cities) == 0 {
		log.Fatal("WARMER_CITIES must be provided")
	}

	interval := parseDuration(os.Getenv("WARMER_INTERVAL"), 6*time.Hour)
	pageSize := config.GetInt("WARMER_PAGE_SIZE", vista.ServerMaxPageSize)
	maxPages := config.GetInt("WARMER_MAX_PAGES", 5)
	pause := parseDuration(os.Getenv("WARMER_PAUSE"), 1500*time.Millisecond)
	requestTimeout := parseDuration(os.Getenv("WARMER_REQUEST_TIMEOUT"), 20*time.Second)
	runOnce := parseBool(os.Getenv("WARMER_RUN_ONCE"), false)
	types := splitList(os.Getenv("WARMER_TYPES"))

	client := vista.NewClient(vista.ClientConfig{
		APIKey:   cfg.VistaAPIKey,
		BaseURL:  cfg.VistaBaseURL,
		RetryMax: cfg.RetryMax,
		Timeout:  cfg.RequestTimeout,
		RPS:      cfg.UpstreamRPS,
	})
	provider := vista.NewProvider(client, vista.Options{
		PhotosEndpoint: cfg.PhotosEndpoint,
		CDNHost:        cfg.CDNHost,
	})

	job := &warm.Job{
		Provider: provider,
		Config: warm.Config{
			Cities:               cities,
			Types:                types,
			PageSize:             pageSize,
			MaxPagesPerCity:      maxPages,
			Interval:             interval,
			PauseBetweenRequests: pause,
			RequestTimeout:       requestTimeout,
		},
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if runOnce {
		if err := job.RunOnce(rootCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Fatalf("warm run failed: %v", err)
		}
		return
	}
	if err := job.Run(rootCtx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("warm job stopped with error: %v", err)
	}
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	fields := strings.FieldsFunc(v, func(r rune) bool {
		switch r {
		case ',', ';', '\n', '\r', '\t':
			return true
		default:
			return false
		}
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

func parseDuration(v string, def time.Duration) time.Duration {
	if v == "" {
		return def
	}
	dur, err := time.ParseDuration(v)
	if err == nil {
		return dur
	}
	if i, err2 := strconv.Atoi(v); err2 == nil {
		return time.Duration(i) * time.Second
	}
	return def
}

func parseBool(v string, def bool) bool {
	if v == "" {
		return def
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}
