package warm

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/yourorg/listing-gateway/vista"
)

// Config drives the bulk cache-warming job: which cities to walk and how
// aggressively.
type Config struct {
	Cities               []string
	Types                []string
	PageSize             int
	MaxPagesPerCity      int
	Interval             time.Duration
	PauseBetweenRequests time.Duration
	RequestTimeout       time.Duration
}

// Job walks listing pages per city so the first real visitor after a deploy
// hits warm detail and gallery caches instead of a cold upstream.
type Job struct {
	Provider *vista.Provider
	Logger   *log.Logger
	Config   Config
}

func (j *Job) logf(format string, args ...any) {
	if j.Logger != nil {
		j.Logger.Printf(format, args...)
		return
	}
	log.Printf(format, args...)
}

func (j *Job) validate() error {
	if j == nil {
		return errors.New("nil warm job")
	}
	if j.Provider == nil {
		return errors.New("warm job missing provider")
	}
	if len(j.Config.Cities) == 0 {
		return errors.New("warm job requires at least one city")
	}
	return nil
}

// Run executes once, or on an interval when configured, until the context is
// cancelled.
func (j *Job) Run(ctx context.Context) error {
	if err := j.validate(); err != nil {
		return err
	}
	interval := j.Config.Interval
	if interval <= 0 {
		return j.RunOnce(ctx)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	j.logf("warm job starting with interval %s (%d city(ies))", interval, len(j.Config.Cities))
	if err := j.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
		j.logf("warm job initial run error: %v", err)
	}
	for {
		select {
		case <-ctx.Done():
			j.logf("warm job stopping: %v", ctx.Err())
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case <-ticker.C:
			if err := j.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
				j.logf("warm job iteration error: %v", err)
			}
		}
	}
}

func (j *Job) RunOnce(ctx context.Context) error {
	if err := j.validate(); err != nil {
		return err
	}
	types := j.Config.Types
	if len(types) == 0 {
		types = []string{""}
	}
	var joined error
	for _, rawCity := range j.Config.Cities {
		city := strings.TrimSpace(rawCity)
		if city == "" {
			continue
		}
		for _, propType := range types {
			if err := j.warmCity(ctx, city, propType); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				joined = errors.Join(joined, err)
			}
		}
	}
	return joined
}

func (j *Job) warmCity(ctx context.Context, city, propType string) error {
	pageSize := j.Config.PageSize
	if pageSize <= 0 || pageSize > vista.ServerMaxPageSize {
		pageSize = vista.ServerMaxPageSize
	}
	maxPages := j.Config.MaxPagesPerCity
	if maxPages <= 0 {
		maxPages = 5
	}
	timeout := j.Config.RequestTimeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	pause := j.Config.PauseBetweenRequests

	filters := vista.Filters{City: city}
	if propType != "" {
		filters.Types = []string{propType}
	}
	warmed := 0
	for page := 1; page <= maxPages; page++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		reqCtx, cancel := context.WithTimeout(ctx, timeout)
		result, err := j.Provider.ListProperties(reqCtx, filters, page, pageSize)
		cancel()
		if err != nil {
			if errors.Is(err, vista.ErrUnauthorized) {
				return err
			}
			j.logf("warm job city %s page %d error: %v", city, page, err)
			break
		}
		if len(result.Properties) == 0 {
			if page == 1 {
				j.logf("warm job city %s returned 0 listings", city)
			}
			break
		}
		warmed += len(result.Properties)
		if page >= result.Pagination.TotalPages || len(result.Properties) < pageSize {
			break
		}
		if pause > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(pause):
			}
		}
	}
	if warmed > 0 {
		j.logf("warm job city %s warmed %d listings", city, warmed)
	}
	return nil
}
