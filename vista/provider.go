package vista

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yourorg/listing-gateway/internal/cache"
	"github.com/yourorg/listing-gateway/internal/canon"
	"github.com/yourorg/listing-gateway/internal/events"
)

// DetailTTL bounds how long a property detail is served from cache.
const DetailTTL = 5 * time.Minute

// ErrNotFound marks a property or building code unknown upstream.
var ErrNotFound = errors.New("vista: record not found")

// Options configures the provider facade. Caches default to in-memory TTL
// maps; everything else defaults to a disabled/no-op collaborator.
type Options struct {
	Details        cache.Store[Property]
	Galleries      cache.Store[Gallery]
	Metrics        Metrics
	Publisher      events.Publisher
	PhotosEndpoint bool   // dedicated /imoveis/fotos strategy
	CDNHost        string // canonical photo host; empty keeps upstream hosts
	HydrateLimit   int    // properties hydrated per page
	HydrateBatch   int    // concurrent hydration fetches
	MapRecord      func(RawRecord) (Property, error)
}

// Provider is the public contract over the CRM: listing, details, photos,
// buildings, leads and health. It composes the transport, the field registry,
// the orchestrator, the post-filters, the photo engine and the caches.
type Provider struct {
	client         *Client
	registry       *Registry
	details        cache.Store[Property]
	galleries      cache.Store[Gallery]
	metrics        Metrics
	pub            events.Publisher
	photosEndpoint bool
	cdnHost        string
	hydrateLimit   int
	hydrateBatch   int
	mapRecord      func(RawRecord) (Property, error)
}

func NewProvider(c *Client, opts Options) *Provider {
	if opts.Metrics == nil {
		opts.Metrics = noopMetrics{}
	}
	if opts.Details == nil {
		opts.Details = cache.NewMemory[Property]()
	}
	if opts.Galleries == nil {
		opts.Galleries = cache.NewMemory[Gallery]()
	}
	if opts.HydrateLimit <= 0 {
		opts.HydrateLimit = defaultHydrateLimit
	}
	if opts.HydrateBatch <= 0 {
		opts.HydrateBatch = defaultHydrateBatch
	}
	if opts.MapRecord == nil {
		opts.MapRecord = MapRecordToProperty
	}
	return &Provider{
		client:         c,
		registry:       NewRegistry(opts.Metrics),
		details:        opts.Details,
		galleries:      opts.Galleries,
		metrics:        opts.Metrics,
		pub:            opts.Publisher,
		photosEndpoint: opts.PhotosEndpoint,
		cdnHost:        opts.CDNHost,
		hydrateLimit:   opts.HydrateLimit,
		hydrateBatch:   opts.HydrateBatch,
		mapRecord:      opts.MapRecord,
	}
}

// Registry exposes the field capability registry, mainly for warm jobs and
// tests.
func (p *Provider) Registry() *Registry { return p.registry }

func (p *Provider) Name() string { return "vista" }

// Capabilities describes what the upstream can express natively versus what
// this layer reconciles client-side, so callers can plan pagination.
type Capabilities struct {
	MaxPageSize    int      `json:"maxPageSize"`
	NativeFilters  []string `json:"nativeFilters"`
	PostFilters    []string `json:"postFilters"`
	PhotosEndpoint bool     `json:"photosEndpoint"`
	Buildings      bool     `json:"buildings"`
	Leads          bool     `json:"leads"`
}

func (p *Provider) Capabilities() Capabilities {
	return Capabilities{
		MaxPageSize: ServerMaxPageSize,
		NativeFilters: []string{
			"city", "types", "purpose", "priceRange",
			"bedrooms", "suites", "parking", "code", "updatedSince", "sort",
		},
		PostFilters: []string{
			"characteristics", "buildingFeatures", "locationFeatures",
			"seaDistance", "buildingName", "exclusive", "launch", "superHighlight",
		},
		PhotosEndpoint: p.photosEndpoint,
		Buildings:      true,
		Leads:          true,
	}
}

// GetPropertyDetails resolves one property, serving from the detail cache
// when fresh and hydrating a thin gallery before returning.
func (p *Provider) GetPropertyDetails(ctx context.Context, id string) (Property, error) {
	digits := canon.DigitsOnly(id)
	for _, key := range idVariants(id, digits) {
		if prop, ok := p.details.Get(ctx, key); ok {
			p.metrics.CacheHit("detail")
			return prop, nil
		}
	}
	p.metrics.CacheMiss("detail")

	rec, err := p.detailRecord(ctx, id, p.buildListFields())
	if err != nil {
		return Property{}, fmt.Errorf("get property details: %w", err)
	}
	prop, err := p.mapRecord(rec)
	if err != nil {
		return Property{}, fmt.Errorf("get property details %s: %w", id, ErrNotFound)
	}
	if prop.GalleryMissing {
		if g, gerr := p.GetPropertyPhotos(ctx, prop.ID); gerr == nil && len(g.Photos) > 0 {
			prop.Photos = p.mergePhotos(prop.Photos, g.Photos)
			prop.PhotosSource = g.Source
			prop.RecomputeGalleryMissing()
		}
	} else {
		prop.Photos = p.normalizePhotos(prop.Photos)
		if prop.PhotosSource == "" {
			prop.PhotosSource = PhotoSourceGallery
		}
	}
	for _, key := range idVariants(prop.ID, id, digits) {
		p.details.Set(ctx, key, prop, DetailTTL)
	}
	return prop, nil
}

// HealthStatus reports upstream reachability.
type HealthStatus struct {
	OK      bool          `json:"ok"`
	Latency time.Duration `json:"latencyMs"`
	Detail  string        `json:"detail,omitempty"`
}

// HealthCheck issues a minimal one-record listing request. Authentication
// failure is reported distinctly from unavailability.
func (p *Provider) HealthCheck(ctx context.Context) HealthStatus {
	start := time.Now()
	req := searchPayload{
		Fields: []any{"Codigo"},
		Paging: &searchPaging{Page: 1, PageSize: 1},
	}
	_, err := p.client.ListRecords(ctx, req)
	status := HealthStatus{OK: err == nil, Latency: time.Since(start)}
	switch {
	case err == nil:
	case errors.Is(err, ErrUnauthorized):
		status.Detail = "unauthorized"
	default:
		status.Detail = "unavailable"
	}
	return status
}
