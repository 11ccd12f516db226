package vista

import (
	"context"
	"log"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yourorg/listing-gateway/internal/canon"
	"github.com/yourorg/listing-gateway/internal/events"
)

const (
	// GalleryTTL bounds how long a resolved gallery is served from cache.
	GalleryTTL = 10 * time.Minute

	defaultHydrateLimit = 12
	defaultHydrateBatch = 6
)

// Gallery is a resolved, deduplicated, ordered photo set for one property.
type Gallery struct {
	Photos []Photo     `json:"photos"`
	Source PhotoSource `json:"source"`
}

// rawPhoto tolerates the upstream's assorted photo field spellings.
type rawPhoto struct {
	Foto        string  `json:"Foto"`
	FotoPequena string  `json:"FotoPequena"`
	URL         string  `json:"Url"`
	Ordem       flexInt `json:"Ordem"`
	Destaque    string  `json:"Destaque"`
	Titulo      string  `json:"Titulo"`
	Descricao   string  `json:"Descricao"`
}

func (r rawPhoto) href() string {
	if r.Foto != "" {
		return r.Foto
	}
	return r.URL
}

func convertPhotos(items []rawPhoto) []Photo {
	out := make([]Photo, 0, len(items))
	for i, item := range items {
		href := item.href()
		if href == "" {
			continue
		}
		order := int(item.Ordem)
		if order == 0 {
			order = i + 1
		}
		out = append(out, Photo{
			URL:         href,
			Thumbnail:   item.FotoPequena,
			Order:       order,
			IsHighlight: canon.Fold(item.Destaque) == "sim",
			Title:       item.Titulo,
			Description: item.Descricao,
		})
	}
	return out
}

// GetPropertyPhotos resolves a complete gallery for one property, walking the
// fallback strategies in order. Non-empty results are cached under every
// known id variant; the empty fallback is deliberately not cached so a later
// call can retry once the upstream recovers.
func (p *Provider) GetPropertyPhotos(ctx context.Context, id string) (Gallery, error) {
	digits := canon.DigitsOnly(id)
	for _, key := range idVariants(id, digits) {
		if g, ok := p.galleries.Get(ctx, key); ok {
			p.metrics.CacheHit("gallery")
			return g, nil
		}
	}
	p.metrics.CacheMiss("gallery")

	if p.photosEndpoint {
		for _, code := range idVariants(digits, id) {
			items, err := p.client.GetPhotoGallery(ctx, code)
			if err != nil {
				log.Printf("[WARN] vista photos endpoint for %s: %v", code, err)
				continue
			}
			if photos := p.normalizePhotos(convertPhotos(items)); len(photos) > 0 {
				g := Gallery{Photos: photos, Source: PhotoSourcePhotosEndpoint}
				p.storeGallery(ctx, g, id, digits)
				return g, nil
			}
		}
	}

	rec, err := p.detailRecord(ctx, id, photoDetailFields())
	if err != nil {
		return Gallery{}, err
	}
	if v, ok := rec["Foto"]; ok {
		if photos := p.normalizePhotos(photosFromAny(v)); len(photos) > 0 {
			g := Gallery{Photos: photos, Source: PhotoSourceGallery}
			p.storeGallery(ctx, g, id, digits)
			return g, nil
		}
	}
	if href := rawString(rec, "FotoDestaque", "FotoDestaquePequena"); href != "" {
		g := Gallery{
			Photos: p.normalizePhotos([]Photo{{URL: href, Order: 1, IsHighlight: true}}),
			Source: PhotoSourceHighlight,
		}
		p.storeGallery(ctx, g, id, digits)
		return g, nil
	}
	return Gallery{Photos: []Photo{}, Source: PhotoSourceFallbackEmpty}, nil
}

func (p *Provider) storeGallery(ctx context.Context, g Gallery, ids ...string) {
	for _, key := range idVariants(ids...) {
		p.galleries.Set(ctx, key, g, GalleryTTL)
	}
}

func idVariants(ids ...string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// normalizePhotos dedupes by URL ignoring the query string, sorts highlight
// first then by ascending order, and rewrites URLs to https and the
// canonical CDN host.
func (p *Provider) normalizePhotos(photos []Photo) []Photo {
	seen := make(map[string]bool, len(photos))
	out := make([]Photo, 0, len(photos))
	for _, ph := range photos {
		if ph.URL == "" {
			continue
		}
		ph.URL = p.rewriteURL(ph.URL)
		ph.Thumbnail = p.rewriteURL(ph.Thumbnail)
		key := stripQuery(ph.URL)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, ph)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].IsHighlight != out[j].IsHighlight {
			return out[i].IsHighlight
		}
		return out[i].Order < out[j].Order
	})
	return out
}

func (p *Provider) rewriteURL(href string) string {
	if href == "" {
		return href
	}
	if strings.HasPrefix(href, "http://") {
		href = "https://" + strings.TrimPrefix(href, "http://")
	}
	if p.cdnHost == "" {
		return href
	}
	u, err := url.Parse(href)
	if err != nil || u.Host == "" {
		return href
	}
	u.Host = p.cdnHost
	u.Scheme = "https"
	return u.String()
}

func stripQuery(href string) string {
	if i := strings.IndexByte(href, '?'); i >= 0 {
		return href[:i]
	}
	return href
}

// mergePhotos folds newly found photos into an existing set, deduping by URL
// ignoring query string, then re-sorts.
func (p *Provider) mergePhotos(existing, found []Photo) []Photo {
	return p.normalizePhotos(append(append([]Photo{}, existing...), found...))
}

// HydrateGalleries re-resolves photos for properties whose gallery is below
// the threshold. Bounded to the first few properties of the page and run in
// fixed-size concurrent batches; an individual failure is logged and skipped,
// never failing the batch. After hydration every zero-photo property falls
// back to its raw highlight field and galleryMissing is recomputed.
func (p *Provider) HydrateGalleries(ctx context.Context, props []Property) {
	limit := p.hydrateLimit
	if limit > len(props) {
		limit = len(props)
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.hydrateBatch)
	for i := 0; i < limit; i++ {
		if !props[i].GalleryMissing && props[i].usablePhotoCount() >= MinGalleryPhotos {
			continue
		}
		i := i
		g.Go(func() error {
			gallery, err := p.GetPropertyPhotos(gctx, props[i].ID)
			if err != nil {
				log.Printf("[WARN] vista hydrate photos for %s: %v", props[i].ID, err)
				return nil // settle-all: never abort the batch
			}
			if len(gallery.Photos) == 0 {
				return nil
			}
			mu.Lock()
			props[i].Photos = p.mergePhotos(props[i].Photos, gallery.Photos)
			props[i].PhotosSource = gallery.Source
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	for i := range props {
		if len(props[i].Photos) == 0 {
			if href := rawString(props[i].ProviderData.Raw, "FotoDestaque", "FotoDestaquePequena"); href != "" {
				props[i].Photos = p.normalizePhotos([]Photo{{URL: href, Order: 1, IsHighlight: true}})
				props[i].PhotosSource = PhotoSourceHighlight
			}
		}
		props[i].RecomputeGalleryMissing()
	}
}

// publishDegraded hands still-degraded properties to the background
// refresher via the event bus.
func (p *Provider) publishDegraded(ctx context.Context, props []Property) {
	if p.pub == nil {
		return
	}
	for i := range props {
		if props[i].GalleryMissing {
			p.pub.PublishGalleryDegraded(ctx, events.GalleryDegraded{
				PropertyID: props[i].ID,
				PhotoCount: props[i].usablePhotoCount(),
			})
		}
	}
}

func photoDetailFields() []any {
	return []any{
		"Codigo",
		"FotoDestaque",
		map[string][]string{"Foto": {"Foto", "FotoPequena", "Ordem", "Destaque"}},
	}
}
