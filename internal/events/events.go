package events

import (
	"context"
)

// GalleryDegraded is published when a served property still has fewer photos
// than the gallery threshold, so a background worker can re-resolve it.
type GalleryDegraded struct {
	PropertyID string
	PhotoCount int
}

type Publisher interface {
	PublishGalleryDegraded(ctx context.Context, evt GalleryDegraded)
	SubscribeGalleryDegraded() <-chan GalleryDegraded
}

type inMemory struct{ ch chan GalleryDegraded }

func NewInMemory(buffer int) Publisher {
	if buffer <= 0 {
		buffer = 256
	}
	return &inMemory{ch: make(chan GalleryDegraded, buffer)}
}

func (m *inMemory) PublishGalleryDegraded(_ context.Context, evt GalleryDegraded) {
	select {
	case m.ch <- evt:
	default:
	}
}

func (m *inMemory) SubscribeGalleryDegraded() <-chan GalleryDegraded { return m.ch }
