package events

import (
	"context"
	"testing"
)

func TestPublishSubscribe(t *testing.T) {
	p := NewInMemory(4)
	p.PublishGalleryDegraded(context.Background(), GalleryDegraded{PropertyID: "1025", PhotoCount: 1})

	select {
	case evt := <-p.SubscribeGalleryDegraded():
		if evt.PropertyID != "1025" || evt.PhotoCount != 1 {
			t.Errorf("event = %+v", evt)
		}
	default:
		t.Fatal("expected a buffered event")
	}
}

func TestPublishNeverBlocks(t *testing.T) {
	p := NewInMemory(1)
	ctx := context.Background()
	// second publish overflows the buffer and must drop, not block
	p.PublishGalleryDegraded(ctx, GalleryDegraded{PropertyID: "a"})
	p.PublishGalleryDegraded(ctx, GalleryDegraded{PropertyID: "b"})

	evt := <-p.SubscribeGalleryDegraded()
	if evt.PropertyID != "a" {
		t.Errorf("kept event = %+v, want the first", evt)
	}
	select {
	case evt := <-p.SubscribeGalleryDegraded():
		t.Errorf("overflow event %+v should have been dropped", evt)
	default:
	}
}
