package renderer

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/ByLCY/memeforge/apperr"
	"github.com/ByLCY/memeforge/layout"
)

func TestSnapshotBeforeRender(t *testing.T) {
	s := NewSurface(100, 50)
	if s.Ready() {
		t.Fatalf("new surface should not be ready")
	}
	if _, err := s.Snapshot(); !errors.Is(err, apperr.ErrExport) {
		t.Fatalf("expected ErrExport, got %v", err)
	}
}

func TestSnapshotIsCopy(t *testing.T) {
	s := NewSurface(2, 2)
	px := image.NewRGBA(image.Rect(0, 0, 4, 4))
	px.Set(1, 1, color.RGBA{1, 2, 3, 255})
	s.Commit(px, 2)

	snap, err := s.Snapshot()
	if err != nil {
		t.Fatalf("snapshot error: %v", err)
	}
	px.Set(1, 1, color.RGBA{9, 9, 9, 255})
	if got := snap.RGBAAt(1, 1); got != (color.RGBA{1, 2, 3, 255}) {
		t.Fatalf("snapshot should be independent of surface, got %v", got)
	}
	if w, h := s.PixelSize(); w != 4 || h != 4 {
		t.Fatalf("pixel size=%dx%d want 4x4", w, h)
	}
	if s.DPR() != 2 {
		t.Fatalf("dpr=%g want 2", s.DPR())
	}
}

func TestBackingSize(t *testing.T) {
	w, h := BackingSize(layout.Size{Width: 300, Height: 200}, 2)
	if w != 600 || h != 400 {
		t.Fatalf("got %dx%d want 600x400", w, h)
	}
	w, h = BackingSize(layout.Size{Width: 100.4, Height: 10}, 1.5)
	if w != 151 || h != 15 {
		t.Fatalf("got %dx%d want 151x15", w, h)
	}
	if w, h := BackingSize(layout.Size{Width: 10, Height: 10}, 0); w != 0 || h != 0 {
		t.Fatalf("dpr=0 should give 0x0")
	}
}
