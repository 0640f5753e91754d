package storage

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func TestFileName(t *testing.T) {
	testCases := []struct {
		serial   uint32
		seq      int
		expected string
	}{
		{1234, 0, "cam1234_frame_00000.png"},
		{1234, 2, "cam1234_frame_00002.png"},
		{5678, 99999, "cam5678_frame_99999.png"},
		{1, 123456, "cam1_frame_123456.png"},
	}

	for _, tc := range testCases {
		if got := FileName(tc.serial, tc.seq); got != tc.expected {
			t.Errorf("FileName(%d, %d): expected %s, got %s", tc.serial, tc.seq, tc.expected, got)
		}
	}
}

func TestFileSink_Save(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "frames")
	sink, err := NewFileSink(dir)
	if err != nil {
		t.Fatalf("NewFileSink failed: %v", err)
	}

	img := image.NewRGBA(image.Rect(0, 0, 3, 2))
	img.Set(1, 1, color.RGBA{255, 0, 0, 255})

	name, err := sink.Save(42, 7, img)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if name != "cam42_frame_00007.png" {
		t.Errorf("Unexpected file name: %s", name)
	}

	f, err := os.Open(filepath.Join(dir, name))
	if err != nil {
		t.Fatalf("Saved file not found: %v", err)
	}
	defer f.Close()

	decoded, err := png.Decode(f)
	if err != nil {
		t.Fatalf("Saved file is not a PNG: %v", err)
	}
	if decoded.Bounds() != img.Bounds() {
		t.Errorf("Expected bounds %v, got %v", img.Bounds(), decoded.Bounds())
	}
	r, _, _, _ := decoded.At(1, 1).RGBA()
	if r>>8 != 255 {
		t.Errorf("Expected red pixel at (1,1), got r=%d", r>>8)
	}
}

func TestFileSink_Overwrites(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewFileSink(dir)
	if err != nil {
		t.Fatalf("NewFileSink failed: %v", err)
	}

	small := image.NewGray(image.Rect(0, 0, 1, 1))
	large := image.NewGray(image.Rect(0, 0, 5, 5))

	if _, err := sink.Save(1, 0, small); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if _, err := sink.Save(1, 0, large); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	f, err := os.Open(filepath.Join(dir, FileName(1, 0)))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer f.Close()
	cfg, err := png.DecodeConfig(f)
	if err != nil {
		t.Fatalf("DecodeConfig failed: %v", err)
	}
	if cfg.Width != 5 {
		t.Errorf("Expected the second save to overwrite, got width %d", cfg.Width)
	}
}

func TestFileSink_SaveFailsInMissingDir(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewFileSink(dir)
	if err != nil {
		t.Fatalf("NewFileSink failed: %v", err)
	}
	if err := os.RemoveAll(dir); err != nil {
		t.Fatalf("RemoveAll failed: %v", err)
	}

	if _, err := sink.Save(1, 0, image.NewGray(image.Rect(0, 0, 1, 1))); err == nil {
		t.Error("Expected error when the output directory is gone")
	}
}
