package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestDownscale(t *testing.T) {
	tests := []struct {
		name          string
		width, height int
		maxSide       int
		wantW, wantH  int
	}{
		{"landscape", 2000, 1000, 500, 500, 250},
		{"portrait", 600, 1200, 300, 150, 300},
		{"square", 800, 800, 400, 400, 400},
		{"fits", 320, 240, 640, 320, 240},
		{"exactly max", 640, 480, 640, 640, 480},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := pngFrame(t, tt.width, tt.height)
			out, w, h, err := downscale(src, tt.maxSide)
			if err != nil {
				t.Fatalf("downscale() error: %v", err)
			}
			if w != tt.wantW || h != tt.wantH {
				t.Errorf("Expected %dx%d, got %dx%d", tt.wantW, tt.wantH, w, h)
			}
			cfg, _, err := image.DecodeConfig(bytes.NewReader(out))
			if err != nil {
				t.Fatalf("Failed to decode output: %v", err)
			}
			if cfg.Width != tt.wantW || cfg.Height != tt.wantH {
				t.Errorf("Encoded image is %dx%d, want %dx%d", cfg.Width, cfg.Height, tt.wantW, tt.wantH)
			}
		})
	}
}

func TestDownscale_KeepsSmallFrame(t *testing.T) {
	src := pngFrame(t, 100, 50)
	out, _, _, err := downscale(src, 200)
	if err != nil {
		t.Fatalf("downscale() error: %v", err)
	}
	if !bytes.Equal(out, src) {
		t.Error("Expected the original bytes for a frame that already fits")
	}
}

func TestDownscale_InvalidData(t *testing.T) {
	if _, _, _, err := downscale([]byte("not an image"), 100); err == nil {
		t.Error("Expected error for invalid image data")
	}
}

func TestHTTPDetector_DownscalesLargeFrames(t *testing.T) {
	var uploaded image.Config
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		file, _, err := r.FormFile("file")
		if err != nil {
			t.Errorf("Expected multipart file: %v", err)
			return
		}
		data, _ := io.ReadAll(file)
		uploaded, _, err = image.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			t.Errorf("Failed to decode upload: %v", err)
		}
		json.NewEncoder(w).Encode(faceResponse{
			FacesCount: 1,
			Faces:      []faceDetection{{Embedding: []float64{1, 0}, BBox: []float64{100, 50, 300, 250}, DetScore: 0.9}},
		})
	}))
	defer srv.Close()

	d := NewHTTPDetector(srv.URL, time.Second, WithMaxFrameSide(400))
	det, err := d.Detect(context.Background(), Frame{Data: pngFrame(t, 1600, 1200)})
	if err != nil {
		t.Fatalf("Detect() error: %v", err)
	}
	if uploaded.Width != 400 || uploaded.Height != 300 {
		t.Errorf("Expected a 400x300 upload, got %dx%d", uploaded.Width, uploaded.Height)
	}
	if det.FrameWidth != 400 || det.FrameHeight != 300 {
		t.Errorf("Expected frame 400x300, got %dx%d", det.FrameWidth, det.FrameHeight)
	}
	if !det.HasFace() || det.Face.Box.Width != 200 {
		t.Errorf("Unexpected detection %+v", det.Face)
	}
}
