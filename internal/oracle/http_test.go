package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func pngFrame(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, w, h))); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func faceServer(t *testing.T, status int, resp any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embed/face" {
			t.Errorf("Expected path /embed/face, got %s", r.URL.Path)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("Expected multipart file: %v", err)
		} else {
			data, _ := io.ReadAll(file)
			if len(data) == 0 {
				t.Error("Expected non-empty upload")
			}
			if ct := header.Header.Get("Content-Type"); ct != "image/png" {
				t.Errorf("Expected part content type image/png, got %s", ct)
			}
		}
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestHTTPDetector_PicksBestFace(t *testing.T) {
	srv := faceServer(t, http.StatusOK, faceResponse{
		FacesCount: 2,
		Faces: []faceDetection{
			{FaceIndex: 0, Embedding: []float64{1, 0}, BBox: []float64{0, 0, 10, 10}, DetScore: 0.6},
			{FaceIndex: 1, Embedding: []float64{0, 1}, BBox: []float64{10, 20, 70, 100}, DetScore: 0.9},
		},
	})
	defer srv.Close()

	det, err := NewHTTPDetector(srv.URL+"/", time.Second).Detect(context.Background(), Frame{Data: pngFrame(t, 200, 100)})
	if err != nil {
		t.Fatalf("Detect() error: %v", err)
	}
	if det.FrameWidth != 200 || det.FrameHeight != 100 {
		t.Errorf("Expected frame 200x100, got %dx%d", det.FrameWidth, det.FrameHeight)
	}
	if !det.HasFace() {
		t.Fatal("Expected a face")
	}
	if det.Face.Score != 0.9 {
		t.Errorf("Expected best score 0.9, got %v", det.Face.Score)
	}
	if det.Face.Box.X != 10 || det.Face.Box.Width != 60 || det.Face.Box.Height != 80 {
		t.Errorf("Unexpected box %+v", det.Face.Box)
	}
}

func TestHTTPDetector_NoFace(t *testing.T) {
	srv := faceServer(t, http.StatusOK, faceResponse{})
	defer srv.Close()

	det, err := NewHTTPDetector(srv.URL, time.Second).Detect(context.Background(), Frame{Data: pngFrame(t, 64, 48)})
	if err != nil {
		t.Fatalf("Detect() error: %v", err)
	}
	if det.HasFace() {
		t.Error("Expected no face")
	}
	if det.FrameWidth != 64 || det.FrameHeight != 48 {
		t.Errorf("Expected frame 64x48, got %dx%d", det.FrameWidth, det.FrameHeight)
	}
}

func TestHTTPDetector_StatusMapping(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		unavailable bool
	}{
		{"forbidden", http.StatusForbidden, true},
		{"unauthorized", http.StatusUnauthorized, true},
		{"server error", http.StatusInternalServerError, false},
		{"bad request", http.StatusBadRequest, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := faceServer(t, tt.status, map[string]string{"detail": "nope"})
			defer srv.Close()

			_, err := NewHTTPDetector(srv.URL, time.Second).Detect(context.Background(), Frame{Data: pngFrame(t, 10, 10)})
			if err == nil {
				t.Fatal("Expected error")
			}
			if got := errors.Is(err, ErrUnavailable); got != tt.unavailable {
				t.Errorf("errors.Is(err, ErrUnavailable) = %v, want %v (err: %v)", got, tt.unavailable, err)
			}
		})
	}
}

func TestHTTPDetector_ExplicitDimensionsSkipDecode(t *testing.T) {
	srv := faceServer(t, http.StatusOK, faceResponse{})
	defer srv.Close()

	// PNG magic followed by junk: only the upload sniffing sees it.
	junk := append([]byte{0x89, 0x50, 0x4E, 0x47, 0, 0, 0, 0}, []byte("junk")...)
	det, err := NewHTTPDetector(srv.URL, time.Second).Detect(context.Background(), Frame{Data: junk, Width: 640, Height: 480})
	if err != nil {
		t.Fatalf("Detect() error: %v", err)
	}
	if det.FrameWidth != 640 || det.FrameHeight != 480 {
		t.Errorf("Expected 640x480, got %dx%d", det.FrameWidth, det.FrameHeight)
	}
}

func TestHTTPDetector_UndecodableFrame(t *testing.T) {
	d := NewHTTPDetector("http://127.0.0.1:0", time.Second)
	if _, err := d.Detect(context.Background(), Frame{Data: []byte("not an image")}); err == nil {
		t.Error("Expected error for undecodable frame")
	}
	if _, err := d.Detect(context.Background(), Frame{}); err == nil {
		t.Error("Expected error for empty frame")
	}
}

func TestDetectMIMEType(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		expected string
	}{
		{"jpeg", []byte{0xFF, 0xD8, 0xFF, 0xE0, 0, 0, 0, 0}, "image/jpeg"},
		{"png", []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}, "image/png"},
		{"bmp", []byte{0x42, 0x4D, 0, 0, 0, 0, 0, 0}, "image/bmp"},
		{"webp", []byte("RIFF\x00\x00\x00\x00WEBP"), "image/webp"},
		{"short", []byte{0xFF}, "application/octet-stream"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := detectMIMEType(tt.data); got != tt.expected {
				t.Errorf("detectMIMEType() = %s, want %s", got, tt.expected)
			}
		})
	}
}
