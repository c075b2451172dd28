package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/kozaktomas/face-enroll/internal/facematch"
	"github.com/kozaktomas/face-enroll/internal/vecmath"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

const defaultEmbeddingURL = "http://localhost:8000"

// HTTPDetector calls the embedding server's /embed/face endpoint
type HTTPDetector struct {
	baseURL string
	client  *http.Client
	maxSide int
}

// DetectorOption configures an HTTPDetector.
type DetectorOption func(*HTTPDetector)

// WithMaxFrameSide downscales frames wider or taller than side pixels before
// they are posted. Zero disables downscaling.
func WithMaxFrameSide(side int) DetectorOption {
	return func(d *HTTPDetector) { d.maxSide = side }
}

// NewHTTPDetector creates a detector for the embedding server at baseURL
func NewHTTPDetector(baseURL string, timeout time.Duration, opts ...DetectorOption) *HTTPDetector {
	if baseURL == "" {
		baseURL = defaultEmbeddingURL
	}
	d := &HTTPDetector{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// faceDetection is a single detected face as returned by the server
type faceDetection struct {
	FaceIndex int       `json:"face_index"`
	Dim       int       `json:"dim"`
	Embedding []float64 `json:"embedding"`
	BBox      []float64 `json:"bbox"` // [x1, y1, x2, y2]
	DetScore  float64   `json:"det_score"`
}

// faceResponse is the response of the face embedding endpoint
type faceResponse struct {
	FacesCount int             `json:"faces_count"`
	Faces      []faceDetection `json:"faces"`
	Model      string          `json:"model"`
	Width      int             `json:"width,omitempty"`
	Height     int             `json:"height,omitempty"`
}

// Detect posts the frame and returns the highest-scoring face, if any.
func (d *HTTPDetector) Detect(ctx context.Context, frame Frame) (*facematch.FrameDetection, error) {
	if len(frame.Data) == 0 {
		return nil, fmt.Errorf("empty frame")
	}

	width, height := frame.Width, frame.Height
	if width <= 0 || height <= 0 {
		cfg, _, err := image.DecodeConfig(bytes.NewReader(frame.Data))
		if err != nil {
			return nil, fmt.Errorf("failed to read frame dimensions: %w", err)
		}
		width, height = cfg.Width, cfg.Height
	}

	data := frame.Data
	if d.maxSide > 0 && (width > d.maxSide || height > d.maxSide) {
		var err error
		data, width, height, err = downscale(frame.Data, d.maxSide)
		if err != nil {
			return nil, err
		}
	}

	body, err := d.postMultipartImage(ctx, "/embed/face", data)
	if err != nil {
		return nil, err
	}

	var resp faceResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if resp.Width > 0 && resp.Height > 0 {
		width, height = resp.Width, resp.Height
	}

	det := &facematch.FrameDetection{FrameWidth: width, FrameHeight: height}
	best := bestFace(resp.Faces)
	if best == nil {
		return det, nil
	}

	box, ok := facematch.BoxFromCorners(best.BBox)
	if !ok {
		return nil, fmt.Errorf("invalid bounding box %v", best.BBox)
	}
	det.Face = &facematch.Face{
		Embedding: vecmath.Embedding(best.Embedding),
		Box:       box,
		Score:     best.DetScore,
	}
	return det, nil
}

// bestFace picks the face with the highest detection score that carries an embedding
func bestFace(faces []faceDetection) *faceDetection {
	var best *faceDetection
	for i := range faces {
		f := &faces[i]
		if len(f.Embedding) == 0 {
			continue
		}
		if best == nil || f.DetScore > best.DetScore {
			best = f
		}
	}
	return best
}

// postMultipartImage constructs a multipart form with the image data and posts it to the given endpoint.
func (d *HTTPDetector) postMultipartImage(ctx context.Context, endpoint string, imageData []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="frame.jpg"`)
	h.Set("Content-Type", detectMIMEType(imageData))
	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(imageData); err != nil {
		return nil, fmt.Errorf("failed to write image data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, strings.TrimSpace(string(body)))
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	return body, nil
}

// detectMIMEType detects the MIME type from image data
func detectMIMEType(data []byte) string {
	if len(data) < 8 {
		return "application/octet-stream"
	}
	// JPEG: FF D8 FF
	if data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF {
		return "image/jpeg"
	}
	// PNG: 89 50 4E 47
	if data[0] == 0x89 && data[1] == 0x50 && data[2] == 0x4E && data[3] == 0x47 {
		return "image/png"
	}
	// BMP: 42 4D
	if data[0] == 0x42 && data[1] == 0x4D {
		return "image/bmp"
	}
	// WebP: 52 49 46 46 ... 57 45 42 50
	if len(data) >= 12 && data[0] == 0x52 && data[1] == 0x49 && data[2] == 0x46 && data[3] == 0x46 &&
		data[8] == 0x57 && data[9] == 0x45 && data[10] == 0x42 && data[11] == 0x50 {
		return "image/webp"
	}
	return "application/octet-stream"
}
