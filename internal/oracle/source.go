package oracle

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"sync"
)

// FrameSource yields camera frames in order. Next returns io.EOF when the
// source is exhausted.
type FrameSource interface {
	Next(ctx context.Context) (Frame, error)
	Close() error
}

// SliceSource replays frames held in memory.
type SliceSource struct {
	mu     sync.Mutex
	frames []Frame
	pos    int
}

// NewSliceSource creates a source over frames.
func NewSliceSource(frames ...Frame) *SliceSource {
	return &SliceSource{frames: frames}
}

func (s *SliceSource) Next(ctx context.Context) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pos >= len(s.frames) {
		return Frame{}, io.EOF
	}
	f := s.frames[s.pos]
	f.Seq = s.pos
	s.pos++
	return f, nil
}

func (s *SliceSource) Close() error { return nil }

var imageExtensions = []string{".jpg", ".jpeg", ".png", ".bmp", ".webp"}

// DirSource reads image files from a directory in lexical order.
type DirSource struct {
	paths []string
	pos   int
	mu    sync.Mutex
}

// NewDirSource lists the images in dir.
func NewDirSource(dir string) (*DirSource, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read frame directory: %w", err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if slices.Contains(imageExtensions, ext) {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no image files in %s", dir)
	}
	slices.Sort(paths)
	return &DirSource{paths: paths}, nil
}

// Len returns the number of frames in the directory.
func (s *DirSource) Len() int {
	return len(s.paths)
}

func (s *DirSource) Next(ctx context.Context) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pos >= len(s.paths) {
		return Frame{}, io.EOF
	}
	path := s.paths[s.pos]
	data, err := os.ReadFile(path)
	if err != nil {
		return Frame{}, fmt.Errorf("read frame %s: %w", path, err)
	}
	f := Frame{Data: data, Seq: s.pos}
	s.pos++
	return f, nil
}

func (s *DirSource) Close() error { return nil }

// JPEG frame markers
var (
	jpegSOI = []byte{0xFF, 0xD8}
	jpegEOI = []byte{0xFF, 0xD9}
)

const megabyte = 1 << 20

// SplitJpeg is a bufio.SplitFunc that yields whole JPEG images delimited by
// the Start Of Image and End Of Image markers.
func SplitJpeg(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	start := bytes.Index(data, jpegSOI)
	if start == -1 {
		if atEOF {
			return len(data), nil, nil
		}
		return 0, nil, nil
	}
	end := bytes.Index(data[start:], jpegEOI)
	if end == -1 {
		if atEOF {
			return len(data), nil, nil
		}
		return 0, nil, nil
	}
	return start + end + 2, data[start : start+end+2], nil
}

// FFmpegSource decodes a camera device or video file with ffmpeg and reads
// MJPEG frames from its stdout.
type FFmpegSource struct {
	cmd     *exec.Cmd
	stdout  io.ReadCloser
	scanner *bufio.Scanner
	seq     int
	mu      sync.Mutex
}

// FFmpegArgs builds the ffmpeg arguments for input. Extra input options such
// as "-f v4l2" go before -i.
func FFmpegArgs(input string, inputOpts ...string) []string {
	args := []string{"-hide_banner", "-loglevel", "error"}
	args = append(args, inputOpts...)
	return append(args, "-i", input, "-f", "image2pipe", "-vcodec", "mjpeg", "-")
}

// NewFFmpegSource starts ffmpeg for input. The process is killed when ctx is
// cancelled or Close is called.
func NewFFmpegSource(ctx context.Context, input string, inputOpts ...string) (*FFmpegSource, error) {
	cmd := exec.CommandContext(ctx, "ffmpeg", FFmpegArgs(input, inputOpts...)...)
	cmd.Stderr = os.Stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start ffmpeg: %w", err)
	}
	return newStreamSource(cmd, stdout), nil
}

func newStreamSource(cmd *exec.Cmd, r io.ReadCloser) *FFmpegSource {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, megabyte), 64*megabyte)
	scanner.Split(SplitJpeg)
	return &FFmpegSource{cmd: cmd, stdout: r, scanner: scanner}
}

func (s *FFmpegSource) Next(ctx context.Context) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.scanner.Scan() {
		if err := s.scanner.Err(); err != nil {
			return Frame{}, fmt.Errorf("read ffmpeg frames: %w", err)
		}
		return Frame{}, io.EOF
	}
	// The scanner reuses its buffer between calls.
	data := bytes.Clone(s.scanner.Bytes())
	f := Frame{Data: data, Seq: s.seq}
	s.seq++
	return f, nil
}

func (s *FFmpegSource) Close() error {
	_ = s.stdout.Close()
	if s.cmd == nil || s.cmd.Process == nil {
		return nil
	}
	_ = s.cmd.Process.Kill()
	_ = s.cmd.Wait()
	return nil
}
