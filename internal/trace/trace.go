// Package trace records a postmortem trace of a scenario attempt: one frame
// per browser action, with the acted-on element marked, encoded as an
// animated GIF.
package trace

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/gif"
	_ "image/png"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/nfnt/resize"
)

// Options configures GIF generation
type Options struct {
	MaxWidth  uint // frames are scaled down to this width
	Delay     int  // per frame, in 100ths of a second
	MaxFrames int  // older frames are dropped beyond this
}

// Frame is one captured screenshot. Mark, when set, is the centre of the
// element the action targeted.
type Frame struct {
	Image image.Image
	Mark  *image.Point
}

// Recorder collects frames. It is safe for concurrent use.
type Recorder struct {
	opts Options

	mu     sync.Mutex
	frames []Frame
}

// NewRecorder returns an empty Recorder, filling in zero options.
func NewRecorder(opts Options) *Recorder {
	if opts.MaxWidth == 0 {
		opts.MaxWidth = 800
	}
	if opts.Delay <= 0 {
		opts.Delay = 80
	}
	if opts.MaxFrames <= 0 {
		opts.MaxFrames = 200
	}
	return &Recorder{opts: opts}
}

// Record decodes a PNG screenshot and appends it as a frame.
func (r *Recorder) Record(png []byte, mark *image.Point) error {
	img, _, err := image.Decode(bytes.NewReader(png))
	if err != nil {
		return fmt.Errorf("trace: decode frame: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, Frame{Image: img, Mark: mark})
	if len(r.frames) > r.opts.MaxFrames {
		r.frames = r.frames[len(r.frames)-r.opts.MaxFrames:]
	}
	return nil
}

// Len returns the number of frames held.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.frames)
}

// WriteGIF encodes the recorded frames to path and returns the file size.
func (r *Recorder) WriteGIF(path string) (int64, error) {
	r.mu.Lock()
	frames := append([]Frame(nil), r.frames...)
	r.mu.Unlock()

	if len(frames) == 0 {
		return 0, fmt.Errorf("trace: no frames recorded")
	}

	// Calculate height maintaining aspect ratio
	bounds := frames[0].Image.Bounds()
	width := r.opts.MaxWidth
	if uint(bounds.Dx()) < width {
		width = uint(bounds.Dx())
	}
	height := uint(float64(width) * float64(bounds.Dy()) / float64(bounds.Dx()))

	g := &gif.GIF{
		Image:     make([]*image.Paletted, len(frames)),
		Delay:     make([]int, len(frames)),
		LoopCount: 0,
	}

	palette := generatePalette(frames[0].Image)

	for i, f := range frames {
		annotated := annotate(f)
		resized := resize.Resize(width, height, annotated, resize.Lanczos3)

		paletted := image.NewPaletted(resized.Bounds(), palette)
		draw.FloydSteinberg.Draw(paletted, resized.Bounds(), resized, image.Point{})

		g.Image[i] = paletted
		g.Delay[i] = r.opts.Delay
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, fmt.Errorf("trace: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("trace: %w", err)
	}
	defer f.Close()

	if err := gif.EncodeAll(f, g); err != nil {
		return 0, fmt.Errorf("trace: encode: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// generatePalette builds a 256-colour palette from the most frequent
// colours of img, padded with greys.
func generatePalette(img image.Image) color.Palette {
	bounds := img.Bounds()
	counts := make(map[color.RGBA]int)

	// Sample every 4th pixel for performance
	const step = 4
	for y := bounds.Min.Y; y < bounds.Max.Y; y += step {
		for x := bounds.Min.X; x < bounds.Max.X; x += step {
			r, g, b, a := img.At(x, y).RGBA()
			counts[color.RGBA{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8), A: uint8(a >> 8)}]++
		}
	}

	colors := make([]color.RGBA, 0, len(counts))
	for c := range counts {
		colors = append(colors, c)
	}
	sort.Slice(colors, func(i, j int) bool {
		if counts[colors[i]] != counts[colors[j]] {
			return counts[colors[i]] > counts[colors[j]]
		}
		return rgbaKey(colors[i]) < rgbaKey(colors[j])
	})

	palette := make(color.Palette, 0, 256)
	// The marker colours must survive quantisation.
	palette = append(palette, markerColor, rippleColor, outlineColor)
	for _, c := range colors {
		if len(palette) == 256 {
			break
		}
		palette = append(palette, c)
	}
	for len(palette) < 256 {
		gray := uint8(len(palette))
		palette = append(palette, color.RGBA{gray, gray, gray, 255})
	}
	return palette
}

func rgbaKey(c color.RGBA) uint32 {
	return uint32(c.R)<<24 | uint32(c.G)<<16 | uint32(c.B)<<8 | uint32(c.A)
}
