// Package screen draws the clock face onto a 128x128 monochrome canvas, sends finished frames to
// the display, and retains them for debugging the rest of the program without the display
// attached.
package screen

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
	"golang.org/x/net/trace"
	"periph.io/x/conn/v3/display"
)

const (
	// Width and Height are the size of the logical canvas.
	Width  = 128
	Height = 128

	previewScale = 3 // Size of one pixel in the preview image.

	smallFontSize = 15
	largeFontSize = 33
)

var flushDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "screen_flush_seconds",
	Help:    "time taken to send one frame to the display",
	Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
})

// Rotation is how the finished frame is turned before it reaches the display, clockwise.
type Rotation int

const (
	Rotation0 Rotation = iota
	Rotation90
	Rotation180
	Rotation270
)

// Degrees returns the rotation in degrees.
func (r Rotation) Degrees() int { return 90 * int(r) }

func (r Rotation) String() string { return fmt.Sprintf("%d°", r.Degrees()) }

// Font selects one of the two typefaces.
type Font int

const (
	FontSmall Font = iota
	FontLarge
)

// Screen is an off-screen canvas attached to an optional display.
type Screen struct {
	dev   display.Drawer // nil when running without hardware
	log   trace.EventLog
	fonts [2]font.Face

	canvas   *image.Gray
	rotation Rotation
	face     font.Face

	busy atomic.Bool // a frame is being written to dev

	imageMu sync.Mutex
	image   *image.Gray // last frame sent, after rotation; must hold imageMu to read or write.
}

// NewScreen returns an initialized Screen.  dev may be nil.
func NewScreen(dev display.Drawer) (*Screen, error) {
	f, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse font: %w", err)
	}
	s := &Screen{
		dev:    dev,
		log:    trace.NewEventLog("screen", "display"),
		canvas: image.NewGray(image.Rect(0, 0, Width, Height)),
		image:  image.NewGray(image.Rect(0, 0, Width, Height)),
	}
	for i, size := range []float64{smallFontSize, largeFontSize} {
		face, err := opentype.NewFace(f, &opentype.FaceOptions{Size: size, DPI: 72, Hinting: font.HintingFull})
		if err != nil {
			return nil, fmt.Errorf("create %vpx face: %w", size, err)
		}
		s.fonts[i] = face
	}
	s.face = s.fonts[FontSmall]
	return s, nil
}

// Ready reports whether the display can accept a new frame.
func (s *Screen) Ready() bool { return !s.busy.Load() }

// Clear blanks the canvas.
func (s *Screen) Clear() {
	for i := range s.canvas.Pix {
		s.canvas.Pix[i] = 0
	}
}

// SetRotation sets the rotation applied to the frame being composed.
func (s *Screen) SetRotation(r Rotation) { s.rotation = r & 3 }

// SetFont selects the typeface for StringWidth and DrawString.
func (s *Screen) SetFont(f Font) {
	if f == FontLarge {
		s.face = s.fonts[FontLarge]
	} else {
		s.face = s.fonts[FontSmall]
	}
}

// StringWidth returns the width of str in pixels in the current font.
func (s *Screen) StringWidth(str string) int {
	return font.MeasureString(s.face, str).Ceil()
}

// DrawString draws str with its top-left corner at (x, y).
func (s *Screen) DrawString(x, y int, str string) {
	d := &font.Drawer{
		Dst:  s.canvas,
		Src:  image.NewUniform(color.White),
		Face: s.face,
		Dot:  fixed.P(x, y+s.face.Metrics().Ascent.Ceil()),
	}
	d.DrawString(str)
}

// FillRect fills the rectangle with corners (x0, y0) and (x1, y1), inclusive.
func (s *Screen) FillRect(x0, y0, x1, y1 int) {
	if x1 < x0 {
		x0, x1 = x1, x0
	}
	if y1 < y0 {
		y0, y1 = y1, y0
	}
	r := image.Rect(x0, y0, x1+1, y1+1).Intersect(s.canvas.Bounds())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			s.canvas.SetGray(x, y, color.Gray{Y: 0xff})
		}
	}
}

// rotate returns a rotated copy of src, which must be square.
func rotate(src *image.Gray, r Rotation) *image.Gray {
	b := src.Bounds()
	n := b.Dx()
	dst := image.NewGray(b)
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			var dx, dy int
			switch r {
			case Rotation90:
				dx, dy = n-1-y, x
			case Rotation180:
				dx, dy = n-1-x, n-1-y
			case Rotation270:
				dx, dy = y, n-1-x
			default:
				dx, dy = x, y
			}
			dst.SetGray(dx, dy, src.GrayAt(x, y))
		}
	}
	return dst
}

// fit returns the largest rectangle with src's aspect ratio centered in dst.
func fit(dst, src image.Rectangle) image.Rectangle {
	w, h := dst.Dx(), dst.Dy()
	if w*src.Dy() > h*src.Dx() {
		w = h * src.Dx() / src.Dy()
	} else {
		h = w * src.Dy() / src.Dx()
	}
	min := dst.Min.Add(image.Pt((dst.Dx()-w)/2, (dst.Dy()-h)/2))
	return image.Rectangle{Min: min, Max: min.Add(image.Pt(w, h))}
}

// Update sends the canvas to the display.  The transfer happens in the background; Ready reports
// false until it finishes.
func (s *Screen) Update() error {
	frame := rotate(s.canvas, s.rotation)
	s.imageMu.Lock()
	s.image = frame
	s.imageMu.Unlock()

	if s.dev == nil {
		return nil
	}
	if !s.busy.CompareAndSwap(false, true) {
		return fmt.Errorf("display busy")
	}
	go func() {
		defer s.busy.Store(false)
		timer := prometheus.NewTimer(flushDuration)
		defer timer.ObserveDuration()
		if err := s.draw(frame); err != nil {
			s.log.Errorf("draw frame: %v", err)
		}
	}()
	return nil
}

func (s *Screen) draw(frame *image.Gray) error {
	bounds := s.dev.Bounds()
	var img image.Image = frame
	if bounds != frame.Bounds() {
		scaled := image.NewGray(bounds)
		xdraw.NearestNeighbor.Scale(scaled, fit(bounds, frame.Bounds()), frame, frame.Bounds(), xdraw.Src, nil)
		img = scaled
	}
	if err := s.dev.Draw(bounds, img, bounds.Min); err != nil {
		return fmt.Errorf("write to %s: %w", s.dev, err)
	}
	return nil
}

// Blank blanks the display synchronously.
func (s *Screen) Blank() error {
	s.Clear()
	frame := image.NewGray(s.canvas.Bounds())
	s.imageMu.Lock()
	s.image = frame
	s.imageMu.Unlock()
	if s.dev == nil {
		return nil
	}
	if err := s.draw(frame); err != nil {
		return fmt.Errorf("blank display: %w", err)
	}
	return nil
}

// Frame returns a copy of the last frame sent to the display.
func (s *Screen) Frame() *image.Gray {
	s.imageMu.Lock()
	defer s.imageMu.Unlock()
	frame := image.NewGray(s.image.Bounds())
	copy(frame.Pix, s.image.Pix)
	return frame
}

// ServeHTTP serves an enlarged copy of the current frame as a PNG.
func (s *Screen) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	frame := s.Frame()
	b := frame.Bounds()
	preview := image.NewGray(image.Rect(0, 0, b.Dx()*previewScale, b.Dy()*previewScale))
	xdraw.NearestNeighbor.Scale(preview, preview.Bounds(), frame, b, xdraw.Src, nil)

	w.Header().Add("content-type", "image/png")
	w.WriteHeader(http.StatusOK)
	if err := png.Encode(w, preview); err != nil {
		log.Printf("encoding image: %v", err)
	}
}
