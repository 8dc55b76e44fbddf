// Package status renders a debugging page showing what the clock is doing.
package status

import (
	"bytes"
	_ "embed"
	"encoding/base64"
	"fmt"
	"html/template"
	"image"
	"image/png"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/jrockway/dice-clock/control/clock"
	xdraw "golang.org/x/image/draw"
)

var (
	//go:embed index.html.tmpl
	indexHTML string
	funcMap   = template.FuncMap{
		"image":    formatImage,
		"unixtime": formatUnixTime,
		"duration": formatDuration,
		"float1":   formatFloat1,
		"cursor":   formatCursor,
	}
	index = template.Must(template.New("index").Funcs(funcMap).Parse(indexHTML))
)

// Status is everything shown on the page.
type Status struct {
	ClockFace      *image.Gray
	Now            time.Time
	RTCInitialized bool
	State          clock.State
	Elapsed        time.Duration // stopwatch
	NextRender     time.Duration

	Temperature, Voltage       float64
	HasTemperature, HasVoltage bool
}

// Page serves the most recent Status.
type Page struct {
	mu     sync.RWMutex
	status Status
}

// Update replaces the status.  A nil clock face keeps the previous one.
func (p *Page) Update(s Status) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if s.ClockFace == nil {
		s.ClockFace = p.status.ClockFace
	}
	p.status = s
}

// ServeHTTP renders the page.
func (p *Page) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("content-type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	p.mu.RLock()
	defer p.mu.RUnlock()
	if err := index.Execute(w, p.status); err != nil {
		log.Printf("execute template: %v", err)
	}
}

func formatUnixTime(t time.Time) string { return t.Format(time.UnixDate) }

func formatDuration(d time.Duration) string { return d.String() }

func formatFloat1(x float64) string { return fmt.Sprintf("%.1f", x) }

func formatCursor(c int) string {
	switch c {
	case clock.CursorHour:
		return "hour"
	case clock.CursorTensOfMinutes:
		return "tens of minutes"
	case clock.CursorMinutes:
		return "minutes"
	default:
		return fmt.Sprintf("invalid (%d)", c)
	}
}

func formatImage(src *image.Gray) template.URL {
	enlarge := 3
	if src == nil {
		src = image.NewGray(image.Rect(0, 0, 1, 1))
	}
	img := image.NewGray(image.Rect(0, 0, enlarge*src.Bounds().Dx(), enlarge*src.Bounds().Dy()))
	xdraw.NearestNeighbor.Scale(img, img.Bounds(), src, src.Bounds(), xdraw.Src, nil)

	buf := new(bytes.Buffer)
	if err := png.Encode(buf, img); err != nil {
		log.Printf("problem encoding image: %v", err)
		return template.URL("data:text/plain,error")
	}
	return template.URL("data:image/png;base64," + base64.RawStdEncoding.EncodeToString(buf.Bytes()))
}
