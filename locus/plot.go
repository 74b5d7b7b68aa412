package locus

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"sync"

	"golang.org/x/image/colornames"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/font"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/vgsvg"
)

const (
	pathWidth    = 2
	markerRadius = 1
	tickLength   = 6
	labelSize    = 9
)

// Renderer redraws the plot surface from a full dataset.
type Renderer interface {
	Render(points []Point) error
}

// RenderStats describes the last rendered surface.
type RenderStats struct {
	Markers  int
	Segments int
	Bound    float64
	Renders  int
}

// Plotter draws the dataset as an SVG document: axes crossing at the
// centre, one connected path through every point and one marker per point.
// Every call to Render draws the surface from scratch.
type Plotter struct {
	scaler *Scaler
	face   font.Face

	mu    sync.RWMutex
	svg   []byte
	stats RenderStats
}

// NewPlotter creates a plotter drawing through scaler and renders the empty surface.
func NewPlotter(scaler *Scaler) (*Plotter, error) {
	p := &Plotter{
		scaler: scaler,
		face:   font.DefaultCache.Lookup(plot.DefaultFont, vg.Points(labelSize)),
	}
	if err := p.Render(nil); err != nil {
		return nil, err
	}
	return p, nil
}

// Render redraws the surface for points.
func (p *Plotter) Render(points []Point) error {
	w, h := p.scaler.Size()
	c := vgsvg.New(vg.Length(w), vg.Length(h))

	p.drawBackground(c, w, h)
	p.drawAxes(c, w, h)
	segments := p.drawPath(c, h, points)
	p.drawMarkers(c, h, points)

	var buf bytes.Buffer
	if _, err := c.WriteTo(&buf); err != nil {
		return fmt.Errorf("failed to encode plot surface: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.svg = buf.Bytes()
	p.stats = RenderStats{
		Markers:  len(points),
		Segments: segments,
		Bound:    p.scaler.Domain(),
		Renders:  p.stats.Renders + 1,
	}
	return nil
}

// SVG returns a copy of the current surface.
func (p *Plotter) SVG() []byte {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]byte, len(p.svg))
	copy(out, p.svg)
	return out
}

// WriteTo writes the current surface to w.
func (p *Plotter) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(p.SVG())
	return int64(n), err
}

// Stats returns what the last render drew.
func (p *Plotter) Stats() RenderStats {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.stats
}

// canvasPoint converts scaler pixels (y down) to vg coordinates (y up).
func canvasPoint(px, py, h float64) vg.Point {
	return vg.Point{X: vg.Length(px), Y: vg.Length(h - py)}
}

func (p *Plotter) drawBackground(c vg.Canvas, w, h float64) {
	var bg vg.Path
	bg.Move(vg.Point{})
	bg.Line(vg.Point{X: vg.Length(w)})
	bg.Line(vg.Point{X: vg.Length(w), Y: vg.Length(h)})
	bg.Line(vg.Point{Y: vg.Length(h)})
	bg.Close()
	c.SetColor(colornames.White)
	c.Fill(bg)
}

func (p *Plotter) drawAxes(c vg.Canvas, w, h float64) {
	c.SetColor(colornames.Black)
	c.SetLineWidth(1)

	// x axis along the vertical centre, y axis along the horizontal centre.
	var axes vg.Path
	axes.Move(canvasPoint(0, h/2, h))
	axes.Line(canvasPoint(w, h/2, h))
	axes.Move(canvasPoint(w/2, 0, h))
	axes.Line(canvasPoint(w/2, h, h))
	c.Stroke(axes)

	ascent := float64(p.face.Extents().Ascent)
	for _, t := range p.scaler.Ticks() {
		var tick vg.Path
		tick.Move(canvasPoint(t.Pos, h/2, h))
		tick.Line(canvasPoint(t.Pos, h/2+tickLength, h))
		c.Stroke(tick)
		if t.Label != "" {
			lw := float64(p.face.Width(t.Label))
			c.FillString(p.face, canvasPoint(t.Pos-lw/2, h/2+tickLength+ascent+2, h), t.Label)
		}
	}
	for _, t := range p.scaler.YTicks() {
		var tick vg.Path
		tick.Move(canvasPoint(w/2, t.Pos, h))
		tick.Line(canvasPoint(w/2-tickLength, t.Pos, h))
		c.Stroke(tick)
		if t.Label != "" {
			lw := float64(p.face.Width(t.Label))
			c.FillString(p.face, canvasPoint(w/2-tickLength-lw-3, t.Pos+ascent/2, h), t.Label)
		}
	}
}

func (p *Plotter) drawPath(c vg.Canvas, h float64, points []Point) int {
	if len(points) < 2 {
		return 0
	}
	c.SetColor(colornames.Steelblue)
	c.SetLineWidth(pathWidth)

	var path vg.Path
	for i, pt := range points {
		px, py := p.scaler.Project(pt)
		if i == 0 {
			path.Move(canvasPoint(px, py, h))
			continue
		}
		path.Line(canvasPoint(px, py, h))
	}
	c.Stroke(path)
	return len(points) - 1
}

func (p *Plotter) drawMarkers(c vg.Canvas, h float64, points []Point) {
	c.SetColor(colornames.Steelblue)
	for _, pt := range points {
		px, py := p.scaler.Project(pt)
		center := canvasPoint(px, py, h)

		var m vg.Path
		m.Move(vg.Point{X: center.X + markerRadius, Y: center.Y})
		m.Arc(center, markerRadius, 0, 2*math.Pi)
		m.Close()
		c.Fill(m)
	}
}
