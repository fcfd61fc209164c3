// Package canvas provides concrete chart surfaces.
package canvas

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"math"
	"strconv"
	"strings"

	"rillscope/internal/core/charts"
)

// SVGSurface records canvas calls as SVG elements. A path is emitted once
// per Fill or Stroke, with the styles current at that moment.
type SVGSurface struct {
	width, height float64

	elements []string
	path     strings.Builder
	hasPoint bool

	fillStyle   string
	strokeStyle string
	lineWidth   float64
	font        string
}

// NewSVGSurface creates an empty surface of the given size.
func NewSVGSurface(size charts.Size) *SVGSurface {
	return &SVGSurface{
		width:       size.Width,
		height:      size.Height,
		fillStyle:   "#000000",
		strokeStyle: "#000000",
		lineWidth:   1,
		font:        "10px sans-serif",
	}
}

// RenderSVG replays list onto a fresh surface and returns the document.
func RenderSVG(size charts.Size, list charts.CommandList) []byte {
	s := NewSVGSurface(size)
	charts.Replay(list, s)
	return s.Bytes()
}

func num(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		v = 0
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func escape(s string) string {
	var b bytes.Buffer
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}

// ClearRect discards everything drawn so far when it covers the whole
// surface. Partial clears have no SVG equivalent and are ignored.
func (s *SVGSurface) ClearRect(x, y, w, h float64) {
	if x <= 0 && y <= 0 && x+w >= s.width && y+h >= s.height {
		s.elements = s.elements[:0]
	}
}

// FillRect emits a rect with the current fill style.
func (s *SVGSurface) FillRect(x, y, w, h float64) {
	if w < 0 {
		x, w = x+w, -w
	}
	if h < 0 {
		y, h = y+h, -h
	}
	s.elements = append(s.elements, fmt.Sprintf(`<rect x="%s" y="%s" width="%s" height="%s" fill="%s"/>`,
		num(x), num(y), num(w), num(h), escape(s.fillStyle)))
}

func (s *SVGSurface) BeginPath() {
	s.path.Reset()
	s.hasPoint = false
}

func (s *SVGSurface) MoveTo(x, y float64) {
	fmt.Fprintf(&s.path, "M%s %s ", num(x), num(y))
	s.hasPoint = true
}

func (s *SVGSurface) LineTo(x, y float64) {
	if !s.hasPoint {
		s.MoveTo(x, y)
		return
	}
	fmt.Fprintf(&s.path, "L%s %s ", num(x), num(y))
}

// Arc follows canvas semantics: clockwise in screen coordinates, joined to
// the current point by a straight line. Full circles are split in two
// because a single SVG arc cannot start and end on the same point.
func (s *SVGSurface) Arc(x, y, radius, startAngle, endAngle float64) {
	if radius <= 0 || math.IsNaN(radius) {
		return
	}
	sweep := endAngle - startAngle
	if sweep <= 0 {
		return
	}
	if sweep >= 2*math.Pi {
		mid := startAngle + math.Pi
		s.Arc(x, y, radius, startAngle, mid)
		s.Arc(x, y, radius, mid, startAngle+2*math.Pi)
		return
	}

	sx, sy := x+radius*math.Cos(startAngle), y+radius*math.Sin(startAngle)
	ex, ey := x+radius*math.Cos(endAngle), y+radius*math.Sin(endAngle)
	if s.hasPoint {
		fmt.Fprintf(&s.path, "L%s %s ", num(sx), num(sy))
	} else {
		fmt.Fprintf(&s.path, "M%s %s ", num(sx), num(sy))
		s.hasPoint = true
	}

	large := 0
	if sweep > math.Pi {
		large = 1
	}
	fmt.Fprintf(&s.path, "A%s %s 0 %d 1 %s %s ", num(radius), num(radius), large, num(ex), num(ey))
}

func (s *SVGSurface) pathData() string {
	return strings.TrimSpace(s.path.String())
}

// Stroke emits the current path as an outlined path element.
func (s *SVGSurface) Stroke() {
	if d := s.pathData(); d != "" {
		s.elements = append(s.elements, fmt.Sprintf(`<path d="%s" fill="none" stroke="%s" stroke-width="%s"/>`,
			d, escape(s.strokeStyle), num(s.lineWidth)))
	}
}

// Fill emits the current path as a filled path element.
func (s *SVGSurface) Fill() {
	if d := s.pathData(); d != "" {
		s.elements = append(s.elements, fmt.Sprintf(`<path d="%s Z" fill="%s"/>`, d, escape(s.fillStyle)))
	}
}

// FillText emits an escaped text element.
func (s *SVGSurface) FillText(text string, x, y float64) {
	s.elements = append(s.elements, fmt.Sprintf(`<text x="%s" y="%s" fill="%s" style="font: %s">%s</text>`,
		num(x), num(y), escape(s.fillStyle), escape(s.font), escape(text)))
}

func (s *SVGSurface) SetFillStyle(style string)   { s.fillStyle = style }
func (s *SVGSurface) SetStrokeStyle(style string) { s.strokeStyle = style }
func (s *SVGSurface) SetLineWidth(width float64) {
	if width > 0 {
		s.lineWidth = width
	}
}
func (s *SVGSurface) SetFont(font string) { s.font = font }

// Len is the number of drawn elements.
func (s *SVGSurface) Len() int { return len(s.elements) }

// Bytes returns the complete SVG document.
func (s *SVGSurface) Bytes() []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" width="%s" height="%s" viewBox="0 0 %s %s">`,
		num(s.width), num(s.height), num(s.width), num(s.height))
	b.WriteByte('\n')
	for _, el := range s.elements {
		b.WriteString(el)
		b.WriteByte('\n')
	}
	b.WriteString("</svg>\n")
	return b.Bytes()
}

var _ charts.Surface = (*SVGSurface)(nil)
