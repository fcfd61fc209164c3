// Package charts renders dashboard charts as ordered lists of canvas-style
// draw commands. Renderers are pure: the same input always yields the same
// command list, which Replay then drives onto a concrete Surface.
package charts

import "math"

// Op names a surface call.
type Op string

const (
	OpClearRect      Op = "clearRect"
	OpFillRect       Op = "fillRect"
	OpBeginPath      Op = "beginPath"
	OpMoveTo         Op = "moveTo"
	OpLineTo         Op = "lineTo"
	OpArc            Op = "arc"
	OpStroke         Op = "stroke"
	OpFill           Op = "fill"
	OpFillText       Op = "fillText"
	OpSetFillStyle   Op = "setFillStyle"
	OpSetStrokeStyle Op = "setStrokeStyle"
	OpSetLineWidth   Op = "setLineWidth"
	OpSetFont        Op = "setFont"
)

// Command is one draw instruction. Args holds the numeric operands in the
// canvas argument order; Text carries fillText strings and style values.
type Command struct {
	Op   Op        `json:"op"`
	Args []float64 `json:"args,omitempty"`
	Text string    `json:"text,omitempty"`
}

// CommandList is a chart's drawing, in order.
type CommandList []Command

// Ops returns the op sequence without operands.
func (l CommandList) Ops() []Op {
	ops := make([]Op, len(l))
	for i, c := range l {
		ops[i] = c.Op
	}
	return ops
}

// DrawOps is Ops with style setters removed.
func (l CommandList) DrawOps() []Op {
	ops := make([]Op, 0, len(l))
	for _, c := range l {
		switch c.Op {
		case OpSetFillStyle, OpSetStrokeStyle, OpSetLineWidth, OpSetFont:
			continue
		}
		ops = append(ops, c.Op)
	}
	return ops
}

// Count returns how many commands use op.
func (l CommandList) Count(op Op) int {
	n := 0
	for _, c := range l {
		if c.Op == op {
			n++
		}
	}
	return n
}

// Texts returns the text of every FillText command.
func (l CommandList) Texts() []string {
	var out []string
	for _, c := range l {
		if c.Op == OpFillText {
			out = append(out, c.Text)
		}
	}
	return out
}

// Size is a chart size in pixels.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// DefaultSize is used when a caller passes a non-positive size.
var DefaultSize = Size{Width: 600, Height: 300}

// Normalized returns s, or DefaultSize when s is not drawable.
func (s Size) Normalized() Size { return s.normalized() }

func (s Size) normalized() Size {
	if !(s.Width > 0) || !(s.Height > 0) || math.IsInf(s.Width, 0) || math.IsInf(s.Height, 0) {
		return DefaultSize
	}
	return s
}

// pen accumulates commands for one render.
type pen struct {
	cmds CommandList
}

func (p *pen) emit(op Op, args ...float64) {
	for i, a := range args {
		if math.IsNaN(a) || math.IsInf(a, 0) {
			args[i] = 0
		}
	}
	p.cmds = append(p.cmds, Command{Op: op, Args: args})
}

func (p *pen) clearRect(x, y, w, h float64) { p.emit(OpClearRect, x, y, w, h) }
func (p *pen) fillRect(x, y, w, h float64) { p.emit(OpFillRect, x, y, w, h) }
func (p *pen) beginPath() { p.emit(OpBeginPath) }
func (p *pen) moveTo(x, y float64) { p.emit(OpMoveTo, x, y) }
func (p *pen) lineTo(x, y float64) { p.emit(OpLineTo, x, y) }
func (p *pen) arc(x, y, r, start, end float64) {
	p.emit(OpArc, x, y, r, start, end)
}
func (p *pen) stroke() { p.emit(OpStroke) }
func (p *pen) fill() { p.emit(OpFill) }
func (p *pen) lineWidth(w float64) { p.emit(OpSetLineWidth, w) }
func (p *pen) fillStyle(s string) { p.cmds = append(p.cmds, Command{Op: OpSetFillStyle, Text: s}) }
func (p *pen) strokeStyle(s string) { p.cmds = append(p.cmds, Command{Op: OpSetStrokeStyle, Text: s}) }
func (p *pen) font(f string) { p.cmds = append(p.cmds, Command{Op: OpSetFont, Text: f}) }
func (p *pen) fillText(text string, x, y float64) {
	p.emit(OpFillText, x, y)
	p.cmds[len(p.cmds)-1].Text = text
}
