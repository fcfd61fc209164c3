package charts

// Surface is the subset of a 2D canvas context the renderers use.
type Surface interface {
	ClearRect(x, y, w, h float64)
	FillRect(x, y, w, h float64)
	BeginPath()
	MoveTo(x, y float64)
	LineTo(x, y float64)
	Arc(x, y, radius, startAngle, endAngle float64)
	Stroke()
	Fill()
	FillText(text string, x, y float64)
	SetFillStyle(style string)
	SetStrokeStyle(style string)
	SetLineWidth(width float64)
	SetFont(font string)
}

// Replay drives list onto s in order. Commands with missing operands are
// skipped.
func Replay(list CommandList, s Surface) {
	for _, c := range list {
		a := c.Args
		switch c.Op {
		case OpClearRect:
			if len(a) == 4 {
				s.ClearRect(a[0], a[1], a[2], a[3])
			}
		case OpFillRect:
			if len(a) == 4 {
				s.FillRect(a[0], a[1], a[2], a[3])
			}
		case OpBeginPath:
			s.BeginPath()
		case OpMoveTo:
			if len(a) == 2 {
				s.MoveTo(a[0], a[1])
			}
		case OpLineTo:
			if len(a) == 2 {
				s.LineTo(a[0], a[1])
			}
		case OpArc:
			if len(a) == 5 {
				s.Arc(a[0], a[1], a[2], a[3], a[4])
			}
		case OpStroke:
			s.Stroke()
		case OpFill:
			s.Fill()
		case OpFillText:
			if len(a) == 2 {
				s.FillText(c.Text, a[0], a[1])
			}
		case OpSetFillStyle:
			s.SetFillStyle(c.Text)
		case OpSetStrokeStyle:
			s.SetStrokeStyle(c.Text)
		case OpSetLineWidth:
			if len(a) == 1 {
				s.SetLineWidth(a[0])
			}
		case OpSetFont:
			s.SetFont(c.Text)
		}
	}
}

// Recorder is a Surface that records every call as a Command.
type Recorder struct {
	Commands CommandList
}

func (r *Recorder) add(op Op, text string, args ...float64) {
	r.Commands = append(r.Commands, Command{Op: op, Args: args, Text: text})
}

// Reset drops the recorded commands.
func (r *Recorder) Reset() { r.Commands = nil }

func (r *Recorder) ClearRect(x, y, w, h float64) { r.add(OpClearRect, "", x, y, w, h) }
func (r *Recorder) FillRect(x, y, w, h float64) { r.add(OpFillRect, "", x, y, w, h) }
func (r *Recorder) BeginPath() { r.add(OpBeginPath, "") }
func (r *Recorder) MoveTo(x, y float64) { r.add(OpMoveTo, "", x, y) }
func (r *Recorder) LineTo(x, y float64) { r.add(OpLineTo, "", x, y) }
func (r *Recorder) Arc(x, y, rad, start, end float64) { r.add(OpArc, "", x, y, rad, start, end) }
func (r *Recorder) Stroke() { r.add(OpStroke, "") }
func (r *Recorder) Fill() { r.add(OpFill, "") }
func (r *Recorder) FillText(text string, x, y float64) { r.add(OpFillText, text, x, y) }
func (r *Recorder) SetFillStyle(style string) { r.add(OpSetFillStyle, style) }
func (r *Recorder) SetStrokeStyle(style string) { r.add(OpSetStrokeStyle, style) }
func (r *Recorder) SetLineWidth(width float64) { r.add(OpSetLineWidth, "", width) }
func (r *Recorder) SetFont(font string) { r.add(OpSetFont, font) }
