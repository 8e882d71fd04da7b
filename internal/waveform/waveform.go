package waveform

import "math"

// Surface is the drawing target shared by both render modes. Coordinates
// are x in sample units and y in [0,1] amplitude units; the surface owns
// the mapping to pixels.
type Surface interface {
	// Clear erases the surface before a redraw.
	Clear()
	// SetWidth grows (or shrinks) the drawable width.
	SetWidth(w int)
	// Width returns the current drawable width.
	Width() int
	// Polyline draws a connected line through amplitudes, one unit of width
	// per point, starting at the left edge.
	Polyline(amplitudes []float64)
	// Segment draws a vertical segment at x spanning [lo, hi].
	Segment(x int, lo, hi float64)
	// ScrollRight brings the right edge into view.
	ScrollRight()
}

// Amplitude reduces one time-domain frame to a single scalar: the mean
// absolute deviation from the signal's zero-center, normalized to [0,1].
func Amplitude(frame []float32) float64 {
	if len(frame) == 0 {
		return 0
	}

	var mean float64
	for _, s := range frame {
		mean += float64(s)
	}
	mean /= float64(len(frame))

	var dev float64
	for _, s := range frame {
		dev += math.Abs(float64(s) - mean)
	}
	dev /= float64(len(frame))

	if dev > 1 {
		dev = 1
	}
	return dev
}

// Progressive draws a live trace that grows one unit of width per appended
// sample. Each redraw clears the surface and repaints the whole accumulated
// sequence; a single capture session is short enough that the O(n) redraw
// stays inside the frame budget.
type Progressive struct {
	surface  Surface
	minWidth int
	samples  []float64
}

// NewProgressive creates a live renderer with the given minimum width.
func NewProgressive(surface Surface, minWidth int) *Progressive {
	return &Progressive{surface: surface, minWidth: minWidth}
}

// Append reduces one frame and redraws the full trace.
func (p *Progressive) Append(frame []float32) {
	p.samples = append(p.samples, Amplitude(frame))
	p.Redraw()
}

// Redraw repaints the accumulated trace from scratch.
func (p *Progressive) Redraw() {
	width := len(p.samples)
	if width < p.minWidth {
		width = p.minWidth
	}
	p.surface.SetWidth(width)
	p.surface.Clear()
	p.surface.Polyline(p.samples)
	p.surface.ScrollRight()
}

// Samples returns the accumulated amplitude sequence.
func (p *Progressive) Samples() []float64 {
	out := make([]float64, len(p.samples))
	copy(out, p.samples)
	return out
}

// Reset discards the accumulated trace and clears the surface.
func (p *Progressive) Reset() {
	p.samples = nil
	p.surface.SetWidth(p.minWidth)
	p.surface.Clear()
}

// BufferSurface is a headless Surface for environments without a drawing
// target. It tracks geometry only; the accumulated trace stays readable
// through Progressive.Samples.
type BufferSurface struct {
	width int
}

func (b *BufferSurface) Clear()             {}
func (b *BufferSurface) SetWidth(w int)     { b.width = w }
func (b *BufferSurface) Width() int         { return b.width }
func (b *BufferSurface) Polyline([]float64) {}
func (b *BufferSurface) Segment(int, float64, float64) {}
func (b *BufferSurface) ScrollRight()       {}

// RenderEnvelope draws a full buffer's envelope into width columns using
// min/max decimation: one vertical segment per equal window, from the
// window's local minimum to its local maximum. Runs in O(len(buf))
// independent of playback state.
func RenderEnvelope(surface Surface, buf []float64, width int) {
	surface.SetWidth(width)
	surface.Clear()

	if len(buf) == 0 || width <= 0 {
		return
	}

	for x := 0; x < width; x++ {
		start := x * len(buf) / width
		end := (x + 1) * len(buf) / width
		if end <= start {
			end = start + 1
		}
		if end > len(buf) {
			end = len(buf)
		}

		lo, hi := buf[start], buf[start]
		for _, v := range buf[start:end] {
			if v < lo {
				lo = v
			}
			if v > hi {
				hi = v
			}
		}
		surface.Segment(x, lo, hi)
	}
}
