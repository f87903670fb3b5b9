package turtle

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"golang.org/x/image/vector"
)

// RasterOptions controls Rasterize.
type RasterOptions struct {
	// World is the side of the square world window mapped onto the image,
	// with (0, 0) in the lower left corner.
	World float64
	// Size is the image side in pixels.
	Size int
	// Width is the stroke width in pixels.
	Width float64
}

// DefaultRasterOptions matches a 128 unit world rendered at 256 pixels.
func DefaultRasterOptions() RasterOptions {
	return RasterOptions{World: 128, Size: 256, Width: 1.5}
}

// Rasterize renders the recorded strokes as black on white.
func (t *Turtle) Rasterize(opts RasterOptions) *image.RGBA {
	if opts.Size <= 0 {
		opts.Size = 256
	}
	if opts.World <= 0 {
		opts.World = 128
	}
	if opts.Width <= 0 {
		opts.Width = 1
	}
	scale := float64(opts.Size) / opts.World
	size := float32(opts.Size)
	toPx := func(x, y float64) (float32, float32) {
		return float32(x * scale), size - float32(y*scale)
	}

	z := vector.NewRasterizer(opts.Size, opts.Size)
	half := opts.Width / 2
	for _, s := range t.segments {
		ax, ay := toPx(s.Start.X, s.Start.Y)
		bx, by := toPx(s.End.X, s.End.Y)
		strokeSegment(z, ax, ay, bx, by, float32(half))
	}
	for _, a := range t.arcs {
		const steps = 72
		for i := 0; i < steps; i++ {
			t0 := 2 * math.Pi * float64(i) / steps
			t1 := 2 * math.Pi * float64(i+1) / steps
			ax, ay := toPx(a.Center.X+a.Radius*math.Cos(t0), a.Center.Y+a.Radius*math.Sin(t0))
			bx, by := toPx(a.Center.X+a.Radius*math.Cos(t1), a.Center.Y+a.Radius*math.Sin(t1))
			strokeSegment(z, ax, ay, bx, by, float32(half))
		}
	}

	dst := image.NewRGBA(image.Rect(0, 0, opts.Size, opts.Size))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	z.Draw(dst, dst.Bounds(), image.NewUniform(color.Black), image.Point{})
	return dst
}

// strokeSegment adds a segment as a thin quad.
func strokeSegment(z *vector.Rasterizer, ax, ay, bx, by, half float32) {
	dx, dy := bx-ax, by-ay
	l := float32(math.Hypot(float64(dx), float64(dy)))
	if l == 0 {
		return
	}
	nx, ny := -dy/l*half, dx/l*half
	z.MoveTo(ax+nx, ay+ny)
	z.LineTo(bx+nx, by+ny)
	z.LineTo(bx-nx, by-ny)
	z.LineTo(ax-nx, ay-ny)
	z.ClosePath()
}
