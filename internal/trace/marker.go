package trace

import (
	"image"
	"image/color"
	"image/draw"
	"math"
)

var (
	markerColor  = color.RGBA{255, 255, 255, 255}
	outlineColor = color.RGBA{0, 0, 0, 255}
	rippleColor  = color.RGBA{66, 133, 244, 255}
)

const rippleRadius = 15

// annotate copies the frame and draws a pointer with a ripple at its mark.
func annotate(f Frame) image.Image {
	bounds := f.Image.Bounds()
	result := image.NewRGBA(bounds)
	draw.Draw(result, bounds, f.Image, bounds.Min, draw.Src)

	if f.Mark == nil {
		return result
	}
	x, y := f.Mark.X+bounds.Min.X, f.Mark.Y+bounds.Min.Y
	drawRipple(result, x, y)
	drawPointer(result, x, y)
	return result
}

// drawPointer draws a simple arrow cursor with its tip at (x, y).
func drawPointer(img *image.RGBA, x, y int) {
	outline := []struct{ dx, dy int }{
		{0, 0},
		{0, 16},
		{4, 12},
		{7, 18},
		{10, 17},
		{7, 11},
		{12, 11},
	}

	for dy := 0; dy < 18; dy++ {
		for dx := 0; dx < 13; dx++ {
			if insidePointer(dx, dy) {
				setPixelSafe(img, x+dx, y+dy, markerColor)
			}
		}
	}

	for i := range outline {
		p1 := outline[i]
		p2 := outline[(i+1)%len(outline)]
		drawLine(img, x+p1.dx, y+p1.dy, x+p2.dx, y+p2.dy, outlineColor)
	}
}

func insidePointer(dx, dy int) bool {
	if dy < 0 || dy > 16 || dx < 0 {
		return false
	}
	if dy <= 11 {
		return dx <= dy*12/16
	}
	return dx <= 4
}

// drawLine is Bresenham's algorithm.
func drawLine(img *image.RGBA, x1, y1, x2, y2 int, c color.RGBA) {
	dx := abs(x2 - x1)
	dy := abs(y2 - y1)
	sx := 1
	if x1 > x2 {
		sx = -1
	}
	sy := 1
	if y1 > y2 {
		sy = -1
	}
	err := dx - dy

	for {
		setPixelSafe(img, x1, y1, c)
		if x1 == x2 && y1 == y2 {
			break
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x1 += sx
		}
		if e2 < dx {
			err += dx
			y1 += sy
		}
	}
}

func drawRipple(img *image.RGBA, x, y int) {
	for angle := 0.0; angle < 360; angle++ {
		rad := angle * math.Pi / 180
		px := x + int(float64(rippleRadius)*math.Cos(rad))
		py := y + int(float64(rippleRadius)*math.Sin(rad))
		setPixelSafe(img, px, py, rippleColor)
		setPixelSafe(img, px+1, py, rippleColor)
		setPixelSafe(img, px, py+1, rippleColor)
	}
}

func setPixelSafe(img *image.RGBA, x, y int, c color.RGBA) {
	if (image.Point{X: x, Y: y}).In(img.Bounds()) {
		img.SetRGBA(x, y, c)
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
