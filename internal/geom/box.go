// Package geom provides axis-aligned box math used by the tracker and
// the blur pipeline. All operations are total: degenerate boxes are
// representable and callers are expected to check Valid() where it matters.
package geom

import "image"

// Box is an axis-aligned rectangle in frame-pixel coordinates.
// A valid box has X2 > X1 and Y2 > Y1.
type Box struct {
	X1, Y1, X2, Y2 float64
}

func (b Box) Width() float64  { return b.X2 - b.X1 }
func (b Box) Height() float64 { return b.Y2 - b.Y1 }

// Area returns 0 for degenerate boxes.
func (b Box) Area() float64 {
	if !b.Valid() {
		return 0
	}
	return b.Width() * b.Height()
}

// Valid reports whether the box has positive width and height.
func (b Box) Valid() bool {
	return b.X2 > b.X1 && b.Y2 > b.Y1
}

func (b Box) CenterX() float64 { return (b.X1 + b.X2) / 2 }
func (b Box) CenterY() float64 { return (b.Y1 + b.Y2) / 2 }

// Translate shifts the box by (dx, dy).
func (b Box) Translate(dx, dy float64) Box {
	return Box{b.X1 + dx, b.Y1 + dy, b.X2 + dx, b.Y2 + dy}
}

// Inflate expands each side outward by ratio times the extent on that
// axis: 10% inflation adds 0.10*width to the left and to the right, and
// 0.10*height to the top and to the bottom.
func (b Box) Inflate(ratio float64) Box {
	dx := b.Width() * ratio
	dy := b.Height() * ratio
	return Box{b.X1 - dx, b.Y1 - dy, b.X2 + dx, b.Y2 + dy}
}

// Clamp intersects the box with the frame rectangle [0,0,width,height].
// The result may be degenerate; callers must check Valid() and skip.
func (b Box) Clamp(width, height float64) Box {
	return Box{
		X1: max(b.X1, 0),
		Y1: max(b.Y1, 0),
		X2: min(b.X2, width),
		Y2: min(b.Y2, height),
	}
}

// Rect converts to an image.Rectangle, truncating coordinates.
func (b Box) Rect() image.Rectangle {
	return image.Rect(int(b.X1), int(b.Y1), int(b.X2), int(b.Y2))
}

// FromRect converts an image.Rectangle into a Box.
func FromRect(r image.Rectangle) Box {
	return Box{float64(r.Min.X), float64(r.Min.Y), float64(r.Max.X), float64(r.Max.Y)}
}

// IoU returns intersection-over-union of two boxes in [0,1].
// Symmetric; 1.0 for identical valid boxes, 0 for disjoint or degenerate
// input.
func IoU(a, b Box) float64 {
	interX1 := max(a.X1, b.X1)
	interY1 := max(a.Y1, b.Y1)
	interX2 := min(a.X2, b.X2)
	interY2 := min(a.Y2, b.Y2)

	if interX2 <= interX1 || interY2 <= interY1 {
		return 0
	}
	inter := (interX2 - interX1) * (interY2 - interY1)

	union := a.Area() + b.Area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}
