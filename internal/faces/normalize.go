package faces

import "math"

// OrientedSize returns the display dimensions of a width x height raw image
// carrying the given EXIF orientation.
func OrientedSize(width, height, orientation int) (int, int) {
	if orientation >= 5 && orientation <= 8 {
		return height, width
	}
	return width, height
}

// Normalize converts result into EXIF-oriented space for an image whose raw
// pixel grid is rawWidth x rawHeight. Boxes are rotated or mirrored for
// orientations 2-8, rescaled when the detector worked on a resized copy and
// clamped to the image. Degenerate boxes are dropped. The returned Faces is
// never nil.
func Normalize(result Result, orientation, rawWidth, rawHeight int) Result {
	if orientation < 1 || orientation > 8 {
		orientation = 1
	}
	srcW, srcH := float64(result.ImageWidth), float64(result.ImageHeight)
	if srcW <= 0 || srcH <= 0 {
		srcW, srcH = float64(rawWidth), float64(rawHeight)
	}

	boxes := make([]Box, 0, len(result.Faces))
	frameW, frameH := srcW, srcH
	for _, box := range result.Faces {
		if !result.Oriented {
			box = orient(box, orientation, srcW, srcH)
		}
		boxes = append(boxes, box)
	}
	if !result.Oriented {
		w, h := OrientedSize(int(srcW), int(srcH), orientation)
		frameW, frameH = float64(w), float64(h)
	}

	targetW, targetH := OrientedSize(rawWidth, rawHeight, orientation)
	if targetW <= 0 || targetH <= 0 {
		targetW, targetH = int(frameW), int(frameH)
	}
	sx, sy := float64(targetW)/frameW, float64(targetH)/frameH

	out := Result{ImageWidth: targetW, ImageHeight: targetH, Faces: make([]Box, 0, len(boxes)), Oriented: true}
	for _, box := range boxes {
		scaled := clampBox(Box{
			X:          box.X * sx,
			Y:          box.Y * sy,
			Width:      box.Width * sx,
			Height:     box.Height * sy,
			Confidence: box.Confidence,
		}, float64(targetW), float64(targetH))
		if scaled.Width < 1 || scaled.Height < 1 {
			continue
		}
		out.Faces = append(out.Faces, scaled)
	}
	return out
}

// orient maps a box from a w x h raw frame into the displayed frame.
func orient(b Box, orientation int, w, h float64) Box {
	switch orientation {
	case 2: // mirror horizontal
		b.X = w - b.X - b.Width
	case 3: // rotate 180
		b.X = w - b.X - b.Width
		b.Y = h - b.Y - b.Height
	case 4: // mirror vertical
		b.Y = h - b.Y - b.Height
	case 5: // transpose
		b.X, b.Y = b.Y, b.X
		b.Width, b.Height = b.Height, b.Width
	case 6: // rotate 90 clockwise
		b.X, b.Y = h-b.Y-b.Height, b.X
		b.Width, b.Height = b.Height, b.Width
	case 7: // transverse
		b.X, b.Y = h-b.Y-b.Height, w-b.X-b.Width
		b.Width, b.Height = b.Height, b.Width
	case 8: // rotate 90 counter-clockwise
		b.X, b.Y = b.Y, w-b.X-b.Width
		b.Width, b.Height = b.Height, b.Width
	}
	return b
}

func clampBox(b Box, w, h float64) Box {
	x0 := math.Max(0, b.X)
	y0 := math.Max(0, b.Y)
	x1 := math.Min(w, b.X+b.Width)
	y1 := math.Min(h, b.Y+b.Height)
	b.X, b.Y = x0, y0
	b.Width = math.Max(0, x1-x0)
	b.Height = math.Max(0, y1-y0)
	return b
}
