package assets

import (
	"context"
	"fmt"
	"image"
	"math"
	"os"
	"path"
	"slices"
	"strconv"

	"github.com/disintegration/imaging"

	"burstline/internal/catalog"
	"burstline/internal/logging"
	"burstline/internal/services"
)

// HasFaces reports whether detection found at least one face on photo.
func HasFaces(photo *catalog.Photo) bool {
	return photo != nil && photo.FaceData != nil && len(photo.FaceData.Faces) > 0
}

// FaceCropSizes returns the configured square crop sizes.
func (s *Store) FaceCropSizes() []int {
	return slices.Clone(s.cropSizes)
}

func faceCropKey(photoID int64, size int) string {
	return path.Join("faces", strconv.FormatInt(photoID, 10), strconv.Itoa(size)+".jpg")
}

// FaceCropURL returns the stable URL of the size x size portrait crop. The
// crop itself is rendered lazily by FaceCrop.
func (s *Store) FaceCropURL(photo *catalog.Photo, size int) (string, bool) {
	if !HasFaces(photo) || !slices.Contains(s.cropSizes, size) {
		return "", false
	}
	return s.ref(faceCropKey(photo.ID, size), jpegContentType).URL, true
}

// FaceCrop renders (or returns the existing) square portrait crop for photo.
func (s *Store) FaceCrop(ctx context.Context, photo *catalog.Photo, size int) (Ref, error) {
	if !slices.Contains(s.cropSizes, size) {
		return Ref{}, services.Wrap(services.ErrValidation, "assets", "face crop",
			fmt.Sprintf("unsupported crop size %d", size), nil)
	}
	if !HasFaces(photo) {
		return Ref{}, services.Wrap(services.ErrNotFound, "assets", "face crop", "photo has no detected faces", nil)
	}
	ref := s.ref(faceCropKey(photo.ID, size), jpegContentType)
	if info, err := os.Stat(ref.Path); err == nil {
		ref.Size = info.Size()
		return ref, nil
	}

	rect := photo.PortraitCrop
	if rect == nil {
		computed, ok := PortraitRect(photo.FaceData, s.padding)
		if !ok {
			return Ref{}, services.Wrap(services.ErrNotFound, "assets", "face crop", "no usable face box", nil)
		}
		rect = &computed
	}

	src, err := s.openOriginal(ctx, photo.ID, "face crop")
	if err != nil {
		return Ref{}, err
	}
	bounds := scaleRect(*rect, photo.FaceData.ImageWidth, photo.FaceData.ImageHeight, src.Bounds())
	if bounds.Empty() {
		return Ref{}, services.Wrap(services.ErrValidation, "assets", "face crop", "crop falls outside the image", nil)
	}
	crop := imaging.Fill(imaging.Crop(src, bounds), size, size, imaging.Center, imaging.Lanczos)
	if err := s.writeJPEG(&ref, crop, 0); err != nil {
		return Ref{}, services.Wrap(services.ErrTransient, "assets", "face crop", "write crop", err)
	}
	s.logger.Debug("face crop rendered",
		logging.Int64(logging.FieldPhotoID, photo.ID),
		logging.Int("size", size),
	)
	return ref, nil
}

// PortraitRect returns a square crop around the largest face, grown by
// padding times the face's longer side on every edge and clamped to the
// image.
func PortraitRect(data *catalog.FaceData, padding float64) (catalog.Rect, bool) {
	if data == nil || len(data.Faces) == 0 || data.ImageWidth <= 0 || data.ImageHeight <= 0 {
		return catalog.Rect{}, false
	}
	largest := data.Faces[0]
	for _, face := range data.Faces[1:] {
		if face.Width*face.Height > largest.Width*largest.Height {
			largest = face
		}
	}
	if largest.Width <= 0 || largest.Height <= 0 {
		return catalog.Rect{}, false
	}
	if padding < 0 {
		padding = 0
	}

	side := math.Max(largest.Width, largest.Height) * (1 + 2*padding)
	side = math.Min(side, float64(min(data.ImageWidth, data.ImageHeight)))
	cx := largest.X + largest.Width/2
	cy := largest.Y + largest.Height/2
	x := clamp(cx-side/2, 0, float64(data.ImageWidth)-side)
	y := clamp(cy-side/2, 0, float64(data.ImageHeight)-side)

	s := int(math.Round(side))
	return catalog.Rect{X: int(math.Round(x)), Y: int(math.Round(y)), Width: s, Height: s}, true
}

func clamp(v, lo, hi float64) float64 {
	if hi < lo {
		return lo
	}
	return math.Max(lo, math.Min(v, hi))
}

// scaleRect maps rect from a width x height reference frame into bounds.
func scaleRect(rect catalog.Rect, width, height int, bounds image.Rectangle) image.Rectangle {
	sx, sy := 1.0, 1.0
	if width > 0 && height > 0 {
		sx = float64(bounds.Dx()) / float64(width)
		sy = float64(bounds.Dy()) / float64(height)
	}
	r := image.Rect(
		bounds.Min.X+int(math.Round(float64(rect.X)*sx)),
		bounds.Min.Y+int(math.Round(float64(rect.Y)*sy)),
		bounds.Min.X+int(math.Round(float64(rect.X+rect.Width)*sx)),
		bounds.Min.Y+int(math.Round(float64(rect.Y+rect.Height)*sy)),
	)
	return r.Intersect(bounds)
}
