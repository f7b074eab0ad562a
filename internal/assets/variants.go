package assets

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"os"
	"path"
	"sort"
	"strconv"

	"github.com/disintegration/imaging"

	"burstline/internal/config"
	"burstline/internal/fileutil"
	"burstline/internal/logging"
	"burstline/internal/services"
)

const jpegContentType = "image/jpeg"

// VariantNames lists the configured variant names in sorted order.
func (s *Store) VariantNames() []string {
	names := make([]string, 0, len(s.variants))
	for name := range s.variants {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Variant returns the named derived image for photoID, rendering it from the
// original when it does not exist yet.
func (s *Store) Variant(ctx context.Context, photoID int64, name string) (Ref, error) {
	spec, ok := s.variants[name]
	if !ok {
		return Ref{}, services.Wrap(services.ErrValidation, "assets", "variant",
			fmt.Sprintf("unknown variant %q", name), nil)
	}
	ref := s.ref(path.Join("variants", strconv.FormatInt(photoID, 10), name+".jpg"), jpegContentType)
	if info, err := os.Stat(ref.Path); err == nil {
		ref.Size = info.Size()
		return ref, nil
	}

	src, err := s.openOriginal(ctx, photoID, "variant")
	if err != nil {
		return Ref{}, err
	}
	if err := s.writeJPEG(&ref, resize(src, spec), spec.Quality); err != nil {
		return Ref{}, services.Wrap(services.ErrTransient, "assets", "variant",
			fmt.Sprintf("write %s", name), err)
	}
	s.logger.Debug("variant rendered",
		logging.Int64(logging.FieldPhotoID, photoID),
		logging.String("variant", name),
		logging.Int64("bytes", ref.Size),
	)
	return ref, nil
}

func resize(src image.Image, spec config.Variant) image.Image {
	if spec.Mode == "fill" {
		return imaging.Fill(src, spec.Width, spec.Height, imaging.Center, imaging.Lanczos)
	}
	return imaging.Fit(src, spec.Width, spec.Height, imaging.Lanczos)
}

func (s *Store) openOriginal(ctx context.Context, photoID int64, operation string) (image.Image, error) {
	original, err := s.Original(photoID)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	img, err := imaging.Open(original.Path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "assets", operation, "decode original", err)
	}
	return img, nil
}

func (s *Store) writeJPEG(ref *Ref, img image.Image, quality int) error {
	if quality <= 0 {
		quality = 85
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return fmt.Errorf("encode jpeg: %w", err)
	}
	size, sum, err := fileutil.WriteAtomic(ref.Path, &buf, 0o644)
	if err != nil {
		return err
	}
	ref.Size = size
	ref.Checksum = sum
	return nil
}
