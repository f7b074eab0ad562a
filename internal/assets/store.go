package assets

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"log/slog"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"

	"burstline/internal/config"
	"burstline/internal/fileutil"
	"burstline/internal/logging"
	"burstline/internal/services"
)

// Ref locates a stored asset.
type Ref struct {
	Key         string
	Path        string
	URL         string
	ContentType string
	Size        int64
	Checksum    string
}

// Store is a filesystem-backed asset store.
type Store struct {
	root      string
	baseURL   string
	variants  map[string]config.Variant
	cropSizes []int
	padding   float64
	logger    *slog.Logger
}

// NewStore builds a store rooted at cfg.Paths.AssetDir.
func NewStore(cfg *config.Config, logger *slog.Logger) *Store {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Store{
		root:      cfg.Paths.AssetDir,
		baseURL:   strings.TrimRight(cfg.Paths.AssetBaseURL, "/"),
		variants:  cfg.Assets.Variants,
		cropSizes: cfg.Assets.FaceCropSizes,
		padding:   cfg.Assets.PortraitPadding,
		logger:    logging.NewComponentLogger(logger, "assets"),
	}
}

func (s *Store) ref(key, contentType string) Ref {
	return Ref{
		Key:         key,
		Path:        filepath.Join(s.root, filepath.FromSlash(key)),
		URL:         s.baseURL + "/" + key,
		ContentType: contentType,
	}
}

func originalDir(photoID int64) string {
	return path.Join("originals", strconv.FormatInt(photoID, 10))
}

// Attach decodes src to make sure it is an image and stores it as the
// photo's original. Re-attaching replaces the previous original.
func (s *Store) Attach(ctx context.Context, photoID int64, src io.Reader, filename, contentType string) (Ref, error) {
	if photoID <= 0 {
		return Ref{}, services.Wrap(services.ErrValidation, "assets", "attach", "photo id is required", nil)
	}
	data, err := io.ReadAll(src)
	if err != nil {
		return Ref{}, services.Wrap(services.ErrTransient, "assets", "attach", "read source", err)
	}
	if err := ctx.Err(); err != nil {
		return Ref{}, err
	}
	if _, err := imaging.Decode(bytes.NewReader(data)); err != nil {
		return Ref{}, services.Wrap(services.ErrExternalTool, "assets", "attach",
			fmt.Sprintf("decode %s", filepath.Base(filename)), err)
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		ext = ".jpg"
	}
	if contentType == "" {
		contentType = mime.TypeByExtension(ext)
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	if err := s.removeOriginals(photoID, ext); err != nil {
		return Ref{}, err
	}
	ref := s.ref(path.Join(originalDir(photoID), "original"+ext), contentType)
	size, sum, err := fileutil.WriteAtomic(ref.Path, bytes.NewReader(data), 0o644)
	if err != nil {
		return Ref{}, services.Wrap(services.ErrTransient, "assets", "attach", "store original", err)
	}
	ref.Size = size
	ref.Checksum = sum
	s.logger.Debug("original stored",
		logging.Int64(logging.FieldPhotoID, photoID),
		logging.String("asset_key", ref.Key),
		logging.Int64("bytes", size),
	)
	return ref, nil
}

// removeOriginals drops originals stored under a different extension so a
// photo never has two.
func (s *Store) removeOriginals(photoID int64, keepExt string) error {
	matches, err := filepath.Glob(filepath.Join(s.root, filepath.FromSlash(originalDir(photoID)), "original.*"))
	if err != nil {
		return err
	}
	for _, match := range matches {
		if strings.HasSuffix(match, ".tmp") || filepath.Ext(match) == keepExt {
			continue
		}
		if err := os.Remove(match); err != nil && !os.IsNotExist(err) {
			return services.Wrap(services.ErrTransient, "assets", "attach", "remove stale original", err)
		}
	}
	return nil
}

// Original returns the stored original for photoID.
func (s *Store) Original(photoID int64) (Ref, error) {
	matches, err := filepath.Glob(filepath.Join(s.root, filepath.FromSlash(originalDir(photoID)), "original.*"))
	if err != nil {
		return Ref{}, err
	}
	for _, match := range matches {
		if strings.HasSuffix(match, ".tmp") {
			continue
		}
		info, err := os.Stat(match)
		if err != nil {
			continue
		}
		name := filepath.Base(match)
		ref := s.ref(path.Join(originalDir(photoID), name), mime.TypeByExtension(filepath.Ext(name)))
		ref.Size = info.Size()
		return ref, nil
	}
	return Ref{}, services.Wrap(services.ErrNotFound, "assets", "original",
		fmt.Sprintf("photo %d has no stored original", photoID), nil)
}

// Dimensions returns the raw (un-oriented) pixel size of the image at path
// without decoding the pixel data.
func Dimensions(path string) (int, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, fmt.Errorf("read image header: %w", err)
	}
	return cfg.Width, cfg.Height, nil
}

// Exists reports whether the asset behind ref is on disk.
func (s *Store) Exists(ref Ref) bool {
	return fileutil.Exists(ref.Path)
}
