package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"burstline/internal/analysis"
	"burstline/internal/assets"
	"burstline/internal/catalog"
	"burstline/internal/config"
	"burstline/internal/exif"
	"burstline/internal/faces"
	"burstline/internal/fileutil"
	"burstline/internal/logging"
	"burstline/internal/queue"
	"burstline/internal/services"
	"burstline/internal/services/tool"
	"burstline/internal/stage"
)

// Enqueuer schedules follow-up jobs.
type Enqueuer interface {
	Enqueue(ctx context.Context, task queue.Task, opts ...queue.EnqueueOption) (*queue.Job, error)
}

// Pipeline holds the collaborators shared by every stage handler.
type Pipeline struct {
	cfg       *config.Config
	catalog   *catalog.Catalog
	assets    *assets.Store
	queue     Enqueuer
	extractor exif.Extractor
	detector  faces.Detector
	analyzer  analysis.Analyzer
	logger    *slog.Logger
	now       func() time.Time
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithExtractor sets the EXIF extractor.
func WithExtractor(extractor exif.Extractor) Option {
	return func(p *Pipeline) { p.extractor = extractor }
}

// WithDetector sets the face detector. Without one, attach does not schedule
// face detection.
func WithDetector(detector faces.Detector) Option {
	return func(p *Pipeline) { p.detector = detector }
}

// WithAnalyzer sets the session analyzer.
func WithAnalyzer(analyzer analysis.Analyzer) Option {
	return func(p *Pipeline) { p.analyzer = analyzer }
}

// WithLogger sets the base logger. Handlers derive per-job loggers from the
// context at execution time.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithClock overrides the time source used for detection timestamps.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		if now != nil {
			p.now = now
		}
	}
}

// New constructs a pipeline. External tools are supplied through options.
func New(cfg *config.Config, cat *catalog.Catalog, store *assets.Store, q Enqueuer, opts ...Option) *Pipeline {
	p := &Pipeline{
		cfg:     cfg,
		catalog: cat,
		assets:  store,
		queue:   q,
		logger:  logging.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = logging.NewComponentLogger(p.logger, "pipeline")
	return p
}

// FromConfig builds a pipeline whose tools come from cfg.Tools. The face
// detector and analyzer are optional and stay unset when not configured.
func FromConfig(cfg *config.Config, cat *catalog.Catalog, store *assets.Store, q Enqueuer, logger *slog.Logger) (*Pipeline, error) {
	timeout := cfg.Tools.TimeoutSeconds
	opts := []Option{WithLogger(logger)}

	runner, err := tool.New("exif", cfg.Tools.Exiftool, timeout)
	if err != nil {
		return nil, services.WithHint(err, "set tools.exiftool in the config file")
	}
	opts = append(opts, WithExtractor(exif.NewTool(runner)))

	if strings.TrimSpace(cfg.Tools.FaceDetector) != "" {
		runner, err := tool.New("faces", cfg.Tools.FaceDetector, timeout)
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithDetector(faces.NewTool(runner)))
	}
	if strings.TrimSpace(cfg.Tools.Analyzer) != "" {
		runner, err := tool.New("analysis", cfg.Tools.Analyzer, timeout)
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithAnalyzer(analysis.NewTool(runner)))
	}
	return New(cfg, cat, store, q, opts...), nil
}

// Handlers returns one handler per job kind.
func (p *Pipeline) Handlers() map[queue.Kind]stage.Handler {
	return map[queue.Kind]stage.Handler{
		queue.KindAttach:          &attachHandler{p: p},
		queue.KindVariants:        &variantsHandler{p: p},
		queue.KindExif:            &exifHandler{p: p},
		queue.KindFaces:           &facesHandler{p: p},
		queue.KindPortrait:        &portraitHandler{p: p},
		queue.KindSessionAnalysis: &analysisHandler{p: p},
	}
}

func (p *Pipeline) stageLogger(ctx context.Context) *slog.Logger {
	return logging.WithContext(ctx, p.logger)
}

// sourcePath returns the image file stages read: the stored original when
// present, otherwise the raw file.
func (p *Pipeline) sourcePath(photo *catalog.Photo) (string, error) {
	if ref, err := p.assets.Original(photo.ID); err == nil {
		return ref.Path, nil
	}
	if raw := strings.TrimSpace(photo.RawPath); raw != "" && fileutil.Exists(raw) {
		return raw, nil
	}
	return "", services.Wrap(services.ErrNotFound, "pipeline", "resolve source",
		fmt.Sprintf("photo %d has no readable image", photo.ID), nil)
}

func binaryHealth(name, binary string) stage.Health {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return stage.Unhealthy(name, "binary not configured")
	}
	if _, err := exec.LookPath(binary); err != nil {
		return stage.Unhealthy(name, fmt.Sprintf("binary %q not found", binary))
	}
	return stage.Healthy(name)
}
