package pipeline

import (
	"context"

	"burstline/internal/logging"
	"burstline/internal/queue"
	"burstline/internal/stage"
)

type variantsHandler struct {
	p *Pipeline
}

func (h *variantsHandler) Kind() queue.Kind     { return queue.KindVariants }
func (h *variantsHandler) Policy() stage.Policy { return stage.Required }

// Execute renders each requested variant. A single variant failing is logged
// and skipped since variants are also rendered lazily on first request; only
// a missing original fails the job.
func (h *variantsHandler) Execute(ctx context.Context, job *queue.Job) error {
	task, err := stage.DecodeTask[queue.VariantsTask](job)
	if err != nil {
		return err
	}
	logger := h.p.stageLogger(ctx)

	if _, err := h.p.assets.Original(task.PhotoID); err != nil {
		return err
	}
	names := task.Variants
	if len(names) == 0 {
		names = h.p.cfg.VariantNames()
	}

	generated := 0
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return err
		}
		ref, err := h.p.assets.Variant(ctx, task.PhotoID, name)
		if err != nil {
			logging.WarnWithContext(logger, "variant generation failed", "variant_failed",
				logging.String("variant", name),
				logging.Error(err),
				logging.String(logging.FieldImpact, "variant is rendered on first request instead"),
			)
			continue
		}
		generated++
		logger.Debug("variant ready",
			logging.String("variant", name),
			logging.String("asset_key", ref.Key),
		)
	}
	logger.Info("variants generated",
		logging.String(logging.FieldEventType, "variants_complete"),
		logging.Int("generated", generated),
		logging.Int("requested", len(names)),
	)
	return nil
}

func (h *variantsHandler) HealthCheck(context.Context) stage.Health {
	const name = "variants"
	if h.p.assets == nil {
		return stage.Unhealthy(name, "asset store unavailable")
	}
	if len(h.p.cfg.VariantNames()) == 0 {
		return stage.Unhealthy(name, "no default variants configured")
	}
	return stage.Healthy(name)
}
