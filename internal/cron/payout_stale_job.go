package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/packdrop-backend/pkg/logger"
)

type staleRejecter interface {
	RejectStale(ctx context.Context, olderThan time.Duration) (int, error)
}

type PayoutStaleJobParams struct {
	Logger     *logger.Logger
	Payouts    staleRejecter
	StaleAfter time.Duration
}

// NewPayoutStaleJob rejects pending payout requests nobody decided on within
// StaleAfter. A zero StaleAfter turns the job into a no-op.
func NewPayoutStaleJob(params PayoutStaleJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Payouts == nil {
		return nil, fmt.Errorf("payout service required")
	}
	return &payoutStaleJob{
		logg:       params.Logger,
		payouts:    params.Payouts,
		staleAfter: params.StaleAfter,
	}, nil
}

type payoutStaleJob struct {
	logg       *logger.Logger
	payouts    staleRejecter
	staleAfter time.Duration
}

func (j *payoutStaleJob) Name() string { return "payout-stale-sweep" }

func (j *payoutStaleJob) Run(ctx context.Context) error {
	if j.staleAfter <= 0 {
		j.logg.Info(ctx, "payouts.stale_sweep_disabled")
		return nil
	}
	rejected, err := j.payouts.RejectStale(ctx, j.staleAfter)
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"stale_after": j.staleAfter.String(),
		"rejected":    rejected,
	})
	if err != nil {
		return fmt.Errorf("reject stale payouts: %w", err)
	}
	j.logg.Info(logCtx, "payouts.stale_sweep_complete")
	return nil
}
