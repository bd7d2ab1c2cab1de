package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/packdrop-backend/internal/ledger"
	"github.com/angelmondragon/packdrop-backend/pkg/enums"
	"github.com/angelmondragon/packdrop-backend/pkg/logger"
	"github.com/angelmondragon/packdrop-backend/pkg/metrics"
	"github.com/angelmondragon/packdrop-backend/pkg/outbox"
	"github.com/angelmondragon/packdrop-backend/pkg/outbox/payloads"
)

const defaultReconcileBatch = 200

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type driftLister interface {
	Drifts(ctx context.Context, subject enums.PayoutUserType, batchSize int) ([]ledger.Drift, error)
}

type LedgerReconcileJobParams struct {
	Logger    *logger.Logger
	Ledger    driftLister
	Outbox    outbox.Emitter
	DB        txRunner
	Metrics   *metrics.DomainMetrics
	BatchSize int
}

// NewLedgerReconcileJob reports accounts whose running totals disagree with
// the transaction ledger. It never rewrites totals.
func NewLedgerReconcileJob(params LedgerReconcileJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if params.Outbox == nil || params.DB == nil {
		return nil, fmt.Errorf("outbox emitter and db runner required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultReconcileBatch
	}
	return &ledgerReconcileJob{
		logg:    params.Logger,
		ledger:  params.Ledger,
		outbox:  params.Outbox,
		db:      params.DB,
		metrics: params.Metrics,
		batch:   batch,
		now:     time.Now,
	}, nil
}

type ledgerReconcileJob struct {
	logg    *logger.Logger
	ledger  driftLister
	outbox  outbox.Emitter
	db      txRunner
	metrics *metrics.DomainMetrics
	batch   int
	now     func() time.Time
}

func (j *ledgerReconcileJob) Name() string { return "ledger-reconcile" }

func (j *ledgerReconcileJob) Run(ctx context.Context) error {
	var errs error
	for _, subject := range []enums.PayoutUserType{enums.PayoutUserDriver, enums.PayoutUserVendor} {
		errs = multierr.Append(errs, j.reconcile(ctx, subject))
	}
	return errs
}

func (j *ledgerReconcileJob) reconcile(ctx context.Context, subject enums.PayoutUserType) error {
	subjectCtx := j.logg.WithField(ctx, "subject", string(subject))
	drifts, err := j.ledger.Drifts(ctx, subject, j.batch)
	if err != nil {
		return fmt.Errorf("list %s drift: %w", subject, err)
	}

	total := decimal.Zero
	var errs error
	for _, drift := range drifts {
		total = total.Add(drift.Magnitude())
		driftCtx := j.logg.WithFields(subjectCtx, map[string]any{
			"account_id":      drift.AccountID.String(),
			"total_earnings":  drift.TotalEarnings.StringFixed(2),
			"ledger_earned":   drift.LedgerEarned.StringFixed(2),
			"total_paid_out":  drift.TotalPaidOut.StringFixed(2),
			"ledger_paid_out": drift.LedgerPaidOut.StringFixed(2),
		})
		j.logg.Warn(driftCtx, "ledger.drift_detected")
		if err := j.emit(ctx, drift); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s %s: %w", subject, drift.AccountID, err))
		}
	}
	j.metrics.SetLedgerDrift(string(subject), total)

	subjectCtx = j.logg.WithFields(subjectCtx, map[string]any{
		"accounts_drifted": len(drifts),
		"drift_total":      total.StringFixed(2),
	})
	j.logg.Info(subjectCtx, "ledger.reconcile_complete")
	return errs
}

func (j *ledgerReconcileJob) emit(ctx context.Context, drift ledger.Drift) error {
	event := outbox.DomainEvent{
		EventType:     enums.EventLedgerDriftDetected,
		AggregateType: enums.AggregateAccount,
		AggregateID:   drift.AccountID,
		Data: payloads.LedgerDriftDetectedEvent{
			Subject:       drift.Subject,
			AccountID:     drift.AccountID,
			TotalEarnings: drift.TotalEarnings,
			TotalPaidOut:  drift.TotalPaidOut,
			LedgerEarned:  drift.LedgerEarned,
			LedgerPaidOut: drift.LedgerPaidOut,
			DetectedAt:    j.now().UTC(),
		},
	}
	return j.db.WithTx(ctx, func(tx *gorm.DB) error {
		return j.outbox.Emit(ctx, tx, event)
	})
}
