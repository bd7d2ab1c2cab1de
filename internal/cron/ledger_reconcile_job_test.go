package cron

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/packdrop-backend/internal/ledger"
	"github.com/angelmondragon/packdrop-backend/internal/repo/repotest"
	pkgdb "github.com/angelmondragon/packdrop-backend/pkg/db"
	"github.com/angelmondragon/packdrop-backend/pkg/db/models"
	"github.com/angelmondragon/packdrop-backend/pkg/enums"
	"github.com/angelmondragon/packdrop-backend/pkg/metrics"
	"github.com/angelmondragon/packdrop-backend/pkg/outbox"
)

func TestLedgerReconcileReportsDriftWithoutCorrecting(t *testing.T) {
	db := repotest.NewDB(t)
	ctx := context.Background()
	logg := repotest.Logger()
	accounts := ledger.NewRepository(db)
	ledgerSvc, err := ledger.NewService(accounts)
	require.NoError(t, err)

	repotest.SeedDriver(t, db)
	driver := repotest.SeedDriver(t, db)
	vendor := repotest.SeedVendor(t, db)
	require.NoError(t, accounts.CreditEarnings(ctx, enums.PayoutUserDriver, driver.ID, repotest.Money(t, "40.00")))
	require.NoError(t, accounts.CreditEarnings(ctx, enums.PayoutUserVendor, vendor.ID, repotest.Money(t, "12.50")))

	reg := prometheus.NewRegistry()
	jobIface, err := NewLedgerReconcileJob(LedgerReconcileJobParams{
		Logger:  logg,
		Ledger:  ledgerSvc,
		Outbox:  outbox.NewService(outbox.NewRepository(db), logg),
		DB:      pkgdb.Wrap(db),
		Metrics: metrics.NewDomainMetrics(reg),
	})
	require.NoError(t, err)
	job := jobIface.(*ledgerReconcileJob)
	job.now = func() time.Time { return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC) }

	require.NoError(t, job.Run(ctx))

	assert.EqualValues(t, 2, repotest.CountOutbox(t, db, enums.EventLedgerDriftDetected))
	var row models.OutboxEvent
	require.NoError(t, db.Where("aggregate_id = ?", driver.ID).First(&row).Error)
	assert.Equal(t, enums.AggregateAccount, row.AggregateType)

	var envelope struct {
		Data struct {
			Subject       string `json:"subject"`
			TotalEarnings string `json:"total_earnings"`
			LedgerEarned  string `json:"ledger_earned"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(row.Payload, &envelope))
	assert.Equal(t, "driver", envelope.Data.Subject)
	assert.Equal(t, "40", envelope.Data.TotalEarnings)
	assert.Equal(t, "0", envelope.Data.LedgerEarned)

	var reloaded models.Driver
	require.NoError(t, db.First(&reloaded, "id = ?", driver.ID).Error)
	assert.True(t, reloaded.TotalEarnings.Equal(repotest.Money(t, "40")), "totals are never rewritten")

	assert.Equal(t, 40.0, gaugeValue(t, reg, "driver"))
	assert.Equal(t, 12.5, gaugeValue(t, reg, "vendor"))
}

func TestLedgerReconcileCleanLedgerEmitsNothing(t *testing.T) {
	db := repotest.NewDB(t)
	logg := repotest.Logger()
	ledgerSvc, err := ledger.NewService(ledger.NewRepository(db))
	require.NoError(t, err)
	repotest.SeedDriver(t, db)

	reg := prometheus.NewRegistry()
	job, err := NewLedgerReconcileJob(LedgerReconcileJobParams{
		Logger:  logg,
		Ledger:  ledgerSvc,
		Outbox:  outbox.NewService(outbox.NewRepository(db), logg),
		DB:      pkgdb.Wrap(db),
		Metrics: metrics.NewDomainMetrics(reg),
	})
	require.NoError(t, err)

	require.NoError(t, job.Run(context.Background()))
	assert.Zero(t, repotest.CountOutbox(t, db, enums.EventLedgerDriftDetected))
	assert.Zero(t, gaugeValue(t, reg, "driver"))
}

type erroringLister struct{}

func (erroringLister) Drifts(context.Context, enums.PayoutUserType, int) ([]ledger.Drift, error) {
	return nil, assert.AnError
}

func TestLedgerReconcileCombinesSubjectErrors(t *testing.T) {
	db := repotest.NewDB(t)
	logg := repotest.Logger()
	job, err := NewLedgerReconcileJob(LedgerReconcileJobParams{
		Logger: logg,
		Ledger: erroringLister{},
		Outbox: outbox.NewService(outbox.NewRepository(db), logg),
		DB:     pkgdb.Wrap(db),
	})
	require.NoError(t, err)

	err = job.Run(context.Background())
	require.Error(t, err)
	assert.ErrorContains(t, err, "list driver drift")
	assert.ErrorContains(t, err, "list vendor drift")
}

func gaugeValue(t *testing.T, reg *prometheus.Registry, subject string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() != "ledger_drift_amount" {
			continue
		}
		for _, metric := range family.GetMetric() {
			if labelValue(metric, "subject") == subject {
				return metric.GetGauge().GetValue()
			}
		}
	}
	return 0
}
