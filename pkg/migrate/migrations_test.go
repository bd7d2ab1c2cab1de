package migrate

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readEmbedded(t *testing.T, suffix string) string {
	t.Helper()
	matches, err := fs.Glob(embedded, embeddedDir+"/*_"+suffix+".sql")
	require.NoError(t, err)
	require.Len(t, matches, 1, "expected one %s migration", suffix)
	data, err := fs.ReadFile(embedded, matches[0])
	require.NoError(t, err)
	return string(data)
}

func TestEmbeddedMigrationsValidate(t *testing.T) {
	require.NoError(t, ValidateDir(DefaultDir))

	versions, err := Versions()
	require.NoError(t, err)
	require.NotEmpty(t, versions)
	assert.True(t, strings.HasPrefix(versions[0], "2026"))
}

func TestDeliveriesMigrationGuardsActiveOrder(t *testing.T) {
	content := readEmbedded(t, "create_deliveries")
	for _, want := range []string{
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_deliveries_active_order ON deliveries (order_id)",
		"WHERE status NOT IN ('delivered', 'failed', 'cancelled')",
		"CHECK (rating IS NULL OR (rating BETWEEN 1 AND 5))",
		"DROP TABLE IF EXISTS deliveries",
	} {
		assert.Contains(t, content, want)
	}
}

func TestEarningsMigrationEnforcesOnePerDelivery(t *testing.T) {
	content := readEmbedded(t, "create_earnings_ledger")
	assert.Contains(t, content, "CREATE UNIQUE INDEX IF NOT EXISTS ux_driver_earnings_delivery ON driver_earnings (delivery_id)")
	assert.Contains(t, content, "CREATE UNIQUE INDEX IF NOT EXISTS ux_transactions_reference ON transactions (reference)")
	assert.Contains(t, content, "CHECK (net_amount = amount - transaction_fee)")
}

func TestPayoutMigrationAllowsOneOpenRequest(t *testing.T) {
	content := readEmbedded(t, "create_payout_requests")
	assert.Contains(t, content, "ux_payout_requests_open_user ON payout_requests (user_id, user_type)")
	assert.Contains(t, content, "WHERE status IN ('pending', 'approved')")
}

func TestEnumMigrationCoversOutboxEventTypes(t *testing.T) {
	content := readEmbedded(t, "create_enums")
	for _, want := range []string{"'earning_posted'", "'payout_transfer_requested'", "'ledger_drift_detected'", "'webhook_processing_failed'"} {
		assert.Contains(t, content, want)
	}
}

func TestValidateDirRejectsBadFiles(t *testing.T) {
	cases := map[string]string{
		"bad_name.sql":                    "-- +goose Up\n-- +goose Down\n",
		"20260101000000_missing_down.sql": "-- +goose Up\nSELECT 1;\n",
		"20260101000000_unbalanced.sql":   "-- +goose Up\n-- +goose StatementBegin\n-- +goose Down\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
			assert.Error(t, ValidateDir(dir))
		})
	}
}

func TestCreateSQLMigration(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

	path, err := createAt(dir, "  Add Driver Ratings! ", now)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "20260304050607_add_driver_ratings.sql"), path)
	require.NoError(t, ValidateDir(dir))

	_, err = createAt(dir, "add driver ratings", now)
	assert.ErrorContains(t, err, "already exists")

	_, err = createAt(dir, "!!!", now)
	assert.Error(t, err)
}
