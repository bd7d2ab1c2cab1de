// Package repotest opens SQLite databases carrying the tables repositories
// touch, so package tests can exercise real SQL without Postgres.
package repotest

import (
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/packdrop-backend/pkg/db/models"
	"github.com/angelmondragon/packdrop-backend/pkg/enums"
	"github.com/angelmondragon/packdrop-backend/pkg/logger"
)

var schema = []string{
	`CREATE TABLE drivers (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL UNIQUE,
  is_available INTEGER NOT NULL DEFAULT 0,
  is_verified INTEGER NOT NULL DEFAULT 0,
  is_payout_enabled INTEGER NOT NULL DEFAULT 1,
  total_earnings NUMERIC NOT NULL DEFAULT 0,
  total_paid_out NUMERIC NOT NULL DEFAULT 0,
  bank_name TEXT,
  account_name TEXT,
  account_number TEXT,
  current_latitude REAL,
  current_longitude REAL,
  rating NUMERIC NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
)`,
	`CREATE TABLE vendors (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL UNIQUE,
  business_name TEXT NOT NULL,
  commission_rate NUMERIC NOT NULL DEFAULT 10,
  is_verified INTEGER NOT NULL DEFAULT 0,
  is_payout_enabled INTEGER NOT NULL DEFAULT 1,
  total_earnings NUMERIC NOT NULL DEFAULT 0,
  total_paid_out NUMERIC NOT NULL DEFAULT 0,
  bank_name TEXT,
  account_name TEXT,
  account_number TEXT,
  created_at DATETIME,
  updated_at DATETIME
)`,
	`CREATE TABLE orders (
  id TEXT PRIMARY KEY,
  customer_id TEXT NOT NULL,
  vendor_id TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  subtotal NUMERIC NOT NULL DEFAULT 0,
  tax NUMERIC NOT NULL DEFAULT 0,
  delivery_fee NUMERIC NOT NULL DEFAULT 0,
  discount NUMERIC NOT NULL DEFAULT 0,
  commission_amount NUMERIC NOT NULL DEFAULT 0,
  vendor_earning NUMERIC NOT NULL DEFAULT 0,
  total NUMERIC NOT NULL DEFAULT 0,
  vendor_earning_posted_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
)`,
	`CREATE TABLE order_items (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  name TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  unit_price NUMERIC NOT NULL,
  category_commission_rate NUMERIC,
  total_price NUMERIC NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
)`,
	`CREATE TABLE deliveries (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  driver_id TEXT,
  status TEXT NOT NULL DEFAULT 'pending',
  pickup_latitude REAL NOT NULL,
  pickup_longitude REAL NOT NULL,
  dropoff_latitude REAL NOT NULL,
  dropoff_longitude REAL NOT NULL,
  current_latitude REAL,
  current_longitude REAL,
  distance_km NUMERIC NOT NULL DEFAULT 0,
  delivery_fee NUMERIC NOT NULL DEFAULT 0,
  picked_up_at DATETIME,
  delivered_at DATETIME,
  failed_at DATETIME,
  cancelled_at DATETIME,
  rating INTEGER,
  rating_comment TEXT,
  proof_reference TEXT,
  created_at DATETIME,
  updated_at DATETIME
)`,
	`CREATE UNIQUE INDEX ux_deliveries_active_order ON deliveries (order_id)
  WHERE status NOT IN ('delivered','failed','cancelled')`,
	`CREATE TABLE driver_earnings (
  id TEXT PRIMARY KEY,
  driver_id TEXT NOT NULL,
  delivery_id TEXT NOT NULL,
  amount NUMERIC NOT NULL,
  transaction_fee NUMERIC NOT NULL,
  net_amount NUMERIC NOT NULL,
  is_paid INTEGER NOT NULL DEFAULT 0,
  earning_date DATETIME NOT NULL,
  paid_date DATETIME,
  transaction_ref TEXT,
  created_at DATETIME,
  updated_at DATETIME
)`,
	`CREATE UNIQUE INDEX ux_driver_earnings_delivery ON driver_earnings (delivery_id)`,
	`CREATE TABLE transactions (
  id TEXT PRIMARY KEY,
  reference TEXT NOT NULL,
  type TEXT NOT NULL,
  amount NUMERIC NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  payment_method TEXT NOT NULL,
  order_id TEXT,
  driver_id TEXT,
  vendor_id TEXT,
  delivery_id TEXT,
  payout_request_id TEXT,
  gateway_reference TEXT,
  metadata TEXT,
  created_at DATETIME,
  updated_at DATETIME
)`,
	`CREATE UNIQUE INDEX ux_transactions_reference ON transactions (reference)`,
	`CREATE TABLE payout_requests (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  user_type TEXT NOT NULL,
  amount NUMERIC NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  bank_name TEXT NOT NULL,
  account_name TEXT NOT NULL,
  account_number TEXT NOT NULL,
  earning_ids TEXT,
  processed_by TEXT,
  processed_at DATETIME,
  notes TEXT,
  transaction_id TEXT,
  created_at DATETIME,
  updated_at DATETIME
)`,
	`CREATE UNIQUE INDEX ux_payout_requests_open_user ON payout_requests (user_id, user_type)
  WHERE status IN ('pending','approved')`,
	`CREATE TABLE outbox_events (
  id TEXT PRIMARY KEY,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload TEXT NOT NULL,
  created_at DATETIME,
  published_at DATETIME,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT
)`,
	`CREATE TABLE outbox_dlq (
  id TEXT PRIMARY KEY,
  event_id TEXT NOT NULL,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload_json TEXT NOT NULL,
  error_reason TEXT NOT NULL,
  error_message TEXT,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  failed_at DATETIME,
  created_at DATETIME
)`,
	`CREATE UNIQUE INDEX ux_outbox_dlq_event ON outbox_dlq (event_id)`,
}

// NewDB returns an isolated in-memory database with the full schema applied.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	for _, stmt := range schema {
		require.NoError(t, db.Exec(stmt).Error)
	}

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// One connection serializes transactions the way row locks would.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

// Money parses a fixed-point literal and fails the test on bad input.
func Money(t *testing.T, value string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(value)
	require.NoError(t, err)
	return d
}

func strPtr(s string) *string { return &s }

// SeedDriver inserts a verified, available driver with complete banking details.
func SeedDriver(t *testing.T, db *gorm.DB, mutate ...func(*models.Driver)) *models.Driver {
	t.Helper()
	driver := &models.Driver{
		ID:              uuid.New(),
		UserID:          uuid.New(),
		IsAvailable:     true,
		IsVerified:      true,
		IsPayoutEnabled: true,
		TotalEarnings:   decimal.Zero,
		TotalPaidOut:    decimal.Zero,
		BankName:        strPtr("First Bank"),
		AccountName:     strPtr("Ada Obi"),
		AccountNumber:   strPtr("0123456789"),
		Rating:          decimal.Zero,
	}
	for _, fn := range mutate {
		fn(driver)
	}
	require.NoError(t, db.Create(driver).Error)
	return driver
}

// SeedVendor inserts a verified vendor with a 10% commission rate.
func SeedVendor(t *testing.T, db *gorm.DB, mutate ...func(*models.Vendor)) *models.Vendor {
	t.Helper()
	vendor := &models.Vendor{
		ID:              uuid.New(),
		UserID:          uuid.New(),
		BusinessName:    "Mama Put",
		CommissionRate:  decimal.NewFromInt(10),
		IsVerified:      true,
		IsPayoutEnabled: true,
		TotalEarnings:   decimal.Zero,
		TotalPaidOut:    decimal.Zero,
		BankName:        strPtr("GTBank"),
		AccountName:     strPtr("Mama Put Ltd"),
		AccountNumber:   strPtr("9876543210"),
	}
	for _, fn := range mutate {
		fn(vendor)
	}
	require.NoError(t, db.Create(vendor).Error)
	return vendor
}

// SeedOrder inserts a confirmed order for vendor.
func SeedOrder(t *testing.T, db *gorm.DB, vendorID uuid.UUID, mutate ...func(*models.Order)) *models.Order {
	t.Helper()
	order := &models.Order{
		ID:               uuid.New(),
		CustomerID:       uuid.New(),
		VendorID:         vendorID,
		Status:           enums.OrderStatusConfirmed,
		Subtotal:         decimal.Zero,
		Tax:              decimal.Zero,
		DeliveryFee:      decimal.NewFromInt(1000),
		Discount:         decimal.Zero,
		CommissionAmount: decimal.Zero,
		VendorEarning:    decimal.Zero,
		Total:            decimal.Zero,
	}
	for _, fn := range mutate {
		fn(order)
	}
	require.NoError(t, db.Omit("Items").Create(order).Error)
	return order
}

// SeedDelivery inserts a delivery for order in the given status.
func SeedDelivery(t *testing.T, db *gorm.DB, orderID uuid.UUID, status enums.DeliveryStatus, driverID *uuid.UUID) *models.Delivery {
	t.Helper()
	delivery := &models.Delivery{
		ID:               uuid.New(),
		OrderID:          orderID,
		DriverID:         driverID,
		Status:           status,
		PickupLatitude:   6.4541,
		PickupLongitude:  3.3947,
		DropoffLatitude:  6.4281,
		DropoffLongitude: 3.4219,
		DistanceKm:       decimal.NewFromFloat(4.2),
		DeliveryFee:      decimal.NewFromInt(1000),
	}
	if status == enums.DeliveryStatusDelivered {
		now := time.Now().UTC()
		delivery.DeliveredAt = &now
	}
	require.NoError(t, db.Create(delivery).Error)
	return delivery
}

// Logger returns a logger that discards output.
func Logger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

// CountOutbox returns how many outbox rows of eventType were queued.
func CountOutbox(t *testing.T, db *gorm.DB, eventType enums.OutboxEventType) int64 {
	t.Helper()
	var count int64
	require.NoError(t, db.Model(&models.OutboxEvent{}).Where("event_type = ?", eventType).Count(&count).Error)
	return count
}
