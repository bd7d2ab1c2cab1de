package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/packdrop-backend/pkg/enums"
)

// Order holds the monetary summary the earnings calculator reads.
type Order struct {
	ID                    uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CustomerID            uuid.UUID         `gorm:"column:customer_id;type:uuid;not null"`
	VendorID              uuid.UUID         `gorm:"column:vendor_id;type:uuid;not null"`
	Status                enums.OrderStatus `gorm:"column:status;type:order_status;not null;default:'pending'"`
	Subtotal              decimal.Decimal   `gorm:"column:subtotal;type:numeric(14,2);not null;default:0"`
	Tax                   decimal.Decimal   `gorm:"column:tax;type:numeric(14,2);not null;default:0"`
	DeliveryFee           decimal.Decimal   `gorm:"column:delivery_fee;type:numeric(14,2);not null;default:0"`
	Discount              decimal.Decimal   `gorm:"column:discount;type:numeric(14,2);not null;default:0"`
	CommissionAmount      decimal.Decimal   `gorm:"column:commission_amount;type:numeric(14,2);not null;default:0"`
	VendorEarning         decimal.Decimal   `gorm:"column:vendor_earning;type:numeric(14,2);not null;default:0"`
	Total                 decimal.Decimal   `gorm:"column:total;type:numeric(14,2);not null;default:0"`
	VendorEarningPostedAt *time.Time        `gorm:"column:vendor_earning_posted_at"`
	Items                 []OrderItem       `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt             time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

// OrderItem is a priced line on an order.
type OrderItem struct {
	ID                     uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID                uuid.UUID        `gorm:"column:order_id;type:uuid;not null"`
	ProductID              uuid.UUID        `gorm:"column:product_id;type:uuid;not null"`
	Name                   string           `gorm:"column:name;not null"`
	Quantity               int              `gorm:"column:quantity;not null"`
	UnitPrice              decimal.Decimal  `gorm:"column:unit_price;type:numeric(14,2);not null"`
	CategoryCommissionRate *decimal.Decimal `gorm:"column:category_commission_rate;type:numeric(5,2)"`
	TotalPrice             decimal.Decimal  `gorm:"column:total_price;type:numeric(14,2);not null"`
	CreatedAt              time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt              time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}
