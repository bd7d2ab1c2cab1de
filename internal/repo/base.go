package repo

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// NumericParam wraps a decimal bind value so SQLite compares it as a number
// rather than text. Postgres accepts the cast unchanged.
const NumericParam = "CAST(? AS NUMERIC)"

// Base is embedded by every domain repository. It holds either the pool or,
// for copies made with WithTx, the open transaction.
type Base struct {
	conn *gorm.DB
}

func NewBase(conn *gorm.DB) Base {
	return Base{conn: conn}
}

// DB scopes the connection to ctx.
func (b Base) DB(ctx context.Context) *gorm.DB {
	if ctx == nil {
		return b.conn
	}
	return b.conn.WithContext(ctx)
}

// Locked is DB plus SELECT ... FOR UPDATE. Only meaningful inside a
// transaction; SQLite has no row locks and gets the plain query.
func (b Base) Locked(ctx context.Context) *gorm.DB {
	q := b.DB(ctx)
	if q.Dialector == nil || q.Dialector.Name() != "postgres" {
		return q
	}
	return q.Clauses(clause.Locking{Strength: "UPDATE"})
}
