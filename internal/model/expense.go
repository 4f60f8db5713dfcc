package model

import (
	"time"

	"github.com/shopspring/decimal"
)

var ExpenseCategories = []string{"Wages", "Utilities", "Spoilage", "Other"}

type Expense struct {
	ID          int64           `db:"expense_id"`
	StoreID     int64           `db:"store_id"`
	ExpenseDate time.Time       `db:"expense_date"`
	Category    string          `db:"expense_category"`
	Amount      decimal.Decimal `db:"amount"`
}
