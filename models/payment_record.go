package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// RecordKind различает плановые записи графика и фактические платежи
type RecordKind string

const (
	RecordKindPlanned               RecordKind = "planned"                // Плановая часть графика
	RecordKindManual                RecordKind = "manual"                 // Ручной платеж по позиции
	RecordKindUnifiedPayment        RecordKind = "unified_payment"        // Доля общего платежа
	RecordKindSubcategoryAllocation RecordKind = "subcategory_allocation" // Доля платежа по подварианту
)

// PaymentRecord представляет плановое или фактическое движение денег по позиции
type PaymentRecord struct {
	ID           uint            `gorm:"primaryKey;autoIncrement" json:"id"`
	ItemID       uint            `gorm:"column:item_id;not null;index" json:"itemId"`
	Amount       decimal.Decimal `gorm:"column:amount;type:decimal(14,2);not null" json:"amount"`
	Date         time.Time       `gorm:"column:date;not null" json:"date"`
	Method       string          `gorm:"column:method;size:50" json:"method"`
	Notes        string          `gorm:"column:notes;size:500" json:"notes"`
	Kind         RecordKind      `gorm:"column:kind;type:varchar(30);not null;index" json:"kind"`
	PeriodIndex  *int            `gorm:"column:period_index" json:"periodIndex,omitempty"`
	DueDate      *time.Time      `gorm:"column:due_date" json:"dueDate,omitempty"` // месяц, за который платеж причитался
	AllocationID *string         `gorm:"column:allocation_id;size:36;index" json:"allocationId,omitempty"`
	CreatedAt    time.Time       `gorm:"column:created_at" json:"createdAt"`
}

// TableName возвращает имя таблицы для модели PaymentRecord
func (PaymentRecord) TableName() string {
	return "payment_records"
}

// IsPayment сообщает, что запись - фактический платеж, а не план
func (r *PaymentRecord) IsPayment() bool {
	return r.Kind != RecordKindPlanned
}

// Snapshot возвращает значения полей для журнала аудита
func (r *PaymentRecord) Snapshot() map[string]interface{} {
	snap := map[string]interface{}{
		"itemId":  r.ItemID,
		"amount":  r.Amount.StringFixed(MoneyPlaces),
		"date":    r.Date.Format(time.DateOnly),
		"method":  r.Method,
		"notes":   r.Notes,
		"kind":    string(r.Kind),
		"dueDate": dateValue(r.DueDate),
	}
	if r.AllocationID != nil {
		snap["allocationId"] = *r.AllocationID
	}
	return snap
}
