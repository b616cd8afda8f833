package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// BudgetPlan - план бюджета, читается только прогнозом
type BudgetPlan struct {
	ID        uint         `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string       `gorm:"column:name;not null;size:200" json:"name"`
	ProjectID *uint        `gorm:"column:project_id;index" json:"projectId,omitempty"`
	Items     []BudgetItem `gorm:"foreignKey:PlanID" json:"items,omitempty"`
	CreatedAt time.Time    `gorm:"column:created_at" json:"createdAt"`
	UpdatedAt time.Time    `gorm:"column:updated_at" json:"updatedAt"`
}

// TableName возвращает имя таблицы для модели BudgetPlan
func (BudgetPlan) TableName() string {
	return "budget_plans"
}

// BudgetItem - плановая статья, еще не ставшая позицией к оплате
type BudgetItem struct {
	ID              uint            `gorm:"primaryKey;autoIncrement" json:"id"`
	PlanID          uint            `gorm:"column:plan_id;not null;index" json:"planId"`
	Name            string          `gorm:"column:name;not null;size:200" json:"name"`
	Amount          decimal.Decimal `gorm:"column:amount;type:decimal(14,2);not null" json:"amount"`
	PaymentType     PaymentType     `gorm:"column:payment_type;type:varchar(20);not null" json:"paymentType"`
	StartDate       time.Time       `gorm:"column:start_date;not null" json:"startDate"`
	EndDate         *time.Time      `gorm:"column:end_date" json:"endDate,omitempty"`
	ConvertedItemID *uint           `gorm:"column:converted_item_id" json:"convertedItemId,omitempty"` // позиция, созданная из статьи
	CreatedAt       time.Time       `gorm:"column:created_at" json:"createdAt"`
	UpdatedAt       time.Time       `gorm:"column:updated_at" json:"updatedAt"`
}

// TableName возвращает имя таблицы для модели BudgetItem
func (BudgetItem) TableName() string {
	return "budget_items"
}

// Periods возвращает плановые даты и суммы статьи.
// Разовая статья дает один период на EndDate, если она задана, иначе на StartDate.
func (b *BudgetItem) Periods() []Period {
	if b.PaymentType != PaymentTypeSingle && b.EndDate != nil && b.EndDate.After(b.StartDate) {
		return PlanPeriods(b.Amount, b.PaymentType, b.StartDate, *b.EndDate)
	}
	date := b.StartDate
	if b.EndDate != nil {
		date = *b.EndDate
	}
	return []Period{{Index: 1, Date: date, Amount: b.Amount}}
}

// PaymentSchedule - запланированная выплата для прогноза
type PaymentSchedule struct {
	ID            uint            `gorm:"primaryKey;autoIncrement" json:"id"`
	ItemID        *uint           `gorm:"column:item_id;index" json:"itemId,omitempty"`
	Name          string          `gorm:"column:name;not null;size:200" json:"name"`
	Amount        decimal.Decimal `gorm:"column:amount;type:decimal(14,2);not null" json:"amount"`
	ScheduledDate time.Time       `gorm:"column:scheduled_date;not null;index" json:"scheduledDate"`
	IsCompleted   bool            `gorm:"column:is_completed;not null;default:false" json:"isCompleted"`
	Notes         string          `gorm:"column:notes;size:500" json:"notes"`
	CreatedAt     time.Time       `gorm:"column:created_at" json:"createdAt"`
	UpdatedAt     time.Time       `gorm:"column:updated_at" json:"updatedAt"`
}

// TableName возвращает имя таблицы для модели PaymentSchedule
func (PaymentSchedule) TableName() string {
	return "payment_schedules"
}
