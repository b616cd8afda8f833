package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PaymentType представляет форму плана оплаты
type PaymentType string

const (
	PaymentTypeSingle      PaymentType = "single"      // Разовый платеж
	PaymentTypeMonthly     PaymentType = "monthly"     // Ежемесячный платеж
	PaymentTypeInstallment PaymentType = "installment" // Рассрочка
)

// ItemStatus представляет статус позиции
type ItemStatus string

const (
	ItemStatusPending ItemStatus = "pending"
	ItemStatusPartial ItemStatus = "partial"
	ItemStatusPaid    ItemStatus = "paid"
	ItemStatusOverdue ItemStatus = "overdue"
)

// ErrInvalidItem оборачивает нарушения инвариантов позиции при сохранении
var ErrInvalidItem = errors.New("некорректная позиция")

// PaymentItem представляет обязательство к оплате
type PaymentItem struct {
	ID uint `gorm:"primaryKey;autoIncrement" json:"id"`

	// Category - источник истины, колонки ниже заполняются хуками
	Category         Category `gorm:"-" json:"-"`
	CategoryID       *uint    `gorm:"column:category_id;index" json:"categoryId,omitempty"`
	FixedCategoryID  *uint    `gorm:"column:fixed_category_id;index" json:"fixedCategoryId,omitempty"`
	FixedSubOptionID *uint    `gorm:"column:fixed_sub_option_id" json:"fixedSubOptionId,omitempty"`
	ProjectID        *uint    `gorm:"column:project_id;index" json:"projectId,omitempty"`

	Name        string          `gorm:"column:name;not null;size:200" json:"name"`
	TotalAmount decimal.Decimal `gorm:"column:total_amount;type:decimal(14,2);not null" json:"totalAmount"`
	PaidAmount  decimal.Decimal `gorm:"column:paid_amount;type:decimal(14,2);not null" json:"paidAmount"`
	PaymentType PaymentType     `gorm:"column:payment_type;type:varchar(20);not null" json:"paymentType"`
	StartDate   time.Time       `gorm:"column:start_date;not null" json:"startDate"`
	EndDate     *time.Time      `gorm:"column:end_date" json:"endDate,omitempty"`
	Status      ItemStatus      `gorm:"column:status;type:varchar(20);not null" json:"status"`
	Priority    int             `gorm:"column:priority;not null;default:0" json:"priority"`
	Notes       string          `gorm:"column:notes;size:500" json:"notes"`
	IsDeleted   bool            `gorm:"column:is_deleted;not null;default:false;index" json:"isDeleted"`
	DeletedAt   *time.Time      `gorm:"column:deleted_at" json:"deletedAt,omitempty"`
	CreatedAt   time.Time       `gorm:"column:created_at" json:"createdAt"`
	UpdatedAt   time.Time       `gorm:"column:updated_at" json:"updatedAt"`

	Records []PaymentRecord `gorm:"foreignKey:ItemID" json:"records,omitempty"`
}

// TableName возвращает имя таблицы для модели PaymentItem
func (PaymentItem) TableName() string {
	return "payment_items"
}

// SetCategory задает категорию и синхронизирует колонки
func (i *PaymentItem) SetCategory(c Category) error {
	flex, fixed, sub, err := categoryColumns(c)
	if err != nil {
		return err
	}
	i.Category = c
	i.CategoryID, i.FixedCategoryID, i.FixedSubOptionID = flex, fixed, sub
	return nil
}

// DueDate - дата, после которой неоплаченная позиция считается просроченной
func (i *PaymentItem) DueDate() time.Time {
	if i.EndDate != nil {
		return *i.EndDate
	}
	return i.StartDate
}

// Owed возвращает непогашенный остаток, не меньше нуля
func (i *PaymentItem) Owed() decimal.Decimal {
	owed := i.TotalAmount.Sub(i.PaidAmount)
	if owed.IsNegative() {
		return decimal.Zero
	}
	return owed
}

// RefreshStatus пересчитывает статус на дату today и сообщает, изменился ли он
func (i *PaymentItem) RefreshStatus(today time.Time) bool {
	next := ComputeStatus(i.PaidAmount, i.TotalAmount, i.DueDate(), today)
	changed := next != i.Status
	i.Status = next
	return changed
}

// ComputeStatus - чистая функция статуса от сумм и срока
func ComputeStatus(paid, total decimal.Decimal, due, today time.Time) ItemStatus {
	if paid.GreaterThanOrEqual(total) {
		return ItemStatusPaid
	}
	if DateOnly(due).Before(DateOnly(today)) {
		return ItemStatusOverdue
	}
	if paid.IsZero() {
		return ItemStatusPending
	}
	return ItemStatusPartial
}

// Validate проверяет инварианты позиции
func (i *PaymentItem) Validate() error {
	if _, _, _, err := categoryColumns(i.Category); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidItem, err)
	}
	if i.Name == "" {
		return fmt.Errorf("%w: пустое название", ErrInvalidItem)
	}
	if !i.TotalAmount.IsPositive() {
		return fmt.Errorf("%w: сумма должна быть больше 0", ErrInvalidItem)
	}
	if i.PaidAmount.IsNegative() {
		return fmt.Errorf("%w: оплаченная сумма отрицательна", ErrInvalidItem)
	}
	if i.PaidAmount.GreaterThan(i.TotalAmount.Add(Tolerance)) {
		return fmt.Errorf("%w: оплачено %s больше суммы %s", ErrInvalidItem, i.PaidAmount, i.TotalAmount)
	}
	switch i.PaymentType {
	case PaymentTypeSingle, PaymentTypeMonthly, PaymentTypeInstallment:
	default:
		return fmt.Errorf("%w: неизвестный тип оплаты %q", ErrInvalidItem, i.PaymentType)
	}
	if i.PaymentType != PaymentTypeSingle && i.EndDate == nil {
		return fmt.Errorf("%w: тип %s требует дату окончания", ErrInvalidItem, i.PaymentType)
	}
	if i.EndDate != nil && i.EndDate.Before(i.StartDate) {
		return fmt.Errorf("%w: дата окончания раньше даты начала", ErrInvalidItem)
	}
	return nil
}

// BeforeSave хук проверяет позицию и раскладывает категорию по колонкам
func (i *PaymentItem) BeforeSave(tx *gorm.DB) error {
	if err := i.Validate(); err != nil {
		return err
	}
	return i.SetCategory(i.Category)
}

// AfterFind хук восстанавливает категорию из колонок
func (i *PaymentItem) AfterFind(tx *gorm.DB) error {
	c, err := categoryFromColumns(i.CategoryID, i.FixedCategoryID, i.FixedSubOptionID)
	if err != nil {
		return fmt.Errorf("позиция %d: %w", i.ID, err)
	}
	i.Category = c
	return nil
}

// Snapshot возвращает значения полей для журнала аудита
func (i *PaymentItem) Snapshot() map[string]interface{} {
	return map[string]interface{}{
		"name":             i.Name,
		"categoryId":       uintValue(i.CategoryID),
		"fixedCategoryId":  uintValue(i.FixedCategoryID),
		"fixedSubOptionId": uintValue(i.FixedSubOptionID),
		"projectId":        uintValue(i.ProjectID),
		"totalAmount":      i.TotalAmount.StringFixed(MoneyPlaces),
		"paidAmount":       i.PaidAmount.StringFixed(MoneyPlaces),
		"paymentType":      string(i.PaymentType),
		"startDate":        i.StartDate.Format(time.DateOnly),
		"endDate":          dateValue(i.EndDate),
		"status":           string(i.Status),
		"priority":         i.Priority,
		"notes":            i.Notes,
		"isDeleted":        i.IsDeleted,
		"deletedAt":        timeValue(i.DeletedAt),
	}
}

func uintValue(p *uint) interface{} {
	if p == nil {
		return nil
	}
	return *p
}

func dateValue(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.Format(time.DateOnly)
}

func timeValue(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}
