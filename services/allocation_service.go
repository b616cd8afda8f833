package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/biglong-lab/woyu-money-sub004/models"
	"github.com/biglong-lab/woyu-money-sub004/repository"
	"github.com/biglong-lab/woyu-money-sub004/utils"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PayScopeDTO представляет общий платеж по области: категории и/или проекту
type PayScopeDTO struct {
	CategoryID       *uint           `json:"categoryId"`
	FixedCategoryID  *uint           `json:"fixedCategoryId"`
	FixedSubOptionID *uint           `json:"fixedSubOptionId"`
	ProjectID        *uint           `json:"projectId"`
	Amount           decimal.Decimal `json:"amount" validate:"gt=0"`
	PaymentDate      string          `json:"paymentDate" validate:"required,datetime=2006-01-02"`
	Method           string          `json:"method" validate:"max=50"`
	Notes            string          `json:"notes" validate:"max=500"`
	Actor            string          `json:"-"`
}

// Allocation - доля платежа, пришедшаяся на одну позицию
type Allocation struct {
	ItemID          uint            `json:"itemId"`
	ItemName        string          `json:"itemName"`
	AllocatedAmount decimal.Decimal `json:"allocatedAmount"`
	IsFullyPaid     bool            `json:"isFullyPaid"`
	RecordID        uint            `json:"recordId"`
}

// AllocationResult - итог распределения общего платежа
type AllocationResult struct {
	AllocationID   string          `json:"allocationId"`
	Allocations    []Allocation    `json:"allocations"`
	TotalAllocated decimal.Decimal `json:"totalAllocated"`
	Leftover       decimal.Decimal `json:"leftover"`
}

// Notifier получает уведомления о полностью оплаченных позициях
type Notifier interface {
	NotifyItemPaid(ctx context.Context, item models.PaymentItem) error
}

// AllocationService распределяет общий платеж по открытым позициям области
type AllocationService struct {
	store     repository.Store
	audit     *AuditService
	notifier  Notifier
	locks     *utils.KeyedMutex
	validator *validator.Validate
	now       Clock
}

// NewAllocationService создает новый экземпляр AllocationService.
// notifier может быть nil.
func NewAllocationService(store repository.Store, audit *AuditService, notifier Notifier) *AllocationService {
	return &AllocationService{
		store:     store,
		audit:     audit,
		notifier:  notifier,
		locks:     utils.NewKeyedMutex(),
		validator: newValidator(),
		now:       time.Now,
	}
}

// SetClock подменяет источник текущего времени
func (s *AllocationService) SetClock(clock Clock) {
	s.now = clock
}

// PayScope распределяет сумму по позициям области: сначала просроченные,
// затем наступившие, затем будущие. Остаток, который некуда направить,
// возвращается в Leftover.
func (s *AllocationService) PayScope(ctx context.Context, dto PayScopeDTO) (result *AllocationResult, err error) {
	startTime := time.Now()
	defer func() { utils.LogOperation("pay_scope", startTime, err) }()

	if err := validateRequest(s.validator, dto); err != nil {
		return nil, err
	}
	if err := checkMoney("Amount", dto.Amount); err != nil {
		return nil, err
	}
	paymentDate, err := parseDate("PaymentDate", dto.PaymentDate)
	if err != nil {
		return nil, err
	}
	category, err := scopeCategory(dto.CategoryID, dto.FixedCategoryID, dto.FixedSubOptionID)
	if err != nil {
		return nil, err
	}
	if category == nil && dto.ProjectID == nil {
		return nil, newValidationError("нужно указать категорию или проект")
	}

	filter := repository.ItemFilter{Category: category, ProjectID: dto.ProjectID, OnlyOpen: true, ForUpdate: true}
	key := scopeKey(filter)
	kind := recordKindFor(category)
	today := models.DateOnly(s.now())

	unlock := s.locks.Lock(key)
	defer unlock()

	var paidItems []models.PaymentItem
	err = s.store.WithinTx(ctx, func(tx repository.Store) error {
		if err := tx.LockScope(ctx, key); err != nil {
			return err
		}
		items, err := tx.ListItemsByScope(ctx, filter)
		if err != nil {
			return err
		}
		OrderForAllocation(items, today)

		allocationID := uuid.NewString()
		result = &AllocationResult{AllocationID: allocationID, TotalAllocated: decimal.Zero}
		remaining := dto.Amount

		for i := range items {
			if !remaining.IsPositive() {
				break
			}
			item := &items[i]
			owed := item.Owed()
			if !owed.IsPositive() {
				continue
			}
			share := models.MinDecimal(remaining, owed)

			records, err := tx.ListRecords(ctx, item.ID)
			if err != nil {
				return err
			}
			due := dueForPayment(item, records, item.PaidAmount)
			before := item.Snapshot()

			record := &models.PaymentRecord{
				ItemID:       item.ID,
				Amount:       share,
				Date:         paymentDate,
				Method:       dto.Method,
				Notes:        dto.Notes,
				Kind:         kind,
				DueDate:      &due,
				AllocationID: &allocationID,
			}
			if err := tx.InsertRecord(ctx, record); err != nil {
				return err
			}

			item.PaidAmount = item.PaidAmount.Add(share)
			item.RefreshStatus(today)
			if err := tx.UpsertItem(ctx, item); err != nil {
				return err
			}
			if err := s.audit.Record(ctx, tx, AuditEntry{
				Table:     AuditTableItems,
				RecordID:  item.ID,
				Action:    models.AuditActionUpdate,
				OldValues: before,
				NewValues: item.Snapshot(),
				Actor:     dto.Actor,
				Reason:    fmt.Sprintf("%s:%s", kind, allocationID),
			}); err != nil {
				return err
			}

			fullyPaid := item.Status == models.ItemStatusPaid
			if fullyPaid {
				paidItems = append(paidItems, *item)
			}
			result.Allocations = append(result.Allocations, Allocation{
				ItemID:          item.ID,
				ItemName:        item.Name,
				AllocatedAmount: share,
				IsFullyPaid:     fullyPaid,
				RecordID:        record.ID,
			})
			result.TotalAllocated = result.TotalAllocated.Add(share)
			remaining = remaining.Sub(share)
			utils.LogDebug("Распределение %s: позиция %d получила %s, статус %s, остаток %s",
				allocationID, item.ID, share.StringFixed(models.MoneyPlaces), item.Status, remaining.StringFixed(models.MoneyPlaces))
		}

		result.Leftover = remaining
		if !result.TotalAllocated.Add(result.Leftover).Equal(dto.Amount) {
			return fmt.Errorf("распределено %s и остаток %s не сходятся с платежом %s",
				result.TotalAllocated, result.Leftover, dto.Amount)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	utils.GetMetrics().RecordAllocation(result.TotalAllocated, result.Leftover, len(paidItems))
	utils.LogInfo("Платеж %s по области %s: распределено %s на %d позиций, остаток %s",
		dto.Amount.StringFixed(models.MoneyPlaces), key, result.TotalAllocated.StringFixed(models.MoneyPlaces),
		len(result.Allocations), result.Leftover.StringFixed(models.MoneyPlaces))
	s.notifyPaid(ctx, paidItems)
	return result, nil
}

// notifyPaid рассылает уведомления после фиксации транзакции; ошибки только логируются
func (s *AllocationService) notifyPaid(ctx context.Context, items []models.PaymentItem) {
	if s.notifier == nil {
		return
	}
	for _, item := range items {
		if err := s.notifier.NotifyItemPaid(ctx, item); err != nil {
			utils.LogError("Ошибка уведомления о погашении позиции %d: %v", item.ID, err)
			utils.GetMetrics().RecordError("notify")
		}
	}
}

// allocationTier: 0 - просрочена, 1 - срок наступил, 2 - будущая
func allocationTier(item *models.PaymentItem, today time.Time) int {
	if models.ComputeStatus(item.PaidAmount, item.TotalAmount, item.DueDate(), today) == models.ItemStatusOverdue {
		return 0
	}
	if !item.StartDate.After(today) {
		return 1
	}
	return 2
}

// OrderForAllocation сортирует позиции в порядке гашения. Внутри группы -
// по дате начала, затем по убыванию приоритета, затем по id.
func OrderForAllocation(items []models.PaymentItem, today time.Time) {
	today = models.DateOnly(today)
	sort.SliceStable(items, func(i, j int) bool {
		a, b := &items[i], &items[j]
		if ta, tb := allocationTier(a, today), allocationTier(b, today); ta != tb {
			return ta < tb
		}
		if !a.StartDate.Equal(b.StartDate) {
			return a.StartDate.Before(b.StartDate)
		}
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		return a.ID < b.ID
	})
}

// recordKindFor выбирает тег записей по виду области
func recordKindFor(c models.Category) models.RecordKind {
	if fixed, ok := c.(models.FixedCategory); ok && fixed.SubOptionID != 0 {
		return models.RecordKindSubcategoryAllocation
	}
	return models.RecordKindUnifiedPayment
}

// scopeKey строит ключ блокировки области
func scopeKey(f repository.ItemFilter) string {
	key := "all"
	if f.Category != nil {
		key = f.Category.ScopeKey()
	}
	if f.ProjectID != nil {
		key += fmt.Sprintf("|project:%d", *f.ProjectID)
	}
	return key
}
