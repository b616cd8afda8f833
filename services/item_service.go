package services

import (
	"context"
	"time"

	"github.com/biglong-lab/woyu-money-sub004/models"
	"github.com/biglong-lab/woyu-money-sub004/repository"
	"github.com/biglong-lab/woyu-money-sub004/utils"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// Clock возвращает текущее время; подменяется в тестах
type Clock func() time.Time

// CreateItemDTO представляет данные для создания позиции
type CreateItemDTO struct {
	CategoryID       *uint           `json:"categoryId"`
	FixedCategoryID  *uint           `json:"fixedCategoryId"`
	FixedSubOptionID *uint           `json:"fixedSubOptionId"`
	ProjectID        *uint           `json:"projectId"`
	Name             string          `json:"name" validate:"required,max=200"`
	TotalAmount      decimal.Decimal `json:"totalAmount" validate:"gt=0"`
	PaymentType      string          `json:"paymentType" validate:"required,oneof=single monthly installment"`
	StartDate        string          `json:"startDate" validate:"required,datetime=2006-01-02"`
	EndDate          string          `json:"endDate" validate:"omitempty,datetime=2006-01-02"`
	Priority         int             `json:"priority"`
	Notes            string          `json:"notes" validate:"max=500"`
	Actor            string          `json:"-"`
}

// UpdateItemDTO представляет изменяемые поля позиции. nil - поле не меняется.
type UpdateItemDTO struct {
	Name        *string          `json:"name" validate:"omitempty,min=1,max=200"`
	Notes       *string          `json:"notes" validate:"omitempty,max=500"`
	Priority    *int             `json:"priority"`
	TotalAmount *decimal.Decimal `json:"totalAmount"`
	Actor       string           `json:"-"`
	Reason      string           `json:"reason" validate:"max=200"`
}

// ManualPaymentDTO представляет ручной платеж по одной позиции
type ManualPaymentDTO struct {
	Amount  decimal.Decimal `json:"amount" validate:"gt=0"`
	Date    string          `json:"date" validate:"required,datetime=2006-01-02"`
	Method  string          `json:"method" validate:"max=50"`
	Notes   string          `json:"notes" validate:"max=500"`
	DueDate string          `json:"dueDate" validate:"omitempty,datetime=2006-01-02"`
	Actor   string          `json:"-"`
}

// ItemQuery задает выборку позиций. Категория не обязательна.
type ItemQuery struct {
	CategoryID       *uint
	FixedCategoryID  *uint
	FixedSubOptionID *uint
	ProjectID        *uint
	IncludeDeleted   bool
}

// ItemService предоставляет методы для работы с позициями к оплате
type ItemService struct {
	store     repository.Store
	audit     *AuditService
	validator *validator.Validate
	now       Clock
}

// NewItemService создает новый экземпляр ItemService
func NewItemService(store repository.Store, audit *AuditService) *ItemService {
	return &ItemService{
		store:     store,
		audit:     audit,
		validator: newValidator(),
		now:       time.Now,
	}
}

// SetClock подменяет источник текущего времени
func (s *ItemService) SetClock(clock Clock) {
	s.now = clock
}

func (s *ItemService) today() time.Time {
	return models.DateOnly(s.now())
}

// CreateItem создает позицию и ее график в одной транзакции вместе с записью аудита
func (s *ItemService) CreateItem(ctx context.Context, dto CreateItemDTO) (item *models.PaymentItem, err error) {
	startTime := time.Now()
	defer func() { utils.LogOperation("create_item", startTime, err) }()

	item, plan, err := s.buildItem(dto)
	if err != nil {
		return nil, err
	}

	var records []models.PaymentRecord
	err = s.store.WithinTx(ctx, func(tx repository.Store) error {
		if err := tx.UpsertItem(ctx, item); err != nil {
			return err
		}
		records = GenerateSchedule(item)
		if err := tx.InsertRecords(ctx, records); err != nil {
			return err
		}
		return s.audit.Record(ctx, tx, AuditEntry{
			Table:     AuditTableItems,
			RecordID:  item.ID,
			Action:    models.AuditActionInsert,
			NewValues: item.Snapshot(),
			Actor:     dto.Actor,
			Reason:    plan.Reason(),
		})
	})
	if err != nil {
		return nil, err
	}

	item.Records = records
	utils.GetMetrics().RecordSchedule(len(records))
	utils.LogInfo("Создана позиция %d (%s), записей графика: %d", item.ID, plan.Reason(), len(records))
	return item, nil
}

// buildItem проверяет запрос и собирает позицию без сохранения
func (s *ItemService) buildItem(dto CreateItemDTO) (*models.PaymentItem, SchedulePlan, error) {
	if err := validateRequest(s.validator, dto); err != nil {
		return nil, SchedulePlan{}, err
	}
	if err := checkMoney("TotalAmount", dto.TotalAmount); err != nil {
		return nil, SchedulePlan{}, err
	}
	category, err := categoryFromIDs(dto.CategoryID, dto.FixedCategoryID, dto.FixedSubOptionID)
	if err != nil {
		return nil, SchedulePlan{}, err
	}
	start, err := parseDate("StartDate", dto.StartDate)
	if err != nil {
		return nil, SchedulePlan{}, err
	}
	var end *time.Time
	if dto.EndDate != "" {
		e, err := parseDate("EndDate", dto.EndDate)
		if err != nil {
			return nil, SchedulePlan{}, err
		}
		end = &e
	}
	plan, err := ResolvePlan(models.PaymentType(dto.PaymentType), dto.TotalAmount, start, end)
	if err != nil {
		return nil, SchedulePlan{}, err
	}

	item := &models.PaymentItem{
		ProjectID:   dto.ProjectID,
		Name:        dto.Name,
		TotalAmount: dto.TotalAmount,
		PaidAmount:  decimal.Zero,
		PaymentType: plan.Type,
		StartDate:   plan.Start,
		EndDate:     plan.End,
		Priority:    dto.Priority,
		Notes:       dto.Notes,
	}
	if err := item.SetCategory(category); err != nil {
		return nil, SchedulePlan{}, &ValidationError{Problems: []string{err.Error()}}
	}
	item.RefreshStatus(s.today())
	return item, plan, nil
}

// GetItem возвращает позицию по id, включая удаленные
func (s *ItemService) GetItem(ctx context.Context, id uint) (*models.PaymentItem, error) {
	item, err := s.store.GetItem(ctx, id)
	if err != nil {
		return nil, itemNotFound(id, err)
	}
	return item, nil
}

// ListItems возвращает позиции по области
func (s *ItemService) ListItems(ctx context.Context, q ItemQuery) ([]models.PaymentItem, error) {
	category, err := scopeCategory(q.CategoryID, q.FixedCategoryID, q.FixedSubOptionID)
	if err != nil {
		return nil, err
	}
	return s.store.ListItemsByScope(ctx, repository.ItemFilter{
		Category:       category,
		ProjectID:      q.ProjectID,
		IncludeDeleted: q.IncludeDeleted,
	})
}

// ListRecords возвращает график и платежи позиции
func (s *ItemService) ListRecords(ctx context.Context, id uint) ([]models.PaymentRecord, error) {
	if _, err := s.GetItem(ctx, id); err != nil {
		return nil, err
	}
	return s.store.ListRecords(ctx, id)
}

// UpdateItem меняет редактируемые поля позиции
func (s *ItemService) UpdateItem(ctx context.Context, id uint, dto UpdateItemDTO) (item *models.PaymentItem, err error) {
	startTime := time.Now()
	defer func() { utils.LogOperation("update_item", startTime, err) }()

	if err := validateRequest(s.validator, dto); err != nil {
		return nil, err
	}
	if dto.TotalAmount != nil {
		if err := checkMoney("TotalAmount", *dto.TotalAmount); err != nil {
			return nil, err
		}
	}

	err = s.store.WithinTx(ctx, func(tx repository.Store) error {
		current, err := tx.LockItem(ctx, id)
		if err != nil {
			return itemNotFound(id, err)
		}
		if current.IsDeleted {
			return newValidationError("позиция %d удалена", id)
		}
		before := current.Snapshot()

		if dto.Name != nil {
			current.Name = *dto.Name
		}
		if dto.Notes != nil {
			current.Notes = *dto.Notes
		}
		if dto.Priority != nil {
			current.Priority = *dto.Priority
		}
		if dto.TotalAmount != nil {
			if current.PaidAmount.GreaterThan(dto.TotalAmount.Add(models.Tolerance)) {
				return newValidationError("сумма %s меньше уже оплаченной %s",
					dto.TotalAmount.StringFixed(models.MoneyPlaces), current.PaidAmount.StringFixed(models.MoneyPlaces))
			}
			current.TotalAmount = *dto.TotalAmount
		}
		current.RefreshStatus(s.today())

		after := current.Snapshot()
		changed := Diff(before, after)
		if len(changed) == 0 {
			item = current
			return nil
		}
		if err := tx.UpsertItem(ctx, current); err != nil {
			return err
		}
		item = current
		reason := dto.Reason
		if reason == "" {
			reason = "edit"
		}
		return s.audit.Record(ctx, tx, AuditEntry{
			Table:         AuditTableItems,
			RecordID:      id,
			Action:        models.AuditActionUpdate,
			OldValues:     before,
			NewValues:     after,
			ChangedFields: changed,
			Actor:         dto.Actor,
			Reason:        reason,
		})
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// RecordPayment записывает ручной платеж по одной позиции
func (s *ItemService) RecordPayment(ctx context.Context, id uint, dto ManualPaymentDTO) (record *models.PaymentRecord, err error) {
	startTime := time.Now()
	defer func() { utils.LogOperation("manual_payment", startTime, err) }()

	if err := validateRequest(s.validator, dto); err != nil {
		return nil, err
	}
	if err := checkMoney("Amount", dto.Amount); err != nil {
		return nil, err
	}
	date, err := parseDate("Date", dto.Date)
	if err != nil {
		return nil, err
	}
	var explicitDue *time.Time
	if dto.DueDate != "" {
		d, err := parseDate("DueDate", dto.DueDate)
		if err != nil {
			return nil, err
		}
		explicitDue = &d
	}

	var item *models.PaymentItem
	err = s.store.WithinTx(ctx, func(tx repository.Store) error {
		current, err := tx.LockItem(ctx, id)
		if err != nil {
			return itemNotFound(id, err)
		}
		if current.IsDeleted {
			return newValidationError("позиция %d удалена", id)
		}
		if current.PaidAmount.Add(dto.Amount).GreaterThan(current.TotalAmount.Add(models.Tolerance)) {
			return newValidationError("платеж %s превышает остаток %s",
				dto.Amount.StringFixed(models.MoneyPlaces), current.Owed().StringFixed(models.MoneyPlaces))
		}

		due := explicitDue
		if due == nil {
			planned, err := tx.ListRecords(ctx, id)
			if err != nil {
				return err
			}
			d := dueForPayment(current, planned, current.PaidAmount)
			due = &d
		}

		before := current.Snapshot()
		record = &models.PaymentRecord{
			ItemID:  id,
			Amount:  dto.Amount,
			Date:    date,
			Method:  dto.Method,
			Notes:   dto.Notes,
			Kind:    models.RecordKindManual,
			DueDate: due,
		}
		if err := tx.InsertRecord(ctx, record); err != nil {
			return err
		}
		current.PaidAmount = current.PaidAmount.Add(dto.Amount)
		current.RefreshStatus(s.today())
		if err := tx.UpsertItem(ctx, current); err != nil {
			return err
		}
		item = current
		return s.audit.Record(ctx, tx, AuditEntry{
			Table:     AuditTableItems,
			RecordID:  id,
			Action:    models.AuditActionUpdate,
			OldValues: before,
			NewValues: current.Snapshot(),
			Actor:     dto.Actor,
			Reason:    "manual_payment",
		})
	})
	if err != nil {
		return nil, err
	}

	utils.LogInfo("Ручной платеж %s по позиции %d, статус %s", dto.Amount.StringFixed(models.MoneyPlaces), id, item.Status)
	return record, nil
}

// SoftDelete помечает позицию удаленной
func (s *ItemService) SoftDelete(ctx context.Context, id uint, actor, reason string) (*models.PaymentItem, error) {
	if reason == "" {
		reason = "soft_delete"
	}
	return s.setDeleted(ctx, id, true, actor, reason)
}

// Restore возвращает удаленную позицию; остальные поля не меняются
func (s *ItemService) Restore(ctx context.Context, id uint, actor, reason string) (*models.PaymentItem, error) {
	if reason == "" {
		reason = "restore"
	}
	return s.setDeleted(ctx, id, false, actor, reason)
}

func (s *ItemService) setDeleted(ctx context.Context, id uint, deleted bool, actor, reason string) (item *models.PaymentItem, err error) {
	startTime := time.Now()
	op := "restore_item"
	action := models.AuditActionRestore
	if deleted {
		op = "soft_delete_item"
		action = models.AuditActionDelete
	}
	defer func() { utils.LogOperation(op, startTime, err) }()

	err = s.store.WithinTx(ctx, func(tx repository.Store) error {
		current, err := tx.LockItem(ctx, id)
		if err != nil {
			return itemNotFound(id, err)
		}
		if current.IsDeleted == deleted {
			if deleted {
				return newValidationError("позиция %d уже удалена", id)
			}
			return newValidationError("позиция %d не удалена", id)
		}
		before := current.Snapshot()

		if deleted {
			err = tx.SoftDelete(ctx, id, s.now().UTC())
		} else {
			err = tx.Restore(ctx, id)
		}
		if err != nil {
			return itemNotFound(id, err)
		}
		if item, err = tx.GetItem(ctx, id); err != nil {
			return err
		}
		return s.audit.Record(ctx, tx, AuditEntry{
			Table:     AuditTableItems,
			RecordID:  id,
			Action:    action,
			OldValues: before,
			NewValues: item.Snapshot(),
			Actor:     actor,
			Reason:    reason,
		})
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// Purge окончательно удаляет позицию, помеченную удаленной. Журнал аудита сохраняется.
func (s *ItemService) Purge(ctx context.Context, id uint, actor, reason string) (err error) {
	startTime := time.Now()
	defer func() { utils.LogOperation("purge_item", startTime, err) }()

	if reason == "" {
		reason = "permanent_delete"
	}
	return s.store.WithinTx(ctx, func(tx repository.Store) error {
		current, err := tx.LockItem(ctx, id)
		if err != nil {
			return itemNotFound(id, err)
		}
		if !current.IsDeleted {
			return newValidationError("позиция %d должна быть сначала удалена", id)
		}
		records, err := tx.ListRecords(ctx, id)
		if err != nil {
			return err
		}
		before := current.Snapshot()
		before["recordCount"] = len(records)

		if err := tx.Purge(ctx, id); err != nil {
			return itemNotFound(id, err)
		}
		return s.audit.Record(ctx, tx, AuditEntry{
			Table:     AuditTableItems,
			RecordID:  id,
			Action:    models.AuditActionPermanentDelete,
			OldValues: before,
			Actor:     actor,
			Reason:    reason,
		})
	})
}

// scopeCategory собирает необязательную категорию области.
// Фиксированная категория без подварианта означает всю категорию.
func scopeCategory(categoryID, fixedCategoryID, fixedSubOptionID *uint) (models.Category, error) {
	switch {
	case categoryID != nil && fixedCategoryID != nil:
		return nil, newValidationError("нельзя указывать одновременно CategoryID и FixedCategoryID")
	case categoryID != nil:
		return models.FlexibleCategory{ID: *categoryID}, nil
	case fixedCategoryID != nil:
		c := models.FixedCategory{ID: *fixedCategoryID}
		if fixedSubOptionID != nil {
			c.SubOptionID = *fixedSubOptionID
		}
		return c, nil
	case fixedSubOptionID != nil:
		return nil, newValidationError("FixedSubOptionID требует FixedCategoryID")
	}
	return nil, nil
}
