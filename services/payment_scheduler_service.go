package services

import (
	"context"
	"time"

	"github.com/biglong-lab/woyu-money-sub004/models"
	"github.com/biglong-lab/woyu-money-sub004/repository"
	"github.com/biglong-lab/woyu-money-sub004/utils"
)

// PaymentSchedulerService периодически пересчитывает статусы открытых позиций,
// чтобы просроченные позиции получали статус overdue без обращения к ним
type PaymentSchedulerService struct {
	store repository.Store
	audit *AuditService
	now   Clock
}

// NewPaymentSchedulerService создает новый экземпляр PaymentSchedulerService
func NewPaymentSchedulerService(store repository.Store, audit *AuditService) *PaymentSchedulerService {
	return &PaymentSchedulerService{
		store: store,
		audit: audit,
		now:   time.Now,
	}
}

// SetClock подменяет источник текущего времени
func (s *PaymentSchedulerService) SetClock(clock Clock) {
	s.now = clock
}

// Start запускает пересчет с интервалом interval до отмены ctx
func (s *PaymentSchedulerService) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := s.SweepStatuses(ctx); err != nil {
					utils.LogError("Ошибка при пересчете статусов: %v", err)
				}
			}
		}
	}()
}

// SweepStatuses пересчитывает статусы и возвращает число измененных позиций
func (s *PaymentSchedulerService) SweepStatuses(ctx context.Context) (changed int, err error) {
	startTime := time.Now()
	defer func() { utils.LogOperation("status_sweep", startTime, err) }()

	today := models.DateOnly(s.now())
	err = s.store.WithinTx(ctx, func(tx repository.Store) error {
		changed = 0
		items, err := tx.ListItemsByScope(ctx, repository.ItemFilter{OnlyOpen: true, ForUpdate: true})
		if err != nil {
			return err
		}
		for i := range items {
			item := &items[i]
			before := item.Snapshot()
			if !item.RefreshStatus(today) {
				continue
			}
			if err := tx.UpsertItem(ctx, item); err != nil {
				return err
			}
			if err := s.audit.Record(ctx, tx, AuditEntry{
				Table:     AuditTableItems,
				RecordID:  item.ID,
				Action:    models.AuditActionUpdate,
				OldValues: before,
				NewValues: item.Snapshot(),
				Actor:     SystemActor,
				Reason:    "status_sweep",
			}); err != nil {
				return err
			}
			changed++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if changed > 0 {
		utils.LogInfo("Пересчитаны статусы %d позиций", changed)
	}
	return changed, nil
}
