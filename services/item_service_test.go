package services

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/biglong-lab/woyu-money-sub004/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func TestCreateMonthlyItemGeneratesSchedule(t *testing.T) {
	env := setupTestEnv(t, models.Date(2026, 1, 1))
	ctx := context.Background()

	item := env.mustCreate(t, CreateItemDTO{
		CategoryID:  uintPtr(1),
		Name:        "Аренда офиса",
		TotalAmount: dec("12000"),
		PaymentType: "monthly",
		StartDate:   "2026-01-01",
		EndDate:     "2026-04-01",
		Actor:       "tester",
	})

	records, err := env.items.ListRecords(ctx, item.ID)
	if err != nil {
		t.Fatalf("list records: %v", err)
	}
	if len(records) != 4 {
		t.Fatalf("len(records) = %d, want 4", len(records))
	}
	for i, r := range records {
		assertAmount(t, "period amount", r.Amount, "3000")
		want := models.Date(2026, 1, 1).AddDate(0, i, 0)
		if !r.Date.Equal(want) {
			t.Errorf("records[%d].Date = %s, want %s", i, r.Date, want)
		}
		if r.Kind != models.RecordKindPlanned || r.Method != "scheduled" {
			t.Errorf("records[%d] kind=%s method=%s", i, r.Kind, r.Method)
		}
		if r.PeriodIndex == nil || *r.PeriodIndex != i+1 {
			t.Errorf("records[%d].PeriodIndex = %v", i, r.PeriodIndex)
		}
	}
	if item.Status != models.ItemStatusPending {
		t.Errorf("status = %s, want pending", item.Status)
	}

	history, err := env.audit.History(ctx, AuditTableItems, item.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 || history[0].Action != models.AuditActionInsert {
		t.Fatalf("history = %+v, want one INSERT", history)
	}
	if history[0].Reason != "create:monthly" || history[0].Actor != "tester" {
		t.Errorf("reason=%q actor=%q", history[0].Reason, history[0].Actor)
	}
}

func TestCreateInstallmentPutsRemainderFirst(t *testing.T) {
	env := setupTestEnv(t, models.Date(2026, 1, 1))

	item := env.mustCreate(t, CreateItemDTO{
		CategoryID:  uintPtr(1),
		Name:        "Ноутбук",
		TotalAmount: dec("1000"),
		PaymentType: "installment",
		StartDate:   "2026-01-15",
		EndDate:     "2026-03-15",
	})

	want := []string{"333.34", "333.33", "333.33"}
	if len(item.Records) != len(want) {
		t.Fatalf("len(records) = %d, want %d", len(item.Records), len(want))
	}
	for i, r := range item.Records {
		assertAmount(t, "installment", r.Amount, want[i])
	}
}

func TestCreateMonthlyWithoutEndDateFallsBackToSingle(t *testing.T) {
	env := setupTestEnv(t, models.Date(2026, 1, 1))
	ctx := context.Background()

	item := env.mustCreate(t, CreateItemDTO{
		CategoryID:  uintPtr(1),
		Name:        "Подписка",
		TotalAmount: dec("500"),
		PaymentType: "monthly",
		StartDate:   "2026-02-01",
	})
	if item.PaymentType != models.PaymentTypeSingle {
		t.Errorf("payment type = %s, want single", item.PaymentType)
	}
	if len(item.Records) != 0 {
		t.Errorf("single item got %d schedule records", len(item.Records))
	}
	history, _ := env.audit.History(ctx, AuditTableItems, item.ID)
	if len(history) != 1 || history[0].Reason != "create:single:fallback" {
		t.Errorf("history = %+v", history)
	}
}

func TestCreateItemValidation(t *testing.T) {
	env := setupTestEnv(t, models.Date(2026, 1, 1))
	ctx := context.Background()

	valid := CreateItemDTO{
		CategoryID:  uintPtr(1),
		Name:        "Аренда",
		TotalAmount: dec("1200"),
		PaymentType: "monthly",
		StartDate:   "2026-01-01",
		EndDate:     "2026-12-01",
	}
	cases := map[string]func(d *CreateItemDTO){
		"zero amount":       func(d *CreateItemDTO) { d.TotalAmount = dec("0") },
		"negative amount":   func(d *CreateItemDTO) { d.TotalAmount = dec("-10") },
		"sub-cent amount":   func(d *CreateItemDTO) { d.TotalAmount = dec("10.001") },
		"empty name":        func(d *CreateItemDTO) { d.Name = "" },
		"unknown type":      func(d *CreateItemDTO) { d.PaymentType = "weekly" },
		"bad start date":    func(d *CreateItemDTO) { d.StartDate = "01.01.2026" },
		"bad end date":      func(d *CreateItemDTO) { d.EndDate = "2026-13-01" },
		"end before start":  func(d *CreateItemDTO) { d.EndDate = "2025-12-01" },
		"end equals start":  func(d *CreateItemDTO) { d.EndDate = "2026-01-01" },
		"no category":       func(d *CreateItemDTO) { d.CategoryID = nil },
		"two categories":    func(d *CreateItemDTO) { d.FixedCategoryID = uintPtr(3); d.FixedSubOptionID = uintPtr(4) },
		"fixed without sub": func(d *CreateItemDTO) { d.CategoryID = nil; d.FixedCategoryID = uintPtr(3) },
		"amount below cents per period": func(d *CreateItemDTO) {
			d.TotalAmount = dec("0.05")
		},
	}
	for name, mutate := range cases {
		dto := valid
		mutate(&dto)
		_, err := env.items.CreateItem(ctx, dto)
		if !IsValidation(err) {
			t.Errorf("%s: err = %v, want validation error", name, err)
		}
	}

	if n := env.count(t, &models.PaymentItem{}); n != 0 {
		t.Errorf("items saved after failed validation: %d", n)
	}
	if n := env.count(t, &models.AuditLogEntry{}); n != 0 {
		t.Errorf("audit rows after failed validation: %d", n)
	}
}

func TestCreateItemRollsBackWhenScheduleFails(t *testing.T) {
	env := setupTestEnv(t, models.Date(2026, 1, 1))
	ctx := context.Background()

	err := env.db.Callback().Create().Before("gorm:create").Register("fail_records", func(tx *gorm.DB) {
		if tx.Statement.Table == "payment_records" {
			tx.AddError(errors.New("сбой записи графика"))
		}
	})
	if err != nil {
		t.Fatalf("register callback: %v", err)
	}

	_, err = env.items.CreateItem(ctx, CreateItemDTO{
		CategoryID:  uintPtr(1),
		Name:        "Аренда",
		TotalAmount: dec("12000"),
		PaymentType: "monthly",
		StartDate:   "2026-01-01",
		EndDate:     "2026-04-01",
	})
	if err == nil {
		t.Fatal("expected error from failing schedule insert")
	}
	if n := env.count(t, &models.PaymentItem{}); n != 0 {
		t.Errorf("items = %d, want 0 after rollback", n)
	}
	if n := env.count(t, &models.AuditLogEntry{}); n != 0 {
		t.Errorf("audit rows = %d, want 0 after rollback", n)
	}
}

func TestAuditFailureRollsBackMutation(t *testing.T) {
	env := setupTestEnv(t, models.Date(2026, 10, 14))
	ctx := context.Background()

	item := env.mustCreate(t, singleItem("Счет", "1000", "2026-10-01", 1))
	records := env.count(t, &models.PaymentRecord{})
	auditRows := env.count(t, &models.AuditLogEntry{})

	err := env.db.Callback().Create().Before("gorm:create").Register("fail_audit", func(tx *gorm.DB) {
		if tx.Statement.Table == "audit_log" {
			tx.AddError(errors.New("сбой записи аудита"))
		}
	})
	if err != nil {
		t.Fatalf("register callback: %v", err)
	}

	if _, err := env.alloc.PayScope(ctx, PayScopeDTO{
		CategoryID:  uintPtr(1),
		Amount:      dec("400"),
		PaymentDate: "2026-10-14",
	}); err == nil {
		t.Fatal("expected pay scope to fail when audit write fails")
	}
	if _, err := env.items.SoftDelete(ctx, item.ID, "tester", ""); err == nil {
		t.Fatal("expected soft delete to fail when audit write fails")
	}

	got, err := env.store.GetItem(ctx, item.ID)
	if err != nil {
		t.Fatalf("get item: %v", err)
	}
	assertAmount(t, "paid after rollback", got.PaidAmount, "0")
	if got.Status != item.Status {
		t.Errorf("status = %s, want %s", got.Status, item.Status)
	}
	if got.IsDeleted || got.DeletedAt != nil {
		t.Errorf("item deleted after rollback: isDeleted=%v deletedAt=%v", got.IsDeleted, got.DeletedAt)
	}
	if n := env.count(t, &models.PaymentRecord{}); n != records {
		t.Errorf("records = %d, want %d", n, records)
	}
	if n := env.count(t, &models.AuditLogEntry{}); n != auditRows {
		t.Errorf("audit rows = %d, want %d", n, auditRows)
	}
}

func TestCreateTinyMonthlyPlanHasNoNegativePeriods(t *testing.T) {
	env := setupTestEnv(t, models.Date(2026, 1, 1))

	item := env.mustCreate(t, CreateItemDTO{
		CategoryID:  uintPtr(1),
		Name:        "Подписка",
		TotalAmount: dec("0.09"),
		PaymentType: "monthly",
		StartDate:   "2026-01-01",
		EndDate:     "2026-06-01",
	})
	if len(item.Records) != 6 {
		t.Fatalf("records = %d, want 6", len(item.Records))
	}
	sum := decimal.Zero
	for _, r := range item.Records {
		if r.Amount.IsNegative() {
			t.Errorf("period %d amount = %s, want >= 0", *r.PeriodIndex, r.Amount)
		}
		sum = sum.Add(r.Amount)
	}
	assertAmount(t, "schedule sum", sum, "0.09")
}

func TestSoftDeleteAndRestore(t *testing.T) {
	env := setupTestEnv(t, models.Date(2026, 1, 1))
	ctx := context.Background()

	created := env.mustCreate(t, singleItem("Налог", "700", "2026-03-01", 2))
	before, err := env.items.GetItem(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}

	deleted, err := env.items.SoftDelete(ctx, created.ID, "tester", "")
	if err != nil {
		t.Fatalf("soft delete: %v", err)
	}
	if !deleted.IsDeleted || deleted.DeletedAt == nil {
		t.Errorf("deleted item: isDeleted=%v deletedAt=%v", deleted.IsDeleted, deleted.DeletedAt)
	}
	visible, _ := env.items.ListItems(ctx, ItemQuery{CategoryID: uintPtr(2)})
	if len(visible) != 0 {
		t.Errorf("deleted item still listed")
	}
	if _, err := env.items.SoftDelete(ctx, created.ID, "tester", ""); !IsValidation(err) {
		t.Errorf("second delete err = %v, want validation error", err)
	}

	restored, err := env.items.Restore(ctx, created.ID, "tester", "")
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if !reflect.DeepEqual(before.Snapshot(), restored.Snapshot()) {
		t.Errorf("restored snapshot differs:\n before %v\n after  %v", before.Snapshot(), restored.Snapshot())
	}
	if !restored.UpdatedAt.Equal(before.UpdatedAt) {
		t.Errorf("updated_at changed: %s -> %s", before.UpdatedAt, restored.UpdatedAt)
	}

	history, err := env.audit.History(ctx, AuditTableItems, created.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	actions := make([]models.AuditAction, len(history))
	for i, h := range history {
		actions[i] = h.Action
	}
	want := []models.AuditAction{models.AuditActionRestore, models.AuditActionDelete, models.AuditActionInsert}
	if !reflect.DeepEqual(actions, want) {
		t.Fatalf("actions = %v, want %v", actions, want)
	}
	if got := history[1].Fields(); !reflect.DeepEqual(got, []string{"deletedAt", "isDeleted"}) {
		t.Errorf("delete changed fields = %v", got)
	}
}

func TestPurgeRequiresSoftDeleteAndKeepsAudit(t *testing.T) {
	env := setupTestEnv(t, models.Date(2026, 1, 1))
	ctx := context.Background()

	item := env.mustCreate(t, CreateItemDTO{
		CategoryID:  uintPtr(1),
		Name:        "Кредит",
		TotalAmount: dec("900"),
		PaymentType: "installment",
		StartDate:   "2026-01-01",
		EndDate:     "2026-03-01",
	})

	if err := env.items.Purge(ctx, item.ID, "tester", ""); !IsValidation(err) {
		t.Fatalf("purge of live item err = %v, want validation error", err)
	}
	if _, err := env.items.SoftDelete(ctx, item.ID, "tester", ""); err != nil {
		t.Fatalf("soft delete: %v", err)
	}
	if err := env.items.Purge(ctx, item.ID, "tester", "cleanup"); err != nil {
		t.Fatalf("purge: %v", err)
	}

	if _, err := env.items.GetItem(ctx, item.ID); !IsNotFound(err) {
		t.Errorf("get after purge err = %v, want not found", err)
	}
	if n := env.count(t, &models.PaymentRecord{}); n != 0 {
		t.Errorf("records = %d, want 0", n)
	}
	history, _ := env.audit.History(ctx, AuditTableItems, item.ID)
	if len(history) != 3 || history[0].Action != models.AuditActionPermanentDelete {
		t.Fatalf("history = %+v", history)
	}
	if len(history[0].NewValues) != 0 {
		t.Errorf("permanent delete new values = %v, want empty", history[0].NewValues)
	}
}

func TestUpdateItem(t *testing.T) {
	env := setupTestEnv(t, models.Date(2026, 1, 1))
	ctx := context.Background()

	item := env.mustCreate(t, singleItem("Связь", "300", "2026-01-20", 1))
	if _, err := env.items.RecordPayment(ctx, item.ID, ManualPaymentDTO{Amount: dec("200"), Date: "2026-01-05"}); err != nil {
		t.Fatalf("payment: %v", err)
	}

	total := dec("150")
	if _, err := env.items.UpdateItem(ctx, item.ID, UpdateItemDTO{TotalAmount: &total}); !IsValidation(err) {
		t.Errorf("total below paid err = %v, want validation error", err)
	}

	name := "Связь и интернет"
	priority := 3
	updated, err := env.items.UpdateItem(ctx, item.ID, UpdateItemDTO{Name: &name, Priority: &priority, Actor: "tester"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Name != name || updated.Priority != 3 {
		t.Errorf("updated = %+v", updated)
	}
	history, _ := env.audit.History(ctx, AuditTableItems, item.ID)
	if got := history[0].Fields(); !reflect.DeepEqual(got, []string{"name", "priority"}) {
		t.Errorf("changed fields = %v", got)
	}
	if history[0].Reason != "edit" {
		t.Errorf("reason = %q", history[0].Reason)
	}
}

func TestManualPayment(t *testing.T) {
	env := setupTestEnv(t, models.Date(2026, 2, 10))
	ctx := context.Background()

	item := env.mustCreate(t, CreateItemDTO{
		CategoryID:  uintPtr(1),
		Name:        "Аренда",
		TotalAmount: dec("3000"),
		PaymentType: "monthly",
		StartDate:   "2026-01-01",
		EndDate:     "2026-03-01",
	})

	record, err := env.items.RecordPayment(ctx, item.ID, ManualPaymentDTO{Amount: dec("1000"), Date: "2026-02-10", Method: "cash"})
	if err != nil {
		t.Fatalf("payment: %v", err)
	}
	if record.Kind != models.RecordKindManual {
		t.Errorf("kind = %s", record.Kind)
	}
	if record.DueDate == nil || !record.DueDate.Equal(models.Date(2026, 1, 1)) {
		t.Errorf("due date = %v, want first period", record.DueDate)
	}

	got, _ := env.items.GetItem(ctx, item.ID)
	assertAmount(t, "paid", got.PaidAmount, "1000")
	if got.Status != models.ItemStatusPartial {
		t.Errorf("status = %s, want partial", got.Status)
	}

	if _, err := env.items.RecordPayment(ctx, item.ID, ManualPaymentDTO{Amount: dec("2000.02"), Date: "2026-02-11"}); !IsValidation(err) {
		t.Errorf("overpayment err = %v, want validation error", err)
	}
	if _, err := env.items.RecordPayment(ctx, 999, ManualPaymentDTO{Amount: dec("1"), Date: "2026-02-11"}); !IsNotFound(err) {
		t.Errorf("unknown item err = %v, want not found", err)
	}
}
