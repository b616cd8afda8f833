package services

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/biglong-lab/woyu-money-sub004/models"
)

func timePtr(t time.Time) *time.Time {
	return &t
}

// scenarioInput дает месяц с budget=1000, scheduled=500, recurring=2000,
// paidCurrent=300 и paidCarryOver=200
func scenarioInput() ForecastInput {
	converted := uint(99)
	return ForecastInput{
		Today: models.Date(2026, 10, 14),
		BudgetPlans: []models.BudgetPlan{{
			ID:   1,
			Name: "Бюджет",
			Items: []models.BudgetItem{
				{ID: 1, Name: "Ремонт", Amount: dec("1000"), PaymentType: models.PaymentTypeSingle, StartDate: models.Date(2026, 10, 5)},
				{ID: 2, Name: "Уже позиция", Amount: dec("777"), PaymentType: models.PaymentTypeSingle, StartDate: models.Date(2026, 10, 5), ConvertedItemID: &converted},
			},
		}},
		Schedules: []models.PaymentSchedule{
			{ID: 1, Name: "Поставщик", Amount: dec("500"), ScheduledDate: models.Date(2026, 10, 20)},
			{ID: 2, Name: "Закрыто", Amount: dec("400"), ScheduledDate: models.Date(2026, 10, 21), IsCompleted: true},
		},
		Items: []models.PaymentItem{{
			ID:          1,
			Name:        "Аренда",
			TotalAmount: dec("4000"),
			PaidAmount:  dec("0"),
			PaymentType: models.PaymentTypeMonthly,
			StartDate:   models.Date(2026, 10, 1),
			EndDate:     timePtr(models.Date(2026, 11, 1)),
		}},
		PaidRecords: []models.PaymentRecord{
			{ID: 1, ItemID: 7, Amount: dec("300"), Date: models.Date(2026, 10, 3), Kind: models.RecordKindManual, DueDate: timePtr(models.Date(2026, 10, 1))},
			{ID: 2, ItemID: 8, Amount: dec("200"), Date: models.Date(2026, 10, 5), Kind: models.RecordKindUnifiedPayment, DueDate: timePtr(models.Date(2026, 9, 1))},
			{ID: 3, ItemID: 8, Amount: dec("999"), Date: models.Date(2026, 10, 5), Kind: models.RecordKindPlanned},
		},
	}
}

func TestBuildForecastMonthTotal(t *testing.T) {
	f, err := BuildForecast(scenarioInput(), 2, AllVisible())
	if err != nil {
		t.Fatalf("forecast: %v", err)
	}
	m := f.Months[0]
	if m.Month != "2026-10" {
		t.Errorf("month = %s", m.Month)
	}
	assertAmount(t, "budget", m.Budget, "1000")
	assertAmount(t, "scheduled", m.Scheduled, "500")
	assertAmount(t, "estimated", m.Estimated, "0")
	assertAmount(t, "recurring", m.Recurring, "2000")
	assertAmount(t, "paidCurrent", m.PaidCurrent, "300")
	assertAmount(t, "paidCarryOver", m.PaidCarryOver, "200")
	assertAmount(t, "total", m.Total, "4000")

	next := f.Months[1]
	assertAmount(t, "next recurring", next.Recurring, "2000")
	assertAmount(t, "next total", next.Total, "2000")
}

func TestBuildForecastSummary(t *testing.T) {
	f, err := BuildForecast(scenarioInput(), 3, AllVisible())
	if err != nil {
		t.Fatalf("forecast: %v", err)
	}
	s := f.Summary
	assertAmount(t, "grand total", s.GrandTotal, "6000")
	assertAmount(t, "average", s.MonthlyAverage, "2000")
	if s.PeakMonth != "2026-10" || s.TroughMonth != "2026-12" {
		t.Errorf("peak=%s trough=%s", s.PeakMonth, s.TroughMonth)
	}
	assertAmount(t, "trend", s.TrendAmount, "-2000")
	assertAmount(t, "trend percent", s.TrendPercent, "-50")
}

func TestBuildForecastHiddenBucketsStillReported(t *testing.T) {
	vis, err := ParseVisibility("budget, paid")
	if err != nil {
		t.Fatalf("parse visibility: %v", err)
	}
	f, err := BuildForecast(scenarioInput(), 1, vis)
	if err != nil {
		t.Fatalf("forecast: %v", err)
	}
	m := f.Months[0]
	assertAmount(t, "budget", m.Budget, "1000")
	assertAmount(t, "paidCurrent", m.PaidCurrent, "300")
	assertAmount(t, "total", m.Total, "2500")

	if _, err := ParseVisibility("budget,unknown"); !IsValidation(err) {
		t.Errorf("unknown bucket err = %v, want validation error", err)
	}
}

func TestBuildForecastIsPure(t *testing.T) {
	in := scenarioInput()
	first, err := BuildForecast(in, 6, AllVisible())
	if err != nil {
		t.Fatalf("forecast: %v", err)
	}
	second, _ := BuildForecast(in, 6, AllVisible())
	if !reflect.DeepEqual(first, second) {
		t.Errorf("two runs over the same input differ")
	}
	if !reflect.DeepEqual(in, scenarioInput()) {
		t.Errorf("input was modified")
	}
}

func TestBuildForecastHorizonBounds(t *testing.T) {
	for _, months := range []int{0, -1, MaxForecastMonths + 1} {
		if _, err := BuildForecast(scenarioInput(), months, AllVisible()); !IsValidation(err) {
			t.Errorf("months=%d err = %v, want validation error", months, err)
		}
	}
	f, err := BuildForecast(ForecastInput{Today: models.Date(2026, 1, 1)}, MaxForecastMonths, AllVisible())
	if err != nil {
		t.Fatalf("max horizon: %v", err)
	}
	if len(f.Months) != MaxForecastMonths || f.Months[35].Month != "2028-12" {
		t.Errorf("months = %d, last = %s", len(f.Months), f.Months[len(f.Months)-1].Month)
	}
	assertAmount(t, "empty trend percent", f.Summary.TrendPercent, "0")
}

func TestRecurringSkipsPaidPeriods(t *testing.T) {
	in := ForecastInput{
		Today: models.Date(2026, 1, 10),
		Items: []models.PaymentItem{{
			ID:          1,
			TotalAmount: dec("3000"),
			PaidAmount:  dec("1500"),
			PaymentType: models.PaymentTypeMonthly,
			StartDate:   models.Date(2026, 1, 1),
			EndDate:     timePtr(models.Date(2026, 3, 1)),
		}},
	}
	f, err := BuildForecast(in, 3, AllVisible())
	if err != nil {
		t.Fatalf("forecast: %v", err)
	}
	want := []string{"0", "500", "1000"}
	for i, m := range f.Months {
		assertAmount(t, "recurring "+m.Month, m.Recurring, want[i])
	}
}

func TestForecastServiceLoadsStore(t *testing.T) {
	env := setupTestEnv(t, models.Date(2026, 10, 14))
	ctx := context.Background()

	env.mustCreate(t, singleItem("Счет", "800", "2026-11-10", 1))
	paid := env.mustCreate(t, singleItem("Оплаченный", "100", "2026-10-01", 1))
	if _, err := env.items.RecordPayment(ctx, paid.ID, ManualPaymentDTO{Amount: dec("100"), Date: "2026-10-14"}); err != nil {
		t.Fatalf("payment: %v", err)
	}
	if err := env.store.CreateSchedule(ctx, &models.PaymentSchedule{Name: "Поставщик", Amount: dec("250"), ScheduledDate: models.Date(2026, 12, 1)}); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if err := env.store.CreateBudgetPlan(ctx, &models.BudgetPlan{
		Name: "План",
		Items: []models.BudgetItem{{
			Name:        "Закупка",
			Amount:      dec("600"),
			PaymentType: models.PaymentTypeMonthly,
			StartDate:   models.Date(2026, 10, 1),
			EndDate:     timePtr(models.Date(2026, 12, 1)),
		}},
	}); err != nil {
		t.Fatalf("budget plan: %v", err)
	}

	f, err := env.forecast.GetForecast(ctx, 3, AllVisible())
	if err != nil {
		t.Fatalf("forecast: %v", err)
	}
	if len(f.Months) != 3 {
		t.Fatalf("months = %d", len(f.Months))
	}
	oct, nov, december := f.Months[0], f.Months[1], f.Months[2]
	assertAmount(t, "oct paid", oct.PaidCurrent, "100")
	assertAmount(t, "oct budget", oct.Budget, "200")
	assertAmount(t, "nov estimated", nov.Estimated, "800")
	assertAmount(t, "dec scheduled", december.Scheduled, "250")

	def, err := env.forecast.GetForecast(ctx, 0, AllVisible())
	if err != nil {
		t.Fatalf("default horizon: %v", err)
	}
	if len(def.Months) != 6 {
		t.Errorf("default months = %d, want 6", len(def.Months))
	}
}

func TestForecastWorkbook(t *testing.T) {
	forecast, err := BuildForecast(scenarioInput(), 2, AllVisible())
	if err != nil {
		t.Fatalf("forecast: %v", err)
	}
	book, err := ForecastWorkbook(forecast)
	if err != nil {
		t.Fatalf("workbook: %v", err)
	}
	defer book.Close()

	if got, _ := book.GetCellValue(forecastSheet, "A2"); got != "2026-10" {
		t.Errorf("A2 = %q, want 2026-10", got)
	}
	if got, _ := book.GetCellValue(forecastSheet, "H2"); got != "4000" {
		t.Errorf("H2 = %q, want 4000", got)
	}
	if got, _ := book.GetCellValue(forecastSheet, "B5"); got != "6000" {
		t.Errorf("grand total cell = %q, want 6000", got)
	}
}
