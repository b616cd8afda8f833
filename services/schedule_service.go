package services

import (
	"fmt"
	"time"

	"github.com/biglong-lab/woyu-money-sub004/models"
	"github.com/shopspring/decimal"
)

// Способ и причины для записей графика
const (
	scheduledMethod      = "scheduled"
	reasonCreatePrefix   = "create:"
	reasonSingleFallback = "create:single:fallback"
)

// SchedulePlan - проверенный план оплаты позиции
type SchedulePlan struct {
	Type     models.PaymentType
	Start    time.Time
	End      *time.Time
	Fallback bool // плановый тип без даты окончания сведен к разовому
}

// Reason возвращает причину для записи аудита о создании позиции
func (p SchedulePlan) Reason() string {
	if p.Fallback {
		return reasonSingleFallback
	}
	return reasonCreatePrefix + string(p.Type)
}

// ResolvePlan проверяет тип и даты плана. Ежемесячный план и рассрочка без
// даты окончания становятся разовым платежом.
func ResolvePlan(planType models.PaymentType, total decimal.Decimal, start time.Time, end *time.Time) (SchedulePlan, error) {
	start = models.DateOnly(start)
	plan := SchedulePlan{Type: planType, Start: start}
	if end != nil {
		e := models.DateOnly(*end)
		plan.End = &e
	}

	switch planType {
	case models.PaymentTypeSingle:
		if plan.End != nil && plan.End.Before(start) {
			return SchedulePlan{}, newValidationError("дата окончания раньше даты начала")
		}
		return plan, nil
	case models.PaymentTypeMonthly, models.PaymentTypeInstallment:
	default:
		return SchedulePlan{}, newValidationError("неизвестный тип оплаты %q", planType)
	}

	if plan.End == nil {
		plan.Type = models.PaymentTypeSingle
		plan.Fallback = true
		return plan, nil
	}
	if !plan.End.After(start) {
		return SchedulePlan{}, newValidationError("для типа %s дата окончания должна быть позже даты начала", planType)
	}
	n := models.MonthsBetween(start, *plan.End)
	if total.LessThan(models.Tolerance.Mul(decimal.NewFromInt(int64(n)))) {
		return SchedulePlan{}, newValidationError("сумма %s меньше минимальной для %d периодов", total.StringFixed(models.MoneyPlaces), n)
	}
	return plan, nil
}

// GenerateSchedule строит плановые записи для позиции. Разовый платеж записей
// графика не порождает.
func GenerateSchedule(item *models.PaymentItem) []models.PaymentRecord {
	if item.PaymentType == models.PaymentTypeSingle || item.EndDate == nil {
		return nil
	}
	periods := models.PlanPeriods(item.TotalAmount, item.PaymentType, item.StartDate, *item.EndDate)
	records := make([]models.PaymentRecord, len(periods))
	for i, p := range periods {
		index := p.Index
		due := p.Date
		records[i] = models.PaymentRecord{
			ItemID:      item.ID,
			Amount:      p.Amount,
			Date:        p.Date,
			Method:      scheduledMethod,
			Notes:       fmt.Sprintf("Период %d из %d", p.Index, len(periods)),
			Kind:        models.RecordKindPlanned,
			PeriodIndex: &index,
			DueDate:     &due,
		}
	}
	return records
}

// dueForPayment возвращает плановую дату периода, который гасит платеж
// при уже оплаченной сумме paidBefore. Без графика - срок позиции.
func dueForPayment(item *models.PaymentItem, records []models.PaymentRecord, paidBefore decimal.Decimal) time.Time {
	covered := decimal.Zero
	for _, r := range records {
		if r.Kind != models.RecordKindPlanned {
			continue
		}
		covered = covered.Add(r.Amount)
		if covered.GreaterThan(paidBefore) {
			return r.Date
		}
	}
	return item.DueDate()
}
