package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Period - одна плановая часть графика
type Period struct {
	Index  int             // номер периода с 1
	Date   time.Time       // плановая дата
	Amount decimal.Decimal // сумма периода
}

// SplitAmount делит сумму на n периодов. Ежемесячный план округляет долю,
// рассрочка округляет вниз; разница всегда уходит в первый период, поэтому
// сумма частей равна total. Если округленная доля оставляет первому периоду
// отрицательную сумму, ежемесячный план тоже округляет вниз.
func SplitAmount(total decimal.Decimal, n int, planType PaymentType) []decimal.Decimal {
	if n <= 0 {
		return nil
	}
	count := decimal.NewFromInt(int64(n))
	rest := decimal.NewFromInt(int64(n - 1))
	floor := total.Div(count).RoundFloor(MoneyPlaces)
	base := floor
	if planType != PaymentTypeInstallment {
		base = total.Div(count).Round(MoneyPlaces)
		// округление вверх не должно делать первый период отрицательным
		if total.Sub(base.Mul(rest)).IsNegative() {
			base = floor
		}
	}

	parts := make([]decimal.Decimal, n)
	parts[0] = total.Sub(base.Mul(rest))
	for i := 1; i < n; i++ {
		parts[i] = base
	}
	return parts
}

// PlanPeriods разворачивает план в календарные периоды от start до end включительно
func PlanPeriods(total decimal.Decimal, planType PaymentType, start, end time.Time) []Period {
	n := MonthsBetween(start, end)
	parts := SplitAmount(total, n, planType)
	periods := make([]Period, len(parts))
	for i, amount := range parts {
		periods[i] = Period{
			Index:  i + 1,
			Date:   AddMonths(start, i),
			Amount: amount,
		}
	}
	return periods
}
