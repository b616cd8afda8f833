package services

import (
	"context"
	"strings"
	"time"

	"github.com/biglong-lab/woyu-money-sub004/models"
	"github.com/biglong-lab/woyu-money-sub004/repository"
	"github.com/biglong-lab/woyu-money-sub004/utils"
	"github.com/shopspring/decimal"
)

// MaxForecastMonths - наибольший горизонт прогноза
const MaxForecastMonths = 36

// Visibility задает, какие группы входят в итог месяца
type Visibility struct {
	Budget    bool `json:"budget"`
	Scheduled bool `json:"scheduled"`
	Estimated bool `json:"estimated"`
	Recurring bool `json:"recurring"`
	Paid      bool `json:"paid"` // и paidCurrent, и paidCarryOver
}

// AllVisible возвращает видимость со всеми группами
func AllVisible() Visibility {
	return Visibility{Budget: true, Scheduled: true, Estimated: true, Recurring: true, Paid: true}
}

// ParseVisibility собирает видимость из списка скрытых групп через запятую
func ParseVisibility(hide string) (Visibility, error) {
	v := AllVisible()
	if strings.TrimSpace(hide) == "" {
		return v, nil
	}
	for _, name := range strings.Split(hide, ",") {
		switch strings.TrimSpace(name) {
		case "budget":
			v.Budget = false
		case "scheduled":
			v.Scheduled = false
		case "estimated":
			v.Estimated = false
		case "recurring":
			v.Recurring = false
		case "paid":
			v.Paid = false
		case "":
		default:
			return Visibility{}, newValidationError("неизвестная группа прогноза %q", name)
		}
	}
	return v, nil
}

// ForecastInput - данные для прогноза
type ForecastInput struct {
	Today       time.Time
	Items       []models.PaymentItem // открытые позиции
	BudgetPlans []models.BudgetPlan
	Schedules   []models.PaymentSchedule
	PaidRecords []models.PaymentRecord // фактические платежи в горизонте
}

// MonthForecast - суммы одного месяца по группам
type MonthForecast struct {
	Month         string          `json:"month"` // ГГГГ-ММ
	Budget        decimal.Decimal `json:"budget"`
	Scheduled     decimal.Decimal `json:"scheduled"`
	Estimated     decimal.Decimal `json:"estimated"`
	Recurring     decimal.Decimal `json:"recurring"`
	PaidCurrent   decimal.Decimal `json:"paidCurrent"`
	PaidCarryOver decimal.Decimal `json:"paidCarryOver"`
	Total         decimal.Decimal `json:"total"`
}

// ForecastSummary - сводка по горизонту
type ForecastSummary struct {
	GrandTotal     decimal.Decimal `json:"grandTotal"`
	MonthlyAverage decimal.Decimal `json:"monthlyAverage"`
	PeakMonth      string          `json:"peakMonth"`
	PeakAmount     decimal.Decimal `json:"peakAmount"`
	TroughMonth    string          `json:"troughMonth"`
	TroughAmount   decimal.Decimal `json:"troughAmount"`
	TrendAmount    decimal.Decimal `json:"trendAmount"`  // второй месяц минус первый
	TrendPercent   decimal.Decimal `json:"trendPercent"` // от первого месяца, 0 при нулевом первом
}

// Forecast - прогноз выплат по месяцам
type Forecast struct {
	Visibility Visibility      `json:"visibility"`
	Months     []MonthForecast `json:"months"`
	Summary    ForecastSummary `json:"summary"`
}

// BuildForecast считает прогноз на months месяцев начиная с месяца in.Today.
// Функция чистая: входные данные не меняются, результат зависит только от аргументов.
func BuildForecast(in ForecastInput, months int, vis Visibility) (*Forecast, error) {
	if months < 1 || months > MaxForecastMonths {
		return nil, newValidationError("горизонт прогноза должен быть от 1 до %d месяцев", MaxForecastMonths)
	}
	from := models.MonthStart(in.Today)

	result := &Forecast{Visibility: vis, Months: make([]MonthForecast, months)}
	for i := range result.Months {
		result.Months[i] = MonthForecast{
			Month:         models.AddMonths(from, i).Format("2006-01"),
			Budget:        decimal.Zero,
			Scheduled:     decimal.Zero,
			Estimated:     decimal.Zero,
			Recurring:     decimal.Zero,
			PaidCurrent:   decimal.Zero,
			PaidCarryOver: decimal.Zero,
			Total:         decimal.Zero,
		}
	}
	index := func(t time.Time) (int, bool) {
		i := models.MonthsBetween(from, t) - 1
		return i, i >= 0 && i < months
	}

	for _, plan := range in.BudgetPlans {
		for j := range plan.Items {
			b := &plan.Items[j]
			if b.ConvertedItemID != nil {
				continue
			}
			for _, p := range b.Periods() {
				if i, ok := index(p.Date); ok {
					result.Months[i].Budget = result.Months[i].Budget.Add(p.Amount)
				}
			}
		}
	}

	for _, sc := range in.Schedules {
		if sc.IsCompleted {
			continue
		}
		if i, ok := index(sc.ScheduledDate); ok {
			result.Months[i].Scheduled = result.Months[i].Scheduled.Add(sc.Amount)
		}
	}

	for k := range in.Items {
		item := &in.Items[k]
		if item.IsDeleted || !item.Owed().IsPositive() {
			continue
		}
		if item.PaymentType == models.PaymentTypeMonthly && item.EndDate != nil {
			addRecurring(result.Months, item, index)
			continue
		}
		if i, ok := index(item.DueDate()); ok {
			result.Months[i].Estimated = result.Months[i].Estimated.Add(item.Owed())
		}
	}

	for k := range in.PaidRecords {
		r := &in.PaidRecords[k]
		if !r.IsPayment() {
			continue
		}
		i, ok := index(r.Date)
		if !ok {
			continue
		}
		if r.DueDate != nil && !models.SameMonth(*r.DueDate, r.Date) {
			result.Months[i].PaidCarryOver = result.Months[i].PaidCarryOver.Add(r.Amount)
		} else {
			result.Months[i].PaidCurrent = result.Months[i].PaidCurrent.Add(r.Amount)
		}
	}

	for i := range result.Months {
		m := &result.Months[i]
		total := decimal.Zero
		if vis.Budget {
			total = total.Add(m.Budget)
		}
		if vis.Scheduled {
			total = total.Add(m.Scheduled)
		}
		if vis.Estimated {
			total = total.Add(m.Estimated)
		}
		if vis.Recurring {
			total = total.Add(m.Recurring)
		}
		if vis.Paid {
			total = total.Add(m.PaidCurrent).Add(m.PaidCarryOver)
		}
		m.Total = total
	}
	result.Summary = summarize(result.Months)
	return result, nil
}

// addRecurring раскладывает неоплаченную часть ежемесячных периодов по месяцам.
// Оплата гасит периоды с самого раннего.
func addRecurring(months []MonthForecast, item *models.PaymentItem, index func(time.Time) (int, bool)) {
	paidLeft := item.PaidAmount
	for _, p := range models.PlanPeriods(item.TotalAmount, item.PaymentType, item.StartDate, *item.EndDate) {
		due := p.Amount
		if paidLeft.GreaterThanOrEqual(due) {
			paidLeft = paidLeft.Sub(due)
			continue
		}
		due = due.Sub(paidLeft)
		paidLeft = decimal.Zero
		if i, ok := index(p.Date); ok {
			months[i].Recurring = months[i].Recurring.Add(due)
		}
	}
}

func summarize(months []MonthForecast) ForecastSummary {
	s := ForecastSummary{
		GrandTotal:   decimal.Zero,
		TrendAmount:  decimal.Zero,
		TrendPercent: decimal.Zero,
	}
	for i, m := range months {
		s.GrandTotal = s.GrandTotal.Add(m.Total)
		if i == 0 || m.Total.GreaterThan(s.PeakAmount) {
			s.PeakMonth, s.PeakAmount = m.Month, m.Total
		}
		if i == 0 || m.Total.LessThan(s.TroughAmount) {
			s.TroughMonth, s.TroughAmount = m.Month, m.Total
		}
	}
	s.MonthlyAverage = models.RoundMoney(s.GrandTotal.Div(decimal.NewFromInt(int64(len(months)))))
	if len(months) >= 2 {
		first, second := months[0].Total, months[1].Total
		s.TrendAmount = second.Sub(first)
		if !first.IsZero() {
			s.TrendPercent = models.RoundMoney(s.TrendAmount.Div(first).Mul(decimal.NewFromInt(100)))
		}
	}
	return s
}

// ForecastService загружает данные и строит прогноз
type ForecastService struct {
	source        repository.ForecastSource
	defaultMonths int
	now           Clock
}

// NewForecastService создает новый экземпляр ForecastService
func NewForecastService(source repository.ForecastSource, defaultMonths int) *ForecastService {
	return &ForecastService{source: source, defaultMonths: defaultMonths, now: time.Now}
}

// SetClock подменяет источник текущего времени
func (s *ForecastService) SetClock(clock Clock) {
	s.now = clock
}

// GetForecast строит прогноз на months месяцев; 0 - горизонт по умолчанию
func (s *ForecastService) GetForecast(ctx context.Context, months int, vis Visibility) (forecast *Forecast, err error) {
	startTime := time.Now()
	defer func() { utils.LogOperation("forecast", startTime, err) }()

	if months == 0 {
		months = s.defaultMonths
	}
	if months < 1 || months > MaxForecastMonths {
		return nil, newValidationError("горизонт прогноза должен быть от 1 до %d месяцев", MaxForecastMonths)
	}

	today := models.DateOnly(s.now())
	from := models.MonthStart(today)
	in := ForecastInput{Today: today}
	if in.Items, err = s.source.ListOpenItems(ctx); err != nil {
		return nil, err
	}
	if in.BudgetPlans, err = s.source.ListBudgetPlans(ctx); err != nil {
		return nil, err
	}
	if in.Schedules, err = s.source.ListSchedules(ctx); err != nil {
		return nil, err
	}
	if in.PaidRecords, err = s.source.ListPaidRecords(ctx, from, models.AddMonths(from, months)); err != nil {
		return nil, err
	}
	return BuildForecast(in, months, vis)
}
