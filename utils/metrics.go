package utils

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Metrics содержит метрики приложения
type Metrics struct {
	mu sync.RWMutex

	// Метрики запросов
	TotalRequests   int64
	FailedRequests  int64
	RequestLatency  time.Duration
	AverageLatency  time.Duration
	LastRequestTime time.Time

	// Метрики операций движка
	Operations map[string]int64

	// Метрики распределения платежей
	TotalAllocations int64
	AllocatedAmount  decimal.Decimal
	LeftoverAmount   decimal.Decimal
	ItemsFullyPaid   int64

	// Метрики графиков
	SchedulesGenerated int64
	RecordsGenerated   int64

	// Метрики ошибок
	ErrorCount    int64
	LastErrorTime time.Time
	ErrorTypes    map[string]int64
}

var (
	metrics     *Metrics
	metricsOnce sync.Once
)

// NewMetrics создает пустой набор метрик
func NewMetrics() *Metrics {
	return &Metrics{
		Operations: make(map[string]int64),
		ErrorTypes: make(map[string]int64),
	}
}

// GetMetrics возвращает общий экземпляр метрик процесса
func GetMetrics() *Metrics {
	metricsOnce.Do(func() {
		metrics = NewMetrics()
	})
	return metrics
}

// RecordRequest записывает метрики HTTP запроса
func (m *Metrics) RecordRequest(duration time.Duration, failed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.TotalRequests++
	m.RequestLatency += duration
	m.AverageLatency = m.RequestLatency / time.Duration(m.TotalRequests)
	m.LastRequestTime = time.Now()
	if failed {
		m.FailedRequests++
	}
}

// RecordOperation записывает выполнение операции движка
func (m *Metrics) RecordOperation(operation string, duration time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Operations[operation]++
	if err != nil {
		m.recordErrorLocked(operation)
	}
}

// RecordAllocation записывает итог одного распределения платежа
func (m *Metrics) RecordAllocation(allocated, leftover decimal.Decimal, fullyPaid int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.TotalAllocations++
	m.AllocatedAmount = m.AllocatedAmount.Add(allocated)
	m.LeftoverAmount = m.LeftoverAmount.Add(leftover)
	m.ItemsFullyPaid += int64(fullyPaid)
}

// RecordSchedule записывает сгенерированный график
func (m *Metrics) RecordSchedule(records int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.SchedulesGenerated++
	m.RecordsGenerated += int64(records)
}

// RecordError записывает метрики ошибки
func (m *Metrics) RecordError(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recordErrorLocked(kind)
}

func (m *Metrics) recordErrorLocked(kind string) {
	m.ErrorCount++
	m.LastErrorTime = time.Now()
	if kind == "" {
		kind = "unknown"
	}
	m.ErrorTypes[kind]++
}

// GetMetricsSnapshot возвращает снимок текущих метрик
func (m *Metrics) GetMetricsSnapshot() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	operations := make(map[string]int64, len(m.Operations))
	for k, v := range m.Operations {
		operations[k] = v
	}
	errorTypes := make(map[string]int64, len(m.ErrorTypes))
	for k, v := range m.ErrorTypes {
		errorTypes[k] = v
	}

	return map[string]interface{}{
		"total_requests":      m.TotalRequests,
		"failed_requests":     m.FailedRequests,
		"average_latency":     m.AverageLatency.String(),
		"operations":          operations,
		"total_allocations":   m.TotalAllocations,
		"allocated_amount":    m.AllocatedAmount.StringFixed(2),
		"leftover_amount":     m.LeftoverAmount.StringFixed(2),
		"items_fully_paid":    m.ItemsFullyPaid,
		"schedules_generated": m.SchedulesGenerated,
		"records_generated":   m.RecordsGenerated,
		"error_count":         m.ErrorCount,
		"last_error_time":     m.LastErrorTime,
		"error_types":         errorTypes,
	}
}

// ResetMetrics сбрасывает все метрики
func (m *Metrics) ResetMetrics() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.TotalRequests = 0
	m.FailedRequests = 0
	m.RequestLatency = 0
	m.AverageLatency = 0
	m.Operations = make(map[string]int64)
	m.TotalAllocations = 0
	m.AllocatedAmount = decimal.Zero
	m.LeftoverAmount = decimal.Zero
	m.ItemsFullyPaid = 0
	m.SchedulesGenerated = 0
	m.RecordsGenerated = 0
	m.ErrorCount = 0
	m.ErrorTypes = make(map[string]int64)
}
