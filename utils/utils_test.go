package utils

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestRateLimiterWindow(t *testing.T) {
	current := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(2, time.Minute)
	rl.now = func() time.Time { return current }

	if !rl.Allow("1.2.3.4") || !rl.Allow("1.2.3.4") {
		t.Fatalf("first two requests should pass")
	}
	if rl.Allow("1.2.3.4") {
		t.Errorf("third request inside the window should be rejected")
	}
	if rl.Remaining("1.2.3.4") != 0 {
		t.Errorf("Remaining() = %d, want 0", rl.Remaining("1.2.3.4"))
	}
	if !rl.Allow("5.6.7.8") {
		t.Errorf("other keys have their own budget")
	}

	current = current.Add(61 * time.Second)
	if !rl.Allow("1.2.3.4") {
		t.Errorf("request after the window should pass")
	}
	if got := rl.Remaining("1.2.3.4"); got != 1 {
		t.Errorf("Remaining() = %d, want 1", got)
	}
}

func TestKeyedMutexSerializesSameKey(t *testing.T) {
	km := NewKeyedMutex()
	var wg sync.WaitGroup
	counter := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := km.Lock("scope")
			v := counter
			time.Sleep(time.Microsecond)
			counter = v + 1
			unlock()
		}()
	}
	wg.Wait()

	if counter != 50 {
		t.Errorf("counter = %d, want 50", counter)
	}
	if km.Len() != 0 {
		t.Errorf("Len() = %d, want 0 after all unlocks", km.Len())
	}
}

func TestMetricsSnapshot(t *testing.T) {
	m := NewMetrics()
	m.RecordAllocation(decimal.NewFromInt(4000), decimal.NewFromInt(1000), 1)
	m.RecordAllocation(decimal.NewFromInt(500), decimal.Zero, 0)
	m.RecordSchedule(4)
	m.RecordOperation("pay_scope", time.Millisecond, errors.New("boom"))
	m.RecordRequest(10*time.Millisecond, true)

	snap := m.GetMetricsSnapshot()
	if snap["allocated_amount"] != "4500.00" {
		t.Errorf("allocated_amount = %v", snap["allocated_amount"])
	}
	if snap["leftover_amount"] != "1000.00" {
		t.Errorf("leftover_amount = %v", snap["leftover_amount"])
	}
	if snap["records_generated"] != int64(4) {
		t.Errorf("records_generated = %v", snap["records_generated"])
	}
	if snap["error_count"] != int64(1) {
		t.Errorf("error_count = %v", snap["error_count"])
	}
	if snap["failed_requests"] != int64(1) {
		t.Errorf("failed_requests = %v", snap["failed_requests"])
	}

	m.ResetMetrics()
	if m.GetMetricsSnapshot()["total_allocations"] != int64(0) {
		t.Errorf("reset did not clear allocations")
	}
}

func TestInitLoggersWritesDebugFile(t *testing.T) {
	info, errLog, debug := InfoLogger, ErrorLogger, DebugLogger
	t.Cleanup(func() {
		CloseLoggers()
		loggersMu.Lock()
		InfoLogger, ErrorLogger, DebugLogger = info, errLog, debug
		loggersMu.Unlock()
	})

	dir := t.TempDir()
	if err := InitLoggers(dir); err != nil {
		t.Fatalf("init loggers: %v", err)
	}
	LogDebug("позиция %d получила %s", 7, "250.00")
	LogInfo("готово")

	raw, err := os.ReadFile(filepath.Join(dir, "debug.log"))
	if err != nil {
		t.Fatalf("read debug.log: %v", err)
	}
	if !strings.Contains(string(raw), "позиция 7 получила 250.00") {
		t.Errorf("debug.log = %q", raw)
	}
	if strings.Contains(string(raw), "готово") {
		t.Errorf("info message leaked into debug.log")
	}
}
