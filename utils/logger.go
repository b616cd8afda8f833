package utils

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"
)

var (
	InfoLogger  = log.New(os.Stderr, "INFO: ", log.Ldate|log.Ltime)
	ErrorLogger = log.New(os.Stderr, "ERROR: ", log.Ldate|log.Ltime)
	DebugLogger = log.New(io.Discard, "DEBUG: ", log.Ldate|log.Ltime)

	loggersMu sync.Mutex
	logFiles  []*os.File
)

// InitLoggers направляет логи в файлы info.log, error.log и debug.log каталога dir.
// Пустой dir оставляет вывод в stderr.
func InitLoggers(dir string) error {
	if dir == "" {
		return nil
	}

	// Создаем директорию для логов, если она не существует
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("не удалось создать каталог логов: %w", err)
	}

	open := func(name string) (*os.File, error) {
		return os.OpenFile(filepath.Join(dir, name), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	}
	infoFile, err := open("info.log")
	if err != nil {
		return fmt.Errorf("не удалось открыть info.log: %w", err)
	}
	errorFile, err := open("error.log")
	if err != nil {
		infoFile.Close()
		return fmt.Errorf("не удалось открыть error.log: %w", err)
	}
	debugFile, err := open("debug.log")
	if err != nil {
		infoFile.Close()
		errorFile.Close()
		return fmt.Errorf("не удалось открыть debug.log: %w", err)
	}

	loggersMu.Lock()
	defer loggersMu.Unlock()
	InfoLogger = log.New(infoFile, "INFO: ", log.Ldate|log.Ltime)
	ErrorLogger = log.New(io.MultiWriter(errorFile, os.Stderr), "ERROR: ", log.Ldate|log.Ltime)
	DebugLogger = log.New(debugFile, "DEBUG: ", log.Ldate|log.Ltime)
	logFiles = append(logFiles, infoFile, errorFile, debugFile)
	return nil
}

// CloseLoggers закрывает файлы логов
func CloseLoggers() {
	loggersMu.Lock()
	defer loggersMu.Unlock()
	for _, f := range logFiles {
		f.Close()
	}
	logFiles = nil
}

// LogInfo логирует информационное сообщение
func LogInfo(format string, v ...interface{}) {
	output(&InfoLogger, format, v...)
}

// LogError логирует сообщение об ошибке
func LogError(format string, v ...interface{}) {
	output(&ErrorLogger, format, v...)
}

// LogDebug логирует отладочное сообщение
func LogDebug(format string, v ...interface{}) {
	output(&DebugLogger, format, v...)
}

// LogOperation логирует операцию с длительностью и записывает ее в метрики
func LogOperation(operation string, startTime time.Time, err error) {
	duration := time.Since(startTime)
	GetMetrics().RecordOperation(operation, duration, err)
	if err != nil {
		output(&ErrorLogger, "Operation %s failed after %v: %v", operation, duration, err)
	} else {
		output(&InfoLogger, "Operation %s completed in %v", operation, duration)
	}
}

func output(l **log.Logger, format string, v ...interface{}) {
	_, file, line, _ := runtime.Caller(2)
	loggersMu.Lock()
	logger := *l
	loggersMu.Unlock()
	logger.Printf("%s:%d - %s", filepath.Base(file), line, fmt.Sprintf(format, v...))
}
