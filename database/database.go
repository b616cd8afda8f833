package database

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/biglong-lab/woyu-money-sub004/config"
	"github.com/biglong-lab/woyu-money-sub004/models"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Database представляет подключение к базе данных
type Database struct {
	DB *gorm.DB
}

// NewDatabase открывает подключение, настраивает пул и выполняет миграции
func NewDatabase(cfg *config.Config) (*Database, error) {
	// Настраиваем логгер
	newLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  true,
		},
	)

	var dialector gorm.Dialector
	switch cfg.DB.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.DB.SQLitePath)
	default:
		dialector = postgres.Open(cfg.PostgresDSN())
	}

	// Устанавливаем соединение
	db, err := gorm.Open(dialector, &gorm.Config{Logger: newLogger})
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к базе данных: %w", err)
	}

	// Настраиваем пул соединений
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("ошибка получения пула соединений: %w", err)
	}
	if cfg.DB.Driver == "sqlite" {
		// SQLite допускает одного писателя
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetMaxOpenConns(100)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}

	if cfg.DB.RunMigrations && cfg.DB.Driver == "postgres" {
		// Выполняем SQL миграции
		if err := runMigrations(cfg); err != nil {
			return nil, fmt.Errorf("ошибка выполнения SQL миграций: %w", err)
		}
	} else if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("ошибка автоматической миграции моделей: %w", err)
	}

	return &Database{DB: db}, nil
}

// Close закрывает подключение к базе данных
func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Store возвращает хранилище поверх подключения
func (d *Database) Store() *Store {
	return NewStore(d.DB)
}

// runMigrations выполняет SQL миграции
func runMigrations(cfg *config.Config) error {
	m, err := migrate.New("file://"+cfg.DB.MigrationsDir, cfg.MigrateURL())
	if err != nil {
		return fmt.Errorf("ошибка создания миграции: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("ошибка выполнения миграций: %w", err)
	}

	return nil
}

// AutoMigrate выполняет автоматическую миграцию моделей
func AutoMigrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.PaymentItem{},
		&models.PaymentRecord{},
		&models.AuditLogEntry{},
		&models.BudgetPlan{},
		&models.BudgetItem{},
		&models.PaymentSchedule{},
	)
	if err != nil {
		return fmt.Errorf("ошибка автоматической миграции: %w", err)
	}

	return nil
}
