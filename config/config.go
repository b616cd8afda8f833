package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/viper"
)

// Config представляет конфигурацию приложения
type Config struct {
	Server struct {
		Port int
	}
	DB struct {
		Driver        string // postgres или sqlite
		SQLitePath    string
		Host          string
		Port          int
		User          string
		Password      string
		DBName        string
		SSLMode       string
		RunMigrations bool // SQL миграции через golang-migrate вместо AutoMigrate
		MigrationsDir string
	}
	JWT struct {
		SecretKey string
	}
	SMTP struct {
		Host     string
		Port     int
		Username string
		Password string
		From     string
		Notify   string // адрес для уведомлений о полной оплате, пусто - уведомления отключены
	}
	Engine struct {
		ForecastMonths int           // горизонт прогноза по умолчанию
		SweepInterval  time.Duration // период пересчета статусов, 0 - отключено
		LogDir         string        // пусто - логирование в stderr
		RateLimit      int           // запросов в минуту на IP
	}
}

// binding связывает ключ viper с переменной окружения и значением по умолчанию
type binding struct {
	key string
	env string
	def interface{}
}

var bindings = []binding{
	{"server.port", "SERVER_PORT", "8080"},
	{"db.driver", "DB_DRIVER", "postgres"},
	{"db.sqlite_path", "DB_SQLITE_PATH", "money.db"},
	{"db.host", "DB_HOST", "localhost"},
	{"db.port", "DB_PORT", "5432"},
	{"db.user", "DB_USER", "postgres"},
	{"db.password", "DB_PASSWORD", "postgres"},
	{"db.name", "DB_NAME", "money_db"},
	{"db.sslmode", "DB_SSLMODE", "disable"},
	{"db.migrations", "DB_MIGRATIONS", false},
	{"db.migrations_dir", "DB_MIGRATIONS_DIR", "migrations"},
	{"jwt.secret", "JWT_SECRET_KEY", "your-secret-key-here"},
	{"smtp.host", "SMTP_HOST", "smtp.gmail.com"},
	{"smtp.port", "SMTP_PORT", "587"},
	{"smtp.username", "SMTP_USERNAME", ""},
	{"smtp.password", "SMTP_PASSWORD", ""},
	{"smtp.from", "SMTP_FROM", ""},
	{"smtp.notify", "SMTP_NOTIFY", ""},
	{"engine.forecast_months", "FORECAST_MONTHS", "6"},
	{"engine.sweep_interval", "SWEEP_INTERVAL", "1h"},
	{"engine.log_dir", "LOG_DIR", ""},
	{"engine.rate_limit", "RATE_LIMIT", "100"},
}

// NewConfig создает новый экземпляр конфигурации.
// Приоритет: переменная окружения > файл CONFIG_FILE > значение по умолчанию.
func NewConfig() (*Config, error) {
	v := viper.New()
	for _, b := range bindings {
		v.SetDefault(b.key, b.def)
		if err := v.BindEnv(b.key, b.env); err != nil {
			return nil, fmt.Errorf("ошибка привязки переменной %s: %w", b.env, err)
		}
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("ошибка чтения файла конфигурации %s: %w", path, err)
		}
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	var err error

	// Настройки сервера
	if cfg.Server.Port, err = intValue(v, "server.port"); err != nil {
		return nil, err
	}

	// Настройки базы данных
	cfg.DB.Driver = v.GetString("db.driver")
	if cfg.DB.Driver != "postgres" && cfg.DB.Driver != "sqlite" {
		return nil, fmt.Errorf("неизвестный драйвер базы данных: %s", cfg.DB.Driver)
	}
	cfg.DB.SQLitePath = v.GetString("db.sqlite_path")
	cfg.DB.Host = v.GetString("db.host")
	if cfg.DB.Port, err = intValue(v, "db.port"); err != nil {
		return nil, err
	}
	cfg.DB.User = v.GetString("db.user")
	cfg.DB.Password = v.GetString("db.password")
	cfg.DB.DBName = v.GetString("db.name")
	cfg.DB.SSLMode = v.GetString("db.sslmode")
	cfg.DB.RunMigrations = v.GetBool("db.migrations")
	cfg.DB.MigrationsDir = v.GetString("db.migrations_dir")

	// Настройки JWT
	cfg.JWT.SecretKey = v.GetString("jwt.secret")

	// Настройки SMTP
	cfg.SMTP.Host = v.GetString("smtp.host")
	if cfg.SMTP.Port, err = intValue(v, "smtp.port"); err != nil {
		return nil, err
	}
	cfg.SMTP.Username = v.GetString("smtp.username")
	cfg.SMTP.Password = v.GetString("smtp.password")
	cfg.SMTP.From = v.GetString("smtp.from")
	cfg.SMTP.Notify = v.GetString("smtp.notify")

	// Настройки движка
	if cfg.Engine.ForecastMonths, err = intValue(v, "engine.forecast_months"); err != nil {
		return nil, err
	}
	if cfg.Engine.ForecastMonths < 1 || cfg.Engine.ForecastMonths > 36 {
		return nil, fmt.Errorf("горизонт прогноза должен быть от 1 до 36 месяцев: %d", cfg.Engine.ForecastMonths)
	}
	interval, err := time.ParseDuration(v.GetString("engine.sweep_interval"))
	if err != nil {
		return nil, fmt.Errorf("неверный формат интервала пересчета статусов: %w", err)
	}
	cfg.Engine.SweepInterval = interval
	cfg.Engine.LogDir = v.GetString("engine.log_dir")
	if cfg.Engine.RateLimit, err = intValue(v, "engine.rate_limit"); err != nil {
		return nil, err
	}

	return cfg, nil
}

// intValue читает целое значение и сообщает ключ при ошибке формата
func intValue(v *viper.Viper, key string) (int, error) {
	n, err := strconv.Atoi(v.GetString(key))
	if err != nil {
		return 0, fmt.Errorf("неверный формат параметра %s: %w", key, err)
	}
	return n, nil
}

// PostgresDSN возвращает строку подключения в формате gorm
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host, c.DB.Port, c.DB.User, c.DB.Password, c.DB.DBName, c.DB.SSLMode)
}

// MigrateURL возвращает URL базы данных для golang-migrate
func (c *Config) MigrateURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DB.User, c.DB.Password, c.DB.Host, c.DB.Port, c.DB.DBName, c.DB.SSLMode)
}
