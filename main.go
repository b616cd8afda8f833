package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/biglong-lab/woyu-money-sub004/config"
	"github.com/biglong-lab/woyu-money-sub004/controllers"
	"github.com/biglong-lab/woyu-money-sub004/database"
	"github.com/biglong-lab/woyu-money-sub004/middleware"
	"github.com/biglong-lab/woyu-money-sub004/services"
	"github.com/biglong-lab/woyu-money-sub004/utils"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
)

func initPaymentScheduler(ctx context.Context, store *database.Store, audit *services.AuditService, interval time.Duration) {
	scheduler := services.NewPaymentSchedulerService(store, audit)

	// Сразу приводим статусы к текущей дате
	if _, err := scheduler.SweepStatuses(ctx); err != nil {
		utils.LogError("Ошибка начального пересчета статусов: %v", err)
	}
	scheduler.Start(ctx, interval)
	utils.LogInfo("Планировщик статусов запущен, интервал %s", interval)
}

// newRouter собирает маршруты. Логирование стоит первым: ответы 401 и 429
// тоже попадают в журнал и метрики.
func newRouter(cfg *config.Config, items *controllers.ItemController, payments *controllers.PaymentController) *mux.Router {
	router := mux.NewRouter()
	router.Use(middleware.RecoveryMiddleware)
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods(http.MethodGet)

	// Защищенные маршруты
	protected := router.PathPrefix("/api").Subrouter()
	protected.Use(middleware.LoggingMiddleware)
	protected.Use(middleware.RateLimitMiddleware(utils.NewRateLimiter(cfg.Engine.RateLimit, time.Minute)))
	protected.Use(middleware.AuthMiddleware([]byte(cfg.JWT.SecretKey)))

	controllers.RegisterRoutes(protected, items, payments)
	return router
}

func main() {
	// .env необязателен
	_ = godotenv.Load()

	// Инициализируем конфигурацию
	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}

	if err := utils.InitLoggers(cfg.Engine.LogDir); err != nil {
		log.Fatalf("Ошибка инициализации логов: %v", err)
	}
	defer utils.CloseLoggers()

	// Инициализируем подключение к базе данных
	db, err := database.NewDatabase(cfg)
	if err != nil {
		log.Fatalf("Ошибка подключения к базе данных: %v", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := db.Store()
	auditService := services.NewAuditService(store)

	// Уведомления о погашении только при настроенном SMTP
	var notifier services.Notifier
	if email := services.NewEmailService(cfg); email != nil {
		notifier = email
	}

	itemService := services.NewItemService(store, auditService)
	allocationService := services.NewAllocationService(store, auditService, notifier)
	forecastService := services.NewForecastService(store, cfg.Engine.ForecastMonths)

	initPaymentScheduler(ctx, store, auditService, cfg.Engine.SweepInterval)

	router := newRouter(cfg,
		controllers.NewItemController(itemService),
		controllers.NewPaymentController(allocationService, forecastService, auditService),
	)

	// Запускаем сервер
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			utils.LogError("Ошибка остановки сервера: %v", err)
		}
	}()

	utils.LogInfo("Сервер запущен на порту %s", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Ошибка запуска сервера: %v", err)
	}
}
