package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/liableapp/liable/internal/config"
	"github.com/liableapp/liable/internal/db"
	"github.com/liableapp/liable/internal/handler"
	"github.com/liableapp/liable/internal/repository"
	"github.com/liableapp/liable/internal/repository/mongostore"
	"github.com/liableapp/liable/internal/scheduler"
	"github.com/liableapp/liable/internal/service"
	"github.com/liableapp/liable/internal/service/payment"
)

type App struct {
	Cfg            *config.Config
	DB             *sqlx.DB          // nil when DB_DRIVER=mongodb
	Mongo          *mongostore.Store // nil for SQL drivers
	Store          handler.Pinger
	AuthService    *service.AuthService
	UserService    *service.UserService
	EmailService   *service.EmailService
	PaymentService payment.Charger
	GoalService    *service.GoalService
	CheckinService *service.CheckinService
	Scheduler      *scheduler.Scheduler
}

func New(cfg *config.Config) (*App, error) {
	a := &App{Cfg: cfg}

	// Repositories
	var goalRepository repository.GoalRepository
	var userRepository repository.UserRepository

	if cfg.UsesSQL() {
		database, err := db.Open(cfg.DBDriver, cfg.DBConnection)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		a.DB = database
		a.Store = handler.PingFunc(database.PingContext)
		goalRepository = repository.NewGoalRepository(database)
		userRepository = repository.NewUserRepository(database)
	} else {
		store, err := mongostore.Open(context.Background(), cfg.DBConnection, cfg.MongoDatabase)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		a.Mongo = store
		a.Store = store
		goalRepository = store.Goals()
		userRepository = store.Users()
	}

	// Services
	emailService := service.NewEmailService(
		cfg.ResendAPIKey,
		cfg.EmailFrom,
		cfg.IsDevelopment(),
		cfg.EmailSendTimeout,
	)

	emailTemplates, err := service.NewEmailTemplates(cfg.AppName)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to load email templates: %w", err)
	}

	charger, err := payment.NewCharger(cfg)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize payment provider: %w", err)
	}

	checkinService := service.NewCheckinService(
		goalRepository,
		userRepository,
		emailService,
		emailTemplates,
		charger,
		cfg.AppURL,
		cfg.IncentiveCurrency,
	)

	a.EmailService = emailService
	a.PaymentService = charger
	a.CheckinService = checkinService
	a.GoalService = service.NewGoalService(goalRepository, userRepository, emailService, emailTemplates)
	a.AuthService = service.NewAuthService(cfg.JWTSecret, cfg.JWTExpiry)
	a.UserService = service.NewUserService(userRepository)
	a.Scheduler = scheduler.New(checkinService, cfg.SchedulerInterval, cfg.SchedulerTickTimeout)

	return a, nil
}

// Close waits for queued emails and releases the database.
func (a *App) Close() error {
	if a.EmailService != nil {
		a.EmailService.Wait()
	}

	var errs []error
	if a.DB != nil {
		errs = append(errs, a.DB.Close())
	}
	if a.Mongo != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		errs = append(errs, a.Mongo.Close(ctx))
	}
	return errors.Join(errs...)
}
