package app

import (
	"fmt"

	"github.com/bonds-app/bonds/internal/config"
	"github.com/bonds-app/bonds/internal/db"
	"github.com/bonds-app/bonds/internal/repository"
	"github.com/bonds-app/bonds/internal/secret"
	"github.com/bonds-app/bonds/internal/service"
	"github.com/bonds-app/bonds/internal/worker"
	"github.com/jmoiron/sqlx"
)

type App struct {
	Cfg *config.Config
	DB  *sqlx.DB

	UserRepository         repository.UserRepository
	VerificationRepository repository.VerificationRepository

	EmailService        *service.EmailService
	VerificationService *service.VerificationService
	AuthService         *service.AuthService
	SessionService      *service.SessionService

	Cleanup *worker.Cleanup
}

func New(cfg *config.Config) (*App, error) {
	database, err := db.Init(cfg.DBDriver, cfg.DBConnection)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %v", err)
	}

	err = db.RunMigrations(database.DB, cfg.DBDriver)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %v", err)
	}

	// Repositories
	userRepository := repository.NewUserRepository(database)
	verificationRepository := repository.NewVerificationRepository(database)

	// Services
	hasher := secret.NewHasher(0)
	emailService := service.NewEmailService(
		cfg.ResendAPIKey,
		cfg.EmailFrom,
		cfg.ClientURL,
		cfg.AppName,
		cfg.IsDevelopment(),
	)
	verificationService := service.NewVerificationService(
		verificationRepository,
		hasher,
		emailService,
		service.VerificationConfig{
			OTPExpiry:   cfg.OTPExpiry,
			LinkExpiry:  cfg.MagicLinkExpiry,
			MaxAttempts: cfg.OTPMaxAttempts,
			RateQuota:   cfg.RateLimitQuota,
			RateWindow:  cfg.RateLimitWindow,
		},
	)
	authService := service.NewAuthService(userRepository, verificationService, hasher)
	sessionService := service.NewSessionService(
		cfg.JWTSecret,
		cfg.JWTAccessExpiry,
		cfg.JWTRefreshExpiry,
		cfg.IsProduction(),
	)

	cleanup := worker.NewCleanup(verificationRepository, cfg.VerificationSweep, cfg.RecordRetention)

	return &App{
		Cfg:                    cfg,
		DB:                     database,
		UserRepository:         userRepository,
		VerificationRepository: verificationRepository,
		EmailService:           emailService,
		VerificationService:    verificationService,
		AuthService:            authService,
		SessionService:         sessionService,
		Cleanup:                cleanup,
	}, nil
}

func (a *App) Close() error {
	if a.DB != nil {
		return a.DB.Close()
	}
	return nil
}
