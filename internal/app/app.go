package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/GoArmGo/PhotoSearch/internal/config"
	"github.com/GoArmGo/PhotoSearch/internal/core/ports"
	"github.com/GoArmGo/PhotoSearch/internal/session"
	"github.com/GoArmGo/PhotoSearch/internal/usecase"
	"github.com/jmoiron/sqlx"
)

const (
	ModeServer = "server"
	ModeWorker = "worker"
)

type App struct {
	Config         *config.Config
	logger         *slog.Logger
	db             *sqlx.DB
	controller     *session.Controller
	shareUseCase   usecase.ShareUseCase
	archiveUseCase usecase.ArchiveUseCase
	consumer       ports.ShareEventConsumer
	closers        []func()
}

func NewApp(
	cfg *config.Config,
	logger *slog.Logger,
	db *sqlx.DB,
	controller *session.Controller,
	shareUseCase usecase.ShareUseCase,
	archiveUseCase usecase.ArchiveUseCase,
	consumer ports.ShareEventConsumer,
	closers ...func(),
) *App {
	return &App{
		Config:         cfg,
		logger:         logger,
		db:             db,
		controller:     controller,
		shareUseCase:   shareUseCase,
		archiveUseCase: archiveUseCase,
		consumer:       consumer,
		closers:        closers,
	}
}

// LoggerIns возвращает основной логгер приложения
func (a *App) LoggerIns() *slog.Logger {
	return a.logger
}

// Run запускает приложение в режиме server или worker и блокируется до SIGINT/SIGTERM
func (a *App) Run(ctx context.Context, mode string) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a.logger.Info("starting", "mode", mode)

	var err error
	switch mode {
	case ModeServer:
		err = runServer(ctx, a.Config, a.logger, a.controller, a.shareUseCase)
	case ModeWorker:
		err = runWorker(ctx, a.logger, a.archiveUseCase, a.consumer)
	default:
		err = fmt.Errorf("неизвестный режим: %s (используйте '%s' или '%s')", mode, ModeServer, ModeWorker)
	}

	a.logger.Info("shutting down")
	if closeErr := a.Shutdown(); closeErr != nil {
		a.logger.Error("shutdown failed", "error", closeErr)
		err = errors.Join(err, closeErr)
	}
	return err
}

// Shutdown закрывает все ресурсы приложения
func (a *App) Shutdown() error {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil

	if a.db != nil {
		if err := a.db.Close(); err != nil {
			return fmt.Errorf("ошибка закрытия БД: %w", err)
		}
		a.db = nil
	}
	return nil
}
