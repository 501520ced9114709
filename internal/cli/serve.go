package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"crm-service/internal/handler"
	"crm-service/internal/model"
	"crm-service/internal/server"
	"crm-service/internal/service"
	"crm-service/pkg/database"
	"crm-service/pkg/jwtutil"
	"crm-service/pkg/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveMigrate bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveMigrate, "migrate", true, "Run schema migrations before serving")
}

func runServe(cmd *cobra.Command, args []string) error {
	log := logger.GetLogger()
	log.Info("Starting "+appConfig.ServiceName,
		zap.String("environment", appConfig.Server.Env),
		zap.String("port", appConfig.Server.Port))

	db, err := openDB(appConfig, log)
	if err != nil {
		return err
	}
	defer database.Close()

	if serveMigrate {
		if err := model.Migrate(db); err != nil {
			return err
		}
		log.Info("Database migrated")
	}

	deps := connectInfra(appConfig, log)
	defer deps.Close()

	emails := newEmailService(appConfig, log)
	tokens := jwtutil.New(appConfig.JWT, appConfig.Portal)

	handlerDeps := handler.Dependencies{
		Config:    appConfig,
		Tokens:    tokens,
		Scanner:   newScanner(db, appConfig, deps, emails, log),
		Emails:    emails,
		Dashboard: service.NewDashboard(service.NewGormDashboardQueries(db), log, appConfig.Scan.WindowDays),
	}
	// keep the interface nil when no broker is configured
	if deps.publisher != nil {
		handlerDeps.Broker = deps.publisher
	}
	handler.Init(handlerDeps)

	e := server.New(appConfig, tokens, log)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info("Starting server", zap.String("port", appConfig.Server.Port))
		if err := e.Start(":" + appConfig.Server.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
