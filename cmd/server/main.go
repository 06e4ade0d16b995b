package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/samber/do"
	"github.com/serroba/slop-farmer/internal/accounts"
	"github.com/serroba/slop-farmer/internal/container"
	"github.com/serroba/slop-farmer/internal/messaging"
	"github.com/serroba/slop-farmer/internal/migrations"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	// A missing .env is fine, the environment and flags still apply.
	_ = godotenv.Load()

	cli := humacli.New(func(hooks humacli.Hooks, options *container.Options) {
		injector := do.New()
		container.Register(injector, options)

		logger := do.MustInvoke[*zap.Logger](injector)

		var server *http.Server

		hooks.OnStart(func() {
			router := do.MustInvoke[*chi.Mux](injector)

			// Invoke API to trigger route registration
			_ = do.MustInvoke[huma.API](injector)

			server = &http.Server{
				Addr:              fmt.Sprintf(":%d", options.Port),
				Handler:           router,
				ReadHeaderTimeout: 10 * time.Second,
			}

			logger.Info("server starting",
				zap.Int("port", options.Port),
				zap.String("store", options.StoreBackend),
				zap.Strings("event_topics", do.MustInvoke[*messaging.PublisherGroup](injector).Topics()),
			)

			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Fatal("server failed", zap.Error(err))
			}
		})

		hooks.OnStop(func() {
			logger.Info("shutting down")

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			if server != nil {
				if err := server.Shutdown(ctx); err != nil {
					logger.Error("server shutdown error", zap.Error(err))
				}
			}

			if err := injector.Shutdown(); err != nil {
				logger.Error("service shutdown error", zap.Error(err))
			}

			logger.Info("shutdown complete")
		})
	})

	cli.Root().AddCommand(migrateCommand(), registerCommand())

	cli.Run()
}

func migrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back database migrations",
	}

	down := cmd.Flags().Int("down", 0, "Roll back this many migrations instead of applying")

	cmd.Run = humacli.WithOptions(func(_ *cobra.Command, _ []string, options *container.Options) {
		injector := do.New()
		do.ProvideValue(injector, options)
		container.LoggerPackage(injector)

		logger := do.MustInvoke[*zap.Logger](injector)

		var err error
		if *down > 0 {
			err = migrations.Down(options.DatabaseURL, *down, logger)
		} else {
			err = migrations.Up(options.DatabaseURL, logger)
		}

		if err != nil {
			logger.Fatal("migration failed", zap.Error(err))
		}
	})

	return cmd
}

func registerCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create a user and print its email verification token",
	}

	email := cmd.Flags().String("email", "", "Email address of the new user")
	passwordHash := cmd.Flags().String("password-hash", "", "Precomputed password hash to store")

	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password-hash")

	cmd.Run = humacli.WithOptions(func(cmd *cobra.Command, _ []string, options *container.Options) {
		injector := do.New()
		container.Register(injector, options)

		logger := do.MustInvoke[*zap.Logger](injector)
		service := do.MustInvoke[*accounts.Service](injector)

		user, err := service.Register(cmd.Context(), *email, *passwordHash)
		if err != nil {
			logger.Fatal("registration failed", zap.String("email", *email), zap.Error(err))
		}

		cmd.Printf("user %s registered, verification token: %s\n", user.ID, user.VerificationToken)

		if err := injector.Shutdown(); err != nil {
			logger.Error("shutdown error", zap.Error(err))
		}
	})

	return cmd
}
