package cmd

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/Angella-Mulikatete/AmplystV2-sub001/internal/logger"
	"github.com/Angella-Mulikatete/AmplystV2-sub001/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the matching API over HTTP",
	Run: func(_ *cobra.Command, _ []string) {
		serve()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("listen", "l", "", "listen address (default :8080)")
	viper.BindPFlag("listen", serveCmd.Flags().Lookup("listen"))
}

func serve() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}
	defer logger.Sync()

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Info("starting the amplyst-matcher", zap.String("version", version))

	ranker, err := newRanker(ctx, config, logger)
	if err != nil {
		logger.Fatal("building the ranker", zap.Error(err))
	}

	handler := server.NewHandler(ranker, server.Options{
		RequestTimeout: config.Server.RequestTimeout,
		MaxBodyBytes:   config.Server.MaxBodyBytes,
	}, logger)

	srv := &http.Server{
		Addr:              config.Listen,
		Handler:           server.NewRouter(handler),
		ReadHeaderTimeout: config.Server.ReadHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", config.Listen))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("serving http", zap.Error(err))
		}
		return
	case <-ctx.Done():
	}

	logger.Info("shutting down", zap.Duration("timeout", config.Server.ShutdownTimeout))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}
