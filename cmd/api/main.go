package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/sandeepkv93/erp-identity-core/internal/di"
	"github.com/sandeepkv93/erp-identity-core/internal/tools/common"
)

func main() {
	if err := common.LoadEnvFile(os.Getenv("ENV_FILE")); err != nil {
		log.Fatal(err)
	}
	a, err := di.InitializeApp()
	if err != nil {
		log.Fatal(err)
	}
	stopCleanup := a.StartCleanup(a.Config.CleanupInterval)

	go func() {
		a.Logger.Info("server starting", "addr", a.Server.Addr)
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	a.Logger.Info("server shutting down")
	if stopCleanup != nil {
		stopCleanup()
	}
	a.Shutdown(context.Background())
}
