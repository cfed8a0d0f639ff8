package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/Malith-nethsiri/valuerpro-project-sub001/internal/config"
	"github.com/Malith-nethsiri/valuerpro-project-sub001/internal/preview"
	"github.com/Malith-nethsiri/valuerpro-project-sub001/internal/server"
	"github.com/Malith-nethsiri/valuerpro-project-sub001/internal/valuerapi"
	"github.com/Malith-nethsiri/valuerpro-project-sub001/internal/wizard"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	var (
		addr    = flag.String("addr", cfg.Addr, "Listen address")
		apiURL  = flag.String("api-url", cfg.BackendURL, "ValuerPro backend base URL")
		dbPath  = flag.String("db", cfg.DBPath, "Path to the session SQLite database")
		flowDir = flag.String("flow-dir", cfg.FlowDir, "Directory of custom flow YAML definitions")
	)
	flag.Parse()

	if strings.TrimSpace(*apiURL) == "" {
		log.Fatal("--api-url is required")
	}

	custom, err := wizard.LoadFlowDir(*flowDir)
	if err != nil {
		log.Fatal(err)
	}
	flows := wizard.NewFlowRegistry(custom...)
	if len(custom) > 0 {
		log.Printf("loaded %d custom flow(s) from %s", len(custom), *flowDir)
	}

	store, err := server.NewSessionStore(*dbPath)
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	client := valuerapi.NewClient(*apiURL, cfg.BackendToken)
	renderer := preview.NewPDFRenderer(cfg.ChromePath)
	sessionCfg := wizard.Config{
		Currency:      cfg.Currency,
		AutosaveDelay: cfg.AutosaveDelay,
		SaveMaxTries:  cfg.SaveMaxTries,
		SaveTimeout:   cfg.SaveTimeout,
	}
	handler := server.NewServer(client, store, flows, renderer, sessionCfg)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	srv := &http.Server{Addr: *addr, Handler: handler}
	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Printf("wizard server listening on %s (backend=%s, db=%s)", *addr, *apiURL, *dbPath)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal(err)
	}
}
