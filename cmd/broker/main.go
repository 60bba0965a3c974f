// Command broker sirve los callables del Token Broker.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/dropDatabas3/devlog/internal/app"
	"github.com/dropDatabas3/devlog/internal/config"
	httpserver "github.com/dropDatabas3/devlog/internal/http"
	"github.com/dropDatabas3/devlog/internal/observability/logger"
)

var version = "dev"

func main() {
	var (
		flagConfigPath = flag.String("config", "", "ruta a config.yaml (fallback: $CONFIG_PATH; vacío = sólo env)")
		flagEnvFile    = flag.String("env-file", ".env", "ruta a .env (si existe, se carga)")
		flagPrint      = flag.Bool("print-config", false, "imprime config efectiva y termina")
	)
	flag.Parse()

	if *flagEnvFile != "" {
		if err := godotenv.Load(*flagEnvFile); err == nil {
			log.Printf("dotenv: cargado %s", *flagEnvFile)
		}
	}

	cfgPath := *flagConfigPath
	if cfgPath == "" {
		cfgPath = os.Getenv("CONFIG_PATH")
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if *flagPrint {
		printConfigSummary(cfg)
		return
	}

	logger.Init(logger.Config{
		Env:         cfg.App.Env,
		Level:       cfg.App.LogLevel,
		ServiceName: "broker",
		Version:     version,
	})
	defer func() { _ = logger.Sync() }()
	lg := logger.L().With(logger.Region(cfg.App.Region))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logger.ToContext(ctx, lg)

	a, err := app.Build(ctx, cfg, version)
	if err != nil {
		lg.Fatal("wiring failed", logger.Err(err))
	}
	defer func() {
		if err := a.Close(); err != nil {
			lg.Warn("cleanup error", logger.Err(err))
		}
	}()

	err = httpserver.Serve(ctx, httpserver.ServerConfig{
		Addr:         cfg.Server.Addr,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, a.Handler)
	if err != nil {
		lg.Error("server failed", logger.Err(err))
		return
	}
	lg.Info("bye")
}

func printConfigSummary(c *config.Config) {
	fmt.Printf("env=%s region=%s project=%s\n", c.App.Env, c.App.Region, c.App.ProjectID)
	fmt.Printf("addr=%s storage=%s cache=%s\n", c.Server.Addr, c.Storage.Driver, c.Cache.Kind)
	fmt.Printf("rate.enabled=%v rate.window=%s rate.max=%d\n", c.Rate.Enabled, c.Rate.Window, c.Rate.MaxRequests)
	fmt.Printf("apple.configured=%v github.configured=%v sealing=%v\n",
		c.AppleConfigured(), c.GitHub.ClientID != "" && c.GitHub.ClientSecret != "", c.Security.TokenSealingKey != "")
}
