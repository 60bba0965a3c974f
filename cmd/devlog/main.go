// Command devlog inicia sesión en devlog y administra los proveedores de sign-in
// vinculados a la cuenta.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/dropDatabas3/devlog/internal/config"
	"github.com/dropDatabas3/devlog/internal/identity"
	"github.com/dropDatabas3/devlog/internal/observability/logger"
)

var version = "dev"

// errReported marca un error cuya alerta ya se imprimió.
var errReported = errors.New("reported")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdout, os.Stderr).ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		os.Exit(1)
	}
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	var (
		configPath = envOr("DEVLOG_CONFIG", "")
		envFile    = ".env"
		rt         *runtime
	)

	root := &cobra.Command{
		Use:           "devlog",
		Short:         "devlog account and sign-in providers",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if skipsRuntime(cmd) {
				return nil
			}
			if envFile != "" {
				_ = godotenv.Load(envFile)
			}
			cfg, err := config.LoadClient(configPath)
			if err != nil {
				return err
			}
			logger.Init(logger.Config{Level: cfg.LogLevel, ServiceName: "devlog", Version: version, Quiet: true})

			ctx := logger.ToContext(cmd.Context(), logger.L().With(logger.Region(cfg.Region)))
			cmd.SetContext(ctx)

			rt, err = build(ctx, cfg, errOut)
			if err != nil {
				return err
			}
			if _, err := rt.orch.Restore(ctx); err != nil {
				logger.From(ctx).Warn("session restore incomplete", logger.Err(err))
			}
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) { _ = logger.Sync() },
	}
	root.PersistentFlags().StringVar(&configPath, "config", configPath, "path to the client config.yaml (env DEVLOG_CONFIG)")
	root.PersistentFlags().StringVar(&envFile, "env-file", envFile, ".env file loaded when present")

	app := func() *runtime { return rt }
	root.AddCommand(
		signInCmd(app, out, errOut),
		signOutCmd(app, out, errOut),
		linkCmd(app, out, errOut),
		unlinkCmd(app, out, errOut),
		deleteAccountCmd(app, out, errOut),
		whoamiCmd(app, out),
		watchCmd(app, out),
	)
	return root
}

// skipsRuntime indica si cmd es uno de los comandos propios de cobra, que no
// necesitan config ni sesión.
func skipsRuntime(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Name() == "help" || c.Name() == "completion" {
			return true
		}
	}
	return false
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

// report imprime la alerta pendiente de una operación fallida en lugar del error
// crudo, que puede traer texto del proveedor.
func report(rt *runtime, errOut io.Writer, err error) error {
	if err == nil {
		return nil
	}
	select {
	case a := <-rt.facade.Alerts():
		fmt.Fprintln(errOut, "error:", a.Message)
	default:
		fmt.Fprintln(errOut, "error:", identity.UserMessage(err))
	}
	return errReported
}
