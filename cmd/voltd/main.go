// Command voltd runs the volume-topology tracker's HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/vmthunder/volt/internal/httpapi"
	"github.com/vmthunder/volt/internal/httpapi/clientip"
	"github.com/vmthunder/volt/internal/slogpretty"
	"github.com/vmthunder/volt/internal/topology"
)

// verbosityFlag adapts slog.Level to pflag.Value, in the shape of
// btrfs-rec's logLevelFlag.
type verbosityFlag struct {
	slog.Level
}

func (v *verbosityFlag) Type() string { return "verbosity" }
func (v *verbosityFlag) Set(s string) error {
	return v.Level.UnmarshalText([]byte(s))
}

var _ pflag.Value = (*verbosityFlag)(nil)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "voltd: error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var (
		listen       string
		policyName   string
		expire       time.Duration
		scanInterval time.Duration
		logFormat    string
		verbosity    = verbosityFlag{Level: slog.LevelInfo}
	)

	cmd := &cobra.Command{
		Use:   "voltd",
		Short: "Track the binary-tree fan-out topology of iSCSI image distribution",

		SilenceErrors: true,
		SilenceUsage:  true,

		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), options{
				listen:       listen,
				policyName:   policyName,
				expire:       expire,
				scanInterval: scanInterval,
				logFormat:    logFormat,
				level:        verbosity.Level,
			})
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&listen, "listen", ":8080", "HTTP listen address")
	flags.StringVar(&policyName, "policy", topology.PolicyBTree, "parent-selection policy: btree | btree_with_uncle")
	flags.DurationVar(&expire, "expire", topology.DefaultExpiry, "heartbeat expiry threshold (T_expire)")
	flags.DurationVar(&scanInterval, "scan-interval", 0, "scanner cadence; defaults to --expire when zero")
	flags.StringVar(&logFormat, "log-format", "json", "log output format: json | pretty")
	flags.Var(&verbosity, "verbosity", "log verbosity: debug, info, warn, error")

	return cmd
}

type options struct {
	listen       string
	policyName   string
	expire       time.Duration
	scanInterval time.Duration
	logFormat    string
	level        slog.Level
}

func newLogHandler(format string, level slog.Level) slog.Handler {
	if format == "pretty" {
		return &slogpretty.Handler{
			We:  os.Stderr,
			Wo:  os.Stdout,
			Lvl: level,
		}
	}
	return slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
}

func run(ctx context.Context, opts options) error {
	logger := slog.New(newLogHandler(opts.logFormat, opts.level))

	policy, err := topology.NewParentPolicy(opts.policyName)
	if err != nil {
		return err
	}

	engineOpts := []topology.EngineOption{
		topology.WithLogger(logger),
		topology.WithExpiry(opts.expire),
	}
	if opts.scanInterval > 0 {
		engineOpts = append(engineOpts, topology.WithScanInterval(opts.scanInterval))
	}
	engine := topology.NewEngine(policy, engineOpts...)
	defer engine.Close()

	router := httpapi.NewRoutes(engine, clientip.RemoteAddr{})
	router.Use(
		httpapi.Recovery(logger),
		httpapi.Logger(logger, func(c *httpapi.Context) string {
			host, _ := clientip.RemoteAddr{}.ClientHost(c.Request())
			return host
		}),
	)

	server := &http.Server{
		Addr:    opts.listen,
		Handler: router,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", opts.listen, "policy", policy.Name())
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}
