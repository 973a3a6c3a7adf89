package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/enjoys-in/airsend-calc/cmd/calc"
	api "github.com/enjoys-in/airsend-calc/cmd/server"
	"github.com/enjoys-in/airsend-calc/cmd/wireframe"
	"github.com/enjoys-in/airsend-calc/config"
	"github.com/enjoys-in/airsend-calc/internal/logging"
	"github.com/pkg/profile"
	"github.com/spf13/cobra"
)

type options struct {
	port         int
	envFile      string
	cpuProfile   bool
	memProfile   bool
	blockProfile bool
	profilePath  string
}

func newRootCmd() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "airsend-calc",
		Short: "Shared-state calculator server",
		Long: `Serve calculator sessions over TCP. Clients join a session by id
(-1 for a new one) and every command they send is evaluated against the
session's variables a to z, with the result broadcast to every client
of that session.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts)
		},
	}

	flags := cmd.Flags()
	flags.IntVarP(&opts.port, "port", "p", config.DefaultPort, "Port to listen on (overrides CALC_PORT)")
	flags.StringVar(&opts.envFile, "env", config.DefaultEnvFile, "Env file to load")
	flags.BoolVar(&opts.cpuProfile, "profile-cpu", false, "Enable CPU profiling.")
	flags.BoolVar(&opts.memProfile, "profile-mem", false, "Enable Memory profiling.")
	flags.BoolVar(&opts.blockProfile, "profile-lock", false, "Enable lock profiling.")
	flags.StringVar(&opts.profilePath, "profile-path", "", "Path where to write profile data.")

	return cmd
}

// main starts the calculator listener and the admin HTTP API in parallel
// and shuts both down gracefully on Ctrl+C or SIGTERM.
func main() {
	if err := newRootCmd().Execute(); err != nil {
		if errors.Is(err, config.ErrInvalidPort) {
			fmt.Fprintln(os.Stderr, "Invalid port.")
		} else {
			fmt.Fprintln(os.Stderr, "❌", err)
		}
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, opts options) error {
	if cmd.Flags().Changed("port") {
		if err := config.ValidatePort(opts.port); err != nil {
			return err
		}
	}

	cfg, err := config.GetConfig(opts.envFile)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("port") {
		cfg.Calc.Port = opts.port
	}
	if err := logging.Setup(cfg.Log); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	log.Println("✅ Config loaded")

	if opts.cpuProfile {
		p := profile.Start(profile.CPUProfile, profile.ProfilePath(opts.profilePath))
		defer p.Stop()
	}
	if opts.memProfile {
		p := profile.Start(profile.MemProfile, profile.MemProfileAllocs, profile.ProfilePath(opts.profilePath))
		defer p.Stop()
	}
	if opts.blockProfile {
		p := profile.Start(profile.BlockProfile, profile.ProfilePath(opts.profilePath))
		defer p.Stop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := wireframe.InitWireframe(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialise: %w", err)
	}
	defer func() {
		if err := app.Close(); err != nil {
			log.Printf("❌ Shutdown: %v", err)
		}
	}()

	// Run the calculator and HTTP in parallel
	errCh := make(chan error, 2)
	var wg sync.WaitGroup
	for _, serve := range []func(context.Context, *wireframe.AppWireframe) error{calc.RunCalc, api.RunHttpApi} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := serve(ctx, app); err != nil {
				errCh <- err
			}
		}()
	}

	log.Println("🧩 Services started. Press Ctrl+C to stop.")
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(stop)

	var runErr error
	select {
	case <-stop:
	case runErr = <-errCh:
	}

	log.Println("🛑 Shutting down gracefully...")
	cancel()
	wg.Wait()
	return runErr
}
