// Command dbgserver runs a single debug session: it binds a port, waits
// for one peer, and drives that peer's session to completion.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/GoAethereal/cancel"
	"github.com/spf13/cobra"

	"github.com/GoAethereal/dbgclient"
	"github.com/GoAethereal/dbgclient/internal/backend"
	"github.com/GoAethereal/dbgclient/internal/logging"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		port      int
		verbosity int
		logFile   string
	)

	cmd := &cobra.Command{
		Use:   "dbgserver [target] [-- argv...]",
		Short: "serve one remote-debugging session",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var target string
			var argv []string
			if len(args) > 0 {
				target = args[0]
				argv = args[1:]
			}

			logCfg := logging.DefaultConfig()
			logCfg.Level = logging.LevelFromVerbosity(verbosity)
			if logFile != "" {
				f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
				if err != nil {
					return fmt.Errorf("open log file: %w", err)
				}
				defer f.Close()
				logCfg.Output = io.MultiWriter(logCfg.Output, f)
			}
			log := logging.New(logCfg)
			logging.SetDefault(log)

			opts := dbgclient.Options{
				Port:       port,
				Verbosity:  verbosity,
				LogFile:    logFile,
				TargetPath: target,
				TargetArgv: argv,
			}
			if err := opts.Verify(); err != nil {
				return err
			}

			cfg := dbgclient.Config{
				Options: opts,
				Backend: backend.NewNative(log),
				Logger:  log,
			}

			ctx, stop := cancel.Promote(context.Background())
			defer stop()

			s := &dbgclient.Server{}
			return s.Serve(ctx, cfg)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 5039, "port to listen on")
	cmd.Flags().CountVarP(&verbosity, "verbose", "v", "increase log verbosity (-v, -vv)")
	cmd.Flags().StringVar(&logFile, "lf", "", "additionally log to this file")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}
