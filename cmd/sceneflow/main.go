// Package main provides the SceneFlow CLI: flow management in the asset
// store and headless play-throughs of the active flow.
package main

import (
	"context"
	"fmt"
	"io"
	"log"

	"github.com/spf13/cobra"

	"github.com/sceneflow/sceneflow/internal/infrastructure/config"
	"github.com/sceneflow/sceneflow/internal/infrastructure/logging"
	"github.com/sceneflow/sceneflow/pkg/sceneflow"
)

// Version information set during build
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Fatalf("sceneflow: %v", err)
	}
}

// options are the persistent flags shared by every command.
type options struct {
	envFile    string
	configFile string
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "sceneflow",
		Short:         "Manage and play scene flows",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", "", "load settings from this .env file")
	root.PersistentFlags().StringVar(&opts.configFile, "config", "", "YAML config file applied over the environment")

	root.AddCommand(
		newVersionCmd(),
		newFlowCmd(opts),
		newTriggersCmd(opts),
		newPlayCmd(opts),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "SceneFlow %s (commit: %s, built: %s)\n", Version, Commit, BuildTime)
		},
	}
}

// open loads configuration and opens the store it names. Logs go to the
// command's error stream.
func (o *options) open(ctx context.Context, logs io.Writer) (*sceneflow.Runtime, error) {
	var envFiles []string
	if o.envFile != "" {
		envFiles = append(envFiles, o.envFile)
	}
	cfg, err := config.Load(envFiles...)
	if err != nil {
		return nil, err
	}
	if o.configFile != "" {
		if err := cfg.Overlay(o.configFile); err != nil {
			return nil, err
		}
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid configuration: %w", err)
		}
	}
	logger, err := logging.New(logs, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}
	return sceneflow.Open(ctx, cfg, logger)
}

// withRuntime opens the runtime for the duration of fn.
func (o *options) withRuntime(cmd *cobra.Command, fn func(context.Context, *sceneflow.Runtime) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	rt, err := o.open(ctx, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer rt.Close()
	return fn(ctx, rt)
}
