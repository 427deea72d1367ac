package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sceneflow/sceneflow/internal/app/runtime"
	"github.com/sceneflow/sceneflow/pkg/sceneflow"
)

func newTriggersCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "triggers <scene>",
		Short: "List the flow triggers a scene declares",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withRuntime(cmd, func(ctx context.Context, rt *sceneflow.Runtime) error {
				for _, id := range rt.Triggers(ctx, args[0]) {
					fmt.Fprintln(cmd.OutOrStdout(), id)
				}
				return nil
			})
		},
	}
}

func newPlayCmd(opts *options) *cobra.Command {
	var triggers []string
	cmd := &cobra.Command{
		Use:   "play",
		Short: "Start the active flow headless and fire triggers in order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withRuntime(cmd, func(ctx context.Context, rt *sceneflow.Runtime) error {
				session, err := rt.Play(ctx, runtime.NewHeadlessHost(nil))
				if err != nil {
					return err
				}
				defer session.Close()

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "start: %s\n", session.CurrentName())
				for _, id := range triggers {
					outcome, err := session.TriggerFlow(ctx, id)
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "trigger %s: %s -> %s\n", id, outcome, session.CurrentName())
				}

				st := session.State()
				fmt.Fprintf(out, "current: %s (overlays: %d)\n", st.CurrentScene, st.OverlayDepth)
				for _, t := range st.Transitions {
					line := fmt.Sprintf("  %d %s %s -> %s [%s] %s", t.Step, t.Cause, orDash(t.From), t.To, t.Mode, t.Status)
					if t.Error != "" {
						line += ": " + t.Error
					}
					fmt.Fprintln(out, line)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVar(&triggers, "trigger", nil, "trigger to fire after start (repeatable)")
	return cmd
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
