package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sceneflow/sceneflow/internal/app/dto"
	"github.com/sceneflow/sceneflow/pkg/sceneflow"
)

func newFlowCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "flow",
		Short: "List, inspect and move flows in the asset store",
	}
	cmd.AddCommand(
		newFlowListCmd(opts),
		newFlowShowCmd(opts),
		newFlowExportCmd(opts),
		newFlowImportCmd(opts),
		newFlowActivateCmd(opts),
		newFlowDeleteCmd(opts),
		newFlowValidateCmd(opts),
	)
	return cmd
}

func newFlowListCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored flows; the active one is starred",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withRuntime(cmd, func(ctx context.Context, rt *sceneflow.Runtime) error {
				infos, err := rt.Flows().List(ctx)
				if err != nil {
					return err
				}
				active, err := rt.Flows().Active(ctx)
				if err != nil && !errors.Is(err, dto.ErrNoActiveFlow) {
					return err
				}
				out := cmd.OutOrStdout()
				if len(infos) == 0 {
					fmt.Fprintln(out, "no flows")
					return nil
				}
				for _, info := range infos {
					mark := " "
					if info.Name == active {
						mark = "*"
					}
					fmt.Fprintf(out, "%s %s\t%s\n", mark, info.Name, info.UpdatedAt.Format("2006-01-02 15:04:05"))
				}
				return nil
			})
		},
	}
}

func newFlowShowCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "show <name>",
		Short: "Print the scenes and transitions of a flow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withRuntime(cmd, func(ctx context.Context, rt *sceneflow.Runtime) error {
				g, err := rt.Flows().Load(ctx, args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "flow %s: %d nodes, %d edges\n", args[0], g.NodeCount(), g.EdgeCount())
				names := map[int]string{}
				for _, n := range g.Nodes() {
					names[int(n.ID)] = n.Name
					line := fmt.Sprintf("  node %d %q at (%g, %g)", n.ID, n.Name, n.X, n.Y)
					if len(n.Triggers) > 0 {
						line += " triggers: " + strings.Join(n.Triggers, ", ")
					}
					fmt.Fprintln(out, line)
				}
				for _, e := range g.Edges() {
					fmt.Fprintf(out, "  edge %d %s.%s -> %s.%s [%s]\n", e.ID,
						names[int(e.FromNodeID)], e.FromPort, names[int(e.ToNodeID)], e.ToPort, e.Mode)
				}
				return nil
			})
		},
	}
}

func newFlowExportCmd(opts *options) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export <name>",
		Short: "Write a flow in the export format",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withRuntime(cmd, func(ctx context.Context, rt *sceneflow.Runtime) error {
				file, data, err := rt.Flows().Export(ctx, args[0])
				if err != nil {
					return err
				}
				if output == "" {
					_, err := cmd.OutOrStdout().Write(append(data, '\n'))
					return err
				}
				if output == "." {
					output = file
				}
				if err := os.WriteFile(output, data, 0o644); err != nil {
					return fmt.Errorf("write export: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "exported %s to %s\n", args[0], output)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", `output file ("." for <name>.flow.json, empty for stdout)`)
	return cmd
}

func newFlowImportCmd(opts *options) *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Store an exported flow file and bundle its scenes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read import: %w", err)
			}
			return opts.withRuntime(cmd, func(ctx context.Context, rt *sceneflow.Runtime) error {
				imported, g, err := rt.Flows().Import(data, "")
				if err != nil {
					return err
				}
				if name != "" {
					imported = name
				}
				res, err := rt.Flows().Save(ctx, imported, g)
				if err != nil {
					return err
				}
				bundled := 0
				if res != nil {
					bundled = len(res.BundledScenes)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "imported %s (%d scenes bundled)\n", imported, bundled)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "store under this name instead of the one in the file")
	return cmd
}

func newFlowActivateCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "activate <name>",
		Short: "Mark a flow as the one play starts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withRuntime(cmd, func(ctx context.Context, rt *sceneflow.Runtime) error {
				if _, err := rt.Flows().Load(ctx, args[0]); err != nil {
					return err
				}
				if err := rt.Flows().SetActive(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "active flow: %s\n", args[0])
				return nil
			})
		},
	}
}

func newFlowDeleteCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a flow and its bundle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withRuntime(cmd, func(ctx context.Context, rt *sceneflow.Runtime) error {
				if err := rt.Flows().Delete(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
				return nil
			})
		},
	}
}

func newFlowValidateCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>",
		Short: "Check a flow file without storing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read flow: %w", err)
			}
			return opts.withRuntime(cmd, func(_ context.Context, rt *sceneflow.Runtime) error {
				report := rt.Flows().Validate(data)
				out := cmd.OutOrStdout()
				for _, w := range report.Warnings {
					fmt.Fprintf(out, "warning: %s\n", w)
				}
				for _, e := range report.Errors {
					fmt.Fprintf(out, "error: %s: %s\n", e.Field, e.Message)
				}
				if !report.OK() {
					return fmt.Errorf("%s: %d errors", args[0], len(report.Errors))
				}
				fmt.Fprintf(out, "%s: ok\n", args[0])
				return nil
			})
		},
	}
}
