package main

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/yourorg/specsync/internal/config"
	"github.com/yourorg/specsync/internal/generator"
	"github.com/yourorg/specsync/internal/openapi"
	"github.com/yourorg/specsync/internal/pipeline"
	"github.com/yourorg/specsync/internal/store"
	"github.com/yourorg/specsync/pkg/types"
)

func newReconcileCmd(opts *options) *cobra.Command {
	var existing, output, newPath string
	var force bool
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Regenerate the document and carry over extensions from the existing one",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			t := config.Target{
				Name:     "default",
				Existing: firstNonEmpty(existing, a.cfg.Reconcile.Existing),
				Output:   firstNonEmpty(output, a.cfg.Reconcile.Output),
				New:      newPath,
			}
			res, err := a.runner(force).Run(cmd.Context(), t)
			if err != nil {
				return err
			}
			printResult(cmd.OutOrStdout(), res)
			return nil
		},
	}
	cmd.Flags().StringVar(&existing, "existing", "", "existing document (default from config)")
	cmd.Flags().StringVar(&output, "output", "", "output document (default from config)")
	cmd.Flags().StringVar(&newPath, "new", "", "pre-generated document to use instead of the live routes")
	cmd.Flags().BoolVar(&force, "force", false, "write even when the output is up to date")
	return cmd
}

func newReconcileAllCmd(opts *options) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "reconcile-all",
		Short: "Reconcile every configured target concurrently",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.cfg.ValidateTargets(); err != nil {
				return err
			}

			sum, err := a.runner(force).ReconcileAll(cmd.Context(), a.cfg.Targets)
			out := cmd.OutOrStdout()
			for _, res := range sum.Results {
				if res != nil {
					printResult(out, res)
				}
			}
			fmt.Fprintf(out, "%d written, %d unchanged, %d failed\n", sum.Written, sum.Unchanged, sum.Failed)
			return err
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "write even when outputs are up to date")
	return cmd
}

func newGenerateCmd(opts *options) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Render the live routes into a document without reconciling",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			doc, err := a.server.Generator().Document(cmd.Context())
			if err != nil {
				return err
			}
			for _, problem := range generator.Validate(doc) {
				a.logger.Warn("generated document problem", "problem", problem)
			}
			if output == "" {
				data, err := openapi.Encode(doc, openapi.FormatYAML)
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			n, err := openapi.Write(afero.NewOsFs(), output, doc)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%s)\n", output, humanize.Bytes(uint64(n)))
			return nil
		},
	}
	cmd.Flags().StringVar(&output, "output", "", "file to write; stdout when empty")
	return cmd
}

func newServeCmd(opts *options) *cobra.Command {
	var host string
	var port int
	var reconcile bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the user API with /openapi.json, /openapi.yaml and /metrics",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if cmd.Flags().Changed("host") {
				a.cfg.Server.Host = host
			}
			if cmd.Flags().Changed("port") {
				a.cfg.Server.Port = port
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if reconcile {
				res, err := a.runner(false).Reconcile(ctx, a.cfg.Reconcile.Existing, a.cfg.Reconcile.Output)
				if err != nil {
					return err
				}
				printResult(cmd.OutOrStdout(), res)
			}

			addr := net.JoinHostPort(a.cfg.Server.Host, strconv.Itoa(a.cfg.Server.Port))
			return a.server.ListenAndServe(ctx, addr)
		},
	}
	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "server host")
	cmd.Flags().IntVar(&port, "port", 8080, "server port")
	cmd.Flags().BoolVar(&reconcile, "reconcile", false, "reconcile the configured document once before serving")
	return cmd
}

func newListCmd(opts *options) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List reconcile runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			runs, err := a.store.ListRuns(limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no runs")
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSTATUS\tTARGET\tOUTPUT\tSIZE\tWHEN")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
					r.ID, r.Status, r.Target, r.OutputPath,
					humanize.Bytes(uint64(r.BytesWritten)), humanize.Time(r.CreatedAt))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum runs to list; 0 lists all")
	return cmd
}

func newShowCmd(opts *options) *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show run details",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			run, err := a.store.GetRun(id)
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("run %s not found", id)
			}
			if err != nil {
				return err
			}
			printRun(cmd.OutOrStdout(), run)
			return nil
		},
	}
	cmd.Flags().StringVar(&id, "run", "", "run id")
	_ = cmd.MarkFlagRequired("run")
	return cmd
}

func newDeleteCmd(opts *options) *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete a run record",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.store.DeleteRun(id); err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return fmt.Errorf("run %s not found", id)
				}
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "deleted", id)
			return nil
		},
	}
	cmd.Flags().StringVar(&id, "run", "", "run id")
	_ = cmd.MarkFlagRequired("run")
	return cmd
}

func printResult(w io.Writer, res *pipeline.Result) {
	run := res.Run
	switch run.Status {
	case types.RunUnchanged:
		fmt.Fprintf(w, "%s: %s is up to date (run %s)\n", run.Target, run.OutputPath, run.ID)
	case types.RunFailed:
		fmt.Fprintf(w, "%s: failed: %s\n", run.Target, run.ErrorMsg)
	default:
		fmt.Fprintf(w, "%s: wrote %s (%s, +%d/-%d paths, %d extensions preserved, run %s)\n",
			run.Target, run.OutputPath, humanize.Bytes(uint64(run.BytesWritten)),
			run.PathsAdded, run.PathsRemoved, run.ExtensionsPreserved, run.ID)
		if res.Report != nil {
			for _, p := range res.Report.PathsRemoved {
				fmt.Fprintf(w, "  - %s\n", p)
			}
			for _, p := range res.Report.PathsAdded {
				fmt.Fprintf(w, "  + %s\n", p)
			}
		}
	}
}

func printRun(w io.Writer, r *types.Run) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "ID\t%s\n", r.ID)
	fmt.Fprintf(tw, "Target\t%s\n", r.Target)
	fmt.Fprintf(tw, "Status\t%s\n", r.Status)
	if r.ErrorMsg != "" {
		fmt.Fprintf(tw, "Error\t%s\n", r.ErrorMsg)
	}
	fmt.Fprintf(tw, "Existing\t%s\n", r.ExistingPath)
	fmt.Fprintf(tw, "Output\t%s\n", r.OutputPath)
	fmt.Fprintf(tw, "Paths\t+%d / -%d\n", r.PathsAdded, r.PathsRemoved)
	fmt.Fprintf(tw, "Extensions preserved\t%s\n", humanize.Comma(int64(r.ExtensionsPreserved)))
	fmt.Fprintf(tw, "Written\t%s\n", humanize.Bytes(uint64(r.BytesWritten)))
	fmt.Fprintf(tw, "Duration\t%s\n", r.Duration.Round(time.Millisecond))
	fmt.Fprintf(tw, "Input hash\t%s\n", r.InputHash)
	fmt.Fprintf(tw, "Output hash\t%s\n", r.OutputHash)
	fmt.Fprintf(tw, "Created\t%s (%s)\n", r.CreatedAt.Format(time.RFC3339), humanize.Time(r.CreatedAt))
	_ = tw.Flush()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
