package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/mazesim/service/internal/config"
	"github.com/jason-s-yu/mazesim/service/internal/server"
	"github.com/jason-s-yu/mazesim/service/internal/store"
	"github.com/spf13/cobra"
)

func (a *app) newRunsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "runs",
		Short: "List stored runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.needsPersistentStore("runs"); err != nil {
				return err
			}
			st, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Close()

			runs, err := st.Runs(cmd.Context())
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no runs")
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tCREATED\tGRID\tAGENTS")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%dx%d\t%d\n", r.ID, r.CreatedAt.Format(time.RFC3339),
					r.Scenario.Width, r.Scenario.Height, len(r.Scenario.Agents))
			}
			return tw.Flush()
		},
	}
}

// needsPersistentStore rejects the memory backend for commands that read runs
// written by an earlier process.
func (a *app) needsPersistentStore(command string) error {
	if a.cfg.Store == config.StoreMemory {
		return fmt.Errorf("%s needs MAZESIM_STORE=%s|%s, have %q", command,
			config.StorePostgres, config.StoreRedis, a.cfg.Store)
	}
	return nil
}

func (a *app) newChartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chart <run-id>",
		Short: "Write an HTML chart of a stored run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid run id %q: %w", args[0], err)
			}
			out, _ := cmd.Flags().GetString("out")
			if out == "" {
				out = id.String() + ".html"
			}
			if err := a.needsPersistentStore("chart"); err != nil {
				return err
			}

			st, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Close()

			steps, err := st.Steps(cmd.Context(), id)
			if err != nil {
				return err
			}
			if err := writeChart(out, id.String(), steps); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "chart written to %s\n", out)
			return nil
		},
	}
	cmd.Flags().StringP("out", "o", "", "output path (default <run-id>.html)")
	return cmd
}

func (a *app) newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve stored runs and stream new ones over a websocket",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			addr, _ := cmd.Flags().GetString("addr")
			if addr == "" {
				addr = a.cfg.ListenAddr
			}
			maxSteps, _ := cmd.Flags().GetInt("max-steps")

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			st, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			a.log.WithField("store", a.cfg.Store).Info("starting server")
			return server.New(st, a.log, maxSteps).ListenAndServe(ctx, addr)
		},
	}
	cmd.Flags().String("addr", "", "listen address (default MAZESIM_LISTEN_ADDR)")
	cmd.Flags().Int("max-steps", 0, "step cap per streamed run (0 uses the engine default)")
	return cmd
}

func (a *app) newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the PostgreSQL schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if a.cfg.Store != config.StorePostgres {
				return fmt.Errorf("migrate needs MAZESIM_STORE=%s, have %q", config.StorePostgres, a.cfg.Store)
			}
			st, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Close()

			pg := st.(*store.PostgresStore)
			if err := pg.Migrate(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
			return nil
		},
	}
}
