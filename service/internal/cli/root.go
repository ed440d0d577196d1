package cli

import (
	"context"
	"fmt"

	"github.com/jason-s-yu/mazesim/service/internal/config"
	"github.com/jason-s-yu/mazesim/service/internal/store"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// app carries what every command needs once configuration is loaded.
type app struct {
	cfg *config.Config
	log *logrus.Logger
}

// Execute runs the root command.
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "mazesim",
		Short: "Decision-theoretic multiagent maze simulator",
		Long: `mazesim runs agents through grid mazes. Each agent picks its moves by
expectimax lookahead over the world's dynamics and its own reward.

Run the default 6x6 maze and print every decision:
  mazesim run -v 1

Configuration comes from MAZESIM_* environment variables or a .env file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.initConfig(cmd)
		},
	}
	root.AddCommand(a.newRunCmd())
	root.AddCommand(a.newRunsCmd())
	root.AddCommand(a.newChartCmd())
	root.AddCommand(a.newServeCmd())
	root.AddCommand(a.newMigrateCmd())
	return root
}

func (a *app) initConfig(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log, err := cfg.Logger()
	if err != nil {
		return err
	}
	log.SetOutput(cmd.ErrOrStderr())
	a.cfg, a.log = cfg, log
	return nil
}

// openStore connects the configured run store.
func (a *app) openStore(ctx context.Context) (store.Store, error) {
	switch a.cfg.Store {
	case config.StorePostgres:
		st, err := store.ConnectPostgres(ctx, a.cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("%w\nSet MAZESIM_DATABASE_URL environment variable", err)
		}
		return st, nil
	case config.StoreRedis:
		st, err := store.ConnectRedis(a.cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("%w\nSet MAZESIM_REDIS_URL environment variable", err)
		}
		return st, nil
	default:
		return store.NewMemoryStore(), nil
	}
}
