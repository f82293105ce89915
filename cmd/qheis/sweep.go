package main

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
)

// sweepConfig is the YAML file of the sweep subcommand.
type sweepConfig struct {
	Parallelism int             `yaml:"parallelism"`
	Lattices    []latticeConfig `yaml:"lattices"`
}

func readSweepConfig(fpath string) (sweepConfig, error) {
	b, err := os.ReadFile(fpath)
	if err != nil {
		return sweepConfig{}, errors.Wrap(err, "")
	}
	cfg := sweepConfig{Parallelism: 1}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return sweepConfig{}, errors.Wrap(err, "")
	}
	if cfg.Parallelism < 1 {
		return sweepConfig{}, errors.Errorf("parallelism %d", cfg.Parallelism)
	}
	names := make(map[string]int, len(cfg.Lattices))
	for i, l := range cfg.Lattices {
		if err := l.validate(); err != nil {
			return sweepConfig{}, errors.Wrap(err, fmt.Sprintf("%d", i))
		}
		if j, ok := names[l.name()]; ok {
			return sweepConfig{}, errors.Errorf("lattices %d and %d are both %s", j, i, l.name())
		}
		names[l.name()] = i
	}
	return cfg, nil
}

func newSweepCmd(a *app) *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Solve the lattices listed in a YAML file, skipping those already in the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := readSweepConfig(configPath)
			if err != nil {
				return errors.Wrap(err, configPath)
			}

			st, err := a.openStore()
			if err != nil {
				return errors.Wrap(err, "")
			}
			defer st.Close()

			todo := make([]latticeConfig, 0, len(cfg.Lattices))
			for _, l := range cfg.Lattices {
				done, err := st.Done(cmd.Context(), l.name())
				if err != nil {
					return errors.Wrap(err, l.name())
				}
				if done {
					a.logger.Info("skip", zap.String("name", l.name()))
					fmt.Fprintf(cmd.OutOrStdout(), "skip,%s\n", l.name())
					continue
				}
				todo = append(todo, l)
			}

			g, ctx := errgroup.WithContext(cmd.Context())
			g.SetLimit(cfg.Parallelism)
			for _, l := range todo {
				g.Go(func() error {
					obs, err := runLattice(ctx, a, st, l)
					if err != nil {
						return errors.Wrap(err, l.name())
					}
					a.logger.Info("solved", zap.String("name", l.name()), zap.Float64("energy", obs.Energy))
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return errors.Wrap(err, "")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "sweep.yaml", "YAML file listing the lattices")
	return cmd
}
