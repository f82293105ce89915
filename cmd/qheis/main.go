// Command qheis solves Heisenberg models by exact diagonalization and matrix product states.
//
// Results of every run are kept in a sqlite database, which the gather subcommand prints as CSV.
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/fumin/qheis/store"
)

// app holds the state shared by all subcommands.
type app struct {
	dbPath  string
	verbose bool
	logger  *zap.Logger
}

func (a *app) openStore() (*store.Store, error) {
	st, err := store.Open(a.dbPath)
	if err != nil {
		return nil, errors.Wrap(err, a.dbPath)
	}
	return st, nil
}

// saveRun saves a run whose config is cfg encoded in YAML, together with its site resolved observables.
func (a *app) saveRun(ctx context.Context, st *store.Store, kind, name string, cfg any, energy, loss float64, sites map[string][][]float64) (int64, error) {
	b, err := yaml.Marshal(cfg)
	if err != nil {
		return -1, errors.Wrap(err, "")
	}
	run := store.Run{Kind: kind, Name: name, Config: string(b), Energy: energy, Loss: loss}
	id, err := st.SaveRun(ctx, run, sites)
	if err != nil {
		return -1, errors.Wrap(err, "")
	}
	a.logger.Info("saved", zap.String("kind", kind), zap.String("name", name), zap.Int64("id", id))
	return id, nil
}

func newRootCmd() *cobra.Command {
	a := &app{logger: zap.NewNop()}
	root := &cobra.Command{
		Use:           "qheis",
		Short:         "Heisenberg model ground states, observables and MPS fits",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			config := zap.NewProductionConfig()
			if a.verbose {
				config = zap.NewDevelopmentConfig()
			}
			logger, err := config.Build()
			if err != nil {
				return errors.Wrap(err, "")
			}
			a.logger = logger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = a.logger.Sync()
		},
	}
	root.PersistentFlags().StringVar(&a.dbPath, "db", "qheis.db", "sqlite database of run results")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "development logging at debug level")

	root.AddCommand(
		newLatticeCmd(a),
		newChainCmd(a),
		newDMRGCmd(a),
		newFitCmd(a),
		newSweepCmd(a),
		newGatherCmd(a),
	)
	return root
}

// writeMatrix writes m as CSV rows prefixed by name.
func writeMatrix(w io.Writer, name string, m [][]float64) {
	for i, row := range m {
		strs := make([]string, 0, len(row))
		for _, v := range row {
			strs = append(strs, fmt.Sprintf("%f", v))
		}
		fmt.Fprintf(w, "%s,%d,%s\n", name, i, strings.Join(strs, ","))
	}
}

func main() {
	log.SetFlags(log.Lmicroseconds | log.Llongfile | log.LstdFlags)
	if err := newRootCmd().Execute(); err != nil {
		log.Fatalf("%+v", err)
	}
}
