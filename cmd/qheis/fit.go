package main

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fumin/qheis"
	"github.com/fumin/qheis/mat"
	"github.com/fumin/qheis/mps"
	"github.com/fumin/qheis/quantum"
)

const (
	kindFit = "fit"
)

type fitConfig struct {
	N            int     `yaml:"n"`
	BondDim      int     `yaml:"bond_dim"`
	Method       string  `yaml:"method"`
	Iterations   int     `yaml:"iterations"`
	LearningRate float64 `yaml:"learning_rate"`
	Seed         uint64  `yaml:"seed"`
}

type fitOutcome struct {
	exact  float64
	energy float64
	loss   float64
	status string
}

func newFitCmd(a *app) *cobra.Command {
	cfg := fitConfig{}
	cmd := &cobra.Command{
		Use:   "fit",
		Short: "Fit an MPS to the ground state of an open Heisenberg chain",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.N < 2 || cfg.BondDim < 1 {
				return errors.Errorf("n %d bond dimension %d", cfg.N, cfg.BondDim)
			}
			out, err := runFit(a, cfg)
			if err != nil {
				return errors.Wrap(err, fmt.Sprintf("%#v", cfg))
			}

			st, err := a.openStore()
			if err != nil {
				return errors.Wrap(err, "")
			}
			defer st.Close()
			name := fmt.Sprintf("fit%d_d%d_%s_seed%d", cfg.N, cfg.BondDim, cfg.Method, cfg.Seed)
			if _, err := a.saveRun(cmd.Context(), st, kindFit, name, cfg, out.energy, out.loss, nil); err != nil {
				return errors.Wrap(err, "")
			}

			fmt.Fprintf(cmd.OutOrStdout(), "n,bond_dim,method,exact,energy,loss,status\n")
			fmt.Fprintf(cmd.OutOrStdout(), "%d,%d,%s,%f,%f,%g,%s\n", cfg.N, cfg.BondDim, cfg.Method, out.exact, out.energy, out.loss, out.status)
			return nil
		},
	}
	cmd.Flags().IntVar(&cfg.N, "n", 6, "number of sites")
	cmd.Flags().IntVar(&cfg.BondDim, "bond-dim", 4, "bond dimension of the MPS")
	cmd.Flags().StringVar(&cfg.Method, "method", mps.Adam.String(), "optimizer: adam or lbfgs")
	cmd.Flags().IntVar(&cfg.Iterations, "iters", 1000, "maximum number of iterations")
	cmd.Flags().Float64Var(&cfg.LearningRate, "lr", 0.01, "learning rate of adam")
	cmd.Flags().Uint64Var(&cfg.Seed, "seed", 0, "random seed of the initial state")
	return cmd
}

func runFit(a *app, cfg fitConfig) (fitOutcome, error) {
	method, err := mps.ParseMethod(cfg.Method)
	if err != nil {
		return fitOutcome{}, errors.Wrap(err, "")
	}

	h := qheis.HamHeis(cfg.N, 1, 0, false)
	gs, err := mat.GroundState(h)
	if err != nil {
		return fitOutcome{}, errors.Wrap(err, "")
	}
	target := quantum.Normalize(gs.Vec)

	rng := rand.New(rand.NewPCG(cfg.Seed, 0))
	ms := mps.RandState(cfg.N, 2, cfg.BondDim, rng)
	opt := mps.NewFitOptions().Method(method).Iterations(cfg.Iterations).LearningRate(cfg.LearningRate).Logger(a.logger, time.Second)
	res, err := mps.Fit(target, ms, opt)
	if err != nil {
		return fitOutcome{}, errors.Wrap(err, "")
	}
	psi := quantum.Ket(mps.Dense(ms))
	e := real(quantum.Expec(h, psi))
	a.logger.Info("fit", zap.Float64("exact", real(gs.Val)), zap.Float64("energy", e), zap.Float64("loss", res.Loss), zap.String("status", res.Status))

	return fitOutcome{exact: real(gs.Val), energy: e, loss: res.Loss, status: res.Status}, nil
}
