package main

import (
	"fmt"
	"math/cmplx"
	"math/rand/v2"

	"github.com/fumin/tensor"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/fumin/qheis/mps"
)

const (
	kindDMRG = "dmrg"
)

type dmrgConfig struct {
	N       int        `yaml:"n"`
	J       [3]float64 `yaml:"j"`
	Bz      float64    `yaml:"bz"`
	BondDim int        `yaml:"bond_dim"`
	Tol     float32    `yaml:"tol"`
	Seed    uint64     `yaml:"seed"`
	// MaxIterations is the maximum number of sweeps.
	MaxIterations int `yaml:"max_iterations"`
}

type dmrgResult struct {
	energy float64
	// magnetization is <M_z> per spin.
	magnetization float64
	// rms is sqrt(<M_z^2>) per spin.
	rms float64
}

func newDMRGCmd(a *app) *cobra.Command {
	cfg := dmrgConfig{J: [3]float64{1, 1, 1}}
	var j float64
	cmd := &cobra.Command{
		Use:   "dmrg",
		Short: "Ground state of an open Heisenberg chain by the MPS ground state search",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.J = [3]float64{j, j, j}
			if cfg.N < 2 || cfg.BondDim < 1 {
				return errors.Errorf("n %d bond dimension %d", cfg.N, cfg.BondDim)
			}
			if cfg.MaxIterations < 1 {
				return errors.Errorf("max iterations %d", cfg.MaxIterations)
			}
			res, err := solveDMRG(a, cfg)
			if err != nil {
				return errors.Wrap(err, fmt.Sprintf("%#v", cfg))
			}

			st, err := a.openStore()
			if err != nil {
				return errors.Wrap(err, "")
			}
			defer st.Close()
			name := fmt.Sprintf("dmrg%d_d%d_j%g_bz%g", cfg.N, cfg.BondDim, j, cfg.Bz)
			if _, err := a.saveRun(cmd.Context(), st, kindDMRG, name, cfg, res.energy, 0, nil); err != nil {
				return errors.Wrap(err, "")
			}

			fmt.Fprintf(cmd.OutOrStdout(), "n,bond_dim,energy,m,m_rms\n")
			fmt.Fprintf(cmd.OutOrStdout(), "%d,%d,%f,%f,%f\n", cfg.N, cfg.BondDim, res.energy, res.magnetization, res.rms)
			return nil
		},
	}
	cmd.Flags().IntVar(&cfg.N, "n", 8, "number of sites")
	cmd.Flags().Float64Var(&j, "j", 1, "isotropic coupling, positive for the antiferromagnet")
	cmd.Flags().Float64Var(&cfg.Bz, "bz", 0, "magnetic field along z")
	cmd.Flags().IntVar(&cfg.BondDim, "bond-dim", 4, "maximum bond dimension")
	cmd.Flags().Float32Var(&cfg.Tol, "tol", 1e-5, "tolerance of the energy variance")
	cmd.Flags().Uint64Var(&cfg.Seed, "seed", 0, "random seed of the initial state")
	cmd.Flags().IntVar(&cfg.MaxIterations, "max-iters", 32, "maximum number of sweeps")
	return cmd
}

func solveDMRG(a *app, cfg dmrgConfig) (dmrgResult, error) {
	h := mps.Heisenberg(cfg.N, cfg.J, cfg.Bz)
	mz := mps.MagnetizationZ(cfg.N)

	// Buffers.
	fs := make([]*tensor.Dense, 0, len(h))
	for range h {
		fs = append(fs, tensor.Zeros(1))
	}
	var bufs [10]*tensor.Dense
	for i := range bufs {
		bufs[i] = tensor.Zeros(1)
	}

	// Search for ground state.
	state := mps.RandMPS(h, cfg.BondDim, rand.New(rand.NewPCG(cfg.Seed, 0)))
	opt := mps.NewSearchGroundStateOptions().Tol(cfg.Tol).MaxIterations(cfg.MaxIterations).Logger(a.logger)
	if err := mps.SearchGroundState(fs, h, state, bufs, opt); err != nil {
		return dmrgResult{}, errors.Wrap(err, "")
	}

	// Calculate statistics.
	bufs2 := [2]*tensor.Dense(bufs[:2])
	psiIP := mps.InnerProduct(state, state, bufs2)
	e0 := mps.LExpressions(fs, h, state, bufs2) / psiIP
	n := complex(float32(cfg.N), 0)
	m := mps.LExpressions(fs, mz, state, bufs2) / psiIP / n
	m2 := mps.H2(mz, state, bufs2) / psiIP
	rms := complex64(cmplx.Sqrt(complex128(m2))) / n

	return dmrgResult{energy: float64(real(e0)), magnetization: float64(real(m)), rms: float64(real(rms))}, nil
}
