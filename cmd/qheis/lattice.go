package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fumin/qheis"
	"github.com/fumin/qheis/mat"
	"github.com/fumin/qheis/store"
)

const (
	kindLattice = "lattice"

	builderKron     = "kron"
	builderDisk     = "disk"
	builderExplicit = "explicit"

	sitesMagnetization     = "magnetization"
	sitesMutualInformation = "mutual_information"
	sitesCorrelation       = "correlation"
)

type latticeConfig struct {
	Rows   int        `yaml:"rows"`
	Cols   int        `yaml:"cols"`
	Cyclic bool       `yaml:"cyclic"`
	J      [3]float64 `yaml:"j"`
	Bz     float64    `yaml:"bz"`
	// Builder is how the Hamiltonian is built, one of kron, disk or explicit.
	Builder string `yaml:"builder"`
}

func (cfg latticeConfig) lattice() qheis.Lattice {
	return qheis.Lattice{Shape: [2]int{cfg.Rows, cfg.Cols}, Cyclic: cfg.Cyclic}
}

func (cfg latticeConfig) name() string {
	return fmt.Sprintf("%dx%d_c%t_j%g_%g_%g_bz%g", cfg.Rows, cfg.Cols, cfg.Cyclic, cfg.J[0], cfg.J[1], cfg.J[2], cfg.Bz)
}

func (cfg latticeConfig) validate() error {
	if cfg.Rows < 1 || cfg.Cols < 1 {
		return errors.Errorf("lattice %dx%d", cfg.Rows, cfg.Cols)
	}
	switch cfg.Builder {
	case builderKron, builderDisk, builderExplicit, "":
	default:
		return errors.Errorf("unknown builder %q", cfg.Builder)
	}
	return nil
}

func newLatticeCmd(a *app) *cobra.Command {
	cfg := latticeConfig{}
	var j, jz float64
	cmd := &cobra.Command{
		Use:   "lattice",
		Short: "Ground state and site observables of a 2D Heisenberg lattice",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.J = [3]float64{j, j, j}
			if cmd.Flags().Changed("jz") {
				cfg.J[2] = jz
			}
			if err := cfg.validate(); err != nil {
				return errors.Wrap(err, "")
			}

			st, err := a.openStore()
			if err != nil {
				return errors.Wrap(err, "")
			}
			defer st.Close()

			obs, err := runLattice(cmd.Context(), a, st, cfg)
			if err != nil {
				return errors.Wrap(err, fmt.Sprintf("%#v", cfg))
			}
			printObservables(cmd.OutOrStdout(), obs)
			return nil
		},
	}
	cmd.Flags().IntVar(&cfg.Rows, "rows", 2, "number of rows")
	cmd.Flags().IntVar(&cfg.Cols, "cols", 2, "number of columns")
	cmd.Flags().BoolVar(&cfg.Cyclic, "cyclic", false, "periodic boundary conditions")
	cmd.Flags().Float64Var(&j, "j", 1, "isotropic coupling, positive for the antiferromagnet")
	cmd.Flags().Float64Var(&jz, "jz", 1, "Sz Sz coupling, overriding j")
	cmd.Flags().Float64Var(&cfg.Bz, "bz", 0, "magnetic field along z")
	cmd.Flags().StringVar(&cfg.Builder, "builder", builderKron, "hamiltonian builder: kron, disk or explicit")
	return cmd
}

// runLattice solves the lattice of cfg, and saves the observables of its ground state.
func runLattice(ctx context.Context, a *app, st *store.Store, cfg latticeConfig) (qheis.Observables, error) {
	lat := cfg.lattice()
	h, err := buildHamiltonian(cfg)
	if err != nil {
		return qheis.Observables{}, errors.Wrap(err, "")
	}
	a.logger.Info("hamiltonian", zap.String("name", cfg.name()), zap.Int("rows", h.Rows()), zap.Int("nonzeros", h.NumNonZero()))

	vv, err := mat.GroundState(h)
	if err != nil {
		return qheis.Observables{}, errors.Wrap(err, "")
	}
	obs, err := qheis.Analyze(lat, vv.Vec)
	if err != nil {
		return qheis.Observables{}, errors.Wrap(err, "")
	}
	obs.Energy = real(vv.Val)

	sites := map[string][][]float64{
		sitesMagnetization:     {obs.Magnetization},
		sitesMutualInformation: obs.MutualInformation,
		sitesCorrelation:       obs.Correlation,
	}
	if _, err := a.saveRun(ctx, st, kindLattice, cfg.name(), cfg, obs.Energy, 0, sites); err != nil {
		return qheis.Observables{}, errors.Wrap(err, "")
	}
	return obs, nil
}

func buildHamiltonian(cfg latticeConfig) (*mat.COO, error) {
	lat := cfg.lattice()
	switch cfg.Builder {
	case builderKron, "":
		h, buf := mat.COOZeros(1, 1), mat.COOZeros(1, 1)
		qheis.Heisenberg(h, buf, lat, cfg.J, cfg.Bz)
		return h, nil
	case builderDisk:
		return buildDisk(lat, cfg)
	case builderExplicit:
		tmpDir, err := os.MkdirTemp("", "")
		if err != nil {
			return nil, errors.Wrap(err, "")
		}
		defer os.RemoveAll(tmpDir)
		if err := qheis.HeisenbergExplicit(tmpDir, lat, cfg.J, cfg.Bz); err != nil {
			return nil, errors.Wrap(err, "")
		}
		h, err := mat.ReadCOO(tmpDir)
		if err != nil {
			return nil, errors.Wrap(err, "")
		}
		return h, nil
	}
	return nil, errors.Errorf("unknown builder %q", cfg.Builder)
}

func buildDisk(lat qheis.Lattice, cfg latticeConfig) (*mat.COO, error) {
	tmpDir, err := os.MkdirTemp("", "")
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	defer os.RemoveAll(tmpDir)

	h, err := mat.NewDiskMatrix(filepath.Join(tmpDir, "h.db"), [][]complex128{{0}})
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	defer h.Close()
	buf, err := mat.NewDiskMatrix(filepath.Join(tmpDir, "buf.db"), [][]complex128{{0}})
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	defer buf.Close()

	qheis.Heisenberg(h, buf, lat, cfg.J, cfg.Bz)
	if err := h.WriteCOO(tmpDir); err != nil {
		return nil, errors.Wrap(err, "")
	}
	coo, err := mat.ReadCOO(tmpDir)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	return coo, nil
}

func printObservables(w io.Writer, obs qheis.Observables) {
	fmt.Fprintf(w, "energy,%f\n", obs.Energy)
	fmt.Fprintf(w, "i,magnetization\n")
	for i, m := range obs.Magnetization {
		fmt.Fprintf(w, "%d,%f\n", i, m)
	}
	writeMatrix(w, sitesMutualInformation, obs.MutualInformation)
	writeMatrix(w, sitesCorrelation, obs.Correlation)
}
