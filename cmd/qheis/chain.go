package main

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/fumin/qheis"
	"github.com/fumin/qheis/mat"
)

const (
	kindChain = "chain"
)

type chainConfig struct {
	N      int     `yaml:"n"`
	J      float64 `yaml:"j"`
	Bz     float64 `yaml:"bz"`
	Cyclic bool    `yaml:"cyclic"`
}

func newChainCmd(a *app) *cobra.Command {
	cfg := chainConfig{}
	cmd := &cobra.Command{
		Use:   "chain",
		Short: "Ground state energy of a Heisenberg chain by exact diagonalization",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.N < 1 {
				return errors.Errorf("n %d", cfg.N)
			}
			h := qheis.HamHeis(cfg.N, cfg.J, cfg.Bz, cfg.Cyclic)
			vv, err := mat.GroundState(h)
			if err != nil {
				return errors.Wrap(err, fmt.Sprintf("%#v", cfg))
			}
			e0 := real(vv.Val)

			st, err := a.openStore()
			if err != nil {
				return errors.Wrap(err, "")
			}
			defer st.Close()
			name := fmt.Sprintf("chain%d_c%t_j%g_bz%g", cfg.N, cfg.Cyclic, cfg.J, cfg.Bz)
			if _, err := a.saveRun(cmd.Context(), st, kindChain, name, cfg, e0, 0, nil); err != nil {
				return errors.Wrap(err, "")
			}

			fmt.Fprintf(cmd.OutOrStdout(), "n,energy,energy_per_site\n")
			fmt.Fprintf(cmd.OutOrStdout(), "%d,%f,%f\n", cfg.N, e0, e0/float64(cfg.N))
			return nil
		},
	}
	cmd.Flags().IntVar(&cfg.N, "n", 8, "number of sites")
	cmd.Flags().Float64Var(&cfg.J, "j", 1, "coupling, positive for the antiferromagnet")
	cmd.Flags().Float64Var(&cfg.Bz, "bz", 0, "magnetic field along z")
	cmd.Flags().BoolVar(&cfg.Cyclic, "cyclic", false, "periodic boundary conditions")
	return cmd
}
