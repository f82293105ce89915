package main

import (
	"encoding/csv"
	"fmt"
	"strconv"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newGatherCmd(a *app) *cobra.Command {
	var kind string
	cmd := &cobra.Command{
		Use:   "gather",
		Short: "Print the saved runs as CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.openStore()
			if err != nil {
				return errors.Wrap(err, "")
			}
			defer st.Close()

			runs, err := st.ListRuns(cmd.Context(), kind)
			if err != nil {
				return errors.Wrap(err, kind)
			}

			w := csv.NewWriter(cmd.OutOrStdout())
			if err := w.Write([]string{"id", "kind", "name", "energy", "loss", "created"}); err != nil {
				return errors.Wrap(err, "")
			}
			for _, r := range runs {
				record := []string{
					strconv.FormatInt(r.ID, 10),
					r.Kind,
					r.Name,
					fmt.Sprintf("%f", r.Energy),
					fmt.Sprintf("%g", r.Loss),
					strconv.FormatInt(r.Created.Unix(), 10),
				}
				if err := w.Write(record); err != nil {
					return errors.Wrap(err, "")
				}
			}
			w.Flush()
			if err := w.Error(); err != nil {
				return errors.Wrap(err, "")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "", "kind of runs, all kinds if empty")
	return cmd
}
