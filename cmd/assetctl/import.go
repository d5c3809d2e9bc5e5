package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/xelth-com/assetledger/internal/importer"
	"github.com/xelth-com/assetledger/internal/ledger"
)

func newImportCmd() *cobra.Command {
	var failOnError bool

	cmd := &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Replay historical asset events from a CSV file",
		Long: `Replay historical events through the ledger in file order. Required
columns are date, action and serial; optional columns are brand, model,
location_branch, emp_id, emp_name, courier and notes. Rows that break the
custody rules are reported and skipped.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			e, err := openEnv()
			if err != nil {
				return err
			}
			defer e.close()

			res, err := importer.New(e.db.DB, ledger.NewService(e.db.DB), nil).Import(e.ctx(cmd), f)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "applied %d rows\n", res.Applied)
			for _, re := range res.Failed {
				fmt.Fprintf(out, "  line %d (%s): %s\n", re.Line, re.Serial, re.Err)
			}
			if failOnError && len(res.Failed) > 0 {
				return fmt.Errorf("%d rows failed", len(res.Failed))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&failOnError, "strict", false, "Exit non-zero when any row fails")
	return cmd
}
