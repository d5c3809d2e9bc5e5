package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/xelth-com/assetledger/internal/ledger"
	"github.com/xelth-com/assetledger/internal/models"
	"github.com/xelth-com/assetledger/internal/registry"
)

type demoAsset struct {
	serial, brand, model string
	branch               int // index into demoBranches
	holder               int // index into demoEmployees, -1 for stock
	repair               bool
}

var (
	demoBranches  = [][2]string{{"Head Office", "Nairobi CBD"}, {"Mombasa", "Nyali"}, {"Kisumu", "Milimani"}}
	demoEmployees = []registry.EmployeeInput{
		{EmpID: "EMP001", Name: "Grace Wanjiku"},
		{EmpID: "EMP002", Name: "Peter Otieno"},
		{EmpID: "EMP003", Name: "Amina Hassan"},
	}
	demoAssets = []demoAsset{
		{"DL5440-0001", "Dell", "Latitude 5440", 0, 0, false},
		{"DL5440-0002", "Dell", "Latitude 5440", 0, -1, false},
		{"LNT14-0001", "Lenovo", "ThinkPad T14", 1, 1, false},
		{"HPE840-0001", "HP", "EliteBook 840", 2, 2, true},
		{"HPM404-0001", "HP", "LaserJet M404", 1, -1, false},
	}
)

func newSeedDemoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed-demo",
		Short: "Load a small demo dataset",
		Long: `Create demo branches, employees and assets. Every asset is recorded
through the ledger, so the demo history is as complete as real use.
Refuses to run against a database that already has assets.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv()
			if err != nil {
				return err
			}
			defer e.close()
			ctx := e.ctx(cmd)

			var n int64
			if err := e.db.WithContext(ctx).Model(&models.Asset{}).Count(&n).Error; err != nil {
				return err
			}
			if n > 0 {
				return fmt.Errorf("database already has %d assets", n)
			}

			reg := registry.NewService(e.db.DB)
			l := ledger.NewService(e.db.DB)

			branches := make([]*models.Branch, len(demoBranches))
			for i, b := range demoBranches {
				if branches[i], err = reg.CreateBranch(ctx, b[0], b[1]); err != nil {
					return err
				}
			}
			employees := make([]*models.Employee, len(demoEmployees))
			for i, in := range demoEmployees {
				in.BranchID = &branches[i%len(branches)].ID
				if employees[i], err = reg.CreateEmployee(ctx, in); err != nil {
					return err
				}
			}

			bought := time.Now().AddDate(0, -6, 0)
			for _, d := range demoAssets {
				a, err := l.Purchase(ctx, ledger.PurchaseInput{
					SerialNumber: d.serial,
					Brand:        d.brand,
					Model:        d.model,
					PurchaseDate: bought,
					BranchID:     branches[d.branch].ID,
					Details:      ledger.Details{Notes: "demo data"},
				})
				if err != nil {
					return err
				}
				if d.holder >= 0 {
					if _, err := l.Allocate(ctx, a.ID, employees[d.holder].ID, ledger.Details{}); err != nil {
						return err
					}
				}
				if d.repair {
					if _, err := l.SendToRepair(ctx, a.ID, ledger.Details{Notes: "battery swelling"}); err != nil {
						return err
					}
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "🌱 seeded %d branches, %d employees, %d assets\n",
				len(branches), len(employees), len(demoAssets))
			return nil
		},
	}
}
