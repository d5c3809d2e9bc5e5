package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/xelth-com/assetledger/internal/ledger"
	"github.com/xelth-com/assetledger/internal/qr"
	"github.com/xelth-com/assetledger/internal/services/printer"
	"github.com/xelth-com/assetledger/internal/settings"
)

func newTagsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tags",
		Short: "Manage pre-generated QR tags",
	}
	cmd.AddCommand(newTagsGenerateCmd())
	return cmd
}

func newTagsGenerateCmd() *cobra.Command {
	var (
		count  int
		output string
		start  int
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Create unassigned tags, optionally printing them",
		Long: `Create a batch of unassigned QR tags. With --pdf the batch is also laid
out on an A4 sticker sheet ready to print.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv()
			if err != nil {
				return err
			}
			defer e.close()

			flag := settings.NewScanFlag(e.db.DB, 0)
			svc := qr.NewService(e.db.DB, ledger.NewService(e.db.DB), flag, e.cfg.QR.BatchLimit)
			tags, err := svc.GenerateBatch(e.ctx(cmd), count, nil)
			if err != nil {
				return err
			}
			for _, t := range tags {
				fmt.Fprintln(cmd.OutOrStdout(), printer.ScanURL(e.cfg.PublicBaseURL, t.QRHash))
			}
			if output == "" {
				return nil
			}

			sheet := printer.DefaultSheet()
			sheet.StartPosition = start
			if err := sheet.Validate(); err != nil {
				return err
			}
			stickers := make([]printer.Sticker, 0, len(tags))
			for _, t := range tags {
				stickers = append(stickers, printer.Sticker{Hash: t.QRHash, Title: "UNASSIGNED", Subtitle: "Scan to Link"})
			}
			pdf, err := printer.StickerSheetPDF(e.cfg.PublicBaseURL, stickers, sheet)
			if err != nil {
				return err
			}
			if err := os.WriteFile(output, pdf, 0o644); err != nil {
				return err
			}
			e.log.WithField("file", output).Info("🖨️ Sticker sheet written")
			return nil
		},
	}

	cmd.Flags().IntVarP(&count, "count", "n", 10, "Number of tags to create")
	cmd.Flags().StringVar(&output, "pdf", "", "Write a sticker sheet PDF to this path")
	cmd.Flags().IntVar(&start, "start", 1, "First free slot on the sheet")
	return cmd
}
