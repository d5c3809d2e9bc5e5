// Package printer renders QR tags as PNG images and printable sticker sheets.
package printer

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/jung-kurt/gofpdf"
	"github.com/skip2/go-qrcode"
)

const (
	// DefaultPNGSize is the edge length of a single tag image in pixels
	DefaultPNGSize = 256
	maxCols        = 10
	maxRows        = 20
)

// Sticker is one printed label
type Sticker struct {
	Hash     string `json:"hash"`
	Title    string `json:"title"`    // serial number, or UNASSIGNED
	Subtitle string `json:"subtitle"` // brand and model, or a hint
}

// SheetConfig describes the label grid of an A4 sticker sheet
type SheetConfig struct {
	// StartPosition is the 1-based slot of the first label, so partly used
	// sheets can be fed again
	StartPosition int     `json:"startPosition"`
	Cols          int     `json:"cols"`
	Rows          int     `json:"rows"`
	MarginTop     float64 `json:"marginTop"`
	MarginLeft    float64 `json:"marginLeft"`
	GapX          float64 `json:"gapX"`
	GapY          float64 `json:"gapY"`
}

// DefaultSheet is a 3x8 grid starting at the first slot
func DefaultSheet() SheetConfig {
	return SheetConfig{StartPosition: 1, Cols: 3, Rows: 8, MarginTop: 10, MarginLeft: 7, GapX: 3, GapY: 2}
}

// Validate checks grid bounds
func (c SheetConfig) Validate() error {
	if c.Cols < 1 || c.Cols > maxCols {
		return fmt.Errorf("columns must be between 1 and %d", maxCols)
	}
	if c.Rows < 1 || c.Rows > maxRows {
		return fmt.Errorf("rows must be between 1 and %d", maxRows)
	}
	if c.StartPosition < 1 || c.StartPosition > c.Cols*c.Rows {
		return fmt.Errorf("start position must be between 1 and %d", c.Cols*c.Rows)
	}
	return nil
}

// ScanURL is the public address a tag encodes
func ScanURL(baseURL, hash string) string {
	return strings.TrimRight(baseURL, "/") + "/scan/" + url.PathEscape(hash)
}

// QRPNG encodes content as a PNG QR code
func QRPNG(content string, size int) ([]byte, error) {
	if size <= 0 {
		size = DefaultPNGSize
	}
	return qrcode.Encode(content, qrcode.Medium, size)
}

// StickerSheetPDF lays stickers out on A4 pages. Slots before
// cfg.StartPosition on the first page are left blank.
func StickerSheetPDF(baseURL string, stickers []Sticker, cfg SheetConfig) ([]byte, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetFont("Arial", "B", 10)

	pageWidth, pageHeight := 210.0, 297.0
	availW := pageWidth - cfg.MarginLeft*2
	availH := pageHeight - cfg.MarginTop*2
	labelW := (availW - float64(cfg.Cols-1)*cfg.GapX) / float64(cfg.Cols)
	labelH := (availH - float64(cfg.Rows-1)*cfg.GapY) / float64(cfg.Rows)
	perPage := cfg.Cols * cfg.Rows

	if len(stickers) == 0 {
		pdf.AddPage()
	}
	for i, st := range stickers {
		slot := i + cfg.StartPosition - 1
		if i == 0 || slot%perPage == 0 {
			pdf.AddPage()
		}
		onPage := slot % perPage
		x := cfg.MarginLeft + float64(onPage%cfg.Cols)*(labelW+cfg.GapX)
		y := cfg.MarginTop + float64(onPage/cfg.Cols)*(labelH+cfg.GapY)

		png, err := QRPNG(ScanURL(baseURL, st.Hash), DefaultPNGSize)
		if err != nil {
			return nil, fmt.Errorf("encode QR for %s: %w", st.Title, err)
		}
		imgName := fmt.Sprintf("qr_%d", i)
		opts := gofpdf.ImageOptions{ImageType: "PNG", ReadDpi: true}
		pdf.RegisterImageOptionsReader(imgName, opts, bytes.NewReader(png))

		// QR on the left, text on the right
		qrSize := labelH * 0.85
		if qrSize > labelW*0.45 {
			qrSize = labelW * 0.45
		}
		pdf.ImageOptions(imgName, x+1, y+(labelH-qrSize)/2, qrSize, qrSize, false, opts, 0, "")

		textX := x + qrSize + 2
		textW := labelW - qrSize - 3
		pdf.SetXY(textX, y+labelH/2-5)
		pdf.SetFontSize(9)
		pdf.CellFormat(textW, 5, st.Title, "", 0, "L", false, 0, "")
		pdf.SetXY(textX, y+labelH/2)
		pdf.SetFontSize(7)
		pdf.CellFormat(textW, 4, st.Subtitle, "", 0, "L", false, 0, "")
	}
	if err := pdf.Error(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
