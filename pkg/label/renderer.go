// Package label renders printable shipping labels for provider orders.
package label

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-pdf/fpdf"
	"github.com/skip2/go-qrcode"
	"github.com/tournevent/fezdelivery/pkg/delivery"
)

const (
	pageWidth  = 120.0
	pageHeight = 180.0
	margin     = 5.0
	qrSize     = 40.0
	qrPixels   = 256
)

// DefaultBarcodeURL is the Code128 image service referenced on the label.
const DefaultBarcodeURL = "https://barcode.tec-it.com/barcode.ashx?data=%s&code=Code128"

// Config holds renderer configuration.
type Config struct {
	TempDir    string // scratch directory, emptied before every render
	BarcodeURL string // fmt pattern with one %s for the order number
}

// Renderer draws labels as single-page PDFs.
type Renderer struct {
	config Config
	mu     sync.Mutex
}

// NewRenderer creates a label renderer.
func NewRenderer(cfg Config) *Renderer {
	if cfg.TempDir == "" {
		cfg.TempDir = filepath.Join(os.TempDir(), "fez-delivery", "label")
	}
	if cfg.BarcodeURL == "" {
		cfg.BarcodeURL = DefaultBarcodeURL
	}
	return &Renderer{config: cfg}
}

// BarcodeURL returns the barcode image link for orderNo.
func (r *Renderer) BarcodeURL(orderNo string) string {
	return fmt.Sprintf(r.config.BarcodeURL, url.QueryEscape(orderNo))
}

// Render writes the label for details to w.
func (r *Renderer) Render(details *delivery.OrderDetails, w io.Writer) error {
	if details == nil || details.OrderNo == "" {
		return errors.New("label: order number is required")
	}

	// The scratch directory is shared, so renders run one at a time.
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.resetTempDir(); err != nil {
		return err
	}

	qrPath := filepath.Join(r.config.TempDir, "qr.png")
	if err := qrcode.WriteFile(details.OrderNo, qrcode.Medium, qrPixels, qrPath); err != nil {
		return fmt.Errorf("label: qr code: %w", err)
	}

	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "mm",
		Size:           fpdf.SizeType{Wd: pageWidth, Ht: pageHeight},
	})
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(true, margin)
	pdf.SetTitle("Shipping label "+details.OrderNo, true)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	contentWidth := pageWidth - 2*margin

	pdf.SetDrawColor(0, 0, 0)
	pdf.Rect(margin, margin, contentWidth, pageHeight-2*margin, "D")

	pdf.SetFont("Helvetica", "B", 18)
	pdf.SetXY(margin+3, margin+3)
	pdf.CellFormat(contentWidth-6, 10, "FEZ DELIVERY", "", 1, "L", false, 0, "")

	qrY := pdf.GetY() + 2
	pdf.ImageOptions(qrPath, (pageWidth-qrSize)/2, qrY, qrSize, qrSize, false,
		fpdf.ImageOptions{ImageType: "PNG", ReadDpi: true}, 0, "")
	pdf.SetY(qrY + qrSize + 3)
	r.separator(pdf)

	m := details.Manifest
	rows := [][2]string{
		{"Destination", m.PickUpState + " - " + m.DropOffState},
		{"Order ID", details.OrderNo},
		{"Recipient Name", m.RecipientName},
		{"Recipient Phone", m.RecipientPhone},
		{"Recipient Address", m.RecipientAddress},
		{"Content Description", m.Description},
		{"Sender Name", m.SendersName},
	}
	for _, row := range rows {
		pdf.SetX(margin + 3)
		pdf.SetFont("Helvetica", "B", 9)
		pdf.CellFormat(36, 6, tr(row[0]+":"), "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 9)
		pdf.MultiCell(contentWidth-42, 6, tr(row[1]), "", "L", false)
	}
	pdf.Ln(2)
	r.separator(pdf)

	pdf.Ln(6)
	pdf.SetX(margin + 3)
	pdf.SetFont("Helvetica", "U", 9)
	pdf.SetTextColor(0, 0, 200)
	pdf.CellFormat(contentWidth-6, 6, "Barcode", "", 1, "C", false, 0, r.BarcodeURL(details.OrderNo))
	pdf.SetTextColor(0, 0, 0)
	pdf.SetX(margin + 3)
	pdf.SetFont("Courier", "B", 14)
	pdf.CellFormat(contentWidth-6, 8, tr(details.OrderNo), "", 1, "C", false, 0, "")

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("label: write pdf: %w", err)
	}
	return nil
}

func (r *Renderer) separator(pdf *fpdf.Fpdf) {
	y := pdf.GetY()
	pdf.SetDrawColor(134, 134, 134)
	pdf.SetDashPattern([]float64{1, 1}, 0)
	pdf.Line(margin+3, y, pageWidth-margin-3, y)
	pdf.SetDashPattern([]float64{}, 0)
	pdf.SetDrawColor(0, 0, 0)
	pdf.Ln(3)
}

func (r *Renderer) resetTempDir() error {
	if err := os.RemoveAll(r.config.TempDir); err != nil {
		return fmt.Errorf("label: clear temp dir: %w", err)
	}
	if err := os.MkdirAll(r.config.TempDir, 0o755); err != nil {
		return fmt.Errorf("label: create temp dir: %w", err)
	}
	return nil
}

var _ delivery.LabelRenderer = (*Renderer)(nil)
