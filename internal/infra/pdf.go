package infra

// pdf.go renders sale receipts with go-pdf/fpdf. The layout is a narrow
// thermal-paper style ticket:
//   - Store name header
//   - Sale number, timestamp and customer
//   - Item table (product, batch, quantity, markdown, line total)
//   - Subtotal, discount and bold total

import (
	"bytes"
	"fmt"

	"pharmapos/internal/dto"

	"github.com/go-pdf/fpdf"
)

const receiptNameMax = 24

// RenderSaleReceipt returns the PDF receipt for a sale as bytes, ready to be
// streamed over HTTP or attached to an email.
func RenderSaleReceipt(storeName string, sale *dto.SaleResponse) ([]byte, error) {
	// 80mm wide roll; height grows with the number of lines.
	height := 70 + 5*float64(len(sale.Items))
	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "mm",
		Size:           fpdf.SizeType{Wd: 80, Ht: height},
	})
	pdf.SetMargins(4, 4, 4)
	pdf.SetAutoPageBreak(false, 4)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pageW, _ := pdf.GetPageSize()
	contentW := pageW - 8

	// ── Header ───────────────────────────────────────────────────────────────
	pdf.SetFont("Helvetica", "B", 13)
	pdf.CellFormat(contentW, 7, tr(storeName), "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 8)
	pdf.CellFormat(contentW, 5, "Sale receipt", "", 1, "C", false, 0, "")
	pdf.Ln(2)

	// ── Sale info ────────────────────────────────────────────────────────────
	pdf.SetFont("Helvetica", "B", 8)
	pdf.CellFormat(contentW, 5, fmt.Sprintf("Sale #%d", sale.ID), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 7)
	pdf.CellFormat(contentW, 4, sale.CreatedAt, "", 1, "L", false, 0, "")
	pdf.CellFormat(contentW, 4, tr("Customer: "+sale.CustomerName), "", 1, "L", false, 0, "")
	pdf.Ln(2)
	pdf.Line(4, pdf.GetY(), pageW-4, pdf.GetY())
	pdf.Ln(2)

	// ── Items ────────────────────────────────────────────────────────────────
	col1 := contentW * 0.46 // product
	col2 := contentW * 0.12 // qty
	col3 := contentW * 0.14 // markdown
	col4 := contentW * 0.28 // line total

	pdf.SetFont("Helvetica", "B", 7)
	pdf.CellFormat(col1, 5, "Product", "B", 0, "L", false, 0, "")
	pdf.CellFormat(col2, 5, "Qty", "B", 0, "C", false, 0, "")
	pdf.CellFormat(col3, 5, "Off", "B", 0, "C", false, 0, "")
	pdf.CellFormat(col4, 5, "Total", "B", 1, "R", false, 0, "")

	pdf.SetFont("Helvetica", "", 7)
	for _, item := range sale.Items {
		name := []rune(item.ProductName)
		if len(name) > receiptNameMax {
			name = append(name[:receiptNameMax-1], '.')
		}
		pdf.CellFormat(col1, 5, tr(string(name)), "", 0, "L", false, 0, "")
		pdf.CellFormat(col2, 5, fmt.Sprintf("x%d", item.Quantity), "", 0, "C", false, 0, "")
		pdf.CellFormat(col3, 5, item.DiscountPercentage+"%", "", 0, "C", false, 0, "")
		pdf.CellFormat(col4, 5, "$"+item.TotalPrice, "", 1, "R", false, 0, "")
	}

	pdf.Ln(2)
	pdf.Line(4, pdf.GetY(), pageW-4, pdf.GetY())
	pdf.Ln(2)

	// ── Totals ───────────────────────────────────────────────────────────────
	labelW := col1 + col2 + col3
	pdf.SetFont("Helvetica", "", 7)
	pdf.CellFormat(labelW, 5, "Subtotal:", "", 0, "L", false, 0, "")
	pdf.CellFormat(col4, 5, "$"+sale.TotalAmount, "", 1, "R", false, 0, "")
	if sale.DiscountAmount != "0.00" {
		pdf.CellFormat(labelW, 5, "Expiry discount:", "", 0, "L", false, 0, "")
		pdf.CellFormat(col4, 5, "-$"+sale.DiscountAmount, "", 1, "R", false, 0, "")
	}
	pdf.SetFont("Helvetica", "B", 9)
	pdf.CellFormat(labelW, 6, "TOTAL:", "", 0, "L", false, 0, "")
	pdf.CellFormat(col4, 6, "$"+sale.FinalAmount, "", 1, "R", false, 0, "")

	pdf.Ln(3)
	pdf.SetFont("Helvetica", "I", 7)
	pdf.CellFormat(contentW, 4, "Thank you for your purchase", "", 1, "C", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("pdf: render receipt: %w", err)
	}
	return buf.Bytes(), nil
}
