package render

import (
	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

type PDFRenderer struct{}

func NewPDFRenderer() *PDFRenderer {
	return &PDFRenderer{}
}

// RenderPDF lays out the invoice on A4 pages. Currency is shown by code
// since the built-in PDF fonts lack glyphs for some symbols.
func (p *PDFRenderer) RenderPDF(input RenderInput) ([]byte, error) {
	inv := input.Invoice
	code := string(input.Currency.Code) + " "
	due := DueStatusOf(inv, input.DueSoonDays)

	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	m.AddRow(12,
		text.NewCol(8, "Invoice", props.Text{Size: 20, Style: fontstyle.Bold, Align: align.Left}),
		text.NewCol(4, string(inv.Status)+" - "+due.Label, props.Text{Size: 10, Style: fontstyle.Bold, Align: align.Right, Top: 4}),
	)

	m.AddRow(24,
		col.New(6).Add(
			text.New("Invoice number: "+inv.InvoiceNumber, props.Text{Top: 0}),
			text.New("Date of issue: "+formatDate(inv.IssueDate), props.Text{Top: 5}),
			text.New("Date due: "+formatDate(inv.DueDate), props.Text{Top: 10}),
			text.New("Currency: "+input.Currency.Label, props.Text{Top: 15}),
		),
		col.New(6).Add(
			text.New("Bill to", props.Text{Style: fontstyle.Bold, Align: align.Right}),
			text.New(inv.CustomerName, props.Text{Top: 5, Align: align.Right}),
		),
	)

	m.AddRow(14,
		text.NewCol(12, formatMoney(inv.BalanceDue, code)+" due "+formatDate(inv.DueDate), props.Text{
			Size:  14,
			Style: fontstyle.Bold,
			Top:   4,
		}),
	)

	m.AddRow(10,
		text.NewCol(6, "Description", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(2, "Qty", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(2, "Unit price", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(2, "Amount", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)
	m.AddRow(2, line.NewCol(12))

	for _, item := range inv.LineItems {
		m.AddRow(8,
			text.NewCol(6, item.Description, props.Text{Size: 9}),
			text.NewCol(2, formatQuantity(item.Quantity), props.Text{Size: 9, Align: align.Right}),
			text.NewCol(2, formatMoney(item.UnitPrice, code), props.Text{Size: 9, Align: align.Right}),
			text.NewCol(2, formatMoney(item.LineTotal, code), props.Text{Size: 9, Align: align.Right}),
		)
	}

	totals := []struct {
		label string
		value string
		bold  bool
	}{
		{label: "Subtotal", value: formatMoney(inv.Subtotal, code)},
		{label: "Tax (" + formatRate(inv.TaxRate) + ")", value: formatMoney(inv.TaxAmount, code)},
		{label: "Total", value: formatMoney(inv.Total, code), bold: true},
		{label: "Amount paid", value: formatMoney(inv.AmountPaid, code)},
		{label: "Balance due", value: formatMoney(inv.BalanceDue, code), bold: true},
	}
	for _, row := range totals {
		style := fontstyle.Normal
		if row.bold {
			style = fontstyle.Bold
		}
		m.AddRow(7,
			col.New(7),
			text.NewCol(2, row.label, props.Text{Size: 9, Style: style}),
			text.NewCol(3, row.value, props.Text{Size: 9, Style: style, Align: align.Right}),
		)
	}

	if len(inv.Payments) > 0 {
		m.AddRow(12, text.NewCol(12, "Payment history", props.Text{Size: 11, Style: fontstyle.Bold, Top: 5}))
		for _, payment := range inv.Payments {
			m.AddRow(7,
				text.NewCol(6, formatDate(payment.PaymentDate), props.Text{Size: 9}),
				text.NewCol(6, formatMoney(payment.Amount, code), props.Text{Size: 9, Align: align.Right}),
			)
		}
	}

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}
	return doc.GetBytes(), nil
}
