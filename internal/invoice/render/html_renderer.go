package render

import (
	"bytes"
	"html/template"
)

const invoiceHTMLTemplate = `<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8" />
  <title>Invoice {{.Invoice.InvoiceNumber}}</title>
  <style>
    :root { --font: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, Helvetica, Arial, sans-serif; }
    * { box-sizing: border-box; }
    body { margin: 0; padding: 40px; font-family: var(--font); color: #1a1f36; background: #f7f9fc; }
    .invoice-card { background: #fff; max-width: 760px; margin: 0 auto; padding: 60px; border-radius: 4px; box-shadow: 0 2px 5px rgba(0,0,0,0.04); }
    .header { display: flex; justify-content: space-between; margin-bottom: 32px; }
    .header h1 { margin: 0; font-size: 24px; }
    .badge { display: inline-block; padding: 4px 10px; border-radius: 12px; font-size: 12px; font-weight: 600; }
    .badge-ok { background: #e3f2fd; color: #0d47a1; }
    .badge-warning { background: #fff4e5; color: #8a4b00; }
    .badge-danger { background: #fdecea; color: #b71c1c; }
    .badge-paid { background: #e6f4ea; color: #1e6b34; }
    .banner { padding: 12px 16px; margin-bottom: 24px; border-radius: 4px; background: #fdecea; color: #b71c1c; font-weight: 600; }
    .meta-grid { display: flex; justify-content: space-between; margin-bottom: 32px; }
    .label { font-size: 11px; text-transform: uppercase; color: #8792a2; margin-bottom: 6px; font-weight: 600; }
    .value { font-size: 14px; line-height: 1.5; }
    .amount-large { font-size: 32px; font-weight: 700; margin-bottom: 4px; }
    table { width: 100%; border-collapse: collapse; margin-bottom: 30px; }
    th { text-align: left; text-transform: uppercase; font-size: 11px; color: #8792a2; border-bottom: 1px solid #e3e8ee; padding: 10px 0; }
    td { padding: 14px 0; border-bottom: 1px solid #e3e8ee; font-size: 14px; vertical-align: top; }
    .td-right { text-align: right; }
    .totals { display: flex; flex-direction: column; align-items: flex-end; }
    .total-row { display: flex; justify-content: space-between; width: 260px; padding: 6px 0; font-size: 14px; }
    .total-label { color: #697386; }
    .total-final { border-top: 1px solid #e3e8ee; margin-top: 10px; padding-top: 10px; font-weight: 700; font-size: 16px; }
    .archived { color: #8792a2; font-size: 12px; margin-top: 8px; }
  </style>
</head>
<body>
  <div class="invoice-card">
    {{if .Invoice.IsOverdue}}
    <div class="banner">This invoice is overdue. {{.Due.Label}}.</div>
    {{end}}
    <div class="header">
      <div>
        <h1>Invoice</h1>
        <div class="label" style="margin-top: 12px;">Invoice number</div>
        <div class="value">{{.Invoice.InvoiceNumber}}</div>
        {{if .Invoice.IsArchived}}<div class="archived">Archived</div>{{end}}
      </div>
      <div><span class="badge badge-{{.Due.Tone}}">{{.Invoice.Status}} &middot; {{.Due.Label}}</span></div>
    </div>

    <div class="meta-grid">
      <div>
        <div class="label">Bill to</div>
        <div class="value"><strong>{{.Invoice.CustomerName}}</strong></div>
      </div>
      <div style="flex: 0 0 200px;">
        <div class="label">Date issued</div>
        <div class="value">{{formatDate .Invoice.IssueDate}}</div>
        <div class="label" style="margin-top: 16px;">Date due</div>
        <div class="value">{{formatDate .Invoice.DueDate}}</div>
        <div class="label" style="margin-top: 16px;">Currency</div>
        <div class="value">{{.Currency.Label}}</div>
      </div>
    </div>

    <div style="margin-bottom: 32px;">
      <div class="label">Balance due</div>
      <div class="amount-large">{{formatMoney .Invoice.BalanceDue .Currency.Symbol}}</div>
    </div>

    <table>
      <thead>
        <tr>
          <th style="width: 50%;">Description</th>
          <th class="td-right">Qty</th>
          <th class="td-right">Unit price</th>
          <th class="td-right">Amount</th>
        </tr>
      </thead>
      <tbody>
        {{range .Invoice.LineItems}}
        <tr>
          <td>{{.Description}}</td>
          <td class="td-right">{{formatQuantity .Quantity}}</td>
          <td class="td-right">{{formatMoney .UnitPrice $.Currency.Symbol}}</td>
          <td class="td-right">{{formatMoney .LineTotal $.Currency.Symbol}}</td>
        </tr>
        {{end}}
      </tbody>
    </table>

    <div class="totals">
      <div class="total-row"><span class="total-label">Subtotal</span><span>{{formatMoney .Invoice.Subtotal .Currency.Symbol}}</span></div>
      <div class="total-row"><span class="total-label">Tax ({{formatRate .Invoice.TaxRate}})</span><span>{{formatMoney .Invoice.TaxAmount .Currency.Symbol}}</span></div>
      <div class="total-row total-final"><span>Total</span><span>{{formatMoney .Invoice.Total .Currency.Symbol}}</span></div>
      <div class="total-row"><span class="total-label">Amount paid</span><span>{{formatMoney .Invoice.AmountPaid .Currency.Symbol}}</span></div>
      <div class="total-row"><span class="total-label">Balance due</span><span>{{formatMoney .Invoice.BalanceDue .Currency.Symbol}}</span></div>
    </div>

    {{if .Invoice.Payments}}
    <h3 style="margin-top: 40px;">Payment history</h3>
    <table>
      <thead><tr><th>Date</th><th class="td-right">Amount</th></tr></thead>
      <tbody>
        {{range .Invoice.Payments}}
        <tr><td>{{formatDate .PaymentDate}}</td><td class="td-right">{{formatMoney .Amount $.Currency.Symbol}}</td></tr>
        {{end}}
      </tbody>
    </table>
    {{end}}
  </div>
</body>
</html>
`

type HTMLRenderer struct {
	tpl *template.Template
}

func NewHTMLRenderer() *HTMLRenderer {
	funcs := template.FuncMap{
		"formatMoney":    formatMoney,
		"formatDate":     formatDate,
		"formatQuantity": formatQuantity,
		"formatRate":     formatRate,
	}
	return &HTMLRenderer{
		tpl: template.Must(template.New("invoice").Funcs(funcs).Parse(invoiceHTMLTemplate)),
	}
}

type htmlView struct {
	RenderInput
	Due DueStatus
}

func (r *HTMLRenderer) RenderHTML(input RenderInput) (string, error) {
	var buf bytes.Buffer
	err := r.tpl.Execute(&buf, htmlView{
		RenderInput: input,
		Due:         DueStatusOf(input.Invoice, input.DueSoonDays),
	})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}
