package emails

const htmlSource = `
{{define "header"}}<!DOCTYPE html>
<html><body style="font-family: Arial, sans-serif; color: #333; max-width: 600px; margin: 0 auto;">
<div style="background: #1e3a5f; color: #fff; padding: 16px 24px;"><h2 style="margin: 0;">{{.CompanyName}}</h2></div>
<div style="padding: 24px;">{{end}}

{{define "footer"}}</div>
<div style="padding: 12px 24px; font-size: 12px; color: #888;">This message was sent by {{.CompanyName}}.</div>
</body></html>{{end}}

{{define "expiry_reminder"}}{{template "header" .}}
<p>Hello {{.ClientName}},</p>
<p>Your {{.ServiceLabel}}{{if .ServiceName}} <strong>{{.ServiceName}}</strong>{{end}} expires <strong>{{when .DaysUntilExpiry}}</strong>, on {{date .ExpiryDate}}.</p>
{{if .Provider}}<p>Provider: {{.Provider}}</p>{{end}}
<p>Please contact us to renew it and avoid any interruption of service.</p>
{{template "footer" .}}{{end}}

{{define "invoice_issued"}}{{template "header" .}}
<p>Hello {{.ClientName}},</p>
<p>Please find below invoice <strong>{{.InvoiceNumber}}</strong> issued on {{date .IssueDate}}{{if .DueDate}}, due on {{date .DueDate}}{{end}}.</p>
<table style="width: 100%; border-collapse: collapse;">
<tr><th align="left">Description</th><th align="right">Qty</th><th align="right">Unit price</th><th align="right">Amount</th></tr>
{{range .Items}}<tr><td>{{.Description}}</td><td align="right">{{.Quantity}}</td><td align="right">{{money .UnitPrice}}</td><td align="right">{{money .Amount}}</td></tr>
{{end}}</table>
<p>Subtotal: {{money .Subtotal}}<br>Tax ({{.TaxRate}}%): {{money .TaxAmount}}<br><strong>Total: {{money .Total}}</strong></p>
{{if .Notes}}<p>{{.Notes}}</p>{{end}}
{{template "footer" .}}{{end}}

{{define "ticket_reply"}}{{template "header" .}}
<p>Hello {{.ClientName}},</p>
<p>We replied to your ticket <strong>{{.Subject}}</strong>:</p>
<blockquote style="border-left: 3px solid #1e3a5f; margin: 0; padding-left: 12px;">{{range lines .Reply}}{{.}}<br>{{end}}</blockquote>
<p>You can answer from the client portal.</p>
{{template "footer" .}}{{end}}

{{define "announcement"}}{{template "header" .}}
<p>Hello {{.ClientName}},</p>
{{range lines .Body}}<p>{{.}}</p>
{{end}}{{template "footer" .}}{{end}}
`

const textSource = `
{{define "expiry_reminder"}}Hello {{.ClientName}},

Your {{.ServiceLabel}}{{if .ServiceName}} {{.ServiceName}}{{end}} expires {{when .DaysUntilExpiry}}, on {{date .ExpiryDate}}.
{{if .Provider}}Provider: {{.Provider}}
{{end}}
Please contact us to renew it and avoid any interruption of service.

{{.CompanyName}}{{end}}

{{define "invoice_issued"}}Hello {{.ClientName}},

Invoice {{.InvoiceNumber}} issued on {{date .IssueDate}}{{if .DueDate}}, due on {{date .DueDate}}{{end}}.

{{range .Items}}- {{.Description}}: {{.Quantity}} x {{money .UnitPrice}} = {{money .Amount}}
{{end}}
Subtotal: {{money .Subtotal}}
Tax ({{.TaxRate}}%): {{money .TaxAmount}}
Total: {{money .Total}}
{{if .Notes}}
{{.Notes}}
{{end}}
{{.CompanyName}}{{end}}

{{define "ticket_reply"}}Hello {{.ClientName}},

We replied to your ticket "{{.Subject}}":

{{.Reply}}

You can answer from the client portal.

{{.CompanyName}}{{end}}

{{define "announcement"}}Hello {{.ClientName}},

{{.Body}}

{{.CompanyName}}{{end}}
`
