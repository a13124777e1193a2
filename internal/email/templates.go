package email

import (
	"bytes"
	"html/template"
)

// ProblemMail is the data rendered into a problem notification
type ProblemMail struct {
	Title       string
	Message     string
	Severity    string
	ProductID   int64
	WarehouseID int64
	Stock       int
	BestBefore  string
}

var problemTemplate = template.Must(template.New("problem").Parse(`<!DOCTYPE html>
<html>
<head>
	<meta charset="UTF-8">
</head>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
	<div style="background: #7b2d26; padding: 24px; border-radius: 10px 10px 0 0;">
		<h1 style="color: white; margin: 0; font-size: 22px;">{{.Title}}</h1>
	</div>
	<div style="background: #fff; padding: 24px; border: 1px solid #eee; border-top: none; border-radius: 0 0 10px 10px;">
		<p style="margin-top: 0;">{{.Message}}</p>
		<table style="width: 100%; border-collapse: collapse; margin: 20px 0;">
			<tr><td style="padding: 8px; color: #666;">Severity</td><td style="padding: 8px; font-weight: bold;">{{.Severity}}</td></tr>
			<tr><td style="padding: 8px; color: #666;">Product</td><td style="padding: 8px;">{{.ProductID}}</td></tr>
			<tr><td style="padding: 8px; color: #666;">Warehouse</td><td style="padding: 8px;">{{.WarehouseID}}</td></tr>
			<tr><td style="padding: 8px; color: #666;">Stock</td><td style="padding: 8px;">{{.Stock}}</td></tr>
			{{if .BestBefore}}<tr><td style="padding: 8px; color: #666;">Best before</td><td style="padding: 8px;">{{.BestBefore}}</td></tr>{{end}}
		</table>
		<hr style="border: none; border-top: 1px solid #eee; margin: 24px 0;">
		<p style="font-size: 12px; color: #999; margin-bottom: 0;">This message was sent automatically by the inventory ledger.</p>
	</div>
</body>
</html>`))

// BuildProblemBody renders the HTML body of a problem notification
func BuildProblemBody(m ProblemMail) (string, error) {
	var buf bytes.Buffer
	if err := problemTemplate.Execute(&buf, m); err != nil {
		return "", err
	}
	return buf.String(), nil
}
