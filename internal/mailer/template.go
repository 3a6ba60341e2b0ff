package mailer

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/egannguyen/instaprint/internal/entity"
)

const completedSubject = "InstaPrint: Your Order is Ready for Collection"

var completedTemplate = template.Must(template.New("completed").Parse(`
<h1>InstaPrint</h1>
<h2>Order Completed</h2>
<p>Dear {{.CustomerName}},</p>
<p><b>Your order is ready for collection!</b></p>
<p>Please proceed to collect your completed order from the shop.</p>
<div style="margin: 20px 0; padding: 15px; border: 1px solid #e0e0e0; border-radius: 5px;">
  <h3 style="margin-top: 0;">Order Details:</h3>
  <ul style="list-style: none; padding-left: 0;">
    <li>Order ID: {{.ShortID}}</li>
    <li>Shop: {{.ShopName}}</li>
    <li>Location: {{.ShopAddress}}</li>
    <li>Paper Size: {{.PaperSize}}</li>
    <li>Pages: {{.Pages}}</li>
    <li>Copies: {{.Copies}}</li>
    <li>Color Mode: {{.ColorMode}}</li>
    <li>Double-sided: {{.DoubleSided}}</li>
    <li>Stapling: {{.Stapling}}</li>
    <li>Price: Rs. {{.Price}}</li>
  </ul>
</div>
<p>Thank you for using InstaPrint!</p>
`))

type completedData struct {
	CustomerName string
	ShortID      string
	ShopName     string
	ShopAddress  string
	PaperSize    entity.PaperSize
	Pages        int
	Copies       int
	ColorMode    string
	DoubleSided  string
	Stapling     string
	Price        string
}

func renderCompleted(o entity.Order, s entity.Shop) (string, error) {
	name := o.CustomerName
	if name == "" {
		name = "Customer"
	}
	data := completedData{
		CustomerName: name,
		ShortID:      shortID(o.ID),
		ShopName:     s.Name,
		ShopAddress:  s.Address,
		PaperSize:    o.Spec.PaperSize,
		Pages:        o.Spec.PageCount,
		Copies:       o.Spec.Copies,
		ColorMode:    o.Spec.ColorMode.Label(),
		DoubleSided:  yesNo(o.Spec.DoubleSided),
		Stapling:     yesNo(o.Spec.Stapling),
		Price:        o.Price.StringFixed(2),
	}

	var buf bytes.Buffer
	if err := completedTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render email: %w", err)
	}
	return buf.String(), nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
