package mailer

import (
	"fmt"
	"html"
	"strings"

	"github.com/storefront/order-intake/internal/domain"
)

// Composer maps an order row to the business-notification message. Compose
// is pure: no clock, network, or store access, so identical input always
// yields identical output.
type Composer struct {
	notifyEmail string
	baseURL     string
}

func NewComposer(notifyEmail string, baseURL string) (*Composer, error) {
	notifyEmail = strings.TrimSpace(notifyEmail)
	if notifyEmail == "" {
		return nil, fmt.Errorf("notify email is required")
	}

	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultStoreURL
	}

	return &Composer{
		notifyEmail: notifyEmail,
		baseURL:     baseURL,
	}, nil
}

func (c *Composer) Compose(o domain.Order) Message {
	productURL := fmt.Sprintf("%s/products/%s", c.baseURL, o.Product.Slug)

	var b strings.Builder
	b.WriteString("<h2>New order received</h2>")
	fmt.Fprintf(&b, "<p>Order <strong>%s</strong></p>", html.EscapeString(o.ID))

	b.WriteString("<h3>Product</h3><ul>")
	fmt.Fprintf(&b, `<li><a href="%s">%s</a></li>`, productURL, html.EscapeString(o.Product.Title))
	fmt.Fprintf(&b, "<li>Price: $%s</li>", o.Product.Price.StringFixed(2))
	b.WriteString("</ul>")

	b.WriteString("<h3>Customer</h3><ul>")
	fmt.Fprintf(&b, "<li>%s</li>", html.EscapeString(o.Customer.Name))
	fmt.Fprintf(&b, "<li>%s</li>", html.EscapeString(o.Customer.Email))
	if o.Customer.Phone != nil {
		fmt.Fprintf(&b, "<li>%s</li>", html.EscapeString(*o.Customer.Phone))
	}
	b.WriteString("</ul>")

	b.WriteString("<h3>Shipping</h3><ul>")
	fmt.Fprintf(&b, "<li>%s</li>", html.EscapeString(o.Shipping.Address))
	fmt.Fprintf(&b, "<li>%s, %s %s</li>",
		html.EscapeString(o.Shipping.City),
		html.EscapeString(o.Shipping.State),
		html.EscapeString(o.Shipping.Zip),
	)
	b.WriteString("</ul>")

	// Client context is forwarded verbatim; it is opaque to the pipeline.
	if len(o.RawContext) > 0 {
		b.WriteString("<h3>Client context</h3>")
		fmt.Fprintf(&b, "<pre>%s</pre>", html.EscapeString(string(o.RawContext)))
	}

	return Message{
		To:       c.notifyEmail,
		Subject:  fmt.Sprintf("New order: %s", o.Product.Title),
		BodyHTML: b.String(),
	}
}
