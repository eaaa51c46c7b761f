// Package notifier renders and dispatches the good-deal digest email.
// One scan with results produces exactly one email, batching every good
// deal found in that scan.
package notifier

import (
	"context"
	"fmt"
	"html"
	"log"
	"strings"

	"github.com/resend/resend-go/v2"
)

// Deal is one good-deal summary row in a digest.
type Deal struct {
	Title      string
	Price      *int // cents
	URL        string
	Score      int
	Reasoning  string
	ImageURL   string
	Product    string
	RetailLow  *int
	RetailHigh *int
	Condition  string
	Comparison string
}

// Mailer sends digests through the Resend API. A Mailer constructed
// without an API key logs intent and reports failure instead of sending —
// a missing credential is never pipeline-fatal.
type Mailer struct {
	client *resend.Client
	from   string
}

// New constructs a Mailer. An empty apiKey yields a disabled Mailer.
func New(apiKey, from string) *Mailer {
	m := &Mailer{from: from}
	if apiKey != "" {
		m.client = resend.NewClient(apiKey)
	}
	return m
}

// Send dispatches one digest covering all deals from a single scan.
// It reports success as a boolean and never returns an error: notification
// failure is local, the scan's stored listings are unaffected.
func (m *Mailer) Send(ctx context.Context, to, name, query, location string, deals []Deal) bool {
	if len(deals) == 0 {
		return false
	}
	if m.client == nil {
		log.Printf("[notifier] RESEND_API_KEY not set — would have sent %d deal(s) for %q to %s", len(deals), query, to)
		return false
	}

	subject := fmt.Sprintf("%s for %q near %s", dealCount(len(deals)), query, location)
	_, err := m.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    m.from,
		To:      []string{to},
		Subject: subject,
		Html:    RenderDigest(name, query, location, deals),
	})
	if err != nil {
		log.Printf("[notifier] Send failed to=%s query=%q err=%v", to, query, err)
		return false
	}

	log.Printf("[notifier] Sent digest of %d deal(s) for %q to %s", len(deals), query, to)
	return true
}

func dealCount(n int) string {
	if n == 1 {
		return "1 good deal found"
	}
	return fmt.Sprintf("%d good deals found", n)
}

// RenderDigest builds the HTML body. All scraped/model text is escaped —
// listing titles and model reasoning are untrusted input.
func RenderDigest(name, query, location string, deals []Deal) string {
	var b strings.Builder

	greeting := "Hi"
	if strings.TrimSpace(name) != "" {
		greeting = "Hi " + html.EscapeString(name)
	}

	b.WriteString(`<div style="font-family:Helvetica,Arial,sans-serif;max-width:640px;margin:0 auto;color:#1a1a1a">`)
	fmt.Fprintf(&b, `<h2>%s for %q</h2>`, dealCount(len(deals)), html.EscapeString(query))
	fmt.Fprintf(&b, `<p>%s — your search near <strong>%s</strong> just turned up %s:</p>`,
		greeting, html.EscapeString(location), dealCount(len(deals)))

	for _, d := range deals {
		b.WriteString(`<div style="border:1px solid #ddd;border-radius:8px;padding:16px;margin:12px 0">`)
		if d.ImageURL != "" {
			fmt.Fprintf(&b, `<img src="%s" alt="" style="max-width:100%%;border-radius:4px"/>`, html.EscapeString(d.ImageURL))
		}
		fmt.Fprintf(&b, `<h3 style="margin:8px 0"><a href="%s">%s</a></h3>`,
			html.EscapeString(d.URL), html.EscapeString(d.Title))
		fmt.Fprintf(&b, `<p style="margin:4px 0"><strong>%s</strong> · score %d/100 · condition %s</p>`,
			formatPrice(d.Price), d.Score, html.EscapeString(d.Condition))
		if d.Product != "" {
			fmt.Fprintf(&b, `<p style="margin:4px 0">Identified as: %s%s</p>`,
				html.EscapeString(d.Product), formatRetailRange(d.RetailLow, d.RetailHigh))
		}
		fmt.Fprintf(&b, `<p style="margin:4px 0">%s</p>`, html.EscapeString(d.Reasoning))
		if d.Comparison != "" {
			fmt.Fprintf(&b, `<p style="margin:4px 0;color:#555">%s</p>`, html.EscapeString(d.Comparison))
		}
		b.WriteString(`</div>`)
	}

	b.WriteString(`<p style="color:#888;font-size:12px">You receive these alerts because of your saved search. Deactivate it from your dashboard to stop them.</p>`)
	b.WriteString(`</div>`)
	return b.String()
}

func formatPrice(cents *int) string {
	if cents == nil {
		return "price not listed"
	}
	return fmt.Sprintf("$%s", addThousands(*cents/100))
}

func formatRetailRange(low, high *int) string {
	if low == nil || high == nil {
		return ""
	}
	return fmt.Sprintf(" (typically $%s–$%s used)", addThousands(*low/100), addThousands(*high/100))
}

func addThousands(n int) string {
	s := fmt.Sprintf("%d", n)
	if n < 0 {
		return s
	}
	for i := len(s) - 3; i > 0; i -= 3 {
		s = s[:i] + "," + s[i:]
	}
	return s
}
