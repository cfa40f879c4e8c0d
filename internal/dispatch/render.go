// AngelaMos | 2026
// render.go

package dispatch

import (
	"bytes"
	"fmt"
	"html/template"
	"net/url"
	"strings"
	"time"

	"github.com/wealthsupernova/supernova/internal/article"
)

const brandName = "WealthSuperNova"

const layoutTemplate = `{{define "layout"}}<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Subject}}</title>
</head>
<body style="margin:0;padding:0;background:#0b0d17;font-family:Helvetica,Arial,sans-serif;color:#e6e8f0;">
<table role="presentation" width="100%" cellpadding="0" cellspacing="0">
<tr><td align="center" style="padding:32px 16px;">
<table role="presentation" width="600" cellpadding="0" cellspacing="0" style="max-width:600px;background:#141829;border-radius:8px;">
<tr><td style="padding:24px 32px;border-bottom:1px solid #262b45;font-size:20px;font-weight:bold;color:#f5c542;">{{.Brand}}</td></tr>
<tr><td style="padding:32px;line-height:1.6;">{{template "body" .}}</td></tr>
<tr><td style="padding:24px 32px;border-top:1px solid #262b45;font-size:12px;color:#8a90a8;">
You are receiving this because you subscribed to {{.Brand}}.
<a href="{{.PreferencesURL}}" style="color:#8a90a8;">Manage preferences or unsubscribe</a>.
<br>&copy; {{.Year}} {{.Brand}}
</td></tr>
</table>
</td></tr>
</table>
</body>
</html>{{end}}`

const fullBody = `{{define "body"}}<h1 style="margin-top:0;font-size:24px;">{{.Title}}</h1>
<p style="color:#8a90a8;font-size:13px;">By {{.Author}} &middot; {{.ReadTime}} min read</p>
{{.Content}}
<p><a href="{{.ArticleURL}}" style="color:#f5c542;">Read on the web</a></p>{{end}}`

const summaryBody = `{{define "body"}}<h1 style="margin-top:0;font-size:24px;">{{.Title}}</h1>
<p>{{.Summary}}</p>
{{if .Locked}}<p style="color:#8a90a8;">The full issue is available to {{.RequiredTier}} members.</p>{{end}}
<p><a href="{{.ArticleURL}}" style="display:inline-block;padding:12px 20px;background:#f5c542;color:#0b0d17;text-decoration:none;border-radius:4px;font-weight:bold;">Read the full newsletter</a></p>{{end}}`

const welcomeBody = `{{define "body"}}<h1 style="margin-top:0;font-size:24px;">Welcome{{if .Name}}, {{.Name}}{{end}}!</h1>
<p>Thanks for joining the {{.Brand}} newsletter. Each issue brings research on markets, alternatives and wealth preservation straight to your inbox.</p>
<p><a href="{{.ConfirmURL}}" style="display:inline-block;padding:12px 20px;background:#f5c542;color:#0b0d17;text-decoration:none;border-radius:4px;font-weight:bold;">Confirm your subscription</a></p>
<p><a href="{{.ArchiveURL}}" style="color:#f5c542;">Browse the archive</a></p>{{end}}`

type emailData struct {
	Brand          string
	Subject        string
	Name           string
	Title          string
	Author         string
	ReadTime       int
	Summary        string
	Content        template.HTML
	ArticleURL     string
	ArchiveURL     string
	ConfirmURL     string
	PreferencesURL string
	RequiredTier   string
	Locked         bool
	Year           int
}

// Renderer turns articles into HTML email bodies.
type Renderer struct {
	baseURL string
	full    *template.Template
	summary *template.Template
	welcome *template.Template
	now     func() time.Time
}

func NewRenderer(baseURL string) *Renderer {
	return &Renderer{
		baseURL: strings.TrimRight(baseURL, "/"),
		full:    mustParse("full", fullBody),
		summary: mustParse("summary", summaryBody),
		welcome: mustParse("welcome", welcomeBody),
		now:     time.Now,
	}
}

func mustParse(name, body string) *template.Template {
	return template.Must(template.Must(template.New(name).Parse(layoutTemplate)).Parse(body))
}

// Newsletter renders a for one recipient. With summary set, the body holds
// the title, summary and a link instead of the article content. Content is
// admin-authored HTML and is inserted unescaped.
func (r *Renderer) Newsletter(
	a *article.Article,
	to Recipient,
	subject string,
	summary bool,
) (string, error) {
	data := r.base(subject, to.Email)
	data.Name = to.Name
	data.Title = a.Title
	data.Author = a.Author
	data.ReadTime = a.ReadTimeMinutes
	data.Summary = a.Summary
	data.ArticleURL = r.ArticleURL(a.Slug)
	data.RequiredTier = a.MinTier.Title()
	data.Locked = !a.ReadableBy(to.Tier)

	tmpl := r.full
	if summary {
		tmpl = r.summary
	} else {
		//nolint:gosec // G203: article bodies are written by admins
		data.Content = template.HTML(a.Content)
	}

	return execute(tmpl, data)
}

func (r *Renderer) Welcome(c *Contact, subject, confirmToken string) (string, error) {
	data := r.base(subject, c.Email)
	data.Name = c.Name
	data.ConfirmURL = r.baseURL + "/v1/subscribers/confirm?token=" + url.QueryEscape(confirmToken)
	data.ArchiveURL = r.baseURL + "/newsletters"

	return execute(r.welcome, data)
}

// PlainText is the text/plain alternative sent next to the HTML body.
func (r *Renderer) PlainText(a *article.Article) string {
	return fmt.Sprintf("%s\n\n%s\n\nRead online: %s\n", a.Title, a.Summary, r.ArticleURL(a.Slug))
}

func (r *Renderer) ArticleURL(slug string) string {
	return r.baseURL + "/newsletters/" + url.PathEscape(slug)
}

func (r *Renderer) PreferencesURL(email string) string {
	return r.baseURL + "/account/preferences?email=" + url.QueryEscape(email)
}

func (r *Renderer) base(subject, email string) emailData {
	return emailData{
		Brand:          brandName,
		Subject:        subject,
		PreferencesURL: r.PreferencesURL(email),
		Year:           r.now().Year(),
	}
}

func execute(tmpl *template.Template, data emailData) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		return "", fmt.Errorf("render email: %w", err)
	}
	return buf.String(), nil
}
