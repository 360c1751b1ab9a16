package email

import (
	"bytes"
	"fmt"
	"html/template"
)

const (
	TemplateWelcome            = "welcome"
	TemplateSubscriptionActive = "subscription_active"
)

// WelcomeData is sent once, when an account is first created.
type WelcomeData struct {
	Name         string
	DashboardURL string
}

// SubscriptionActiveData is sent when a paid subscription is first recorded.
type SubscriptionActiveData struct {
	Name       string
	Plan       string
	Interval   string
	RenewsOn   string
	BillingURL string
}

const layout = `<!DOCTYPE html>
<html lang="en">
<head><meta charset="UTF-8"><title>{{.Title}}</title></head>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Arial, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
  <div style="background: #16a34a; padding: 24px; border-radius: 10px 10px 0 0;">
    <h1 style="color: white; margin: 0; font-size: 22px;">notesaas</h1>
  </div>
  <div style="padding: 24px; border: 1px solid #e0e0e0; border-top: none; border-radius: 0 0 10px 10px;">
    {{template "body" .Data}}
    <hr style="border: none; border-top: 1px solid #e0e0e0; margin: 20px 0;">
    <p style="color: #999; font-size: 12px;">This is an automated message. Please do not reply.</p>
  </div>
</body>
</html>`

var templates = map[string]struct {
	subject string
	tmpl    *template.Template
}{
	TemplateWelcome: {
		subject: "Welcome to notesaas",
		tmpl: mustBody(`<h2 style="margin-top: 0;">Welcome, {{.Name}}!</h2>
<p>Your notebook is ready. Free accounts hold up to 10 notes; upgrade any time for unlimited notes.</p>
<p><a href="{{.DashboardURL}}">Open your dashboard</a></p>`),
	},
	TemplateSubscriptionActive: {
		subject: "Your notesaas subscription is active",
		tmpl: mustBody(`<h2 style="margin-top: 0;">Thanks, {{.Name}}!</h2>
<p>Your {{.Interval}} plan is active and your note limit has been lifted.</p>
{{if .RenewsOn}}<p>Your next renewal is on <strong>{{.RenewsOn}}</strong>.</p>{{end}}
<p><a href="{{.BillingURL}}">Manage billing</a></p>`),
	},
}

func mustBody(body string) *template.Template {
	t := template.Must(template.New("layout").Parse(layout))
	return template.Must(t.New("body").Parse(body))
}

// Render returns the subject and HTML body of a template. Unknown template
// names are an error so a typo never sends an empty message.
func Render(templateName string, data any) (subject, html string, err error) {
	entry, ok := templates[templateName]
	if !ok {
		return "", "", fmt.Errorf("unknown email template %q", templateName)
	}
	var buf bytes.Buffer
	err = entry.tmpl.ExecuteTemplate(&buf, "layout", struct {
		Title string
		Data  any
	}{Title: entry.subject, Data: data})
	if err != nil {
		return "", "", fmt.Errorf("render %s email: %w", templateName, err)
	}
	return entry.subject, buf.String(), nil
}
