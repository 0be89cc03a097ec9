package service

import (
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"strings"
	"text/template"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/liableapp/liable/internal/markdown"
	"github.com/liableapp/liable/internal/model"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

//go:embed emails/*.md
var emailFS embed.FS

const (
	TemplateCheckinRequest          = "checkin_request"
	TemplateCheckinSuccessOneTime   = "checkin_success_onetime"
	TemplateCheckinSuccessRecurring = "checkin_success_recurring"
	TemplateCheckinFailedOneTime    = "checkin_failed_onetime"
	TemplateCheckinFailedRecurring  = "checkin_failed_recurring"
	TemplateCheckinMissedOneTime    = "checkin_missed_onetime"
	TemplateCheckinMissedRecurring  = "checkin_missed_recurring"
	TemplatePartnerInviteOneTime    = "partner_invite_onetime"
	TemplatePartnerInviteRecurring  = "partner_invite_recurring"
)

// EmailData is the set of fields every email template may reference.
type EmailData struct {
	AppName         string
	PlannerGreeting string
	PlannerName     string
	PartnerGreeting string
	PartnerName     string
	GoalTitle       string
	Frequency       string
	EndDate         string
	NextCheck       string
	CheckinURL      string
	Charged         bool
	Amount          string
}

type emailTemplate struct {
	subject *template.Template
	body    *template.Template
}

type EmailTemplates struct {
	parser    *markdown.Parser
	appName   string
	templates map[string]emailTemplate
}

var templateFuncs = template.FuncMap{
	"sentence": sentenceCase,
}

func NewEmailTemplates(appName string) (*EmailTemplates, error) {
	parser := markdown.NewParser()

	files, err := fs.Glob(emailFS, "emails/*.md")
	if err != nil {
		return nil, fmt.Errorf("failed to list email templates: %w", err)
	}

	templates := make(map[string]emailTemplate, len(files))
	for _, file := range files {
		source, err := emailFS.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read email template %s: %w", file, err)
		}

		name := strings.TrimSuffix(path.Base(file), ".md")
		meta, body := parser.Split(source)

		subject, _ := meta["subject"].(string)
		if subject == "" {
			return nil, fmt.Errorf("email template %s has no subject", name)
		}

		subjectTmpl, err := template.New(name + ".subject").Funcs(templateFuncs).Parse(subject)
		if err != nil {
			return nil, fmt.Errorf("failed to parse subject of %s: %w", name, err)
		}
		bodyTmpl, err := template.New(name).Funcs(templateFuncs).Option("missingkey=error").Parse(string(body))
		if err != nil {
			return nil, fmt.Errorf("failed to parse email template %s: %w", name, err)
		}

		templates[name] = emailTemplate{subject: subjectTmpl, body: bodyTmpl}
	}

	return &EmailTemplates{parser: parser, appName: appName, templates: templates}, nil
}

// Render executes the named template and converts its markdown body to HTML.
// The markdown itself is kept as the plain-text alternative.
func (t *EmailTemplates) Render(name, to string, data EmailData) (Email, error) {
	tmpl, ok := t.templates[name]
	if !ok {
		return Email{}, fmt.Errorf("unknown email template %q", name)
	}

	if data.AppName == "" {
		data.AppName = t.appName
	}

	var subject, body bytes.Buffer
	err := tmpl.subject.Execute(&subject, data)
	if err != nil {
		return Email{}, fmt.Errorf("failed to render subject of %s: %w", name, err)
	}
	err = tmpl.body.Execute(&body, data)
	if err != nil {
		return Email{}, fmt.Errorf("failed to render %s: %w", name, err)
	}

	html, err := t.parser.Parse(body.Bytes())
	if err != nil {
		return Email{}, fmt.Errorf("failed to convert %s to html: %w", name, err)
	}

	return Email{
		To:      to,
		Subject: strings.TrimSpace(subject.String()),
		HTML:    string(html),
		Text:    body.String(),
		Tag:     name,
	}, nil
}

// newEmailData fills the fields shared by all goal emails. planner may be
// nil when the planner record could not be loaded.
func newEmailData(goal *model.Goal, planner *model.User) EmailData {
	data := EmailData{
		PlannerGreeting: "there",
		PlannerName:     "your friend",
		PartnerGreeting: "there",
		PartnerName:     titleCase(goal.AccountabilityPartnerFirstName),
		GoalTitle:       goal.Title,
		Frequency:       goal.AccountabilityFrequency,
		EndDate:         formatDate(goal.EndDate),
		NextCheck:       formatDate(goal.NextCheck),
	}

	if data.PartnerName != "" {
		data.PartnerGreeting = data.PartnerName
	} else {
		data.PartnerName = "your accountability partner"
	}

	if planner != nil && planner.DisplayName() != "" {
		name := titleCase(planner.DisplayName())
		data.PlannerGreeting = name
		data.PlannerName = name
	}

	return data
}

func titleCase(s string) string {
	return cases.Title(language.English).String(strings.TrimSpace(s))
}

func sentenceCase(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("January 2, 2006")
}

// formatAmount renders minor units with grouping, e.g. $1,250.00.
func formatAmount(cents int64, currency string) string {
	p := message.NewPrinter(language.English)
	value := float64(cents) / 100

	if strings.EqualFold(currency, "usd") || currency == "" {
		return p.Sprintf("$%.2f", value)
	}
	return p.Sprintf("%.2f %s", value, strings.ToUpper(currency))
}
