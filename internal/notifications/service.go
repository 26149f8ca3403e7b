package notifications

import (
	"bytes"
	"fmt"
	"html/template"
	"sort"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"github.com/trustlens/evidence-verifier/internal/config"
	"github.com/trustlens/evidence-verifier/internal/models"
	"gopkg.in/gomail.v2"
)

const (
	teamsCommentLimit = 5
	emailCommentLimit = 10
	excerptLength     = 200
)

// Service sends batch report summaries to Teams and email
type Service struct {
	config *config.Config
	client *resty.Client
}

// Ensure Service implements NotificationInterface
var _ NotificationInterface = (*Service)(nil)

// TeamsMessage represents a Microsoft Teams message card
type TeamsMessage struct {
	Type       string         `json:"@type"`
	Context    string         `json:"@context"`
	ThemeColor string         `json:"themeColor,omitempty"`
	Title      string         `json:"title"`
	Text       string         `json:"text"`
	Sections   []TeamsSection `json:"sections,omitempty"`
}

type TeamsSection struct {
	ActivityTitle    string      `json:"activityTitle,omitempty"`
	ActivitySubtitle string      `json:"activitySubtitle,omitempty"`
	ActivityText     string      `json:"activityText,omitempty"`
	Facts            []TeamsFact `json:"facts,omitempty"`
	Markdown         bool        `json:"markdown,omitempty"`
}

type TeamsFact struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// NewService creates a new notification service
func NewService(cfg *config.Config) *Service {
	return &Service{
		config: cfg,
		client: resty.New().SetTimeout(30 * time.Second),
	}
}

// IsEnabled reports whether any notification channel is configured
func (s *Service) IsEnabled() bool {
	return s.config.TeamsWebhookURL != "" || s.config.NotificationEmail != ""
}

// SendReport sends a report summary via every configured channel
func (s *Service) SendReport(report *models.Report) error {
	var errors []string

	if s.config.TeamsWebhookURL != "" {
		if err := s.sendToTeams(report); err != nil {
			logrus.Errorf("Failed to send Teams notification: %v", err)
			errors = append(errors, fmt.Sprintf("Teams: %v", err))
		} else {
			logrus.Infof("Sent report %s to Teams", report.ID)
		}
	}

	if s.config.NotificationEmail != "" {
		if err := s.sendEmail(report); err != nil {
			logrus.Errorf("Failed to send email notification: %v", err)
			errors = append(errors, fmt.Sprintf("Email: %v", err))
		} else {
			logrus.Infof("Sent report %s via email", report.ID)
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("notification errors: %s", strings.Join(errors, "; "))
	}

	return nil
}

func (s *Service) sendToTeams(report *models.Report) error {
	message := s.buildTeamsMessage(report)

	resp, err := s.client.R().
		SetHeader("Content-Type", "application/json").
		SetBody(message).
		Post(s.config.TeamsWebhookURL)

	if err != nil {
		return fmt.Errorf("failed to send Teams message: %w", err)
	}

	if resp.StatusCode() != 200 {
		return fmt.Errorf("Teams webhook returned status %d: %s", resp.StatusCode(), string(resp.Body()))
	}

	return nil
}

func (s *Service) buildTeamsMessage(report *models.Report) *TeamsMessage {
	message := &TeamsMessage{
		Type:       "MessageCard",
		Context:    "https://schema.org/extensions",
		ThemeColor: themeColor(report.Summary),
		Title:      fmt.Sprintf("Evidence Report - %s", sourceLabel(report)),
		Text: fmt.Sprintf("Analyzed %d comments, %d of %d linked sources verified",
			report.TotalComments, report.Summary.URLsVerified, report.Summary.URLsChecked),
	}

	facts := []TeamsFact{
		{Name: "Report", Value: report.ID},
		{Name: "Generated", Value: report.GeneratedAt.Format("2006-01-02 15:04:05 UTC")},
		{Name: "Duration", Value: report.Duration},
	}
	for _, line := range statusLines(report.Summary) {
		facts = append(facts, TeamsFact{Name: line.name, Value: fmt.Sprintf("%d", line.count)})
	}
	for _, line := range badgeLines(report.Summary) {
		facts = append(facts, TeamsFact{Name: line.name, Value: fmt.Sprintf("%d", line.count)})
	}
	if len(report.Summary.TopCategories) > 0 {
		facts = append(facts, TeamsFact{Name: "Top Categories", Value: strings.Join(report.Summary.TopCategories, ", ")})
	}

	message.Sections = append(message.Sections, TeamsSection{
		ActivityTitle: "Summary",
		Facts:         facts,
		Markdown:      true,
	})

	if len(report.Comments) > 0 {
		limit := min(teamsCommentLimit, len(report.Comments))

		var lines []string
		for _, c := range report.Comments[:limit] {
			lines = append(lines, fmt.Sprintf("**%s** - %s (%s)", c.Status, c.TooltipShort, excerpt(c.Text, 80)))
		}

		message.Sections = append(message.Sections, TeamsSection{
			ActivityTitle: "Comments",
			ActivityText:  strings.Join(lines, "\n\n"),
			Markdown:      true,
		})
	}

	return message
}

func (s *Service) sendEmail(report *models.Report) error {
	subject := fmt.Sprintf("Evidence Report - %s (%d comments)", sourceLabel(report), report.TotalComments)

	htmlBody, err := s.buildEmailHTML(report)
	if err != nil {
		return fmt.Errorf("failed to build email HTML: %w", err)
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.config.SMTPUsername)
	m.SetHeader("To", s.config.NotificationEmail)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", s.buildEmailText(report))
	m.AddAlternative("text/html", htmlBody)

	d := gomail.NewDialer(s.config.SMTPHost, s.config.SMTPPort, s.config.SMTPUsername, s.config.SMTPPassword)
	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	return nil
}

const emailTemplate = `
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Evidence Report</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        .header { background-color: #24292f; color: white; padding: 20px; border-radius: 5px; }
        .summary { background-color: #f5f5f5; padding: 15px; margin: 20px 0; border-radius: 5px; }
        .comment { border-left: 4px solid #605e5c; padding: 10px; margin: 10px 0; background-color: #fafafa; }
        .comment-status { font-weight: bold; margin-bottom: 5px; }
        .comment-meta { color: #666; font-size: 0.9em; }
        .green { border-left-color: #107c10; }
        .yellow { border-left-color: #ffb900; }
        .red { border-left-color: #d13438; }
    </style>
</head>
<body>
    <div class="header">
        <h1>Evidence Report</h1>
        <p>{{.Report.Source}} batch generated on {{.Report.GeneratedAt.Format "January 2, 2006 at 3:04 PM UTC"}}</p>
    </div>

    <div class="summary">
        <h2>Summary</h2>
        <p><strong>Total Comments:</strong> {{.Report.TotalComments}}</p>
        <p><strong>Linked Sources:</strong> {{.Report.Summary.URLsVerified}} verified of {{.Report.Summary.URLsChecked}} checked</p>
        {{range .Statuses}}<p><strong>{{.Name}}:</strong> {{.Count}}</p>
        {{end}}
        {{range .Badges}}<p><strong>{{.Name}}:</strong> {{.Count}}</p>
        {{end}}
    </div>

    {{if .Comments}}
    <h2>Comments</h2>
    {{range .Comments}}
        <div class="comment {{.Badge}}">
            <div class="comment-status">{{.Status}}: {{.Tooltip}}</div>
            <div class="comment-meta">{{.Detail}}</div>
            <p>{{.Text | truncate}}</p>
        </div>
    {{end}}
    {{end}}

    <hr>
    <p><small>This report was generated automatically by the evidence verifier.</small></p>
</body>
</html>
`

type emailLine struct {
	Name  string
	Count int
}

type emailComment struct {
	Status  models.EvidenceStatus
	Tooltip string
	Detail  string
	Text    string
	Badge   string
}

func (s *Service) buildEmailHTML(report *models.Report) (string, error) {
	t, err := template.New("email").Funcs(template.FuncMap{
		"truncate": func(text string) string { return excerpt(text, excerptLength) },
	}).Parse(emailTemplate)
	if err != nil {
		return "", err
	}

	data := struct {
		Report   *models.Report
		Statuses []emailLine
		Badges   []emailLine
		Comments []emailComment
	}{Report: report}

	for _, line := range statusLines(report.Summary) {
		data.Statuses = append(data.Statuses, emailLine{Name: line.name, Count: line.count})
	}
	for _, line := range badgeLines(report.Summary) {
		data.Badges = append(data.Badges, emailLine{Name: line.name, Count: line.count})
	}

	limit := min(emailCommentLimit, len(report.Comments))
	for _, c := range report.Comments[:limit] {
		entry := emailComment{
			Status:  c.Status,
			Tooltip: c.TooltipShort,
			Detail:  c.TooltipDetail,
			Text:    c.Text,
		}
		if c.Badge != nil {
			entry.Badge = string(c.Badge.Color)
		}
		data.Comments = append(data.Comments, entry)
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}

	return buf.String(), nil
}

func (s *Service) buildEmailText(report *models.Report) string {
	var text strings.Builder

	text.WriteString(fmt.Sprintf("Evidence Report - %s\n", sourceLabel(report)))
	text.WriteString(fmt.Sprintf("Generated: %s\n\n", report.GeneratedAt.Format("2006-01-02 15:04:05 UTC")))

	text.WriteString("SUMMARY\n")
	text.WriteString("=======\n")
	text.WriteString(fmt.Sprintf("Total Comments: %d\n", report.TotalComments))
	text.WriteString(fmt.Sprintf("Linked Sources: %d verified of %d checked\n", report.Summary.URLsVerified, report.Summary.URLsChecked))
	for _, line := range statusLines(report.Summary) {
		text.WriteString(fmt.Sprintf("%s: %d\n", line.name, line.count))
	}
	for _, line := range badgeLines(report.Summary) {
		text.WriteString(fmt.Sprintf("%s: %d\n", line.name, line.count))
	}
	if len(report.Summary.TopCategories) > 0 {
		text.WriteString(fmt.Sprintf("Top Categories: %s\n", strings.Join(report.Summary.TopCategories, ", ")))
	}

	if len(report.Comments) > 0 {
		text.WriteString("\nCOMMENTS\n")
		text.WriteString("========\n")

		limit := min(emailCommentLimit, len(report.Comments))
		for i, c := range report.Comments[:limit] {
			text.WriteString(fmt.Sprintf("\n%d. [%s] %s\n", i+1, c.Status, c.TooltipShort))
			text.WriteString(fmt.Sprintf("   %s\n", c.TooltipDetail))
			if c.Text != "" {
				text.WriteString(fmt.Sprintf("   Text: %s\n", excerpt(c.Text, excerptLength)))
			}
		}
	}

	text.WriteString("\n---\nThis report was generated automatically by the evidence verifier.\n")

	return text.String()
}

type countLine struct {
	name  string
	count int
}

var statusOrder = []models.EvidenceStatus{
	models.StatusVerified,
	models.StatusMixed,
	models.StatusUnverified,
	models.StatusEvidencePresentUnverified,
	models.StatusNone,
}

func statusLines(summary models.ReportSummary) []countLine {
	var lines []countLine
	for _, status := range statusOrder {
		if n := summary.StatusCounts[status]; n > 0 {
			lines = append(lines, countLine{name: fmt.Sprintf("Status %s", status), count: n})
		}
	}
	return lines
}

func badgeLines(summary models.ReportSummary) []countLine {
	colors := make([]string, 0, len(summary.BadgeCounts))
	for color := range summary.BadgeCounts {
		colors = append(colors, string(color))
	}
	sort.Strings(colors)

	var lines []countLine
	for _, color := range colors {
		lines = append(lines, countLine{name: fmt.Sprintf("Badge %s", color), count: summary.BadgeCounts[models.BadgeColor(color)]})
	}
	return lines
}

// themeColor colors the card by the worst badge in the batch
func themeColor(summary models.ReportSummary) string {
	switch {
	case summary.BadgeCounts[models.BadgeRed] > 0:
		return "d13438"
	case summary.BadgeCounts[models.BadgeYellow] > 0:
		return "ffb900"
	default:
		return "107c10"
	}
}

func sourceLabel(report *models.Report) string {
	if report.Source == "" {
		return "adhoc"
	}
	return report.Source
}

func excerpt(text string, length int) string {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) <= length {
		return string(runes)
	}
	return string(runes[:length]) + "..."
}
