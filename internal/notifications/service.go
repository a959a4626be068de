package notifications

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/mediapulse/mentions/internal/config"
	"github.com/mediapulse/mentions/internal/models"
	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"
)

// Service handles sending notifications via various channels
type Service struct {
	config *config.Config
	client *resty.Client
}

// Ensure Service implements NotificationInterface
var _ NotificationInterface = (*Service)(nil)

// TeamsMessage represents a Microsoft Teams message
type TeamsMessage struct {
	Type     string         `json:"@type"`
	Context  string         `json:"@context"`
	Title    string         `json:"title"`
	Text     string         `json:"text"`
	Sections []TeamsSection `json:"sections,omitempty"`
}

type TeamsSection struct {
	ActivityTitle string      `json:"activityTitle,omitempty"`
	ActivityText  string      `json:"activityText,omitempty"`
	Facts         []TeamsFact `json:"facts,omitempty"`
	Markdown      bool        `json:"markdown,omitempty"`
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

// SendReport sends a KPI report via configured notification channels
func (s *Service) SendReport(report *models.Report) error {
	var errors []string

	if s.config.TeamsWebhookURL != "" {
		if err := s.sendToTeams(s.buildReportMessage(report)); err != nil {
			logrus.Errorf("Failed to send Teams notification: %v", err)
			errors = append(errors, fmt.Sprintf("Teams: %v", err))
		} else {
			logrus.Info("Successfully sent report to Teams")
		}
	}

	if s.config.NotificationEmail != "" {
		if err := s.sendReportEmail(report); err != nil {
			logrus.Errorf("Failed to send email notification: %v", err)
			errors = append(errors, fmt.Sprintf("Email: %v", err))
		} else {
			logrus.Info("Successfully sent report via email")
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("notification errors: %s", strings.Join(errors, "; "))
	}

	return nil
}

// SendAlert sends an urgent notification, e.g. a detected mention spike
func (s *Service) SendAlert(alert *models.Alert) error {
	var errors []string

	if s.config.TeamsWebhookURL != "" {
		if err := s.sendToTeams(s.buildAlertMessage(alert)); err != nil {
			logrus.Errorf("Failed to send Teams alert: %v", err)
			errors = append(errors, fmt.Sprintf("Teams: %v", err))
		}
	}

	if s.config.NotificationEmail != "" {
		if err := s.sendAlertEmail(alert); err != nil {
			logrus.Errorf("Failed to send alert email: %v", err)
			errors = append(errors, fmt.Sprintf("Email: %v", err))
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("alert notification errors: %s", strings.Join(errors, "; "))
	}

	return nil
}

func (s *Service) sendToTeams(message *TeamsMessage) error {
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

func (s *Service) buildReportMessage(report *models.Report) *TeamsMessage {
	subject := report.PersonName
	if subject == "" {
		subject = "all tracked persons"
	}

	message := &TeamsMessage{
		Type:    "MessageCard",
		Context: "https://schema.org/extensions",
		Title:   fmt.Sprintf("Mentions Report - %s", subject),
		Text:    fmt.Sprintf("%d mentions over period %s", report.Mentions.Total, report.Period),
	}

	facts := []TeamsFact{
		{Name: "Total Mentions", Value: fmt.Sprintf("%d", report.Mentions.Total)},
		{Name: "In Focus", Value: fmt.Sprintf("%d", report.Mentions.Focus)},
		{Name: "Positive", Value: fmt.Sprintf("%d (%.0f%%)", report.Sentiment.Positive, report.Sentiment.PositiveShare*100)},
		{Name: "Negative", Value: fmt.Sprintf("%d (%.0f%%)", report.Sentiment.Negative, report.Sentiment.NegativeShare*100)},
		{Name: "Net Sentiment", Value: fmt.Sprintf("%.2f", report.Sentiment.NetSentiment)},
		{Name: "Total Reach", Value: fmt.Sprintf("%d views", report.Reach.TotalReach)},
		{Name: "Unique Sources", Value: fmt.Sprintf("%d", report.Reach.UniqueSources)},
		{Name: "Velocity", Value: fmt.Sprintf("%.1f mentions/hour", report.Velocity.VelocityPerHour)},
		{Name: "Generated", Value: report.GeneratedAt.Format("2006-01-02 15:04:05 UTC")},
	}

	message.Sections = append(message.Sections, TeamsSection{
		ActivityTitle: "Summary",
		Facts:         facts,
		Markdown:      true,
	})

	if len(report.TopSources) > 0 {
		var lines []string
		for _, src := range report.TopSources {
			lines = append(lines, fmt.Sprintf("**%s** - %d mentions, %d views", src.SourceTitle, src.Mentions, src.Views))
		}
		message.Sections = append(message.Sections, TeamsSection{
			ActivityTitle: "Top Sources",
			ActivityText:  strings.Join(lines, "\n\n"),
			Markdown:      true,
		})
	}

	if len(report.KeyQuotes) > 0 {
		var lines []string
		for _, q := range report.KeyQuotes {
			lines = append(lines, fmt.Sprintf("> %s\n*%s, %s*", q.Text, q.Source, q.PublishedAt.Format("Jan 2")))
		}
		message.Sections = append(message.Sections, TeamsSection{
			ActivityTitle: "Key Quotes",
			ActivityText:  strings.Join(lines, "\n\n"),
			Markdown:      true,
		})
	}

	return message
}

func (s *Service) buildAlertMessage(alert *models.Alert) *TeamsMessage {
	message := &TeamsMessage{
		Type:    "MessageCard",
		Context: "https://schema.org/extensions",
		Title:   alert.Title,
		Text:    alert.Message,
	}

	if alert.Report != nil {
		message.Sections = append(message.Sections, TeamsSection{
			ActivityTitle: "Spike Details",
			Facts: []TeamsFact{
				{Name: "Z-Score", Value: fmt.Sprintf("%.2f", alert.Report.Velocity.ZScore)},
				{Name: "Velocity", Value: fmt.Sprintf("%.1f mentions/hour", alert.Report.Velocity.VelocityPerHour)},
				{Name: "Acceleration", Value: fmt.Sprintf("%+.2f", alert.Report.Velocity.Acceleration)},
				{Name: "Period", Value: alert.Report.Period},
			},
			Markdown: true,
		})
	}

	return message
}

func (s *Service) sendReportEmail(report *models.Report) error {
	subject := report.PersonName
	if subject == "" {
		subject = "all tracked persons"
	}

	htmlBody, err := s.buildEmailHTML(report)
	if err != nil {
		return fmt.Errorf("failed to build email HTML: %w", err)
	}

	return s.dispatchEmail(
		fmt.Sprintf("Mentions Report - %s (%d mentions)", subject, report.Mentions.Total),
		s.buildEmailText(report),
		htmlBody,
	)
}

func (s *Service) sendAlertEmail(alert *models.Alert) error {
	body := alert.Message
	if alert.Report != nil {
		body += fmt.Sprintf("\n\nZ-Score: %.2f\nVelocity: %.1f mentions/hour\nAcceleration: %+.2f\n",
			alert.Report.Velocity.ZScore,
			alert.Report.Velocity.VelocityPerHour,
			alert.Report.Velocity.Acceleration)
	}
	return s.dispatchEmail(alert.Title, body, "")
}

func (s *Service) dispatchEmail(subject, textBody, htmlBody string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.config.SMTPUsername)
	m.SetHeader("To", s.config.NotificationEmail)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", textBody)
	if htmlBody != "" {
		m.AddAlternative("text/html", htmlBody)
	}

	d := gomail.NewDialer(s.config.SMTPHost, s.config.SMTPPort, s.config.SMTPUsername, s.config.SMTPPassword)

	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	return nil
}

func (s *Service) buildEmailHTML(report *models.Report) (string, error) {
	tmpl := `
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Mentions Report</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        .header { background-color: #1a3d6d; color: white; padding: 20px; border-radius: 5px; }
        .summary { background-color: #f5f5f5; padding: 15px; margin: 20px 0; border-radius: 5px; }
        .quote { border-left: 4px solid #1a3d6d; padding: 10px; margin: 10px 0; background-color: #fafafa; }
        .quote-meta { color: #666; font-size: 0.9em; }
    </style>
</head>
<body>
    <div class="header">
        <h1>Mentions Report{{if .PersonName}} - {{.PersonName}}{{end}}</h1>
        <p>Period {{.Period}}, generated {{.GeneratedAt.Format "January 2, 2006 at 3:04 PM UTC"}}</p>
    </div>

    <div class="summary">
        <h2>Summary</h2>
        <p><strong>Total Mentions:</strong> {{.Mentions.Total}} ({{.Mentions.Focus}} in focus)</p>
        <p><strong>Sentiment:</strong> {{.Sentiment.Positive}} positive / {{.Sentiment.Negative}} negative / {{.Sentiment.Neutral}} neutral</p>
        <p><strong>Net Sentiment:</strong> {{printf "%.2f" .Sentiment.NetSentiment}}</p>
        <p><strong>Reach:</strong> {{.Reach.TotalReach}} views across {{.Reach.UniqueSources}} sources</p>
        <p><strong>Velocity:</strong> {{printf "%.1f" .Velocity.VelocityPerHour}} mentions/hour{{if .Velocity.IsSpike}} (SPIKE, z={{printf "%.1f" .Velocity.ZScore}}){{end}}</p>
    </div>

    {{if .TopSources}}
    <h2>Top Sources</h2>
    <ol>
    {{range .TopSources}}
        <li>{{.SourceTitle}} &mdash; {{.Mentions}} mentions, {{.Views}} views</li>
    {{end}}
    </ol>
    {{end}}

    {{if .KeyQuotes}}
    <h2>Key Quotes</h2>
    {{range .KeyQuotes}}
        <div class="quote">
            <p>{{.Text}}</p>
            <div class="quote-meta">{{.Source}} | {{.PublishedAt.Format "Jan 2, 2006"}}</div>
        </div>
    {{end}}
    {{end}}

    <hr>
    <p><small>This report was generated automatically.</small></p>
</body>
</html>
`

	t, err := template.New("email").Parse(tmpl)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, report); err != nil {
		return "", err
	}

	return buf.String(), nil
}

func (s *Service) buildEmailText(report *models.Report) string {
	var text strings.Builder

	text.WriteString("Mentions Report")
	if report.PersonName != "" {
		text.WriteString(" - " + report.PersonName)
	}
	text.WriteString("\n")
	text.WriteString(fmt.Sprintf("Period: %s\n", report.Period))
	text.WriteString(fmt.Sprintf("Generated: %s\n\n", report.GeneratedAt.Format("2006-01-02 15:04:05 UTC")))

	text.WriteString("SUMMARY\n")
	text.WriteString("=======\n")
	text.WriteString(fmt.Sprintf("Total Mentions: %d (%d in focus)\n", report.Mentions.Total, report.Mentions.Focus))
	text.WriteString(fmt.Sprintf("Sentiment: %d positive / %d negative / %d neutral\n",
		report.Sentiment.Positive, report.Sentiment.Negative, report.Sentiment.Neutral))
	text.WriteString(fmt.Sprintf("Net Sentiment: %.2f\n", report.Sentiment.NetSentiment))
	text.WriteString(fmt.Sprintf("Reach: %d views across %d sources\n", report.Reach.TotalReach, report.Reach.UniqueSources))
	text.WriteString(fmt.Sprintf("Velocity: %.1f mentions/hour\n", report.Velocity.VelocityPerHour))
	if report.Velocity.IsSpike {
		text.WriteString(fmt.Sprintf("SPIKE DETECTED (z-score %.2f)\n", report.Velocity.ZScore))
	}

	if len(report.TopSources) > 0 {
		text.WriteString("\nTOP SOURCES\n")
		text.WriteString("===========\n")
		for i, src := range report.TopSources {
			text.WriteString(fmt.Sprintf("%d. %s - %d mentions, %d views\n", i+1, src.SourceTitle, src.Mentions, src.Views))
		}
	}

	if len(report.KeyQuotes) > 0 {
		text.WriteString("\nKEY QUOTES\n")
		text.WriteString("==========\n")
		for _, q := range report.KeyQuotes {
			text.WriteString(fmt.Sprintf("\n\"%s\"\n  %s | %s\n  %s\n", q.Text, q.Source, q.PublishedAt.Format("Jan 2, 2006"), q.URL))
		}
	}

	text.WriteString("\n---\nThis report was generated automatically.\n")

	return text.String()
}
