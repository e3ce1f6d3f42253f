package discord

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	json "github.com/goccy/go-json"
)

const (
	// Colors for Discord embeds
	colorRed   = 15158332 // 0xE74C3C
	colorGreen = 5763719  // 0x57F287
	colorAmber = 15844367 // 0xF1C40F

	defaultWebhookTimeout = 10 * time.Second

	// Attempts per notification when Discord rate limits us
	maxRetries = 3
)

// WebhookPayload represents a Discord webhook message
type WebhookPayload struct {
	Content string  `json:"content,omitempty"`
	Embeds  []Embed `json:"embeds,omitempty"`
}

// Embed represents a Discord embed
type Embed struct {
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	Color       int          `json:"color,omitempty"`
	Fields      []EmbedField `json:"fields,omitempty"`
	Footer      *EmbedFooter `json:"footer,omitempty"`
	Timestamp   string       `json:"timestamp,omitempty"`
}

// EmbedField represents a field in a Discord embed
type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

// EmbedFooter represents the footer of a Discord embed
type EmbedFooter struct {
	Text string `json:"text"`
}

// CrawlReport is the run outcome carried by notifications.
type CrawlReport struct {
	APIKey        string
	Accepted      int // matches accepted by this run
	Total         int // matches in the output, resumed ones included
	Target        int
	Runtime       time.Duration
	SinceLastSave time.Duration
	OutputPath    string
}

// NewKeyRejectedPayload creates the alert sent when the API rejects the key
// mid-crawl.
func NewKeyRejectedPayload(r CrawlReport) WebhookPayload {
	return WebhookPayload{
		Content: "@here Riot API key rejected, crawl stopped",
		Embeds: []Embed{
			{
				Title: "🔑 API Key Rejected",
				Color: colorRed,
				Fields: []EmbedField{
					{Name: "Key", Value: maskAPIKey(r.APIKey), Inline: true},
					{Name: "Matches Collected", Value: progress(r.Total, r.Target), Inline: true},
					{Name: "This Run", Value: formatNumber(r.Accepted), Inline: true},
					{Name: "Runtime", Value: formatDuration(r.Runtime), Inline: true},
					{Name: "Last Save", Value: formatDurationAgo(r.SinceLastSave), Inline: true},
				},
				Footer: &EmbedFooter{
					Text: "Set a fresh RIOT_API_KEY and rerun; the crawl resumes from " + r.OutputPath,
				},
			},
		},
	}
}

// NewCrawlCompletePayload creates the summary sent when a crawl ends
// normally. A crawl that ran out of ladder before the target is flagged.
func NewCrawlCompletePayload(r CrawlReport) WebhookPayload {
	title := "✅ Crawl Complete"
	color := colorGreen
	if r.Total < r.Target {
		title = "⚠️ Crawl Finished Below Target"
		color = colorAmber
	}
	return WebhookPayload{
		Embeds: []Embed{
			{
				Title: title,
				Color: color,
				Fields: []EmbedField{
					{Name: "Matches Collected", Value: progress(r.Total, r.Target), Inline: true},
					{Name: "This Run", Value: formatNumber(r.Accepted), Inline: true},
					{Name: "Runtime", Value: formatDuration(r.Runtime), Inline: true},
				},
				Footer: &EmbedFooter{Text: r.OutputPath},
			},
		},
	}
}

// WebhookClient sends notifications to Discord webhooks
type WebhookClient struct {
	webhookURL string
	httpClient *http.Client
}

// NewWebhookClient creates a new WebhookClient
func NewWebhookClient(webhookURL string) *WebhookClient {
	return &WebhookClient{
		webhookURL: webhookURL,
		httpClient: &http.Client{
			Timeout: defaultWebhookTimeout,
		},
	}
}

// SendKeyRejected sends the key rejection alert.
func (c *WebhookClient) SendKeyRejected(ctx context.Context, r CrawlReport) error {
	return c.sendPayload(ctx, NewKeyRejectedPayload(r))
}

// SendCrawlComplete sends the end-of-run summary.
func (c *WebhookClient) SendCrawlComplete(ctx context.Context, r CrawlReport) error {
	return c.sendPayload(ctx, NewCrawlCompletePayload(r))
}

// sendPayload sends a webhook payload with retry on rate limiting
func (c *WebhookClient) sendPayload(ctx context.Context, payload WebhookPayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	for attempt := 0; attempt < maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(data))
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}
		resp.Body.Close()

		// Discord answers 204 No Content, or 200 with ?wait=true
		if resp.StatusCode == http.StatusNoContent || resp.StatusCode == http.StatusOK {
			return nil
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			wait := time.Second
			if seconds, err := strconv.ParseFloat(resp.Header.Get("Retry-After"), 64); err == nil && seconds > 0 {
				wait = time.Duration(seconds * float64(time.Second))
			}

			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
				continue
			}
		}

		return fmt.Errorf("webhook request failed with status %d", resp.StatusCode)
	}

	return fmt.Errorf("webhook request failed after %d retries", maxRetries)
}

func progress(total, target int) string {
	if target <= 0 {
		return formatNumber(total)
	}
	return formatNumber(total) + " / " + formatNumber(target)
}

// formatNumber formats a number with commas (e.g., 47832 -> "47,832")
func formatNumber(n int) string {
	if n < 0 {
		return "-" + formatNumber(-n)
	}
	if n < 1000 {
		return strconv.Itoa(n)
	}

	s := strconv.Itoa(n)
	var result bytes.Buffer
	for i, c := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			result.WriteByte(',')
		}
		result.WriteRune(c)
	}
	return result.String()
}

// formatDuration formats a duration as "Xh Ym" (e.g., 18h 32m)
func formatDuration(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh %dm", hours, minutes)
}

// formatDurationAgo formats a duration as "X min ago" or "X sec ago"
func formatDurationAgo(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%d sec ago", int(d.Seconds()))
	}
	return fmt.Sprintf("%d min ago", int(d.Minutes()))
}

// maskAPIKey masks an API key for display (e.g., "RGAPI-xxxx-xxxx" -> "RGAPI...xxxx")
func maskAPIKey(key string) string {
	if len(key) <= 10 {
		return "****"
	}
	return key[:5] + "..." + key[len(key)-4:]
}
