package notify

import (
	"context"
	"net/http"
	"time"

	"github.com/openstatushq/pulse/internal/core/domain"
)

// Discord posts to a Discord channel webhook.
type Discord struct {
	name   string
	url    string
	client *http.Client
}

type discordPayload struct {
	Username string         `json:"username"`
	Content  string         `json:"content"`
	Embeds   []discordEmbed `json:"embeds,omitempty"`
}

type discordEmbed struct {
	Title     string `json:"title"`
	URL       string `json:"url,omitempty"`
	Color     int    `json:"color"`
	Timestamp string `json:"timestamp"`
}

func NewDiscord(name, url string, client *http.Client) *Discord {
	if client == nil {
		client = DefaultHTTPClient()
	}
	return &Discord{name: name, url: url, client: client}
}

func (d *Discord) Name() string { return d.name }

func (d *Discord) Notify(ctx context.Context, n *domain.Notification) error {
	payload := discordPayload{
		Username: "pulse",
		Content:  summary(n),
		Embeds: []discordEmbed{{
			Title:     n.MonitorName,
			URL:       n.URL,
			Color:     statusColor(n.Current),
			Timestamp: n.At.UTC().Format(time.RFC3339),
		}},
	}
	return postJSON(ctx, d.client, d.name, d.url, n.ID, nil, payload)
}

func statusColor(s domain.MonitorStatus) int {
	switch s {
	case domain.MonitorStatusUp:
		return 0x2ecc71
	case domain.MonitorStatusDegraded:
		return 0xf1c40f
	case domain.MonitorStatusDown:
		return 0xe74c3c
	default:
		return 0x95a5a6
	}
}
