package notify

import (
	"context"
	"fmt"
	"net/http"

	"github.com/openstatushq/pulse/internal/core/domain"
)

// Slack posts to a Slack incoming webhook.
type Slack struct {
	name   string
	url    string
	client *http.Client
}

type slackPayload struct {
	Text   string       `json:"text"`
	Blocks []slackBlock `json:"blocks,omitempty"`
}

type slackBlock struct {
	Type string     `json:"type"`
	Text *slackText `json:"text,omitempty"`
}

type slackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func NewSlack(name, url string, client *http.Client) *Slack {
	if client == nil {
		client = DefaultHTTPClient()
	}
	return &Slack{name: name, url: url, client: client}
}

func (s *Slack) Name() string { return s.name }

func (s *Slack) Notify(ctx context.Context, n *domain.Notification) error {
	text := summary(n)
	payload := slackPayload{
		Text: text,
		Blocks: []slackBlock{{
			Type: "section",
			Text: &slackText{
				Type: "mrkdwn",
				Text: fmt.Sprintf("%s *%s*\n%s\n<%s>", statusEmoji(n.Current), n.MonitorName, text, n.URL),
			},
		}},
	}
	return postJSON(ctx, s.client, s.name, s.url, n.ID, nil, payload)
}

func statusEmoji(s domain.MonitorStatus) string {
	switch s {
	case domain.MonitorStatusUp:
		return ":white_check_mark:"
	case domain.MonitorStatusDegraded:
		return ":warning:"
	case domain.MonitorStatusDown:
		return ":red_circle:"
	default:
		return ":grey_question:"
	}
}
