package notify

import (
	"context"
	"net/http"

	"github.com/openstatushq/pulse/internal/core/domain"
)

// Webhook posts the notification as JSON to an arbitrary endpoint.
type Webhook struct {
	name    string
	url     string
	headers map[string]string
	client  *http.Client
}

// NewWebhook creates a webhook notifier. A nil client uses DefaultHTTPClient.
func NewWebhook(name, url string, headers map[string]string, client *http.Client) *Webhook {
	if client == nil {
		client = DefaultHTTPClient()
	}
	return &Webhook{name: name, url: url, headers: headers, client: client}
}

func (w *Webhook) Name() string { return w.name }

func (w *Webhook) Notify(ctx context.Context, n *domain.Notification) error {
	return postJSON(ctx, w.client, w.name, w.url, n.ID, w.headers, n)
}
