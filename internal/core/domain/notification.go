package domain

import "time"

// Notification announces a monitor status change.
type Notification struct {
	ID          string        `json:"id"`
	MonitorID   string        `json:"monitor_id"`
	MonitorName string        `json:"monitor_name"`
	URL         string        `json:"url"`
	Previous    MonitorStatus `json:"previous"`
	Current     MonitorStatus `json:"current"`
	Message     string        `json:"message"`
	At          time.Time     `json:"at"`
}
