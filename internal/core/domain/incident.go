package domain

import "time"

// Incident spans the time a monitor was down.
type Incident struct {
	ID         string
	MonitorID  string
	Cause      string
	StartedAt  time.Time
	ResolvedAt *time.Time
}

// Open reports whether the incident is still ongoing.
func (i *Incident) Open() bool {
	return i.ResolvedAt == nil
}
