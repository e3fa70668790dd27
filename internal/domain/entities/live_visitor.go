package entities

import "time"

const (
	// LiveWindow is how recently a visitor must have sent a heartbeat to be listed as live.
	LiveWindow = 5 * time.Minute
	// IdleAfter is the inactivity after which the reaper marks a live record inactive.
	IdleAfter = 10 * time.Minute
	// ExpireAfter is the inactivity after which the reaper deletes a live record.
	ExpireAfter = 24 * time.Hour
)

// LiveVisitor is ephemeral heartbeat-driven presence, separate from the durable Visitor.
type LiveVisitor struct {
	VisitorID      string    `json:"visitor_id"`
	CurrentPage    string    `json:"current_page"`
	PageTitle      string    `json:"page_title,omitempty"`
	IsActive       bool      `json:"is_active"`
	LastActivityAt time.Time `json:"last_activity_at"`
	TimeOnSite     int       `json:"time_on_site"`
	PageViews      int       `json:"page_views"`
	Email          string    `json:"email,omitempty"`
	Name           string    `json:"name,omitempty"`
	IPAddress      string    `json:"ip_address,omitempty"`
	Country        string    `json:"country,omitempty"`
	City           string    `json:"city,omitempty"`
	Device         string    `json:"device,omitempty"`
	Browser        string    `json:"browser,omitempty"`
	OS             string    `json:"os,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// PresenceState classifies a last-activity timestamp against the presence thresholds.
type PresenceState struct {
	// Live is true while the visitor belongs in the live listing.
	Live bool
	// Active is false once the reaper should mark the record inactive.
	Active bool
	// Expired is true once the reaper should delete the record.
	Expired bool
}

// EvaluatePresence is the single source of truth for what live, idle and expired mean.
func EvaluatePresence(lastActivityAt, now time.Time) PresenceState {
	elapsed := now.Sub(lastActivityAt)
	return PresenceState{
		Live:    elapsed < LiveWindow,
		Active:  elapsed < IdleAfter,
		Expired: elapsed >= ExpireAfter,
	}
}

// Touch moves LastActivityAt to now, keeping it strictly increasing.
func (lv *LiveVisitor) Touch(now time.Time) {
	if !now.After(lv.LastActivityAt) {
		now = lv.LastActivityAt.Add(time.Millisecond)
	}
	lv.LastActivityAt = now
}
