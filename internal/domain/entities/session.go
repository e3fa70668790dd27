package entities

import "time"

// VisitorSession is a bounded interaction window keyed by the client-generated SessionID.
type VisitorSession struct {
	ID        string     `json:"id" db:"id"`
	SessionID string     `json:"session_id" db:"session_id"`
	VisitorID string     `json:"visitor_id" db:"visitor_id"`
	EntryPage string     `json:"entry_page" db:"entry_page"`
	ExitPage  string     `json:"exit_page,omitempty" db:"exit_page"`
	StartTime time.Time  `json:"start_time" db:"start_time"`
	EndTime   *time.Time `json:"end_time,omitempty" db:"end_time"`
	// Duration is in whole seconds and only set once the session has an end time.
	Duration  *int      `json:"duration,omitempty" db:"duration"`
	PageViews int       `json:"page_views" db:"page_views"`
	IsActive  bool      `json:"is_active" db:"is_active"`
	Device    string    `json:"device,omitempty" db:"device"`
	Browser   string    `json:"browser,omitempty" db:"browser"`
	OS        string    `json:"os,omitempty" db:"os"`
	IPAddress string    `json:"ip_address,omitempty" db:"ip_address"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Close records endTime and recomputes the duration from StartTime.
// The stored end time never moves backward and the duration is never negative.
func (s *VisitorSession) Close(endTime time.Time) {
	if s.EndTime == nil || endTime.After(*s.EndTime) {
		end := endTime
		s.EndTime = &end
	}

	seconds := int(s.EndTime.Sub(s.StartTime) / time.Second)
	if seconds < 0 {
		seconds = 0
	}
	s.Duration = &seconds
}

// IsClosed reports whether the session has an end time.
func (s *VisitorSession) IsClosed() bool {
	return s.EndTime != nil
}
