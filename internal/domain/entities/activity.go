package entities

import (
	"strings"
	"time"
)

// PageView is an immutable page load record.
type PageView struct {
	ID          string    `json:"id" db:"id"`
	VisitorID   string    `json:"visitor_id" db:"visitor_id"`
	URL         string    `json:"url" db:"url"`
	Path        string    `json:"path" db:"path"`
	Title       string    `json:"title,omitempty" db:"title"`
	Referrer    string    `json:"referrer,omitempty" db:"referrer"`
	TimeOnPage  *int      `json:"time_on_page,omitempty" db:"time_on_page"`
	ScrollDepth *int      `json:"scroll_depth,omitempty" db:"scroll_depth"`
	Clicks      int       `json:"clicks" db:"clicks"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// VisitorEvent is an immutable behavioral event (click, download, video play, ...).
type VisitorEvent struct {
	ID            string    `json:"id" db:"id"`
	VisitorID     string    `json:"visitor_id" db:"visitor_id"`
	EventType     string    `json:"event_type" db:"event_type"`
	EventCategory string    `json:"event_category,omitempty" db:"event_category"`
	EventLabel    string    `json:"event_label,omitempty" db:"event_label"`
	EventValue    *float64  `json:"event_value,omitempty" db:"event_value"`
	Page          string    `json:"page" db:"page"`
	Element       string    `json:"element,omitempty" db:"element"`
	Metadata      JSONMap   `json:"metadata,omitempty" db:"metadata"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// FormSubmission is an immutable form post. A submission carrying an email converts its visitor to a lead.
type FormSubmission struct {
	ID           string    `json:"id" db:"id"`
	VisitorID    string    `json:"visitor_id" db:"visitor_id"`
	FormType     string    `json:"form_type" db:"form_type"`
	FormName     string    `json:"form_name,omitempty" db:"form_name"`
	Page         string    `json:"page" db:"page"`
	Email        string    `json:"email,omitempty" db:"email"`
	Name         string    `json:"name,omitempty" db:"name"`
	Phone        string    `json:"phone,omitempty" db:"phone"`
	Company      string    `json:"company,omitempty" db:"company"`
	Message      string    `json:"message,omitempty" db:"message"`
	CustomFields JSONMap   `json:"custom_fields,omitempty" db:"custom_fields"`
	IsProcessed  bool      `json:"is_processed" db:"is_processed"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// Contact returns the trimmed contact fields carried by the submission.
func (f *FormSubmission) Contact() ContactFields {
	return ContactFields{
		Email:   strings.TrimSpace(f.Email),
		Name:    strings.TrimSpace(f.Name),
		Phone:   strings.TrimSpace(f.Phone),
		Company: strings.TrimSpace(f.Company),
	}
}

// IsLead reports whether the submission qualifies its visitor as a lead.
// A blank email does not.
func (f *FormSubmission) IsLead() bool {
	return strings.TrimSpace(f.Email) != ""
}
