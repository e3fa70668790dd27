package entities

import (
	"strings"
	"time"
)

// VisitorType is the identity classification of a visitor. It only moves forward.
type VisitorType string

const (
	VisitorTypeAnonymous  VisitorType = "ANONYMOUS"
	VisitorTypeIdentified VisitorType = "IDENTIFIED"
	VisitorTypeLead       VisitorType = "LEAD"
)

func (t VisitorType) rank() int {
	switch t {
	case VisitorTypeIdentified:
		return 1
	case VisitorTypeLead:
		return 2
	default:
		return 0
	}
}

// Valid reports whether t is a known classification.
func (t VisitorType) Valid() bool {
	switch t {
	case VisitorTypeAnonymous, VisitorTypeIdentified, VisitorTypeLead:
		return true
	}
	return false
}

// Escalate returns the higher of t and to.
func (t VisitorType) Escalate(to VisitorType) VisitorType {
	if to.rank() > t.rank() {
		return to
	}
	return t
}

// VisitorStatus represents the engagement status of a visitor
type VisitorStatus string

const (
	VisitorStatusActive    VisitorStatus = "ACTIVE"
	VisitorStatusIdle      VisitorStatus = "IDLE"
	VisitorStatusLeft      VisitorStatus = "LEFT"
	VisitorStatusConverted VisitorStatus = "CONVERTED"
)

// Valid reports whether s is a known status.
func (s VisitorStatus) Valid() bool {
	switch s {
	case VisitorStatusActive, VisitorStatusIdle, VisitorStatusLeft, VisitorStatusConverted:
		return true
	}
	return false
}

// ContactFields are the identity signals a visitor supplies incrementally.
type ContactFields struct {
	Email    string `json:"email,omitempty"`
	Name     string `json:"name,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Company  string `json:"company,omitempty"`
	Position string `json:"position,omitempty"`
}

// IsEmpty reports whether no contact field is set.
func (c ContactFields) IsEmpty() bool {
	return c.Email == "" && c.Name == "" && c.Phone == "" && c.Company == "" && c.Position == ""
}

// Attribution captures where a visitor came from. Set on first sight only.
type Attribution struct {
	Referrer    string `json:"referrer,omitempty"`
	UTMSource   string `json:"utm_source,omitempty"`
	UTMMedium   string `json:"utm_medium,omitempty"`
	UTMCampaign string `json:"utm_campaign,omitempty"`
	UTMTerm     string `json:"utm_term,omitempty"`
	UTMContent  string `json:"utm_content,omitempty"`
}

// Visitor is the durable identity of one browser, keyed by the client-generated VisitorID.
type Visitor struct {
	ID        string        `json:"id" db:"id"`
	VisitorID string        `json:"visitor_id" db:"visitor_id"`
	Type      VisitorType   `json:"type" db:"visitor_type"`
	Status    VisitorStatus `json:"status" db:"status"`

	ContactFields

	IPAddress        string `json:"ip_address,omitempty" db:"ip_address"`
	Country          string `json:"country,omitempty" db:"country"`
	City             string `json:"city,omitempty" db:"city"`
	Region           string `json:"region,omitempty" db:"region"`
	Timezone         string `json:"timezone,omitempty" db:"timezone"`
	Device           string `json:"device,omitempty" db:"device"`
	OS               string `json:"os,omitempty" db:"os"`
	Browser          string `json:"browser,omitempty" db:"browser"`
	BrowserVersion   string `json:"browser_version,omitempty" db:"browser_version"`
	ScreenResolution string `json:"screen_resolution,omitempty" db:"screen_resolution"`

	Attribution

	TotalVisits    int      `json:"total_visits" db:"total_visits"`
	TotalPageViews int      `json:"total_page_views" db:"total_page_views"`
	LeadScore      int      `json:"lead_score" db:"lead_score"`
	PagesVisited   []string `json:"pages_visited" db:"pages_visited"`

	FirstVisit time.Time `json:"first_visit" db:"first_visit"`
	LastVisit  time.Time `json:"last_visit" db:"last_visit"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}

// MergeContact copies every non-empty field of c onto the visitor. Known values are never erased.
func (v *Visitor) MergeContact(c ContactFields) {
	if c.Email != "" {
		v.Email = strings.ToLower(c.Email)
	}
	if c.Name != "" {
		v.Name = c.Name
	}
	if c.Phone != "" {
		v.Phone = c.Phone
	}
	if c.Company != "" {
		v.Company = c.Company
	}
	if c.Position != "" {
		v.Position = c.Position
	}
}

// SeedAttribution sets attribution only when the visitor has none yet.
func (v *Visitor) SeedAttribution(a Attribution) {
	if v.Attribution != (Attribution{}) {
		return
	}
	v.Attribution = a
}

// ApplyEnrichment sets every enrichment fact. Used on first sight.
func (v *Visitor) ApplyEnrichment(f EnrichmentFacts) {
	v.Country = f.Country
	v.City = f.City
	v.Region = f.Region
	v.Timezone = f.Timezone
	v.Device = f.Device
	v.OS = f.OS
	v.Browser = f.Browser
	v.BrowserVersion = f.BrowserVersion
}

// RefreshEnrichment updates the facts that legitimately change between visits
// (device and browser) and fills geo facts that were previously unknown.
func (v *Visitor) RefreshEnrichment(f EnrichmentFacts) {
	setIfPresent(&v.Device, f.Device)
	setIfPresent(&v.OS, f.OS)
	setIfPresent(&v.Browser, f.Browser)
	setIfPresent(&v.BrowserVersion, f.BrowserVersion)

	fillIfEmpty(&v.Country, f.Country)
	fillIfEmpty(&v.City, f.City)
	fillIfEmpty(&v.Region, f.Region)
	fillIfEmpty(&v.Timezone, f.Timezone)
}

// AppendPage records a visited page.
func (v *Visitor) AppendPage(page string) {
	if page == "" {
		return
	}
	v.PagesVisited = append(v.PagesVisited, page)
}

// PromoteToLead escalates the visitor to LEAD and adds points to the lead score.
// Every call adds points; there is no cap.
func (v *Visitor) PromoteToLead(points int) {
	v.Type = v.Type.Escalate(VisitorTypeLead)
	v.Status = VisitorStatusConverted
	v.LeadScore += points
}

func setIfPresent(dst *string, value string) {
	if value != "" {
		*dst = value
	}
}

func fillIfEmpty(dst *string, value string) {
	if *dst == "" && value != "" {
		*dst = value
	}
}
