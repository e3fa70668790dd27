package entities

import "time"

// RankedCount is one entry of a top-N list.
type RankedCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// AnalyticsReport holds windowed visitor statistics.
type AnalyticsReport struct {
	StartTime         time.Time     `json:"start_time"`
	EndTime           time.Time     `json:"end_time"`
	TotalVisitors     int           `json:"total_visitors"`
	NewVisitors       int           `json:"new_visitors"`
	ReturningVisitors int           `json:"returning_visitors"`
	TotalPageViews    int           `json:"total_page_views"`
	AvgTimeOnSite     float64       `json:"avg_time_on_site"`
	FormSubmissions   int           `json:"form_submissions"`
	LeadsGenerated    int           `json:"leads_generated"`
	TopPages          []RankedCount `json:"top_pages"`
	TopCountries      []RankedCount `json:"top_countries"`
	TopDevices        []RankedCount `json:"top_devices"`
	GeneratedAt       time.Time     `json:"generated_at"`
}
