package entities

// EnrichmentFacts are the geo and device facts derived from an IP address and user agent.
// Any field may be empty when the input cannot be resolved.
type EnrichmentFacts struct {
	Country        string `json:"country,omitempty"`
	City           string `json:"city,omitempty"`
	Region         string `json:"region,omitempty"`
	Timezone       string `json:"timezone,omitempty"`
	Device         string `json:"device,omitempty"`
	OS             string `json:"os,omitempty"`
	Browser        string `json:"browser,omitempty"`
	BrowserVersion string `json:"browser_version,omitempty"`
}
