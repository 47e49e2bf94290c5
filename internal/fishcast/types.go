package fishcast

// Analysis is the outcome of a spot analysis.
type Analysis struct {
	Recommendation string
	Provider       string
	Filename       string
}

type analyzeResponse struct {
	Success        bool   `json:"success"`
	Recommendation string `json:"recommendation"`
	Provider       string `json:"provider"`
	Filename       string `json:"filename"`
	Error          string `json:"error"`
	Detail         string `json:"detail"`
}

// UsageWindow is one rate-limit window as reported by /usage-stats.
type UsageWindow struct {
	Used       int     `json:"used"`
	Limit      int     `json:"limit"`
	Remaining  int     `json:"remaining"`
	Percentage float64 `json:"percentage"`
}

// UsageStats mirrors the usage object of /usage-stats. Daily is the window
// shown to users; Minute is the server's burst limit.
type UsageStats struct {
	Daily  UsageWindow `json:"daily"`
	Minute UsageWindow `json:"minute"`
}

type usageStatsResponse struct {
	Success bool       `json:"success"`
	Usage   UsageStats `json:"usage"`
	Error   string     `json:"error"`
}

// CatchEntry is a logged catch. Date and Time stay split string fields to
// match the wire format.
type CatchEntry struct {
	Species  string `json:"species"`
	Bait     string `json:"bait"`
	Location string `json:"location"`
	Date     string `json:"date"`
	Time     string `json:"time"`
	Notes    string `json:"notes"`
}

type ForecastRequest struct {
	Location  string   `json:"location"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

type ForecastReport struct {
	Location       string `json:"location"`
	Conditions     string `json:"conditions"`
	Recommendation string `json:"recommendation"`
	BestTimes      string `json:"best_times"`
}

type HealthStatus struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}
