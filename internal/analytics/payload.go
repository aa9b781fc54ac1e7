package analytics

// Payload is the dashboard document served by the boundary API and produced by Rollup.
type Payload struct {
	Stats             Stats        `json:"stats"`
	StageCounts       []StageCount `json:"stage_counts"`
	ContactsBreakdown *Breakdown   `json:"contacts_breakdown"`
	SDR               SDR          `json:"sdr"`
	Vendors           Vendors      `json:"vendors"`
}

type Stats struct {
	AvgDurationSeconds float64 `json:"avg_duration_seconds"`
	AvgHandoffSeconds  float64 `json:"avg_handoff_seconds"`
}

type StageCount struct {
	StageName string `json:"stage_name"`
	Total     int    `json:"total"`
}

// Breakdown keeps pointers so absent or null figures can fall back to derived values.
type Breakdown struct {
	Total     *float64     `json:"total"`
	Active    *float64     `json:"active"`
	Pending   *float64     `json:"pending"`
	Finalized *float64     `json:"finalized"`
	Other     *float64     `json:"other"`
	Stages    []StageCount `json:"stages"`
}

type SDR struct {
	Summary          Summary            `json:"summary"`
	Daily            []DailyPoint       `json:"daily"`
	TransferredDaily []TransferredPoint `json:"transferred_daily"`
}

type Summary struct {
	Contacts    int `json:"contacts"`
	Tracking    int `json:"tracking"`
	Sac         int `json:"sac"`
	Waiting     int `json:"waiting"`
	Sales       int `json:"sales"`
	Transferred int `json:"transferred"`
	Dead        int `json:"dead"`
}

type DailyPoint struct {
	Day         string `json:"day"`
	Contacts    int    `json:"contacts"`
	Waiting     int    `json:"waiting"`
	Sales       int    `json:"sales"`
	Sac         int    `json:"sac"`
	Tracking    int    `json:"tracking"`
	Dead        int    `json:"dead"`
	Transferred int    `json:"transferred"`
}

type TransferredPoint struct {
	Day         string `json:"day"`
	Transferred int    `json:"transferred"`
}

type Vendors struct {
	Summary []VendorSummary         `json:"summary"`
	Scores  map[string][]ScoreCount `json:"scores"`
}

type VendorSummary struct {
	Vendedor             string  `json:"vendedor"`
	ContactsReceived     int     `json:"contacts_received"`
	BudgetsCount         int     `json:"budgets_count"`
	BudgetsDetectedCount int     `json:"budgets_detected_count"`
	BudgetsSum           float64 `json:"budgets_sum"`
	BudgetsSumDetected   float64 `json:"budgets_sum_detected"`
	DeadContacts         int     `json:"dead_contacts"`
	AvgDurationSeconds   float64 `json:"avg_duration_seconds"`
	AvgHandoffSeconds    float64 `json:"avg_handoff_seconds"`
	AvgScore             float64 `json:"avg_score"`
}

type ScoreCount struct {
	Score string `json:"score"`
	Total int    `json:"total"`
}

func floatPtr(v float64) *float64 {
	return &v
}
