package domain

// ReportRow is one keyword that survived enrichment filtering: it has a
// cluster with a positive product count and a positive monthly search
// frequency.
type ReportRow struct {
	Term             string `json:"term"`
	ProductCount     int    `json:"product_count"`
	MonthlyFrequency int    `json:"monthly_frequency"`
}
