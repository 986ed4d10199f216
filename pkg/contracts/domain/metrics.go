package domain

import "encoding/json"

// Metric is a nullable scalar statistic. An empty filtered view yields
// Valid=false, which serializes as JSON null; clients must not receive a
// fabricated zero for "no data".
type Metric struct {
	Value float64
	Valid bool
}

// Num returns a valid metric.
func Num(v float64) Metric { return Metric{Value: v, Valid: true} }

// NoData is the sentinel metric for empty or all-missing inputs.
var NoData = Metric{}

// MarshalJSON renders the value, or null when no data backs it.
func (m Metric) MarshalJSON() ([]byte, error) {
	if !m.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(m.Value)
}

// UnmarshalJSON accepts a number or null.
func (m *Metric) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*m = Metric{}
		return nil
	}
	if err := json.Unmarshal(data, &m.Value); err != nil {
		return err
	}
	m.Valid = true
	return nil
}

// FlagShare is the percentage of view rows where a facility flag equals its
// positive code, on a 0-100 scale rounded to one decimal.
type FlagShare struct {
	Column string `json:"column"`
	Label  string `json:"label"`
	Pct    Metric `json:"pct"`
}

// KPIReport is the scalar headline block of a query result.
type KPIReport struct {
	TotalSchools  int         `json:"total_schools"`
	Flags         []FlagShare `json:"flags"`
	AvgClassrooms Metric      `json:"avg_classrooms"`
}

// DistrictInfra is one row of the top-districts ranking: mean infra score
// over schools with a known score, descending, stable on first appearance.
type DistrictInfra struct {
	District  string  `json:"district"`
	MeanScore Metric  `json:"mean_infra_score"`
	Schools   int     `json:"schools"`
}

// DistrictFlags carries per-district facility shares for the ranked
// districts, in ranking order.
type DistrictFlags struct {
	District string      `json:"district"`
	Flags    []FlagShare `json:"flags"`
}

// CategoryCount is a single grouped count (building status and similar
// one-dimensional groupings). Groups with zero rows are never emitted.
type CategoryCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// ContingencyCell is one observed combination in the ramps × CWSN-ready
// cross count.
type ContingencyCell struct {
	RampsCode  float64 `json:"ramps_code"`
	RampsLabel string  `json:"ramps_label"`
	CWSNReady  bool    `json:"cwsn_ready"`
	Count      int     `json:"count"`
}

// TypeMean is a per-group mean over non-missing cells (projectors per
// school type).
type TypeMean struct {
	Group   string `json:"group"`
	Mean    Metric `json:"mean"`
	Schools int    `json:"schools"`
}

// PairCount is one cell of the internet × library cross count, keyed by the
// raw facility codes.
type PairCount struct {
	InternetCode float64 `json:"internet_code"`
	LibraryCode  float64 `json:"library_code"`
	Count        int     `json:"count"`
}

// ScoreBucket is one bar of the infra-score distribution. Empty buckets are
// absent, like every other zero-row group.
type ScoreBucket struct {
	Score int `json:"score"`
	Count int `json:"count"`
}

// Aggregates bundles every grouped computation over the filtered view.
// Slices are always non-nil so an empty view serializes as [] rather
// than null.
type Aggregates struct {
	TopDistricts     []DistrictInfra   `json:"top_districts"`
	DistrictFlags    []DistrictFlags   `json:"district_flags"`
	BuildingStatus   []CategoryCount   `json:"building_status"`
	RampsCWSN        []ContingencyCell `json:"ramps_cwsn"`
	ProjectorsByType []TypeMean        `json:"projectors_by_type"`
	InternetLibrary  []PairCount       `json:"internet_library"`
	InfraHistogram   []ScoreBucket     `json:"infra_histogram"`
}

// Preview is a bounded head of the filtered view for tabular display.
type Preview struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
	Total   int        `json:"total"`
}

// QueryResult is the full response to a filter query.
type QueryResult struct {
	Rows       int         `json:"rows"`
	KPIs       KPIReport   `json:"kpis"`
	Aggregates Aggregates  `json:"aggregates"`
	Preview    *Preview    `json:"preview,omitempty"`
	Skipped    []string    `json:"skipped_predicates,omitempty"`
}
