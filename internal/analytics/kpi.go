// Package analytics computes the headline KPIs and grouped aggregates of a
// filtered dataset view. Every statistic is computed over the view it is
// given; callers that want whole-dataset numbers pass the identity view.
package analytics

import (
	"math"

	"udisecli/internal/dataset"
	"udisecli/pkg/contracts/domain"
)

// Column names the aggregations read. They match the column registry; a
// view lacking one of them degrades to no-data rather than failing.
const (
	colDistrict       = "district"
	colBuildingStatus = "building_status"
	colSchoolType     = "school_type"
	colInternet       = "internet"
	colLibrary        = "library_availability"
	colRamps          = "availability_ramps"
	colProjectors     = "total_projectors"
	colClassrooms     = "total_class_rooms"
	colInfraScore     = "infra_score"
	colCWSNReady      = "cwsn_ready"
)

// BuildKPIs computes the scalar headline block for a view. Flag shares use
// the full view size as their denominator, so schools with a missing flag
// count against the percentage. Means skip missing cells. An empty view
// yields no-data metrics, never zeros.
func BuildKPIs(view *dataset.View, reg *dataset.Registry) domain.KPIReport {
	report := domain.KPIReport{
		TotalSchools: view.Len(),
		Flags:        make([]domain.FlagShare, 0, 4),
	}

	t := view.Table()
	for _, rc := range reg.KPIFlags() {
		share := domain.FlagShare{Column: rc.Name, Label: rc.Label, Pct: domain.NoData}
		if col, ok := t.Lookup(rc.Name); ok && view.Len() > 0 {
			share.Pct = domain.Num(positiveShare(view, col, *rc.PositiveCode))
		}
		report.Flags = append(report.Flags, share)
	}

	report.AvgClassrooms = meanOf(view, colClassrooms)
	return report
}

// positiveShare is the percentage of view rows whose cell equals the
// positive code, on a 0-100 scale rounded to one decimal.
func positiveShare(view *dataset.View, col *dataset.Column, positive float64) float64 {
	hits := 0
	for i := 0; i < view.Len(); i++ {
		if v, ok := col.Float(view.Row(i)); ok && v == positive {
			hits++
		}
	}
	return round1(100 * float64(hits) / float64(view.Len()))
}

// meanOf averages the non-missing cells of a column over the view.
func meanOf(view *dataset.View, column string) domain.Metric {
	col, ok := view.Table().Lookup(column)
	if !ok {
		return domain.NoData
	}
	sum, n := 0.0, 0
	for i := 0; i < view.Len(); i++ {
		if v, has := col.Float(view.Row(i)); has {
			sum += v
			n++
		}
	}
	if n == 0 {
		return domain.NoData
	}
	return domain.Num(round1(sum / float64(n)))
}

// round1 rounds to one decimal, halves away from zero.
func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
