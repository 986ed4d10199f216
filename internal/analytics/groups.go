package analytics

import (
	"sort"

	"udisecli/internal/dataset"
	"udisecli/pkg/contracts/domain"
)

// topDistrictLimit caps the district ranking.
const topDistrictLimit = 10

// BuildAggregates computes every grouped statistic over the view. Rows with
// a missing grouping cell never form a group, and groups with no rows are
// absent from the output rather than reported as zero.
func BuildAggregates(view *dataset.View, reg *dataset.Registry) domain.Aggregates {
	ranked, rowsByDistrict := rankDistricts(view)

	return domain.Aggregates{
		TopDistricts:     ranked,
		DistrictFlags:    districtFlagBreakdown(view, reg, ranked, rowsByDistrict),
		BuildingStatus:   countByValue(view, colBuildingStatus),
		RampsCWSN:        rampsCrossCWSN(view, reg),
		ProjectorsByType: meanByGroup(view, colSchoolType, colProjectors),
		InternetLibrary:  internetLibraryPairs(view),
		InfraHistogram:   scoreHistogram(view),
	}
}

// rankDistricts orders districts by mean infra score, best first, ties held
// in first-appearance order, and keeps the top ten. Districts without a
// single known score are dropped. The per-district row lists are returned
// for the flag breakdown so the view is walked once.
func rankDistricts(view *dataset.View) ([]domain.DistrictInfra, map[string][]int) {
	t := view.Table()
	district, okDistrict := t.Lookup(colDistrict)
	score, okScore := t.Lookup(colInfraScore)

	empty := make([]domain.DistrictInfra, 0)
	if !okDistrict || !okScore {
		return empty, nil
	}

	type agg struct {
		name string
		sum  float64
		n    int
	}
	var order []*agg
	index := make(map[string]*agg)
	rows := make(map[string][]int)

	for i := 0; i < view.Len(); i++ {
		row := view.Row(i)
		if district.IsMissing(row) {
			continue
		}
		name := district.String(row)
		a, seen := index[name]
		if !seen {
			a = &agg{name: name}
			index[name] = a
			order = append(order, a)
		}
		rows[name] = append(rows[name], row)
		if v, ok := score.Float(row); ok {
			a.sum += v
			a.n++
		}
	}

	ranked := make([]*agg, 0, len(order))
	for _, a := range order {
		if a.n > 0 {
			ranked = append(ranked, a)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].sum/float64(ranked[i].n) > ranked[j].sum/float64(ranked[j].n)
	})
	if len(ranked) > topDistrictLimit {
		ranked = ranked[:topDistrictLimit]
	}

	out := make([]domain.DistrictInfra, 0, len(ranked))
	for _, a := range ranked {
		out = append(out, domain.DistrictInfra{
			District:  a.name,
			MeanScore: domain.Num(round1(a.sum / float64(a.n))),
			Schools:   a.n,
		})
	}
	return out, rows
}

// districtFlagBreakdown reports the facility flag shares inside each ranked
// district, in ranking order.
func districtFlagBreakdown(view *dataset.View, reg *dataset.Registry, ranked []domain.DistrictInfra, rowsByDistrict map[string][]int) []domain.DistrictFlags {
	out := make([]domain.DistrictFlags, 0, len(ranked))
	t := view.Table()

	for _, d := range ranked {
		rows := rowsByDistrict[d.District]
		entry := domain.DistrictFlags{
			District: d.District,
			Flags:    make([]domain.FlagShare, 0, 4),
		}
		for _, rc := range reg.KPIFlags() {
			share := domain.FlagShare{Column: rc.Name, Label: rc.Label, Pct: domain.NoData}
			if col, ok := t.Lookup(rc.Name); ok && len(rows) > 0 {
				hits := 0
				for _, row := range rows {
					if v, has := col.Float(row); has && v == *rc.PositiveCode {
						hits++
					}
				}
				share.Pct = domain.Num(round1(100 * float64(hits) / float64(len(rows))))
			}
			entry.Flags = append(entry.Flags, share)
		}
		out = append(out, entry)
	}
	return out
}

// countByValue counts view rows per distinct value of a text column, most
// frequent first, ties in first-appearance order.
func countByValue(view *dataset.View, column string) []domain.CategoryCount {
	out := make([]domain.CategoryCount, 0)
	col, ok := view.Table().Lookup(column)
	if !ok {
		return out
	}

	counts := make(map[string]int)
	var order []string
	for i := 0; i < view.Len(); i++ {
		row := view.Row(i)
		if col.IsMissing(row) {
			continue
		}
		v := col.String(row)
		if _, seen := counts[v]; !seen {
			order = append(order, v)
		}
		counts[v]++
	}

	for _, v := range order {
		out = append(out, domain.CategoryCount{Value: v, Count: counts[v]})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out
}

// rampsCrossCWSN cross-counts the ramp availability code against computed
// CWSN readiness. Only observed combinations appear, ordered by ramp code
// then readiness.
func rampsCrossCWSN(view *dataset.View, reg *dataset.Registry) []domain.ContingencyCell {
	out := make([]domain.ContingencyCell, 0)
	t := view.Table()
	ramps, okRamps := t.Lookup(colRamps)
	ready, okReady := t.Lookup(colCWSNReady)
	if !okRamps || !okReady {
		return out
	}

	type key struct {
		code  float64
		ready bool
	}
	counts := make(map[key]int)
	for i := 0; i < view.Len(); i++ {
		row := view.Row(i)
		code, ok := ramps.Float(row)
		if !ok {
			continue
		}
		r, ok := ready.Float(row)
		if !ok {
			continue
		}
		counts[key{code, r == 1}]++
	}

	keys := make([]key, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].code != keys[j].code {
			return keys[i].code < keys[j].code
		}
		return !keys[i].ready && keys[j].ready
	})

	var label func(float64) string
	if rc, ok := reg.Lookup(colRamps); ok {
		label = rc.CodeLabel
	} else {
		label = dataset.FormatFloat
	}
	for _, k := range keys {
		out = append(out, domain.ContingencyCell{
			RampsCode:  k.code,
			RampsLabel: label(k.code),
			CWSNReady:  k.ready,
			Count:      counts[k],
		})
	}
	return out
}

// meanByGroup averages a numeric column per distinct value of a text
// column, groups in value order. Groups without a single known cell are
// absent.
func meanByGroup(view *dataset.View, groupCol, valueCol string) []domain.TypeMean {
	out := make([]domain.TypeMean, 0)
	t := view.Table()
	group, okGroup := t.Lookup(groupCol)
	value, okValue := t.Lookup(valueCol)
	if !okGroup || !okValue {
		return out
	}

	type agg struct {
		sum float64
		n   int
	}
	aggs := make(map[string]*agg)
	for i := 0; i < view.Len(); i++ {
		row := view.Row(i)
		if group.IsMissing(row) {
			continue
		}
		v, ok := value.Float(row)
		if !ok {
			continue
		}
		name := group.String(row)
		a := aggs[name]
		if a == nil {
			a = &agg{}
			aggs[name] = a
		}
		a.sum += v
		a.n++
	}

	names := make([]string, 0, len(aggs))
	for name := range aggs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		a := aggs[name]
		out = append(out, domain.TypeMean{
			Group:   name,
			Mean:    domain.Num(round1(a.sum / float64(a.n))),
			Schools: a.n,
		})
	}
	return out
}

// internetLibraryPairs cross-counts the internet code against the library
// code, pairs ordered by internet then library code.
func internetLibraryPairs(view *dataset.View) []domain.PairCount {
	out := make([]domain.PairCount, 0)
	t := view.Table()
	internet, okNet := t.Lookup(colInternet)
	library, okLib := t.Lookup(colLibrary)
	if !okNet || !okLib {
		return out
	}

	type key struct{ net, lib float64 }
	counts := make(map[key]int)
	for i := 0; i < view.Len(); i++ {
		row := view.Row(i)
		n, ok := internet.Float(row)
		if !ok {
			continue
		}
		l, ok := library.Float(row)
		if !ok {
			continue
		}
		counts[key{n, l}]++
	}

	keys := make([]key, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].net != keys[j].net {
			return keys[i].net < keys[j].net
		}
		return keys[i].lib < keys[j].lib
	})
	for _, k := range keys {
		out = append(out, domain.PairCount{InternetCode: k.net, LibraryCode: k.lib, Count: counts[k]})
	}
	return out
}

// scoreHistogram counts schools per whole infra score. Scores are whole by
// construction; empty buckets are absent like every other zero-row group.
func scoreHistogram(view *dataset.View) []domain.ScoreBucket {
	out := make([]domain.ScoreBucket, 0)
	col, ok := view.Table().Lookup(colInfraScore)
	if !ok {
		return out
	}

	counts := make(map[int]int)
	for i := 0; i < view.Len(); i++ {
		if v, has := col.Float(view.Row(i)); has {
			counts[int(v)]++
		}
	}

	scores := make([]int, 0, len(counts))
	for s := range counts {
		scores = append(scores, s)
	}
	sort.Ints(scores)
	for _, s := range scores {
		out = append(out, domain.ScoreBucket{Score: s, Count: counts[s]})
	}
	return out
}
