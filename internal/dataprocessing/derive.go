package dataprocessing

import (
	"fmt"

	"udisecli/internal/dataset"
	"udisecli/pkg/contracts/domain"
)

// Derived column names.
const (
	ColInfraScore  = "infra_score"
	ColToiletRatio = "toilet_functionality_ratio"
	ColCWSNReady   = "cwsn_ready"
)

// infraScoreInputs are the facility flags that feed the infrastructure
// score, one point per flag coded 1 (Yes). Codes 2 (No) and 3 (present but
// not functional) score nothing.
var infraScoreInputs = []string{
	"electricity_availability",
	"internet",
	"library_availability",
	"playground_available",
}

// Input columns of the other derived fields.
const (
	colBoysFuncToilet  = "total_boys_func_toilet"
	colGirlsFuncToilet = "total_girls_func_toilet"
	colBoysToilet      = "total_boys_toilet"
	colGirlsToilet     = "total_girls_toilet"

	colRamps     = "availability_ramps"
	colBoysCWSN  = "func_boys_cwsn_friendly"
	colGirlsCWSN = "func_girls_cwsn_friendly"
)

const deriveSource = "derive"

// ComputeDerived attaches infra_score, toilet_functionality_ratio and
// cwsn_ready to the table. Existing columns with those names are replaced,
// so running it again on its own output changes nothing. A missing input
// column degrades only the affected derived field and is reported as a
// SchemaWarning rather than an error.
func ComputeDerived(t *dataset.Table) (*dataset.Table, []domain.SchemaWarning, error) {
	var warnings []domain.SchemaWarning

	score, w := deriveInfraScore(t)
	warnings = append(warnings, w...)

	ratio, w := deriveToiletRatio(t)
	warnings = append(warnings, w...)

	ready, w := deriveCWSNReady(t)
	warnings = append(warnings, w...)

	out, err := t.WithColumns(score, ratio, ready)
	if err != nil {
		return nil, nil, fmt.Errorf("attach derived columns: %w", err)
	}
	return out, warnings, nil
}

// deriveInfraScore counts how many of the four facility flags are coded 1.
// The score is missing whenever any input cell is missing, so a school is
// never credited a low score it might not deserve.
func deriveInfraScore(t *dataset.Table) (*dataset.Column, []domain.SchemaWarning) {
	nums := make([]float64, t.Rows())
	ok := make([]bool, t.Rows())

	inputs := make([]*dataset.Column, 0, len(infraScoreInputs))
	var warnings []domain.SchemaWarning
	for _, name := range infraScoreInputs {
		col, found := t.Lookup(name)
		if !found {
			warnings = append(warnings, domain.SchemaWarning{
				Column: name,
				Source: deriveSource,
				Reason: fmt.Sprintf("column not found; %s is all missing", ColInfraScore),
			})
			continue
		}
		inputs = append(inputs, col)
	}
	if len(inputs) < len(infraScoreInputs) {
		return dataset.NewNumericColumn(ColInfraScore, nums, ok), warnings
	}

	for row := 0; row < t.Rows(); row++ {
		score, valid := 0.0, true
		for _, col := range inputs {
			v, has := col.Float(row)
			if !has {
				valid = false
				break
			}
			if v == 1 {
				score++
			}
		}
		if valid {
			nums[row] = score
			ok[row] = true
		}
	}
	return dataset.NewNumericColumn(ColInfraScore, nums, ok), warnings
}

// deriveToiletRatio divides functional toilets by total toilets across boys
// and girls. The ratio is missing, never zero, when the school reports no
// toilets at all or any input cell is missing.
func deriveToiletRatio(t *dataset.Table) (*dataset.Column, []domain.SchemaWarning) {
	nums := make([]float64, t.Rows())
	ok := make([]bool, t.Rows())

	names := []string{colBoysFuncToilet, colGirlsFuncToilet, colBoysToilet, colGirlsToilet}
	inputs := make([]*dataset.Column, 0, len(names))
	var warnings []domain.SchemaWarning
	for _, name := range names {
		col, found := t.Lookup(name)
		if !found {
			warnings = append(warnings, domain.SchemaWarning{
				Column: name,
				Source: deriveSource,
				Reason: fmt.Sprintf("column not found; %s is all missing", ColToiletRatio),
			})
			continue
		}
		inputs = append(inputs, col)
	}
	if len(inputs) < len(names) {
		return dataset.NewNumericColumn(ColToiletRatio, nums, ok), warnings
	}

	for row := 0; row < t.Rows(); row++ {
		funcBoys, ok1 := inputs[0].Float(row)
		funcGirls, ok2 := inputs[1].Float(row)
		totalBoys, ok3 := inputs[2].Float(row)
		totalGirls, ok4 := inputs[3].Float(row)
		if !ok1 || !ok2 || !ok3 || !ok4 {
			continue
		}
		den := totalBoys + totalGirls
		if den == 0 {
			continue
		}
		nums[row] = (funcBoys + funcGirls) / den
		ok[row] = true
	}
	return dataset.NewNumericColumn(ColToiletRatio, nums, ok), warnings
}

// deriveCWSNReady marks schools with ramps (code 1) and at least one
// functional CWSN friendly toilet. Readiness is never missing: absent
// evidence reads as not ready, including when the ramp column itself is
// missing from the sources.
func deriveCWSNReady(t *dataset.Table) (*dataset.Column, []domain.SchemaWarning) {
	nums := make([]float64, t.Rows())

	ramps, hasRamps := t.Lookup(colRamps)
	boys, hasBoys := t.Lookup(colBoysCWSN)
	girls, hasGirls := t.Lookup(colGirlsCWSN)

	var warnings []domain.SchemaWarning
	checks := []struct {
		name    string
		present bool
	}{
		{colRamps, hasRamps},
		{colBoysCWSN, hasBoys},
		{colGirlsCWSN, hasGirls},
	}
	for _, c := range checks {
		if !c.present {
			warnings = append(warnings, domain.SchemaWarning{
				Column: c.name,
				Source: deriveSource,
				Reason: fmt.Sprintf("column not found; %s reads as not ready", ColCWSNReady),
			})
		}
	}

	if hasRamps {
		for row := 0; row < t.Rows(); row++ {
			v, has := ramps.Float(row)
			if !has || v != 1 {
				continue
			}
			if hasBoys {
				if b, has := boys.Float(row); has && b > 0 {
					nums[row] = 1
					continue
				}
			}
			if hasGirls {
				if g, has := girls.Float(row); has && g > 0 {
					nums[row] = 1
				}
			}
		}
	}
	return dataset.NewNumericColumn(ColCWSNReady, nums, nil), warnings
}
