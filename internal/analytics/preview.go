package analytics

import (
	"udisecli/internal/config"
	"udisecli/internal/dataset"
	"udisecli/pkg/contracts/domain"
)

// BuildPreview renders the head of the view as canonical cell strings.
// Total carries the full view size so clients can show "100 of 8,214".
// Limits outside the configured bounds are clamped, not rejected.
func BuildPreview(view *dataset.View, limit int) *domain.Preview {
	if limit <= 0 {
		limit = config.DefaultPreviewLimit
	}
	if limit > config.MaxPreviewLimit {
		limit = config.MaxPreviewLimit
	}

	t := view.Table()
	n := view.Len()
	if n > limit {
		n = limit
	}

	rows := make([][]string, n)
	for i := 0; i < n; i++ {
		row := make([]string, t.Width())
		for c := 0; c < t.Width(); c++ {
			row[c] = t.Column(c).String(view.Row(i))
		}
		rows[i] = row
	}
	return &domain.Preview{
		Columns: t.ColumnNames(),
		Rows:    rows,
		Total:   view.Len(),
	}
}
