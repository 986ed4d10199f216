// Package exporter serializes dataset views as CSV.
//
// Exports are deterministic: header row, every column in table order, one
// record per view row in view order, missing cells as empty fields and
// numeric cells in their canonical shortest form. Loading an export back
// through the dataprocessing loader reproduces the same rows, columns and
// values, which is what makes offline enrichment runs composable.
//
// The same writer backs the HTTP download endpoint and the enrich CLI:
//
//	rows, err := exporter.WriteView(w, view, exporter.WriteOptions{BOM: true})
//
// The optional UTF-8 BOM is for spreadsheet tools that otherwise guess the
// encoding wrong; the loader strips it on the way back in.
package exporter
