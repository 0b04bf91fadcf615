package metrics

import "sort"

// FailureBucket is the number of failed iterations sharing a label.
type FailureBucket struct {
	Label string `json:"label" yaml:"label"`
	Count int64  `json:"count" yaml:"count"`
}

// FlattenFailures converts a label->count map into a sorted slice.
// Rows are sorted by descending count, then by label for stability.
func FlattenFailures(counts map[string]int64) []FailureBucket {
	if len(counts) == 0 {
		return nil
	}
	rows := make([]FailureBucket, 0, len(counts))
	for label, count := range counts {
		rows = append(rows, FailureBucket{Label: label, Count: count})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Count == rows[j].Count {
			return rows[i].Label < rows[j].Label
		}
		return rows[i].Count > rows[j].Count
	})
	return rows
}
