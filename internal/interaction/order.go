package interaction

import "sort"

// SortAscending orders rows by parsed timestamp, oldest first, keeping insertion order on ties.
// Rows whose timestamp could not be parsed sort before all others.
func SortAscending(rows []Row) {
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].At.Before(rows[j].At)
	})
}

// Descending returns a reversed copy of ascending rows, as shown on screen.
func Descending(rows []Row) []Row {
	out := make([]Row, len(rows))
	for i, r := range rows {
		out[len(rows)-1-i] = r
	}
	return out
}
