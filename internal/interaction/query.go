package interaction

import (
	"strings"
)

// ListQuery defines the query parameters for listing rows.
type ListQuery struct {
	Page     int    `form:"page"`
	PageSize int    `form:"page_size"`
	Source   string `form:"source"`
	CallSID  string `form:"call_sid"`
	Search   string `form:"search"`
	// Order is "asc" or "desc". Tables show newest first, so desc is the default.
	Order string `form:"order"`
}

// ListResult contains the paginated list of rows.
type ListResult struct {
	Rows       []Row `json:"rows"`
	Total      int   `json:"total"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalPages int   `json:"total_pages"`
}

// List filters and paginates ascending rows.
func List(rows []Row, query ListQuery) ListResult {
	if query.Page < 1 {
		query.Page = 1
	}
	if query.PageSize < 1 {
		query.PageSize = 20
	}
	if query.PageSize > 100 {
		query.PageSize = 100
	}

	ordered := rows
	if !strings.EqualFold(query.Order, "asc") {
		ordered = Descending(rows)
	}
	filtered := Filter(ordered, query)

	total := len(filtered)
	// Pages past the end yield no rows; comparing before multiplying keeps huge pages from overflowing.
	offset := total
	if query.Page-1 <= total/query.PageSize {
		offset = min((query.Page-1)*query.PageSize, total)
	}
	end := offset + query.PageSize
	if end > total {
		end = total
	}

	return ListResult{
		Rows:       filtered[offset:end],
		Total:      total,
		Page:       query.Page,
		PageSize:   query.PageSize,
		TotalPages: (total + query.PageSize - 1) / query.PageSize,
	}
}

// Filter returns the rows matching the source, call SID and search criteria of query,
// preserving their order. Pagination fields are ignored.
func Filter(rows []Row, query ListQuery) []Row {
	source := strings.ToLower(strings.TrimSpace(query.Source))
	callSID := strings.TrimSpace(query.CallSID)
	search := strings.ToLower(strings.TrimSpace(query.Search))

	filtered := make([]Row, 0, len(rows))
	for _, r := range rows {
		if source != "" && string(r.Source) != source {
			continue
		}
		if callSID != "" && r.CallSID != callSID {
			continue
		}
		if search != "" && !matchesSearch(r, search) {
			continue
		}
		filtered = append(filtered, r)
	}
	return filtered
}

// Find returns the row with the given key.
func Find(rows []Row, key string) (Row, bool) {
	for _, r := range rows {
		if r.Key == key {
			return r, true
		}
	}
	return Row{}, false
}

func matchesSearch(r Row, term string) bool {
	for _, v := range []string{r.CallSID, r.FromNumber, r.EventType, r.UserMessage, r.AIResponse, r.Location, r.Topic, r.OpenAIModel} {
		if strings.Contains(strings.ToLower(v), term) {
			return true
		}
	}
	return false
}
