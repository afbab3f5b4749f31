package interaction

import "sort"

// Summary contains overall statistics for one set of rows.
type Summary struct {
	TotalRows     int            `json:"total_rows"`
	RowsBySource  map[Source]int `json:"rows_by_source"`
	UniqueCalls   int            `json:"unique_calls"`
	TotalTokens   int64          `json:"total_tokens"`
	TotalCostUSD  float64        `json:"total_cost_usd"`
	PartialRows   int            `json:"partial_rows"`
	UnmatchedRows int            `json:"unmatched_rows"`
	ModelCounts   []ModelCount   `json:"model_counts"`
}

// ModelCount represents usage rows for a single model.
type ModelCount struct {
	Model  string `json:"model"`
	Rows   int    `json:"rows"`
	Tokens int64  `json:"tokens"`
}

// Summarize aggregates rows for the dashboard overview cards.
func Summarize(rows []Row) Summary {
	s := Summary{
		TotalRows:    len(rows),
		RowsBySource: map[Source]int{SourceCall: 0, SourceOpenAI: 0, SourceTwilio: 0},
	}
	calls := make(map[string]struct{})
	models := make(map[string]*ModelCount)

	for _, r := range rows {
		s.RowsBySource[r.Source]++
		if r.CallSID != "" {
			calls[r.CallSID] = struct{}{}
		}
		s.TotalTokens += r.TokensUsed
		s.TotalCostUSD += r.CostUSD
		if r.Partial() {
			s.PartialRows++
		}
		if !r.Matched {
			s.UnmatchedRows++
		}
		if r.OpenAIModel != "" {
			mc, ok := models[r.OpenAIModel]
			if !ok {
				mc = &ModelCount{Model: r.OpenAIModel}
				models[r.OpenAIModel] = mc
			}
			mc.Rows++
			mc.Tokens += r.TokensUsed
		}
	}

	s.UniqueCalls = len(calls)
	s.ModelCounts = make([]ModelCount, 0, len(models))
	for _, mc := range models {
		s.ModelCounts = append(s.ModelCounts, *mc)
	}
	sort.Slice(s.ModelCounts, func(i, j int) bool {
		if s.ModelCounts[i].Rows != s.ModelCounts[j].Rows {
			return s.ModelCounts[i].Rows > s.ModelCounts[j].Rows
		}
		return s.ModelCounts[i].Model < s.ModelCounts[j].Model
	})
	return s
}
