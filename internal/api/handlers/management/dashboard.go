package management

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bakame-ai/interaction-logs/internal/feeds"
	"github.com/bakame-ai/interaction-logs/internal/interaction"
)

// DashboardStats represents the unified dashboard statistics response.
type DashboardStats struct {
	// Overview stats (for stat cards)
	Overview interaction.Summary `json:"overview"`
	// Feed health from the last refresh cycle
	FeedHealth FeedHealthStats `json:"feed_health"`
	// Daily statistics for the last N days
	DailyStats []DailyStatsItem `json:"daily_stats"`
	// Newest rows per source for the recent activity tables
	RecentCalls     []interaction.Row `json:"recent_calls"`
	RecentUsage     []interaction.Row `json:"recent_usage"`
	RecentTelephony []interaction.Row `json:"recent_telephony"`
}

// FeedHealthStats describes how fresh and complete the snapshot is.
type FeedHealthStats struct {
	CycleID  string                  `json:"cycle_id"`
	BuiltAt  time.Time               `json:"built_at"`
	Degraded bool                    `json:"degraded"`
	Feeds    map[string]feeds.Status `json:"feeds"`
}

// DailyStatsItem represents daily statistics for the table.
type DailyStatsItem struct {
	Date    string  `json:"date"`
	Rows    int64   `json:"rows"`
	Calls   int64   `json:"calls"`
	Tokens  int64   `json:"tokens"`
	CostUSD float64 `json:"cost_usd"`
}

// GetDashboardStats returns unified dashboard statistics.
// GET /v0/management/dashboard/stats?days=7&recent=10
func (h *Handler) GetDashboardStats(c *gin.Context) {
	snap := h.snapshot()
	if snap == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "interactions not available"})
		return
	}

	// Default to 7 days
	days := 7
	if daysStr := c.Query("days"); daysStr != "" {
		if d, err := strconv.Atoi(daysStr); err == nil && d > 0 && d <= 30 {
			days = d
		}
	}
	recent := 10
	if recentStr := c.Query("recent"); recentStr != "" {
		if n, err := strconv.Atoi(recentStr); err == nil && n > 0 && n <= 100 {
			recent = n
		}
	}

	statuses := snap.Feeds
	if statuses == nil {
		statuses = map[string]feeds.Status{}
	}

	c.JSON(http.StatusOK, DashboardStats{
		Overview: interaction.Summarize(snap.Rows),
		FeedHealth: FeedHealthStats{
			CycleID:  snap.CycleID,
			BuiltAt:  snap.BuiltAt,
			Degraded: snap.Degraded(),
			Feeds:    statuses,
		},
		DailyStats:      dailyStats(snap.Rows, h.now().In(h.location()), days),
		RecentCalls:     newest(snap.Rows, interaction.SourceCall, recent),
		RecentUsage:     newest(snap.Rows, interaction.SourceOpenAI, recent),
		RecentTelephony: newest(snap.Rows, interaction.SourceTwilio, recent),
	})
}

// dailyStats buckets rows by calendar day in now's location, oldest day first.
// Rows with unparseable timestamps are not counted.
func dailyStats(rows []interaction.Row, now time.Time, days int) []DailyStatsItem {
	loc := now.Location()
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc).AddDate(0, 0, -(days - 1))

	items := make([]DailyStatsItem, days)
	index := make(map[string]int, days)
	for i := range items {
		date := start.AddDate(0, 0, i).Format("2006-01-02")
		items[i].Date = date
		index[date] = i
	}

	calls := make([]map[string]struct{}, days)
	for _, r := range rows {
		if r.At.IsZero() {
			continue
		}
		i, ok := index[r.At.In(loc).Format("2006-01-02")]
		if !ok {
			continue
		}
		items[i].Rows++
		items[i].Tokens += r.TokensUsed
		items[i].CostUSD += r.CostUSD
		if r.CallSID == "" {
			continue
		}
		if calls[i] == nil {
			calls[i] = make(map[string]struct{})
		}
		calls[i][r.CallSID] = struct{}{}
	}
	for i := range items {
		items[i].Calls = int64(len(calls[i]))
	}
	return items
}

// newest returns up to n rows of the given source, newest first.
func newest(rows []interaction.Row, source interaction.Source, n int) []interaction.Row {
	out := make([]interaction.Row, 0, n)
	for i := len(rows) - 1; i >= 0 && len(out) < n; i-- {
		if rows[i].Source == source {
			out = append(out, rows[i])
		}
	}
	return out
}
