package management

import (
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bakame-ai/interaction-logs/internal/feeds"
	"github.com/bakame-ai/interaction-logs/internal/interaction"
)

// InteractionsResponse is a page of interaction rows plus the snapshot it was cut from.
type InteractionsResponse struct {
	interaction.ListResult
	CycleID string    `json:"cycle_id"`
	BuiltAt time.Time `json:"built_at"`
}

// InteractionOptions lists the distinct filter values present in the current snapshot.
type InteractionOptions struct {
	Sources      []interaction.Source `json:"sources"`
	Models       []string             `json:"models"`
	CallStatuses []string             `json:"call_statuses"`
}

func listQuery(c *gin.Context) interaction.ListQuery {
	var query interaction.ListQuery
	query.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	query.PageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", "20"))
	query.Source = c.Query("source")
	query.CallSID = c.Query("call_sid")
	query.Search = c.Query("search")
	query.Order = c.Query("order")
	return query
}

// GetInteractions returns a paginated, newest-first list of interaction rows.
// GET /v0/management/interactions?page=1&page_size=20&source=call&call_sid=CA1&search=math&order=desc
func (h *Handler) GetInteractions(c *gin.Context) {
	snap := h.snapshot()
	if snap == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "interactions not available"})
		return
	}

	c.JSON(http.StatusOK, InteractionsResponse{
		ListResult: interaction.List(snap.Rows, listQuery(c)),
		CycleID:    snap.CycleID,
		BuiltAt:    snap.BuiltAt,
	})
}

// GetInteractionByKey returns a single row by its synthetic key.
func (h *Handler) GetInteractionByKey(c *gin.Context) {
	snap := h.snapshot()
	if snap == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "interactions not available"})
		return
	}

	key := c.Param("key")
	if key == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid key"})
		return
	}

	row, ok := interaction.Find(snap.Rows, key)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "interaction not found"})
		return
	}
	c.JSON(http.StatusOK, row)
}

// GetInteractionOptions returns the distinct sources, models and call statuses for filter pickers.
func (h *Handler) GetInteractionOptions(c *gin.Context) {
	snap := h.snapshot()
	if snap == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "interactions not available"})
		return
	}

	sources := map[interaction.Source]struct{}{}
	models := map[string]struct{}{}
	statuses := map[string]struct{}{}
	for _, r := range snap.Rows {
		sources[r.Source] = struct{}{}
		if r.OpenAIModel != "" {
			models[r.OpenAIModel] = struct{}{}
		}
		if r.CallStatus != "" {
			statuses[r.CallStatus] = struct{}{}
		}
	}

	opts := InteractionOptions{
		Sources:      make([]interaction.Source, 0, len(sources)),
		Models:       sortedKeys(models),
		CallStatuses: sortedKeys(statuses),
	}
	for s := range sources {
		opts.Sources = append(opts.Sources, s)
	}
	sort.Slice(opts.Sources, func(i, j int) bool { return opts.Sources[i] < opts.Sources[j] })

	c.JSON(http.StatusOK, opts)
}

// GetFeedStatus reports the outcome of each feed in the last refresh cycle.
func (h *Handler) GetFeedStatus(c *gin.Context) {
	snap := h.snapshot()
	if snap == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "interactions not available"})
		return
	}

	statuses := snap.Feeds
	if statuses == nil {
		statuses = map[string]feeds.Status{}
	}
	c.JSON(http.StatusOK, gin.H{
		"cycle_id": snap.CycleID,
		"built_at": snap.BuiltAt,
		"degraded": snap.Degraded(),
		"feeds":    statuses,
	})
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
