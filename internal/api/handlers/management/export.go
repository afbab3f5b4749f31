package management

import (
	"bytes"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/bakame-ai/interaction-logs/internal/export"
	"github.com/bakame-ai/interaction-logs/internal/interaction"
)

const (
	csvContentType  = "text/csv; charset=utf-8"
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// exportRows returns the snapshot rows in ascending order, narrowed by the optional
// source, call_sid and search query parameters.
func (h *Handler) exportRows(c *gin.Context) ([]interaction.Row, bool) {
	snap := h.snapshot()
	if snap == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "interactions not available"})
		return nil, false
	}
	return interaction.Filter(snap.Rows, listQuery(c)), true
}

func (h *Handler) location() *time.Location {
	if h.exporter == nil {
		return time.Local
	}
	return h.exporter.Location()
}

func writeExportError(c *gin.Context, err error) {
	if errors.Is(err, export.ErrEmptyExport) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no interactions to export"})
		return
	}
	log.WithError(err).Error("interaction export failed")
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

// DownloadCSV streams the current rows as a CSV attachment.
// GET /v0/management/interactions/export.csv
func (h *Handler) DownloadCSV(c *gin.Context) {
	rows, ok := h.exportRows(c)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := export.WriteCSV(&buf, rows, h.location()); err != nil {
		writeExportError(c, err)
		return
	}

	filename := export.FileName(export.DateStamp(h.now()))
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, csvContentType, buf.Bytes())
}

// DownloadXLSX streams the current rows as an Excel workbook.
// GET /v0/management/interactions/export.xlsx
func (h *Handler) DownloadXLSX(c *gin.Context) {
	rows, ok := h.exportRows(c)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := export.WriteXLSX(&buf, rows, h.location()); err != nil {
		writeExportError(c, err)
		return
	}

	filename := export.XLSXFileName(export.DateStamp(h.now()))
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

// SaveExport writes the current rows to the configured export directory.
// POST /v0/management/interactions/export
func (h *Handler) SaveExport(c *gin.Context) {
	if h.exporter == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "export not configured"})
		return
	}
	rows, ok := h.exportRows(c)
	if !ok {
		return
	}

	path, err := h.exporter.ExportCSV(rows, export.DateStamp(h.now()))
	if err != nil {
		writeExportError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"path": path,
		"rows": len(rows),
	})
}
