package logging

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

func TestGinLogrusLogger_AssignsRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(GinLogrusLogger())

	var seen string
	r.GET("/ping", func(c *gin.Context) {
		seen = GetGinRequestID(c)
		c.Status(http.StatusNoContent)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))

	if seen == "" {
		t.Fatalf("request id not set")
	}
	if got := rec.Header().Get(RequestIDHeader); got != seen {
		t.Fatalf("header request id = %q, want %q", got, seen)
	}

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(RequestIDHeader, "abc")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if seen != "abc" {
		t.Fatalf("request id = %q, want incoming header", seen)
	}
}

func TestGinLogrusRecovery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(GinLogrusLogger(), GinLogrusRecovery())
	r.GET("/panic", func(c *gin.Context) { panic("boom") })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/panic", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "internal server error") {
		t.Fatalf("body = %s", rec.Body.String())
	}
}

func TestGetGinRequestID_Nil(t *testing.T) {
	if got := GetGinRequestID(nil); got != "" {
		t.Fatalf("GetGinRequestID(nil) = %q", got)
	}
}

func TestLogFormatter(t *testing.T) {
	entry := &log.Entry{
		Logger:  log.New(),
		Time:    time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
		Level:   log.InfoLevel,
		Message: "hello\n",
		Data:    log.Fields{"b": 2, "a": 1},
	}
	out, err := (&LogFormatter{}).Format(entry)
	if err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	want := "[2024-01-01 12:00:00] [info] hello a=1 b=2\n"
	if string(out) != want {
		t.Fatalf("Format() = %q, want %q", out, want)
	}
}

func TestConfigureLogOutput(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	if err := ConfigureLogOutput(true, dir); err != nil {
		t.Fatalf("ConfigureLogOutput() error = %v", err)
	}
	t.Cleanup(Close)

	log.Info("to file")

	data, err := os.ReadFile(filepath.Join(dir, logFileName))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "to file") {
		t.Fatalf("log file missing entry: %s", data)
	}

	if err := ConfigureLogOutput(false, ""); err != nil {
		t.Fatalf("ConfigureLogOutput(false) error = %v", err)
	}
}
