package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLoggerRecordsQueryAndStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zapcore.InfoLevel)

	r := gin.New()
	r.Use(Logger(zap.New(core)))
	r.GET("/blog", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/blog?tag=go", nil)
	req.Header.Set("User-Agent", "feedreader/1.0")
	r.ServeHTTP(w, req)

	entries := logs.TakeAll()
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	e := entries[0]
	if e.Level != zapcore.InfoLevel {
		t.Errorf("level = %v, want info", e.Level)
	}
	got := e.ContextMap()
	if got["path"] != "/blog" || got["query"] != "tag=go" {
		t.Errorf("path/query = %v / %v", got["path"], got["query"])
	}
	if got["status"] != int64(http.StatusOK) {
		t.Errorf("status = %v, want 200", got["status"])
	}
	if got["user_agent"] != "feedreader/1.0" {
		t.Errorf("user_agent = %v", got["user_agent"])
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))
	entries = logs.TakeAll()
	if len(entries) != 1 || entries[0].Level != zapcore.ErrorLevel {
		t.Errorf("server error not logged at error level: %+v", entries)
	}
}
