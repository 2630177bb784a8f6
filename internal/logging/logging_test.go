package logging

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

func TestSetup_JSONAndLevel(t *testing.T) {
	var buf bytes.Buffer
	Setup("warn", "json", &buf)
	t.Cleanup(func() { Setup("info", "text", nil) })

	log.Info("hidden")
	log.WithField("component", "test").Warn("visible")

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("expected a single json line, got %q: %v", buf.String(), err)
	}
	if entry["msg"] != "visible" || entry["component"] != "test" {
		t.Fatalf("unexpected entry: %v", entry)
	}
}

func TestSetup_InvalidLevelFallsBackToInfo(t *testing.T) {
	Setup("loud", "text", &bytes.Buffer{})
	t.Cleanup(func() { Setup("info", "text", nil) })

	if log.GetLevel() != log.InfoLevel {
		t.Fatalf("expected info level, got %s", log.GetLevel())
	}
}

func TestGinLogger_LevelsByStatus(t *testing.T) {
	var buf bytes.Buffer
	Setup("info", "json", &buf)
	t.Cleanup(func() { Setup("info", "text", nil) })

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(GinLogger())
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ok", nil))
	if buf.Len() != 0 {
		t.Fatalf("expected successful request below info level, got %q", buf.String())
	}

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/boom", nil))
	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("expected json line, got %q: %v", buf.String(), err)
	}
	if entry["level"] != "error" || entry["path"] != "/boom" {
		t.Fatalf("unexpected entry: %v", entry)
	}
}
