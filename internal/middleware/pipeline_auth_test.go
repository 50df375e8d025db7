package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const pipelineKey = "pipeline-key"

// setupPipelineRouter mounts both pipeline routes and counts handler hits.
func setupPipelineRouter(apiKey string, hits *int) *gin.Engine {
	r := gin.New()
	pipeline := r.Group("/pipeline", PipelineAuthMiddleware(apiKey))
	handler := func(c *gin.Context) {
		*hits++
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
	pipeline.POST("/snapshots", handler)
	pipeline.POST("/budgets/freeze", handler)
	return r
}

func parseBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var result map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse response body: %v", err)
	}
	return result
}

func TestPipelineAuthMiddleware(t *testing.T) {
	tests := []struct {
		name       string
		configured string
		header     []string
		wantStatus int
		wantCode   string
	}{
		{"matching_key", pipelineKey, []string{pipelineKey}, http.StatusOK, ""},
		{"wrong_key", pipelineKey, []string{"nope"}, http.StatusUnauthorized, "INVALID_API_KEY"},
		{"missing_header", pipelineKey, nil, http.StatusUnauthorized, "INVALID_API_KEY"},
		{"prefix_of_key", pipelineKey, []string{"pipeline"}, http.StatusUnauthorized, "INVALID_API_KEY"},
		{"key_with_whitespace", pipelineKey, []string{pipelineKey + " "}, http.StatusUnauthorized, "INVALID_API_KEY"},
		{"bearer_instead_of_key", pipelineKey, []string{"Bearer " + pipelineKey}, http.StatusUnauthorized, "INVALID_API_KEY"},
		{"not_configured", "", []string{pipelineKey}, http.StatusServiceUnavailable, "PIPELINE_NOT_CONFIGURED"},
		{"not_configured_no_header", "", nil, http.StatusServiceUnavailable, "PIPELINE_NOT_CONFIGURED"},
	}

	for _, tt := range tests {
		for _, path := range []string{"/pipeline/snapshots", "/pipeline/budgets/freeze"} {
			t.Run(tt.name+path, func(t *testing.T) {
				hits := 0
				r := setupPipelineRouter(tt.configured, &hits)

				req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(`{}`))
				for _, h := range tt.header {
					req.Header.Set("X-API-Key", h)
				}
				rec := httptest.NewRecorder()
				r.ServeHTTP(rec, req)

				if rec.Code != tt.wantStatus {
					t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
				}
				if tt.wantCode == "" {
					if hits != 1 {
						t.Errorf("expected handler to run once, ran %d times", hits)
					}
					return
				}
				if hits != 0 {
					t.Errorf("rejected request reached the handler")
				}
				errObj, _ := parseBody(t, rec)["error"].(map[string]interface{})
				if code, _ := errObj["code"].(string); code != tt.wantCode {
					t.Errorf("error code = %q, want %q", code, tt.wantCode)
				}
			})
		}
	}
}
