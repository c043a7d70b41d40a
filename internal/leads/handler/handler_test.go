package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"crm_workflow_backend/internal/events"
	"crm_workflow_backend/internal/leads/domain"
	"crm_workflow_backend/internal/leads/leadstest"
	"crm_workflow_backend/internal/leads/management"
	"crm_workflow_backend/platform/logger"
	"crm_workflow_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func newTestRouter(t *testing.T) (*gin.Engine, *leadstest.Repository) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repo := leadstest.New()
	mgmt := management.New(repo, events.NewInMemoryBus(logger.Nop()), nil, logger.Nop())
	h := New(mgmt, nil, nil, validator.New())

	engine := gin.New()
	h.RegisterRoutes(engine.Group("/api/v1"))
	return engine, repo
}

func doJSON(engine *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func TestUpdateStatusReturnsLead(t *testing.T) {
	engine, repo := newTestRouter(t)
	lead := repo.AddLead(domain.Lead{FirstName: "Anna", Status: "New"})

	rec := doJSON(engine, http.MethodPatch, "/api/v1/leads/"+lead.ID.String()+"/status", `{"status":"confirmed"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var body struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Status != "Confirmed" {
		t.Fatalf("expected normalized status Confirmed, got %q", body.Status)
	}
	if got := repo.LogFor(lead.ID); len(got) != 1 || got[0].ChangedBy != "system" {
		t.Fatalf("expected one log entry by system, got %+v", got)
	}
}

func TestUpdateStatusErrors(t *testing.T) {
	engine, repo := newTestRouter(t)
	lead := repo.AddLead(domain.Lead{FirstName: "Anna", Status: "New"})

	cases := []struct {
		name string
		path string
		body string
		want int
	}{
		{"bad id", "/api/v1/leads/not-a-uuid/status", `{"status":"Confirmed"}`, http.StatusBadRequest},
		{"malformed body", "/api/v1/leads/" + lead.ID.String() + "/status", `{`, http.StatusBadRequest},
		{"missing status", "/api/v1/leads/" + lead.ID.String() + "/status", `{}`, http.StatusBadRequest},
		{"unknown status", "/api/v1/leads/" + lead.ID.String() + "/status", `{"status":"Shipped"}`, http.StatusBadRequest},
		{"unknown lead", "/api/v1/leads/" + uuid.NewString() + "/status", `{"status":"Confirmed"}`, http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doJSON(engine, http.MethodPatch, tc.path, tc.body)
			if rec.Code != tc.want {
				t.Fatalf("expected %d, got %d: %s", tc.want, rec.Code, rec.Body.String())
			}
		})
	}
	if got := repo.LogFor(lead.ID); len(got) != 0 {
		t.Fatalf("expected no log entries, got %d", len(got))
	}
}

func TestSetProductsRecomputesTotals(t *testing.T) {
	engine, repo := newTestRouter(t)
	lead := repo.AddLead(domain.Lead{FirstName: "Anna", Status: "New"})

	rec := doJSON(engine, http.MethodPut, "/api/v1/leads/"+lead.ID.String()+"/products",
		`{"lines":[{"productCode":"OIL-1","productName":"Olive Oil","qty":2,"rate":10}]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if lines := repo.LeadLines[lead.ID]; len(lines) != 1 || lines[0].Amount != 20 || lines[0].NetAmount != 20 {
		t.Fatalf("expected one computed line of 20, got %+v", lines)
	}
}
