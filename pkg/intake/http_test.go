package intake

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/triagex/platform/pkg/common/models"
)

func newTestRouter(t *testing.T) *mux.Router {
	t.Helper()
	svc, _, _, _ := newTestService()
	router := mux.NewRouter()
	NewHandler(svc).Register(router.PathPrefix("/api").Subrouter())
	return router
}

func call(router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestIntakeHTTPFlow(t *testing.T) {
	router := newTestRouter(t)

	rec := call(router, http.MethodPost, "/api/trauma-sites", `{"name":"Highway 9","latitude":"12.5"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create site: %d %s", rec.Code, rec.Body.String())
	}
	var site models.TraumaSite
	if err := json.Unmarshal(rec.Body.Bytes(), &site); err != nil {
		t.Fatal(err)
	}
	if site.Latitude == nil || *site.Latitude != 12.5 {
		t.Fatalf("latitude not normalized: %+v", site)
	}

	rec = call(router, http.MethodPatch, "/api/trauma-sites/1", `{"address":"Exit 14"}`)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"address":"Exit 14"`) || !strings.Contains(rec.Body.String(), `"name":"Highway 9"`) {
		t.Fatalf("patch site: %d %s", rec.Code, rec.Body.String())
	}
	rec = call(router, http.MethodPut, "/api/trauma-sites/1", `{"address":"no name"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("put site without name: expected 400, got %d", rec.Code)
	}
	rec = call(router, http.MethodPut, "/api/trauma-sites/42", `{"name":"Nowhere"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("put missing site: expected 404, got %d", rec.Code)
	}

	rec = call(router, http.MethodPost, "/api/patients", `{"site":1,"name":"Jane","age":"abc"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad age, got %d", rec.Code)
	}
	var verr map[string]string
	_ = json.Unmarshal(rec.Body.Bytes(), &verr)
	if verr["field"] != "age" {
		t.Fatalf("expected age field error, got %v", verr)
	}

	rec = call(router, http.MethodPost, "/api/patients", `{"site":1,"name":"Jane","age":"42"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create patient: %d %s", rec.Code, rec.Body.String())
	}

	rec = call(router, http.MethodPatch, "/api/patients/2", `{"triage_level":"Yellow"}`)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"triage_level":"yellow"`) {
		t.Fatalf("patch patient: %d %s", rec.Code, rec.Body.String())
	}

	rec = call(router, http.MethodPost, "/api/vitalsigns", `{"patient":2,"heart_rate":88}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create vital: %d %s", rec.Code, rec.Body.String())
	}
	rec = call(router, http.MethodGet, "/api/vitalsigns/latest/2", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"heart_rate":88`) {
		t.Fatalf("latest vital: %d %s", rec.Code, rec.Body.String())
	}

	rec = call(router, http.MethodGet, "/api/paramedic-actions?patient_id=2", "")
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Fatalf("empty list must be []: %d %s", rec.Code, rec.Body.String())
	}
	rec = call(router, http.MethodGet, "/api/vitalsigns?patient_id=abc", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad filter, got %d", rec.Code)
	}

	rec = call(router, http.MethodGet, "/api/patients/99", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}

	rec = call(router, http.MethodDelete, "/api/trauma-sites/1", "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete site: %d", rec.Code)
	}
	rec = call(router, http.MethodGet, "/api/patients/2", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("patient should be gone after site delete, got %d", rec.Code)
	}
}

func TestIntakeRejectsNonObjectBody(t *testing.T) {
	router := newTestRouter(t)
	for _, body := range []string{"", "[1]", "null", "{"} {
		rec := call(router, http.MethodPost, "/api/trauma-sites", body)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("body %q: expected 400, got %d", body, rec.Code)
		}
	}
}
