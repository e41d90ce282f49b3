package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"fitlog-go/internal/config"
	"fitlog-go/internal/logging"
	"fitlog-go/internal/remotestore/handlers"
	"fitlog-go/internal/remotestore/repos"
	"fitlog-go/internal/remotestore/services"
)

const testKey = "anon-key"

func setupRouter(t *testing.T) http.Handler {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db, err := repos.Open("file::memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })

	svc := services.NewService(repos.NewRepo(db))
	svc.SetHashCost(bcrypt.MinCost)
	h := handlers.NewTableHandler(svc)
	return NewRouter(config.ServerConfig{AuthToken: testKey}, h, logging.Discard())
}

func call(t *testing.T, r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("apikey", testKey)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestAPIFlow(t *testing.T) {
	r := setupRouter(t)
	const user = "3f2a1b4c-0000-4000-8000-000000000001"

	rec := call(t, r, http.MethodPost, "/rest/v1/users", `{"id":"`+user+`","name":"Ana","created_at":"2026-04-01T08:00:00Z"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("upsert user status=%d body=%s", rec.Code, rec.Body.String())
	}

	sessionBody := `{"user_id":"` + user + `","local_id":"7","template_id":"push","date":"2026-04-01","started_at":"2026-04-01T08:00:00Z"}`
	rec = call(t, r, http.MethodPost, "/rest/v1/sessions", sessionBody)
	if rec.Code != http.StatusOK {
		t.Fatalf("upsert session status=%d body=%s", rec.Code, rec.Body.String())
	}
	var session struct {
		ID int64 `json:"id"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &session)
	if session.ID == 0 {
		t.Fatalf("expected id in session response: %s", rec.Body.String())
	}

	rec = call(t, r, http.MethodPost, "/rest/v1/sessions", sessionBody)
	var again struct {
		ID int64 `json:"id"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &again)
	if again.ID != session.ID {
		t.Fatalf("session upsert created a second row: %d vs %d", again.ID, session.ID)
	}

	logs := `[{"user_id":"` + user + `","local_id":"42","session_id":` + itoa(session.ID) + `,"exercise_id":"bench","set_number":1,"weight":80,"reps":5,"logged_at":"2026-04-01T08:10:00Z"}]`
	rec = call(t, r, http.MethodPost, "/rest/v1/set_logs", logs)
	if rec.Code != http.StatusCreated {
		t.Fatalf("insert set logs status=%d body=%s", rec.Code, rec.Body.String())
	}

	rec = call(t, r, http.MethodGet, "/rest/v1/set_logs?session_id="+itoa(session.ID), "")
	var got []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil || len(got) != 1 {
		t.Fatalf("list set logs body=%s err=%v", rec.Body.String(), err)
	}
	if got[0]["local_id"] != "42" {
		t.Fatalf("unexpected set log: %v", got[0])
	}

	rec = call(t, r, http.MethodGet, "/rest/v1/sessions?user_id="+user+"&local_id=7", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"local_id":"7"`) {
		t.Fatalf("find session status=%d body=%s", rec.Code, rec.Body.String())
	}

	rec = call(t, r, http.MethodDelete, "/rest/v1/sessions?user_id="+user+"&local_id=7", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("delete session status=%d body=%s", rec.Code, rec.Body.String())
	}
	rec = call(t, r, http.MethodGet, "/rest/v1/set_logs?session_id="+itoa(session.ID), "")
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Fatalf("set logs survived session delete: %s", rec.Body.String())
	}
}

func TestRecoveryRPCs(t *testing.T) {
	r := setupRouter(t)
	const user = "3f2a1b4c-0000-4000-8000-000000000002"
	call(t, r, http.MethodPost, "/rest/v1/users", `{"id":"`+user+`","name":"Ana"}`)

	rec := call(t, r, http.MethodPost, "/rest/v1/rpc/register_profile", `{"user_id":"`+user+`","profile_name":"ana","pin":"1234"}`)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok":true`) {
		t.Fatalf("register status=%d body=%s", rec.Code, rec.Body.String())
	}

	rec = call(t, r, http.MethodPost, "/rest/v1/rpc/check_profile_name_available", `{"profile_name":"ANA"}`)
	if !strings.Contains(rec.Body.String(), `"ok":false`) {
		t.Fatalf("name should be taken: %s", rec.Body.String())
	}

	rec = call(t, r, http.MethodPost, "/rest/v1/rpc/verify_recovery", `{"profile_name":"ana","pin":"0000"}`)
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Fatalf("wrong pin should match nothing: %s", rec.Body.String())
	}
	rec = call(t, r, http.MethodPost, "/rest/v1/rpc/verify_recovery", `{"profile_name":"ana","pin":"1234"}`)
	if !strings.Contains(rec.Body.String(), user) {
		t.Fatalf("verify body=%s", rec.Body.String())
	}

	rec = call(t, r, http.MethodPost, "/rest/v1/rpc/register_profile", `{"user_id":"`+user+`","profile_name":"ana","pin":"12"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("short pin status=%d", rec.Code)
	}
}

func TestAuthRequired(t *testing.T) {
	r := setupRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/rest/v1/users/abc", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing key status=%d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/rest/v1/users/abc", nil)
	req.Header.Set("Authorization", "Bearer "+testKey)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("bearer key status=%d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz status=%d", rec.Code)
	}
}

func itoa(v int64) string { return strconv.FormatInt(v, 10) }
