package handlers

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/arnavshah/shiftflow-api/pkg/auth"
	"github.com/arnavshah/shiftflow-api/pkg/docstore"
	"github.com/arnavshah/shiftflow-api/pkg/grid"
	"github.com/arnavshah/shiftflow-api/pkg/models"
	"github.com/arnavshah/shiftflow-api/pkg/tasks"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testEnv struct {
	docs    *docstore.Memory
	handler *Handler
	router  *gin.Engine
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	docs := docstore.NewMemory()
	board := grid.NewBoard(docs, models.DefaultRoster, nil)
	catalog := tasks.NewCatalog(docs, []string{"Task A", "Task B"}, nil)
	creds := auth.NewCredentialStore(docs, bcrypt.MinCost, nil)
	hub := NewEventHub(docs, nil)
	board.Start()
	catalog.Start()
	creds.Start()
	hub.Start()
	t.Cleanup(func() {
		hub.Close()
		creds.Close()
		catalog.Close()
		board.Close()
	})

	h := NewHandler(Deps{
		Roster:        models.DefaultRoster,
		Board:         board,
		Catalog:       catalog,
		Credentials:   creds,
		Tokens:        auth.NewTokenIssuer("test-secret", time.Hour),
		Events:        hub,
		ToastDuration: 2500 * time.Millisecond,
	})
	h.now = func() time.Time { return time.Date(2024, 2, 10, 9, 0, 0, 0, time.UTC) }
	return &testEnv{docs: docs, handler: h, router: NewRouter(h)}
}

func (e *testEnv) token(t *testing.T, id string) string {
	t.Helper()
	profile, role, ok := e.handler.Roster.Resolve(id)
	require.True(t, ok)
	tok, _, err := e.handler.Tokens.CreateToken(models.Session{Profile: profile, Role: role})
	require.NoError(t, err)
	return tok
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	var out map[string]any
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	}
	return w, out
}

func errorCode(body map[string]any) string {
	e, _ := body["error"].(map[string]any)
	code, _ := e["code"].(string)
	return code
}

func TestRoot(t *testing.T) {
	env := newTestEnv(t)
	w, body := env.do(t, http.MethodGet, "/", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, Version, body["version"])

	w, body = env.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", body["status"])
}

func TestLoginFlowSetupThenGrid(t *testing.T) {
	env := newTestEnv(t)

	w, body := env.do(t, http.MethodPost, "/auth/flows", "", nil)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "login", body["state"])
	flowID := body["flow_id"].(string)
	base := "/auth/flows/" + flowID

	w, body = env.do(t, http.MethodPost, base+"/account", "", gin.H{"account_id": " Staff-1 "})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "setup", body["state"])
	assert.Equal(t, "staff-1", body["account_id"])

	w, body = env.do(t, http.MethodPost, base+"/setup", "", gin.H{"password": "ab"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "WEAK_PASSWORD", errorCode(body))

	_, body = env.do(t, http.MethodGet, base, "", nil)
	assert.Equal(t, "WEAK_PASSWORD", errorCode(body), "the pending error is kept on the flow")

	w, body = env.do(t, http.MethodPost, base+"/setup", "", gin.H{"password": "abcd"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "authenticated", body["state"])
	assert.Nil(t, body["error"])
	tok := body["token"].(map[string]any)
	assert.Equal(t, "staff", tok["role"])
	access := tok["access_token"].(string)

	w, body = env.do(t, http.MethodGet, "/grid?month=2024-02", access, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, body["dates"], 29)
	assert.Equal(t, "2024-01", body["prev"])
	assert.Equal(t, "2024-03", body["next"])
	rows := body["rows"].([]any)
	require.Len(t, rows, 1, "staff only see their own row")
	staff := rows[0].(map[string]any)["staff"].(map[string]any)
	assert.Equal(t, "staff-1", staff["id"])
}

func TestLoginFlowChallengeAndReset(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.handler.Credentials.Save(context.Background(), "manager", "letmein"))

	_, body := env.do(t, http.MethodPost, "/auth/flows", "", nil)
	base := "/auth/flows/" + body["flow_id"].(string)

	_, body = env.do(t, http.MethodPost, base+"/account", "", gin.H{"account_id": "manager"})
	assert.Equal(t, "challenge", body["state"])

	w, body := env.do(t, http.MethodPost, base+"/challenge", "", gin.H{"password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "BAD_PASSWORD", errorCode(body))

	w, body = env.do(t, http.MethodPost, base+"/reset", "", nil)
	assert.Equal(t, http.StatusPreconditionRequired, w.Code)
	assert.Equal(t, "CONFIRMATION_REQUIRED", errorCode(body))
	assert.True(t, env.handler.Credentials.Has("manager"), "an unconfirmed reset keeps the credential")

	w, body = env.do(t, http.MethodPost, base+"/reset", "", gin.H{"confirm": true})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "setup", body["state"])
	assert.Equal(t, true, body["reset_done"])
	assert.False(t, env.handler.Credentials.Has("manager"))

	w, body = env.do(t, http.MethodPost, base+"/setup", "", gin.H{"password": "fresh"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, body["reset_done"])
	assert.Equal(t, "manager", body["token"].(map[string]any)["role"])

	w, body = env.do(t, http.MethodPost, base+"/change", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", errorCode(body), "a flow that issued its token is consumed")
}

func TestAuthenticatedFlowIssuesOneToken(t *testing.T) {
	env := newTestEnv(t)

	_, body := env.do(t, http.MethodPost, "/auth/flows", "", nil)
	first := "/auth/flows/" + body["flow_id"].(string)
	env.do(t, http.MethodPost, first+"/account", "", gin.H{"account_id": "manager"})
	w, body := env.do(t, http.MethodPost, first+"/setup", "", gin.H{"password": "letmein"})
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, body["token"])

	w, body = env.do(t, http.MethodGet, first, "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Nil(t, body["token"])

	// A reset through another flow cannot revive the first one.
	_, body = env.do(t, http.MethodPost, "/auth/flows", "", nil)
	second := "/auth/flows/" + body["flow_id"].(string)
	env.do(t, http.MethodPost, second+"/account", "", gin.H{"account_id": "manager"})
	w, _ = env.do(t, http.MethodPost, second+"/reset", "", gin.H{"confirm": true})
	require.Equal(t, http.StatusOK, w.Code)
	w, _ = env.do(t, http.MethodPost, second+"/setup", "", gin.H{"password": "another"})
	require.Equal(t, http.StatusOK, w.Code)

	w, body = env.do(t, http.MethodGet, first, "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Nil(t, body["token"])
}

func TestLoginFlowExpires(t *testing.T) {
	env := newTestEnv(t)
	start := time.Date(2024, 2, 10, 9, 0, 0, 0, time.UTC)
	now := start
	env.handler.now = func() time.Time { return now }

	_, body := env.do(t, http.MethodPost, "/auth/flows", "", nil)
	base := "/auth/flows/" + body["flow_id"].(string)
	w, _ := env.do(t, http.MethodPost, base+"/account", "", gin.H{"account_id": "staff-1"})
	require.Equal(t, http.StatusOK, w.Code)

	now = start.Add(flowTTL + time.Minute)
	w, body = env.do(t, http.MethodPost, base+"/setup", "", gin.H{"password": "abcd"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", errorCode(body))
	assert.Nil(t, body["token"])
	assert.False(t, env.handler.Credentials.Has("staff-1"), "an expired flow cannot set a password")

	w, _ = env.do(t, http.MethodGet, base, "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUnknownFlowAndAccount(t *testing.T) {
	env := newTestEnv(t)
	w, body := env.do(t, http.MethodGet, "/auth/flows/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", errorCode(body))

	_, body = env.do(t, http.MethodPost, "/auth/flows", "", nil)
	w, body = env.do(t, http.MethodPost, "/auth/flows/"+body["flow_id"].(string)+"/account", "", gin.H{"account_id": "ghost"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "UNKNOWN_ACCOUNT", errorCode(body))
}

func TestGridRequiresToken(t *testing.T) {
	env := newTestEnv(t)
	w, body := env.do(t, http.MethodGet, "/grid", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "UNAUTHORIZED", errorCode(body))

	w, _ = env.do(t, http.MethodGet, "/grid", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, body = env.do(t, http.MethodGet, "/grid?month=2024-13", env.token(t, "manager"), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(body))
}

func TestGridDefaultsToCurrentMonth(t *testing.T) {
	env := newTestEnv(t)
	w, body := env.do(t, http.MethodGet, "/grid", env.token(t, "manager"), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2024-02", body["month"])
	assert.Len(t, body["rows"], len(models.DefaultRoster))
	assert.Len(t, body["tasks"], 2)
}

func TestAvailabilityPermissions(t *testing.T) {
	env := newTestEnv(t)
	staff := env.token(t, "staff-2")

	w, body := env.do(t, http.MethodPut, "/availability/staff-2/2024-02-05", staff, gin.H{"type": "partial", "hours": "9-12"})
	require.Equal(t, http.StatusOK, w.Code)
	av := body["availability"].(map[string]any)
	assert.Equal(t, "partial", av["type"])
	assert.Equal(t, "9-12", av["hours"])

	w, body = env.do(t, http.MethodPut, "/availability/staff-1/2024-02-05", staff, gin.H{"type": "ok"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "FORBIDDEN", errorCode(body))

	w, body = env.do(t, http.MethodPut, "/availability/staff-2/2024-02-05", staff, gin.H{"type": "maybe"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(body))

	w, _ = env.do(t, http.MethodPut, "/availability/staff-9/2024-02-05", staff, gin.H{"type": "ok"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, body = env.do(t, http.MethodPut, "/availability/staff-2/2024-02-05", staff, gin.H{"type": nil})
	require.Equal(t, http.StatusOK, w.Code)
	av = body["availability"].(map[string]any)
	assert.Nil(t, av["type"], "an explicit null clears the type")
	assert.Equal(t, "9-12", av["hours"], "fields that were not sent are kept")

	w, body = env.do(t, http.MethodPut, "/availability/staff-2/2024-02-05", staff, gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(body))

	env.do(t, http.MethodPut, "/availability/staff-2/2024-02-05", staff, gin.H{"type": "partial"})

	w, body = env.do(t, http.MethodDelete, "/availability/staff-2/2024-02-05", env.token(t, "manager"), nil)
	require.Equal(t, http.StatusOK, w.Code)
	av = body["availability"].(map[string]any)
	assert.Nil(t, av["type"])
	assert.Nil(t, av["hours"])
}

func TestAssignmentToggleAndValidation(t *testing.T) {
	env := newTestEnv(t)
	mgr := env.token(t, "manager")

	w, body := env.do(t, http.MethodPost, "/assignments/staff-1/2024-02-01", mgr, gin.H{"task": "Task A"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "NO_AVAILABILITY_DECLARED", errorCode(body))
	assert.Equal(t, float64(2500), body["error"].(map[string]any)["dismiss_after_ms"])

	env.do(t, http.MethodPut, "/availability/staff-1/2024-02-01", mgr, gin.H{"type": "ok"})
	env.do(t, http.MethodPut, "/availability/staff-1/2024-02-02", mgr, gin.H{"type": "ng"})

	w, body = env.do(t, http.MethodPost, "/assignments/staff-1/2024-02-02", mgr, gin.H{"task": "Task A"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "DAY_UNAVAILABLE", errorCode(body))

	w, body = env.do(t, http.MethodPost, "/assignments/staff-1/2024-02-01", mgr, gin.H{"task": "Task A"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Task A", body["task"])

	w, body = env.do(t, http.MethodPost, "/assignments/staff-1/2024-02-01", mgr, gin.H{"task": "Task B"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Task B", body["task"], "a different task replaces the assignment")

	w, body = env.do(t, http.MethodPost, "/assignments/staff-1/2024-02-01", mgr, gin.H{"task": "Task B"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "", body["task"], "the same task toggles off")

	w, body = env.do(t, http.MethodPost, "/assignments/staff-1/2024-02-01", mgr, gin.H{"task": "Task Z"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "TASK_NOT_FOUND", errorCode(body))

	w, _ = env.do(t, http.MethodPost, "/assignments/staff-1/2024-02-01", env.token(t, "staff-1"), gin.H{"task": "Task A"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, body = env.do(t, http.MethodDelete, "/assignments/staff-3/2024-02-09", mgr, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "", body["task"])
}

func TestSelectionCommit(t *testing.T) {
	env := newTestEnv(t)
	mgr := env.token(t, "manager")
	env.do(t, http.MethodPut, "/availability/staff-1/2024-02-01", mgr, gin.H{"type": "ok"})
	env.do(t, http.MethodPut, "/availability/staff-2/2024-02-02", mgr, gin.H{"type": "other"})
	env.do(t, http.MethodPut, "/availability/staff-2/2024-02-01", mgr, gin.H{"type": "ng"})

	w, body := env.do(t, http.MethodPost, "/selection/move", mgr, gin.H{"staff_id": "staff-1", "date": "2024-02-01"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, body = env.do(t, http.MethodPost, "/selection/start", mgr, gin.H{"month": "2024-02", "staff_id": "staff-2", "date": "2024-02-02"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, body["keys"], 1)

	w, body = env.do(t, http.MethodPost, "/selection/move", mgr, gin.H{"staff_id": "staff-1", "date": "2024-02-01"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []any{
		"staff-1-2024-02-01", "staff-1-2024-02-02", "staff-2-2024-02-01", "staff-2-2024-02-02",
	}, body["keys"])

	w, body = env.do(t, http.MethodPost, "/selection/commit", mgr, gin.H{"task": "Task B"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), body["applied"])
	assert.Equal(t, float64(2), body["failed"])
	cells := body["cells"].([]any)
	require.Len(t, cells, 4)
	assert.Equal(t, "NO_AVAILABILITY_DECLARED", cells[1].(map[string]any)["code"])
	assert.Equal(t, "DAY_UNAVAILABLE", cells[2].(map[string]any)["code"])
	assert.Equal(t, "DAY_UNAVAILABLE", body["last_error"].(map[string]any)["code"])

	all := env.handler.Board.Assignments.All()
	assert.Equal(t, "Task B", all["staff-1-2024-02-01"].Task)
	assert.Equal(t, "Task B", all["staff-2-2024-02-02"].Task)

	w, _ = env.do(t, http.MethodPost, "/selection/commit", mgr, gin.H{"task": "Task B"})
	assert.Equal(t, http.StatusNotFound, w.Code, "commit clears the selection")

	w, _ = env.do(t, http.MethodPost, "/selection/start", env.token(t, "staff-1"), gin.H{"staff_id": "staff-1", "date": "2024-02-01"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	env.do(t, http.MethodPost, "/selection/start", mgr, gin.H{"staff_id": "staff-1", "date": "2024-02-01"})
	w, _ = env.do(t, http.MethodDelete, "/selection", mgr, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w, _ = env.do(t, http.MethodPost, "/selection/commit", mgr, gin.H{"task": "Task A"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTaskCatalogRoutes(t *testing.T) {
	env := newTestEnv(t)
	mgr := env.token(t, "manager")

	w, body := env.do(t, http.MethodPost, "/tasks", mgr, gin.H{"name": "  Task C "})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Len(t, body["tasks"], 3)

	w, body = env.do(t, http.MethodPost, "/tasks", mgr, gin.H{"name": "Task C"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "DUPLICATE_NAME", errorCode(body))

	w, body = env.do(t, http.MethodPost, "/tasks", mgr, gin.H{"name": "   "})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "EMPTY_NAME", errorCode(body))

	w, body = env.do(t, http.MethodDelete, "/tasks/Task%20A?selected=Task%20A", mgr, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Task B", body["selected"])
	first := body["tasks"].([]any)[0].(map[string]any)
	assert.Equal(t, "Task B", first["name"])
	assert.Equal(t, tasks.Palette[0], first["color"], "colors follow the new positions")

	w, body = env.do(t, http.MethodDelete, "/tasks/Task%20A", mgr, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "TASK_NOT_FOUND", errorCode(body))

	w, _ = env.do(t, http.MethodPost, "/tasks", env.token(t, "staff-1"), gin.H{"name": "X"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	w, body = env.do(t, http.MethodGet, "/tasks", env.token(t, "staff-1"), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, body["tasks"], 2)
}

func TestSummaryRoute(t *testing.T) {
	env := newTestEnv(t)
	mgr := env.token(t, "manager")
	env.do(t, http.MethodPut, "/availability/staff-1/2024-02-01", mgr, gin.H{"type": "ok"})
	env.do(t, http.MethodPost, "/assignments/staff-1/2024-02-01", mgr, gin.H{"task": "Task A"})

	w, body := env.do(t, http.MethodGet, "/grid/summary?month=2024-02", mgr, nil)
	require.Equal(t, http.StatusOK, w.Code)
	summary := body["summary"].(map[string]any)
	assert.Equal(t, float64(1), summary["total_assigned"])
	assert.Len(t, summary["staff"], len(models.DefaultRoster))

	_, body = env.do(t, http.MethodGet, "/grid/summary?month=2024-02", env.token(t, "staff-3"), nil)
	staff := body["summary"].(map[string]any)["staff"].([]any)
	require.Len(t, staff, 1)
	assert.Equal(t, "staff-3", staff[0].(map[string]any)["staff_id"])
}

func TestFatalStoreBlocksGrid(t *testing.T) {
	env := newTestEnv(t)
	env.docs.Fail(docstore.CollectionAssignments, errors.New("PERMISSION_DENIED: missing or insufficient permissions"))

	w, body := env.do(t, http.MethodGet, "/grid", env.token(t, "manager"), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "PERMISSION_DENIED", errorCode(body))
	assert.Equal(t, "fatal", body["error"].(map[string]any)["severity"])

	w, _ = env.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	env.docs.Fail(docstore.CollectionAssignments, nil)
	w, _ = env.do(t, http.MethodGet, "/grid", env.token(t, "manager"), nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestEventStream(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.router)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/events", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+env.token(t, "staff-1"))

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	readEvent := func() (string, string) {
		var event, data string
		for {
			line, err := reader.ReadString('\n')
			require.NoError(t, err)
			line = strings.TrimRight(line, "\n")
			switch {
			case strings.HasPrefix(line, "event: "):
				event = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				data = strings.TrimPrefix(line, "data: ")
			case line == "" && event != "":
				return event, data
			}
		}
	}

	event, _ := readEvent()
	require.Equal(t, "connected", event)

	require.NoError(t, env.docs.Write(ctx, docstore.Doc(docstore.CollectionAvailability, "staff-1-2024-02-01"), map[string]any{"type": "ok"}))
	event, data := readEvent()
	assert.Equal(t, "change", event)
	var ev ChangeEvent
	require.NoError(t, json.Unmarshal([]byte(data), &ev))
	assert.Equal(t, docstore.CollectionAvailability, ev.Collection)
	assert.Equal(t, 1, ev.Documents)
}

func TestEventHubSkipsCredentials(t *testing.T) {
	docs := docstore.NewMemory()
	hub := NewEventHub(docs, nil)
	hub.Start()
	defer hub.Close()
	events, remove := hub.Add()
	defer remove()

	require.NoError(t, docs.Write(context.Background(), docstore.Doc(docstore.CollectionAuth, "manager"), map[string]any{"password": "x"}))
	require.NoError(t, docs.Write(context.Background(), docstore.Doc(docstore.CollectionSettings, docstore.TasksDocID), map[string]any{"list": []any{}}))

	ev := <-events
	assert.Equal(t, docstore.CollectionSettings, ev.Collection)
	assert.Empty(t, events)
}

func TestUnavailableRouter(t *testing.T) {
	r := NewUnavailableRouter(errors.New("config: JWT_SECRET is required"), nil)

	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodGet, "/healthz", nil),
		httptest.NewRequest(http.MethodPost, "/auth/flows", nil),
	} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)

		var body map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "CONFIGURATION_ERROR", errorCode(body))
		assert.Equal(t, "fatal", body["error"].(map[string]any)["severity"])
	}
}
