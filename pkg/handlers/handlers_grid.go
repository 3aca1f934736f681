package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/arnavshah/shiftflow-api/pkg/apperr"
	"github.com/arnavshah/shiftflow-api/pkg/calendar"
	"github.com/arnavshah/shiftflow-api/pkg/grid"
	"github.com/arnavshah/shiftflow-api/pkg/models"
	"github.com/arnavshah/shiftflow-api/pkg/tasks"
	"github.com/gin-gonic/gin"
)

// monthParam reads ?month=YYYY-MM, defaulting to the current month.
func (h *Handler) monthParam(c *gin.Context, raw string) (time.Time, bool) {
	if raw == "" {
		return calendar.FirstOfMonth(h.now()), true
	}
	anchor, err := calendar.ParseMonth(raw)
	if err != nil {
		h.fail(c, err)
		return time.Time{}, false
	}
	return anchor, true
}

// visibleRoster is the whole roster for the manager and the own row for staff.
func (h *Handler) visibleRoster(s models.Session) models.Roster {
	if s.IsManager() {
		return h.Roster
	}
	if i := h.Roster.IndexOf(s.Profile.ID); i >= 0 {
		return h.Roster[i : i+1]
	}
	return models.Roster{}
}

// cellParam resolves the :staff and :date path parameters to a cell key.
func (h *Handler) cellParam(c *gin.Context) (models.CellKey, string, bool) {
	staffID := c.Param("staff")
	date := c.Param("date")
	if h.Roster.IndexOf(staffID) < 0 {
		h.fail(c, apperr.ErrNotFound.WithMessage("unknown staff %q", staffID))
		return "", "", false
	}
	if _, err := time.Parse(models.DateLayout, date); err != nil {
		h.fail(c, apperr.ErrValidation.WithMessage("date must be YYYY-MM-DD"))
		return "", "", false
	}
	return models.NewCellKey(staffID, date), staffID, true
}

func taskView(list tasks.List) []gin.H {
	out := make([]gin.H, 0, len(list))
	for _, name := range list {
		out = append(out, gin.H{"name": name, "color": list.Color(name)})
	}
	return out
}

// GetGrid renders one month of the grid.
func (h *Handler) GetGrid(c *gin.Context) {
	anchor, ok := h.monthParam(c, c.Query("month"))
	if !ok {
		return
	}
	dates := calendar.Generate(anchor)
	rows := h.Board.Rows(h.visibleRoster(sessionOf(c)), dates)
	list := h.Catalog.List()

	colors := make(map[string]string)
	for _, row := range rows {
		for _, cell := range row.Cells {
			if cell.Task != "" {
				colors[cell.Task] = list.Color(cell.Task)
			}
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"month":  calendar.FormatMonth(anchor),
		"prev":   calendar.FormatMonth(calendar.Shift(anchor, -1)),
		"next":   calendar.FormatMonth(calendar.Shift(anchor, 1)),
		"dates":  dates,
		"rows":   rows,
		"tasks":  taskView(list),
		"colors": colors,
	})
}

// GetSummary reports the monthly workload.
func (h *Handler) GetSummary(c *gin.Context) {
	anchor, ok := h.monthParam(c, c.Query("month"))
	if !ok {
		return
	}
	summary := h.Board.Summary(calendar.Generate(anchor))

	session := sessionOf(c)
	if !session.IsManager() {
		own := summary.Staff[:0:0]
		for _, s := range summary.Staff {
			if s.StaffID == session.Profile.ID {
				own = append(own, s)
			}
		}
		summary.Staff = own
	}
	c.JSON(http.StatusOK, gin.H{
		"month":   calendar.FormatMonth(anchor),
		"summary": summary,
	})
}

func (h *Handler) canEdit(c *gin.Context, staffID string) bool {
	s := sessionOf(c)
	if s.IsManager() || s.Profile.ID == staffID {
		return true
	}
	h.fail(c, apperr.ErrForbidden.WithMessage("staff can only edit their own availability"))
	return false
}

// optionalString tells an absent field from one that was sent. An explicit
// null is sent with an empty Value.
type optionalString struct {
	Set   bool
	Value string
}

func (o *optionalString) UnmarshalJSON(b []byte) error {
	o.Set = true
	if string(b) == "null" {
		o.Value = ""
		return nil
	}
	return json.Unmarshal(b, &o.Value)
}

// Ptr returns the value for a patch, nil when the field was absent.
func (o optionalString) Ptr() *string {
	if !o.Set {
		return nil
	}
	v := o.Value
	return &v
}

// PutAvailability merges the given fields into a cell's availability.
func (h *Handler) PutAvailability(c *gin.Context) {
	key, staffID, ok := h.cellParam(c)
	if !ok || !h.canEdit(c, staffID) {
		return
	}
	var req struct {
		Type  optionalString `json:"type"`
		Hours optionalString `json:"hours"`
		Note  optionalString `json:"note"`
		Memo  optionalString `json:"memo"`
	}
	if !h.bind(c, &req) {
		return
	}
	if !req.Type.Set && !req.Hours.Set && !req.Note.Set && !req.Memo.Set {
		h.fail(c, apperr.ErrValidation.WithMessage("nothing to update"))
		return
	}

	patch := models.AvailabilityPatch{Hours: req.Hours.Ptr(), Note: req.Note.Ptr(), Memo: req.Memo.Ptr()}
	if req.Type.Set {
		typ, err := models.ParseAvailabilityType(req.Type.Value)
		if err != nil {
			h.fail(c, err)
			return
		}
		patch.Type = &typ
	}
	if err := h.Board.Availability.Set(c.Request.Context(), key, patch); err != nil {
		h.fail(c, err)
		return
	}
	h.renderAvailability(c, key)
}

// ClearAvailability resets a cell's declaration, keeping its memo.
func (h *Handler) ClearAvailability(c *gin.Context) {
	key, staffID, ok := h.cellParam(c)
	if !ok || !h.canEdit(c, staffID) {
		return
	}
	if err := h.Board.Availability.Clear(c.Request.Context(), key); err != nil {
		h.fail(c, err)
		return
	}
	h.renderAvailability(c, key)
}

func (h *Handler) renderAvailability(c *gin.Context, key models.CellKey) {
	rec, _ := h.Board.Availability.Availability(key)
	c.JSON(http.StatusOK, gin.H{"key": key, "availability": rec})
}

// ToggleAssignment assigns the selected task to a cell, or unassigns it
// when the cell already holds that task.
func (h *Handler) ToggleAssignment(c *gin.Context) {
	key, _, ok := h.cellParam(c)
	if !ok {
		return
	}
	var req struct {
		Task string `json:"task"`
	}
	if !h.bind(c, &req) {
		return
	}
	selected := strings.TrimSpace(req.Task)
	if selected == "" {
		h.fail(c, apperr.ErrValidation.WithMessage("task is required"))
		return
	}
	if !h.Catalog.List().Contains(selected) {
		h.fail(c, apperr.ErrTaskNotFound.WithMessage("task %q not found", selected))
		return
	}

	task := selected
	if current, _ := h.Board.Assignments.Assignment(key); current.Task == selected {
		task = ""
	}
	if err := h.Board.Engine.Assign(c.Request.Context(), key, task); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"key": key, "task": task})
}

// ClearAssignment unassigns a cell.
func (h *Handler) ClearAssignment(c *gin.Context) {
	key, _, ok := h.cellParam(c)
	if !ok {
		return
	}
	if err := h.Board.Engine.Assign(c.Request.Context(), key, ""); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"key": key, "task": ""})
}

type selection struct {
	month string
	sel   *grid.Selection
}

type cellRequest struct {
	StaffID string `json:"staff_id" binding:"required"`
	Date    string `json:"date" binding:"required"`
}

func (h *Handler) renderSelection(c *gin.Context, s *selection) {
	start, end, _ := s.sel.Bounds()
	c.JSON(http.StatusOK, gin.H{
		"month": s.month,
		"start": start,
		"end":   end,
		"keys":  s.sel.AffectedKeys(),
	})
}

func (h *Handler) currentSelection(c *gin.Context) (*selection, bool) {
	h.mu.Lock()
	s, ok := h.selections[sessionOf(c).Profile.ID]
	h.mu.Unlock()
	if !ok {
		h.fail(c, apperr.ErrNotFound.WithMessage("no selection in progress"))
	}
	return s, ok
}

// StartSelection begins a drag at one cell of a month.
func (h *Handler) StartSelection(c *gin.Context) {
	var req struct {
		cellRequest
		Month string `json:"month"`
	}
	if !h.bind(c, &req) {
		return
	}
	anchor, ok := h.monthParam(c, req.Month)
	if !ok {
		return
	}
	s := &selection{
		month: calendar.FormatMonth(anchor),
		sel:   grid.NewSelection(h.Roster, calendar.Generate(anchor)),
	}
	coord, err := s.sel.Locate(req.StaffID, req.Date)
	if err != nil {
		h.fail(c, err)
		return
	}
	if err := s.sel.Begin(sessionOf(c).Role, coord); err != nil {
		h.fail(c, err)
		return
	}

	h.mu.Lock()
	h.selections[sessionOf(c).Profile.ID] = s
	h.mu.Unlock()
	h.renderSelection(c, s)
}

// MoveSelection extends the drag to another cell.
func (h *Handler) MoveSelection(c *gin.Context) {
	var req cellRequest
	if !h.bind(c, &req) {
		return
	}
	s, ok := h.currentSelection(c)
	if !ok {
		return
	}
	coord, err := s.sel.Locate(req.StaffID, req.Date)
	if err != nil {
		h.fail(c, err)
		return
	}
	if err := s.sel.Move(coord); err != nil {
		h.fail(c, err)
		return
	}
	h.renderSelection(c, s)
}

// CommitSelection assigns a task to every selected cell. An empty task
// unassigns them.
func (h *Handler) CommitSelection(c *gin.Context) {
	var req struct {
		Task string `json:"task"`
	}
	if !h.bind(c, &req) {
		return
	}
	task := strings.TrimSpace(req.Task)
	if task != "" && !h.Catalog.List().Contains(task) {
		h.fail(c, apperr.ErrTaskNotFound.WithMessage("task %q not found", task))
		return
	}
	s, ok := h.currentSelection(c)
	if !ok {
		return
	}

	h.mu.Lock()
	delete(h.selections, sessionOf(c).Profile.ID)
	h.mu.Unlock()

	res := s.sel.Commit(c.Request.Context(), h.Board.Engine, task)
	cells := make([]gin.H, 0, len(res.Cells))
	for _, cell := range res.Cells {
		entry := gin.H{"key": cell.Key, "ok": cell.Err == nil}
		if cell.Err != nil {
			appErr := apperr.From(cell.Err)
			entry["code"] = appErr.Code
			entry["message"] = appErr.Message
		}
		cells = append(cells, entry)
	}
	body := gin.H{
		"task":    task,
		"applied": res.Applied(),
		"failed":  len(res.Cells) - res.Applied(),
		"cells":   cells,
	}
	if res.LastErr != nil {
		appErr := apperr.From(res.LastErr)
		body["last_error"] = gin.H{
			"code":             appErr.Code,
			"message":          appErr.Message,
			"severity":         appErr.Severity,
			"dismiss_after_ms": h.ToastDuration.Milliseconds(),
		}
	}
	c.JSON(http.StatusOK, body)
}

// CancelSelection abandons the drag.
func (h *Handler) CancelSelection(c *gin.Context) {
	id := sessionOf(c).Profile.ID
	h.mu.Lock()
	s, ok := h.selections[id]
	delete(h.selections, id)
	h.mu.Unlock()
	if ok {
		s.sel.Cancel()
	}
	c.Status(http.StatusNoContent)
}

// ListTasks returns the catalog with colors.
func (h *Handler) ListTasks(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tasks": taskView(h.Catalog.List())})
}

// AddTask appends a task to the catalog.
func (h *Handler) AddTask(c *gin.Context) {
	var req struct {
		Name string `json:"name"`
	}
	if !h.bind(c, &req) {
		return
	}
	if err := h.Catalog.Add(c.Request.Context(), req.Name); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"tasks": taskView(h.Catalog.List())})
}

// RemoveTask deletes a task. ?selected= names the caller's current
// selection so the reply can say what to select next.
func (h *Handler) RemoveTask(c *gin.Context) {
	name := c.Param("name")
	if err := h.Catalog.Remove(c.Request.Context(), name); err != nil {
		h.fail(c, err)
		return
	}
	list := h.Catalog.List()
	c.JSON(http.StatusOK, gin.H{
		"tasks":    taskView(list),
		"selected": tasks.NextSelection(list, name, c.Query("selected")),
	})
}
