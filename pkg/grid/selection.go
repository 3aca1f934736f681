package grid

import (
	"context"
	"sync"

	"github.com/arnavshah/shiftflow-api/pkg/apperr"
	"github.com/arnavshah/shiftflow-api/pkg/calendar"
	"github.com/arnavshah/shiftflow-api/pkg/models"
)

// Coord is a position in the grid: a roster row and a month column.
type Coord struct {
	StaffIndex int `json:"staff_index"`
	DateIndex  int `json:"date_index"`
}

// CellResult is the outcome of one cell of a batch commit.
type CellResult struct {
	Key models.CellKey `json:"key"`
	Err error          `json:"-"`
}

// CommitResult collects every per-cell outcome of a batch commit.
type CommitResult struct {
	Cells   []CellResult
	LastErr error
}

// Applied counts the cells that were written.
func (r CommitResult) Applied() int {
	n := 0
	for _, c := range r.Cells {
		if c.Err == nil {
			n++
		}
	}
	return n
}

// Selection tracks a rectangular drag over the grid of one month.
type Selection struct {
	roster models.Roster
	dates  []string

	mu     sync.Mutex
	active bool
	start  Coord
	end    Coord
}

// NewSelection creates an idle selection over roster × dates.
func NewSelection(roster models.Roster, dates []string) *Selection {
	return &Selection{roster: roster, dates: dates}
}

// Locate resolves a staff id and date to grid coordinates.
func (s *Selection) Locate(staffID, date string) (Coord, error) {
	row := s.roster.IndexOf(staffID)
	if row < 0 {
		return Coord{}, apperr.ErrNotFound.WithMessage("unknown staff %q", staffID)
	}
	col := calendar.IndexOf(s.dates, date)
	if col < 0 {
		return Coord{}, apperr.ErrNotFound.WithMessage("date %q is not in this month", date)
	}
	return Coord{StaffIndex: row, DateIndex: col}, nil
}

func (s *Selection) inBounds(c Coord) bool {
	return c.StaffIndex >= 0 && c.StaffIndex < len(s.roster) &&
		c.DateIndex >= 0 && c.DateIndex < len(s.dates)
}

// Begin starts a drag at c. Only managers may select.
func (s *Selection) Begin(role models.Role, c Coord) error {
	if role != models.RoleManager {
		return apperr.ErrForbidden.WithMessage("only the manager can select cells")
	}
	if !s.inBounds(c) {
		return apperr.ErrValidation.WithMessage("cell (%d, %d) is outside the grid", c.StaffIndex, c.DateIndex)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = true
	s.start, s.end = c, c
	return nil
}

// Move extends the drag to c. Moves without an active drag are ignored.
func (s *Selection) Move(c Coord) error {
	if !s.inBounds(c) {
		return apperr.ErrValidation.WithMessage("cell (%d, %d) is outside the grid", c.StaffIndex, c.DateIndex)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active {
		s.end = c
	}
	return nil
}

// Cancel abandons the drag.
func (s *Selection) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = false
	s.start, s.end = Coord{}, Coord{}
}

// Active reports whether a drag is in progress.
func (s *Selection) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Bounds returns the corners of the drag as started and moved.
func (s *Selection) Bounds() (start, end Coord, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.start, s.end, s.active
}

// AffectedKeys lists every cell in the inclusive rectangle, staff major and
// date minor, both ascending. It is empty when no drag is active.
func (s *Selection) AffectedKeys() []models.CellKey {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return nil
	}
	return s.keys()
}

func (s *Selection) keys() []models.CellKey {
	r0, r1 := order(s.start.StaffIndex, s.end.StaffIndex)
	c0, c1 := order(s.start.DateIndex, s.end.DateIndex)
	keys := make([]models.CellKey, 0, (r1-r0+1)*(c1-c0+1))
	for r := r0; r <= r1; r++ {
		for c := c0; c <= c1; c++ {
			keys = append(keys, models.NewCellKey(s.roster[r].ID, s.dates[c]))
		}
	}
	return keys
}

func order(a, b int) (int, int) {
	if a > b {
		return b, a
	}
	return a, b
}

// Commit assigns task to every affected cell, one write per cell in key
// order. A failing cell does not stop the others and nothing is rolled back.
// The selection is cleared afterwards whatever the outcome.
func (s *Selection) Commit(ctx context.Context, assigner Assigner, task string) CommitResult {
	s.mu.Lock()
	var keys []models.CellKey
	if s.active {
		keys = s.keys()
	}
	s.active = false
	s.start, s.end = Coord{}, Coord{}
	s.mu.Unlock()

	var res CommitResult
	for _, key := range keys {
		err := assigner.Assign(ctx, key, task)
		if err != nil {
			res.LastErr = err
		}
		res.Cells = append(res.Cells, CellResult{Key: key, Err: err})
	}
	return res
}
