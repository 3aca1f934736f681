package grid

import (
	"github.com/arnavshah/shiftflow-api/pkg/apperr"
	"github.com/arnavshah/shiftflow-api/pkg/docstore"
	"github.com/arnavshah/shiftflow-api/pkg/models"
	"go.uber.org/zap"
)

// Board bundles the two grid stores and the engine that guards assignments.
type Board struct {
	Roster       models.Roster
	Availability *AvailabilityStore
	Assignments  *AssignmentStore
	Engine       *Engine
}

// NewBoard builds the grid over a document store.
func NewBoard(docs docstore.Store, roster models.Roster, logger *zap.Logger) *Board {
	availability := NewAvailabilityStore(docs, logger)
	assignments := NewAssignmentStore(docs, logger)
	return &Board{
		Roster:       roster,
		Availability: availability,
		Assignments:  assignments,
		Engine:       NewEngine(availability, assignments),
	}
}

// Start subscribes both stores.
func (b *Board) Start() {
	b.Availability.Start()
	b.Assignments.Start()
}

// Close ends both subscriptions.
func (b *Board) Close() {
	b.Availability.Close()
	b.Assignments.Close()
}

// Err returns the most severe subscription failure, fatal ones first.
func (b *Board) Err() error {
	var first error
	for _, err := range []error{b.Availability.Err(), b.Assignments.Err()} {
		if err == nil {
			continue
		}
		if apperr.IsFatal(err) {
			return err
		}
		if first == nil {
			first = err
		}
	}
	return first
}

// Cell is the combined view of one grid cell.
type Cell struct {
	Key          models.CellKey            `json:"key"`
	Date         string                    `json:"date"`
	Availability models.AvailabilityRecord `json:"availability"`
	Task         string                    `json:"task,omitempty"`
}

// Row is one staff member across a month.
type Row struct {
	Staff models.StaffMember `json:"staff"`
	Cells []Cell             `json:"cells"`
}

// Rows renders the month for the given staff members.
func (b *Board) Rows(roster models.Roster, dates []string) []Row {
	availability := b.Availability.All()
	assignments := b.Assignments.All()
	rows := make([]Row, 0, len(roster))
	for _, member := range roster {
		row := Row{Staff: member, Cells: make([]Cell, 0, len(dates))}
		for _, date := range dates {
			key := models.NewCellKey(member.ID, date)
			row.Cells = append(row.Cells, Cell{
				Key:          key,
				Date:         date,
				Availability: availability[key],
				Task:         assignments[key].Task,
			})
		}
		rows = append(rows, row)
	}
	return rows
}

// Summary summarises the month over the current snapshots.
func (b *Board) Summary(dates []string) MonthSummary {
	return Summarize(b.Roster, dates, b.Availability.All(), b.Assignments.All())
}
