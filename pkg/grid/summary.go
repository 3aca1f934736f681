package grid

import (
	"math"

	"github.com/arnavshah/shiftflow-api/pkg/models"
)

// StaffSummary is the monthly workload of one staff member.
type StaffSummary struct {
	StaffID      string         `json:"staff_id"`
	Name         string         `json:"name"`
	AssignedDays int            `json:"assigned_days"`
	Tasks        map[string]int `json:"tasks"`
	Declared     int            `json:"declared_days"`
	Unavailable  int            `json:"unavailable_days"`
}

// MonthSummary aggregates a month of the grid.
type MonthSummary struct {
	Staff         []StaffSummary `json:"staff"`
	TotalAssigned int            `json:"total_assigned"`
	FairnessScore float64        `json:"fairness_score"`
}

// Summarize counts assignments and declarations per staff member over dates.
func Summarize(
	roster models.Roster,
	dates []string,
	availability map[models.CellKey]models.AvailabilityRecord,
	assignments map[models.CellKey]models.AssignmentRecord,
) MonthSummary {
	summary := MonthSummary{Staff: make([]StaffSummary, 0, len(roster))}
	for _, member := range roster {
		row := StaffSummary{StaffID: member.ID, Name: member.Name, Tasks: map[string]int{}}
		for _, date := range dates {
			key := models.NewCellKey(member.ID, date)
			if a, ok := assignments[key]; ok && a.Assigned() {
				row.AssignedDays++
				row.Tasks[a.Task]++
			}
			if av, ok := availability[key]; ok && av.Type.Declared() {
				row.Declared++
				if av.Type == models.AvailabilityNG {
					row.Unavailable++
				}
			}
		}
		summary.TotalAssigned += row.AssignedDays
		summary.Staff = append(summary.Staff, row)
	}
	summary.FairnessScore = fairnessScore(summary.Staff)
	return summary
}

// fairnessScore is 100 when assigned days are spread evenly and falls toward
// 0 as the standard deviation approaches the mean.
func fairnessScore(staff []StaffSummary) float64 {
	if len(staff) == 0 {
		return 100.0
	}

	var sum float64
	for _, s := range staff {
		sum += float64(s.AssignedDays)
	}
	if sum == 0 {
		return 100.0
	}

	mean := sum / float64(len(staff))
	var varianceSum float64
	for _, s := range staff {
		diff := float64(s.AssignedDays) - mean
		varianceSum += diff * diff
	}
	stdDev := math.Sqrt(varianceSum / float64(len(staff)))

	score := (1.0 - stdDev/mean) * 100.0
	if score < 0 {
		return 0.0
	}
	return score
}
