package models

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/arnavshah/shiftflow-api/pkg/apperr"
)

// ManagerID is the reserved account id that resolves to the manager role.
const ManagerID = "manager"

// DateLayout is the layout of every DateKey.
const DateLayout = "2006-01-02"

// Role of an authenticated session
type Role string

const (
	RoleStaff   Role = "staff"
	RoleManager Role = "manager"
)

// StaffMember is one row of the grid
type StaffMember struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

// Profile is the identity behind a session, either a staff member or the manager.
type Profile struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ManagerProfile is the profile of the reserved manager account.
var ManagerProfile = Profile{ID: ManagerID, Name: "管理者"}

// Session is created on successful login and lives until logout.
type Session struct {
	Profile Profile `json:"profile"`
	Role    Role    `json:"role"`
}

// IsManager reports whether the session carries the manager role.
func (s Session) IsManager() bool {
	return s.Role == RoleManager
}

// Roster is the fixed, ordered list of staff members.
type Roster []StaffMember

// DefaultRoster is used when no roster file is configured.
var DefaultRoster = Roster{
	{ID: "staff-1", Name: "田中 太郎"},
	{ID: "staff-2", Name: "佐藤 花子"},
	{ID: "staff-3", Name: "鈴木 一郎"},
	{ID: "staff-4", Name: "高橋 次郎"},
	{ID: "staff-5", Name: "伊藤 美紀"},
}

// IndexOf returns the row index of a staff id, or -1.
func (r Roster) IndexOf(id string) int {
	for i, s := range r {
		if s.ID == id {
			return i
		}
	}
	return -1
}

// NormalizeAccountID trims and lowercases a typed account id.
func NormalizeAccountID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

// Resolve maps an account id to its profile and role.
func (r Roster) Resolve(id string) (Profile, Role, bool) {
	if id == ManagerID {
		return ManagerProfile, RoleManager, true
	}
	if i := r.IndexOf(id); i >= 0 {
		return Profile{ID: r[i].ID, Name: r[i].Name}, RoleStaff, true
	}
	return Profile{}, "", false
}

// Validate checks that ids are unique, lowercase and never the reserved manager id.
func (r Roster) Validate() error {
	seen := make(map[string]bool, len(r))
	for _, s := range r {
		switch {
		case s.ID == "":
			return apperr.ErrValidation.WithMessage("roster entry %q has an empty id", s.Name)
		case s.ID != strings.ToLower(strings.TrimSpace(s.ID)):
			return apperr.ErrValidation.WithMessage("roster id %q must be lowercase without surrounding spaces", s.ID)
		case s.ID == ManagerID:
			return apperr.ErrValidation.WithMessage("roster id %q is reserved", s.ID)
		case seen[s.ID]:
			return apperr.ErrValidation.WithMessage("duplicate roster id %q", s.ID)
		}
		seen[s.ID] = true
	}
	return nil
}

// CellKey addresses one (staff, date) cell: staffID + "-" + DateKey.
type CellKey string

// NewCellKey builds the key of a cell.
func NewCellKey(staffID, date string) CellKey {
	return CellKey(staffID + "-" + date)
}

// Split recovers the staff id and date. The date is always the fixed-width
// suffix, so staff ids may themselves contain hyphens.
func (k CellKey) Split() (staffID, date string, err error) {
	s := string(k)
	n := len(DateLayout)
	if len(s) < n+2 || s[len(s)-n-1] != '-' {
		return "", "", apperr.ErrValidation.WithMessage("malformed cell key %q", s)
	}
	staffID, date = s[:len(s)-n-1], s[len(s)-n:]
	if _, err := time.Parse(DateLayout, date); err != nil {
		return "", "", apperr.ErrValidation.WithMessage("malformed date in cell key %q", s)
	}
	return staffID, date, nil
}

// AvailabilityType is a staff member's declaration for a day. The empty
// value means nothing has been declared and is stored as null.
type AvailabilityType string

const (
	AvailabilityNone    AvailabilityType = ""
	AvailabilityOK      AvailabilityType = "ok"
	AvailabilityNG      AvailabilityType = "ng"
	AvailabilityPartial AvailabilityType = "partial"
	AvailabilityOther   AvailabilityType = "other"
)

// ParseAvailabilityType accepts the four declarations or an empty string for null.
func ParseAvailabilityType(s string) (AvailabilityType, error) {
	switch t := AvailabilityType(s); t {
	case AvailabilityNone, AvailabilityOK, AvailabilityNG, AvailabilityPartial, AvailabilityOther:
		return t, nil
	}
	return "", apperr.ErrValidation.WithMessage("unknown availability type %q", s)
}

// Declared reports whether any availability has been declared.
func (t AvailabilityType) Declared() bool {
	return t != AvailabilityNone
}

// MarshalJSON renders an undeclared type as null.
func (t AvailabilityType) MarshalJSON() ([]byte, error) {
	if !t.Declared() {
		return []byte("null"), nil
	}
	return json.Marshal(string(t))
}

// AvailabilityRecord is the stored availability of one cell.
type AvailabilityRecord struct {
	Type  AvailabilityType `json:"type"`
	Hours string           `json:"hours,omitempty"`
	Note  string           `json:"note,omitempty"`
	Memo  string           `json:"memo,omitempty"`
}

// AvailabilityPatch lists the fields a write touches; nil fields are preserved.
type AvailabilityPatch struct {
	Type  *AvailabilityType `json:"type,omitempty"`
	Hours *string           `json:"hours,omitempty"`
	Note  *string           `json:"note,omitempty"`
	Memo  *string           `json:"memo,omitempty"`
}

// Apply merges the patch into r and returns the result.
func (p AvailabilityPatch) Apply(r AvailabilityRecord) AvailabilityRecord {
	if p.Type != nil {
		r.Type = *p.Type
	}
	if p.Hours != nil {
		r.Hours = *p.Hours
	}
	if p.Note != nil {
		r.Note = *p.Note
	}
	if p.Memo != nil {
		r.Memo = *p.Memo
	}
	return r
}

// Fields renders a record as a document body. A null type is written as nil.
func (r AvailabilityRecord) Fields() map[string]any {
	var typ any
	if r.Type.Declared() {
		typ = string(r.Type)
	}
	return map[string]any{
		"type":  typ,
		"hours": r.Hours,
		"note":  r.Note,
		"memo":  r.Memo,
	}
}

// AssignmentRecord holds the task of one cell; empty means unassigned.
type AssignmentRecord struct {
	Task string `json:"task"`
}

// Assigned reports whether a task is set.
func (a AssignmentRecord) Assigned() bool {
	return a.Task != ""
}

// Ptr is a helper for building patches.
func Ptr[T any](v T) *T {
	return &v
}

// String implements fmt.Stringer for log fields.
func (k CellKey) String() string {
	return string(k)
}
