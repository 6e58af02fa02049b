package model

import (
	"time"
)

// Assignment status values stored on a target row. EXPIRED is intentionally
// absent: expiry is derived from EndTime at read time and never written.
const (
	StatusAssigned  = "ASSIGNED"
	StatusCompleted = "COMPLETED"
)

// Owner types issuing assignments.
const (
	OwnerSchool = "school"
	OwnerDoctor = "doctor"
)

// Assignment kinds.
const (
	KindTask       = "task"
	KindTournament = "tournament"
)

// Assignment is the shared header for one logical assignment. Per-child
// state lives on AssignmentTarget, so shared fields exist exactly once.
type Assignment struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"assignmentId"`
	OwnerID     int64     `gorm:"not null;index:idx_assignments_owner" json:"ownerId"`
	OwnerType   string    `gorm:"not null;index:idx_assignments_owner" json:"ownerType"`
	Kind        string    `gorm:"not null;default:'task'" json:"kind"`
	GradeLevel  *string   `json:"gradeLevel,omitempty"`
	Title       string    `gorm:"not null" json:"title"`
	Description string    `json:"description"`
	GameMask    int64     `gorm:"not null" json:"gameMask"`
	StartTime   time.Time `gorm:"not null" json:"startTime"`
	EndTime     time.Time `gorm:"not null" json:"endTime"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`

	Targets []AssignmentTarget `gorm:"foreignKey:AssignmentID;constraint:OnDelete:CASCADE" json:"targets,omitempty"`
}

func (Assignment) TableName() string {
	return "assignments"
}

// AssignmentTarget is one child's row under an assignment. Status is the
// only mutable field after creation.
type AssignmentTarget struct {
	ID           int64     `gorm:"primaryKey;autoIncrement" json:"targetId"`
	AssignmentID int64     `gorm:"not null;index" json:"assignmentId"`
	ChildID      int64     `gorm:"not null;index" json:"childId"`
	Status       string    `gorm:"not null;default:'ASSIGNED'" json:"status"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func (AssignmentTarget) TableName() string {
	return "assignment_targets"
}
