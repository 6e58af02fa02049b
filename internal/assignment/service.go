// Package assignment owns the fan-out/regroup model: one logical assignment
// becomes a header row plus one target row per child, and reads group them
// back into a single view.
package assignment

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/nuruplay/api/internal/games"
	"github.com/nuruplay/api/internal/model"
	"gorm.io/gorm"
)

var (
	ErrNotFound       = errors.New("assignment not found")
	ErrNoChildren     = errors.New("at least one child must be assigned")
	ErrNoKnownGames   = errors.New("no known games selected")
	ErrBadTimeWindow  = errors.New("start time must be before end time")
	ErrBadStatus      = errors.New("unknown status")
	ErrAlreadyDone    = errors.New("completed assignments cannot change status")
	ErrUnknownOwner   = errors.New("unknown owner type")
	ErrMissingTargets = errors.New("no children resolved for the grade level")
)

// SessionDeleter is what deletion needs from the game-session gateway.
type SessionDeleter interface {
	DeleteSessions(ctx context.Context, gameKey string, assignmentID int64) error
	Backends() []string
}

// GradeDirectory resolves a school grade into child ids for tournament
// fan-out.
type GradeDirectory interface {
	ChildrenByGrade(ctx context.Context, schoolID int64, grade string) ([]int64, error)
}

type Service struct {
	db        *gorm.DB
	sessions  SessionDeleter
	directory GradeDirectory
}

func NewService(db *gorm.DB, sessions SessionDeleter, directory GradeDirectory) *Service {
	return &Service{db: db, sessions: sessions, directory: directory}
}

type CreateInput struct {
	OwnerID     int64
	OwnerType   string
	Kind        string
	GradeLevel  string
	ChildIDs    []int64
	Title       string
	Description string
	GameKeys    []string
	StartTime   time.Time
	EndTime     time.Time
}

// ChildStatus is one child's slice of a grouped assignment.
type ChildStatus struct {
	TargetID  int64     `json:"targetId"`
	ChildID   int64     `json:"childId"`
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Group is the regrouped logical view of one assignment: shared content
// once, plus the per-child status list.
type Group struct {
	AssignmentID   int64         `json:"assignmentId"`
	OwnerID        int64         `json:"ownerId"`
	OwnerType      string        `json:"ownerType"`
	Kind           string        `json:"kind"`
	GradeLevel     *string       `json:"gradeLevel,omitempty"`
	Title          string        `json:"title"`
	Description    string        `json:"description"`
	GameMask       int64         `json:"gameMask"`
	SelectedGames  []string      `json:"selectedGames"`
	StartTime      time.Time     `json:"startTime"`
	EndTime        time.Time     `json:"endTime"`
	Status         string        `json:"status"`
	CreatedAt      time.Time     `json:"createdAt"`
	UpdatedAt      time.Time     `json:"updatedAt"`
	Children       []ChildStatus `json:"assignedChildren"`
	TotalAssigned  int           `json:"totalAssigned"`
	CompletedCount int           `json:"completedCount"`
}

// ChildRow is the flat per-child view: header content joined onto one
// target. The per-child listing keeps this shape since a child has exactly
// one row per assignment.
type ChildRow struct {
	TargetID      int64     `json:"targetId"`
	AssignmentID  int64     `json:"assignmentId"`
	OwnerID       int64     `json:"ownerId"`
	OwnerType     string    `json:"ownerType"`
	Kind          string    `json:"kind"`
	ChildID       int64     `json:"childId"`
	GameMask      int64     `json:"gameMask"`
	SelectedGames []string  `json:"selectedGames"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	StartTime     time.Time `json:"startTime"`
	EndTime       time.Time `json:"endTime"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Details is the read-time projection for an assignment's detail page.
// Nothing here is persisted; counts and status are recomputed per request.
type Details struct {
	AssignmentID   int64    `json:"assignmentId"`
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	StartDate      string   `json:"startDate"`
	EndDate        string   `json:"endDate"`
	AssignedDate   string   `json:"assignedDate"`
	Status         string   `json:"status"`
	TotalAssigned  int      `json:"totalAssigned"`
	CompletedCount int      `json:"completedCount"`
	SelectedGames  []string `json:"selectedGames"`
}

// Create validates the request, resolves grade-level targeting if used, and
// inserts the header plus all target rows in one transaction: either every
// child gets a row or none do.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Group, error) {
	if in.OwnerType != model.OwnerSchool && in.OwnerType != model.OwnerDoctor {
		return nil, ErrUnknownOwner
	}
	if !in.StartTime.Before(in.EndTime) {
		return nil, ErrBadTimeWindow
	}

	mask := games.Encode(in.GameKeys)
	if mask == 0 {
		return nil, ErrNoKnownGames
	}

	childIDs := in.ChildIDs
	if len(childIDs) == 0 && in.GradeLevel != "" && s.directory != nil {
		ids, err := s.directory.ChildrenByGrade(ctx, in.OwnerID, in.GradeLevel)
		if err != nil {
			return nil, fmt.Errorf("resolve grade %q: %w", in.GradeLevel, err)
		}
		childIDs = ids
		if len(childIDs) == 0 {
			return nil, ErrMissingTargets
		}
	}
	childIDs = dedupe(childIDs)
	if len(childIDs) == 0 {
		return nil, ErrNoChildren
	}

	kind := in.Kind
	if kind == "" {
		kind = model.KindTask
	}

	asn := model.Assignment{
		OwnerID:     in.OwnerID,
		OwnerType:   in.OwnerType,
		Kind:        kind,
		Title:       in.Title,
		Description: in.Description,
		GameMask:    int64(mask),
		StartTime:   in.StartTime,
		EndTime:     in.EndTime,
	}
	if in.GradeLevel != "" {
		asn.GradeLevel = &in.GradeLevel
	}
	for _, childID := range childIDs {
		asn.Targets = append(asn.Targets, model.AssignmentTarget{
			ChildID: childID,
			Status:  model.StatusAssigned,
		})
	}

	if err := s.db.WithContext(ctx).Create(&asn).Error; err != nil {
		return nil, err
	}

	return groupOf(&asn), nil
}

// Get loads one assignment header with its targets.
func (s *Service) Get(ctx context.Context, assignmentID int64) (*model.Assignment, error) {
	var asn model.Assignment
	err := s.db.WithContext(ctx).Preload("Targets").First(&asn, "id = ?", assignmentID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &asn, nil
}

// ListByOwner returns the owner's assignments regrouped into logical views.
// kind narrows to tasks or tournaments when non-empty.
func (s *Service) ListByOwner(ctx context.Context, ownerID int64, ownerType, kind string) ([]Group, error) {
	q := s.db.WithContext(ctx).Preload("Targets").
		Where("owner_id = ? AND owner_type = ?", ownerID, ownerType).
		Order("created_at DESC")
	if kind != "" {
		q = q.Where("kind = ?", kind)
	}

	var asns []model.Assignment
	if err := q.Find(&asns).Error; err != nil {
		return nil, err
	}

	groups := make([]Group, 0, len(asns))
	for i := range asns {
		groups = append(groups, *groupOf(&asns[i]))
	}
	return groups, nil
}

// ListByChild returns the child's flat rows across all owners.
func (s *Service) ListByChild(ctx context.Context, childID int64) ([]ChildRow, error) {
	var targets []model.AssignmentTarget
	err := s.db.WithContext(ctx).
		Where("child_id = ?", childID).
		Order("created_at DESC").
		Find(&targets).Error
	if err != nil {
		return nil, err
	}
	return s.rowsFor(ctx, targets)
}

// ListByOwnerAndChild returns the flat rows one owner assigned to one child.
func (s *Service) ListByOwnerAndChild(ctx context.Context, ownerID int64, ownerType string, childID int64) ([]ChildRow, error) {
	var targets []model.AssignmentTarget
	err := s.db.WithContext(ctx).
		Joins("JOIN assignments ON assignments.id = assignment_targets.assignment_id").
		Where("assignments.owner_id = ? AND assignments.owner_type = ? AND assignment_targets.child_id = ?",
			ownerID, ownerType, childID).
		Order("assignment_targets.created_at DESC").
		Find(&targets).Error
	if err != nil {
		return nil, err
	}
	return s.rowsFor(ctx, targets)
}

// ListByChildAndGame filters the child's rows to assignments whose mask
// intersects the given one.
func (s *Service) ListByChildAndGame(ctx context.Context, childID int64, mask games.Mask) ([]ChildRow, error) {
	rows, err := s.ListByChild(ctx, childID)
	if err != nil {
		return nil, err
	}
	filtered := rows[:0]
	for _, row := range rows {
		if games.Mask(row.GameMask)&mask != 0 {
			filtered = append(filtered, row)
		}
	}
	return filtered, nil
}

// ListByOwnerAndGame filters the owner's groups to assignments whose mask
// intersects the given one.
func (s *Service) ListByOwnerAndGame(ctx context.Context, ownerID int64, ownerType string, mask games.Mask) ([]Group, error) {
	groups, err := s.ListByOwner(ctx, ownerID, ownerType, "")
	if err != nil {
		return nil, err
	}
	filtered := groups[:0]
	for _, g := range groups {
		if games.Mask(g.GameMask)&mask != 0 {
			filtered = append(filtered, g)
		}
	}
	return filtered, nil
}

// UpdateStatus moves exactly one target row. The only stored transition is
// ASSIGNED to COMPLETED; completion is terminal.
func (s *Service) UpdateStatus(ctx context.Context, targetID int64, status string) (*ChildRow, error) {
	if status != model.StatusAssigned && status != model.StatusCompleted {
		return nil, ErrBadStatus
	}

	var target model.AssignmentTarget
	err := s.db.WithContext(ctx).First(&target, "id = ?", targetID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if target.Status == model.StatusCompleted && status != model.StatusCompleted {
		return nil, ErrAlreadyDone
	}

	target.Status = status
	if err := s.db.WithContext(ctx).Save(&target).Error; err != nil {
		return nil, err
	}

	rows, err := s.rowsFor(ctx, []model.AssignmentTarget{target})
	if err != nil {
		return nil, err
	}
	return &rows[0], nil
}

// Delete removes the header and every target row in one transaction, then
// asks each backend to drop the assignment's sessions. A backend refusing
// the delete is logged and skipped; the local rows stay gone either way.
func (s *Service) Delete(ctx context.Context, assignmentID int64) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&model.Assignment{}, "id = ?", assignmentID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return tx.Delete(&model.AssignmentTarget{}, "assignment_id = ?", assignmentID).Error
	})
	if err != nil {
		return err
	}

	for _, backend := range s.sessions.Backends() {
		if err := s.sessions.DeleteSessions(ctx, backend, assignmentID); err != nil {
			log.Printf("Warning: failed to delete sessions for assignment %d from %s: %v",
				assignmentID, backend, err)
		}
	}
	return nil
}

// Details recomputes the detail projection from current rows: counts, game
// display names, and a presentation status of completed, expired or active.
func (s *Service) Details(ctx context.Context, assignmentID, ownerID int64) (*Details, error) {
	var asn model.Assignment
	err := s.db.WithContext(ctx).Preload("Targets").
		First(&asn, "id = ? AND owner_id = ?", assignmentID, ownerID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	total := len(asn.Targets)
	completed := 0
	for _, t := range asn.Targets {
		if t.Status == model.StatusCompleted {
			completed++
		}
	}

	status := "active"
	if total > 0 && completed == total {
		status = "completed"
	} else if asn.EndTime.Before(time.Now()) {
		status = "expired"
	}

	return &Details{
		AssignmentID:   asn.ID,
		Title:          asn.Title,
		Description:    asn.Description,
		StartDate:      asn.StartTime.Format(time.RFC3339),
		EndDate:        asn.EndTime.Format(time.RFC3339),
		AssignedDate:   asn.CreatedAt.Format(time.RFC3339),
		Status:         status,
		TotalAssigned:  total,
		CompletedCount: completed,
		SelectedGames:  games.Mask(asn.GameMask).DisplayNames(),
	}, nil
}

func (s *Service) rowsFor(ctx context.Context, targets []model.AssignmentTarget) ([]ChildRow, error) {
	if len(targets) == 0 {
		return []ChildRow{}, nil
	}

	ids := make([]int64, 0, len(targets))
	for _, t := range targets {
		ids = append(ids, t.AssignmentID)
	}

	var headers []model.Assignment
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&headers).Error; err != nil {
		return nil, err
	}
	byID := make(map[int64]model.Assignment, len(headers))
	for _, h := range headers {
		byID[h.ID] = h
	}

	rows := make([]ChildRow, 0, len(targets))
	for _, t := range targets {
		h, ok := byID[t.AssignmentID]
		if !ok {
			// Orphaned target; cmd/audit flags these.
			continue
		}
		rows = append(rows, ChildRow{
			TargetID:      t.ID,
			AssignmentID:  h.ID,
			OwnerID:       h.OwnerID,
			OwnerType:     h.OwnerType,
			Kind:          h.Kind,
			ChildID:       t.ChildID,
			GameMask:      h.GameMask,
			SelectedGames: games.Mask(h.GameMask).Keys(),
			Title:         h.Title,
			Description:   h.Description,
			StartTime:     h.StartTime,
			EndTime:       h.EndTime,
			Status:        t.Status,
			CreatedAt:     t.CreatedAt,
			UpdatedAt:     t.UpdatedAt,
		})
	}
	return rows, nil
}

func groupOf(asn *model.Assignment) *Group {
	g := &Group{
		AssignmentID:  asn.ID,
		OwnerID:       asn.OwnerID,
		OwnerType:     asn.OwnerType,
		Kind:          asn.Kind,
		GradeLevel:    asn.GradeLevel,
		Title:         asn.Title,
		Description:   asn.Description,
		GameMask:      asn.GameMask,
		SelectedGames: games.Mask(asn.GameMask).Keys(),
		StartTime:     asn.StartTime,
		EndTime:       asn.EndTime,
		CreatedAt:     asn.CreatedAt,
		UpdatedAt:     asn.UpdatedAt,
		TotalAssigned: len(asn.Targets),
	}

	for _, t := range asn.Targets {
		g.Children = append(g.Children, ChildStatus{
			TargetID:  t.ID,
			ChildID:   t.ChildID,
			Status:    t.Status,
			UpdatedAt: t.UpdatedAt,
		})
		if t.Status == model.StatusCompleted {
			g.CompletedCount++
		}
	}

	// Representative status of the group view: the first row's.
	if len(asn.Targets) > 0 {
		g.Status = asn.Targets[0].Status
	} else {
		g.Status = model.StatusAssigned
	}

	return g
}

func dedupe(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
