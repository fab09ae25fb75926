package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/class-scheduling-api/internal/models"
	appErrors "github.com/noah-isme/class-scheduling-api/pkg/errors"
	"github.com/noah-isme/class-scheduling-api/pkg/validation"
)

type classroomRepository interface {
	List(ctx context.Context, filter models.ClassroomFilter) ([]models.Classroom, int, error)
	FindByID(ctx context.Context, id string) (*models.Classroom, error)
	ExistsByRoomNumber(ctx context.Context, roomNumber, excludeID string) (bool, error)
	Create(ctx context.Context, room *models.Classroom) error
	Update(ctx context.Context, room *models.Classroom) error
	Delete(ctx context.Context, id string) error
}

// ClassroomRequest is the payload for creating or updating a classroom.
type ClassroomRequest struct {
	RoomNumber string `json:"room_number" validate:"required,max=20"`
	Capacity   int    `json:"capacity" validate:"required,gt=0"`
	Active     *bool  `json:"active"`
}

// ClassroomService manages rooms. Inactive rooms cannot receive new schedules.
type ClassroomService struct {
	repo      classroomRepository
	audit     auditLogWriter
	cache     *CacheService
	validator *validation.Validator
	logger    *zap.Logger
}

// NewClassroomService constructs a ClassroomService.
func NewClassroomService(repo classroomRepository, audit auditLogWriter, cacheSvc *CacheService, validate *validation.Validator, logger *zap.Logger) *ClassroomService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClassroomService{repo: repo, audit: audit, cache: cacheSvc, validator: newValidator(validate), logger: logger}
}

// List returns classrooms plus pagination.
func (s *ClassroomService) List(ctx context.Context, filter models.ClassroomFilter) ([]models.Classroom, *models.Pagination, error) {
	rooms, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, internalError(err, "failed to list classrooms")
	}
	return rooms, newPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns a classroom by id.
func (s *ClassroomService) Get(ctx context.Context, id string) (*models.Classroom, error) {
	room, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "classroom not found", "failed to load classroom")
	}
	return room, nil
}

// Create registers a classroom.
func (s *ClassroomService) Create(ctx context.Context, req ClassroomRequest, actor Actor) (*models.Classroom, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}
	room := &models.Classroom{RoomNumber: strings.TrimSpace(req.RoomNumber), Capacity: req.Capacity, Active: true}
	if req.Active != nil {
		room.Active = *req.Active
	}
	if err := s.ensureUniqueRoom(ctx, room.RoomNumber, ""); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, room); err != nil {
		return nil, writeError(err, "room number already exists", "", "failed to create classroom")
	}
	recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionCreate, "classroom", room.ID, room)
	return room, nil
}

// Update modifies a classroom.
func (s *ClassroomService) Update(ctx context.Context, id string, req ClassroomRequest, actor Actor) (*models.Classroom, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}
	room, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	roomNumber := strings.TrimSpace(req.RoomNumber)
	if err := s.ensureUniqueRoom(ctx, roomNumber, id); err != nil {
		return nil, err
	}
	room.RoomNumber = roomNumber
	room.Capacity = req.Capacity
	if req.Active != nil {
		room.Active = *req.Active
	}
	return room, s.save(ctx, room, actor)
}

// Toggle flips the active flag of a classroom.
func (s *ClassroomService) Toggle(ctx context.Context, id string, actor Actor) (*models.Classroom, error) {
	room, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	room.Active = !room.Active
	return room, s.save(ctx, room, actor)
}

// Delete removes a classroom that no schedule references.
func (s *ClassroomService) Delete(ctx context.Context, id string, actor Actor) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return deleteError(err, "classroom is used by existing schedules", "classroom not found", "failed to delete classroom")
	}
	s.cache.InvalidateScheduling(ctx)
	recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionDelete, "classroom", id, nil)
	return nil
}

func (s *ClassroomService) save(ctx context.Context, room *models.Classroom, actor Actor) error {
	if err := s.repo.Update(ctx, room); err != nil {
		return writeError(err, "room number already exists", "classroom not found", "failed to update classroom")
	}
	// room numbers appear in cached schedule and timetable payloads
	s.cache.InvalidateScheduling(ctx)
	recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionUpdate, "classroom", room.ID, room)
	return nil
}

func (s *ClassroomService) ensureUniqueRoom(ctx context.Context, roomNumber, excludeID string) error {
	exists, err := s.repo.ExistsByRoomNumber(ctx, roomNumber, excludeID)
	if err != nil {
		return internalError(err, "failed to check room number")
	}
	if exists {
		return appErrors.Clone(appErrors.ErrConflict, "room number already exists")
	}
	return nil
}
