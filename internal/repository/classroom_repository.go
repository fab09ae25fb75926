package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/class-scheduling-api/internal/models"
)

const classroomColumns = "id, room_number, capacity, active, created_at, updated_at"

// ClassroomRepository manages persistence for classrooms.
type ClassroomRepository struct {
	db *sqlx.DB
}

// NewClassroomRepository constructs a ClassroomRepository.
func NewClassroomRepository(db *sqlx.DB) *ClassroomRepository {
	return &ClassroomRepository{db: db}
}

// List returns classrooms matching filters along with total count.
func (r *ClassroomRepository) List(ctx context.Context, filter models.ClassroomFilter) ([]models.Classroom, int, error) {
	var where whereBuilder
	if filter.Active != nil {
		where.add("active = ?", *filter.Active)
	}
	if filter.Search != "" {
		where.add("LOWER(room_number) LIKE ?", "%"+strings.ToLower(filter.Search)+"%")
	}
	base := "FROM classrooms" + where.clause()

	order := orderBy(map[string]string{
		"room_number": "room_number",
		"capacity":    "capacity",
		"created_at":  "created_at",
	}, filter.SortBy, "room_number", filter.SortOrder)
	limit, offset := pageWindow(filter.Page, filter.PageSize)

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s LIMIT %d OFFSET %d", classroomColumns, base, order, limit, offset)
	var rooms []models.Classroom
	if err := r.db.SelectContext(ctx, &rooms, query, where.args...); err != nil {
		return nil, 0, fmt.Errorf("list classrooms: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, where.args...); err != nil {
		return nil, 0, fmt.Errorf("count classrooms: %w", err)
	}
	return rooms, total, nil
}

// FindByID fetches a classroom by ID.
func (r *ClassroomRepository) FindByID(ctx context.Context, id string) (*models.Classroom, error) {
	var room models.Classroom
	if err := r.db.GetContext(ctx, &room, "SELECT "+classroomColumns+" FROM classrooms WHERE id = $1", id); err != nil {
		return nil, err
	}
	return &room, nil
}

// ExistsByRoomNumber checks whether another classroom already uses roomNumber.
func (r *ClassroomRepository) ExistsByRoomNumber(ctx context.Context, roomNumber, excludeID string) (bool, error) {
	query := "SELECT 1 FROM classrooms WHERE LOWER(room_number) = LOWER($1)"
	args := []interface{}{roomNumber}
	if excludeID != "" {
		query += " AND id <> $2"
		args = append(args, excludeID)
	}
	var exists int
	if err := r.db.GetContext(ctx, &exists, query+" LIMIT 1", args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check classroom room number: %w", err)
	}
	return true, nil
}

// Create inserts a classroom.
func (r *ClassroomRepository) Create(ctx context.Context, room *models.Classroom) error {
	if room.ID == "" {
		room.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	room.CreatedAt = now
	room.UpdatedAt = now
	const query = `INSERT INTO classrooms (id, room_number, capacity, active, created_at, updated_at)
		VALUES (:id, :room_number, :capacity, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, room); err != nil {
		return fmt.Errorf("create classroom: %w", err)
	}
	return nil
}

// Update modifies a classroom.
func (r *ClassroomRepository) Update(ctx context.Context, room *models.Classroom) error {
	room.UpdatedAt = time.Now().UTC()
	const query = `UPDATE classrooms SET room_number = :room_number, capacity = :capacity, active = :active, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, room); err != nil {
		return fmt.Errorf("update classroom: %w", err)
	}
	return nil
}

// Delete removes a classroom. Rooms referenced by schedules are rejected by the foreign key.
func (r *ClassroomRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM classrooms WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete classroom: %w", err)
	}
	return affectedOrNotFound(res)
}

func affectedOrNotFound(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
