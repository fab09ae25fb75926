package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/class-scheduling-api/internal/conflict"
	"github.com/noah-isme/class-scheduling-api/internal/models"
	"github.com/noah-isme/class-scheduling-api/pkg/database"
	appErrors "github.com/noah-isme/class-scheduling-api/pkg/errors"
	"github.com/noah-isme/class-scheduling-api/pkg/validation"
)

const defaultPageSize = 20

// Actor identifies the caller of a mutating operation for audit purposes.
type Actor struct {
	UserID    string
	Role      models.UserRole
	IP        string
	UserAgent string
}

// IsAdmin reports whether the actor holds an administrative role.
func (a Actor) IsAdmin() bool {
	return a.Role == models.RoleAdmin || a.Role == models.RoleSuperAdmin
}

type auditLogWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// ConflictDetails is the error detail payload of a rejected schedule or enrollment.
type ConflictDetails struct {
	Conflicts conflict.Report `json:"conflicts"`
	Messages  []string        `json:"messages"`
}

// CheckResult is returned by dry-run conflict checks.
type CheckResult struct {
	HasConflict bool            `json:"has_conflict"`
	Conflicts   conflict.Report `json:"conflicts"`
	Messages    []string        `json:"messages"`
}

func newConflictDetails(report conflict.Report) ConflictDetails {
	if report == nil {
		report = conflict.Report{}
	}
	return ConflictDetails{Conflicts: report, Messages: report.Messages()}
}

func newCheckResult(report conflict.Report) *CheckResult {
	details := newConflictDetails(report)
	return &CheckResult{HasConflict: !report.Empty(), Conflicts: details.Conflicts, Messages: details.Messages}
}

func newValidator(v *validation.Validator) *validation.Validator {
	if v == nil {
		return validation.New()
	}
	return v
}

func newPagination(page, size, total int) *models.Pagination {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = defaultPageSize
	}
	return &models.Pagination{Page: page, PageSize: size, TotalCount: total}
}

func internalError(err error, message string) *appErrors.Error {
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}

// lookupError maps sql.ErrNoRows to NOT_FOUND and anything else to INTERNAL_ERROR.
func lookupError(err error, notFound, failure string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, notFound)
	}
	return internalError(err, failure)
}

// writeError maps unique violations to CONFLICT and missing rows to NOT_FOUND.
func writeError(err error, duplicate, notFound, failure string) error {
	if _, ok := database.IsUniqueViolation(err); ok {
		return appErrors.Clone(appErrors.ErrConflict, duplicate)
	}
	if notFound != "" && errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, notFound)
	}
	return internalError(err, failure)
}

// deleteError maps foreign key violations to CONFLICT since the row is still referenced.
func deleteError(err error, inUse, notFound, failure string) error {
	if database.IsForeignKeyViolation(err) {
		return appErrors.Clone(appErrors.ErrConflict, inUse)
	}
	return writeError(err, inUse, notFound, failure)
}

func validationError(message string, details interface{}) *appErrors.Error {
	return appErrors.WithDetails(appErrors.Clone(appErrors.ErrValidation, message), details)
}

// candidateError renders a conflict.ValidationError as VALIDATION_ERROR.
func candidateError(err error) error {
	var verr *conflict.ValidationError
	if !errors.As(err, &verr) {
		return internalError(err, "failed to validate schedule")
	}
	problems := make([]string, len(verr.Problems))
	for i, p := range verr.Problems {
		problems[i] = p.Error()
	}
	return validationError("invalid schedule", map[string]interface{}{"problems": problems})
}

func normalizeOptional(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func stringPtr(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

// recordAudit writes an audit entry. Failures are logged and never fail the request.
func recordAudit(ctx context.Context, repo auditLogWriter, logger *zap.Logger, actor Actor, action, resource, resourceID string, payload interface{}) {
	if repo == nil {
		return
	}
	var body []byte
	if payload != nil {
		body, _ = json.Marshal(payload)
	}
	entry := &models.AuditLog{
		UserID:     stringPtr(actor.UserID),
		Action:     action,
		Resource:   resource,
		ResourceID: stringPtr(resourceID),
		NewValues:  body,
		IPAddress:  actor.IP,
		UserAgent:  actor.UserAgent,
	}
	if err := repo.CreateAuditLog(ctx, entry); err != nil {
		logger.Warn("failed to write audit log", zap.String("action", action), zap.String("resource", resource), zap.Error(err))
	}
}

// slotFromDetail converts a stored schedule into the checker's view.
func slotFromDetail(d models.ScheduleDetail) conflict.Slot {
	return conflict.Slot{
		ID: d.ID,
		Subject: conflict.SubjectRef{
			ID:      d.SubjectID,
			Name:    d.SubjectName,
			Teacher: conflict.TeacherRef{ID: d.TeacherID, FullName: d.TeacherName},
		},
		Classroom: conflict.ClassroomRef{ID: d.ClassroomID, RoomNumber: d.RoomNumber},
		Weekdays:  d.Days,
		Start:     d.StartTime,
		End:       d.EndTime,
	}
}

func slotsFromDetails(details []models.ScheduleDetail) []conflict.Slot {
	slots := make([]conflict.Slot, len(details))
	for i, d := range details {
		slots[i] = slotFromDetail(d)
	}
	return slots
}

func subjectRef(s models.SubjectDetail) conflict.SubjectRef {
	return conflict.SubjectRef{
		ID:      s.ID,
		Name:    s.Name,
		Teacher: conflict.TeacherRef{ID: s.TeacherID, FullName: s.TeacherName},
	}
}

// parseWeekdays parses codes or names into an ordered set.
func parseWeekdays(raw []string) (models.WeekdaySet, error) {
	days := make([]models.Weekday, 0, len(raw))
	for _, r := range raw {
		d, err := models.ParseWeekday(r)
		if err != nil {
			return nil, err
		}
		days = append(days, d)
	}
	return models.NewWeekdaySet(days...), nil
}
