package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/class-scheduling-api/internal/models"
	"github.com/noah-isme/class-scheduling-api/internal/service"
	appErrors "github.com/noah-isme/class-scheduling-api/pkg/errors"
	"github.com/noah-isme/class-scheduling-api/pkg/response"
)

type conflictAuditService interface {
	Start(ctx context.Context, actor service.Actor) (*models.ConflictAudit, error)
	Get(ctx context.Context, id string) (*models.ConflictAudit, error)
	ResolveDownload(ctx context.Context, token string) (*service.ConflictAuditDownload, error)
}

// ConflictAuditHandler starts timetable-wide conflict scans and serves their reports.
type ConflictAuditHandler struct {
	service conflictAuditService
}

// NewConflictAuditHandler constructs handler.
func NewConflictAuditHandler(svc conflictAuditService) *ConflictAuditHandler {
	return &ConflictAuditHandler{service: svc}
}

// Start godoc
// @Summary Queue a conflict audit of every stored schedule
// @Tags Conflict Audits
// @Produce json
// @Security BearerAuth
// @Success 202 {object} response.Envelope
// @Router /conflict-audits [post]
func (h *ConflictAuditHandler) Start(c *gin.Context) {
	audit, err := h.service.Start(c.Request.Context(), actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, audit, nil)
}

// Status godoc
// @Summary Conflict audit status
// @Tags Conflict Audits
// @Produce json
// @Security BearerAuth
// @Param id path string true "Audit ID"
// @Success 200 {object} response.Envelope
// @Router /conflict-audits/{id} [get]
func (h *ConflictAuditHandler) Status(c *gin.Context) {
	audit, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, audit)
}

// Download godoc
// @Summary Download a conflict audit report via signed token
// @Tags Conflict Audits
// @Produce text/csv
// @Security BearerAuth
// @Param token query string true "Signed token"
// @Success 200 {file} binary
// @Failure 403 {object} response.Envelope
// @Router /conflict-audits/download [get]
func (h *ConflictAuditHandler) Download(c *gin.Context) {
	token := strings.TrimSpace(c.Query("token"))
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	download, err := h.service.ResolveDownload(c.Request.Context(), token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer download.File.Close() //nolint:errcheck

	size := int64(-1)
	if info, err := download.File.Stat(); err == nil {
		size = info.Size()
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", download.Filename))
	c.Header("Cache-Control", "no-store")
	c.DataFromReader(http.StatusOK, size, "text/csv", download.File, nil)
}
