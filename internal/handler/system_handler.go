package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/student-records/internal/dto"
	"github.com/noah-isme/student-records/internal/models"
	"github.com/noah-isme/student-records/pkg/response"
)

type systemService interface {
	Roster() models.Roster
	ResetAll(ctx context.Context) error
}

// SystemHandler serves whole-dataset operations.
type SystemHandler struct {
	records systemService
}

// NewSystemHandler constructs SystemHandler.
func NewSystemHandler(records systemService) *SystemHandler {
	return &SystemHandler{records: records}
}

// Roster godoc
// @Summary Snapshot of students, courses and enrollments
// @Tags System
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /roster [get]
func (h *SystemHandler) Roster(c *gin.Context) {
	response.JSON(c, http.StatusOK, dto.NewRosterResponse(h.records.Roster()))
}

// Reset godoc
// @Summary Reset every collection to the seed state
// @Tags System
// @Success 204
// @Failure 503 {object} response.Envelope
// @Router /system/reset [post]
func (h *SystemHandler) Reset(c *gin.Context) {
	if err := h.records.ResetAll(c.Request.Context()); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
