package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/timetablepro/timetablepro-api/internal/service"
	"github.com/timetablepro/timetablepro-api/pkg/response"
)

// TimetableHandler serves rendered weekly views and their downloads.
type TimetableHandler struct {
	service *service.TimetableService
}

// NewTimetableHandler constructs a timetable handler.
func NewTimetableHandler(svc *service.TimetableService) *TimetableHandler {
	return &TimetableHandler{service: svc}
}

// ForTeacher godoc
// @Summary Weekly timetable for a teacher
// @Tags Timetables
// @Security BearerAuth
// @Produce json
// @Param id path string true "Teacher ID"
// @Success 200 {object} response.Envelope
// @Router /timetables/teachers/{id} [get]
func (h *TimetableHandler) ForTeacher(c *gin.Context) {
	view, err := h.service.ForTeacher(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// ForRoom godoc
// @Summary Weekly timetable for a room
// @Tags Timetables
// @Security BearerAuth
// @Produce json
// @Param id path string true "Room ID"
// @Success 200 {object} response.Envelope
// @Router /timetables/rooms/{id} [get]
func (h *TimetableHandler) ForRoom(c *gin.Context) {
	view, err := h.service.ForRoom(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// ExportTeacher godoc
// @Summary Download a teacher's weekly timetable
// @Tags Timetables
// @Security BearerAuth
// @Produce text/csv
// @Produce application/pdf
// @Param id path string true "Teacher ID"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} byte
// @Router /timetables/teachers/{id}/export [get]
func (h *TimetableHandler) ExportTeacher(c *gin.Context) {
	h.export(c, service.ScopeTeacher)
}

// ExportRoom godoc
// @Summary Download a room's weekly timetable
// @Tags Timetables
// @Security BearerAuth
// @Produce text/csv
// @Produce application/pdf
// @Param id path string true "Room ID"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} byte
// @Router /timetables/rooms/{id}/export [get]
func (h *TimetableHandler) ExportRoom(c *gin.Context) {
	h.export(c, service.ScopeRoom)
}

func (h *TimetableHandler) export(c *gin.Context, scope string) {
	format := c.DefaultQuery("format", service.FormatCSV)
	payload, filename, contentType, err := h.service.Export(c.Request.Context(), scope, c.Param("id"), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", "attachment; filename="+filename)
	c.Data(http.StatusOK, contentType, payload)
}
