package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"medtrack/internal/domain"
	"medtrack/internal/service"
)

type createRecordRequest struct {
	Height                 float64 `json:"height" binding:"required,gt=0"`
	Weight                 float64 `json:"weight" binding:"required,gt=0"`
	HeartRate              int     `json:"heart_rate" binding:"required,gt=0"`
	BloodPressureSystolic  int     `json:"blood_pressure_systolic" binding:"required,gt=0"`
	BloodPressureDiastolic int     `json:"blood_pressure_diastolic" binding:"required,gt=0"`
	Symptoms               *string `json:"symptoms"`
}

type updateRecordRequest struct {
	Height                 *float64 `json:"height" binding:"omitempty,gt=0"`
	Weight                 *float64 `json:"weight" binding:"omitempty,gt=0"`
	HeartRate              *int     `json:"heart_rate" binding:"omitempty,gt=0"`
	BloodPressureSystolic  *int     `json:"blood_pressure_systolic" binding:"omitempty,gt=0"`
	BloodPressureDiastolic *int     `json:"blood_pressure_diastolic" binding:"omitempty,gt=0"`
	Symptoms               *string  `json:"symptoms"`
}

func (h *Handler) createRecord(c *gin.Context) {
	var req createRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	record := domain.HealthRecord{
		Height:                 req.Height,
		Weight:                 req.Weight,
		HeartRate:              req.HeartRate,
		BloodPressureSystolic:  req.BloodPressureSystolic,
		BloodPressureDiastolic: req.BloodPressureDiastolic,
	}
	if req.Symptoms != nil {
		record.Symptoms = *req.Symptoms
	}

	created, err := h.records.Create(c.Request.Context(), mustUser(c), record)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, service.NewRecordDocument(created))
}

func (h *Handler) listRecords(c *gin.Context) {
	page, ok := parsePage(c)
	if !ok {
		return
	}
	records, err := h.records.List(c.Request.Context(), mustUser(c), page)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, service.NewRecordDocuments(records))
}

func (h *Handler) getRecord(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	record, err := h.records.Get(c.Request.Context(), mustUser(c), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, service.NewRecordDocument(record))
}

func (h *Handler) updateRecord(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req updateRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	record, err := h.records.Update(c.Request.Context(), mustUser(c), id, domain.HealthRecordPatch{
		Height:                 req.Height,
		Weight:                 req.Weight,
		HeartRate:              req.HeartRate,
		BloodPressureSystolic:  req.BloodPressureSystolic,
		BloodPressureDiastolic: req.BloodPressureDiastolic,
		Symptoms:               req.Symptoms,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, service.NewRecordDocument(record))
}

func (h *Handler) deleteRecord(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.records.Delete(c.Request.Context(), mustUser(c), id); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

func (h *Handler) exportRecords(c *gin.Context) {
	records, err := h.records.Export(c.Request.Context(), mustUser(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, service.NewRecordDocuments(records))
}

func (h *Handler) importRecords(c *gin.Context) {
	var items []map[string]any
	if err := c.ShouldBindJSON(&items); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "expected a JSON array of records"})
		return
	}

	result, err := h.records.Import(c.Request.Context(), mustUser(c), items)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// archiveRecords uploads the caller's export to object storage and returns a
// presigned download link.
func (h *Handler) archiveRecords(c *gin.Context) {
	user := mustUser(c)
	records, err := h.records.Export(c.Request.Context(), user)
	if err != nil {
		h.respondError(c, err)
		return
	}

	archive, err := h.exports.Archive(c.Request.Context(), user, records)
	if err != nil {
		h.metrics.ExportUploadsTotal.WithLabelValues("error").Inc()
		h.respondError(c, err)
		return
	}
	h.metrics.ExportUploadsTotal.WithLabelValues("ok").Inc()
	c.JSON(http.StatusCreated, archive)
}

func (h *Handler) listArchives(c *gin.Context) {
	objects, err := h.exports.ListArchives(c.Request.Context(), mustUser(c))
	if err != nil {
		h.respondError(c, err)
		return
	}

	resp := make([]StorageObjectResponse, len(objects))
	for i := range objects {
		resp[i] = objectToResponse(objects[i])
	}
	c.JSON(http.StatusOK, resp)
}
