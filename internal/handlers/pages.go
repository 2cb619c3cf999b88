package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"mangashelf-backend/internal/models"
	"mangashelf-backend/internal/services"
)

type PagesHandler struct {
	pages          *services.PageService
	maxUploadBytes int64
	logger         *zap.Logger
}

func NewPagesHandler(pages *services.PageService, maxUploadBytes int64, logger *zap.Logger) *PagesHandler {
	return &PagesHandler{
		pages:          pages,
		maxUploadBytes: maxUploadBytes,
		logger:         logger.With(zap.String("component", "PagesHandler")),
	}
}

// UploadArchive godoc
// @Summary     Replace a volume's pages from a ZIP archive
// @Description Every jpg, jpeg, png or webp entry becomes a page, numbered in archive order.
// @Description Other entries are ignored. The previous pages of the volume are replaced.
// @Tags        pages
// @Accept      multipart/form-data
// @Produce     json
// @Security    Bearer
// @Param       volumeId path     int  true "Volume ID"
// @Param       file     formData file true "ZIP archive of page images"
// @Success     200 {array}  models.Page
// @Failure     400 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Failure     413 {object} models.ErrorResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /pages/volume/{volumeId}/upload-zip [post]
func (h *PagesHandler) UploadArchive(c *gin.Context) {
	volumeID, ok := pathID(c, "volumeId")
	if !ok {
		return
	}

	if h.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	}
	header, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, models.ErrorResponse{
				Error:   "payload_too_large",
				Message: "upload exceeds " + strconv.FormatInt(h.maxUploadBytes, 10) + " bytes",
			})
			return
		}
		badRequest(c, "multipart field file is required: %v", err)
		return
	}

	file, err := header.Open()
	if err != nil {
		badRequest(c, "cannot read uploaded file: %v", err)
		return
	}
	defer file.Close()

	h.logger.Info("Archive upload received",
		zap.Int64("volume_id", volumeID),
		zap.String("filename", header.Filename),
		zap.Int64("size", header.Size))

	pages, err := h.pages.ExtractPagesFromArchive(c.Request.Context(), volumeID, file, header.Size)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, pages)
}

// ListPages godoc
// @Summary     List the pages of a volume
// @Tags        pages
// @Produce     json
// @Security    Bearer
// @Param       volumeId path int true "Volume ID"
// @Success     200 {array}  models.Page
// @Failure     404 {object} models.ErrorResponse
// @Router      /pages/volume/{volumeId} [get]
func (h *PagesHandler) ListPages(c *gin.Context) {
	volumeID, ok := pathID(c, "volumeId")
	if !ok {
		return
	}
	pages, err := h.pages.ListPages(c.Request.Context(), volumeID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, pages)
}

// DeleteAllPages godoc
// @Summary     Delete every page of a volume
// @Tags        pages
// @Security    Bearer
// @Param       volumeId path int true "Volume ID"
// @Success     204
// @Failure     404 {object} models.ErrorResponse
// @Router      /pages/volume/{volumeId} [delete]
func (h *PagesHandler) DeleteAllPages(c *gin.Context) {
	volumeID, ok := pathID(c, "volumeId")
	if !ok {
		return
	}
	if err := h.pages.DeleteAllPages(c.Request.Context(), volumeID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// CreatePage godoc
// @Summary     Create a single page
// @Tags        pages
// @Accept      json
// @Produce     json
// @Security    Bearer
// @Param       request body models.CreatePageRequest true "Page"
// @Success     201 {object} models.Page
// @Failure     400 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Router      /pages [post]
func (h *PagesHandler) CreatePage(c *gin.Context) {
	var req models.CreatePageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: %v", err)
		return
	}
	page, err := h.pages.CreatePage(c.Request.Context(), services.CreatePageParams{
		VolumeID:   req.VolumeID,
		PageNumber: req.PageNumber,
		ImagePath:  req.ImagePath,
		FrameData:  req.FrameData,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, page)
}

// GetPage godoc
// @Summary     Get a page
// @Tags        pages
// @Produce     json
// @Security    Bearer
// @Param       id path int true "Page ID"
// @Success     200 {object} models.Page
// @Failure     404 {object} models.ErrorResponse
// @Router      /pages/{id} [get]
func (h *PagesHandler) GetPage(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	page, err := h.pages.GetPage(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// UpdatePage godoc
// @Summary     Update a page's image path or frame data
// @Tags        pages
// @Accept      json
// @Produce     json
// @Security    Bearer
// @Param       id      path int                      true "Page ID"
// @Param       request body models.UpdatePageRequest true "Fields to change"
// @Success     200 {object} models.Page
// @Failure     400 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Router      /pages/{id} [put]
func (h *PagesHandler) UpdatePage(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req models.UpdatePageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: %v", err)
		return
	}
	page, err := h.pages.UpdatePage(c.Request.Context(), id, services.UpdatePageParams{
		ImagePath: req.ImagePath,
		FrameData: req.FrameData,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// DeletePage godoc
// @Summary     Delete a page
// @Tags        pages
// @Security    Bearer
// @Param       id path int true "Page ID"
// @Success     204
// @Failure     404 {object} models.ErrorResponse
// @Router      /pages/{id} [delete]
func (h *PagesHandler) DeletePage(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.pages.DeletePage(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ReorderPage godoc
// @Summary     Move a page to another page number
// @Tags        pages
// @Produce     json
// @Security    Bearer
// @Param       id            path  int true "Page ID"
// @Param       newPageNumber query int true "Target page number"
// @Success     200 {object} models.Page
// @Failure     400 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Router      /pages/{id}/reorder [put]
func (h *PagesHandler) ReorderPage(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	n, err := strconv.Atoi(c.Query("newPageNumber"))
	if err != nil {
		badRequest(c, "query parameter newPageNumber must be an integer")
		return
	}
	page, err := h.pages.ReorderPage(c.Request.Context(), id, n)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}
