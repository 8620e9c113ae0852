package handler

import (
	contactapp "github.com/crm/backend/internal/application/contact"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ContactHandler handles contact CRUD requests
type ContactHandler struct {
	BaseHandler
	service *contactapp.Service
}

// NewContactHandler creates a new contact handler
func NewContactHandler(service *contactapp.Service) *ContactHandler {
	return &ContactHandler{service: service}
}

// List answers a page of contacts for the current tenant
func (h *ContactHandler) List(c *gin.Context) {
	var filter contactapp.ListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.HandleBindingError(c, err)
		return
	}

	result, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.SuccessWithMeta(c, result.Items, result.Total, result.Page, result.PageSize)
}

// Create registers a new contact
func (h *ContactHandler) Create(c *gin.Context) {
	var req contactapp.CreateContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.HandleBindingError(c, err)
		return
	}

	result, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, result)
}

// Get answers a single contact by its uid
func (h *ContactHandler) Get(c *gin.Context) {
	uid, ok := h.contactUID(c)
	if !ok {
		return
	}

	result, err := h.service.GetByUID(c.Request.Context(), uid)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, result)
}

// Update applies a partial update to a contact
func (h *ContactHandler) Update(c *gin.Context) {
	uid, ok := h.contactUID(c)
	if !ok {
		return
	}

	var req contactapp.UpdateContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.HandleBindingError(c, err)
		return
	}

	result, err := h.service.Update(c.Request.Context(), uid, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, result)
}

// Delete soft-deletes a contact
func (h *ContactHandler) Delete(c *gin.Context) {
	uid, ok := h.contactUID(c)
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), uid); err != nil {
		h.HandleError(c, err)
		return
	}

	h.NoContent(c)
}

// ListDocuments answers the documents attached to a contact, each with
// a short-lived download link
func (h *ContactHandler) ListDocuments(c *gin.Context) {
	uid, ok := h.contactUID(c)
	if !ok {
		return
	}

	result, err := h.service.ListDocuments(c.Request.Context(), uid)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, result)
}

func (h *ContactHandler) contactUID(c *gin.Context) (uuid.UUID, bool) {
	uid, err := uuid.Parse(c.Param("uid"))
	if err != nil {
		h.BadRequest(c, "Invalid contact id")
		return uuid.Nil, false
	}
	return uid, true
}
