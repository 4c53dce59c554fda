package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"gatekeeper/internal/domain"
)

type ResourceResponse struct {
	ID        string `json:"id"`
	Kind      string `json:"kind"`
	OwnerID   string `json:"ownerId"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

func (h *Handler) createResource(c *gin.Context) {
	res, err := h.resources.Create(c.Request.Context(), identityFrom(c), c.Param("kind"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resourceToResponse(*res))
}

func (h *Handler) listResources(c *gin.Context) {
	items, err := h.resources.List(c.Request.Context(), identityFrom(c), c.Param("kind"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	resp := make([]ResourceResponse, len(items))
	for i := range items {
		resp[i] = resourceToResponse(items[i])
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) getResource(c *gin.Context) {
	res, err := h.resources.Get(c.Request.Context(), identityFrom(c), c.Param("kind"), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resourceToResponse(*res))
}

func (h *Handler) updateResource(c *gin.Context) {
	res, err := h.resources.Update(c.Request.Context(), identityFrom(c), c.Param("kind"), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resourceToResponse(*res))
}

func (h *Handler) deleteResource(c *gin.Context) {
	if err := h.resources.Delete(c.Request.Context(), identityFrom(c), c.Param("kind"), c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func resourceToResponse(r domain.OwnedResource) ResourceResponse {
	return ResourceResponse{
		ID:        r.ID,
		Kind:      r.Kind,
		OwnerID:   r.OwnerID,
		CreatedAt: r.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt: r.UpdatedAt.UTC().Format(time.RFC3339),
	}
}
