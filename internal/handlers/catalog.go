package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/learnloop-backend/internal/catalog"
)

type CatalogHandler struct {
	svc catalog.Service
}

func NewCatalogHandler(svc catalog.Service) *CatalogHandler {
	return &CatalogHandler{svc: svc}
}

// GET /api/catalog
func (h *CatalogHandler) List(c *gin.Context) {
	RespondOK(c, gin.H{"courses": h.svc.List()})
}

// GET /api/catalog/:id
func (h *CatalogHandler) Get(c *gin.Context) {
	course := h.svc.Get(c.Param("id"))
	if course == nil {
		RespondError(c, http.StatusNotFound, "not_found", fmt.Errorf("catalog course not found"))
		return
	}
	RespondOK(c, gin.H{"course": course})
}
