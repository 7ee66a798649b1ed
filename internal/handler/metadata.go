package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/stemforge/api/internal/client"
	"github.com/stemforge/api/internal/service"
	"github.com/stemforge/api/pkg/response"
)

type MetadataHandler struct {
	service *service.CatalogService
}

func NewMetadataHandler(svc *service.CatalogService) *MetadataHandler {
	return &MetadataHandler{service: svc}
}

// Search handles GET /api/metadata/search
func (h *MetadataHandler) Search(c *fiber.Ctx) error {
	query := c.Query("q")
	if query == "" {
		return response.ValidationError(c, "q is required", nil)
	}

	result, err := h.service.Search(c.Context(), query)
	if err != nil {
		if errors.Is(err, client.ErrTrackNotFound) {
			return response.NotFound(c, "No matching track found")
		}
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, result)
}
