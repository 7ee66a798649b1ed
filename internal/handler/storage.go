package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/stemforge/api/internal/service"
	"github.com/stemforge/api/pkg/response"
)

type StorageHandler struct {
	service *service.StorageService
}

func NewStorageHandler(svc *service.StorageService) *StorageHandler {
	return &StorageHandler{service: svc}
}

// List handles GET /api/storage/list
func (h *StorageHandler) List(c *fiber.Ctx) error {
	directory := c.Query("directory")

	result, err := h.service.List(c.Context(), directory)
	if err != nil {
		return response.StorageError(c, err.Error())
	}

	return response.OK(c, result)
}
