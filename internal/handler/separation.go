package handler

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stemforge/api/internal/model"
	"github.com/stemforge/api/internal/service"
	"github.com/stemforge/api/pkg/response"
)

const maxUploadSize = 50 * 1024 * 1024 // 50MB

// allowedUploadExts are the container formats the pipeline accepts for
// direct uploads.
var allowedUploadExts = map[string]bool{
	".mp3":  true,
	".wav":  true,
	".flac": true,
	".ogg":  true,
}

type SeparationHandler struct {
	service   *service.SeparationService
	validator *validator.Validate
	uploadDir string
}

func NewSeparationHandler(svc *service.SeparationService, v *validator.Validate, uploadDir string) *SeparationHandler {
	return &SeparationHandler{
		service:   svc,
		validator: v,
		uploadDir: uploadDir,
	}
}

// FromLink handles POST /api/separation/link
func (h *SeparationHandler) FromLink(c *fiber.Ctx) error {
	var req model.SeparateFromLinkRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	result, err := h.service.SubmitLink(c.Context(), &req)
	if err != nil {
		return response.ServiceError(c, err.Error())
	}

	return response.Accepted(c, result)
}

// FromFile handles POST /api/separation/file
func (h *SeparationHandler) FromFile(c *fiber.Ctx) error {
	callbackURL := c.FormValue("callback_url")
	if callbackURL == "" {
		return response.ValidationError(c, "callback_url is required", nil)
	}

	startTime, err := optionalIntForm(c, "start_time")
	if err != nil {
		return response.ValidationError(c, "start_time must be a non-negative integer", nil)
	}
	duration, err := optionalIntForm(c, "duration")
	if err != nil {
		return response.ValidationError(c, "duration must be a positive integer", nil)
	}
	durationSec := 0
	if duration != nil {
		if *duration <= 0 || *duration > 300 {
			return response.ValidationError(c, "duration must be between 1 and 300 seconds", nil)
		}
		durationSec = *duration
	}

	file, err := c.FormFile("file")
	if err != nil {
		return response.ValidationError(c, "File is required", nil)
	}

	if file.Size > maxUploadSize {
		return response.ValidationError(c, "File size exceeds 50MB limit", map[string]interface{}{
			"maxSize":  maxUploadSize,
			"fileSize": file.Size,
		})
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !allowedUploadExts[ext] {
		return response.ValidationError(c, "Invalid file type. Supported: MP3, WAV, FLAC, OGG", map[string]interface{}{
			"extension": ext,
		})
	}

	// Saved under a fresh name so concurrent uploads never collide.
	localPath := filepath.Join(h.uploadDir, fmt.Sprintf("%s%s", uuid.New().String(), ext))
	if err := c.SaveFile(file, localPath); err != nil {
		return response.ServiceError(c, "Failed to save uploaded file")
	}

	result, err := h.service.SubmitFile(c.Context(), localPath, startTime, durationSec, callbackURL)
	if err != nil {
		return response.ServiceError(c, err.Error())
	}

	return response.Accepted(c, result)
}

// optionalIntForm parses an optional non-negative integer form value.
func optionalIntForm(c *fiber.Ctx, name string) (*int, error) {
	raw := c.FormValue(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return nil, fmt.Errorf("invalid %s value %q", name, raw)
	}
	return &v, nil
}

// formatValidationErrors formats validator errors for response
func formatValidationErrors(err error) interface{} {
	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		errors := make(map[string]string)
		for _, e := range validationErrors {
			errors[e.Field()] = e.Tag()
		}
		return errors
	}
	return err.Error()
}
