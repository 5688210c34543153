package server

import (
	"io"

	"ripple/internal/models"
	"ripple/internal/service"

	"github.com/gofiber/fiber/v2"
)

// maxUploadBytes caps the multipart payload before tier limits are applied.
const maxUploadBytes = 64 << 20

// UploadMedia handles POST /api/media/upload. The file arrives as a
// multipart form field named "file"; the response carries the media item to
// embed in a post or message.
func (s *Server) UploadMedia(c *fiber.Ctx) error {
	userID := currentUserID(c)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return models.RespondWithError(c,
			models.NewValidationError("A 'file' form field is required"))
	}
	if fileHeader.Size > maxUploadBytes {
		return models.RespondWithError(c,
			models.NewValidationError("File is too large"))
	}

	f, err := fileHeader.Open()
	if err != nil {
		return models.RespondWithError(c, models.NewInternalError(err))
	}
	defer func() { _ = f.Close() }()

	content, err := io.ReadAll(f)
	if err != nil {
		return models.RespondWithError(c, models.NewInternalError(err))
	}

	item, err := s.mediaService.Upload(c.Context(), service.UploadMediaInput{
		UserID:      userID,
		Filename:    fileHeader.Filename,
		ContentType: fileHeader.Header.Get("Content-Type"),
		Content:     content,
	})
	if err != nil {
		return models.RespondWithError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"media": item})
}
