package service

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"ripple/internal/config"
	"ripple/internal/models"
	"ripple/internal/repository"

	"github.com/google/uuid"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // register WebP decoder
)

const (
	thumbnailMaxSize = 320
	jpegQuality      = 82
)

// UploadMediaInput is one file upload destined for a post or message.
type UploadMediaInput struct {
	UserID      uint
	Filename    string
	ContentType string
	Content     []byte
}

// MediaService stores uploads on local disk under per-type directories and
// returns MediaItem values ready to attach to posts and messages. Size caps
// come from the uploader's tier.
type MediaService struct {
	userRepo  repository.UserRepository
	uploadDir string
	baseURL   string
}

// NewMediaService returns a new MediaService.
func NewMediaService(userRepo repository.UserRepository, cfg *config.Config) *MediaService {
	uploadDir := "./uploads"
	baseURL := "/media"
	if cfg != nil {
		if cfg.UploadDir != "" {
			uploadDir = cfg.UploadDir
		}
		if cfg.MediaBaseURL != "" {
			baseURL = strings.TrimRight(cfg.MediaBaseURL, "/")
		}
	}
	return &MediaService{
		userRepo:  userRepo,
		uploadDir: uploadDir,
		baseURL:   baseURL,
	}
}

// Upload validates and stores one file. Images get a thumbnail variant next
// to the original.
func (s *MediaService) Upload(ctx context.Context, in UploadMediaInput) (*models.MediaItem, error) {
	if len(in.Content) == 0 {
		return nil, models.NewValidationError("No file uploaded")
	}

	user, err := s.userRepo.GetByID(ctx, in.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, models.NewNotFoundError("User", in.UserID)
	}
	policy := models.PolicyFor(user.Tier())

	detected := http.DetectContentType(in.Content)
	mediaType, ext, err := classifyMedia(detected)
	if err != nil {
		return nil, err
	}

	var limit int64
	if mediaType == "video" {
		limit = policy.MaxVideoBytes
	} else {
		limit = policy.MaxImageBytes
	}
	if int64(len(in.Content)) > limit {
		return nil, models.NewValidationError(
			fmt.Sprintf("File too large (max %dMB)", limit/(1024*1024)))
	}

	if mediaType == "image" {
		// Decode to prove the payload really is an image.
		if _, _, err := image.Decode(bytes.NewReader(in.Content)); err != nil {
			return nil, models.NewValidationError("Invalid image file")
		}
	}

	name := uuid.NewString() + ext
	rel := filepath.ToSlash(filepath.Join(mediaType, name))
	abs := filepath.Join(s.uploadDir, mediaType, name)
	if err := writeFile(abs, in.Content); err != nil {
		return nil, models.NewInternalError(err)
	}

	if mediaType == "image" {
		if err := s.writeThumbnail(abs, in.Content); err != nil {
			_ = os.Remove(abs)
			return nil, models.NewInternalError(err)
		}
	}

	return &models.MediaItem{
		URL:  s.baseURL + "/" + rel,
		Type: mediaType,
		Ref:  rel,
	}, nil
}

// ResolvePath maps a stored media ref back to its on-disk path, rejecting
// anything that escapes the upload directory.
func (s *MediaService) ResolvePath(ref string) (string, error) {
	clean := filepath.Clean("/" + ref)
	abs := filepath.Join(s.uploadDir, clean)
	if !strings.HasPrefix(abs, filepath.Clean(s.uploadDir)+string(os.PathSeparator)) {
		return "", models.NewValidationError("Invalid media reference")
	}
	if _, err := os.Stat(abs); err != nil {
		if os.IsNotExist(err) {
			return "", models.NewNotFoundError("Media", ref)
		}
		return "", models.NewInternalError(err)
	}
	return abs, nil
}

func (s *MediaService) writeThumbnail(originalPath string, content []byte) error {
	decoded, _, err := image.Decode(bytes.NewReader(content))
	if err != nil {
		return err
	}
	thumb := scaleDown(decoded, thumbnailMaxSize)

	buf := bytes.NewBuffer(nil)
	if err := jpeg.Encode(buf, thumb, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return err
	}

	ext := filepath.Ext(originalPath)
	thumbPath := strings.TrimSuffix(originalPath, ext) + "_thumb.jpg"
	return writeFile(thumbPath, buf.Bytes())
}

func scaleDown(src image.Image, maxSize int) image.Image {
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= maxSize && h <= maxSize {
		return src
	}
	scale := float64(maxSize) / float64(w)
	if h > w {
		scale = float64(maxSize) / float64(h)
	}
	newW := int(float64(w) * scale)
	newH := int(float64(h) * scale)
	if newW < 1 {
		newW = 1
	}
	if newH < 1 {
		newH = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, xdraw.Over, nil)
	return dst
}

func classifyMedia(contentType string) (mediaType, ext string, err error) {
	switch contentType {
	case "image/jpeg", "image/jpg":
		return "image", ".jpg", nil
	case "image/png":
		return "image", ".png", nil
	case "image/webp":
		return "image", ".webp", nil
	case "image/gif":
		return "gif", ".gif", nil
	case "video/mp4":
		return "video", ".mp4", nil
	case "video/webm":
		return "video", ".webm", nil
	default:
		return "", "", models.NewValidationError("Unsupported media type: " + contentType)
	}
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
