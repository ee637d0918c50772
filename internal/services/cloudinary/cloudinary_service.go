package cloudinary

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/rehome-app/rehome-api/internal/config"
	"github.com/rehome-app/rehome-api/internal/utils"
)

// CloudinaryService signs direct browser uploads and removes assets when
// their pet is edited or deleted.
type CloudinaryService struct {
	cfg          *config.Config
	jwtService   *utils.JWTService
	cld          *cloudinary.Cloudinary
	uploadFolder string
	uploadPreset string
}

// NewCloudinaryService creates a new CloudinaryService. With no credentials
// configured the service still signs nothing but stays routable, so local
// development works without a Cloudinary account.
func NewCloudinaryService(cfg *config.Config) *CloudinaryService {
	s := &CloudinaryService{
		cfg:          cfg,
		jwtService:   utils.NewJWTService(cfg.JWTSecret),
		uploadFolder: cfg.CloudinaryConfig.UploadFolder,
		uploadPreset: cfg.CloudinaryConfig.UploadPreset,
	}

	if cfg.CloudinaryConfig.CloudName != "" {
		cld, err := cloudinary.NewFromParams(
			cfg.CloudinaryConfig.CloudName,
			cfg.CloudinaryConfig.APIKey,
			cfg.CloudinaryConfig.APISecret,
		)
		if err != nil {
			log.Printf("cloudinary: initializing client: %v", err)
		} else {
			s.cld = cld
		}
	}

	return s
}

// GenerateSignature builds the SHA-1 signature Cloudinary expects for signed
// uploads.
func (s *CloudinaryService) GenerateSignature(params map[string]string) string {
	var keys []string
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var signParts []string
	for _, k := range keys {
		signParts = append(signParts, fmt.Sprintf("%s=%s", k, params[k]))
	}
	signatureString := strings.Join(signParts, "&")
	signatureString += s.cfg.CloudinaryConfig.APISecret

	h := sha1.New()
	h.Write([]byte(signatureString))
	return hex.EncodeToString(h.Sum(nil))
}

// GenerateUploadParams returns the signed parameters the client needs to
// upload a pet photo directly to Cloudinary.
func (s *CloudinaryService) GenerateUploadParams(c fiber.Ctx) error {
	petID := c.Query("pet_id")
	if petID == "" {
		petID = uuid.New().String()
	}

	timestamp := fmt.Sprintf("%d", time.Now().Unix())

	params := map[string]string{
		"timestamp": timestamp,
		"folder":    s.uploadFolder,
	}
	signature := s.GenerateSignature(params)

	return c.JSON(fiber.Map{
		"timestamp":  timestamp,
		"signature":  signature,
		"api_key":    s.cfg.CloudinaryConfig.APIKey,
		"cloud_name": s.cfg.CloudinaryConfig.CloudName,
		"folder":     s.uploadFolder,
		"pet_id":     petID,
	})
}

// Destroy removes one asset by public ID. Satisfies pet.PhotoCleaner.
func (s *CloudinaryService) Destroy(ctx context.Context, publicID string) error {
	if s.cld == nil {
		return nil
	}
	_, err := s.cld.Upload.Destroy(ctx, uploader.DestroyParams{PublicID: publicID})
	return err
}
