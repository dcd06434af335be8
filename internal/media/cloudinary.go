package media

import (
	"context"
	"fmt"
	"io"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/google/uuid"
)

// UploadResult describes a stored media asset.
type UploadResult struct {
	URL          string  `json:"url"`
	ResourceType string  `json:"resource_type"`
	Width        int     `json:"width,omitempty"`
	Height       int     `json:"height,omitempty"`
	Duration     float64 `json:"duration,omitempty"`
}

// Uploader stores media for messages and stories.
type Uploader interface {
	Upload(ctx context.Context, file io.Reader, folder string) (UploadResult, error)
}

// CloudinaryUploader uploads to Cloudinary with auto resource detection.
type CloudinaryUploader struct {
	cld *cloudinary.Cloudinary
}

func NewCloudinaryUploader(cloudName, apiKey, apiSecret string) (*CloudinaryUploader, error) {
	cld, err := cloudinary.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cloudinary: %w", err)
	}
	return &CloudinaryUploader{cld: cld}, nil
}

func (u *CloudinaryUploader) Upload(ctx context.Context, file io.Reader, folder string) (UploadResult, error) {
	fileBytes, err := io.ReadAll(file)
	if err != nil {
		return UploadResult{}, fmt.Errorf("failed to read file: %w", err)
	}

	result, err := u.cld.Upload.Upload(ctx, fileBytes, uploader.UploadParams{
		PublicID:     uuid.NewString(),
		Folder:       folder,
		ResourceType: "auto",
	})
	if err != nil {
		return UploadResult{}, fmt.Errorf("failed to upload to cloudinary: %w", err)
	}

	return UploadResult{
		URL:          result.SecureURL,
		ResourceType: result.ResourceType,
		Width:        result.Width,
		Height:       result.Height,
	}, nil
}
