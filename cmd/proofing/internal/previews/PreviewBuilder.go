package previews

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"log/slog"
	"sync/atomic"

	"github.com/adampresley/proofingdesk/pkg/models"
	"github.com/adampresley/proofingdesk/pkg/services"
	"github.com/alitto/pond/v2"
	"github.com/nfnt/resize"
)

type PreviewBuilder interface {
	BuildPreviews(ctx context.Context) (int, error)
}

/*
PhotoSource is the part of the session service the builder needs.
*/
type PhotoSource interface {
	PhotosMissingPreviews(ctx context.Context, limit int) ([]models.Photo, error)
	SetPhotoPreview(ctx context.Context, photoID uint, thumbnailKey string) error
}

type PreviewBuilderConfig struct {
	Assets     services.AssetServicer
	BatchSize  int
	MaxSize    uint
	MaxWorkers int
	Photos     PhotoSource
}

type PreviewBuilderService struct {
	assets     services.AssetServicer
	batchSize  int
	maxSize    uint
	maxWorkers int
	photos     PhotoSource
}

func NewPreviewBuilderService(config PreviewBuilderConfig) PreviewBuilderService {
	result := PreviewBuilderService{
		assets:     config.Assets,
		batchSize:  config.BatchSize,
		maxSize:    config.MaxSize,
		maxWorkers: config.MaxWorkers,
		photos:     config.Photos,
	}

	if result.batchSize <= 0 {
		result.batchSize = 200
	}

	if result.maxSize == 0 {
		result.maxSize = 400
	}

	if result.maxWorkers <= 0 {
		result.maxWorkers = 4
	}

	return result
}

/*
BuildPreviews creates a watermark-safe preview for every photo that has
none yet and records its key. It returns how many previews were written.
A photo that fails is logged and picked up again on the next run.
*/
func (b PreviewBuilderService) BuildPreviews(ctx context.Context) (int, error) {
	var (
		err     error
		photos  []models.Photo
		created atomic.Int64
	)

	if photos, err = b.photos.PhotosMissingPreviews(ctx, b.batchSize); err != nil {
		return 0, fmt.Errorf("error listing photos missing previews: %w", err)
	}

	if len(photos) == 0 {
		return 0, nil
	}

	slog.Info("creating previews...", "numPhotos", len(photos))

	pool := pond.NewPool(b.maxWorkers, pond.WithContext(ctx))

	for _, photo := range photos {
		pool.Submit(func() {
			previewKey := services.PreviewKey(photo.OriginalKey)

			if err := b.createPreview(photo.OriginalKey, previewKey); err != nil {
				slog.Error("error creating preview", "photoID", photo.ID, "key", photo.OriginalKey, "error", err)
				return
			}

			if err := b.photos.SetPhotoPreview(ctx, photo.ID, previewKey); err != nil {
				slog.Error("error recording preview", "photoID", photo.ID, "previewKey", previewKey, "error", err)
				return
			}

			created.Add(1)
		})
	}

	_ = pool.Stop().Wait()
	return int(created.Load()), nil
}

func (b PreviewBuilderService) createPreview(originalKey, previewKey string) error {
	var (
		err      error
		img      image.Image
		original io.ReadCloser
		buf      bytes.Buffer
	)

	if original, err = b.assets.Get(originalKey); err != nil {
		return err
	}

	defer original.Close()

	if img, err = resizeReader(original, b.maxSize); err != nil {
		return fmt.Errorf("error resizing image: %w", err)
	}

	if err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85}); err != nil {
		return fmt.Errorf("error encoding image for preview: %w", err)
	}

	if err = b.assets.Put(previewKey, &buf); err != nil {
		return fmt.Errorf("error uploading preview: %w", err)
	}

	return nil
}

func resizeReader(r io.Reader, maxSize uint) (image.Image, error) {
	var (
		err error
		img image.Image
	)

	if img, _, err = image.Decode(r); err != nil {
		return nil, fmt.Errorf("error decoding image: %w", err)
	}

	return fit(img, maxSize), nil
}

/*
fit scales img so its longest edge is maxSize.
*/
func fit(img image.Image, maxSize uint) image.Image {
	bounds := img.Bounds()
	width := uint(bounds.Dx())
	height := uint(bounds.Dy())

	var newWidth, newHeight uint

	if width > height {
		newWidth = maxSize
		newHeight = uint(float64(height) * (float64(maxSize) / float64(width)))
	} else {
		newHeight = maxSize
		newWidth = uint(float64(width) * (float64(maxSize) / float64(height)))
	}

	return resize.Resize(newWidth, newHeight, img, resize.Lanczos3)
}
