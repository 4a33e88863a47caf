package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// ImageRepository reads the base image catalog.
type ImageRepository struct {
	db *gorm.DB
}

func NewImageRepository(db *gorm.DB) *ImageRepository {
	return &ImageRepository{db: db}
}

// FindByName returns the image with the given name.
func (r *ImageRepository) FindByName(ctx context.Context, name string) (*Image, error) {
	var img Image
	if err := r.db.WithContext(ctx).Where("name = ?", name).First(&img).Error; err != nil {
		return nil, fmt.Errorf("image %s: %w", name, translate(err))
	}
	return &img, nil
}

// List returns all images ordered by name.
func (r *ImageRepository) List(ctx context.Context) ([]Image, error) {
	var images []Image
	if err := r.db.WithContext(ctx).Order("name").Find(&images).Error; err != nil {
		return nil, fmt.Errorf("failed to list images: %w", err)
	}
	return images, nil
}

// Create registers a new image.
func (r *ImageRepository) Create(ctx context.Context, img *Image) error {
	if err := r.db.WithContext(ctx).Create(img).Error; err != nil {
		return fmt.Errorf("failed to create image %s: %w", img.Name, translate(err))
	}
	return nil
}
