package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/quickcart/apiserver/types"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const imageKeyPrefix = "products/"

var allowedImageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// ProductRepository defines persistence operations for products.
type ProductRepository interface {
	List(ctx context.Context, category string) ([]types.Product, error)
	Get(ctx context.Context, id string) (types.Product, error)
	Create(ctx context.Context, product types.Product) (types.Product, error)
	Delete(ctx context.Context, id string) (types.Product, error)
}

// ImageStore persists product images. storage.Storage satisfies it.
type ImageStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// ProductService encapsulates catalog use-cases.
type ProductService struct {
	repo   ProductRepository
	images ImageStore
	log    logrus.FieldLogger
}

// NewProductService constructs a ProductService. images may be nil, in
// which case image uploads are rejected.
func NewProductService(repo ProductRepository, images ImageStore, log logrus.FieldLogger) *ProductService {
	return &ProductService{repo: repo, images: images, log: log}
}

// ProductInput is the admin payload for a new product.
type ProductInput struct {
	Name        string
	Price       decimal.Decimal
	Description string
	Category    string
}

// ImageUpload is an uploaded product image.
type ImageUpload struct {
	Filename string
	Data     []byte
}

func (s *ProductService) List(ctx context.Context, category string) ([]types.Product, error) {
	return s.repo.List(ctx, strings.TrimSpace(category))
}

func (s *ProductService) Get(ctx context.Context, id string) (types.Product, error) {
	return s.repo.Get(ctx, id)
}

// Create validates and stores a product, uploading its image first when
// one is supplied.
func (s *ProductService) Create(ctx context.Context, in ProductInput, image *ImageUpload) (types.Product, error) {
	product := types.Product{
		Name:        strings.TrimSpace(in.Name),
		Price:       in.Price,
		Description: strings.TrimSpace(in.Description),
		Category:    strings.TrimSpace(in.Category),
	}
	if err := validateProduct(product); err != nil {
		return types.Product{}, err
	}

	if image != nil && len(image.Data) > 0 {
		key, err := s.putImage(ctx, *image)
		if err != nil {
			return types.Product{}, err
		}
		product.Image = key
	}

	created, err := s.repo.Create(ctx, product)
	if err != nil {
		s.log.WithError(err).Error("create product failed")
		s.removeImage(ctx, product.Image)
		return types.Product{}, fmt.Errorf("create product: %w", err)
	}

	s.log.WithFields(logrus.Fields{"product_id": created.ID, "category": created.Category}).Info("product created")
	return created, nil
}

// Delete removes a product and, best-effort, its image.
func (s *ProductService) Delete(ctx context.Context, id string) error {
	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return err
	}
	s.removeImage(ctx, deleted.Image)
	s.log.WithField("product_id", deleted.ID).Info("product deleted")
	return nil
}

// OpenImage streams a stored product image.
func (s *ProductService) OpenImage(ctx context.Context, key string) (io.ReadCloser, error) {
	if s.images == nil || !strings.HasPrefix(key, imageKeyPrefix) || strings.Contains(key, "..") {
		return nil, ErrNotFound
	}
	return s.images.Get(ctx, key)
}

func validateProduct(p types.Product) error {
	switch {
	case p.Name == "":
		return invalid("product name is required")
	case p.Description == "":
		return invalid("description is required")
	case p.Category == "":
		return invalid("category is required")
	case !p.Price.IsPositive():
		return invalid("price must be positive")
	case !types.IsWholeCents(p.Price):
		return invalid("price must not have more than 2 decimal places")
	}
	return nil
}

func (s *ProductService) putImage(ctx context.Context, image ImageUpload) (string, error) {
	if s.images == nil {
		return "", invalid("image uploads are not configured")
	}
	contentType := http.DetectContentType(image.Data)
	ext, ok := allowedImageTypes[contentType]
	if !ok {
		return "", invalid("image must be jpeg, png, gif or webp")
	}
	if named := strings.ToLower(filepath.Ext(image.Filename)); named == ".jpeg" && ext == ".jpg" {
		ext = named
	}

	key := imageKeyPrefix + uuid.NewString() + ext
	if err := s.images.Put(ctx, key, bytes.NewReader(image.Data), int64(len(image.Data)), contentType); err != nil {
		s.log.WithError(err).WithField("key", key).Error("upload product image failed")
		return "", fmt.Errorf("upload image: %w", err)
	}
	return key, nil
}

func (s *ProductService) removeImage(ctx context.Context, key string) {
	if key == "" || s.images == nil {
		return
	}
	if err := s.images.Delete(ctx, key); err != nil && !errors.Is(err, context.Canceled) {
		s.log.WithError(err).WithField("key", key).Warn("remove product image failed")
	}
}
