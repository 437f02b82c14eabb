package repository

import (
	"github.com/ikkim/quickcart-backend/internal/app/model"
	"github.com/ikkim/quickcart-backend/pkg/logger"
	"gorm.io/gorm"
)

type CategoryRepository interface {
	Create(category *model.Category) error
	FindBySlug(slug string) (*model.Category, error)
	FindMasters() ([]model.Category, error)
}

type categoryRepository struct {
	db *gorm.DB
}

func NewCategoryRepository(db *gorm.DB) CategoryRepository {
	return &categoryRepository{db: db}
}

func (r *categoryRepository) Create(category *model.Category) error {
	if err := r.db.Create(category).Error; err != nil {
		logger.Error("Failed to create category in database", err, map[string]interface{}{
			"name": category.Name,
			"slug": category.Slug,
		})
		return err
	}
	return nil
}

func (r *categoryRepository) FindBySlug(slug string) (*model.Category, error) {
	var category model.Category
	if err := r.db.Preload("Children").Where("slug = ?", slug).First(&category).Error; err != nil {
		return nil, err
	}
	return &category, nil
}

// FindMasters returns top-level categories with their sub categories
func (r *categoryRepository) FindMasters() ([]model.Category, error) {
	var categories []model.Category
	err := r.db.Preload("Children", func(db *gorm.DB) *gorm.DB {
		return db.Order("name ASC")
	}).Where("parent_id IS NULL").Order("name ASC").Find(&categories).Error
	if err != nil {
		logger.Error("Failed to list categories in database", err)
		return nil, err
	}
	return categories, nil
}
