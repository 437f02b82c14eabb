package service

import (
	"context"
	"errors"
	"math"
	"strings"

	"github.com/google/uuid"
	"github.com/ikkim/quickcart-backend/internal/app/model"
	"github.com/ikkim/quickcart-backend/internal/app/repository"
	"github.com/ikkim/quickcart-backend/internal/cache"
	"github.com/ikkim/quickcart-backend/pkg/logger"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
)

var (
	ErrProductNotFound   = errors.New("product not found")
	ErrCategoryNotFound  = errors.New("category not found")
	ErrNoValidProductIDs = errors.New("no valid product ids provided")
)

const (
	DefaultPage      = 1
	DefaultPageLimit = 6
	maxPageLimit     = 100
)

type ProductListOptions struct {
	Search   string
	Category string
	MinPrice *float64
	MaxPrice *float64
	Sort     string // asc, desc or empty
	Page     int
	Limit    int
}

type ProductPage struct {
	Products   []model.Product `json:"products"`
	Total      int64           `json:"total"`
	TotalPages int             `json:"totalPages"`
	Page       int             `json:"page"`
}

// RankingStore caches the most-sold ranking between refreshes
type RankingStore interface {
	GetMostSold(ctx context.Context) ([]model.ProductSales, error)
	SetMostSold(ctx context.Context, ranking []model.ProductSales) error
}

type ProductService interface {
	ListProducts(opts ProductListOptions) (*ProductPage, error)
	GetProductByID(id string) (*model.Product, error)
	GetProductsByIDs(ids []string) ([]model.Product, error)
	GetOffers(limit int) ([]model.Product, error)
	GetMostSold(ctx context.Context, limit int) ([]model.ProductSales, error)
	RefreshMostSold(ctx context.Context) error
	CreateProduct(product *model.Product) error
	ListCategories() ([]model.Category, error)
}

type productService struct {
	productRepo  repository.ProductRepository
	categoryRepo repository.CategoryRepository
	orderRepo    repository.OrderRepository
	ranking      RankingStore
	rankingLimit int
	group        singleflight.Group
}

func NewProductService(
	productRepo repository.ProductRepository,
	categoryRepo repository.CategoryRepository,
	orderRepo repository.OrderRepository,
	ranking RankingStore,
	rankingLimit int,
) ProductService {
	if rankingLimit <= 0 {
		rankingLimit = 8
	}
	return &productService{
		productRepo:  productRepo,
		categoryRepo: categoryRepo,
		orderRepo:    orderRepo,
		ranking:      ranking,
		rankingLimit: rankingLimit,
	}
}

// ValidProductID reports whether id has the shape of a product key.
func ValidProductID(id string) bool {
	_, err := uuid.Parse(strings.TrimSpace(id))
	return err == nil
}

func (s *productService) ListProducts(opts ProductListOptions) (*ProductPage, error) {
	if opts.Page < 1 {
		opts.Page = DefaultPage
	}
	if opts.Limit < 1 {
		opts.Limit = DefaultPageLimit
	}
	if opts.Limit > maxPageLimit {
		opts.Limit = maxPageLimit
	}

	logger.Debug("Listing products", map[string]interface{}{
		"search":   opts.Search,
		"category": opts.Category,
		"sort":     opts.Sort,
		"page":     opts.Page,
		"limit":    opts.Limit,
	})

	if opts.Category != "" {
		if _, err := s.categoryRepo.FindBySlug(opts.Category); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrCategoryNotFound
			}
			return nil, err
		}
	}

	filter := repository.ProductFilter{
		Search:       opts.Search,
		CategorySlug: opts.Category,
		MinPrice:     opts.MinPrice,
		MaxPrice:     opts.MaxPrice,
		Limit:        opts.Limit,
		Offset:       (opts.Page - 1) * opts.Limit,
	}
	switch opts.Sort {
	case "asc":
		asc := true
		filter.SortAscending = &asc
	case "desc":
		asc := false
		filter.SortAscending = &asc
	}

	products, total, err := s.productRepo.FindWithFilter(filter)
	if err != nil {
		logger.Error("Failed to list products", err)
		return nil, err
	}

	return &ProductPage{
		Products:   products,
		Total:      total,
		TotalPages: int(math.Ceil(float64(total) / float64(opts.Limit))),
		Page:       opts.Page,
	}, nil
}

func (s *productService) GetProductByID(id string) (*model.Product, error) {
	if !ValidProductID(id) {
		return nil, ErrProductNotFound
	}
	product, err := s.productRepo.FindByID(strings.TrimSpace(id))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Warn("Product not found", map[string]interface{}{
				"product_id": id,
			})
			return nil, ErrProductNotFound
		}
		return nil, err
	}
	return product, nil
}

// GetProductsByIDs drops malformed ids and returns whatever exists among the rest.
func (s *productService) GetProductsByIDs(ids []string) ([]model.Product, error) {
	valid := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if !ValidProductID(id) || seen[id] {
			continue
		}
		seen[id] = true
		valid = append(valid, id)
	}
	if len(valid) == 0 {
		return nil, ErrNoValidProductIDs
	}

	products, err := s.productRepo.FindByIDs(valid)
	if err != nil {
		logger.Error("Failed to fetch products by ids", err, map[string]interface{}{
			"count": len(valid),
		})
		return nil, err
	}
	return products, nil
}

func (s *productService) GetOffers(limit int) ([]model.Product, error) {
	return s.productRepo.FindOffers(limit)
}

// GetMostSold serves the cached ranking and computes it live on a miss.
func (s *productService) GetMostSold(ctx context.Context, limit int) ([]model.ProductSales, error) {
	var ranking []model.ProductSales
	if s.ranking != nil {
		cached, err := s.ranking.GetMostSold(ctx)
		switch {
		case err == nil:
			ranking = cached
		case errors.Is(err, cache.ErrCacheMiss):
		default:
			logger.Warn("Most sold cache unavailable, computing live", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}

	if ranking == nil {
		v, err, _ := s.group.Do("most-sold", func() (interface{}, error) {
			return s.computeMostSold(ctx)
		})
		if err != nil {
			return nil, err
		}
		ranking = v.([]model.ProductSales)
	}

	if limit > 0 && len(ranking) > limit {
		ranking = ranking[:limit]
	}
	return ranking, nil
}

// RefreshMostSold recomputes the ranking and stores it in the cache.
func (s *productService) RefreshMostSold(ctx context.Context) error {
	ranking, err := s.computeMostSold(ctx)
	if err != nil {
		return err
	}
	if s.ranking == nil {
		return nil
	}
	if err := s.ranking.SetMostSold(ctx, ranking); err != nil {
		logger.Error("Failed to store most sold ranking", err)
		return err
	}
	logger.Info("Most sold ranking refreshed", map[string]interface{}{
		"count": len(ranking),
	})
	return nil
}

func (s *productService) computeMostSold(ctx context.Context) ([]model.ProductSales, error) {
	rows, err := s.orderRepo.MostSold(s.rankingLimit)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ProductID)
	}
	products, err := s.productRepo.FindByIDs(ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]model.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	ranking := make([]model.ProductSales, 0, len(rows))
	for _, row := range rows {
		product, ok := byID[row.ProductID]
		if !ok {
			// product removed from the catalog since it was ordered
			continue
		}
		ranking = append(ranking, model.ProductSales{Product: product, SoldQuantity: row.SoldQuantity})
	}
	return ranking, nil
}

func (s *productService) CreateProduct(product *model.Product) error {
	logger.Info("Creating product", map[string]interface{}{
		"name":  product.Name,
		"price": product.Price,
	})
	return s.productRepo.Create(product)
}

func (s *productService) ListCategories() ([]model.Category, error) {
	return s.categoryRepo.FindMasters()
}
