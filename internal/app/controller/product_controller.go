package controller

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/ikkim/quickcart-backend/internal/app/model"
	"github.com/ikkim/quickcart-backend/internal/app/service"
	apperrors "github.com/ikkim/quickcart-backend/internal/errors"
	"github.com/ikkim/quickcart-backend/internal/middleware"
)

type ProductController struct {
	productService service.ProductService
}

func NewProductController(productService service.ProductService) *ProductController {
	return &ProductController{
		productService: productService,
	}
}

type CreateProductRequest struct {
	Name        string   `json:"name" binding:"required"`
	Description string   `json:"description"`
	Price       float64  `json:"price" binding:"required,gt=0"`
	OfferPrice  *float64 `json:"offerPrice" binding:"omitempty,gt=0"`
	OfferText   string   `json:"offerText"`
	Stock       int      `json:"stock" binding:"gte=0"`
	ImageURL    string   `json:"image"`
	CategoryID  *string  `json:"categoryId"`
}

func queryFloat(c *gin.Context, key string) (*float64, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func queryInt(c *gin.Context, key string, fallback int) int {
	v, err := strconv.Atoi(strings.TrimSpace(c.Query(key)))
	if err != nil {
		return fallback
	}
	return v
}

// ListProducts returns one page of the catalogue
// GET /api/v1/products?search=&category=&minPrice=&maxPrice=&sort=&page=&limit=
func (ctrl *ProductController) ListProducts(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	minPrice, err := queryFloat(c, "minPrice")
	if err != nil {
		apperrors.BadRequest(c, apperrors.ValidationInvalidFormat, "minPrice must be a number")
		return
	}
	maxPrice, err := queryFloat(c, "maxPrice")
	if err != nil {
		apperrors.BadRequest(c, apperrors.ValidationInvalidFormat, "maxPrice must be a number")
		return
	}
	if minPrice != nil && maxPrice != nil && *minPrice > *maxPrice {
		apperrors.BadRequest(c, apperrors.ValidationInvalidRange, "minPrice cannot exceed maxPrice")
		return
	}

	sort := strings.ToLower(c.Query("sort"))
	if sort != "" && sort != "asc" && sort != "desc" {
		apperrors.BadRequest(c, apperrors.ValidationInvalidInput, "sort must be asc or desc")
		return
	}

	page, err := ctrl.productService.ListProducts(service.ProductListOptions{
		Search:   strings.TrimSpace(c.Query("search")),
		Category: strings.TrimSpace(c.Query("category")),
		MinPrice: minPrice,
		MaxPrice: maxPrice,
		Sort:     sort,
		Page:     queryInt(c, "page", service.DefaultPage),
		Limit:    queryInt(c, "limit", service.DefaultPageLimit),
	})
	if err != nil {
		if errors.Is(err, service.ErrCategoryNotFound) {
			apperrors.NotFound(c, apperrors.CategoryNotFound, "Category not found")
			return
		}
		log.Error("Failed to list products", err, nil)
		apperrors.ParseAndRespond(c, http.StatusInternalServerError, err, "list products")
		return
	}

	c.JSON(http.StatusOK, page)
}

// GetProductsByIDs resolves a comma separated id list; unknown ids are omitted
// GET /api/v1/products/by-ids?ids=a,b,c
func (ctrl *ProductController) GetProductsByIDs(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	ids := strings.Split(c.Query("ids"), ",")
	products, err := ctrl.productService.GetProductsByIDs(ids)
	if err != nil {
		if errors.Is(err, service.ErrNoValidProductIDs) {
			log.Warn("No valid product ids in request", map[string]interface{}{
				"ids": c.Query("ids"),
			})
			apperrors.BadRequest(c, apperrors.ValidationInvalidID, "No valid product ids provided")
			return
		}
		log.Error("Failed to fetch products by ids", err, nil)
		apperrors.ParseAndRespond(c, http.StatusInternalServerError, err, "get products")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"products": products,
	})
}

// GetProductByID returns a product by ID
// GET /api/v1/products/:id
func (ctrl *ProductController) GetProductByID(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	id := c.Param("id")
	product, err := ctrl.productService.GetProductByID(id)
	if err != nil {
		if errors.Is(err, service.ErrProductNotFound) {
			apperrors.NotFound(c, apperrors.ProductNotFound, "Product not found")
			return
		}
		log.Error("Failed to fetch product", err, map[string]interface{}{
			"product_id": id,
		})
		apperrors.ParseAndRespond(c, http.StatusInternalServerError, err, "get product")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"product": product,
	})
}

// GetOffers lists discounted products
// GET /api/v1/products/offers
func (ctrl *ProductController) GetOffers(c *gin.Context) {
	products, err := ctrl.productService.GetOffers(queryInt(c, "limit", 0))
	if err != nil {
		middleware.GetLoggerFromContext(c).Error("Failed to fetch offers", err, nil)
		apperrors.ParseAndRespond(c, http.StatusInternalServerError, err, "list products")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"products": products,
	})
}

// GetMostSold returns the best selling products with their sold quantities
// GET /api/v1/products/most-sold?limit=
func (ctrl *ProductController) GetMostSold(c *gin.Context) {
	ranking, err := ctrl.productService.GetMostSold(c.Request.Context(), queryInt(c, "limit", 0))
	if err != nil {
		middleware.GetLoggerFromContext(c).Error("Failed to fetch most sold products", err, nil)
		apperrors.ParseAndRespond(c, http.StatusInternalServerError, err, "list products")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"products": ranking,
	})
}

// CreateProduct creates a new product (Admin only)
// POST /api/v1/products
func (ctrl *ProductController) CreateProduct(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	var req CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn("Invalid product creation request", map[string]interface{}{
			"error": err.Error(),
		})
		apperrors.BindingError(c, err, "Invalid product data")
		return
	}

	product := &model.Product{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		OfferPrice:  req.OfferPrice,
		OfferText:   req.OfferText,
		Stock:       req.Stock,
		ImageURL:    req.ImageURL,
		CategoryID:  req.CategoryID,
	}
	if err := ctrl.productService.CreateProduct(product); err != nil {
		log.Error("Failed to create product", err, map[string]interface{}{
			"name": req.Name,
		})
		apperrors.ParseAndRespond(c, http.StatusInternalServerError, err, "create product")
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"product": product,
	})
}

// ListCategories returns master categories with their sub categories
// GET /api/v1/categories
func (ctrl *ProductController) ListCategories(c *gin.Context) {
	categories, err := ctrl.productService.ListCategories()
	if err != nil {
		middleware.GetLoggerFromContext(c).Error("Failed to list categories", err, nil)
		apperrors.ParseAndRespond(c, http.StatusInternalServerError, err, "list categories")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"categories": categories,
	})
}
