package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/ikkim/quickcart-backend/internal/app/model"
	"github.com/ikkim/quickcart-backend/internal/app/repository"
	"github.com/ikkim/quickcart-backend/internal/cache"
	"github.com/ikkim/quickcart-backend/internal/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type memoryRanking struct {
	mu      sync.Mutex
	ranking []model.ProductSales
	getErr  error
	gets    int
}

func (m *memoryRanking) GetMostSold(ctx context.Context) ([]model.ProductSales, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	if m.getErr != nil {
		return nil, m.getErr
	}
	if m.ranking == nil {
		return nil, cache.ErrCacheMiss
	}
	return m.ranking, nil
}

func (m *memoryRanking) SetMostSold(ctx context.Context, ranking []model.ProductSales) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ranking = ranking
	return nil
}

type productFixture struct {
	db       *gorm.DB
	service  ProductService
	ranking  *memoryRanking
	products map[string]model.Product
}

func setupProductServiceTest(t *testing.T) *productFixture {
	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() { db.CleanupTestDB(testDB) })

	electronics := model.Category{Name: "Electronics", Slug: "electronics"}
	require.NoError(t, testDB.Create(&electronics).Error)
	phones := model.Category{Name: "Smartphones", Slug: "smartphones", ParentID: &electronics.ID}
	require.NoError(t, testDB.Create(&phones).Error)

	productRepo := repository.NewProductRepository(testDB)
	offer := 850.0
	seed := []model.Product{
		{Name: "Budget Phone", Price: 120, CategoryID: &phones.ID},
		{Name: "Flagship Phone", Price: 900, OfferPrice: &offer, CategoryID: &phones.ID},
		{Name: "Office Chair", Price: 300},
		{Name: "Desk Lamp", Price: 40},
		{Name: "Bookshelf", Price: 150},
		{Name: "Monitor Arm", Price: 75},
		{Name: "Phone Stand", Price: 15},
	}
	products := make(map[string]model.Product, len(seed))
	for i := range seed {
		require.NoError(t, productRepo.Create(&seed[i]))
		products[seed[i].Name] = seed[i]
	}

	ranking := &memoryRanking{}
	svc := NewProductService(
		productRepo,
		repository.NewCategoryRepository(testDB),
		repository.NewOrderRepository(testDB),
		ranking,
		3,
	)
	return &productFixture{db: testDB, service: svc, ranking: ranking, products: products}
}

func (f *productFixture) order(t *testing.T, quantities map[string]int) {
	t.Helper()
	order := model.Order{
		Name: "Asha", Email: "asha@example.com", Address: "12 MG Road",
		City: "Kochi", PostalCode: "682001", Phone: "9876543210",
	}
	for name, qty := range quantities {
		p := f.products[name]
		order.OrderItems = append(order.OrderItems, model.OrderItem{
			ProductID: p.ID, Name: p.Name, Price: p.Price, Quantity: qty,
		})
	}
	require.NoError(t, repository.NewOrderRepository(f.db).Create(&order))
}

func TestProductService_ListProducts_Defaults(t *testing.T) {
	f := setupProductServiceTest(t)

	page, err := f.service.ListProducts(ProductListOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(7), page.Total)
	assert.Equal(t, 2, page.TotalPages)
	assert.Equal(t, DefaultPage, page.Page)
	assert.Len(t, page.Products, DefaultPageLimit)

	second, err := f.service.ListProducts(ProductListOptions{Page: 2})
	require.NoError(t, err)
	assert.Len(t, second.Products, 1)
}

func TestProductService_ListProducts_Filters(t *testing.T) {
	f := setupProductServiceTest(t)

	tests := []struct {
		name      string
		opts      ProductListOptions
		wantTotal int64
		wantFirst string
		wantErr   error
	}{
		{
			name:      "Search is case-insensitive",
			opts:      ProductListOptions{Search: "PHONE", Sort: "asc"},
			wantTotal: 3,
			wantFirst: "Phone Stand",
		},
		{
			name:      "Master category includes sub-categories",
			opts:      ProductListOptions{Category: "electronics", Sort: "desc"},
			wantTotal: 2,
			wantFirst: "Flagship Phone",
		},
		{
			name:      "Price range",
			opts:      ProductListOptions{MinPrice: floatPtr(50), MaxPrice: floatPtr(200), Sort: "asc"},
			wantTotal: 3,
			wantFirst: "Monitor Arm",
		},
		{
			name:    "Unknown category",
			opts:    ProductListOptions{Category: "gardening"},
			wantErr: ErrCategoryNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := f.service.ListProducts(tt.opts)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantTotal, page.Total)
			require.NotEmpty(t, page.Products)
			assert.Equal(t, tt.wantFirst, page.Products[0].Name)
		})
	}
}

func TestProductService_GetProductByID(t *testing.T) {
	f := setupProductServiceTest(t)
	lamp := f.products["Desk Lamp"]

	found, err := f.service.GetProductByID(" " + lamp.ID + " ")
	require.NoError(t, err)
	assert.Equal(t, "Desk Lamp", found.Name)

	_, err = f.service.GetProductByID("not-a-uuid")
	assert.ErrorIs(t, err, ErrProductNotFound)

	_, err = f.service.GetProductByID("00000000-0000-0000-0000-000000000000")
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestProductService_GetProductsByIDs(t *testing.T) {
	f := setupProductServiceTest(t)
	lamp := f.products["Desk Lamp"]
	chair := f.products["Office Chair"]

	products, err := f.service.GetProductsByIDs([]string{lamp.ID, "garbage", chair.ID, lamp.ID, "undefined"})
	require.NoError(t, err)
	assert.Len(t, products, 2)

	_, err = f.service.GetProductsByIDs([]string{"garbage", "", "null"})
	assert.ErrorIs(t, err, ErrNoValidProductIDs)
}

func TestProductService_GetOffers(t *testing.T) {
	f := setupProductServiceTest(t)

	offers, err := f.service.GetOffers(10)
	require.NoError(t, err)
	require.Len(t, offers, 1)
	assert.Equal(t, "Flagship Phone", offers[0].Name)
}

func TestProductService_MostSold(t *testing.T) {
	f := setupProductServiceTest(t)
	f.order(t, map[string]int{"Desk Lamp": 5, "Office Chair": 1})
	f.order(t, map[string]int{"Bookshelf": 3, "Office Chair": 1})
	f.order(t, map[string]int{"Phone Stand": 1})

	t.Run("Cache miss computes live", func(t *testing.T) {
		ranking, err := f.service.GetMostSold(context.Background(), 0)
		require.NoError(t, err)
		require.Len(t, ranking, 3)
		assert.Equal(t, "Desk Lamp", ranking[0].Product.Name)
		assert.Equal(t, int64(5), ranking[0].SoldQuantity)
		assert.Equal(t, "Bookshelf", ranking[1].Product.Name)
		assert.Equal(t, "Office Chair", ranking[2].Product.Name)
	})

	t.Run("Refresh fills the cache", func(t *testing.T) {
		require.NoError(t, f.service.RefreshMostSold(context.Background()))
		require.Len(t, f.ranking.ranking, 3)

		ranking, err := f.service.GetMostSold(context.Background(), 1)
		require.NoError(t, err)
		require.Len(t, ranking, 1)
		assert.Equal(t, "Desk Lamp", ranking[0].Product.Name)
	})

	t.Run("Cache error falls back", func(t *testing.T) {
		f.ranking.getErr = errors.New("connection refused")
		ranking, err := f.service.GetMostSold(context.Background(), 2)
		require.NoError(t, err)
		assert.Len(t, ranking, 2)
	})
}

func TestProductService_MostSold_WithoutCache(t *testing.T) {
	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	defer db.CleanupTestDB(testDB)

	svc := NewProductService(
		repository.NewProductRepository(testDB),
		repository.NewCategoryRepository(testDB),
		repository.NewOrderRepository(testDB),
		nil,
		0,
	)
	ranking, err := svc.GetMostSold(context.Background(), 5)
	require.NoError(t, err)
	assert.Empty(t, ranking)
	assert.NoError(t, svc.RefreshMostSold(context.Background()))
}

func TestProductService_ListCategories(t *testing.T) {
	f := setupProductServiceTest(t)

	categories, err := f.service.ListCategories()
	require.NoError(t, err)
	require.Len(t, categories, 1)
	assert.Equal(t, "electronics", categories[0].Slug)
	require.Len(t, categories[0].Children, 1)
	assert.Equal(t, "smartphones", categories[0].Children[0].Slug)
}

func floatPtr(v float64) *float64 { return &v }
