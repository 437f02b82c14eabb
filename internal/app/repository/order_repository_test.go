package repository

import (
	"testing"

	"github.com/ikkim/quickcart-backend/internal/app/model"
	"github.com/ikkim/quickcart-backend/internal/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupOrderTest(t *testing.T) (*gorm.DB, OrderRepository, []model.Product) {
	testDB, err := db.SetupTestDB()
	require.NoError(t, err)

	productRepo := NewProductRepository(testDB)
	products := []model.Product{
		{Name: "Kettle", Price: 25},
		{Name: "Toaster", Price: 40},
	}
	for i := range products {
		require.NoError(t, productRepo.Create(&products[i]))
	}
	return testDB, NewOrderRepository(testDB), products
}

func newTestOrder(email string, items ...model.OrderItem) *model.Order {
	total := 0.0
	for _, item := range items {
		total += item.Price * float64(item.Quantity)
	}
	return &model.Order{
		Name:        "Asha",
		Email:       email,
		Address:     "12 MG Road",
		City:        "Kochi",
		PostalCode:  "682001",
		Phone:       "9876543210",
		PaymentMode: model.PaymentModeCOD,
		TotalAmount: total,
		OrderItems:  items,
	}
}

func TestOrderRepository_CreateAndFind(t *testing.T) {
	testDB, repo, products := setupOrderTest(t)
	defer db.CleanupTestDB(testDB)

	order := newTestOrder("asha@example.com",
		model.OrderItem{ProductID: products[0].ID, Name: products[0].Name, Price: 25, Quantity: 2},
		model.OrderItem{ProductID: products[1].ID, Name: products[1].Name, Price: 40, Quantity: 1},
	)
	require.NoError(t, repo.Create(order))
	assert.NotEmpty(t, order.ID)

	found, err := repo.FindByID(order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusPending, found.Status)
	assert.Equal(t, model.PaymentStatusUnpaid, found.PaymentStatus)
	assert.Equal(t, 90.0, found.TotalAmount)
	require.Len(t, found.OrderItems, 2)
	assert.Equal(t, "Kettle", found.OrderItems[0].Name)

	byEmail, err := repo.FindByEmail("asha@example.com")
	require.NoError(t, err)
	assert.Len(t, byEmail, 1)

	none, err := repo.FindByEmail("nobody@example.com")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestOrderRepository_UpdateStatus(t *testing.T) {
	testDB, repo, products := setupOrderTest(t)
	defer db.CleanupTestDB(testDB)

	order := newTestOrder("asha@example.com",
		model.OrderItem{ProductID: products[0].ID, Name: products[0].Name, Price: 25, Quantity: 1},
	)
	require.NoError(t, repo.Create(order))

	require.NoError(t, repo.UpdateStatus(order.ID, model.OrderStatusAccepted))
	require.NoError(t, repo.UpdatePaymentStatus(order.ID, model.PaymentStatusPaid))

	found, err := repo.FindByID(order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusAccepted, found.Status)
	assert.Equal(t, model.PaymentStatusPaid, found.PaymentStatus)

	assert.ErrorIs(t, repo.UpdateStatus("missing", model.OrderStatusAccepted), gorm.ErrRecordNotFound)
	assert.ErrorIs(t, repo.UpdatePaymentStatus("missing", model.PaymentStatusPaid), gorm.ErrRecordNotFound)

	accepted, err := repo.FindAll(OrderFilter{Status: model.OrderStatusAccepted})
	require.NoError(t, err)
	assert.Len(t, accepted, 1)

	pending, err := repo.FindAll(OrderFilter{Status: model.OrderStatusPending})
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestOrderRepository_MostSold(t *testing.T) {
	testDB, repo, products := setupOrderTest(t)
	defer db.CleanupTestDB(testDB)

	kettle, toaster := products[0], products[1]
	require.NoError(t, repo.Create(newTestOrder("a@example.com",
		model.OrderItem{ProductID: kettle.ID, Name: kettle.Name, Price: 25, Quantity: 1},
		model.OrderItem{ProductID: toaster.ID, Name: toaster.Name, Price: 40, Quantity: 2},
	)))
	require.NoError(t, repo.Create(newTestOrder("b@example.com",
		model.OrderItem{ProductID: toaster.ID, Name: toaster.Name, Price: 40, Quantity: 3},
	)))

	rows, err := repo.MostSold(10)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, toaster.ID, rows[0].ProductID)
	assert.Equal(t, int64(5), rows[0].SoldQuantity)
	assert.Equal(t, kettle.ID, rows[1].ProductID)
	assert.Equal(t, int64(1), rows[1].SoldQuantity)

	top, err := repo.MostSold(1)
	require.NoError(t, err)
	assert.Len(t, top, 1)
}
