package repository

import (
	"testing"

	"github.com/ikkim/quickcart-backend/internal/app/model"
	"github.com/ikkim/quickcart-backend/internal/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCategoryRepository(t *testing.T) {
	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	defer db.CleanupTestDB(testDB)

	repo := NewCategoryRepository(testDB)

	master := &model.Category{Name: "Furniture", Slug: "furniture"}
	require.NoError(t, repo.Create(master))
	require.NoError(t, repo.Create(&model.Category{Name: "Tables", Slug: "tables", ParentID: &master.ID}))
	require.NoError(t, repo.Create(&model.Category{Name: "Chairs", Slug: "chairs", ParentID: &master.ID}))

	t.Run("Duplicate slug is rejected", func(t *testing.T) {
		err := repo.Create(&model.Category{Name: "Furniture 2", Slug: "furniture"})
		assert.Error(t, err)
	})

	t.Run("FindMasters preloads sorted children", func(t *testing.T) {
		masters, err := repo.FindMasters()
		require.NoError(t, err)
		require.Len(t, masters, 1)
		require.Len(t, masters[0].Children, 2)
		assert.Equal(t, "Chairs", masters[0].Children[0].Name)
		assert.Equal(t, "Tables", masters[0].Children[1].Name)
	})

	t.Run("FindBySlug", func(t *testing.T) {
		found, err := repo.FindBySlug("tables")
		require.NoError(t, err)
		assert.Equal(t, "Tables", found.Name)

		_, err = repo.FindBySlug("missing")
		assert.Error(t, err)
	})
}
