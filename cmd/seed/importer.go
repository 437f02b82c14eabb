package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ikkim/quickcart-backend/internal/app/model"
	"github.com/ikkim/quickcart-backend/pkg/util"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

// Expected sheet layout, header row first:
// name | description | price | offer price | offer text | stock | image | category | sub category
const (
	colName = iota
	colDescription
	colPrice
	colOfferPrice
	colOfferText
	colStock
	colImage
	colCategory
	colSubCategory
	minColumns = colPrice + 1
)

type CatalogRow struct {
	Name        string
	Description string
	Price       float64
	OfferPrice  *float64
	OfferText   string
	Stock       int
	ImageURL    string
	Category    string
	SubCategory string
}

type ReadSummary struct {
	TotalRows int
	Skipped   int
}

type ImportResult struct {
	Products   int
	Categories int
}

func cell(row []string, i int) string {
	if i < len(row) {
		return strings.TrimSpace(row[i])
	}
	return ""
}

// parseRow returns false for rows that cannot become a product
func parseRow(row []string) (CatalogRow, bool) {
	if len(row) < minColumns {
		return CatalogRow{}, false
	}
	name := cell(row, colName)
	if name == "" {
		return CatalogRow{}, false
	}
	price, err := strconv.ParseFloat(cell(row, colPrice), 64)
	if err != nil || price <= 0 {
		return CatalogRow{}, false
	}

	r := CatalogRow{
		Name:        name,
		Description: cell(row, colDescription),
		Price:       price,
		OfferText:   cell(row, colOfferText),
		ImageURL:    cell(row, colImage),
		Category:    cell(row, colCategory),
		SubCategory: cell(row, colSubCategory),
	}
	if offer, err := strconv.ParseFloat(cell(row, colOfferPrice), 64); err == nil && offer > 0 && offer < price {
		r.OfferPrice = &offer
	}
	if stock, err := strconv.Atoi(cell(row, colStock)); err == nil && stock > 0 {
		r.Stock = stock
	}
	return r, true
}

// ReadCatalogXLSX reads products from the first sheet of the workbook
func ReadCatalogXLSX(filePath string) ([]CatalogRow, ReadSummary, error) {
	var summary ReadSummary

	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return nil, summary, fmt.Errorf("failed to open XLSX file: %w", err)
	}
	defer f.Close()

	sheetName := f.GetSheetName(0)
	if sheetName == "" {
		return nil, summary, errors.New("no sheets found in XLSX file")
	}

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, summary, fmt.Errorf("failed to read rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, summary, errors.New("no data found in XLSX file")
	}

	var products []CatalogRow
	seen := make(map[string]bool)
	for _, row := range rows[1:] {
		summary.TotalRows++
		r, ok := parseRow(row)
		if !ok {
			summary.Skipped++
			continue
		}
		key := strings.ToLower(r.Name)
		if seen[key] {
			summary.Skipped++
			continue
		}
		seen[key] = true
		products = append(products, r)
	}
	return products, summary, nil
}

// ImportCatalog creates missing categories and then the products in one transaction
func ImportCatalog(db *gorm.DB, rows []CatalogRow) (ImportResult, error) {
	var result ImportResult

	err := db.Transaction(func(tx *gorm.DB) error {
		categories := make(map[string]*model.Category)

		resolve := func(name string, parent *model.Category) (*model.Category, error) {
			slug := util.Slugify(name)
			if slug == "" {
				return parent, nil
			}
			if c, ok := categories[slug]; ok {
				return c, nil
			}

			var c model.Category
			err := tx.Where("slug = ?", slug).First(&c).Error
			switch {
			case err == nil:
			case errors.Is(err, gorm.ErrRecordNotFound):
				c = model.Category{Name: name, Slug: slug}
				if parent != nil {
					c.ParentID = &parent.ID
				}
				if err := tx.Create(&c).Error; err != nil {
					return nil, fmt.Errorf("create category %q: %w", name, err)
				}
				result.Categories++
			default:
				return nil, err
			}
			categories[slug] = &c
			return &c, nil
		}

		products := make([]model.Product, 0, len(rows))
		for _, r := range rows {
			master, err := resolve(r.Category, nil)
			if err != nil {
				return err
			}
			category := master
			if r.SubCategory != "" {
				if category, err = resolve(r.SubCategory, master); err != nil {
					return err
				}
			}

			p := model.Product{
				Name:        r.Name,
				Description: r.Description,
				Price:       r.Price,
				OfferPrice:  r.OfferPrice,
				OfferText:   r.OfferText,
				Stock:       r.Stock,
				ImageURL:    r.ImageURL,
			}
			if category != nil {
				p.CategoryID = &category.ID
			}
			products = append(products, p)
		}

		if len(products) == 0 {
			return nil
		}
		if err := tx.CreateInBatches(products, 500).Error; err != nil {
			return fmt.Errorf("create products: %w", err)
		}
		result.Products = len(products)
		return nil
	})
	return result, err
}
