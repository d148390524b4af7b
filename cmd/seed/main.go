package main

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/tmoreland/maplecart-backend/config"
	"github.com/tmoreland/maplecart-backend/internal/app/model"
	"github.com/tmoreland/maplecart-backend/internal/app/repository"
	"github.com/tmoreland/maplecart-backend/internal/db"
	"github.com/xuri/excelize/v2"
)

// Seeds the product catalog from an XLSX workbook. Expected columns:
// name, description, price, category, stock, image_url, colors, sizes.
// Colors are "Name:#hex" pairs and sizes plain names, both
// semicolon-separated.
func main() {
	if len(os.Args) < 2 {
		log.Fatal("Usage: go run cmd/seed/main.go <xlsx_file_path>")
	}

	filePath := os.Args[1]

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	if err := db.Initialize(&cfg.Database); err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		log.Fatal("Failed to run migrations:", err)
	}

	productRepo := repository.NewProductRepository(db.GetDB())

	fmt.Printf("Reading XLSX file: %s\n", filePath)
	products, err := readProductsFromXLSX(filePath)
	if err != nil {
		log.Fatal("Failed to read XLSX:", err)
	}

	fmt.Printf("Total products to import: %d\n", len(products))

	fmt.Print("Do you want to proceed with the import? (yes/no): ")
	var confirm string
	fmt.Scanln(&confirm)
	if confirm != "yes" && confirm != "y" {
		fmt.Println("Import cancelled.")
		return
	}

	batchSize := 100
	if err := productRepo.BulkCreate(products, batchSize); err != nil {
		log.Fatal("Failed to bulk create products:", err)
	}

	fmt.Println("Import completed successfully!")
	fmt.Printf("Total products imported: %d\n", len(products))
}

func readProductsFromXLSX(filePath string) ([]model.Product, error) {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open XLSX file: %w", err)
	}
	defer f.Close()

	sheetName := f.GetSheetName(0)
	if sheetName == "" {
		return nil, fmt.Errorf("no sheets found in XLSX file")
	}

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("no data found in XLSX file")
	}

	var products []model.Product
	seen := make(map[string]bool)
	skippedCount := 0

	// First row is the header.
	for i, row := range rows {
		if i == 0 {
			fmt.Printf("Headers: %v\n", row)
			continue
		}

		if len(row) < 5 {
			skippedCount++
			continue
		}

		name := strings.TrimSpace(row[0])
		description := strings.TrimSpace(row[1])
		priceStr := strings.TrimSpace(row[2])
		category := strings.TrimSpace(row[3])
		stockStr := strings.TrimSpace(row[4])

		if name == "" || priceStr == "" || category == "" {
			skippedCount++
			continue
		}

		price, err := strconv.ParseFloat(priceStr, 64)
		if err != nil || price <= 0 {
			skippedCount++
			continue
		}

		stock, err := strconv.Atoi(stockStr)
		if err != nil || stock < 0 {
			stock = 0
		}

		if seen[name] {
			skippedCount++
			continue
		}
		seen[name] = true

		product := model.Product{
			Name:          name,
			Description:   description,
			Price:         price,
			Category:      model.ProductCategory(category),
			StockQuantity: stock,
		}

		if len(row) > 5 {
			product.ImageURL = strings.TrimSpace(row[5])
		}
		if len(row) > 6 {
			product.Colors = parseColors(row[6])
		}
		if len(row) > 7 {
			product.Sizes = parseSizes(row[7])
		}

		products = append(products, product)
	}

	fmt.Printf("Skipped rows: %d\n", skippedCount)
	return products, nil
}

func parseColors(cell string) []model.ProductColor {
	var colors []model.ProductColor
	for _, part := range strings.Split(cell, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		name, hex := part, ""
		if idx := strings.Index(part, ":"); idx >= 0 {
			name = strings.TrimSpace(part[:idx])
			hex = strings.TrimSpace(part[idx+1:])
		}
		if name == "" {
			continue
		}

		colors = append(colors, model.ProductColor{
			Name:    name,
			HexCode: hex,
		})
	}
	return colors
}

func parseSizes(cell string) []model.ProductSize {
	var sizes []model.ProductSize
	order := 0
	for _, part := range strings.Split(cell, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		sizes = append(sizes, model.ProductSize{
			Name:      part,
			SortOrder: order,
		})
		order++
	}
	return sizes
}
