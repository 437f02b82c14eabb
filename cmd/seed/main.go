package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/ikkim/quickcart-backend/config"
	"github.com/ikkim/quickcart-backend/internal/db"
	"github.com/ikkim/quickcart-backend/pkg/logger"
)

func main() {
	yes := flag.Bool("yes", false, "import without asking for confirmation")
	dryRun := flag.Bool("dry-run", false, "only parse the workbook and print what would be imported")
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: seed [-yes] [-dry-run] <catalog.xlsx>")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	workbook := flag.Arg(0)

	logger.Initialize(logger.Config{Level: "info", Format: "console", Component: "seed"})

	rows, summary, err := ReadCatalogXLSX(workbook)
	if err != nil {
		logger.Fatal("Cannot read catalog workbook", err, map[string]interface{}{"file": workbook})
	}
	fmt.Printf("%s: %d rows, %d importable, %d skipped\n", workbook, summary.TotalRows, len(rows), summary.Skipped)
	if *dryRun || len(rows) == 0 {
		return
	}
	if !*yes && !confirm(fmt.Sprintf("Import %d products?", len(rows))) {
		fmt.Println("Nothing imported.")
		return
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Cannot load configuration", err)
	}
	if err := db.Initialize(&cfg.Database); err != nil {
		logger.Fatal("Cannot open database", err)
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		logger.Fatal("Schema migration failed", err)
	}

	result, err := ImportCatalog(db.GetDB(), rows)
	if err != nil {
		logger.Fatal("Catalog import rolled back", err)
	}
	logger.Info("Catalog imported", map[string]interface{}{
		"products":   result.Products,
		"categories": result.Categories,
	})
}

func confirm(question string) bool {
	fmt.Printf("%s [y/N] ", question)
	answer, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	}
	return false
}
