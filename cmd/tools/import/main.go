// Command import loads a dataset file into the opportunities table.
package main

import (
	"context"
	"log"
	"os"

	"github.com/david/bid-filter/internal/dataset"
	"github.com/david/bid-filter/internal/db"
	flag "github.com/spf13/pflag"
)

func main() {
	file := flag.String("file", "", "Dataset file (.json, .yaml); empty imports the bundled sample")
	dbURL := flag.String("database-url", os.Getenv("DATABASE_URL"), "Postgres connection string")
	flag.Parse()

	ctx := context.Background()
	pool, err := db.Connect(ctx, *dbURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	if err := db.ApplyMigrations(ctx, pool); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	source := "embedded"
	if *file != "" {
		source = "file"
	}
	records, err := dataset.Load(ctx, source, *file, nil)
	if err != nil {
		log.Fatalf("Failed to read dataset: %v", err)
	}

	log.Printf("Importing %d opportunities...", len(records))
	if err := db.NewStore(pool).UpsertOpportunities(ctx, records); err != nil {
		log.Fatalf("Import failed: %v", err)
	}
	log.Printf("Import complete")
}
