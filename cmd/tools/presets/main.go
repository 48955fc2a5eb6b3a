// Command presets lists the filter snapshots stored in Postgres.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/david/bid-filter/internal/db"
	"github.com/david/bid-filter/internal/filter"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	flag "github.com/spf13/pflag"
)

func main() {
	dbURL := flag.String("database-url", os.Getenv("DATABASE_URL"), "Postgres connection string")
	profileStr := flag.String("profile", "", "Only list snapshots for this profile id")
	limit := flag.Int("limit", 20, "Maximum rows to show")
	flag.Parse()

	var profileID *uuid.UUID
	if *profileStr != "" {
		id, err := uuid.Parse(*profileStr)
		if err != nil {
			log.Fatalf("Invalid --profile: %v", err)
		}
		profileID = &id
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := db.Connect(ctx, *dbURL)
	if err != nil {
		log.Fatal(err)
	}
	defer pool.Close()

	snapshots, err := db.NewSnapshotStore(pool).ListSnapshots(ctx, profileID, *limit)
	if err != nil {
		log.Fatal(err)
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Profile", "Slot", "Filters", "Updated"})

	for _, snap := range snapshots {
		summary := "(unreadable)"
		if f, err := filter.DecodeSnapshot(snap.Payload); err == nil {
			summary = describe(f)
		} else {
			log.Printf("Skipping corrupt snapshot %s/%s: %v", snap.ProfileID, snap.Slot, err)
		}
		t.AppendRow(table.Row{snap.ProfileID, snap.Slot, summary, humanize.Time(snap.UpdatedAt)})
	}
	t.Render()
}

func describe(f filter.Filters) string {
	if !filter.IsFiltered(f) {
		return "(no filters)"
	}
	share := filter.Encode(f).Encode()
	if len(share) > 80 {
		return fmt.Sprintf("%s... (%d chars)", share[:77], len(share))
	}
	return share
}
