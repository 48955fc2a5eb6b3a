package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/david/bid-filter/internal/db"
	"github.com/david/bid-filter/internal/models"
)

func main() {
	ctx := context.Background()
	pool, err := db.Connect(ctx, os.Getenv("DATABASE_URL"))
	if err != nil {
		log.Fatalf("Unable to connect to database: %v", err)
	}
	defer pool.Close()

	var total, withKeywords, profiles, snapshots int
	err = pool.QueryRow(ctx, `
		SELECT
			(SELECT count(*) FROM opportunities),
			(SELECT count(*) FROM opportunities WHERE cardinality(keywords) > 0),
			(SELECT count(DISTINCT profile_id) FROM filter_snapshots),
			(SELECT count(*) FROM filter_snapshots)
	`).Scan(&total, &withKeywords, &profiles, &snapshots)
	if err != nil {
		log.Fatalf("Query failed: %v", err)
	}

	fmt.Printf("Opportunities: %d\n", total)
	fmt.Printf("With keywords: %d\n", withKeywords)
	fmt.Printf("Profiles with snapshots: %d\n", profiles)
	fmt.Printf("Stored snapshots: %d\n", snapshots)

	counts := map[string]int{}
	rows, err := pool.Query(ctx, `SELECT status, count(*) FROM opportunities GROUP BY status`)
	if err != nil {
		log.Fatalf("Query failed: %v", err)
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err == nil {
			counts[status] = n
		}
	}
	for _, status := range models.Statuses {
		fmt.Printf("  %-10s %d\n", status, counts[status])
	}
}
