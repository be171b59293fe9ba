package main

import (
	"fmt"
	"log"
	"os"

	"flash-sniper/pkg/db"
)

// Checks that a journal database carries the current schema.
func main() {
	dbPath := "./data/sniper.db"
	if len(os.Args) > 1 {
		dbPath = os.Args[1]
	}
	fmt.Printf("Verifying journal at: %s\n", dbPath)

	database, err := db.New(dbPath)
	if err != nil {
		log.Fatalf("Failed to open DB: %v", err)
	}
	defer database.Close()

	missing := 0
	for i, table := range []string{"orders", "positions", "sessions"} {
		fmt.Printf("\n%d. Verifying %s table...\n", i+1, table)
		var name string
		err := database.DB.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			fmt.Printf("❌ %s table MISSING\n", table)
			missing++
			continue
		}
		fmt.Printf("✓ %s table exists\n", table)
	}

	fmt.Println("\n4. Verifying exit_cl_ord_id column in positions...")
	var n int
	err = database.DB.QueryRow("SELECT COUNT(*) FROM pragma_table_info('positions') WHERE name='exit_cl_ord_id'").Scan(&n)
	if err != nil {
		log.Fatalf("Query failed: %v", err)
	}
	if n == 1 {
		fmt.Println("✓ exit_cl_ord_id column exists")
	} else {
		fmt.Println("❌ exit_cl_ord_id column MISSING (journal created by an older build; recreate it)")
		missing++
	}

	if missing > 0 {
		os.Exit(1)
	}
}
