// Command reindex runs a single full verification pass against the index
// database and exits. Intended for cron jobs and migration checks where the
// long-running service is not available.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"media-index/internal/database"
	"media-index/internal/filesystem"
	"media-index/internal/logging"
	"media-index/internal/reconciler"
)

func main() {
	os.Exit(run())
}

func run() int {
	mediaDir := flag.String("media", "/media", "media directory to verify")
	databaseDir := flag.String("database", "/database", "directory holding index.db")
	flag.Parse()

	absMedia, err := filepath.Abs(*mediaDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid media directory: %v\n", err)
		return 1
	}
	if info, err := os.Stat(absMedia); err != nil || !info.IsDir() {
		fmt.Fprintf(os.Stderr, "media directory not accessible: %s\n", absMedia)
		return 1
	}

	ctx := context.Background()
	db, err := database.New(ctx, filepath.Join(*databaseDir, "index.db"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open database: %v\n", err)
		return 1
	}
	defer db.Close()

	rec := reconciler.New(db, absMedia, reconciler.Config{
		Retry: filesystem.DefaultRetryConfig(),
	})

	start := time.Now()
	result, err := rec.Verify(ctx)
	if err != nil {
		logging.Error("Verification failed: %v", err)
		return 1
	}

	fmt.Printf("verified %s in %v: %d created, %d updated, %d deleted, %d revived, %d hash failures\n",
		absMedia, time.Since(start).Round(time.Millisecond),
		result.Created, result.Updated, result.Deleted, result.Revived, result.HashFailures)
	return 0
}
