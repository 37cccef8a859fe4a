package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"facewatch/internal/config"
	"facewatch/internal/models"
	"facewatch/internal/repository/sqlite"
	"facewatch/internal/services/recording"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	recordingsDir := flag.String("recordings", cfg.RecordingsDirectory, "Directory containing recordings")
	dbPath := flag.String("db", cfg.DatabasePath, "Database path")
	flag.Parse()

	fmt.Printf("Migrating recordings from %s to database %s\n", *recordingsDir, *dbPath)

	db, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()
	repo := sqlite.NewRecordingRepository(db)

	files, err := os.ReadDir(*recordingsDir)
	if err != nil {
		log.Fatalf("Failed to read recordings directory: %v", err)
	}

	inserted, existing, skipped := 0, 0, 0
	for _, file := range files {
		name := file.Name()
		if file.IsDir() || !strings.HasPrefix(name, "recording_") || filepath.Ext(name) != ".avi" {
			continue
		}

		startedAt, err := recording.ParseSessionName(name, time.Local)
		if err != nil {
			log.Printf("⚠️  Skipping %s: %v", name, err)
			skipped++
			continue
		}

		if ok, err := repo.Exists(name); err != nil {
			log.Printf("⚠️  Failed to check %s: %v", name, err)
			skipped++
			continue
		} else if ok {
			existing++
			continue
		}

		info, err := file.Info()
		if err != nil {
			log.Printf("⚠️  Failed to get info for %s: %v", name, err)
			skipped++
			continue
		}

		// The session ended when the file was last written
		endedAt := info.ModTime()
		rec := &models.Recording{
			Filename:  name,
			FilePath:  filepath.Join(*recordingsDir, name),
			StartedAt: startedAt,
			EndedAt:   &endedAt,
			Status:    models.RecordingFinished,
			FileSize:  info.Size(),
		}
		if _, err := repo.Insert(rec); err != nil {
			log.Printf("⚠️  Failed to insert %s: %v", name, err)
			skipped++
			continue
		}
		inserted++
	}

	fmt.Printf("✅ Inserted %d recording(s), %d already present\n", inserted, existing)
	if skipped > 0 {
		fmt.Printf("⚠️  Skipped %d files (invalid name or errors)\n", skipped)
	}

	total, err := repo.GetTotalCount(nil)
	if err == nil {
		fmt.Printf("\n📊 Database Statistics:\n")
		fmt.Printf("   Total recordings: %d\n", total)
	}
}
