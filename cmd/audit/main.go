// Audits the assignment store for inconsistencies the runtime invariants
// should make impossible: orphaned targets, unknown statuses, masks with
// bits outside the catalog, and inverted time windows.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/nuruplay/api/internal/config"
	"github.com/nuruplay/api/internal/games"
	"github.com/nuruplay/api/internal/model"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Issue struct {
	Table   string `json:"table"`
	ID      int64  `json:"id"`
	Type    string `json:"type"`
	Details string `json:"details"`
}

func main() {
	batchSize := flag.Int("batch", 500, "Rows per batch")
	outputFile := flag.String("output", "audit_results.json", "Output file for results")
	flag.Parse()

	cfg := config.Load()
	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	var issues []Issue

	// Headers: mask and time window sanity.
	var headers []model.Assignment
	result := db.FindInBatches(&headers, *batchSize, func(tx *gorm.DB, batch int) error {
		for _, asn := range headers {
			if !games.Mask(asn.GameMask).Valid() {
				issues = append(issues, Issue{
					Table: "assignments", ID: asn.ID, Type: "unknown_mask_bits",
					Details: fmt.Sprintf("mask %d has bits outside the catalog", asn.GameMask),
				})
			}
			if asn.GameMask == 0 {
				issues = append(issues, Issue{
					Table: "assignments", ID: asn.ID, Type: "empty_mask",
					Details: "assignment selects no games",
				})
			}
			if !asn.StartTime.Before(asn.EndTime) {
				issues = append(issues, Issue{
					Table: "assignments", ID: asn.ID, Type: "inverted_window",
					Details: fmt.Sprintf("start %s is not before end %s", asn.StartTime, asn.EndTime),
				})
			}
		}
		return nil
	})
	if result.Error != nil {
		log.Fatalf("Failed to scan assignments: %v", result.Error)
	}

	// Targets: orphans and unknown statuses.
	var targets []model.AssignmentTarget
	result = db.FindInBatches(&targets, *batchSize, func(tx *gorm.DB, batch int) error {
		for _, t := range targets {
			var count int64
			db.Model(&model.Assignment{}).Where("id = ?", t.AssignmentID).Count(&count)
			if count == 0 {
				issues = append(issues, Issue{
					Table: "assignment_targets", ID: t.ID, Type: "orphaned_target",
					Details: fmt.Sprintf("no assignment %d for child %d", t.AssignmentID, t.ChildID),
				})
			}
			if t.Status != model.StatusAssigned && t.Status != model.StatusCompleted {
				issues = append(issues, Issue{
					Table: "assignment_targets", ID: t.ID, Type: "unknown_status",
					Details: fmt.Sprintf("status %q", t.Status),
				})
			}
		}
		return nil
	})
	if result.Error != nil {
		log.Fatalf("Failed to scan targets: %v", result.Error)
	}

	data, err := json.MarshalIndent(issues, "", "  ")
	if err != nil {
		log.Fatalf("Failed to marshal results: %v", err)
	}
	if err := os.WriteFile(*outputFile, data, 0o644); err != nil {
		log.Fatalf("Failed to write results: %v", err)
	}

	fmt.Printf("Audit complete: %d issues written to %s\n", len(issues), *outputFile)
	if len(issues) > 0 {
		os.Exit(1)
	}
}
