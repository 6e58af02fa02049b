// Seeds demo assignments for local development: a handful of school tasks,
// doctor tasks and tournaments over a fixed set of child ids.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/nuruplay/api/internal/assignment"
	"github.com/nuruplay/api/internal/config"
	"github.com/nuruplay/api/internal/database"
	"github.com/nuruplay/api/internal/gateway"
	"github.com/nuruplay/api/internal/model"
)

func main() {
	ownerID := flag.Int64("owner", 1, "Owner id to seed assignments for")
	ownerType := flag.String("owner-type", model.OwnerSchool, "Owner type (school or doctor)")
	childrenStr := flag.String("children", "101,102,103", "Comma-separated child ids")
	count := flag.Int("count", 5, "Number of assignments to create")
	flag.Parse()

	var childIDs []int64
	for _, part := range strings.Split(*childrenStr, ",") {
		var id int64
		if _, err := fmt.Sscanf(strings.TrimSpace(part), "%d", &id); err == nil {
			childIDs = append(childIDs, id)
		}
	}
	if len(childIDs) == 0 {
		log.Fatal("no valid child ids given")
	}

	cfg := config.Load()

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	// No directory needed: seeding always gives explicit child ids.
	svc := assignment.NewService(db, gateway.New(cfg.BackendURLs, cfg.BackendTimeout), nil)

	gameSets := [][]string{
		{"dance-doodle", "gaze-game"},
		{"gesture-game"},
		{"mirror-posture-game", "repeat-with-me-game"},
		{"dance-doodle", "gesture-game", "gaze-game"},
		{"repeat-with-me-game", "gaze-game"},
	}

	now := time.Now()
	created := 0
	for i := 0; i < *count; i++ {
		kind := model.KindTask
		if i%3 == 2 {
			kind = model.KindTournament
		}

		group, err := svc.Create(context.Background(), assignment.CreateInput{
			OwnerID:     *ownerID,
			OwnerType:   *ownerType,
			Kind:        kind,
			ChildIDs:    childIDs,
			Title:       fmt.Sprintf("Demo %s %d", kind, i+1),
			Description: "Seeded for local development",
			GameKeys:    gameSets[i%len(gameSets)],
			StartTime:   now,
			EndTime:     now.Add(time.Duration(7+i) * 24 * time.Hour),
		})
		if err != nil {
			log.Printf("Failed to seed assignment %d: %v", i+1, err)
			continue
		}
		created++
		log.Printf("Created %s %d with %d targets", kind, group.AssignmentID, group.TotalAssigned)
	}

	log.Printf("Seeding complete. Created %d of %d assignments", created, *count)
}
