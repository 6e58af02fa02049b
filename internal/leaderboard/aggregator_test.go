package leaderboard

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/nuruplay/api/internal/assignment"
	"github.com/nuruplay/api/internal/games"
	"github.com/nuruplay/api/internal/gateway"
	"github.com/nuruplay/api/internal/model"
)

type fakeSessionSource struct {
	// records per backend for assignment-level queries
	byGame map[string][]games.Record
	// backends that answer with an error
	failing map[string]bool
	// records per backend for per-child queries, keyed "game/child"
	byGameChild map[string][]games.Record
}

func (f *fakeSessionSource) SessionsForAssignment(_ context.Context, gameKey string, _ int64) gateway.Result {
	if f.failing[gameKey] {
		return gateway.Result{Backend: gameKey, Err: errors.New("backend down")}
	}
	return gateway.Result{Backend: gameKey, Records: f.byGame[gameKey]}
}

func (f *fakeSessionSource) SessionsForChild(_ context.Context, gameKey string, _ int64, childID int64) gateway.Result {
	if f.failing[gameKey] {
		return gateway.Result{Backend: gameKey, Err: errors.New("backend down")}
	}
	key := fmt.Sprintf("%s/%d", gameKey, childID)
	return gateway.Result{Backend: gameKey, Records: f.byGameChild[key]}
}

func (f *fakeSessionSource) ChildSessions(_ context.Context, gameKey string, _ int64) gateway.Result {
	if f.failing[gameKey] {
		return gateway.Result{Backend: gameKey, Err: errors.New("backend down")}
	}
	return gateway.Result{Backend: gameKey, Records: f.byGame[gameKey]}
}

type fakeStore struct {
	assignments map[int64]*model.Assignment
}

func (f *fakeStore) Get(_ context.Context, id int64) (*model.Assignment, error) {
	asn, ok := f.assignments[id]
	if !ok {
		return nil, assignment.ErrNotFound
	}
	return asn, nil
}

type fakeNames struct{}

func (fakeNames) ChildName(_ context.Context, id int64) string {
	return fmt.Sprintf("Child %d", id)
}

func danceRecord(childID int64, timing float64) games.Record {
	fields := make(map[string]float64)
	for _, f := range []string{
		"cool_arms", "open_wings", "silly_boxer", "happy_stand",
		"crossy_play", "shh_fun", "stretch",
	} {
		fields[f] = timing
	}
	return games.Record{ChildID: childID, Fields: fields}
}

func gazeRecord(childID int64, counts [3]float64) games.Record {
	return games.Record{ChildID: childID, Fields: map[string]float64{
		"round1Count": counts[0],
		"round2Count": counts[1],
		"round3Count": counts[2],
	}}
}

func entriesFor(entries []Entry, gameKey string) []Entry {
	out := make([]Entry, 0)
	for _, e := range entries {
		if e.GameKey == gameKey {
			out = append(out, e)
		}
	}
	return out
}

func TestBuildLeaderboardLowerIsBetter(t *testing.T) {
	src := &fakeSessionSource{
		byGame: map[string][]games.Record{
			"dance-doodle": {
				danceRecord(1, 12.0/7),
				danceRecord(2, 8.0 / 7),
				danceRecord(3, 8.0 / 7),
			},
		},
		failing: map[string]bool{},
	}
	agg := New(src, &fakeStore{}, fakeNames{})

	entries := entriesFor(agg.BuildLeaderboard(context.Background(), 1), "dance-doodle")
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(entries))
	}

	// Children 2 and 3 tie on the faster total; ties fall back to child id.
	want := []struct {
		childID int64
		rank    int
	}{
		{2, 1},
		{3, 2},
		{1, 3},
	}
	for i, w := range want {
		if entries[i].ChildID != w.childID || entries[i].Rank != w.rank {
			t.Errorf("entries[%d] = child %d rank %d, want child %d rank %d",
				i, entries[i].ChildID, entries[i].Rank, w.childID, w.rank)
		}
	}
	if entries[0].ChildName != "Child 2" {
		t.Errorf("ChildName = %q", entries[0].ChildName)
	}
}

func TestBuildLeaderboardHigherIsBetter(t *testing.T) {
	src := &fakeSessionSource{
		byGame: map[string][]games.Record{
			"gaze-game": {
				gazeRecord(1, [3]float64{1, 1, 1}), // 3
				gazeRecord(2, [3]float64{3, 2, 2}), // 7
				gazeRecord(3, [3]float64{2, 2, 1}), // 5
			},
		},
		failing: map[string]bool{},
	}
	agg := New(src, &fakeStore{}, fakeNames{})

	entries := entriesFor(agg.BuildLeaderboard(context.Background(), 1), "gaze-game")
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(entries))
	}
	wantOrder := []int64{2, 3, 1}
	for i, childID := range wantOrder {
		if entries[i].ChildID != childID || entries[i].Rank != i+1 {
			t.Errorf("entries[%d] = child %d rank %d, want child %d rank %d",
				i, entries[i].ChildID, entries[i].Rank, childID, i+1)
		}
	}
	if entries[0].BestScore != 7 {
		t.Errorf("BestScore = %v, want 7", entries[0].BestScore)
	}
}

func TestBuildLeaderboardBestAndAverageAcrossSessions(t *testing.T) {
	src := &fakeSessionSource{
		byGame: map[string][]games.Record{
			"gaze-game": {
				gazeRecord(1, [3]float64{1, 1, 1}), // 3
				gazeRecord(1, [3]float64{3, 3, 3}), // 9
			},
		},
		failing: map[string]bool{},
	}
	agg := New(src, &fakeStore{}, fakeNames{})

	entries := entriesFor(agg.BuildLeaderboard(context.Background(), 1), "gaze-game")
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	e := entries[0]
	if e.SessionsPlayed != 2 {
		t.Errorf("SessionsPlayed = %d, want 2", e.SessionsPlayed)
	}
	if e.BestScore != 9 {
		t.Errorf("BestScore = %v, want 9", e.BestScore)
	}
	if e.AverageScore != 6 {
		t.Errorf("AverageScore = %v, want 6", e.AverageScore)
	}
}

func TestBuildLeaderboardSkipsFailedBackends(t *testing.T) {
	src := &fakeSessionSource{
		byGame: map[string][]games.Record{
			"gaze-game":    {gazeRecord(1, [3]float64{2, 2, 2})},
			"dance-doodle": {danceRecord(1, 1)},
		},
		failing: map[string]bool{"dance-doodle": true},
	}
	agg := New(src, &fakeStore{}, fakeNames{})

	entries := agg.BuildLeaderboard(context.Background(), 1)
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1 (only the healthy backend)", len(entries))
	}
	if entries[0].GameKey != "gaze-game" {
		t.Errorf("surviving entry from %q, want gaze-game", entries[0].GameKey)
	}
}

func TestBuildLeaderboardAllBackendsDown(t *testing.T) {
	failing := make(map[string]bool)
	for _, d := range games.All() {
		failing[d.Key] = true
	}
	agg := New(&fakeSessionSource{failing: failing}, &fakeStore{}, fakeNames{})

	entries := agg.BuildLeaderboard(context.Background(), 1)
	if len(entries) != 0 {
		t.Errorf("got %d entries from dead backends, want 0", len(entries))
	}
}

func TestBuildLeaderboardIgnoresRecordsWithoutChild(t *testing.T) {
	src := &fakeSessionSource{
		byGame: map[string][]games.Record{
			"gaze-game": {
				gazeRecord(0, [3]float64{9, 9, 9}),
				gazeRecord(1, [3]float64{1, 1, 1}),
			},
		},
		failing: map[string]bool{},
	}
	agg := New(src, &fakeStore{}, fakeNames{})

	entries := entriesFor(agg.BuildLeaderboard(context.Background(), 1), "gaze-game")
	if len(entries) != 1 || entries[0].ChildID != 1 {
		t.Errorf("entries = %+v, want only child 1", entries)
	}
}

func statsAssignment(total, completed int) *model.Assignment {
	asn := &model.Assignment{ID: 1, GameMask: int64(games.Encode([]string{"gaze-game"}))}
	for i := 0; i < total; i++ {
		status := model.StatusAssigned
		if i < completed {
			status = model.StatusCompleted
		}
		asn.Targets = append(asn.Targets, model.AssignmentTarget{
			ID: int64(i + 1), AssignmentID: 1, ChildID: int64(100 + i), Status: status,
		})
	}
	return asn
}

func TestBuildStatistics(t *testing.T) {
	tests := []struct {
		name      string
		total     int
		completed int
		wantRate  float64
	}{
		{"none completed", 4, 0, 0},
		{"half completed", 4, 2, 50},
		{"all completed", 3, 3, 100},
		{"no participants", 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeStore{assignments: map[int64]*model.Assignment{
				1: statsAssignment(tt.total, tt.completed),
			}}
			agg := New(&fakeSessionSource{failing: map[string]bool{}}, store, fakeNames{})

			stats := agg.BuildStatistics(context.Background(), 1)
			if stats.TotalParticipants != tt.total {
				t.Errorf("TotalParticipants = %d, want %d", stats.TotalParticipants, tt.total)
			}
			if stats.CompletedParticipants != tt.completed {
				t.Errorf("CompletedParticipants = %d, want %d", stats.CompletedParticipants, tt.completed)
			}
			if stats.CompletionRate != tt.wantRate {
				t.Errorf("CompletionRate = %v, want %v", stats.CompletionRate, tt.wantRate)
			}
		})
	}
}

func TestBuildStatisticsUnknownAssignment(t *testing.T) {
	agg := New(&fakeSessionSource{failing: map[string]bool{}}, &fakeStore{}, fakeNames{})
	stats := agg.BuildStatistics(context.Background(), 404)
	if stats != (Statistics{}) {
		t.Errorf("stats = %+v, want zero value", stats)
	}
}

func TestChildStats(t *testing.T) {
	task7 := int64(7)
	task9 := int64(9)
	newest := time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)

	src := &fakeSessionSource{
		byGame: map[string][]games.Record{
			"gaze-game": {
				{ChildID: 45, AssignmentID: &task7, DateTime: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)},
				{ChildID: 45, AssignmentID: &task7, DateTime: newest},
			},
			"dance-doodle": {
				{ChildID: 45, AssignmentID: &task9, DateTime: time.Date(2026, 2, 20, 9, 0, 0, 0, time.UTC)},
				{ChildID: 45}, // free play, no assignment
			},
		},
		failing: map[string]bool{"gesture-game": true},
	}
	agg := New(src, &fakeStore{}, fakeNames{})

	stats := agg.ChildStats(context.Background(), 45)
	if stats.TotalSessions != 4 {
		t.Errorf("TotalSessions = %d, want 4", stats.TotalSessions)
	}
	if stats.UniqueAssignments != 2 {
		t.Errorf("UniqueAssignments = %d, want 2", stats.UniqueAssignments)
	}
	if stats.LastPlayed == nil || !stats.LastPlayed.Equal(newest) {
		t.Errorf("LastPlayed = %v, want %v", stats.LastPlayed, newest)
	}
}

func TestChildStatsNoSessions(t *testing.T) {
	agg := New(&fakeSessionSource{failing: map[string]bool{}}, &fakeStore{}, fakeNames{})
	stats := agg.ChildStats(context.Background(), 45)
	if stats.TotalSessions != 0 || stats.UniqueAssignments != 0 || stats.LastPlayed != nil {
		t.Errorf("stats = %+v, want empty", stats)
	}
}

func TestRecentActivityNewestFirstCapped(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2026, 3, d, 12, 0, 0, 0, time.UTC) }
	src := &fakeSessionSource{
		byGame: map[string][]games.Record{
			"gaze-game": {
				{SessionID: "g1", ChildID: 45, DateTime: day(1), Fields: map[string]float64{"round1Count": 5}},
				{SessionID: "g2", ChildID: 45, DateTime: day(4), Fields: map[string]float64{"round1Count": 6}},
			},
			"dance-doodle": {
				{SessionID: "d1", ChildID: 45, DateTime: day(3)},
				{SessionID: "d2", ChildID: 45, DateTime: day(2)},
			},
		},
		failing: map[string]bool{},
	}
	agg := New(src, &fakeStore{}, fakeNames{})

	activities := agg.RecentActivity(context.Background(), 45)
	if len(activities) != 3 {
		t.Fatalf("got %d activities, want 3", len(activities))
	}
	wantIDs := []string{"g2", "d1", "d2"}
	for i, id := range wantIDs {
		if activities[i].SessionID != id {
			t.Errorf("activities[%d].SessionID = %q, want %q", i, activities[i].SessionID, id)
		}
	}
	if activities[0].Score != 6 {
		t.Errorf("activities[0].Score = %v, want 6", activities[0].Score)
	}
	if activities[0].GameDisplayName != "Gaze Game" {
		t.Errorf("GameDisplayName = %q", activities[0].GameDisplayName)
	}
}

func TestPerformance(t *testing.T) {
	asn := &model.Assignment{
		ID:       7,
		GameMask: int64(games.Encode([]string{"gaze-game", "dance-doodle"})),
		Targets: []model.AssignmentTarget{
			{ID: 1, AssignmentID: 7, ChildID: 45, Status: model.StatusCompleted},
			{ID: 2, AssignmentID: 7, ChildID: 46, Status: model.StatusAssigned},
		},
	}
	src := &fakeSessionSource{
		failing: map[string]bool{},
		byGameChild: map[string][]games.Record{
			"gaze-game/45": {
				gazeRecord(45, [3]float64{1, 1, 1}), // 3
				gazeRecord(45, [3]float64{2, 2, 3}), // 7
			},
			"dance-doodle/45": {danceRecord(45, 2)}, // 14
		},
	}
	store := &fakeStore{assignments: map[int64]*model.Assignment{7: asn}}
	agg := New(src, store, fakeNames{})

	report, err := agg.Performance(context.Background(), 7)
	if err != nil {
		t.Fatalf("Performance: %v", err)
	}
	if len(report) != 2 {
		t.Fatalf("got %d children, want 2", len(report))
	}

	first := report[0]
	if first.ChildID != 45 || first.Status != model.StatusCompleted {
		t.Errorf("first child = %d/%s", first.ChildID, first.Status)
	}
	if len(first.Games) != 2 {
		t.Fatalf("child 45 has %d game rows, want 2 (one per masked game)", len(first.Games))
	}
	for _, gp := range first.Games {
		switch gp.GameKey {
		case "gaze-game":
			if gp.SessionsPlayed != 2 || gp.BestScore != 7 || gp.AverageScore != 5 {
				t.Errorf("gaze performance = %+v", gp)
			}
		case "dance-doodle":
			if gp.SessionsPlayed != 1 || gp.BestScore != 14 {
				t.Errorf("dance performance = %+v", gp)
			}
		default:
			t.Errorf("unexpected game %q in report", gp.GameKey)
		}
	}

	// Child without sessions still appears with zeroed game rows.
	second := report[1]
	if second.ChildID != 46 {
		t.Fatalf("second child = %d", second.ChildID)
	}
	for _, gp := range second.Games {
		if gp.SessionsPlayed != 0 || gp.BestScore != 0 || gp.AverageScore != 0 {
			t.Errorf("child 46 %s performance = %+v, want zeroes", gp.GameKey, gp)
		}
	}
}

func TestPerformanceUnknownAssignment(t *testing.T) {
	agg := New(&fakeSessionSource{failing: map[string]bool{}}, &fakeStore{}, fakeNames{})
	if _, err := agg.Performance(context.Background(), 404); !errors.Is(err, assignment.ErrNotFound) {
		t.Errorf("Performance() error = %v, want ErrNotFound", err)
	}
}

func TestOverviewCombinesBoth(t *testing.T) {
	store := &fakeStore{assignments: map[int64]*model.Assignment{
		1: statsAssignment(2, 1),
	}}
	src := &fakeSessionSource{
		byGame:  map[string][]games.Record{"gaze-game": {gazeRecord(100, [3]float64{1, 2, 3})}},
		failing: map[string]bool{},
	}
	agg := New(src, store, fakeNames{})

	overview := agg.Overview(context.Background(), 1)
	if len(overview.Entries) != 1 {
		t.Errorf("entries = %d, want 1", len(overview.Entries))
	}
	if overview.Statistics.CompletionRate != 50 {
		t.Errorf("CompletionRate = %v, want 50", overview.Statistics.CompletionRate)
	}
}
