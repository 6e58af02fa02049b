// Package leaderboard aggregates per-game session records from the
// independent game backends into ranked leaderboards and participation
// statistics. Aggregation is always best-effort: backends that fail simply
// contribute nothing.
package leaderboard

import (
	"context"
	"errors"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/nuruplay/api/internal/assignment"
	"github.com/nuruplay/api/internal/games"
	"github.com/nuruplay/api/internal/gateway"
	"github.com/nuruplay/api/internal/middleware"
	"github.com/nuruplay/api/internal/model"
)

// SessionSource is what the aggregator needs from the session gateway.
type SessionSource interface {
	SessionsForAssignment(ctx context.Context, gameKey string, assignmentID int64) gateway.Result
	SessionsForChild(ctx context.Context, gameKey string, assignmentID, childID int64) gateway.Result
	ChildSessions(ctx context.Context, gameKey string, childID int64) gateway.Result
}

// Store loads assignment headers with their targets.
type Store interface {
	Get(ctx context.Context, assignmentID int64) (*model.Assignment, error)
}

// NameResolver turns a child id into a display name, with its own fallback.
type NameResolver interface {
	ChildName(ctx context.Context, id int64) string
}

type Aggregator struct {
	sessions SessionSource
	store    Store
	names    NameResolver
}

func New(sessions SessionSource, store Store, names NameResolver) *Aggregator {
	return &Aggregator{sessions: sessions, store: store, names: names}
}

// Entry is one child's standing within one game. Ranks are per game and
// restart at 1; the combined list is not a single cross-game ranking.
type Entry struct {
	ChildID         int64   `json:"childId"`
	ChildName       string  `json:"childName"`
	GameKey         string  `json:"gameKey"`
	GameDisplayName string  `json:"gameDisplayName"`
	Metric          string  `json:"performanceMetric"`
	SessionsPlayed  int     `json:"sessionsPlayed"`
	BestScore       float64 `json:"bestScore"`
	AverageScore    float64 `json:"averageScore"`
	Rank            int     `json:"rank"`
}

type Statistics struct {
	TotalParticipants     int     `json:"totalParticipants"`
	CompletedParticipants int     `json:"completedParticipants"`
	CompletionRate        float64 `json:"completionRate"`
}

// Overview is the combined leaderboard + statistics payload.
type Overview struct {
	Entries    []Entry    `json:"entries"`
	Statistics Statistics `json:"statistics"`
}

type childGameStat struct {
	childID  int64
	sessions int
	best     float64
	total    float64
}

// BuildLeaderboard queries every backend in the catalog concurrently, each
// with its own timeout, reduces sessions to per-child scores and ranks them
// within each game. It never fails: backends that error are skipped.
func (a *Aggregator) BuildLeaderboard(ctx context.Context, assignmentID int64) []Entry {
	middleware.RecordLeaderboardBuild()

	descriptors := games.All()
	results := make([]gateway.Result, len(descriptors))

	var wg sync.WaitGroup
	for i, d := range descriptors {
		wg.Add(1)
		go func(i int, key string) {
			defer wg.Done()
			results[i] = a.sessions.SessionsForAssignment(ctx, key, assignmentID)
		}(i, d.Key)
	}
	wg.Wait()

	entries := make([]Entry, 0)
	for i, d := range descriptors {
		res := results[i]
		if res.Err != nil {
			log.Printf("Warning: leaderboard skipping backend %s: %v", res.Backend, res.Err)
			continue
		}
		entries = append(entries, a.rankGame(ctx, d, res.Records)...)
	}
	return entries
}

// rankGame reduces one backend's records and assigns ranks within the game,
// restarting at 1. Ties on best score keep ascending child id order so the
// result is deterministic regardless of backend response order.
func (a *Aggregator) rankGame(ctx context.Context, d games.Descriptor, records []games.Record) []Entry {
	stats := make(map[int64]*childGameStat)
	for _, rec := range records {
		if rec.ChildID == 0 {
			continue
		}
		score := d.Reduce(rec)
		st, ok := stats[rec.ChildID]
		if !ok {
			st = &childGameStat{childID: rec.ChildID, best: score}
			stats[rec.ChildID] = st
		} else if d.Policy.Better(score, st.best) {
			st.best = score
		}
		st.sessions++
		st.total += score
	}
	if len(stats) == 0 {
		return nil
	}

	ordered := make([]*childGameStat, 0, len(stats))
	for _, st := range stats {
		ordered = append(ordered, st)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].best != ordered[j].best {
			return d.Policy.Better(ordered[i].best, ordered[j].best)
		}
		return ordered[i].childID < ordered[j].childID
	})

	entries := make([]Entry, 0, len(ordered))
	for rank, st := range ordered {
		entries = append(entries, Entry{
			ChildID:         st.childID,
			ChildName:       a.names.ChildName(ctx, st.childID),
			GameKey:         d.Key,
			GameDisplayName: d.DisplayName,
			Metric:          d.Metric,
			SessionsPlayed:  st.sessions,
			BestScore:       st.best,
			AverageScore:    st.total / float64(st.sessions),
			Rank:            rank + 1,
		})
	}
	return entries
}

// BuildStatistics computes participation statistics from the local store
// alone, so it works even when every backend is down.
func (a *Aggregator) BuildStatistics(ctx context.Context, assignmentID int64) Statistics {
	asn, err := a.store.Get(ctx, assignmentID)
	if err != nil {
		if !errors.Is(err, assignment.ErrNotFound) {
			log.Printf("Warning: statistics lookup for assignment %d: %v", assignmentID, err)
		}
		return Statistics{}
	}

	stats := Statistics{TotalParticipants: len(asn.Targets)}
	for _, t := range asn.Targets {
		if t.Status == model.StatusCompleted {
			stats.CompletedParticipants++
		}
	}
	if stats.TotalParticipants > 0 {
		stats.CompletionRate = float64(stats.CompletedParticipants) / float64(stats.TotalParticipants) * 100
	}
	return stats
}

// Overview bundles the leaderboard and statistics into one payload.
func (a *Aggregator) Overview(ctx context.Context, assignmentID int64) Overview {
	return Overview{
		Entries:    a.BuildLeaderboard(ctx, assignmentID),
		Statistics: a.BuildStatistics(ctx, assignmentID),
	}
}

// ChildStats summarizes one child's play across every backend.
type ChildStats struct {
	TotalSessions     int        `json:"totalSessions"`
	UniqueAssignments int        `json:"uniqueAssignments"`
	LastPlayed        *time.Time `json:"lastPlayed,omitempty"`
}

func (a *Aggregator) ChildStats(ctx context.Context, childID int64) ChildStats {
	descriptors := games.All()
	results := make([]gateway.Result, len(descriptors))

	var wg sync.WaitGroup
	for i, d := range descriptors {
		wg.Add(1)
		go func(i int, key string) {
			defer wg.Done()
			results[i] = a.sessions.ChildSessions(ctx, key, childID)
		}(i, d.Key)
	}
	wg.Wait()

	var stats ChildStats
	seen := make(map[int64]bool)
	for _, res := range results {
		if res.Err != nil {
			continue
		}
		for _, rec := range res.Records {
			stats.TotalSessions++
			if rec.AssignmentID != nil {
				seen[*rec.AssignmentID] = true
			}
			if !rec.DateTime.IsZero() && (stats.LastPlayed == nil || rec.DateTime.After(*stats.LastPlayed)) {
				t := rec.DateTime
				stats.LastPlayed = &t
			}
		}
	}
	stats.UniqueAssignments = len(seen)
	return stats
}

// Activity is one recent session with its reduced score.
type Activity struct {
	GameKey         string    `json:"gameKey"`
	GameDisplayName string    `json:"gameDisplayName"`
	SessionID       string    `json:"sessionId"`
	DateTime        time.Time `json:"dateTime"`
	Score           float64   `json:"score"`
	Metric          string    `json:"performanceMetric"`
}

// RecentActivity returns the child's three most recent sessions across all
// backends, newest first.
func (a *Aggregator) RecentActivity(ctx context.Context, childID int64) []Activity {
	descriptors := games.All()
	results := make([]gateway.Result, len(descriptors))

	var wg sync.WaitGroup
	for i, d := range descriptors {
		wg.Add(1)
		go func(i int, key string) {
			defer wg.Done()
			results[i] = a.sessions.ChildSessions(ctx, key, childID)
		}(i, d.Key)
	}
	wg.Wait()

	activities := make([]Activity, 0)
	for i, d := range descriptors {
		res := results[i]
		if res.Err != nil {
			continue
		}
		for _, rec := range res.Records {
			activities = append(activities, Activity{
				GameKey:         d.Key,
				GameDisplayName: d.DisplayName,
				SessionID:       rec.SessionID,
				DateTime:        rec.DateTime,
				Score:           d.Reduce(rec),
				Metric:          d.Metric,
			})
		}
	}

	sort.Slice(activities, func(i, j int) bool {
		return activities[i].DateTime.After(activities[j].DateTime)
	})
	if len(activities) > 3 {
		activities = activities[:3]
	}
	return activities
}

// GamePerformance is one child's record for one game of an assignment.
type GamePerformance struct {
	GameKey         string  `json:"gameKey"`
	GameDisplayName string  `json:"gameDisplayName"`
	Metric          string  `json:"performanceMetric"`
	SessionsPlayed  int     `json:"sessionsPlayed"`
	BestScore       float64 `json:"bestScore"`
	AverageScore    float64 `json:"averageScore"`
}

// ChildPerformance is the per-child performance breakdown.
type ChildPerformance struct {
	ChildID   int64             `json:"childId"`
	ChildName string            `json:"childName"`
	Status    string            `json:"status"`
	Games     []GamePerformance `json:"games"`
}

// Performance breaks an assignment down per child and per game in its mask,
// pulling each (child, game) pair's sessions individually. Backends that
// fail yield an empty record for that pair, not an error.
func (a *Aggregator) Performance(ctx context.Context, assignmentID int64) ([]ChildPerformance, error) {
	asn, err := a.store.Get(ctx, assignmentID)
	if err != nil {
		return nil, err
	}

	descriptors := games.Mask(asn.GameMask).Descriptors()
	report := make([]ChildPerformance, 0, len(asn.Targets))

	for _, target := range asn.Targets {
		cp := ChildPerformance{
			ChildID:   target.ChildID,
			ChildName: a.names.ChildName(ctx, target.ChildID),
			Status:    target.Status,
		}
		for _, d := range descriptors {
			res := a.sessions.SessionsForChild(ctx, d.Key, assignmentID, target.ChildID)
			gp := GamePerformance{
				GameKey:         d.Key,
				GameDisplayName: d.DisplayName,
				Metric:          d.Metric,
			}
			if res.Err != nil {
				log.Printf("Warning: performance skipping %s for child %d: %v", d.Key, target.ChildID, res.Err)
			}
			for _, rec := range res.Records {
				score := d.Reduce(rec)
				if gp.SessionsPlayed == 0 || d.Policy.Better(score, gp.BestScore) {
					gp.BestScore = score
				}
				gp.SessionsPlayed++
				gp.AverageScore += score
			}
			if gp.SessionsPlayed > 0 {
				gp.AverageScore /= float64(gp.SessionsPlayed)
			}
			cp.Games = append(cp.Games, gp)
		}
		report = append(report, cp)
	}
	return report, nil
}
