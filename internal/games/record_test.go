package games

import (
	"testing"
	"time"
)

func TestParseRecordEnvelope(t *testing.T) {
	raw := map[string]interface{}{
		"sessionId":         "abc-123",
		"childId":           "45",
		"tournamentId":      float64(9001),
		"dateTime":          "2026-03-01T10:30:00",
		"round1Count":       float64(5),
		"round2Count":       float64(7),
		"isTrainingAllowed": true,
		"age":               float64(8),
	}

	rec := ParseRecord(raw)

	if rec.SessionID != "abc-123" {
		t.Errorf("SessionID = %q", rec.SessionID)
	}
	if rec.ChildID != 45 {
		t.Errorf("ChildID = %d, want 45", rec.ChildID)
	}
	if rec.AssignmentID == nil || *rec.AssignmentID != 9001 {
		t.Errorf("AssignmentID = %v, want 9001", rec.AssignmentID)
	}
	want := time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC)
	if !rec.DateTime.Equal(want) {
		t.Errorf("DateTime = %v, want %v", rec.DateTime, want)
	}
	if rec.Field("round1Count") != 5 || rec.Field("round2Count") != 7 {
		t.Errorf("numeric fields not captured: %v", rec.Fields)
	}
	if _, ok := rec.Fields["isTrainingAllowed"]; ok {
		t.Error("boolean fields must not become scores")
	}
}

func TestParseRecordFreePlaySession(t *testing.T) {
	rec := ParseRecord(map[string]interface{}{
		"sessionId": "free-1",
		"childId":   float64(7),
		"taskId":    nil,
	})

	if rec.AssignmentID != nil {
		t.Errorf("free-play session should have nil assignment id, got %v", *rec.AssignmentID)
	}
	if rec.ChildID != 7 {
		t.Errorf("ChildID = %d, want 7", rec.ChildID)
	}
}

func TestParseRecordNumericChildID(t *testing.T) {
	rec := ParseRecord(map[string]interface{}{"childId": float64(12)})
	if rec.ChildID != 12 {
		t.Errorf("ChildID = %d, want 12", rec.ChildID)
	}
}

func TestFieldAbsentIsZero(t *testing.T) {
	rec := Record{Fields: map[string]float64{}}
	if rec.Field("anything") != 0 {
		t.Error("absent field should read as 0")
	}
}
