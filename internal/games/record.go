package games

import (
	"strconv"
	"time"
)

// Record is the common envelope over the game backends' session payloads.
// Beyond the envelope the payload stays opaque: numeric fields land in
// Fields and are only interpreted by the owning game's reducer.
type Record struct {
	SessionID    string
	ChildID      int64
	// AssignmentID is nil for free-play sessions not tied to an assignment.
	AssignmentID *int64
	DateTime     time.Time
	Fields       map[string]float64
}

// Field returns the named numeric field, or 0 when absent. Backends evolve
// independently, so missing fields are normal, not an error.
func (r Record) Field(name string) float64 {
	return r.Fields[name]
}

// ParseRecord builds a Record from a decoded backend JSON object. The
// backends disagree on envelope types (childId arrives as a string from
// some, a number from others; assignment ids likewise), so parsing is
// deliberately tolerant.
func ParseRecord(raw map[string]interface{}) Record {
	rec := Record{Fields: make(map[string]float64)}

	for k, v := range raw {
		switch k {
		case "sessionId":
			if s, ok := v.(string); ok {
				rec.SessionID = s
			}
		case "childId":
			rec.ChildID = asInt64(v)
		case "taskId", "schoolTaskId", "tournamentId", "assignmentId":
			if v == nil {
				continue
			}
			if id := asInt64(v); id != 0 {
				rec.AssignmentID = &id
			}
		case "dateTime", "timestamp", "createdAt":
			if rec.DateTime.IsZero() {
				rec.DateTime = asTime(v)
			}
		default:
			if f, ok := asFloat(v); ok {
				rec.Fields[k] = f
			}
		}
	}

	return rec
}

func asInt64(v interface{}) int64 {
	switch t := v.(type) {
	case float64:
		return int64(t)
	case string:
		n, _ := strconv.ParseInt(t, 10, 64)
		return n
	case int64:
		return t
	}
	return 0
}

func asFloat(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case bool:
		// isTrainingAllowed and friends; not scores.
		return 0, false
	}
	return 0, false
}

func asTime(v interface{}) time.Time {
	s, ok := v.(string)
	if !ok {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
