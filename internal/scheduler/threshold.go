package scheduler

import (
	"math"
	"time"

	"policyportal/internal/types"
)

const day = 24 * time.Hour

// Evaluation is the outcome of Evaluate.
type Evaluation struct {
	Stage types.Stage
	// DaysToDue is ceil((due-now)/24h): 1 anywhere in the last 24h before due,
	// 0 for the first 24h after it.
	DaysToDue int
}

// Evaluate maps (now, due) to a reminder stage.
//
//	< 0   overdue
//	== 1  one_day
//	2..3  three_day
//	else  none (including 0: the last reminder before due is the one-day one)
func Evaluate(now, due time.Time) Evaluation {
	days := int(math.Ceil(float64(due.Sub(now)) / float64(day)))

	var stage types.Stage
	switch {
	case days < 0:
		stage = types.StageOverdue
	case days == 1:
		stage = types.StageOneDay
	case days > 1 && days <= 3:
		stage = types.StageThreeDay
	default:
		stage = types.StageNone
	}
	return Evaluation{Stage: stage, DaysToDue: days}
}

// calendarDay returns the Y-M-D of t in loc, as midnight UTC. Stored and
// compared dates always go through here.
func calendarDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func sameDay(last *time.Time, today time.Time) bool {
	if last == nil {
		return false
	}
	y1, m1, d1 := last.UTC().Date()
	y2, m2, d2 := today.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

// earlierStages returns the stages that precede s in the cascade.
func earlierStages(s types.Stage) []types.Stage {
	for i, st := range types.ReminderStages {
		if st == s {
			return types.ReminderStages[:i]
		}
	}
	return nil
}
