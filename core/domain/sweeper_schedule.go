package domain

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// =============================================================================
// Recurrence
// =============================================================================

// RecurrenceType discriminates the recurrence variant.
type RecurrenceType string

const (
	RecurrenceDaily   RecurrenceType = "daily"
	RecurrenceWeekly  RecurrenceType = "weekly"
	RecurrenceMonthly RecurrenceType = "monthly"
)

// TimeOfDay is a wall-clock time within a day. It serializes as its
// "HH:MM" string form, which is what the recurrence JSONB column stores.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parses "HH:MM". The whole input must be consumed; trailing
// characters are an error.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	hh, mm, ok := strings.Cut(s, ":")
	if !ok {
		return TimeOfDay{}, fmt.Errorf("invalid time of day %q", s)
	}
	hour, err := strconv.Atoi(hh)
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("invalid time of day %q: %w", s, err)
	}
	minute, err := strconv.Atoi(mm)
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("invalid time of day %q: %w", s, err)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return TimeOfDay{}, fmt.Errorf("time of day %q out of range", s)
	}
	return TimeOfDay{Hour: hour, Minute: minute}, nil
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *TimeOfDay) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	tod, err := ParseTimeOfDay(s)
	if err != nil {
		return err
	}
	*t = tod
	return nil
}

// Recurrence is a tagged variant: Daily{time}, Weekly{time, dayOfWeek} or
// Monthly{time, dayOfMonth}. DayOfWeek is consulted only for weekly and
// DayOfMonth only for monthly; the constructors below keep invalid
// combinations unrepresentable to callers.
type Recurrence struct {
	Type       RecurrenceType `json:"type"`
	At         TimeOfDay      `json:"at"`
	DayOfWeek  time.Weekday   `json:"day_of_week,omitempty"`  // weekly only, 0=Sunday
	DayOfMonth int            `json:"day_of_month,omitempty"` // monthly only, 1-31
	Timezone   string         `json:"timezone"`
}

// Daily returns a daily recurrence at the given wall-clock time.
func Daily(at TimeOfDay, tz string) Recurrence {
	return Recurrence{Type: RecurrenceDaily, At: at, Timezone: tz}
}

// Weekly returns a weekly recurrence on the given weekday.
func Weekly(at TimeOfDay, day time.Weekday, tz string) Recurrence {
	return Recurrence{Type: RecurrenceWeekly, At: at, DayOfWeek: day, Timezone: tz}
}

// Monthly returns a monthly recurrence on the given day of month.
func Monthly(at TimeOfDay, day int, tz string) Recurrence {
	return Recurrence{Type: RecurrenceMonthly, At: at, DayOfMonth: day, Timezone: tz}
}

// Validate checks the variant invariants.
func (r Recurrence) Validate() error {
	switch r.Type {
	case RecurrenceDaily:
	case RecurrenceWeekly:
		if r.DayOfWeek < time.Sunday || r.DayOfWeek > time.Saturday {
			return fmt.Errorf("weekly recurrence: day of week %d out of range", r.DayOfWeek)
		}
	case RecurrenceMonthly:
		if r.DayOfMonth < 1 || r.DayOfMonth > 31 {
			return fmt.Errorf("monthly recurrence: day of month %d out of range", r.DayOfMonth)
		}
	default:
		return fmt.Errorf("unknown recurrence type %q", r.Type)
	}
	if r.At.Hour < 0 || r.At.Hour > 23 || r.At.Minute < 0 || r.At.Minute > 59 {
		return fmt.Errorf("recurrence time %s out of range", r.At)
	}
	if _, err := time.LoadLocation(r.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", r.Timezone, err)
	}
	return nil
}

// NextAfter computes the next occurrence strictly after now, in the
// recurrence's timezone. The result never depends on the previous run time,
// so a skipped tick cannot introduce drift.
func (r Recurrence) NextAfter(now time.Time) (time.Time, error) {
	loc, err := time.LoadLocation(r.Timezone)
	if err != nil {
		return time.Time{}, fmt.Errorf("load timezone %q: %w", r.Timezone, err)
	}
	local := now.In(loc)

	switch r.Type {
	case RecurrenceDaily:
		next := time.Date(local.Year(), local.Month(), local.Day(), r.At.Hour, r.At.Minute, 0, 0, loc)
		if !next.After(now) {
			next = next.AddDate(0, 0, 1)
		}
		return next, nil

	case RecurrenceWeekly:
		next := time.Date(local.Year(), local.Month(), local.Day(), r.At.Hour, r.At.Minute, 0, 0, loc)
		offset := (int(r.DayOfWeek) - int(next.Weekday()) + 7) % 7
		next = next.AddDate(0, 0, offset)
		if !next.After(now) {
			next = next.AddDate(0, 0, 7)
		}
		return next, nil

	case RecurrenceMonthly:
		year, month := local.Year(), local.Month()
		for i := 0; i < 13; i++ {
			next := time.Date(year, month, r.DayOfMonth, r.At.Hour, r.At.Minute, 0, 0, loc)
			// time.Date normalizes overflow (e.g. Feb 31 becomes Mar 3);
			// skip months that do not contain the requested day.
			if next.Day() == r.DayOfMonth && next.After(now) {
				return next, nil
			}
			month++
			if month > time.December {
				month = time.January
				year++
			}
		}
		return time.Time{}, fmt.Errorf("no occurrence found for day %d", r.DayOfMonth)

	default:
		return time.Time{}, fmt.Errorf("unknown recurrence type %q", r.Type)
	}
}

// =============================================================================
// Schedule Rule
// =============================================================================

// SweepAction is the mutation a schedule applies to matched messages.
type SweepAction string

const (
	SweepActionArchive SweepAction = "archive"
	SweepActionDelete  SweepAction = "delete"
)

// ConfidenceThreshold selects how confident a recommendation must be
// before the automation acts on it.
type ConfidenceThreshold string

const (
	ThresholdHigh   ConfidenceThreshold = "high"   // HIGH and above
	ThresholdMedium ConfidenceThreshold = "medium" // MEDIUM and above
	ThresholdAll    ConfidenceThreshold = "all"    // any tier, safety gate still applies
)

// MinBucket returns the lowest confidence bucket this threshold admits.
func (t ConfidenceThreshold) MinBucket() ConfidenceBucket {
	switch t {
	case ThresholdHigh:
		return ConfidenceHigh
	case ThresholdMedium:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// ScheduleRule is one automation the user has created.
type ScheduleRule struct {
	ID      int64     `json:"id"`
	OwnerID uuid.UUID `json:"owner_id"`

	Recurrence Recurrence `json:"recurrence"`

	ConfidenceThreshold ConfidenceThreshold `json:"confidence_threshold"`
	TargetAction        SweepAction         `json:"target_action"`
	CategoryFilter      []string            `json:"category_filter,omitempty"`

	IsActive bool `json:"is_active"`

	// Run bookkeeping, mutated only by the sweeper
	LastRunAt           *time.Time `json:"last_run_at,omitempty"`
	NextRunAt           time.Time  `json:"next_run_at"`
	TotalRuns           int        `json:"total_runs"`
	TotalItemsProcessed int        `json:"total_items_processed"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MatchesCategory reports whether a recommendation category passes the
// rule's optional category filter. An empty filter matches everything.
func (r *ScheduleRule) MatchesCategory(category string) bool {
	if len(r.CategoryFilter) == 0 {
		return true
	}
	for _, c := range r.CategoryFilter {
		if c == category {
			return true
		}
	}
	return false
}

// ScheduleRepository defines persistence for schedule rules. The management
// API owns create/update/delete; this core reads due rules and writes run
// bookkeeping back.
type ScheduleRepository interface {
	GetByID(ctx context.Context, id int64) (*ScheduleRule, error)
	ListDue(ctx context.Context, now time.Time) ([]*ScheduleRule, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*ScheduleRule, error)
	Create(ctx context.Context, rule *ScheduleRule) error
	Update(ctx context.Context, rule *ScheduleRule) error
	// RecordRun persists the post-run bookkeeping fields only, so a
	// concurrent user edit of the rule definition is not clobbered.
	RecordRun(ctx context.Context, ruleID int64, lastRunAt, nextRunAt time.Time, itemsProcessed int) error
}
