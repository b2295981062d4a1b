package followup

import (
	"strings"
	"time"

	"pastoral_care_worker/internal/domain/careevent"
)

// StageKey identifies a stage within its timeline.
type StageKey string

const (
	GriefOneWeek     StageKey = "1_week"
	GriefTwoWeeks    StageKey = "2_weeks"
	GriefOneMonth    StageKey = "1_month"
	GriefThreeMonths StageKey = "3_months"
	GriefSixMonths   StageKey = "6_months"
	GriefOneYear     StageKey = "1_year"

	AccidentFirst  StageKey = "first_followup"
	AccidentSecond StageKey = "second_followup"
	AccidentFinal  StageKey = "final_followup"
)

// Label turns the key into display text ("3_months" -> "3 months").
func (k StageKey) Label() string {
	return strings.ReplaceAll(string(k), "_", " ")
}

// Step is one entry of a fixed timeline template.
type Step struct {
	Key         StageKey
	OffsetDays  int
	Description string
}

var griefSteps = []Step{
	{GriefOneWeek, 7, "1 week check-in"},
	{GriefTwoWeeks, 14, "2 weeks check-in"},
	{GriefOneMonth, 30, "1 month check-in"},
	{GriefThreeMonths, 90, "3 months check-in"},
	{GriefSixMonths, 180, "6 months check-in"},
	{GriefOneYear, 365, "1 year memorial"},
}

var accidentSteps = []Step{
	{AccidentFirst, 3, "First follow-up (3 days)"},
	{AccidentSecond, 7, "Second follow-up (1 week)"},
	{AccidentFinal, 14, "Final follow-up (2 weeks)"},
}

// Planned is a stage the generator is about to create.
type Planned struct {
	Kind          Kind
	Step          Step
	ScheduledDate time.Time
}

// Steps returns the template for kind.
func Steps(kind Kind) []Step {
	switch kind {
	case KindGrief:
		return append([]Step(nil), griefSteps...)
	case KindAccident:
		return append([]Step(nil), accidentSteps...)
	}
	return nil
}

// KindFor maps a triggering event type to its timeline kind.
func KindFor(t careevent.EventType) (Kind, bool) {
	switch t {
	case careevent.TypeGriefLoss:
		return KindGrief, true
	case careevent.TypeAccidentIllness:
		return KindAccident, true
	}
	return "", false
}

// PlanFor expands a triggering event into its dated stages. Event types
// without a timeline yield nil.
func PlanFor(t careevent.EventType, triggerDate time.Time) []Planned {
	kind, ok := KindFor(t)
	if !ok {
		return nil
	}
	steps := Steps(kind)
	plan := make([]Planned, 0, len(steps))
	for _, step := range steps {
		plan = append(plan, Planned{
			Kind:          kind,
			Step:          step,
			ScheduledDate: triggerDate.AddDate(0, 0, step.OffsetDays),
		})
	}
	return plan
}
