package models

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"
	"gorm.io/gorm"
)

// DefaultContribution is charged per member per cycle when a Group never set
// its own contribution amount.
const DefaultContribution = 100

// Group frequency labels. Free-form values are stored verbatim; only these
// labels participate in schedule math.
const (
	FrequencyWeekly    = "weekly"
	FrequencyBiweekly  = "biweekly"
	FrequencyMonthly   = "monthly"
	FrequencyQuarterly = "quarterly"
)

// Group is a savings circle: a roster of members contributing a fixed amount
// each cycle, with the pot rotating to one recipient per cycle.
type Group struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	Name        string `gorm:"type:varchar(255)" json:"name"`
	Description string `gorm:"type:text" json:"description,omitempty"`
	// Contribution is the per-member amount fixed onto each Payment at cycle
	// creation. Nil falls back to DefaultContribution.
	Contribution *float64 `gorm:"type:decimal(15,2)" json:"contribution,omitempty"`
	Frequency    string   `gorm:"type:varchar(50)" json:"frequency,omitempty"`
	MaxMembers   *int     `json:"max_members,omitempty"`

	// Relationships
	Memberships []Membership `gorm:"foreignKey:GroupID" json:"memberships,omitempty"`
	Cycles      []Cycle      `gorm:"foreignKey:GroupID" json:"cycles,omitempty"`
}

// ContributionOrDefault resolves the amount fanned out onto each Payment.
func (g Group) ContributionOrDefault() float64 {
	if g.Contribution != nil {
		return *g.Contribution
	}
	return DefaultContribution
}

// frequencyRules maps the known labels to RFC 5545 recurrence strings.
var frequencyRules = map[string]string{
	FrequencyWeekly:    "FREQ=WEEKLY",
	FrequencyBiweekly:  "FREQ=WEEKLY;INTERVAL=2",
	FrequencyMonthly:   "FREQ=MONTHLY",
	FrequencyQuarterly: "FREQ=MONTHLY;INTERVAL=3",
}

// NextOccurrence computes the first occurrence of the group's frequency
// strictly after the given time. Returns an error for unknown labels so
// callers can leave dates unset instead of guessing.
func (g Group) NextOccurrence(after time.Time) (time.Time, error) {
	ruleStr, ok := frequencyRules[g.Frequency]
	if !ok {
		return time.Time{}, fmt.Errorf("no schedule rule for frequency %q", g.Frequency)
	}
	rule, err := rrule.StrToRRule(ruleStr)
	if err != nil {
		return time.Time{}, err
	}
	rule.DTStart(after)
	next := rule.After(after, false)
	if next.IsZero() {
		return time.Time{}, fmt.Errorf("frequency %q yields no next occurrence", g.Frequency)
	}
	return next, nil
}
