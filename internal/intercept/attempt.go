package intercept

import (
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/neocrisis/internal/tracking"
)

// Outcome is how an intercept attempt ended.
type Outcome string

const (
	OutcomeFired        Outcome = "fired"
	OutcomeRejected     Outcome = "rejected"
	OutcomeAbandoned    Outcome = "abandoned"
	OutcomeInconsistent Outcome = "inconsistent"
	OutcomeUnreachable  Outcome = "unreachable"
	OutcomeMissed       Outcome = "missed"
)

// Attempt is the record of one engagement, written to the journal whether
// or not a shot was sent.
type Attempt struct {
	ID          uuid.UUID
	Seq         int
	Identity    tracking.Identity
	PlannedAt   time.Time
	Launch      time.Time
	CollideTime time.Time
	Aim         tracking.Position
	Scheduled   bool // sent with a server-side fire time
	Outcome     Outcome
	Slug        string
	Err         string
}
