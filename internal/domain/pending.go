package domain

import "time"

// MatchPhase is the lifecycle phase of a pending match.
type MatchPhase string

const (
	PhasePending    MatchPhase = "pending"
	PhaseFinalizing MatchPhase = "finalizing"
	PhaseClosed     MatchPhase = "closed"
	PhaseAborted    MatchPhase = "aborted"
)

// SubmissionResult is a reported outcome for a pending match.
type SubmissionResult string

const (
	ResultRadiant SubmissionResult = "radiant"
	ResultDire    SubmissionResult = "dire"
	ResultAbort   SubmissionResult = "abort"
)

// IsValid checks if a submission result token is valid.
func (r SubmissionResult) IsValid() bool {
	return r == ResultRadiant || r == ResultDire || r == ResultAbort
}

// Side converts a non-abort result to its side.
func (r SubmissionResult) Side() Side {
	if r == ResultRadiant {
		return SideRadiant
	}
	return SideDire
}

// Submission is one user's reported outcome. Resubmitting replaces the
// previous entry for that user.
type Submission struct {
	UserID      int64            `json:"userId"`
	Result      SubmissionResult `json:"result"`
	IsAdmin     bool             `json:"isAdmin"`
	SubmittedAt time.Time        `json:"submittedAt"`
}

// PendingMatch is a shuffled match awaiting record or abort. It lives only
// in memory, owned by the match lifecycle manager; mutation happens under
// the guild's lock.
type PendingMatch struct {
	ID      int64      `json:"id"`
	GuildID int64      `json:"guildId"`
	Phase   MatchPhase `json:"phase"`

	RadiantIDs []int64 `json:"radiantIds"`
	DireIDs    []int64 `json:"direIds"`

	ExcludedIDs            []int64 `json:"excludedIds"`
	ExcludedConditionalIDs []int64 `json:"excludedConditionalIds"`

	Radiant *Team `json:"radiant"`
	Dire    *Team `json:"dire"`

	FirstPick Side    `json:"firstPick"`
	ValueDiff float64 `json:"valueDiff"`
	Goodness  float64 `json:"goodness"`
	WinProb   float64 `json:"winProb"`

	BetLockUntil time.Time `json:"betLockUntil"`
	CreatedAt    time.Time `json:"createdAt"`

	Submissions map[int64]Submission `json:"submissions"`
}

// HasPlayer reports whether the player is on either team.
func (m *PendingMatch) HasPlayer(playerID int64) bool {
	for _, id := range m.RadiantIDs {
		if id == playerID {
			return true
		}
	}
	for _, id := range m.DireIDs {
		if id == playerID {
			return true
		}
	}
	return false
}

// Submit records a user's result, replacing any prior submission by the
// same user. Returns false when the submission is an exact duplicate.
func (m *PendingMatch) Submit(sub Submission) bool {
	if prev, ok := m.Submissions[sub.UserID]; ok && prev.Result == sub.Result {
		return false
	}
	m.Submissions[sub.UserID] = sub
	return true
}

// Decide evaluates the submissions against the declaration rules: a single
// admin submission decides immediately; otherwise minNonAdmin distinct
// non-admin users must converge on the same result.
func (m *PendingMatch) Decide(minNonAdmin int) (SubmissionResult, bool) {
	for _, sub := range m.Submissions {
		if sub.IsAdmin {
			return sub.Result, true
		}
	}
	counts := make(map[SubmissionResult]int)
	for _, sub := range m.Submissions {
		counts[sub.Result]++
		if counts[sub.Result] >= minNonAdmin {
			return sub.Result, true
		}
	}
	return "", false
}
