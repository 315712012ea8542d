package domain

import "fmt"

// Status is the lifecycle position of a game. Statuses only move forward.
type Status string

const (
	StatusInCreation      Status = "in_creation"
	StatusReadyToPlay     Status = "ready_to_play"
	StatusPlaying         Status = "playing"
	StatusAnswered        Status = "answered"
	StatusResultsRevealed Status = "results_revealed"
	StatusCompleted       Status = "completed"
)

var statusOrder = map[Status]int{
	StatusInCreation:      0,
	StatusReadyToPlay:     1,
	StatusPlaying:         2,
	StatusAnswered:        3,
	StatusResultsRevealed: 4,
	StatusCompleted:       5,
}

// Valid reports whether s is part of the status vocabulary.
func (s Status) Valid() bool {
	_, ok := statusOrder[s]
	return ok
}

// AtLeast reports whether s is at or beyond other in the lifecycle.
func (s Status) AtLeast(other Status) bool {
	return s.Valid() && statusOrder[s] >= statusOrder[other]
}

// In reports whether s is one of the given statuses.
func (s Status) In(statuses ...Status) bool {
	for _, other := range statuses {
		if s == other {
			return true
		}
	}
	return false
}

// Action is a lifecycle-changing request.
type Action string

const (
	ActionPublish  Action = "publish"
	ActionOpen     Action = "open"
	ActionSubmit   Action = "submit"
	ActionReveal   Action = "reveal"
	ActionComplete Action = "complete"
)

// Transition is one row of the lifecycle table.
type Transition struct {
	From   Status
	Action Action
	Role   Role
	To     Status
}

// Transitions is the complete lifecycle table. Guards beyond role and status
// (payment, answer validation) are checked by the caller before the
// compare-and-swap that commits the move.
var Transitions = []Transition{
	{From: StatusInCreation, Action: ActionPublish, Role: RoleCreator, To: StatusReadyToPlay},
	{From: StatusReadyToPlay, Action: ActionOpen, Role: RoleInterviewedPartner, To: StatusPlaying},
	{From: StatusPlaying, Action: ActionSubmit, Role: RoleInterviewedPartner, To: StatusAnswered},
	{From: StatusAnswered, Action: ActionReveal, Role: RoleCreator, To: StatusResultsRevealed},
	{From: StatusAnswered, Action: ActionComplete, Role: RoleCreator, To: StatusCompleted},
	{From: StatusResultsRevealed, Action: ActionComplete, Role: RoleCreator, To: StatusCompleted},
}

// Decide maps (game, actor, action) to the next status. It is pure: it does
// not touch storage and never returns a status behind the current one.
func Decide(g Game, actor Actor, action Action) (Status, error) {
	var roleMatched, actionKnown bool
	for _, t := range Transitions {
		if t.Action != action {
			continue
		}
		actionKnown = true
		if !g.HasRole(actor, t.Role) {
			continue
		}
		roleMatched = true
		if t.From == g.Status {
			return t.To, nil
		}
	}
	if !actionKnown {
		return g.Status, fmt.Errorf("unknown action %q", action)
	}
	if !roleMatched {
		return g.Status, Unauthorized(fmt.Sprintf("caller may not %s this game", action))
	}
	return g.Status, PreconditionFailed(
		fmt.Sprintf("cannot %s a game in status %s", action, g.Status),
		map[string]string{"Status": string(g.Status), "Action": string(action)},
	)
}

// Guard is the status precondition of a write. The write commits only when
// the game's current status is in Allowed; if the current status has an
// entry in Advance the status is moved in the same atomic unit.
type Guard struct {
	Allowed []Status
	Advance map[Status]Status
}

// Check returns the status the game should hold after the guarded write.
func (g Guard) Check(current Status) (Status, error) {
	if !current.In(g.Allowed...) {
		return current, PreconditionFailed(
			fmt.Sprintf("operation not allowed while game is %s", current),
			map[string]string{"Status": string(current)},
		)
	}
	if next, ok := g.Advance[current]; ok {
		return next, nil
	}
	return current, nil
}

// StatusIs is a guard that only allows writes in the given statuses.
func StatusIs(statuses ...Status) Guard {
	return Guard{Allowed: statuses}
}

// MoveStatus is a guard for a single compare-and-swap from -> to.
func MoveStatus(from, to Status) Guard {
	return Guard{Allowed: []Status{from}, Advance: map[Status]Status{from: to}}
}
