package domain

import "fmt"

// Operation is a non-transition action checked against role and status.
type Operation string

const (
	OpReadGame        Operation = "read_game"
	OpEditDetails     Operation = "edit_details"
	OpEditQuestions   Operation = "edit_questions"
	OpReadQuestions   Operation = "read_questions"
	OpGuidedFlow      Operation = "guided_flow"
	OpWriteAnswer     Operation = "write_answer"
	OpReadAnswers     Operation = "read_answers"
	OpReadAnswerSheet Operation = "read_answer_sheet"
	OpMarkCorrectness Operation = "mark_correctness"
	OpInvite          Operation = "invite"
	OpReadAccessCode  Operation = "read_access_code"
	OpReadResults     Operation = "read_results"
)

type grant struct {
	role     Role
	statuses []Status
}

var (
	anyStatus = []Status{StatusInCreation, StatusReadyToPlay, StatusPlaying, StatusAnswered, StatusResultsRevealed, StatusCompleted}
	published = []Status{StatusReadyToPlay, StatusPlaying, StatusAnswered, StatusResultsRevealed, StatusCompleted}
	answering = []Status{StatusReadyToPlay, StatusPlaying}
	reviewed  = []Status{StatusAnswered, StatusResultsRevealed, StatusCompleted}
	revealed  = []Status{StatusResultsRevealed, StatusCompleted}
)

// policy lists who may do what in which status. The interviewed partner has
// no OpReadQuestions or OpReadAnswerSheet grant: they only see questions one
// at a time through the guided flow, and read back one answer at a time. The
// playing partner is a read-only spectator.
var policy = map[Operation][]grant{
	OpReadGame: {
		{RoleCreator, anyStatus},
		{RoleInterviewedPartner, published},
		{RolePlayingPartner, published},
	},
	OpEditDetails:   {{RoleCreator, []Status{StatusInCreation}}},
	OpEditQuestions: {{RoleCreator, []Status{StatusInCreation}}},
	OpReadQuestions: {
		{RoleCreator, anyStatus},
		{RolePlayingPartner, published},
	},
	OpGuidedFlow:  {{RoleInterviewedPartner, answering}},
	OpWriteAnswer: {{RoleInterviewedPartner, answering}},
	OpReadAnswers: {
		{RoleCreator, reviewed},
		{RoleInterviewedPartner, answering},
		{RolePlayingPartner, revealed},
	},
	OpReadAnswerSheet: {
		{RoleCreator, reviewed},
		{RolePlayingPartner, revealed},
	},
	OpMarkCorrectness: {{RoleCreator, []Status{StatusAnswered}}},
	OpInvite:          {{RoleCreator, answering}},
	OpReadAccessCode:  {{RoleCreator, published}},
	OpReadResults: {
		{RoleCreator, reviewed},
		{RoleInterviewedPartner, revealed},
		{RolePlayingPartner, revealed},
	},
}

// Authorize checks that actor may perform op on g in its current status.
// A caller without a matching role gets Unauthorized; a caller with the role
// but in the wrong status gets PreconditionFailed.
func Authorize(g Game, actor Actor, op Operation) error {
	grants, ok := policy[op]
	if !ok {
		return fmt.Errorf("unknown operation %q", op)
	}
	roleMatched := false
	for _, gr := range grants {
		if !g.HasRole(actor, gr.role) {
			continue
		}
		roleMatched = true
		if g.Status.In(gr.statuses...) {
			return nil
		}
	}
	if !roleMatched {
		return Unauthorized(fmt.Sprintf("caller may not %s on this game", op))
	}
	return PreconditionFailed(
		fmt.Sprintf("game status %s does not allow %s", g.Status, op),
		map[string]string{"Status": string(g.Status), "Operation": string(op)},
	)
}
