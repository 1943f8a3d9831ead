package session

import (
	"github.com/knockouthq/knockout/go/internal/models"
)

// Derive maps the four entity slots to the player's position in the contest.
// Pure and total: no I/O, no history, same inputs always yield the same state,
// so it is safe to re-run on every update. Missing data maps to UNKNOWN
// rather than an error; navigation treats UNKNOWN as "do nothing yet".
//
// The rules run in order and the first match wins. Elimination is sticky and
// short-circuits everything else: a stale "round in progress" update must
// never resurrect an eliminated player.
func Derive(contest *models.Contest, participant *models.Participant, question *models.Question, answer *models.Answer) models.PlayerState {
	if contest == nil || participant == nil {
		return models.PlayerStateUnknown
	}

	if participant.Eliminated() {
		return models.PlayerStateEliminated
	}

	switch contest.State {
	case models.ContestStateFinished:
		// Rule 2 already excluded eliminated participants; the else branch
		// guards against a future relaxation of that invariant.
		if !participant.Eliminated() {
			return models.PlayerStateWinner
		}
		return models.PlayerStateEliminated

	case models.ContestStateLobbyOpen:
		return models.PlayerStateLobby

	case models.ContestStateRoundInProgress:
		if hasAnswerForRound(answer, contest.CurrentRound) {
			return models.PlayerStateSubmittedWaiting
		}
		return models.PlayerStateAnswering

	case models.ContestStateRoundClosed:
		if question == nil {
			// Waiting for the next fetch to bring the round's question.
			return models.PlayerStateUnknown
		}
		if answer == nil || answer.Round != question.Round {
			// Missed the deadline.
			return models.PlayerStateEliminated
		}
		if !question.Graded() {
			return models.PlayerStateSubmittedWaiting
		}
		if answer.Answer == *question.CorrectOption {
			return models.PlayerStateCorrectWaitingNext
		}
		return models.PlayerStateEliminated
	}

	return models.PlayerStateUnknown
}

func hasAnswerForRound(answer *models.Answer, round *int) bool {
	if answer == nil || round == nil {
		return false
	}
	return answer.Round == *round
}
