package models

// PlayerState is the derived position of one player inside a contest. It is a
// pure projection of {contest, participant, question, answer} and is never
// persisted.
type PlayerState string

const (
	PlayerStateUnknown            PlayerState = "UNKNOWN"
	PlayerStateLobby              PlayerState = "LOBBY"
	PlayerStateAnswering          PlayerState = "ANSWERING"
	PlayerStateSubmittedWaiting   PlayerState = "SUBMITTED_WAITING"
	PlayerStateCorrectWaitingNext PlayerState = "CORRECT_WAITING_NEXT"
	PlayerStateEliminated         PlayerState = "ELIMINATED"
	PlayerStateWinner             PlayerState = "WINNER"
)

// Transitional reports whether the state is still waiting on server data to
// settle. Navigation treats transitional states as "do not bounce yet".
func (s PlayerState) Transitional() bool {
	return s == PlayerStateUnknown || s == PlayerStateSubmittedWaiting
}
