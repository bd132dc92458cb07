// internal/game/types.go
//
// Core type definitions for the word-chain game engine.
// Defines:
//   - Mode: turn-advance policy (solo counter vs. two alternating players).
//   - Player: identifier for the participant holding the turn.
//   - Outcome: explicit result value of a single submission.
//   - State: state for a single in-progress or finished session.

package game

// Mode selects the turn-advance policy, fixed at session creation.
type Mode string

const (
	// ModeSolo has one implicit player; the turn counter advances on
	// every accepted word.
	ModeSolo Mode = "solo"
	// ModeTwoPlayer alternates strictly between two players; the turn
	// counter advances when control returns to the starting player.
	ModeTwoPlayer Mode = "two_player"
)

// Player identifies the participant holding the turn.
type Player string

const (
	PlayerSolo Player = "solo"
	PlayerA    Player = "A"
	PlayerB    Player = "B"
)

// OutcomeKind is the coarse classification of a submission result.
// Exactly one kind is produced per SubmitWord call.
type OutcomeKind string

const (
	OutcomeAccepted OutcomeKind = "accepted"
	OutcomeRejected OutcomeKind = "rejected"
	OutcomeGameOver OutcomeKind = "game_over"
)

// Reason narrows a rejected or game-over outcome.
type Reason string

const (
	// ReasonEmptyInput marks a soft validation failure: the input was
	// empty after trimming. The session stays live.
	ReasonEmptyInput Reason = "empty_input"
	// ReasonDuplicateWord ends the session: the word was already played.
	ReasonDuplicateWord Reason = "duplicate_word"
	// ReasonChainBroken ends the session: the word does not start with
	// the last character of the previous word.
	ReasonChainBroken Reason = "chain_broken"
)

// Outcome is the explicit return value of a submission. Outcomes are
// values, not errors: every input maps to exactly one of
// accepted / rejected / game over.
type Outcome struct {
	Kind   OutcomeKind `json:"kind"`
	Reason Reason      `json:"reason,omitempty"`
	// Word is the trimmed word the outcome refers to (empty for an
	// empty-input rejection).
	Word string `json:"word,omitempty"`
}

// State holds one word-chain session. It is mutated in place by
// SubmitWord and owned by a single caller at a time; once Over is true
// the session is terminal and the caller must stop submitting.
type State struct {
	ID             string   `json:"id"`             // Unique session identifier (random hex string).
	Mode           Mode     `json:"mode"`           // Turn-advance policy, fixed at creation.
	History        []string `json:"history"`        // Accepted words in play order, all distinct.
	LastWord       string   `json:"lastWord"`       // Most recently accepted word ("" before the first).
	TurnNumber     int      `json:"turnNumber"`     // Starts at 1; advance rule depends on Mode.
	ActivePlayer   Player   `json:"activePlayer"`   // Participant holding the turn.
	StartingPlayer Player   `json:"startingPlayer"` // First player of the session (turn-counter anchor).
	Over           bool     `json:"over"`           // True once the session is terminal.
	LastMessage    string   `json:"lastMessage"`    // Human-readable status of the most recent operation.
}
