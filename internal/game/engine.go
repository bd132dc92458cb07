// internal/game/engine.go
//
// Core turn engine for a single word-chain session.
// Responsibilities:
//   - Create fresh sessions for the configured mode and starting player.
//   - Validate and apply submissions in strict order:
//     empty input → duplicate → broken chain → accept.
//   - Track the two-state lifecycle: active → game over (terminal).
//
// Notes:
//   - Chain matching compares single Unicode code points (the decoded
//     first rune of the new word against the decoded last rune of the
//     previous word). Multi-code-point graphemes are compared by their
//     final scalar value.
//   - The engine does not guard against submissions on a terminal
//     session; checking State.Over before calling is the caller's
//     contract, enforced at the transport layer.
//   - randomID() is a compact hex identifier for correlating server state.

package game

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"unicode/utf8"
)

// New constructs a fresh session for the given mode.
// starting selects the first player; it is ignored in solo mode. An
// empty or out-of-set starting player falls back to the mode default.
func New(mode Mode, starting Player) *State {
	if mode != ModeTwoPlayer {
		mode = ModeSolo
	}
	switch mode {
	case ModeTwoPlayer:
		if starting != PlayerA && starting != PlayerB {
			starting = PlayerA
		}
	default:
		starting = PlayerSolo
	}
	msg := "Game on! Enter the first word."
	if mode == ModeTwoPlayer {
		msg = fmt.Sprintf("Game on! Player %s, enter the first word.", starting)
	}
	return &State{
		ID:             randomID(),
		Mode:           mode,
		History:        []string{},
		TurnNumber:     1,
		ActivePlayer:   starting,
		StartingPlayer: starting,
		LastMessage:    msg,
	}
}

// SubmitWord validates one submission against the chaining and
// uniqueness rules, mutating the session state.
//
// Check order (each check terminates processing):
//  1. Trim whitespace; empty input → rejected, no state change.
//  2. Word already in history (exact match) → game over (terminal).
//  3. First rune differs from the last rune of the previous word →
//     game over (terminal).
//  4. Otherwise accept: append to history, advance the turn per the
//     configured mode.
//
// Exactly one outcome is returned per call.
func (s *State) SubmitWord(raw string) Outcome {
	word := strings.TrimSpace(raw)
	if word == "" {
		s.LastMessage = "Please enter a word."
		return Outcome{Kind: OutcomeRejected, Reason: ReasonEmptyInput}
	}

	for _, prev := range s.History {
		if prev == word {
			s.Over = true
			s.LastMessage = fmt.Sprintf("Game over! %q has already been used.", word)
			return Outcome{Kind: OutcomeGameOver, Reason: ReasonDuplicateWord, Word: word}
		}
	}

	if s.LastWord != "" {
		first, _ := utf8.DecodeRuneInString(word)
		last, _ := utf8.DecodeLastRuneInString(s.LastWord)
		if first != last {
			s.Over = true
			s.LastMessage = fmt.Sprintf("Game over! %q does not start with %q.", word, last)
			return Outcome{Kind: OutcomeGameOver, Reason: ReasonChainBroken, Word: word}
		}
	}

	s.History = append(s.History, word)
	s.LastWord = word
	s.advanceTurn()
	if s.Mode == ModeTwoPlayer {
		s.LastMessage = fmt.Sprintf("Player %s played %q. Player %s is up.",
			other(s.ActivePlayer), word, s.ActivePlayer)
	} else {
		s.LastMessage = fmt.Sprintf("%q accepted.", word)
	}
	return Outcome{Kind: OutcomeAccepted, Word: word}
}

// advanceTurn applies the mode's turn-advance policy after an accepted
// word. Solo: counter advances every time. Two-player: hand over to the
// other player; the counter advances when control returns to the
// starting player.
func (s *State) advanceTurn() {
	if s.Mode != ModeTwoPlayer {
		s.TurnNumber++
		return
	}
	s.ActivePlayer = other(s.ActivePlayer)
	if s.ActivePlayer == s.StartingPlayer {
		s.TurnNumber++
	}
}

// RequiredStart returns the rune the next word must start with, or 0
// when any first word is still valid.
func (s *State) RequiredStart() rune {
	if s.LastWord == "" {
		return 0
	}
	r, _ := utf8.DecodeLastRuneInString(s.LastWord)
	return r
}

// other flips between the two players; solo maps to itself.
func other(p Player) Player {
	switch p {
	case PlayerA:
		return PlayerB
	case PlayerB:
		return PlayerA
	}
	return p
}

// randomID returns a compact 16-hex-char identifier.
// Collisions are extremely unlikely given crypto/rand entropy.
func randomID() string {
	var b [8]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}
