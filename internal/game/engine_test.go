package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Solo(t *testing.T) {
	s := New(ModeSolo, "")

	require.NotEmpty(t, s.ID)
	assert.Equal(t, ModeSolo, s.Mode)
	assert.Empty(t, s.History)
	assert.Equal(t, "", s.LastWord)
	assert.Equal(t, 1, s.TurnNumber)
	assert.Equal(t, PlayerSolo, s.ActivePlayer)
	assert.False(t, s.Over)
	assert.NotEmpty(t, s.LastMessage)
}

func TestNew_TwoPlayerDefaultsToA(t *testing.T) {
	s := New(ModeTwoPlayer, "")
	assert.Equal(t, PlayerA, s.ActivePlayer)
	assert.Equal(t, PlayerA, s.StartingPlayer)
}

func TestNew_UnknownModeFallsBackToSolo(t *testing.T) {
	s := New(Mode("battle_royale"), PlayerB)
	assert.Equal(t, ModeSolo, s.Mode)
	assert.Equal(t, PlayerSolo, s.ActivePlayer)
}

func TestSubmitWord_AcceptGrowsHistory(t *testing.T) {
	s := New(ModeSolo, "")

	out := s.SubmitWord("apple")

	require.Equal(t, OutcomeAccepted, out.Kind)
	assert.Equal(t, "apple", out.Word)
	assert.Equal(t, []string{"apple"}, s.History)
	assert.Equal(t, "apple", s.LastWord)
	assert.Equal(t, 2, s.TurnNumber)
	assert.False(t, s.Over)
}

func TestSubmitWord_TrimsWhitespace(t *testing.T) {
	s := New(ModeSolo, "")

	out := s.SubmitWord("  apple \t")

	require.Equal(t, OutcomeAccepted, out.Kind)
	assert.Equal(t, "apple", out.Word)
	assert.Equal(t, []string{"apple"}, s.History)
}

func TestSubmitWord_EmptyInputRejectedWithoutStateChange(t *testing.T) {
	for _, raw := range []string{"", "   ", "\t\n"} {
		s := New(ModeSolo, "")

		out := s.SubmitWord(raw)

		require.Equal(t, OutcomeRejected, out.Kind, "input %q", raw)
		assert.Equal(t, ReasonEmptyInput, out.Reason)
		assert.Empty(t, out.Word)
		assert.Empty(t, s.History)
		assert.Equal(t, "", s.LastWord)
		assert.Equal(t, 1, s.TurnNumber)
		assert.Equal(t, PlayerSolo, s.ActivePlayer)
		assert.False(t, s.Over)
	}
}

func TestSubmitWord_EmptyInputAfterPlayLeavesStateUntouched(t *testing.T) {
	s := New(ModeTwoPlayer, PlayerA)
	require.Equal(t, OutcomeAccepted, s.SubmitWord("apple").Kind)

	out := s.SubmitWord("   ")

	require.Equal(t, OutcomeRejected, out.Kind)
	assert.Equal(t, []string{"apple"}, s.History)
	assert.Equal(t, "apple", s.LastWord)
	assert.Equal(t, 1, s.TurnNumber)
	assert.Equal(t, PlayerB, s.ActivePlayer)
}

func TestSubmitWord_DuplicateEndsGame(t *testing.T) {
	s := New(ModeSolo, "")
	require.Equal(t, OutcomeAccepted, s.SubmitWord("apple").Kind)
	require.Equal(t, OutcomeAccepted, s.SubmitWord("elephant").Kind)

	out := s.SubmitWord("apple")

	require.Equal(t, OutcomeGameOver, out.Kind)
	assert.Equal(t, ReasonDuplicateWord, out.Reason)
	assert.Equal(t, "apple", out.Word)
	assert.True(t, s.Over)
	// History is frozen: the duplicate is not appended.
	assert.Equal(t, []string{"apple", "elephant"}, s.History)
	assert.Equal(t, "elephant", s.LastWord)
}

func TestSubmitWord_DuplicateCheckedBeforeChain(t *testing.T) {
	// "apple" breaks the chain after "elephant" (t != a) but is also a
	// duplicate; the duplicate rule wins.
	s := New(ModeSolo, "")
	require.Equal(t, OutcomeAccepted, s.SubmitWord("apple").Kind)
	require.Equal(t, OutcomeAccepted, s.SubmitWord("elephant").Kind)

	out := s.SubmitWord("apple")

	assert.Equal(t, ReasonDuplicateWord, out.Reason)
}

func TestSubmitWord_DuplicateIsCaseSensitive(t *testing.T) {
	s := New(ModeSolo, "")
	require.Equal(t, OutcomeAccepted, s.SubmitWord("apple").Kind)

	out := s.SubmitWord("Elephant")

	// Not a duplicate of anything, but "E" != "e" breaks the chain.
	require.Equal(t, OutcomeGameOver, out.Kind)
	assert.Equal(t, ReasonChainBroken, out.Reason)
}

func TestSubmitWord_ChainBrokenEndsGame(t *testing.T) {
	s := New(ModeSolo, "")
	require.Equal(t, OutcomeAccepted, s.SubmitWord("apple").Kind)

	out := s.SubmitWord("banana")

	require.Equal(t, OutcomeGameOver, out.Kind)
	assert.Equal(t, ReasonChainBroken, out.Reason)
	assert.Equal(t, "banana", out.Word)
	assert.True(t, s.Over)
	assert.Equal(t, []string{"apple"}, s.History)
}

func TestSubmitWord_FirstWordSkipsChainCheck(t *testing.T) {
	s := New(ModeSolo, "")
	out := s.SubmitWord("zebra")
	assert.Equal(t, OutcomeAccepted, out.Kind)
}

func TestSubmitWord_ChainComparesUnicodeRunes(t *testing.T) {
	s := New(ModeSolo, "")
	require.Equal(t, OutcomeAccepted, s.SubmitWord("사과").Kind)

	// "과일" starts with the last rune of "사과".
	out := s.SubmitWord("과일")
	require.Equal(t, OutcomeAccepted, out.Kind)

	// "바나나" does not start with the last rune of "과일".
	out = s.SubmitWord("바나나")
	require.Equal(t, OutcomeGameOver, out.Kind)
	assert.Equal(t, ReasonChainBroken, out.Reason)
}

func TestSubmitWord_SoloScenario(t *testing.T) {
	s := New(ModeSolo, "")

	require.Equal(t, OutcomeAccepted, s.SubmitWord("apple").Kind)
	assert.Equal(t, []string{"apple"}, s.History)
	assert.Equal(t, 2, s.TurnNumber)

	require.Equal(t, OutcomeAccepted, s.SubmitWord("elephant").Kind)
	assert.Equal(t, 3, s.TurnNumber)

	out := s.SubmitWord("apple")
	require.Equal(t, OutcomeGameOver, out.Kind)
	assert.Equal(t, ReasonDuplicateWord, out.Reason)
	assert.True(t, s.Over)
}

func TestTwoPlayer_TurnOrder(t *testing.T) {
	s := New(ModeTwoPlayer, PlayerA)

	require.Equal(t, OutcomeAccepted, s.SubmitWord("apple").Kind)
	assert.Equal(t, PlayerB, s.ActivePlayer)
	assert.Equal(t, 1, s.TurnNumber)

	require.Equal(t, OutcomeAccepted, s.SubmitWord("elephant").Kind)
	assert.Equal(t, PlayerA, s.ActivePlayer)
	assert.Equal(t, 2, s.TurnNumber)
}

func TestTwoPlayer_StartingPlayerBAnchorsTurnCounter(t *testing.T) {
	s := New(ModeTwoPlayer, PlayerB)

	require.Equal(t, OutcomeAccepted, s.SubmitWord("apple").Kind)
	assert.Equal(t, PlayerA, s.ActivePlayer)
	assert.Equal(t, 1, s.TurnNumber)

	require.Equal(t, OutcomeAccepted, s.SubmitWord("elephant").Kind)
	assert.Equal(t, PlayerB, s.ActivePlayer)
	assert.Equal(t, 2, s.TurnNumber)
}

func TestRequiredStart(t *testing.T) {
	s := New(ModeSolo, "")
	assert.Equal(t, rune(0), s.RequiredStart())

	require.Equal(t, OutcomeAccepted, s.SubmitWord("apple").Kind)
	assert.Equal(t, 'e', s.RequiredStart())
}
