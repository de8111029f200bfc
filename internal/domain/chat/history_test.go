package chat

import (
	"fmt"
	"testing"
)

func turnFixture(n int) []Turn {
	// index 0 is the newest turn, matching sessionHistory storage order.
	turns := make([]Turn, n)
	for i := range turns {
		turns[i] = Turn{
			Question: fmt.Sprintf("question %d", n-i),
			Answer:   fmt.Sprintf("answer %d", n-i),
		}
	}
	return turns
}

func TestSessionHistoryBoundsTurns(t *testing.T) {
	h := newSessionHistory(3)
	for i := 1; i <= 5; i++ {
		h.append("s1", Turn{Question: fmt.Sprintf("q%d", i), Answer: fmt.Sprintf("a%d", i)})
	}

	if got := h.size("s1"); got != 3 {
		t.Fatalf("want 3 retained turns, got %d", got)
	}
	turns := h.recent("s1", 10)
	if turns[0].Question != "q5" || turns[2].Question != "q3" {
		t.Fatalf("want newest-first q5..q3, got %+v", turns)
	}
}

func TestSessionHistoryIsolatesSessions(t *testing.T) {
	h := newSessionHistory(5)
	h.append("s1", Turn{Question: "q", Answer: "a"})

	if got := h.size("s2"); got != 0 {
		t.Fatalf("sessions must not share turns, got %d", got)
	}
	if turns := h.recent("s2", 5); len(turns) != 0 {
		t.Fatalf("want no turns for unknown session, got %+v", turns)
	}
}

func TestTrimToBudgetKeepsNewestTurns(t *testing.T) {
	perText := func(string) int { return 5 } // 10 tokens per turn
	turns := turnFixture(4)

	kept := trimToBudget(turns, 25, perText)
	if len(kept) != 2 {
		t.Fatalf("want 2 turns within budget, got %d", len(kept))
	}
	// chronological output: oldest of the kept turns first
	if kept[0].Question != "question 3" || kept[1].Question != "question 4" {
		t.Fatalf("want turns 3 then 4, got %+v", kept)
	}
}

func TestTrimToBudgetZeroDisablesTrimming(t *testing.T) {
	turns := turnFixture(3)
	kept := trimToBudget(turns, 0, func(string) int { return 1000 })
	if len(kept) != 3 {
		t.Fatalf("budget 0 must keep everything, got %d", len(kept))
	}
	if kept[0].Question != "question 1" || kept[2].Question != "question 3" {
		t.Fatalf("want chronological order, got %+v", kept)
	}
}

func TestEstimateTokensIsUpperBiased(t *testing.T) {
	if got := estimateTokens(""); got != 0 {
		t.Fatalf("empty text must cost nothing, got %d", got)
	}
	if got := estimateTokens("hello world"); got < 2 {
		t.Fatalf("estimate must cover at least one token per word, got %d", got)
	}
	if got := estimateTokens("こんにちは"); got < 2 {
		t.Fatalf("estimate must scale with runes for unsegmented text, got %d", got)
	}
}
