package dialogue

import (
	"context"
	"errors"
	"strings"
	"testing"
)

// mockCompleter implements Completer for testing.
type mockCompleter struct {
	reply string
	err   error
	calls int
}

func (m *mockCompleter) Complete(_ context.Context, _, _ string, _ int, _ float32) (string, error) {
	m.calls++
	return m.reply, m.err
}

func newTestEngine(completer Completer) *Engine {
	return NewEngine(Config{}, completer, nil)
}

func TestOpening(t *testing.T) {
	engine := newTestEngine(nil)

	reply, tier := engine.Opening("")
	if tier != TierOpening {
		t.Fatalf("expected opening tier, got %s", tier)
	}
	if !strings.Contains(reply, "Sarah") || !strings.Contains(reply, "Digital Growth Solutions") {
		t.Fatalf("opening should introduce the caller: %q", reply)
	}
}

func TestOpeningUsesLeadName(t *testing.T) {
	engine := newTestEngine(nil)

	reply, tier := engine.Opening("Priya")
	if tier != TierOpening {
		t.Fatalf("expected opening tier, got %s", tier)
	}
	if !strings.HasPrefix(reply, "Hi Priya!") {
		t.Fatalf("greeting should address the lead by name: %q", reply)
	}
}

func TestReply_KeywordYes(t *testing.T) {
	completer := &mockCompleter{}
	engine := newTestEngine(completer)

	reply, tier := engine.Reply(context.Background(), "yes")
	if tier != TierKeyword {
		t.Fatalf("expected keyword tier, got %s", tier)
	}
	if reply != "Awesome! What type of project are you thinking about?" {
		t.Fatalf("unexpected reply: %q", reply)
	}
	if completer.calls != 0 {
		t.Fatal("keyword tier must not call the completion collaborator")
	}
}

func TestReply_LanguageBeforeKeyword(t *testing.T) {
	engine := newTestEngine(nil)

	reply, tier := engine.Reply(context.Background(), "hindi please")
	if tier != TierLanguage {
		t.Fatalf("expected language tier, got %s", tier)
	}
	if !strings.Contains(reply, "Hindi") {
		t.Fatalf("redirect should name the requested language: %q", reply)
	}
}

func TestReply_LanguageNativeScript(t *testing.T) {
	engine := newTestEngine(nil)

	_, tier := engine.Reply(context.Background(), "मराठी")
	if tier != TierLanguage {
		t.Fatalf("expected language tier for native script, got %s", tier)
	}
}

func TestReply_ConfusionTier(t *testing.T) {
	engine := newTestEngine(nil)

	reply, tier := engine.Reply(context.Background(), "sorry, can you repeat that")
	if tier != TierConfusion {
		t.Fatalf("expected confusion tier, got %s", tier)
	}
	if reply != confusionReply {
		t.Fatalf("unexpected reply: %q", reply)
	}
}

func TestReply_ConfusionBeforeKeyword(t *testing.T) {
	engine := newTestEngine(nil)

	// "what" wins over the "cost" keyword because tier 3 runs first.
	_, tier := engine.Reply(context.Background(), "what does it cost")
	if tier != TierConfusion {
		t.Fatalf("expected confusion tier, got %s", tier)
	}
}

func TestReply_KeywordTableOrder(t *testing.T) {
	engine := newTestEngine(nil)

	// "yes, the price matters" matches both "yes" and "price"; the
	// first table entry wins.
	reply, tier := engine.Reply(context.Background(), "yes, the price matters")
	if tier != TierKeyword {
		t.Fatalf("expected keyword tier, got %s", tier)
	}
	if reply != "Awesome! What type of project are you thinking about?" {
		t.Fatalf("table order violated: %q", reply)
	}
}

func TestReply_PhraseTier(t *testing.T) {
	engine := newTestEngine(nil)

	reply, tier := engine.Reply(context.Background(), "please call back tomorrow")
	if tier != TierPhrase {
		t.Fatalf("expected phrase tier, got %s", tier)
	}
	if reply != "Sure thing! What's the best time to reach you?" {
		t.Fatalf("unexpected reply: %q", reply)
	}
}

func TestReply_PhraseUsesCompanyName(t *testing.T) {
	engine := NewEngine(Config{AgentName: "Jo", CompanyName: "Acme Web Co"}, nil, nil)

	reply, tier := engine.Reply(context.Background(), "who are you exactly")
	if tier != TierPhrase {
		t.Fatalf("expected phrase tier, got %s", tier)
	}
	if !strings.Contains(reply, "Jo") || !strings.Contains(reply, "Acme Web Co") {
		t.Fatalf("phrase reply should carry configured persona: %q", reply)
	}
}

func TestReply_GenerativeTier(t *testing.T) {
	completer := &mockCompleter{reply: "  Sounds exciting! What does your bakery need most online?  "}
	engine := newTestEngine(completer)

	reply, tier := engine.Reply(context.Background(),
		"we run a small bakery and mostly sell at farmers markets")
	if tier != TierGenerative {
		t.Fatalf("expected generative tier, got %s", tier)
	}
	if reply != "Sounds exciting! What does your bakery need most online?" {
		t.Fatalf("generative reply should be trimmed: %q", reply)
	}
	if completer.calls != 1 {
		t.Fatalf("expected exactly one completion call, got %d", completer.calls)
	}
}

func TestReply_GenerativeFailureFallsThrough(t *testing.T) {
	completer := &mockCompleter{err: errors.New("timeout")}
	engine := newTestEngine(completer)

	reply, tier := engine.Reply(context.Background(),
		"we import ceramics from portugal wholesale")
	if tier != TierDefault {
		t.Fatalf("expected default tier after collaborator failure, got %s", tier)
	}
	if reply != defaultReply {
		t.Fatalf("unexpected reply: %q", reply)
	}
}

func TestReply_ShortInputSkipsGenerative(t *testing.T) {
	completer := &mockCompleter{reply: "should not be used"}
	engine := newTestEngine(completer)

	// "zzz" matches nothing and is too short for the generative tier.
	_, tier := engine.Reply(context.Background(), "zzz")
	if tier != TierDefault {
		t.Fatalf("expected default tier, got %s", tier)
	}
	if completer.calls != 0 {
		t.Fatal("short input must not reach the completion collaborator")
	}
}

func TestReply_EmptyUtterance(t *testing.T) {
	engine := newTestEngine(nil)

	reply, tier := engine.Reply(context.Background(), "")
	if tier != TierDefault {
		t.Fatalf("expected default tier for silence, got %s", tier)
	}
	if reply != defaultReply {
		t.Fatalf("unexpected reply: %q", reply)
	}
}

func TestReply_Deterministic(t *testing.T) {
	engine := newTestEngine(nil)

	utterances := []string{
		"",
		"yes",
		"hindi please",
		"sounds good to me",
		"zzz",
	}
	for _, utterance := range utterances {
		first, firstTier := engine.Reply(context.Background(), utterance)
		second, secondTier := engine.Reply(context.Background(), utterance)
		if first != second || firstTier != secondTier {
			t.Fatalf("non-deterministic decision for %q: (%q,%s) vs (%q,%s)",
				utterance, first, firstTier, second, secondTier)
		}
	}
}
