package tts

import (
	"context"
	"errors"
	"strings"
	"testing"
)

// mockSynthesizer implements Synthesizer for testing.
type mockSynthesizer struct {
	url   string
	err   error
	calls int
}

func (m *mockSynthesizer) Name() string { return "mock" }
func (m *mockSynthesizer) Synthesize(_ context.Context, _ string) (string, error) {
	m.calls++
	return m.url, m.err
}

func newTestDispatcher(t *testing.T, engine Engine, premium Synthesizer) *Dispatcher {
	t.Helper()
	d, err := NewDispatcher(Config{Engine: engine}, premium, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return d
}

func TestRender_HybridImportantShortUsesPremium(t *testing.T) {
	synth := &mockSynthesizer{url: "https://example.com/static/audio_1.mp3"}
	d := newTestDispatcher(t, EngineHybrid, synth)

	speech := d.Render(context.Background(), "Hi! Quick question about your website.", true)
	if !speech.Play() {
		t.Fatal("expected playable audio for short important utterance")
	}
	if speech.AudioURL != synth.url {
		t.Fatalf("unexpected audio url: %q", speech.AudioURL)
	}
	if synth.calls != 1 {
		t.Fatalf("expected one synthesis call, got %d", synth.calls)
	}
}

func TestRender_HybridUnimportantUsesNative(t *testing.T) {
	synth := &mockSynthesizer{url: "https://example.com/static/a.mp3"}
	d := newTestDispatcher(t, EngineHybrid, synth)

	speech := d.Render(context.Background(), "Tell me more about that.", false)
	if speech.Play() {
		t.Fatal("unimportant utterance should use native speech")
	}
	if synth.calls != 0 {
		t.Fatal("premium engine must not be consulted")
	}
}

func TestRender_HybridLongImportantUsesNative(t *testing.T) {
	synth := &mockSynthesizer{url: "https://example.com/static/a.mp3"}
	d := newTestDispatcher(t, EngineHybrid, synth)

	long := strings.Repeat("really ", 20) + "long opening line"
	speech := d.Render(context.Background(), long, true)
	if speech.Play() {
		t.Fatal("long utterance should use native speech even when important")
	}
	if synth.calls != 0 {
		t.Fatal("premium engine must not be consulted for long text")
	}
}

func TestRender_SingleEngineAlwaysTriesPremium(t *testing.T) {
	synth := &mockSynthesizer{url: "https://example.com/static/a.mp3"}
	d := newTestDispatcher(t, EngineOpenAI, synth)

	speech := d.Render(context.Background(), "Anything at all, even unimportant.", false)
	if !speech.Play() {
		t.Fatal("single-engine mode should always attempt premium synthesis")
	}
	if synth.calls != 1 {
		t.Fatalf("expected one synthesis call, got %d", synth.calls)
	}
}

func TestRender_PremiumFailureFallsBack(t *testing.T) {
	synth := &mockSynthesizer{err: errors.New("provider down")}
	d := newTestDispatcher(t, EngineElevenLabs, synth)

	speech := d.Render(context.Background(), "Hello!", true)
	if speech.Play() {
		t.Fatal("failure must fall back to native speech")
	}
	if speech.Text != "Hello!" {
		t.Fatalf("fallback should keep the text: %q", speech.Text)
	}
}

func TestRender_EmptyAudioURLFallsBack(t *testing.T) {
	synth := &mockSynthesizer{url: ""}
	d := newTestDispatcher(t, EngineOpenAI, synth)

	speech := d.Render(context.Background(), "Hello!", true)
	if speech.Play() {
		t.Fatal("empty audio url must fall back to native speech")
	}
}

func TestRender_NilPremiumAlwaysNative(t *testing.T) {
	d := newTestDispatcher(t, EngineHybrid, nil)

	speech := d.Render(context.Background(), "Hi there!", true)
	if speech.Play() {
		t.Fatal("without a premium engine everything is native speech")
	}
}

func TestConfig_ValidateRejectsUnknownEngine(t *testing.T) {
	cfg := Config{Engine: "polly"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown engine")
	}
}

func TestNewSynthesizer_HybridWithoutKeyDegrades(t *testing.T) {
	synth, err := NewSynthesizer(Config{Engine: EngineHybrid}, "https://example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if synth != nil {
		t.Fatal("hybrid without a key should degrade to native-only")
	}
}

func TestNewSynthesizer_OpenAIRequiresKey(t *testing.T) {
	if _, err := NewSynthesizer(Config{Engine: EngineOpenAI}, "https://example.com"); err == nil {
		t.Fatal("expected error when OpenAI engine has no key")
	}
}

func TestRender_ObserverSeesDecisions(t *testing.T) {
	synth := &mockSynthesizer{url: "https://example.com/static/a.mp3"}
	d := newTestDispatcher(t, EngineHybrid, synth)

	type event struct{ engine, status string }
	var events []event
	d.SetObserver(func(engine, status string) {
		events = append(events, event{engine, status})
	})

	d.Render(context.Background(), "Hello!", true)                    // premium ok
	d.Render(context.Background(), "Tell me more about that.", false) // native by policy
	synth.err = errors.New("engine down")
	d.Render(context.Background(), "Goodbye!", true) // premium fallback

	want := []event{
		{"mock", "ok"},
		{"native", "ok"},
		{"mock", "fallback"},
	}
	if len(events) != len(want) {
		t.Fatalf("observed %d events, want %d: %v", len(events), len(want), events)
	}
	for i, w := range want {
		if events[i] != w {
			t.Errorf("event %d = %v, want %v", i, events[i], w)
		}
	}
}
