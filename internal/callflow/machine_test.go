package callflow

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/haasonsaas/leadline/internal/dialogue"
	"github.com/haasonsaas/leadline/internal/intent"
	"github.com/haasonsaas/leadline/internal/leads"
	"github.com/haasonsaas/leadline/internal/observability"
	"github.com/haasonsaas/leadline/internal/sessions"
	"github.com/haasonsaas/leadline/internal/tts"
)

type mockCompleter struct {
	reply string
	err   error
	calls int
}

func (m *mockCompleter) Complete(_ context.Context, _, _ string, _ int, _ float32) (string, error) {
	m.calls++
	return m.reply, m.err
}

type mockNotifier struct {
	notified []*leads.Lead
	err      error
}

func (m *mockNotifier) Name() string { return "mock" }
func (m *mockNotifier) Notify(_ context.Context, lead *leads.Lead) error {
	m.notified = append(m.notified, lead)
	return m.err
}

type faultyLeadStore struct {
	leads.Store
	updateErr error
}

func (s *faultyLeadStore) Update(_ context.Context, _ int64, _ leads.Update) error {
	return s.updateErr
}

type panickingLeadStore struct {
	leads.Store
}

func (s *panickingLeadStore) Get(_ context.Context, _ int64) (*leads.Lead, error) {
	panic("store corrupted")
}

type fixture struct {
	machine  *Machine
	leads    *leads.MemoryStore
	sessions *sessions.Store
	notifier *mockNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithStore(t, leads.NewMemoryStore(), nil)
}

func newFixtureWithStore(t *testing.T, store leads.Store, memory *leads.MemoryStore) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	if memory == nil {
		if ms, ok := store.(*leads.MemoryStore); ok {
			memory = ms
		}
	}

	sessionStore := sessions.NewStore(sessions.DefaultTTL)
	policy := dialogue.NewEngine(dialogue.Config{}, &mockCompleter{reply: "Sounds great!"}, logger)
	classifier := intent.NewClassifier(&mockCompleter{reply: "NO"}, logger)
	voice, err := tts.NewDispatcher(tts.Config{Engine: tts.EngineHybrid}, nil, logger)
	if err != nil {
		t.Fatalf("NewDispatcher: %v", err)
	}
	notifier := &mockNotifier{}
	metrics := observability.NewMetricsWithRegistry(prometheus.NewRegistry())

	machine, err := NewMachine(Config{}, Deps{
		Leads:      store,
		Sessions:   sessionStore,
		Policy:     policy,
		Classifier: classifier,
		Voice:      voice,
		Notifier:   notifier,
		Logger:     logger,
		Metrics:    metrics,
	})
	if err != nil {
		t.Fatalf("NewMachine: %v", err)
	}
	return &fixture{machine: machine, leads: memory, sessions: sessionStore, notifier: notifier}
}

func (f *fixture) createLead(t *testing.T, name string) int64 {
	t.Helper()
	id, err := f.leads.Create(context.Background(), name, name+"@example.com", "+15550001111")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return id
}

func TestEntryUnknownLead(t *testing.T) {
	f := newFixture(t)

	twiml := f.machine.Entry(context.Background(), 42)

	// Say escapes apostrophes, so match on the apostrophe-free prefix.
	if !strings.Contains(twiml, "Sorry, there was an error.") {
		t.Errorf("expected apology, got %q", twiml)
	}
	if !strings.Contains(twiml, "<Hangup/>") {
		t.Errorf("expected hangup, got %q", twiml)
	}
	if strings.Contains(twiml, "<Gather") {
		t.Errorf("unknown lead must not gather, got %q", twiml)
	}
}

func TestEntryGreetsNamedLead(t *testing.T) {
	f := newFixture(t)
	id := f.createLead(t, "Alice")

	twiml := f.machine.Entry(context.Background(), id)

	if !strings.Contains(twiml, "Hi Alice!") {
		t.Errorf("expected personalized greeting, got %q", twiml)
	}
	if !strings.Contains(twiml, `action="/voice/process/1"`) {
		t.Errorf("expected gather pointing at per-turn webhook, got %q", twiml)
	}
	if !strings.Contains(twiml, "No worries though!") {
		t.Errorf("expected silence fallback after gather, got %q", twiml)
	}
	if !strings.Contains(twiml, `<Redirect method="POST">/voice/end/1</Redirect>`) {
		t.Errorf("fallback must redirect to terminal webhook, got %q", twiml)
	}
	if f.sessions.Len() != 0 {
		t.Errorf("entry must not create a session, have %d", f.sessions.Len())
	}
}

func TestTurnAffirmativeKeyword(t *testing.T) {
	f := newFixture(t)
	id := f.createLead(t, "Bob")

	twiml := f.machine.Turn(context.Background(), id, "CA100", "yes")

	want := "Awesome! What type of project are you thinking about?"
	if !strings.Contains(twiml, want) {
		t.Errorf("expected keyword reply %q, got %q", want, twiml)
	}
	if !strings.Contains(twiml, "<Gather") {
		t.Errorf("mid-call turn must gather again, got %q", twiml)
	}

	session, ok := f.sessions.Get("CA100")
	if !ok {
		t.Fatal("session should exist after first turn")
	}
	if session.Turn != 1 {
		t.Errorf("turn = %d, want 1", session.Turn)
	}
	if len(session.History) != 2 {
		t.Fatalf("history length = %d, want 2", len(session.History))
	}
	if session.History[0].Speaker != sessions.SpeakerUser || session.History[0].Text != "yes" {
		t.Errorf("unexpected user entry %+v", session.History[0])
	}
	if session.History[1].Speaker != sessions.SpeakerBot {
		t.Errorf("unexpected bot entry %+v", session.History[1])
	}
}

func TestTurnEmptyUtterance(t *testing.T) {
	f := newFixture(t)
	id := f.createLead(t, "Carol")

	twiml := f.machine.Turn(context.Background(), id, "CA101", "   ")

	if !strings.Contains(twiml, "Tell me more about what you") {
		t.Errorf("empty utterance should get the fallback reply, got %q", twiml)
	}
	session, _ := f.sessions.Get("CA101")
	if len(session.History) != 1 {
		t.Fatalf("history length = %d, want 1 (bot line only)", len(session.History))
	}
	if session.History[0].Speaker != sessions.SpeakerBot {
		t.Errorf("lone entry should be the bot line, got %+v", session.History[0])
	}
}

func TestTurnUnknownLead(t *testing.T) {
	f := newFixture(t)

	twiml := f.machine.Turn(context.Background(), 7, "CA102", "yes")

	if !strings.Contains(twiml, "Sorry, there was an error.") || !strings.Contains(twiml, "<Hangup/>") {
		t.Errorf("expected apology and hangup, got %q", twiml)
	}
	if f.sessions.Len() != 0 {
		t.Errorf("unknown lead must not leave a session, have %d", f.sessions.Len())
	}
}

func TestClosingAtMaxTurns(t *testing.T) {
	f := newFixture(t)
	id := f.createLead(t, "Dave")
	ctx := context.Background()

	var last string
	for i := 0; i < 5; i++ {
		last = f.machine.Turn(ctx, id, "CA103", "tell me about pricing")
		if i < 4 {
			if !strings.Contains(last, "<Gather") {
				t.Fatalf("turn %d should still gather, got %q", i+1, last)
			}
			if strings.Contains(last, "contact you soon. Bye!") {
				t.Fatalf("turn %d should not close yet, got %q", i+1, last)
			}
		}
	}

	if strings.Contains(last, "<Gather") {
		t.Errorf("closing turn must not gather, got %q", last)
	}
	if !strings.Contains(last, "contact you soon. Bye!") {
		t.Errorf("expected closing line, got %q", last)
	}
	if !strings.Contains(last, `<Redirect method="POST">/voice/end/1</Redirect>`) {
		t.Errorf("closing must redirect to terminal webhook, got %q", last)
	}

	session, _ := f.sessions.Get("CA103")
	if session.Turn != 5 {
		t.Errorf("turn = %d, want 5", session.Turn)
	}
	if len(session.History) != 2*session.Turn {
		t.Errorf("history length = %d, want %d", len(session.History), 2*session.Turn)
	}
}

func TestEndPersistsInterestedOutcome(t *testing.T) {
	f := newFixture(t)
	id := f.createLead(t, "Erin")
	ctx := context.Background()

	f.machine.Turn(ctx, id, "CA104", "yes I am very interested")
	twiml := f.machine.End(ctx, id, "CA104")

	if !strings.Contains(twiml, "<Hangup/>") {
		t.Errorf("terminal webhook must hang up, got %q", twiml)
	}
	if f.sessions.Len() != 0 {
		t.Errorf("session must be removed, have %d", f.sessions.Len())
	}

	lead, err := f.leads.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !lead.CallCompleted {
		t.Error("call should be marked completed")
	}
	if !lead.Interested {
		t.Error("two positive signals should classify as interested")
	}
	if !strings.Contains(lead.Transcript, "yes I am very interested") {
		t.Errorf("transcript missing utterance: %q", lead.Transcript)
	}

	if len(f.notifier.notified) != 1 {
		t.Fatalf("notifier called %d times, want 1", len(f.notifier.notified))
	}
	if f.notifier.notified[0].Name != "Erin" {
		t.Errorf("notified wrong lead: %+v", f.notifier.notified[0])
	}
}

func TestEndWithoutSession(t *testing.T) {
	f := newFixture(t)
	id := f.createLead(t, "Frank")
	ctx := context.Background()

	twiml := f.machine.End(ctx, id, "CA105")

	if !strings.Contains(twiml, "<Hangup/>") {
		t.Errorf("expected hangup, got %q", twiml)
	}
	lead, err := f.leads.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !lead.CallCompleted {
		t.Error("call should be marked completed even without a session")
	}
	if lead.Interested {
		t.Error("empty transcript must classify as not interested")
	}
	if len(f.notifier.notified) != 0 {
		t.Errorf("notifier should not fire, called %d times", len(f.notifier.notified))
	}
}

func TestEndRemovesSessionWhenPersistenceFails(t *testing.T) {
	memory := leads.NewMemoryStore()
	f := newFixtureWithStore(t, &faultyLeadStore{Store: memory, updateErr: context.DeadlineExceeded}, memory)
	id := f.createLead(t, "Grace")
	ctx := context.Background()

	f.machine.Turn(ctx, id, "CA106", "maybe later")
	twiml := f.machine.End(ctx, id, "CA106")

	if !strings.Contains(twiml, "<Hangup/>") {
		t.Errorf("terminal webhook must still hang up, got %q", twiml)
	}
	if f.sessions.Len() != 0 {
		t.Errorf("session must be removed despite the failed write, have %d", f.sessions.Len())
	}
}

func TestEntryRecoversFromPanic(t *testing.T) {
	memory := leads.NewMemoryStore()
	f := newFixtureWithStore(t, &panickingLeadStore{Store: memory}, memory)

	twiml := f.machine.Entry(context.Background(), 1)

	if !strings.Contains(twiml, "Technical difficulties.") {
		t.Errorf("expected internal apology, got %q", twiml)
	}
	if !strings.Contains(twiml, "<Hangup/>") {
		t.Errorf("expected hangup, got %q", twiml)
	}
}
