package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/devamsheth0806/VeriMeet/internal/broadcast"
	"github.com/devamsheth0806/VeriMeet/internal/connector"
	"github.com/devamsheth0806/VeriMeet/internal/event"
	"github.com/devamsheth0806/VeriMeet/internal/session"
	"github.com/devamsheth0806/VeriMeet/pkg/state"
)

type stubSummarizer struct {
	mu        sync.Mutex
	calls     [][]string
	prevs     []string
	failNext  bool
	failFinal bool
}

func (s *stubSummarizer) Summarize(_ context.Context, prev string, segs []string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, segs)
	s.prevs = append(s.prevs, prev)
	if s.failNext {
		s.failNext = false
		return "", errors.New("model unavailable")
	}
	return fmt.Sprintf("summary %d", len(s.calls)), nil
}

func (s *stubSummarizer) FinalizeSummary(_ context.Context, _ []string, _ []session.Fact) (string, error) {
	if s.failFinal {
		return "", errors.New("model unavailable")
	}
	return "final summary", nil
}

type stubFactDetector struct {
	fn func(text string) []FactCandidate
}

func (d stubFactDetector) DetectFacts(_ context.Context, text string) ([]FactCandidate, error) {
	if d.fn == nil {
		return nil, nil
	}
	return d.fn(text), nil
}

type stubVerifier struct {
	mu       sync.Mutex
	calls    int
	verified bool
	err      error
}

func (v *stubVerifier) VerifyFact(_ context.Context, claim, _ string) (Verification, error) {
	v.mu.Lock()
	v.calls++
	v.mu.Unlock()
	if v.err != nil {
		return Verification{}, v.err
	}
	return Verification{
		Verified:    v.verified,
		Confidence:  "medium",
		Explanation: "checked",
		Sources:     []session.SourceRef{{Title: "src", Snippet: "s", URL: "https://example.com"}},
	}, nil
}

type stubIntentDetector struct {
	fn func(text string) []IntentCandidate
}

func (d stubIntentDetector) DetectIntents(_ context.Context, text string) ([]IntentCandidate, error) {
	if d.fn == nil {
		return nil, nil
	}
	return d.fn(text), nil
}

type stubCalendar struct {
	calls int
	err   error
}

func (c *stubCalendar) CreateEvent(_ context.Context, _ connector.EventRequest) (connector.EventResult, error) {
	c.calls++
	if c.err != nil {
		return connector.EventResult{}, c.err
	}
	return connector.EventResult{EventID: "ev1", Link: "https://cal/ev1", Start: "2026-08-21T14:00:00"}, nil
}

type stubMailer struct {
	calls int
	last  connector.EmailRequest
	err   error
}

func (m *stubMailer) SendSummary(_ context.Context, req connector.EmailRequest) (connector.EmailResult, error) {
	m.calls++
	m.last = req
	if m.err != nil {
		return connector.EmailResult{}, m.err
	}
	return connector.EmailResult{MessageID: "msg1"}, nil
}

type stubNotes struct {
	calls int
	err   error
}

func (n *stubNotes) CreatePage(_ context.Context, _, _ string) (string, error) {
	n.calls++
	if n.err != nil {
		return "", n.err
	}
	return "https://notion/p1", nil
}

type stubChat struct {
	msgs []string
}

func (c *stubChat) SendChatMessage(_ context.Context, _, message string) error {
	c.msgs = append(c.msgs, message)
	return nil
}

func drain(sub *broadcast.Subscriber) []event.Event {
	var out []event.Event
	for {
		select {
		case ev := <-sub.Events():
			out = append(out, ev)
		default:
			return out
		}
	}
}

func ofType(evs []event.Event, typ string) []event.Event {
	var out []event.Event
	for _, ev := range evs {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

func ingest(t *testing.T, o *Orchestrator, id, text string) {
	t.Helper()
	if err := o.IngestSegment(context.Background(), id, session.Segment{Text: text}); err != nil {
		t.Fatalf("ingest %q: %v", text, err)
	}
}

func TestSummaryThreshold(t *testing.T) {
	sum := &stubSummarizer{}
	hub := broadcast.NewHub(256, "[test]")
	o := NewOrchestrator(session.NewRegistry(), hub, Collaborators{Summarizer: sum}, Options{SummaryThreshold: 2})
	sub := hub.Subscribe()
	defer sub.Close()

	st := o.CreateSession()
	for i := 1; i <= 5; i++ {
		ingest(t, o, st.ID(), fmt.Sprintf("segment %d", i))
	}

	evs := ofType(drain(sub), event.TypeSummary)
	if len(evs) != 2 {
		t.Fatalf("expected 2 summary events for 5 segments at threshold 2, got %d", len(evs))
	}
	if len(sum.calls) != 2 {
		t.Fatalf("expected 2 summarizer calls, got %d", len(sum.calls))
	}
	if sum.prevs[0] != "" || sum.prevs[1] != "summary 1" {
		t.Fatalf("expected rolling summary to feed the next call, got %q", sum.prevs)
	}

	snap, err := o.CurrentSummary(st.ID())
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.Summary != "summary 2" || snap.Segments != 5 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
}

func TestSummarizerFailureRetainsBuffer(t *testing.T) {
	sum := &stubSummarizer{failNext: true}
	o := NewOrchestrator(session.NewRegistry(), nil, Collaborators{Summarizer: sum}, Options{SummaryThreshold: 2})

	st := o.CreateSession()
	ingest(t, o, st.ID(), "a")
	ingest(t, o, st.ID(), "b") // summarize fails, buffer kept
	ingest(t, o, st.ID(), "c") // retried with all three segments

	if len(sum.calls) != 2 {
		t.Fatalf("expected 2 summarizer calls, got %d", len(sum.calls))
	}
	if got := sum.calls[1]; len(got) != 3 {
		t.Fatalf("expected retry to carry the failed segments, got %v", got)
	}
	st.Lock()
	defer st.Unlock()
	if st.Summary() != "summary 2" {
		t.Fatalf("unexpected summary %q", st.Summary())
	}
	if len(st.Buffer()) != 0 {
		t.Fatalf("expected buffer cleared after success, got %d", len(st.Buffer()))
	}
}

func TestFactDedupAndEvents(t *testing.T) {
	verifier := &stubVerifier{verified: true}
	detector := stubFactDetector{fn: func(text string) []FactCandidate {
		if !strings.Contains(text, "revenue") {
			return nil
		}
		return []FactCandidate{{Claim: "Revenue is up 20%", Context: "Q3 results"}}
	}}
	hub := broadcast.NewHub(256, "[test]")
	o := NewOrchestrator(session.NewRegistry(), hub, Collaborators{
		Summarizer: &stubSummarizer{}, Facts: detector, Verifier: verifier,
	}, Options{})
	sub := hub.Subscribe()
	defer sub.Close()

	st := o.CreateSession()
	ingest(t, o, st.ID(), "revenue went up")
	ingest(t, o, st.ID(), "again, revenue went up")

	if verifier.calls != 1 {
		t.Fatalf("expected one verification for duplicate claim, got %d", verifier.calls)
	}

	facts := ofType(drain(sub), event.TypeFact)
	if len(facts) != 2 {
		t.Fatalf("expected pending+outcome fact events, got %d", len(facts))
	}
	first := facts[0].Data.(FactEvent)
	second := facts[1].Data.(FactEvent)
	if first.Status != session.VerificationPending {
		t.Fatalf("expected first event pending, got %s", first.Status)
	}
	if second.Status != session.VerificationVerified || len(second.Sources) != 1 {
		t.Fatalf("unexpected outcome event: %+v", second.Fact)
	}

	snap, _ := o.CurrentSummary(st.ID())
	if len(snap.Facts) != 1 {
		t.Fatalf("expected one stored fact, got %d", len(snap.Facts))
	}
}

func TestVerifierFailureMarksFactFailed(t *testing.T) {
	verifier := &stubVerifier{err: errors.New("search quota exceeded")}
	detector := stubFactDetector{fn: func(string) []FactCandidate {
		return []FactCandidate{{Claim: "GDP grew 3%"}}
	}}
	o := NewOrchestrator(session.NewRegistry(), nil, Collaborators{
		Summarizer: &stubSummarizer{}, Facts: detector, Verifier: verifier,
	}, Options{})

	st := o.CreateSession()
	ingest(t, o, st.ID(), "gdp talk")

	snap, _ := o.CurrentSummary(st.ID())
	if snap.Facts[0].Status != session.VerificationFailed {
		t.Fatalf("expected failed status, got %s", snap.Facts[0].Status)
	}
	if verifier.calls != 1 {
		t.Fatalf("expected single attempt, got %d", verifier.calls)
	}

	// The claim is never retried on later segments.
	ingest(t, o, st.ID(), "gdp talk again")
	if verifier.calls != 1 {
		t.Fatalf("failed claim retried, calls=%d", verifier.calls)
	}
}

func scheduleCandidate(conf session.Confidence) IntentCandidate {
	return IntentCandidate{
		Type:       session.IntentSchedule,
		Confidence: conf,
		Action:     "Schedule follow-up",
		Details:    map[string]string{"date": "next friday", "time": "2pm"},
		Context:    "let's meet next friday at 2pm",
	}
}

func TestIntentDispatchAndSkip(t *testing.T) {
	cal := &stubCalendar{}
	detector := stubIntentDetector{fn: func(text string) []IntentCandidate {
		if !strings.Contains(text, "meet") {
			return nil
		}
		return []IntentCandidate{scheduleCandidate(session.ConfidenceHigh)}
	}}
	hub := broadcast.NewHub(256, "[test]")
	o := NewOrchestrator(session.NewRegistry(), hub, Collaborators{
		Summarizer: &stubSummarizer{}, Intents: detector, Calendar: cal,
	}, Options{})
	sub := hub.Subscribe()
	defer sub.Close()

	st := o.CreateSession()
	ingest(t, o, st.ID(), "let's meet next friday")

	evs := ofType(drain(sub), event.TypeIntent)
	if len(evs) != 3 {
		t.Fatalf("expected detected+dispatched+completed events, got %d", len(evs))
	}
	statuses := []session.DispatchStatus{
		evs[0].Data.(IntentEvent).Status,
		evs[1].Data.(IntentEvent).Status,
		evs[2].Data.(IntentEvent).Status,
	}
	want := []session.DispatchStatus{session.DispatchDetected, session.DispatchDispatched, session.DispatchCompleted}
	for i := range want {
		if statuses[i] != want[i] {
			t.Fatalf("event %d: expected %s, got %s", i, want[i], statuses[i])
		}
	}
	if cal.calls != 1 {
		t.Fatalf("expected one calendar call, got %d", cal.calls)
	}

	// Same request re-detected later: no second dispatch, one skip event.
	ingest(t, o, st.ID(), "so we meet friday, right")
	evs = ofType(drain(sub), event.TypeIntent)
	if len(evs) != 1 || evs[0].Data.(IntentEvent).Status != session.DispatchSkipped {
		t.Fatalf("expected single skipped event, got %+v", evs)
	}
	if cal.calls != 1 {
		t.Fatalf("duplicate intent dispatched, calls=%d", cal.calls)
	}

	snap, _ := o.CurrentSummary(st.ID())
	if len(snap.Intents) != 1 || snap.Intents[0].Status != session.DispatchCompleted {
		t.Fatalf("stored intent mutated by re-detection: %+v", snap.Intents)
	}
}

func TestLowConfidenceGatedThenUpgraded(t *testing.T) {
	cal := &stubCalendar{}
	conf := session.ConfidenceLow
	detector := stubIntentDetector{fn: func(string) []IntentCandidate {
		return []IntentCandidate{scheduleCandidate(conf)}
	}}
	o := NewOrchestrator(session.NewRegistry(), nil, Collaborators{
		Summarizer: &stubSummarizer{}, Intents: detector, Calendar: cal,
	}, Options{})

	st := o.CreateSession()
	ingest(t, o, st.ID(), "maybe meet friday?")
	if cal.calls != 0 {
		t.Fatalf("low confidence intent dispatched")
	}
	snap, _ := o.CurrentSummary(st.ID())
	if snap.Intents[0].Status != session.DispatchDetected {
		t.Fatalf("expected gated intent to stay detected, got %s", snap.Intents[0].Status)
	}

	// The same request re-detected with dispatchable confidence goes out.
	conf = session.ConfidenceHigh
	ingest(t, o, st.ID(), "yes, definitely friday 2pm")
	if cal.calls != 1 {
		t.Fatalf("expected upgrade to dispatch, calls=%d", cal.calls)
	}
	snap, _ = o.CurrentSummary(st.ID())
	if snap.Intents[0].Status != session.DispatchCompleted {
		t.Fatalf("expected completed after upgrade, got %s", snap.Intents[0].Status)
	}
}

func TestOtherIntentNeverDispatched(t *testing.T) {
	cal := &stubCalendar{}
	detector := stubIntentDetector{fn: func(string) []IntentCandidate {
		return []IntentCandidate{{Type: session.IntentOther, Confidence: session.ConfidenceHigh, Action: "take notes"}}
	}}
	o := NewOrchestrator(session.NewRegistry(), nil, Collaborators{
		Summarizer: &stubSummarizer{}, Intents: detector, Calendar: cal,
	}, Options{})

	st := o.CreateSession()
	ingest(t, o, st.ID(), "someone should take notes")
	if cal.calls != 0 {
		t.Fatalf("other intent dispatched")
	}
	snap, _ := o.CurrentSummary(st.ID())
	if snap.Intents[0].Status != session.DispatchDetected {
		t.Fatalf("expected other intent to stay detected, got %s", snap.Intents[0].Status)
	}
}

func TestEmailIntentUnconfiguredMailer(t *testing.T) {
	mailer := &stubMailer{err: fmt.Errorf("%w: Gmail", connector.ErrUnconfigured)}
	detector := stubIntentDetector{fn: func(string) []IntentCandidate {
		return []IntentCandidate{{
			Type:       session.IntentEmail,
			Confidence: session.ConfidenceHigh,
			Action:     "Email the summary",
			Details:    map[string]string{"recipients": "team@example.com"},
		}}
	}}
	o := NewOrchestrator(session.NewRegistry(), nil, Collaborators{
		Summarizer: &stubSummarizer{}, Intents: detector, Mailer: mailer,
	}, Options{})

	st := o.CreateSession()
	// Dispatch failure must not surface as an ingest error.
	ingest(t, o, st.ID(), "email the summary to the team")

	snap, _ := o.CurrentSummary(st.ID())
	in := snap.Intents[0]
	if in.Status != session.DispatchFailed {
		t.Fatalf("expected failed dispatch, got %s", in.Status)
	}
	if !strings.Contains(in.Result, "manual follow-up") {
		t.Fatalf("expected fallback note in result, got %q", in.Result)
	}
}

func TestEmailIntentUsesFallbackRecipients(t *testing.T) {
	mailer := &stubMailer{}
	detector := stubIntentDetector{fn: func(string) []IntentCandidate {
		return []IntentCandidate{{Type: session.IntentEmail, Confidence: session.ConfidenceHigh, Action: "send minutes"}}
	}}
	o := NewOrchestrator(session.NewRegistry(), nil, Collaborators{
		Summarizer: &stubSummarizer{}, Intents: detector, Mailer: mailer,
	}, Options{EmailRecipients: []string{"standing@example.com"}})

	st := o.CreateSession()
	ingest(t, o, st.ID(), "send the minutes please")

	if mailer.calls != 1 {
		t.Fatalf("expected one send, got %d", mailer.calls)
	}
	if len(mailer.last.Recipients) != 1 || mailer.last.Recipients[0] != "standing@example.com" {
		t.Fatalf("expected fallback recipients, got %v", mailer.last.Recipients)
	}
}

func TestFinalizeIdempotent(t *testing.T) {
	dir := t.TempDir()
	notes := &stubNotes{}
	sum := &stubSummarizer{}
	hub := broadcast.NewHub(256, "[test]")
	o := NewOrchestrator(session.NewRegistry(), hub, Collaborators{
		Summarizer: sum, Notes: notes,
	}, Options{SummaryThreshold: 2, StateDir: dir})

	st := o.CreateSession()
	ingest(t, o, st.ID(), "a")
	ingest(t, o, st.ID(), "b")
	ingest(t, o, st.ID(), "c") // left in buffer, flushed at finalize

	first, err := o.Finalize(context.Background(), st.ID())
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if first.Summary != "final summary" || first.Segments != 3 {
		t.Fatalf("unexpected artifact: %+v", first)
	}
	if first.NotesURL != "https://notion/p1" {
		t.Fatalf("expected notes url, got %q", first.NotesURL)
	}

	second, err := o.Finalize(context.Background(), st.ID())
	if err != nil {
		t.Fatalf("second finalize: %v", err)
	}
	if second != first {
		t.Fatal("expected cached artifact on repeat finalize")
	}
	if notes.calls != 1 {
		t.Fatalf("notes persisted %d times", notes.calls)
	}

	// Archived artifact round-trips.
	path := state.SessionArchivePath(dir, st.ID())
	loaded, err := state.LoadJSONFile[session.FinalSummary](path)
	if err != nil {
		t.Fatalf("load archive: %v", err)
	}
	if loaded.SessionID != st.ID() || loaded.Summary != "final summary" {
		t.Fatalf("unexpected archive: %+v", loaded)
	}

	// Finalized sessions reject new segments but stay readable.
	err = o.IngestSegment(context.Background(), st.ID(), session.Segment{Text: "late"})
	if !errors.Is(err, session.ErrFinalized) {
		t.Fatalf("expected ErrFinalized, got %v", err)
	}
	if _, err := o.CurrentSummary(st.ID()); err != nil {
		t.Fatalf("finalized session unreadable: %v", err)
	}
}

func TestFinalizeFallsBackToRollingSummary(t *testing.T) {
	sum := &stubSummarizer{failFinal: true}
	o := NewOrchestrator(session.NewRegistry(), nil, Collaborators{Summarizer: sum},
		Options{SummaryThreshold: 1, StateDir: t.TempDir()})

	st := o.CreateSession()
	ingest(t, o, st.ID(), "a")

	final, err := o.Finalize(context.Background(), st.ID())
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if final.Summary != "summary 1" {
		t.Fatalf("expected rolling summary fallback, got %q", final.Summary)
	}
}

func TestOutOfOrderSegmentIgnored(t *testing.T) {
	var detected int
	detector := stubFactDetector{fn: func(string) []FactCandidate {
		detected++
		return nil
	}}
	o := NewOrchestrator(session.NewRegistry(), nil, Collaborators{
		Summarizer: &stubSummarizer{}, Facts: detector, Verifier: &stubVerifier{},
	}, Options{})

	st := o.CreateSession()
	if err := o.IngestSegment(context.Background(), st.ID(), session.Segment{Text: "a", Sequence: 5}); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if err := o.IngestSegment(context.Background(), st.ID(), session.Segment{Text: "dup", Sequence: 5}); err != nil {
		t.Fatalf("duplicate ingest should ack, got %v", err)
	}

	if detected != 1 {
		t.Fatalf("rejected segment reached the pipeline, detections=%d", detected)
	}
	st.Lock()
	defer st.Unlock()
	if st.SegmentCount() != 1 {
		t.Fatalf("expected 1 stored segment, got %d", st.SegmentCount())
	}
}

func TestUnknownSession(t *testing.T) {
	o := NewOrchestrator(session.NewRegistry(), nil, Collaborators{Summarizer: &stubSummarizer{}}, Options{})

	if err := o.IngestSegment(context.Background(), "nope", session.Segment{Text: "a"}); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := o.CurrentSummary("nope"); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := o.Finalize(context.Background(), "nope"); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSessionsIsolated(t *testing.T) {
	verifier := &stubVerifier{verified: true}
	detector := stubFactDetector{fn: func(text string) []FactCandidate {
		return []FactCandidate{{Claim: text}}
	}}
	o := NewOrchestrator(session.NewRegistry(), nil, Collaborators{
		Summarizer: &stubSummarizer{}, Facts: detector, Verifier: verifier,
	}, Options{})

	a := o.CreateSession()
	b := o.CreateSession()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := a.ID()
			if i%2 == 1 {
				id = b.ID()
			}
			_ = o.IngestSegment(context.Background(), id, session.Segment{Text: fmt.Sprintf("claim %d", i)})
		}(i)
	}
	wg.Wait()

	snapA, _ := o.CurrentSummary(a.ID())
	snapB, _ := o.CurrentSummary(b.ID())
	if len(snapA.Facts) != 5 || len(snapB.Facts) != 5 {
		t.Fatalf("facts leaked across sessions: a=%d b=%d", len(snapA.Facts), len(snapB.Facts))
	}
	for _, f := range snapA.Facts {
		for _, g := range snapB.Facts {
			if f.Claim == g.Claim {
				t.Fatalf("claim %q present in both sessions", f.Claim)
			}
		}
	}
}

func TestFactCheckPostedToChat(t *testing.T) {
	chat := &stubChat{}
	detector := stubFactDetector{fn: func(string) []FactCandidate {
		return []FactCandidate{{Claim: "Revenue is up 20%"}}
	}}
	reg := session.NewRegistry()
	o := NewOrchestrator(reg, nil, Collaborators{
		Summarizer: &stubSummarizer{}, Facts: detector, Verifier: &stubVerifier{verified: true}, Chat: chat,
	}, Options{})

	st := o.CreateSession()
	reg.BindBot("bot-1", st)
	ingest(t, o, st.ID(), "revenue talk")

	if len(chat.msgs) != 1 {
		t.Fatalf("expected one chat post, got %d", len(chat.msgs))
	}
	if !strings.Contains(chat.msgs[0], "VERIFIED") || !strings.Contains(chat.msgs[0], "Revenue is up 20%") {
		t.Fatalf("unexpected chat message %q", chat.msgs[0])
	}
}

func TestFormatFactCheck(t *testing.T) {
	t.Parallel()

	failed := session.Fact{Claim: "X", Status: session.VerificationFailed, Explanation: "no search key"}
	if got := FormatFactCheck(failed); !strings.Contains(got, "Unable to verify") {
		t.Fatalf("unexpected failed message %q", got)
	}

	verified := session.Fact{
		Claim:      "Revenue is up 20%",
		Status:     session.VerificationVerified,
		Confidence: session.ConfidenceMedium,
		Sources:    []session.SourceRef{{Title: "Report", Snippet: "revenue grew", URL: "https://example.com"}},
	}
	got := FormatFactCheck(verified)
	for _, want := range []string{"VERIFIED", "medium", "Report", "https://example.com"} {
		if !strings.Contains(got, want) {
			t.Fatalf("expected %q in %q", want, got)
		}
	}
}
