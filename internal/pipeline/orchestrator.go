// Package pipeline orchestrates transcript processing per session: the
// rolling summary window, fact detection and verification, intent dispatch,
// and the finalize step that compiles the immutable meeting artifact.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/devamsheth0806/VeriMeet/internal/broadcast"
	"github.com/devamsheth0806/VeriMeet/internal/connector"
	"github.com/devamsheth0806/VeriMeet/internal/event"
	"github.com/devamsheth0806/VeriMeet/internal/session"
	"github.com/devamsheth0806/VeriMeet/pkg/state"
)

const (
	DefaultSummaryThreshold = 5
	DefaultStageTimeout     = 30 * time.Second
)

// Collaborators are the pluggable stages and side-effect targets of the
// pipeline. Summarizer, FactDetector and IntentDetector are required;
// everything else may be nil and the matching actions degrade gracefully.
type Collaborators struct {
	Summarizer Summarizer
	Facts      FactDetector
	Verifier   FactVerifier
	Intents    IntentDetector

	Calendar Calendar
	Mailer   Mailer
	Notes    Notes
	Chat     ChatPoster
}

type Options struct {
	// SummaryThreshold is the number of buffered segments that triggers
	// resummarization.
	SummaryThreshold int
	// StageTimeout bounds each collaborator call.
	StageTimeout time.Duration
	// EmailRecipients is the fallback recipient list for email intents
	// that name no addresses.
	EmailRecipients []string
	// StateDir is the root for archived final-summary artifacts.
	StateDir  string
	LogPrefix string
}

func (o Options) withDefaults() Options {
	if o.SummaryThreshold <= 0 {
		o.SummaryThreshold = DefaultSummaryThreshold
	}
	if o.StageTimeout <= 0 {
		o.StageTimeout = DefaultStageTimeout
	}
	if o.LogPrefix == "" {
		o.LogPrefix = "[pipeline]"
	}
	return o
}

// Orchestrator drives every transcript segment through the pipeline stages
// while holding the session lock, so segments of one session are processed
// strictly one at a time. Stage failures are logged and absorbed; a segment
// is never retried and later segments are never blocked by an earlier
// stage's failure.
type Orchestrator struct {
	registry *session.Registry
	hub      *broadcast.Hub
	c        Collaborators
	opts     Options
}

func NewOrchestrator(registry *session.Registry, hub *broadcast.Hub, c Collaborators, opts Options) *Orchestrator {
	return &Orchestrator{
		registry: registry,
		hub:      hub,
		c:        c,
		opts:     opts.withDefaults(),
	}
}

func (o *Orchestrator) Registry() *session.Registry { return o.registry }

// CreateSession registers a fresh session and announces it on the event
// stream.
func (o *Orchestrator) CreateSession() *session.State {
	st := o.registry.Create()
	log.Printf("%s session %s created", o.opts.LogPrefix, st.ID())
	o.publish(event.New(event.TypeStatus, StatusEvent{SessionID: st.ID(), Status: "created"}))
	return st
}

// IngestSegment runs one transcript segment through the summary, fact and
// intent stages. It returns an error only for routing problems (unknown or
// finalized session); stage failures are logged and swallowed so the caller
// can always acknowledge receipt.
func (o *Orchestrator) IngestSegment(ctx context.Context, sessionID string, seg session.Segment) error {
	st, err := o.registry.Get(sessionID)
	if err != nil {
		return err
	}

	st.Lock()
	defer st.Unlock()

	if st.Final() != nil {
		return session.ErrFinalized
	}

	stored, ok := st.AcceptSegment(seg)
	if !ok {
		log.Printf("%s session %s dropped out-of-order segment seq=%d last=%d",
			o.opts.LogPrefix, st.ID(), seg.Sequence, st.LastSequence())
		return nil
	}

	o.publish(event.New(event.TypeTranscript, TranscriptEvent{
		SessionID: st.ID(),
		Text:      stored.Text,
		Sequence:  stored.Sequence,
	}))

	o.maybeSummarize(ctx, st)
	o.runFactStage(ctx, st, stored)
	o.runIntentStage(ctx, st, stored)

	return nil
}

// Snapshot is the live view of a session returned by CurrentSummary.
type Snapshot struct {
	SessionID string           `json:"session_id"`
	Status    session.Status   `json:"status"`
	Summary   string           `json:"summary"`
	Segments  int              `json:"segments"`
	Facts     []session.Fact   `json:"facts"`
	Intents   []session.Intent `json:"intents"`
}

func (o *Orchestrator) CurrentSummary(sessionID string) (Snapshot, error) {
	st, err := o.registry.Get(sessionID)
	if err != nil {
		return Snapshot{}, err
	}

	st.Lock()
	defer st.Unlock()

	return Snapshot{
		SessionID: st.ID(),
		Status:    st.Status(),
		Summary:   st.Summary(),
		Segments:  st.SegmentCount(),
		Facts:     st.Facts(),
		Intents:   st.Intents(),
	}, nil
}

// Finalize compiles the immutable end-of-meeting artifact: it flushes the
// summary buffer, asks for a comprehensive final summary, persists notes,
// archives the artifact and freezes the session. Finalizing a finalized
// session returns the cached artifact unchanged.
func (o *Orchestrator) Finalize(ctx context.Context, sessionID string) (*session.FinalSummary, error) {
	st, err := o.registry.Get(sessionID)
	if err != nil {
		return nil, err
	}

	st.Lock()
	defer st.Unlock()

	if final := st.Final(); final != nil {
		return final, nil
	}

	// Fold any leftover buffered segments into the rolling summary so the
	// fallback below covers the whole meeting.
	if len(st.Buffer()) > 0 {
		o.maybeSummarizeForce(ctx, st)
	}

	facts := st.Facts()
	summary := o.finalSummaryText(ctx, st, facts)

	title := fmt.Sprintf("Meeting Summary - %s", time.Now().UTC().Format("2006-01-02 15:04"))
	notesURL := o.persistNotes(ctx, title, buildNotesContent(summary, facts))

	final := &session.FinalSummary{
		SessionID: st.ID(),
		Title:     title,
		Summary:   summary,
		Facts:     facts,
		Intents:   st.Intents(),
		Segments:  st.SegmentCount(),
		NotesURL:  notesURL,
		CreatedAt: time.Now().UTC(),
	}

	path := state.SessionArchivePath(o.opts.StateDir, st.ID())
	if err := state.SaveJSONFileIndented(path, final); err != nil {
		log.Printf("%s session %s archive failed: %v", o.opts.LogPrefix, st.ID(), err)
	}

	st.SetFinal(final)
	log.Printf("%s session %s finalized, segments=%d facts=%d intents=%d",
		o.opts.LogPrefix, st.ID(), final.Segments, len(final.Facts), len(final.Intents))
	o.publish(event.New(event.TypeStatus, StatusEvent{
		SessionID: st.ID(),
		Status:    "finalized",
		Message:   "Meeting ended, final summary ready",
	}))

	return final, nil
}

// --- summary stage ---

func (o *Orchestrator) maybeSummarize(ctx context.Context, st *session.State) {
	if len(st.Buffer()) < o.opts.SummaryThreshold {
		return
	}
	o.maybeSummarizeForce(ctx, st)
}

// maybeSummarizeForce resummarizes whatever is buffered. On failure the
// buffer is retained so the segments are included in the next attempt.
func (o *Orchestrator) maybeSummarizeForce(ctx context.Context, st *session.State) {
	texts := segmentTexts(st.Buffer())

	sctx, cancel := o.stageCtx(ctx)
	summary, err := o.c.Summarizer.Summarize(sctx, st.Summary(), texts)
	cancel()
	if err != nil {
		log.Printf("%s session %s summary failed (buffer retained, %d segments): %v",
			o.opts.LogPrefix, st.ID(), len(texts), err)
		return
	}

	st.SetSummary(summary)
	st.ClearBuffer()
	o.publish(event.New(event.TypeSummary, SummaryEvent{
		SessionID: st.ID(),
		Summary:   summary,
		Segments:  st.SegmentCount(),
	}))
}

func (o *Orchestrator) finalSummaryText(ctx context.Context, st *session.State, facts []session.Fact) string {
	sctx, cancel := o.stageCtx(ctx)
	summary, err := o.c.Summarizer.FinalizeSummary(sctx, st.TranscriptTexts(), facts)
	cancel()
	if err == nil && strings.TrimSpace(summary) != "" {
		return summary
	}
	if err != nil {
		log.Printf("%s session %s final summary failed, falling back to rolling summary: %v",
			o.opts.LogPrefix, st.ID(), err)
	}
	if s := st.Summary(); s != "" {
		return s
	}
	return "No summary available."
}

// --- fact stage ---

func (o *Orchestrator) runFactStage(ctx context.Context, st *session.State, seg session.Segment) {
	if o.c.Facts == nil {
		return
	}

	fctx, cancel := o.stageCtx(ctx)
	candidates, err := o.c.Facts.DetectFacts(fctx, seg.Text)
	cancel()
	if err != nil {
		log.Printf("%s session %s fact detection failed: %v", o.opts.LogPrefix, st.ID(), err)
		return
	}

	for _, cand := range candidates {
		key := session.DedupKey(cand.Claim)
		if key == "" || st.FactByKey(key) != nil {
			continue
		}

		f := &session.Fact{
			Claim:    cand.Claim,
			Context:  cand.Context,
			Sequence: seg.Sequence,
			Status:   session.VerificationPending,
		}
		st.AddFact(key, f)
		o.publish(event.New(event.TypeFact, FactEvent{SessionID: st.ID(), Fact: *f}))

		o.verifyFact(ctx, st, f)
		o.publish(event.New(event.TypeFact, FactEvent{SessionID: st.ID(), Fact: *f}))

		o.postFactCheck(ctx, st, *f)
	}
}

// verifyFact runs the single verification attempt a claim ever gets.
func (o *Orchestrator) verifyFact(ctx context.Context, st *session.State, f *session.Fact) {
	if o.c.Verifier == nil {
		f.Status = session.VerificationFailed
		f.Explanation = "no fact verifier configured"
		return
	}

	vctx, cancel := o.stageCtx(ctx)
	res, err := o.c.Verifier.VerifyFact(vctx, f.Claim, f.Context)
	cancel()
	if err != nil {
		f.Status = session.VerificationFailed
		f.Explanation = err.Error()
		log.Printf("%s session %s verification failed for %q: %v", o.opts.LogPrefix, st.ID(), f.Claim, err)
		return
	}

	if res.Verified {
		f.Status = session.VerificationVerified
	} else {
		f.Status = session.VerificationUnverified
	}
	f.Confidence = session.ParseConfidence(res.Confidence)
	f.Explanation = res.Explanation
	f.Sources = res.Sources
}

// postFactCheck pushes the verification result into the meeting chat when a
// bot is bound. Best effort; failures only log.
func (o *Orchestrator) postFactCheck(ctx context.Context, st *session.State, f session.Fact) {
	if o.c.Chat == nil || st.BotID() == "" {
		return
	}

	cctx, cancel := o.stageCtx(ctx)
	err := o.c.Chat.SendChatMessage(cctx, st.BotID(), FormatFactCheck(f))
	cancel()
	if err != nil && !connector.IsUnconfigured(err) {
		log.Printf("%s session %s chat post failed: %v", o.opts.LogPrefix, st.ID(), err)
	}
}

// FormatFactCheck renders a verification outcome as a meeting-chat message.
func FormatFactCheck(f session.Fact) string {
	status := "NEEDS VERIFICATION"
	if f.Status == session.VerificationVerified {
		status = "VERIFIED"
	}
	if f.Status == session.VerificationFailed {
		return fmt.Sprintf("Fact Check: Unable to verify %q - %s", f.Claim, f.Explanation)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Fact Check: %s\nStatus: %s (Confidence: %s)", f.Claim, status, f.Confidence)
	if len(f.Sources) > 0 {
		top := f.Sources[0]
		snippet := top.Snippet
		if len(snippet) > 150 {
			snippet = snippet[:150] + "..."
		}
		fmt.Fprintf(&b, "\nSource: %s\n%s", top.Title, snippet)
		if top.URL != "" {
			fmt.Fprintf(&b, "\n%s", top.URL)
		}
	}
	return b.String()
}

// --- intent stage ---

func (o *Orchestrator) runIntentStage(ctx context.Context, st *session.State, seg session.Segment) {
	if o.c.Intents == nil {
		return
	}

	ictx, cancel := o.stageCtx(ctx)
	candidates, err := o.c.Intents.DetectIntents(ictx, seg.Text)
	cancel()
	if err != nil {
		log.Printf("%s session %s intent detection failed: %v", o.opts.LogPrefix, st.ID(), err)
		return
	}

	for _, cand := range candidates {
		in := &session.Intent{
			Type:       cand.Type,
			Confidence: cand.Confidence,
			Action:     cand.Action,
			Details:    cand.Details,
			Context:    cand.Context,
			Sequence:   seg.Sequence,
			Status:     session.DispatchDetected,
		}
		fp := in.Fingerprint()

		existing := st.IntentByFingerprint(fp)
		if existing == nil {
			st.AddIntent(fp, in)
			o.publish(event.New(event.TypeIntent, IntentEvent{SessionID: st.ID(), Intent: *in}))
			if o.shouldDispatch(*in) {
				o.dispatchIntent(ctx, st, in)
			}
			continue
		}

		if existing.Status == session.DispatchDetected && o.shouldDispatch(*in) {
			// The stored intent was gated (low confidence) and the same
			// request resurfaced with a dispatchable confidence.
			existing.Confidence = cand.Confidence
			o.dispatchIntent(ctx, st, existing)
			continue
		}

		// Repeated detection of a request we already acted on (or are
		// still holding). The stored intent is untouched; the event
		// stream records the skip.
		skipped := *existing
		skipped.Status = session.DispatchSkipped
		skipped.Sequence = seg.Sequence
		o.publish(event.New(event.TypeIntent, IntentEvent{SessionID: st.ID(), Intent: skipped}))
	}
}

// shouldDispatch gates auto-dispatch: only schedule and email intents at
// high or medium confidence are acted on.
func (o *Orchestrator) shouldDispatch(in session.Intent) bool {
	if in.Type != session.IntentSchedule && in.Type != session.IntentEmail {
		return false
	}
	return in.Confidence == session.ConfidenceHigh || in.Confidence == session.ConfidenceMedium
}

func (o *Orchestrator) dispatchIntent(ctx context.Context, st *session.State, in *session.Intent) {
	in.Status = session.DispatchDispatched
	o.publish(event.New(event.TypeIntent, IntentEvent{SessionID: st.ID(), Intent: *in}))

	var result string
	var err error
	switch in.Type {
	case session.IntentSchedule:
		result, err = o.dispatchSchedule(ctx, st, in)
	case session.IntentEmail:
		result, err = o.dispatchEmail(ctx, st, in)
	}

	if err != nil {
		in.Status = session.DispatchFailed
		if connector.IsUnconfigured(err) {
			in.Result = fmt.Sprintf("%v; action recorded for manual follow-up", err)
		} else {
			in.Result = err.Error()
		}
		log.Printf("%s session %s intent %s dispatch failed: %v", o.opts.LogPrefix, st.ID(), in.Type, err)
	} else {
		in.Status = session.DispatchCompleted
		in.Result = result
		log.Printf("%s session %s intent %s completed: %s", o.opts.LogPrefix, st.ID(), in.Type, result)
	}
	o.publish(event.New(event.TypeIntent, IntentEvent{SessionID: st.ID(), Intent: *in}))
}

func (o *Orchestrator) dispatchSchedule(ctx context.Context, st *session.State, in *session.Intent) (string, error) {
	if o.c.Calendar == nil {
		return "", fmt.Errorf("%w: calendar", connector.ErrUnconfigured)
	}

	req := connector.EventRequest{
		Title:       firstNonEmpty(in.Details["topic"], in.Details["title"], in.Action),
		Date:        in.Details["date"],
		Time:        in.Details["time"],
		Description: in.Context,
	}
	if d, err := strconv.Atoi(strings.TrimSpace(in.Details["duration"])); err == nil {
		req.DurationMinutes = d
	}

	cctx, cancel := o.stageCtx(ctx)
	defer cancel()
	res, err := o.c.Calendar.CreateEvent(cctx, req)
	if err != nil {
		return "", err
	}
	if res.Link != "" {
		return fmt.Sprintf("event created for %s: %s", res.Start, res.Link), nil
	}
	return fmt.Sprintf("event created for %s", res.Start), nil
}

func (o *Orchestrator) dispatchEmail(ctx context.Context, st *session.State, in *session.Intent) (string, error) {
	if o.c.Mailer == nil {
		return "", fmt.Errorf("%w: mailer", connector.ErrUnconfigured)
	}

	recipients := splitRecipients(in.Details["recipients"])
	if len(recipients) == 0 {
		recipients = o.opts.EmailRecipients
	}

	body := st.Summary()
	if body == "" {
		body = strings.Join(st.TranscriptTexts(), "\n")
	}

	cctx, cancel := o.stageCtx(ctx)
	defer cancel()
	res, err := o.c.Mailer.SendSummary(cctx, connector.EmailRequest{
		Recipients: recipients,
		Subject:    "Meeting Summary",
		Body:       body,
		Facts:      st.Facts(),
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("summary emailed to %d recipient(s), message %s", len(recipients), res.MessageID), nil
}

// --- finalize helpers ---

func (o *Orchestrator) persistNotes(ctx context.Context, title, content string) string {
	if o.c.Notes == nil {
		return ""
	}

	nctx, cancel := o.stageCtx(ctx)
	defer cancel()
	url, err := o.c.Notes.CreatePage(nctx, title, content)
	if err != nil {
		if !connector.IsUnconfigured(err) {
			log.Printf("%s notes persist failed: %v", o.opts.LogPrefix, err)
		}
		return ""
	}
	return url
}

func buildNotesContent(summary string, facts []session.Fact) string {
	var b strings.Builder
	b.WriteString(summary)
	if len(facts) > 0 {
		b.WriteString("\n\n## Verified Facts\n")
		for _, f := range facts {
			fmt.Fprintf(&b, "- %s: %s\n", f.Claim, f.Status)
		}
	}
	return b.String()
}

// --- helpers ---

func (o *Orchestrator) publish(ev event.Event) {
	if o.hub != nil {
		o.hub.Publish(ev)
	}
}

func (o *Orchestrator) stageCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, o.opts.StageTimeout)
}

func segmentTexts(segs []session.Segment) []string {
	out := make([]string, 0, len(segs))
	for _, s := range segs {
		out = append(out, s.Text)
	}
	return out
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func splitRecipients(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ';' || r == ' '
	})
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if strings.Contains(p, "@") {
			out = append(out, p)
		}
	}
	return out
}
