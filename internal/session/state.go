package session

import (
	"sync"
	"time"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusFinalized Status = "finalized"
)

// State is the mutable processing context of one meeting session.
//
// All accessors except ID assume the caller holds the state lock. The lock is
// the session's exclusive section: the orchestrator holds it for the whole of
// a segment's processing, so two segments of the same session never
// interleave, while other sessions proceed in parallel.
type State struct {
	mu sync.Mutex

	id        string
	createdAt time.Time

	botID  string
	status Status

	log     []Segment
	lastSeq int64

	summary string
	buffer  []Segment

	facts     []*Fact
	factIndex map[string]*Fact

	intents     []*Intent
	intentIndex map[string]*Intent

	final *FinalSummary
}

func newState(id string) *State {
	return &State{
		id:          id,
		createdAt:   time.Now().UTC(),
		status:      StatusActive,
		factIndex:   map[string]*Fact{},
		intentIndex: map[string]*Intent{},
	}
}

func (s *State) Lock()   { s.mu.Lock() }
func (s *State) Unlock() { s.mu.Unlock() }

func (s *State) ID() string { return s.id }

func (s *State) Status() Status { return s.status }

func (s *State) BotID() string          { return s.botID }
func (s *State) SetBotID(botID string)  { s.botID = botID }
func (s *State) CreatedAt() time.Time   { return s.createdAt }
func (s *State) LastSequence() int64    { return s.lastSeq }
func (s *State) SegmentCount() int      { return len(s.log) }
func (s *State) Final() *FinalSummary   { return s.final }
func (s *State) Summary() string        { return s.summary }
func (s *State) SetSummary(text string) { s.summary = text }

// AcceptSegment validates the sequence number, appends the segment to the
// transcript log and the summary buffer, and returns the stored segment.
// A duplicate or out-of-order sequence is rejected (ok=false) without
// mutating state; an unnumbered segment is assigned the next sequence.
func (s *State) AcceptSegment(seg Segment) (Segment, bool) {
	if seg.Sequence == 0 {
		seg.Sequence = s.lastSeq + 1
	} else if seg.Sequence <= s.lastSeq {
		return seg, false
	}
	if seg.ReceivedAt.IsZero() {
		seg.ReceivedAt = time.Now().UTC()
	}
	s.lastSeq = seg.Sequence
	s.log = append(s.log, seg)
	s.buffer = append(s.buffer, seg)
	return seg, true
}

func (s *State) Buffer() []Segment { return s.buffer }
func (s *State) ClearBuffer()      { s.buffer = nil }

func (s *State) TranscriptTexts() []string {
	out := make([]string, 0, len(s.log))
	for _, seg := range s.log {
		out = append(out, seg.Text)
	}
	return out
}

func (s *State) FactByKey(key string) *Fact { return s.factIndex[key] }

func (s *State) AddFact(key string, f *Fact) {
	s.facts = append(s.facts, f)
	s.factIndex[key] = f
}

// Facts returns a snapshot of all facts in detection order.
func (s *State) Facts() []Fact {
	out := make([]Fact, 0, len(s.facts))
	for _, f := range s.facts {
		out = append(out, *f)
	}
	return out
}

func (s *State) IntentByFingerprint(fp string) *Intent { return s.intentIndex[fp] }

func (s *State) AddIntent(fp string, in *Intent) {
	s.intents = append(s.intents, in)
	s.intentIndex[fp] = in
}

// Intents returns a snapshot of all intents in detection order.
func (s *State) Intents() []Intent {
	out := make([]Intent, 0, len(s.intents))
	for _, in := range s.intents {
		out = append(out, *in)
	}
	return out
}

// SetFinal installs the compiled artifact and transitions the session to
// Finalized. The transition happens exactly once; later calls are ignored.
func (s *State) SetFinal(fs *FinalSummary) {
	if s.final != nil {
		return
	}
	s.final = fs
	s.status = StatusFinalized
}
