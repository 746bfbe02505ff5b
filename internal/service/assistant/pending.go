package assistant

import "time"

// PendingTTL bounds how long a half-finished event command waits for its
// follow-up before the conversation starts over.
const PendingTTL = 5 * time.Minute

// awaiting tags which slot the next utterance is expected to fill.
type awaiting int

const (
	awaitNone awaiting = iota
	awaitTitle
	awaitTime
)

// pendingIntent is the single slot of multi-turn state: a partially filled
// event draft plus the slot being awaited. There is never a stack of these;
// a new recognized command replaces whatever was pending.
type pendingIntent struct {
	draft EventDraft
	await awaiting
	setAt time.Time
}

func (p *pendingIntent) expired(now time.Time) bool {
	return now.Sub(p.setAt) > PendingTTL
}
