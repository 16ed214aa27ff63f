package chat

import "time"

// Outbound typing timings: a keystroke starts the typing state, silence
// ends it, and long bursts re-announce on an interval so the partner's
// indicator never goes stale.
const (
	TypingInactivity = 1 * time.Second
	TypingKeepAlive  = 3 * time.Second
)

// Signal is what the heartbeat asks the caller to send.
type Signal int

const (
	SignalNone Signal = iota
	SignalStart
	SignalKeepAlive
	SignalStop
)

// TypingHeartbeat is the outbound typing state machine. It owns no
// timers; the caller feeds it keystrokes and clock ticks and sends
// whatever signal comes back.
type TypingHeartbeat struct {
	typing     bool
	lastInput  time.Time
	lastSignal time.Time
}

// NewTypingHeartbeat creates an idle heartbeat.
func NewTypingHeartbeat() *TypingHeartbeat {
	return &TypingHeartbeat{}
}

// Typing reports whether the user currently counts as typing.
func (h *TypingHeartbeat) Typing() bool { return h.typing }

// Keystroke records a qualifying (content-producing) keystroke. The
// first one after idle emits a start; the rest only refresh the
// inactivity deadline. With the partner offline nothing is ever
// announced, and an in-flight typing state is torn down.
func (h *TypingHeartbeat) Keystroke(now time.Time, partnerOnline bool) Signal {
	if !partnerOnline {
		if h.typing {
			h.typing = false
			return SignalStop
		}
		return SignalNone
	}
	h.lastInput = now
	if !h.typing {
		h.typing = true
		h.lastSignal = now
		return SignalStart
	}
	return SignalNone
}

// Tick advances the clock. One second of silence ends the typing state
// with a stop; while typing continues, a keep-alive goes out every
// three seconds.
func (h *TypingHeartbeat) Tick(now time.Time) Signal {
	if !h.typing {
		return SignalNone
	}
	if now.Sub(h.lastInput) >= TypingInactivity {
		h.typing = false
		return SignalStop
	}
	if now.Sub(h.lastSignal) >= TypingKeepAlive {
		h.lastSignal = now
		return SignalKeepAlive
	}
	return SignalNone
}

// Interrupt forces idle immediately: message sent, focus lost, or
// conversation closed. Returns a stop to send if typing was active.
func (h *TypingHeartbeat) Interrupt() Signal {
	if !h.typing {
		return SignalNone
	}
	h.typing = false
	return SignalStop
}
