// ABOUTME: Escalation detector that inspects bot replies for hand-off phrases
// ABOUTME: Pure containment check over a configurable lower-cased phrase list

package escalation

import "strings"

// Detector decides whether a bot reply should escalate a conversation from
// bot-owned to waiting-for-agent.
type Detector struct {
	phrases []string
}

// NewDetector creates a detector over the given trigger phrases. Phrases are
// lower-cased once at construction.
func NewDetector(phrases []string) *Detector {
	lowered := make([]string, 0, len(phrases))
	for _, p := range phrases {
		p = strings.TrimSpace(strings.ToLower(p))
		if p != "" {
			lowered = append(lowered, p)
		}
	}
	return &Detector{phrases: lowered}
}

// Match returns the trigger phrase contained in the reply, or "" when the
// reply does not escalate. Matching is case-insensitive containment.
func (d *Detector) Match(reply string) string {
	lowered := strings.ToLower(reply)
	for _, p := range d.phrases {
		if strings.Contains(lowered, p) {
			return p
		}
	}
	return ""
}

// ShouldEscalate reports whether the reply contains any trigger phrase.
func (d *Detector) ShouldEscalate(reply string) bool {
	return d.Match(reply) != ""
}
