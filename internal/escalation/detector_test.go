// ABOUTME: Tests for the escalation detector
// ABOUTME: Covers case-insensitive containment and empty phrase handling

package escalation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetector_Match(t *testing.T) {
	d := NewDetector([]string{"hablar con un agente", "No puedo ayudarte"})

	assert.Equal(t, "hablar con un agente", d.Match("Quiero HABLAR con un AGENTE por favor"))
	assert.Equal(t, "no puedo ayudarte", d.Match("Lo siento, no puedo ayudarte con eso."))
	assert.Equal(t, "", d.Match("¿En qué más puedo ayudarte?"))
}

func TestDetector_ShouldEscalate(t *testing.T) {
	d := NewDetector([]string{"transferir con un agente"})

	assert.True(t, d.ShouldEscalate("Voy a transferir con un agente humano."))
	assert.False(t, d.ShouldEscalate("Tu pedido está en camino."))
}

func TestDetector_IgnoresEmptyPhrases(t *testing.T) {
	d := NewDetector([]string{"", "  ", "ayuda humana"})

	// An empty phrase would match everything via containment; it must be dropped.
	assert.False(t, d.ShouldEscalate("hola"))
	assert.True(t, d.ShouldEscalate("necesito AYUDA humana"))
}

func TestDetector_NoPhrases(t *testing.T) {
	d := NewDetector(nil)
	assert.False(t, d.ShouldEscalate("hablar con un agente"))
}
