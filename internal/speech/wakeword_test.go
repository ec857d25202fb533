package speech

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectWakeWord(t *testing.T) {
	tests := []struct {
		name       string
		transcript string
		wakeWord   string
		want       bool
	}{
		{
			name:       "plain occurrence",
			transcript: "asistente qué hora es",
			wakeWord:   "asistente",
			want:       true,
		},
		{
			name:       "case and spacing folded",
			transcript: "  Asistente QUÉ hora es ",
			wakeWord:   "Asistente",
			want:       true,
		},
		{
			name:       "punctuation on the token edges",
			transcript: "¿asistente, qué hora es?",
			wakeWord:   "asistente",
			want:       true,
		},
		{
			name:       "mid sentence",
			transcript: "oye asistente dime algo",
			wakeWord:   "asistente",
			want:       true,
		},
		{
			name:       "substring is not a word match",
			transcript: "los asistentes llegaron tarde",
			wakeWord:   "asistente",
			want:       false,
		},
		{
			name:       "multi word wake word as a run",
			transcript: "hola asistente voz dime la fecha",
			wakeWord:   "asistente voz",
			want:       true,
		},
		{
			name:       "multi word wake word split apart",
			transcript: "asistente dime voz alta",
			wakeWord:   "asistente voz",
			want:       false,
		},
		{
			name:       "absent",
			transcript: "qué hora es",
			wakeWord:   "asistente",
			want:       false,
		},
		{
			name:       "empty wake word never matches",
			transcript: "asistente hola",
			wakeWord:   "",
			want:       false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectWakeWord(tt.transcript, tt.wakeWord))
		})
	}
}

func TestRemoveWakeWord(t *testing.T) {
	tests := []struct {
		name       string
		transcript string
		wakeWord   string
		want       string
	}{
		{
			name:       "leading wake word",
			transcript: "asistente qué hora es",
			wakeWord:   "asistente",
			want:       "qué hora es",
		},
		{
			name:       "every occurrence removed",
			transcript: "asistente dime asistente la hora",
			wakeWord:   "asistente",
			want:       "dime la hora",
		},
		{
			name:       "only the wake word leaves nothing",
			transcript: "Asistente",
			wakeWord:   "asistente",
			want:       "",
		},
		{
			name:       "multi word wake word",
			transcript: "asistente voz cuánto es dos más dos",
			wakeWord:   "asistente voz",
			want:       "cuánto es dos más dos",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RemoveWakeWord(tt.transcript, tt.wakeWord))
		})
	}
}

func TestExtractQuery(t *testing.T) {
	query, ok := ExtractQuery("asistente qué tiempo hace", "asistente")
	assert.True(t, ok)
	assert.Equal(t, "qué tiempo hace", query)

	// Without the wake word nothing is forwarded.
	_, ok = ExtractQuery("qué tiempo hace", "asistente")
	assert.False(t, ok)

	// The wake word alone carries no query.
	_, ok = ExtractQuery("asistente", "asistente")
	assert.False(t, ok)
}
