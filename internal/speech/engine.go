package speech

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"go.uber.org/zap"
)

// execSynthesisEngine speaks through a local TTS binary.
type execSynthesisEngine struct {
	name string
}

// baseWordsPerMinute is the espeak speed that Rate multiplies.
const baseWordsPerMinute = 175

func (e *execSynthesisEngine) Speak(ctx context.Context, u Utterance) error {
	rate := u.Rate
	if rate <= 0 {
		rate = 1.0
	}

	var args []string
	switch e.name {
	case "say":
		args = []string{"-r", fmt.Sprintf("%d", int(baseWordsPerMinute*rate))}
		if u.Voice != "" {
			args = append(args, "-v", u.Voice)
		}
	default: // espeak / espeak-ng
		voice := u.Voice
		if voice == "" {
			voice = "es"
		}
		args = []string{"-v", voice, "-s", fmt.Sprintf("%d", int(baseWordsPerMinute*rate))}
	}
	args = append(args, u.Text)

	err := exec.CommandContext(ctx, e.name, args...).Run()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// DetectSynthesisEngine finds a usable TTS engine: the configured command
// when set, otherwise the first of espeak-ng/espeak/say on PATH. Returns nil
// when none is available.
func DetectSynthesisEngine(command string, log *zap.Logger) SynthesisEngine {
	if log == nil {
		log = zap.NewNop()
	}
	candidates := []string{"espeak-ng", "espeak", "say"}
	if command != "" {
		candidates = []string{command}
	}
	for _, name := range candidates {
		if path, err := exec.LookPath(name); err == nil {
			log.Info("synthesis engine found", zap.String("engine", path))
			return &execSynthesisEngine{name: name}
		}
	}
	log.Info("no synthesis engine found, speech output disabled")
	return nil
}

// execRecognitionEngine captures one transcript by running a local
// speech-to-text command that prints the transcript on stdout.
type execRecognitionEngine struct {
	name string
	args []string
}

func (e *execRecognitionEngine) Listen(ctx context.Context) (string, error) {
	out, err := exec.CommandContext(ctx, e.name, e.args...).Output()
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	if err != nil {
		return "", fmt.Errorf("recognition command: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}

// DetectRecognitionEngine builds a recognition engine from the configured
// listen command. Recognition has no safe default; an empty command disables
// it.
func DetectRecognitionEngine(command string, log *zap.Logger) RecognitionEngine {
	if log == nil {
		log = zap.NewNop()
	}
	fields := strings.Fields(command)
	if len(fields) == 0 {
		log.Info("no recognition command configured, voice input disabled")
		return nil
	}
	if _, err := exec.LookPath(fields[0]); err != nil {
		log.Warn("recognition command not found, voice input disabled",
			zap.String("command", fields[0]))
		return nil
	}
	return &execRecognitionEngine{name: fields[0], args: fields[1:]}
}
