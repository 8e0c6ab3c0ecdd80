// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package speech

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

// fakeEngine records utterances. Each Speak blocks until released or
// cancelled.
type fakeEngine struct {
	voices []Voice

	mu      sync.Mutex
	spoken  []Utterance
	release chan struct{}
	started chan string
	fail    error
}

func newFakeEngine(voices ...Voice) *fakeEngine {
	return &fakeEngine{voices: voices, release: make(chan struct{}), started: make(chan string, 16)}
}

func (f *fakeEngine) Voices(context.Context) ([]Voice, error) {
	return f.voices, nil
}

func (f *fakeEngine) Speak(ctx context.Context, u Utterance) error {
	f.mu.Lock()
	f.spoken = append(f.spoken, u)
	fail := f.fail
	f.mu.Unlock()
	f.started <- u.Text
	if fail != nil {
		return fail
	}
	select {
	case <-f.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeEngine) utterances() []Utterance {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Utterance(nil), f.spoken...)
}

func waitStarted(t *testing.T, f *fakeEngine) string {
	t.Helper()
	select {
	case text := <-f.started:
		return text
	case <-time.After(2 * time.Second):
		t.Fatal("utterance did not start")
		return ""
	}
}

func TestPlayer_SpeakAndFinish(t *testing.T) {
	eng := newFakeEngine(Voice{ID: "en", Language: "en"}, Voice{ID: "th", Language: "th"})
	p := NewPlayer(eng, "th-TH", 150, nil)

	p.Speak("สวัสดีครับ")
	assert.Equal(t, "สวัสดีครับ", waitStarted(t, eng))
	assert.True(t, p.Speaking())

	close(eng.release)
	p.Wait()
	assert.False(t, p.Speaking(), "indicator clears on natural end")

	u := eng.utterances()
	require.Len(t, u, 1)
	assert.Equal(t, "th", u[0].Voice)
	assert.Equal(t, 150, u[0].Rate)
}

func TestPlayer_NewUtteranceCancelsCurrent(t *testing.T) {
	eng := newFakeEngine()
	p := NewPlayer(eng, "th-TH", 0, nil)

	var mu sync.Mutex
	var events []string
	p.OnChange(func(id string, speaking bool) {
		mu.Lock()
		defer mu.Unlock()
		if speaking {
			events = append(events, "start:"+id)
		} else {
			events = append(events, "stop:"+id)
		}
	})

	p.SpeakID("m1", "one")
	waitStarted(t, eng)
	p.SpeakID("m2", "two")
	waitStarted(t, eng)

	assert.Equal(t, "m2", p.SpeakingID())
	p.Stop()
	p.Wait()
	assert.False(t, p.Speaking())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"start:m1", "stop:m1", "start:m2", "stop:m2"}, events)
}

func TestPlayer_Toggle(t *testing.T) {
	eng := newFakeEngine()
	p := NewPlayer(eng, "th-TH", 0, nil)

	assert.True(t, p.Toggle("m1", "hello"))
	waitStarted(t, eng)
	assert.Equal(t, "m1", p.SpeakingID())

	assert.False(t, p.Toggle("m1", "hello"), "second press stops")
	p.Wait()
	assert.False(t, p.Speaking())

	// A different message switches playback.
	p.Toggle("m1", "hello")
	waitStarted(t, eng)
	p.Toggle("m2", "world")
	waitStarted(t, eng)
	assert.Equal(t, "m2", p.SpeakingID())
	p.Stop()
	p.Wait()
}

func TestPlayer_ErrorClearsIndicator(t *testing.T) {
	eng := newFakeEngine()
	eng.fail = errors.New("no audio device")
	p := NewPlayer(eng, "th-TH", 0, nil)

	p.Speak("x")
	waitStarted(t, eng)
	p.Wait()
	assert.False(t, p.Speaking())
}

func TestPlayer_NoEngine(t *testing.T) {
	p := NewPlayer(nil, "th-TH", 0, nil)
	assert.False(t, p.Available())

	p.Speak("x")
	assert.False(t, p.Speaking())
	assert.False(t, p.Toggle("m", "x"))
	p.Stop()
	p.Wait()
}

func TestMatchVoice(t *testing.T) {
	voices := []Voice{
		{ID: "en-us", Language: "en-US"},
		{ID: "th", Language: "th"},
		{ID: "bogus", Language: "not a tag!"},
	}
	assert.Equal(t, "th", MatchVoice(voices, language.MustParse("th-TH")))
	assert.Equal(t, "en-us", MatchVoice(voices, language.AmericanEnglish))
	assert.Equal(t, "", MatchVoice(voices, language.Japanese))
	assert.Equal(t, "", MatchVoice(nil, language.Thai))
}

func TestParseVoices(t *testing.T) {
	out := []byte(`Pty Language       Age/Gender VoiceName          File                 Other Languages
 5  af              --/M      Afrikaans          gmw/af
 5  th              --/M      Thai               sit/th
`)
	assert.Equal(t, []Voice{{ID: "af", Language: "af"}, {ID: "th", Language: "th"}}, parseVoices(out))
}

func TestNewCommandEngine_Missing(t *testing.T) {
	_, err := NewCommandEngine("")
	assert.ErrorIs(t, err, ErrEngineUnavailable)

	_, err = NewCommandEngine("definitely-not-a-tts-binary-xyz")
	assert.ErrorIs(t, err, ErrEngineUnavailable)
}
