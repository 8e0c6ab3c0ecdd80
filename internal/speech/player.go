// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package speech plays text aloud through a text-to-speech engine.
//
// A Player holds at most one utterance at a time: starting a new one
// cancels the current one.
package speech

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/text/language"

	"github.com/jeranaias/iachat/internal/logging"
)

// =============================================================================
// ENGINE
// =============================================================================

// Voice is an installed synthesis voice.
type Voice struct {
	// ID is what the engine expects to select the voice.
	ID string
	// Language is a BCP 47 tag such as "th" or "en-US".
	Language string
}

// Utterance is one request to the engine.
type Utterance struct {
	Text string
	// Voice is a Voice.ID, or empty for the engine default.
	Voice string
	// Rate in words per minute, or 0 for the engine default.
	Rate int
}

// Engine synthesizes speech.
type Engine interface {
	Voices(ctx context.Context) ([]Voice, error)

	// Speak blocks until the utterance finishes or ctx is cancelled.
	Speak(ctx context.Context, u Utterance) error
}

// ErrEngineUnavailable means no TTS engine could be found.
var ErrEngineUnavailable = errors.New("speech engine unavailable")

// =============================================================================
// PLAYER
// =============================================================================

// Player owns the single active utterance.
type Player struct {
	engine Engine
	locale language.Tag
	rate   int
	log    logging.Logger

	voiceOnce sync.Once
	voice     string

	mu       sync.Mutex
	cancel   context.CancelFunc
	current  string // id of the playing utterance
	gen      uint64
	onChange func(id string, speaking bool)
	wg       sync.WaitGroup
}

// NewPlayer creates a player. A nil engine disables playback.
func NewPlayer(engine Engine, locale string, rate int, log logging.Logger) *Player {
	if log == nil {
		log = logging.Nop()
	}
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.Thai
	}
	return &Player{engine: engine, locale: tag, rate: rate, log: log.With("component", "speech")}
}

// Available reports whether an engine is configured.
func (p *Player) Available() bool {
	return p.engine != nil
}

// OnChange registers fn to run whenever playback starts or stops. It is
// called without the player's lock held.
func (p *Player) OnChange(fn func(id string, speaking bool)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onChange = fn
}

// Speak cancels any current utterance and reads text aloud.
func (p *Player) Speak(text string) {
	p.SpeakID("", text)
}

// SpeakID is Speak with an identifier reported by SpeakingID, so callers
// can show which message is playing.
func (p *Player) SpeakID(id, text string) {
	if p.engine == nil {
		p.log.Debug(context.Background(), "playback disabled", "reason", ErrEngineUnavailable)
		return
	}
	if text == "" {
		p.Stop()
		return
	}

	ctx, cancel := context.WithCancel(context.Background())

	p.mu.Lock()
	stopped := p.stopLocked()
	p.gen++
	gen := p.gen
	p.cancel = cancel
	p.current = id
	notify := p.onChange
	p.mu.Unlock()

	if notify != nil {
		if stopped != nil {
			notify(*stopped, false)
		}
		notify(id, true)
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		u := Utterance{Text: text, Voice: p.selectVoice(), Rate: p.rate}
		err := p.engine.Speak(ctx, u)
		if err != nil && ctx.Err() == nil {
			p.log.Warn(ctx, "playback failed", "error", err)
		}
		p.finish(gen)
	}()
}

// Toggle stops playback if id is the message playing; otherwise it starts
// reading text. It reports whether id is now speaking.
func (p *Player) Toggle(id, text string) bool {
	p.mu.Lock()
	playing := p.cancel != nil && p.current == id
	p.mu.Unlock()

	if playing {
		p.Stop()
		return false
	}
	p.SpeakID(id, text)
	return p.engine != nil && text != ""
}

// Stop cancels the current utterance, if any.
func (p *Player) Stop() {
	p.mu.Lock()
	stopped := p.stopLocked()
	notify := p.onChange
	p.mu.Unlock()

	if stopped != nil && notify != nil {
		notify(*stopped, false)
	}
}

// Speaking reports whether an utterance is in progress.
func (p *Player) Speaking() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel != nil
}

// SpeakingID returns the id passed to SpeakID for the current utterance.
func (p *Player) SpeakingID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel == nil {
		return ""
	}
	return p.current
}

// Wait blocks until every started utterance has ended.
func (p *Player) Wait() {
	p.wg.Wait()
}

// stopLocked cancels the current utterance and returns its id, or nil when
// nothing was playing. Caller holds p.mu.
func (p *Player) stopLocked() *string {
	if p.cancel == nil {
		return nil
	}
	p.cancel()
	id := p.current
	p.cancel = nil
	p.current = ""
	return &id
}

// finish clears state after an utterance ends on its own. A newer
// utterance is left alone.
func (p *Player) finish(gen uint64) {
	p.mu.Lock()
	if gen != p.gen || p.cancel == nil {
		p.mu.Unlock()
		return
	}
	p.cancel()
	id := p.current
	p.cancel = nil
	p.current = ""
	notify := p.onChange
	p.mu.Unlock()

	if notify != nil {
		notify(id, false)
	}
}

// selectVoice picks the installed voice closest to the locale once, and
// falls back to the engine default when nothing matches.
func (p *Player) selectVoice() string {
	p.voiceOnce.Do(func() {
		ctx := context.Background()
		voices, err := p.engine.Voices(ctx)
		if err != nil {
			p.log.Warn(ctx, "list voices", "error", err)
			return
		}
		p.voice = MatchVoice(voices, p.locale)
		p.log.Debug(ctx, "voice selected", "locale", p.locale.String(), "voice", p.voice)
	})
	return p.voice
}

// MatchVoice returns the ID of the voice best matching want, or "" if no
// voice has at least a high-confidence match.
func MatchVoice(voices []Voice, want language.Tag) string {
	var tags []language.Tag
	var ids []string
	for _, v := range voices {
		tag, err := language.Parse(v.Language)
		if err != nil {
			continue
		}
		tags = append(tags, tag)
		ids = append(ids, v.ID)
	}
	if len(tags) == 0 {
		return ""
	}
	_, idx, conf := language.NewMatcher(tags).Match(want)
	if conf < language.High {
		return ""
	}
	return ids[idx]
}
