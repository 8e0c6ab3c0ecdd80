// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package speech

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// CommandEngine drives an espeak-compatible program: "--voices" lists
// voices, "-v" selects one, "-s" sets the rate and "--stdin" reads text.
type CommandEngine struct {
	path string
}

// NewCommandEngine resolves command on PATH.
func NewCommandEngine(command string) (*CommandEngine, error) {
	if command == "" {
		return nil, ErrEngineUnavailable
	}
	path, err := exec.LookPath(command)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEngineUnavailable, err)
	}
	return &CommandEngine{path: path}, nil
}

// Voices implements Engine.
func (e *CommandEngine) Voices(ctx context.Context) ([]Voice, error) {
	out, err := exec.CommandContext(ctx, e.path, "--voices").Output()
	if err != nil {
		return nil, fmt.Errorf("list voices: %w", err)
	}
	return parseVoices(out), nil
}

// Speak implements Engine.
func (e *CommandEngine) Speak(ctx context.Context, u Utterance) error {
	args := []string{"--stdin"}
	if u.Voice != "" {
		args = append(args, "-v", u.Voice)
	}
	if u.Rate > 0 {
		args = append(args, "-s", strconv.Itoa(u.Rate))
	}
	cmd := exec.CommandContext(ctx, e.path, args...)
	cmd.Stdin = strings.NewReader(u.Text)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%w: %s", err, msg)
		}
		return err
	}
	return nil
}

// parseVoices reads the table printed by "espeak-ng --voices":
//
//	Pty Language       Age/Gender VoiceName          File                 Other Languages
//	 5  th              --/M      Thai               sit/th
func parseVoices(out []byte) []Voice {
	var voices []Voice
	sc := bufio.NewScanner(bytes.NewReader(out))
	header := true
	for sc.Scan() {
		if header {
			header = false
			continue
		}
		fields := strings.Fields(sc.Text())
		if len(fields) < 4 {
			continue
		}
		voices = append(voices, Voice{ID: fields[1], Language: fields[1]})
	}
	return voices
}
