// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package media turns files and capture devices into message attachments.
package media

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/jeranaias/iachat/internal/model"
)

// =============================================================================
// ERRORS
// =============================================================================

// ErrMediaAccess is wrapped by every capture failure.
var ErrMediaAccess = errors.New("media access failed")

// ErrUnsupportedType is returned for files that are neither image nor audio.
var ErrUnsupportedType = errors.New("unsupported attachment type")

// ErrTooLarge is returned for files over MaxFileBytes.
var ErrTooLarge = errors.New("attachment too large")

// Device names a capture source.
type Device string

const (
	Camera     Device = "camera"
	Microphone Device = "microphone"
)

// AccessError reports a device that could not be used.
type AccessError struct {
	Device Device
	Err    error
}

func (e *AccessError) Error() string {
	return fmt.Sprintf("%s: %v", e.Device, e.Err)
}

func (e *AccessError) Unwrap() []error {
	return []error{ErrMediaAccess, e.Err}
}

// UserMessage is the alert text shown for the failure.
func (e *AccessError) UserMessage() string {
	if e.Device == Microphone {
		return "ไม่สามารถเข้าถึงไมโครโฟนได้"
	}
	return "ไม่สามารถเข้าถึงกล้องได้ กรุณาตรวจสอบสิทธิ์"
}

// =============================================================================
// FILES
// =============================================================================

// MaxFileBytes bounds a single attachment; larger payloads are rejected
// by the backend's inline-data limit anyway.
const MaxFileBytes = 20 << 20

// FromFile reads an image or audio file into an attachment.
func FromFile(path string) (model.Attachment, error) {
	info, err := os.Stat(path)
	if err != nil {
		return model.Attachment{}, err
	}
	if info.Size() > MaxFileBytes {
		return model.Attachment{}, fmt.Errorf("%w: %s is %d bytes", ErrTooLarge, filepath.Base(path), info.Size())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return model.Attachment{}, err
	}
	return FromBytes(data, filepath.Ext(path))
}

// FromBytes builds an attachment from raw bytes. ext, when given, is used
// if content sniffing is inconclusive.
func FromBytes(data []byte, ext string) (model.Attachment, error) {
	mimeType := DetectMIME(data, ext)
	encoded := base64.StdEncoding.EncodeToString(data)
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return model.NewImageAttachment(mimeType, encoded), nil
	case strings.HasPrefix(mimeType, "audio/"):
		return model.NewAudioAttachment(mimeType, encoded), nil
	default:
		return model.Attachment{}, fmt.Errorf("%w: %s", ErrUnsupportedType, mimeType)
	}
}

// DetectMIME sniffs the content type of data, falling back to the
// extension for formats the sniffer does not know.
func DetectMIME(data []byte, ext string) string {
	sniffed := http.DetectContentType(data)
	if i := strings.IndexByte(sniffed, ';'); i >= 0 {
		sniffed = sniffed[:i]
	}
	// webm audio is reported as video/webm.
	if sniffed == "video/webm" && strings.EqualFold(ext, ".webm") {
		return "audio/webm"
	}
	if sniffed != "application/octet-stream" && sniffed != "text/plain" {
		return sniffed
	}
	if byExt := mime.TypeByExtension(strings.ToLower(ext)); byExt != "" {
		if i := strings.IndexByte(byExt, ';'); i >= 0 {
			byExt = byExt[:i]
		}
		return byExt
	}
	return sniffed
}

// =============================================================================
// CAPTURE
// =============================================================================

// Capturer runs external commands that write a capture to stdout.
type Capturer struct {
	CameraCommand     string
	MicrophoneCommand string
}

// CaptureCamera takes one still picture and returns it as base64 JPEG.
func (c *Capturer) CaptureCamera(ctx context.Context) (string, error) {
	data, err := run(ctx, Camera, c.CameraCommand)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// RecordAudio records from the microphone until the command exits or ctx
// is cancelled, and returns an audio/webm attachment.
func (c *Capturer) RecordAudio(ctx context.Context) (model.Attachment, error) {
	data, err := run(ctx, Microphone, c.MicrophoneCommand)
	if err != nil {
		return model.Attachment{}, err
	}
	return model.NewAudioAttachment("audio/webm", base64.StdEncoding.EncodeToString(data)), nil
}

func run(ctx context.Context, dev Device, command string) ([]byte, error) {
	args := strings.Fields(command)
	if len(args) == 0 {
		return nil, &AccessError{Device: dev, Err: errors.New("no capture command configured")}
	}
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			err = fmt.Errorf("%w: %s", err, msg)
		}
		return nil, &AccessError{Device: dev, Err: err}
	}
	if stdout.Len() == 0 {
		return nil, &AccessError{Device: dev, Err: errors.New("capture produced no data")}
	}
	return stdout.Bytes(), nil
}
