// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jeranaias/iachat/internal/model"
)

// =============================================================================
// STRUCTURED EXPORTERS
// =============================================================================

// exportedSession is the shape shared by the JSON and YAML exporters.
type exportedSession struct {
	ID        string            `json:"id" yaml:"id"`
	Title     string            `json:"title" yaml:"title"`
	UpdatedAt string            `json:"updatedAt" yaml:"updated_at"`
	Messages  []exportedMessage `json:"messages" yaml:"messages"`
}

type exportedMessage struct {
	ID          string             `json:"id" yaml:"id"`
	Sender      string             `json:"sender" yaml:"sender"`
	Text        string             `json:"text" yaml:"text"`
	Timestamp   string             `json:"timestamp" yaml:"timestamp"`
	Attachments []model.Attachment `json:"attachments,omitempty" yaml:"attachments,omitempty"`
}

func toExported(s *model.ChatSession, withAttachments bool) exportedSession {
	out := exportedSession{
		ID:        s.ID,
		Title:     s.Title,
		UpdatedAt: s.UpdatedAt.Format(time.RFC3339),
		Messages:  make([]exportedMessage, 0, len(s.Messages)),
	}
	for _, m := range s.Messages {
		em := exportedMessage{
			ID:        m.ID,
			Sender:    string(m.Sender),
			Text:      m.Text,
			Timestamp: m.Timestamp.Format(time.RFC3339),
		}
		if withAttachments {
			em.Attachments = m.Attachments
		} else {
			for _, a := range m.Attachments {
				em.Attachments = append(em.Attachments, model.Attachment{Type: a.Type, MimeType: a.MimeType})
			}
		}
		out.Messages = append(out.Messages, em)
	}
	return out
}

// JSONExporter exports sessions as indented JSON.
type JSONExporter struct {
	options *Options
}

// NewJSONExporter creates a new JSON exporter.
func NewJSONExporter(opts *Options) *JSONExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &JSONExporter{options: opts}
}

// Export converts a session to JSON.
func (e *JSONExporter) Export(s *model.ChatSession) ([]byte, error) {
	if err := validate(s); err != nil {
		return nil, err
	}
	return json.MarshalIndent(toExported(s, e.options.IncludeAttachments), "", "  ")
}

// FileExtension returns the file extension for JSON.
func (e *JSONExporter) FileExtension() string {
	return ".json"
}

// MimeType returns the MIME type for JSON.
func (e *JSONExporter) MimeType() string {
	return "application/json"
}

// YAMLExporter exports sessions as YAML.
type YAMLExporter struct {
	options *Options
}

// NewYAMLExporter creates a new YAML exporter.
func NewYAMLExporter(opts *Options) *YAMLExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &YAMLExporter{options: opts}
}

// Export converts a session to YAML.
func (e *YAMLExporter) Export(s *model.ChatSession) ([]byte, error) {
	if err := validate(s); err != nil {
		return nil, err
	}
	return yaml.Marshal(toExported(s, e.options.IncludeAttachments))
}

// FileExtension returns the file extension for YAML.
func (e *YAMLExporter) FileExtension() string {
	return ".yaml"
}

// MimeType returns the MIME type for YAML.
func (e *YAMLExporter) MimeType() string {
	return "application/yaml"
}
