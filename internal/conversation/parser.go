package conversation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

var (
	// ErrNotArray is returned when the export's top-level value is not a JSON array.
	ErrNotArray = errors.New("expected a JSON array at top level")

	// ErrInvalidJSON is returned when the export is not valid JSON.
	ErrInvalidJSON = errors.New("invalid JSON in export")

	// ErrMissingID is returned for a record without conversation_id or id.
	ErrMissingID = errors.New("record has no conversation id")
)

// maxStoredErrors bounds how many per-record errors are kept for reporting.
const maxStoredErrors = 10

// exportRecord is the raw shape of one conversations.json entry.
type exportRecord struct {
	ConversationID   *string         `json:"conversation_id"`
	ID               *string         `json:"id"`
	Title            *string         `json:"title"`
	CreateTime       *float64        `json:"create_time"`
	UpdateTime       *float64        `json:"update_time"`
	DefaultModelSlug *string         `json:"default_model_slug"`
	Mapping          map[string]Node `json:"mapping"`
	CurrentNode      *string         `json:"current_node"`
}

// nodeMessage is the message payload of a mapping node.
type nodeMessage struct {
	ID     string `json:"id"`
	Author struct {
		Role *string `json:"role"`
	} `json:"author"`
	Content struct {
		ContentType string            `json:"content_type"`
		Parts       []json.RawMessage `json:"parts"`
		Text        json.RawMessage   `json:"text"`
	} `json:"content"`
	CreateTime *float64 `json:"create_time"`
	Metadata   struct {
		ModelSlug *string `json:"model_slug"`
	} `json:"metadata"`
}

// ParseStats summarizes a pass over an export.
type ParseStats struct {
	Records   int          `json:"records"`
	Parsed    int          `json:"parsed"`
	Discarded int          `json:"discarded"`
	Failed    int          `json:"failed"`
	Errors    []ParseError `json:"errors,omitempty"`
}

// Skipped returns the number of records that produced no conversation.
func (s *ParseStats) Skipped() int {
	return s.Discarded + s.Failed
}

// ParseError records a per-record parse failure.
type ParseError struct {
	Index int    `json:"index"`
	Error string `json:"error"`
}

// Parser reads ChatGPT conversation exports.
type Parser struct{}

// NewParser creates a new export parser.
func NewParser() *Parser {
	return &Parser{}
}

// ParseFile reads and parses the export at path.
func (p *Parser) ParseFile(ctx context.Context, path string) (*Export, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening export: %w", err)
	}
	defer f.Close()
	return p.Parse(ctx, f)
}

// Parse reads the whole export document. The top-level value must be an
// array; records are decoded lazily by Export.Each.
func (p *Parser) Parse(ctx context.Context, r io.Reader) (*Export, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading export: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if !json.Valid(data) {
		return nil, ErrInvalidJSON
	}
	if kind := jsonKind(data); kind != "array" {
		return nil, fmt.Errorf("%w, got %s", ErrNotArray, kind)
	}

	var records []json.RawMessage
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	return &Export{records: records}, nil
}

// Export is a parsed export whose records have not been built yet.
type Export struct {
	records []json.RawMessage
	stats   ParseStats
}

// Len returns the number of raw records.
func (e *Export) Len() int {
	return len(e.records)
}

// Stats returns the counts accumulated by Each.
func (e *Export) Stats() ParseStats {
	return e.stats
}

// Each builds every record in export order and calls fn for each retained
// conversation. Records that fail to build are counted and skipped.
// An error from fn stops the pass and is returned.
func (e *Export) Each(ctx context.Context, fn func(*Conversation) error) error {
	e.stats = ParseStats{}
	for i, raw := range e.records {
		if err := ctx.Err(); err != nil {
			return err
		}
		e.stats.Records++

		conv, err := ParseRecord(raw)
		if err != nil {
			e.stats.Failed++
			if len(e.stats.Errors) < maxStoredErrors {
				e.stats.Errors = append(e.stats.Errors, ParseError{Index: i, Error: err.Error()})
			}
			continue
		}
		if conv == nil {
			e.stats.Discarded++
			continue
		}

		e.stats.Parsed++
		if err := fn(conv); err != nil {
			return err
		}
	}
	return nil
}

// ParseRecord builds a Conversation from one export record.
// A nil Conversation with a nil error means the record has nothing to keep:
// no mapping, no current node, or no retained messages.
func ParseRecord(raw json.RawMessage) (conv *Conversation, err error) {
	defer func() {
		if r := recover(); r != nil {
			conv, err = nil, fmt.Errorf("building record: %v", r)
		}
	}()

	var rec exportRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decoding record: %w", err)
	}

	id := deref(rec.ConversationID)
	if id == "" {
		id = deref(rec.ID)
	}
	if id == "" {
		return nil, ErrMissingID
	}

	leaf := deref(rec.CurrentNode)
	if len(rec.Mapping) == 0 || leaf == "" {
		return nil, nil
	}

	title := deref(rec.Title)
	if title == "" {
		title = DefaultTitle
	}

	conv = &Conversation{
		ID:               id,
		Title:            title,
		CreatedAt:        timePtr(rec.CreateTime),
		UpdatedAt:        timePtr(rec.UpdateTime),
		DefaultModelSlug: deref(rec.DefaultModelSlug),
	}

	for _, nodeID := range Linearize(rec.Mapping, leaf) {
		node := rec.Mapping[nodeID]
		msg, ok := buildMessage(nodeID, &node)
		if !ok {
			continue
		}
		msg.ConversationID = id
		msg.TurnIndex = len(conv.Messages)
		conv.Messages = append(conv.Messages, msg)
	}

	if len(conv.Messages) == 0 {
		return nil, nil
	}
	return conv, nil
}

// buildMessage extracts a retained message from a node, if any.
func buildMessage(nodeID string, node *Node) (Message, bool) {
	m := node.Message
	if m == nil {
		return Message{}, false
	}

	contentType := m.Content.ContentType
	if contentType == "" {
		contentType = ContentTypeText
	}
	if excludedContentTypes[contentType] {
		return Message{}, false
	}

	text := ExtractTextFromParts(m.Content.Parts)
	if strings.TrimSpace(text) == "" {
		text = rawString(m.Content.Text)
	}
	if strings.TrimSpace(text) == "" {
		return Message{}, false
	}

	text = CleanText(text)
	var content, code string
	if contentType == ContentTypeCode {
		code = text
	} else {
		content, code = SeparateCode(text)
	}

	id := m.ID
	if id == "" {
		id = node.ID
	}
	if id == "" {
		id = nodeID
	}

	role := RoleUnknown
	if m.Author.Role != nil {
		role = ParseRole(*m.Author.Role)
	}

	msg := Message{
		ID:          id,
		Role:        role,
		Content:     content,
		Code:        code,
		ContentType: contentType,
		ModelSlug:   deref(m.Metadata.ModelSlug),
		CreatedAt:   timePtr(m.CreateTime),
	}
	if msg.IsEmpty() {
		return Message{}, false
	}
	return msg, true
}

// rawString returns raw as a string if it is a JSON string, else "".
func rawString(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '"' {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

// jsonKind names the kind of a JSON document's top-level value.
func jsonKind(data []byte) string {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return "nothing"
	}
	switch data[0] {
	case '[':
		return "array"
	case '{':
		return "object"
	case '"':
		return "string"
	case 't', 'f':
		return "boolean"
	case 'n':
		return "null"
	default:
		return "number"
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
