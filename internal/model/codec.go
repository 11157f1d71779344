package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"golang.org/x/text/encoding/unicode"
)

// Errors
var (
	ErrEmptyFrame      = errors.New("empty frame")
	ErrInvalidEnvelope = errors.New("invalid message envelope")
	ErrMissingMethod   = errors.New("invocation without method name")
)

const envelopeSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["kind", "payload"],
	"properties": {
		"kind": {"enum": ["Text", "ClientInvocation", "ConnectionEvent", 0, 1, 2]},
		"payload": {"type": "string"}
	}
}`

var envelope = mustSchema(envelopeSchema)

func mustSchema(src string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic(fmt.Sprintf("compile envelope schema: %v", err))
	}
	return schema
}

// DecodeFrame converts raw frame bytes to text. A leading byte order mark is
// dropped and invalid sequences become U+FFFD.
func DecodeFrame(data []byte) (string, error) {
	if len(data) == 0 {
		return "", ErrEmptyFrame
	}
	text, err := unicode.UTF8BOM.NewDecoder().Bytes(data)
	if err != nil {
		return "", fmt.Errorf("decode utf-8 frame: %w", err)
	}
	return string(text), nil
}

// EncodeMessage serializes a message envelope.
func EncodeMessage(msg Message) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	return data, nil
}

// DecodeMessage validates and parses a message envelope.
func DecodeMessage(data []byte) (Message, error) {
	result, err := envelope.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrInvalidEnvelope, err)
	}
	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			details = append(details, e.String())
		}
		return Message{}, fmt.Errorf("%w: %s", ErrInvalidEnvelope, strings.Join(details, "; "))
	}

	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrInvalidEnvelope, err)
	}
	return msg, nil
}

// DecodeInvocation parses a ClientInvocation payload.
func DecodeInvocation(payload string) (InvocationDescriptor, error) {
	var desc InvocationDescriptor
	if err := json.Unmarshal([]byte(payload), &desc); err != nil {
		return InvocationDescriptor{}, fmt.Errorf("decode invocation: %w", err)
	}
	if desc.MethodName == "" {
		return InvocationDescriptor{}, ErrMissingMethod
	}
	return desc, nil
}

// ParseNotification extracts a Notification from a payload that looks like a
// JSON object. It reports false for anything else, including objects with
// neither a title nor content.
func ParseNotification(payload string) (Notification, bool) {
	trimmed := strings.TrimSpace(payload)
	if !strings.HasPrefix(trimmed, "{") {
		return Notification{}, false
	}

	var n Notification
	if err := json.Unmarshal([]byte(trimmed), &n); err != nil {
		return Notification{}, false
	}
	if n.Title == "" && n.Content == "" {
		return Notification{}, false
	}
	return n, true
}
