package model

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Kind determines how a Message payload is interpreted.
type Kind int

const (
	KindText Kind = iota
	KindClientInvocation
	KindConnectionEvent
)

var kindNames = [...]string{
	KindText:             "Text",
	KindClientInvocation: "ClientInvocation",
	KindConnectionEvent:  "ConnectionEvent",
}

func (k Kind) String() string {
	if k.Valid() {
		return kindNames[k]
	}
	return "Kind(" + strconv.Itoa(int(k)) + ")"
}

// Valid reports whether k is one of the defined kinds.
func (k Kind) Valid() bool {
	return k >= KindText && k <= KindConnectionEvent
}

// ParseKind converts a kind name to a Kind.
func ParseKind(s string) (Kind, error) {
	for i, name := range kindNames {
		if name == s {
			return Kind(i), nil
		}
	}
	return 0, fmt.Errorf("unknown message kind %q", s)
}

// MarshalJSON encodes the kind by name.
func (k Kind) MarshalJSON() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("marshal kind: invalid value %d", int(k))
	}
	return json.Marshal(kindNames[k])
}

// UnmarshalJSON accepts the kind name or its ordinal. Older servers emit
// the ordinal form.
func (k *Kind) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		parsed, err := ParseKind(name)
		if err != nil {
			return err
		}
		*k = parsed
		return nil
	}

	var ordinal int
	if err := json.Unmarshal(data, &ordinal); err != nil {
		return fmt.Errorf("unmarshal kind: %w", err)
	}
	if !Kind(ordinal).Valid() {
		return fmt.Errorf("unknown message kind %d", ordinal)
	}
	*k = Kind(ordinal)
	return nil
}

// Message is a single server-to-client envelope.
type Message struct {
	Kind    Kind   `json:"kind"`
	Payload string `json:"payload"`
}

// InvocationDescriptor names a client method and its arguments.
type InvocationDescriptor struct {
	MethodName string `json:"methodName"`
	Arguments  []any  `json:"arguments"`
}

// LaunchArg is the key/value passed back when a rendered notification is activated.
type LaunchArg struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Notification is a renderable alert carried in a Text payload.
type Notification struct {
	Title   string    `json:"title"`
	Content string    `json:"content"`
	Image   string    `json:"image,omitempty"`
	Logo    string    `json:"logo,omitempty"`
	Launch  LaunchArg `json:"launch"`
	Tag     string    `json:"tag,omitempty"`
	Group   string    `json:"group,omitempty"`
}
