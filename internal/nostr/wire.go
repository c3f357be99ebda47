package nostr

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Frame labels exchanged with a relay during publishing.
const (
	LabelEvent  = "EVENT"
	LabelOK     = "OK"
	LabelNotice = "NOTICE"
)

// OK is a relay's structured response to a submitted event.
type OK struct {
	EventID  string
	Accepted bool
	Reason   string
}

// EventFrame encodes the client ["EVENT", <event>] frame. HTML escaping is
// disabled so the transport bytes match the canonical form for plain bodies.
func EventFrame(e *Event) ([]byte, error) {
	var b bytes.Buffer
	enc := json.NewEncoder(&b)
	enc.SetEscapeHTML(false)
	if err := enc.Encode([]any{LabelEvent, e}); err != nil {
		return nil, fmt.Errorf("encode event frame: %w", err)
	}
	return bytes.TrimRight(b.Bytes(), "\n"), nil
}

// DecodeFrame splits an inbound relay message into its label and remaining
// fields. Unknown labels are the caller's concern; relays send frames we
// never asked for and those must not break the read loop.
func DecodeFrame(data []byte) (string, []json.RawMessage, error) {
	var arr []json.RawMessage
	if err := json.Unmarshal(data, &arr); err != nil {
		return "", nil, fmt.Errorf("decode frame: %w", err)
	}
	if len(arr) == 0 {
		return "", nil, fmt.Errorf("decode frame: empty array")
	}
	var label string
	if err := json.Unmarshal(arr[0], &label); err != nil {
		return "", nil, fmt.Errorf("decode frame label: %w", err)
	}
	return label, arr[1:], nil
}

// DecodeOK parses the fields of an ["OK", <id>, <accepted>, <reason>] frame.
// The reason is optional.
func DecodeOK(fields []json.RawMessage) (*OK, error) {
	if len(fields) < 2 {
		return nil, fmt.Errorf("decode ok: %d fields, want at least 2", len(fields))
	}
	var ok OK
	if err := json.Unmarshal(fields[0], &ok.EventID); err != nil {
		return nil, fmt.Errorf("decode ok event id: %w", err)
	}
	if err := json.Unmarshal(fields[1], &ok.Accepted); err != nil {
		return nil, fmt.Errorf("decode ok flag: %w", err)
	}
	if len(fields) > 2 {
		if err := json.Unmarshal(fields[2], &ok.Reason); err != nil {
			return nil, fmt.Errorf("decode ok reason: %w", err)
		}
	}
	return &ok, nil
}
