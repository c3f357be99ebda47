package nostr

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventFrameRoundTrip(t *testing.T) {
	e := fixtureEvent()
	e.ID = "00ff"
	e.Sig = "aabb"
	e.Content = "plain <b>html</b> & more"

	frame, err := EventFrame(e)
	require.NoError(t, err)
	assert.False(t, frame[len(frame)-1] == '\n')
	assert.Contains(t, string(frame), "<b>html</b> &")

	label, fields, err := DecodeFrame(frame)
	require.NoError(t, err)
	assert.Equal(t, LabelEvent, label)
	require.Len(t, fields, 1)

	var got Event
	require.NoError(t, json.Unmarshal(fields[0], &got))
	assert.Equal(t, *e, got)
}

func TestDecodeFrameErrors(t *testing.T) {
	cases := map[string]string{
		"not json":         `{"EVENT"`,
		"empty array":      `[]`,
		"non-string label": `[1,"x"]`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, _, err := DecodeFrame([]byte(raw))
			assert.Error(t, err)
		})
	}
}

func TestDecodeFrameNotice(t *testing.T) {
	label, fields, err := DecodeFrame([]byte(`["NOTICE","rate limited"]`))
	require.NoError(t, err)
	assert.Equal(t, LabelNotice, label)
	require.Len(t, fields, 1)
}

func TestDecodeOK(t *testing.T) {
	cases := map[string]struct {
		raw  string
		want OK
	}{
		"accepted": {
			raw:  `["OK","abcd",true,""]`,
			want: OK{EventID: "abcd", Accepted: true},
		},
		"rejected with reason": {
			raw:  `["OK","abcd",false,"blocked: spam"]`,
			want: OK{EventID: "abcd", Accepted: false, Reason: "blocked: spam"},
		},
		"reason omitted": {
			raw:  `["OK","abcd",true]`,
			want: OK{EventID: "abcd", Accepted: true},
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			label, fields, err := DecodeFrame([]byte(tc.raw))
			require.NoError(t, err)
			require.Equal(t, LabelOK, label)

			ok, err := DecodeOK(fields)
			require.NoError(t, err)
			assert.Equal(t, tc.want, *ok)
		})
	}
}

func TestDecodeOKTooFewFields(t *testing.T) {
	_, err := DecodeOK([]json.RawMessage{json.RawMessage(`"abcd"`)})
	assert.Error(t, err)
}
