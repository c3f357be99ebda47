package nostr

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nstr_report/internal/identity"
)

const fixturePubKey = "79be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798"

func fixtureEvent() *Event {
	return &Event{
		PubKey:    fixturePubKey,
		CreatedAt: 1756000000,
		Kind:      KindTextNote,
		Tags:      [][]string{{"t", "p2p"}, {"t", "i2p"}},
		Content:   "NSTR - Nothing Significant to Report",
	}
}

func TestSerializeCanonical(t *testing.T) {
	want := `[0,"` + fixturePubKey + `",1756000000,1,[["t","p2p"],["t","i2p"]],"NSTR - Nothing Significant to Report"]`
	assert.Equal(t, want, string(fixtureEvent().Serialize()))
}

func TestComputeIDKnownAnswer(t *testing.T) {
	// sha256 of the canonical encoding checked in TestSerializeCanonical.
	const want = "0762202334096911f69fc23c0ce14f81aa24e202eca8f8c7504d7ec7521271eb"
	assert.Equal(t, want, fixtureEvent().ComputeID())
}

func TestSerializeEscaping(t *testing.T) {
	cases := map[string]struct {
		content string
		want    string
	}{
		"quote and backslash": {content: `say "hi" c:\tmp`, want: `"say \"hi\" c:\\tmp"`},
		"newline and tab":     {content: "a\nb\tc", want: `"a\nb\tc"`},
		"carriage return":     {content: "a\rb", want: `"a\rb"`},
		"backspace and formfeed": {
			content: "a\bb\fc",
			want:    `"a\bb\fc"`,
		},
		"html stays verbatim":  {content: `<b>&amp;</b>`, want: `"<b>&amp;</b>"`},
		"non-ascii stays utf8": {content: "café ⚡", want: `"café ⚡"`},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			e := &Event{Kind: KindTextNote, Tags: [][]string{}, Content: tc.content}
			got := string(e.Serialize())
			assert.Equal(t, `[0,"",0,1,[],`+tc.want+`]`, got)
		})
	}
}

func TestSerializeEmptyAndNilTags(t *testing.T) {
	e := fixtureEvent()
	e.Tags = nil
	asNil := string(e.Serialize())
	e.Tags = [][]string{}
	asEmpty := string(e.Serialize())
	assert.Equal(t, asEmpty, asNil)
	assert.Contains(t, asNil, ",[],")
}

func TestSignAndVerify(t *testing.T) {
	kp, err := identity.Generate()
	require.NoError(t, err)

	e := fixtureEvent()
	e.PubKey = ""
	e.CreatedAt = time.Now().Unix()
	require.NoError(t, e.Sign(kp))

	assert.Equal(t, kp.PublicKeyHex(), e.PubKey)
	assert.Len(t, e.ID, 64)
	assert.Len(t, e.Sig, 128)
	assert.Equal(t, e.ComputeID(), e.ID)
	assert.NoError(t, e.Verify())
}

func TestSignIsRepeatable(t *testing.T) {
	kp, err := identity.Generate()
	require.NoError(t, err)

	first := fixtureEvent()
	first.CreatedAt = time.Now().Unix()
	second := *first
	require.NoError(t, first.Sign(kp))
	require.NoError(t, second.Sign(kp))

	// Nonce choice is the signer's business; both outputs must verify and
	// agree on the identifier.
	assert.Equal(t, first.ID, second.ID)
	assert.NoError(t, first.Verify())
	assert.NoError(t, second.Verify())
}

func TestVerifyTamperedContent(t *testing.T) {
	kp, err := identity.Generate()
	require.NoError(t, err)

	e := fixtureEvent()
	e.CreatedAt = time.Now().Unix()
	require.NoError(t, e.Sign(kp))

	e.Content += " (edited)"
	assert.ErrorIs(t, e.Verify(), ErrIDMismatch)
}

func TestVerifyTamperedSignature(t *testing.T) {
	kp, err := identity.Generate()
	require.NoError(t, err)

	e := fixtureEvent()
	e.CreatedAt = time.Now().Unix()
	require.NoError(t, e.Sign(kp))

	last := e.Sig[len(e.Sig)-1]
	flipped := "0"
	if last == '0' {
		flipped = "1"
	}
	e.Sig = e.Sig[:len(e.Sig)-1] + flipped
	assert.ErrorIs(t, e.Verify(), ErrInvalidSignature)
}

func TestVerifyForeignKey(t *testing.T) {
	signer, err := identity.Generate()
	require.NoError(t, err)
	other, err := identity.Generate()
	require.NoError(t, err)

	e := fixtureEvent()
	e.CreatedAt = time.Now().Unix()
	require.NoError(t, e.Sign(signer))

	e.PubKey = other.PublicKeyHex()
	e.ID = e.ComputeID()
	assert.ErrorIs(t, e.Verify(), ErrInvalidSignature)
}

func TestSignRejectsFarFutureTimestamp(t *testing.T) {
	kp, err := identity.Generate()
	require.NoError(t, err)

	e := fixtureEvent()
	e.CreatedAt = time.Now().Add(time.Hour).Unix()
	err = e.Sign(kp)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "future"))

	e.CreatedAt = time.Now().Add(time.Minute).Unix()
	assert.NoError(t, e.Sign(kp))
}

func TestSignNilKeypair(t *testing.T) {
	e := fixtureEvent()
	assert.True(t, errors.Is(e.Sign(nil), identity.ErrMalformedKey))
}
