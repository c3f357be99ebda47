// Package nostr implements the subset of the relay wire protocol needed to
// publish one signed text note: canonical event encoding, BIP-340 signing
// and verification, and the EVENT/OK client frames.
package nostr

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/btcsuite/btcd/btcec/v2/schnorr"

	"nstr_report/internal/identity"
)

// KindTextNote is the only event kind this bot publishes.
const KindTextNote = 1

// maxClockSkew bounds how far in the future an event timestamp may sit
// relative to the signer's clock.
const maxClockSkew = 5 * time.Minute

var (
	ErrIDMismatch       = errors.New("event id does not match canonical encoding")
	ErrInvalidSignature = errors.New("invalid event signature")
)

// Event is one protocol event. Fields and their order in the canonical
// encoding are fixed by the protocol; none of them may depend on map
// iteration order.
type Event struct {
	ID        string     `json:"id"`
	PubKey    string     `json:"pubkey"`
	CreatedAt int64      `json:"created_at"`
	Kind      int        `json:"kind"`
	Tags      [][]string `json:"tags"`
	Content   string     `json:"content"`
	Sig       string     `json:"sig"`
}

// Serialize returns the canonical byte encoding
// [0,<pubkey>,<created_at>,<kind>,<tags>,<content>] used for identifier
// computation. String escaping follows the protocol's fixed table; relying
// on encoding/json here would diverge on HTML characters.
func (e *Event) Serialize() []byte {
	var b bytes.Buffer
	b.Grow(len(e.Content) + len(e.PubKey) + 64)
	b.WriteString(`[0,"`)
	b.WriteString(e.PubKey)
	b.WriteString(`",`)
	b.WriteString(strconv.FormatInt(e.CreatedAt, 10))
	b.WriteByte(',')
	b.WriteString(strconv.Itoa(e.Kind))
	b.WriteByte(',')
	writeTags(&b, e.Tags)
	b.WriteByte(',')
	writeEscaped(&b, e.Content)
	b.WriteByte(']')
	return b.Bytes()
}

func writeTags(b *bytes.Buffer, tags [][]string) {
	b.WriteByte('[')
	for i, tag := range tags {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('[')
		for j, item := range tag {
			if j > 0 {
				b.WriteByte(',')
			}
			writeEscaped(b, item)
		}
		b.WriteByte(']')
	}
	b.WriteByte(']')
}

// writeEscaped writes s as a JSON string using only the escapes the protocol
// permits: \" \\ \n \r \t \b \f. Everything else, including non-ASCII, is
// written verbatim.
func writeEscaped(b *bytes.Buffer, s string) {
	b.WriteByte('"')
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		case '\b':
			b.WriteString(`\b`)
		case '\f':
			b.WriteString(`\f`)
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte('"')
}

// digest returns the sha256 of the canonical encoding; its hex form is the
// event identifier.
func (e *Event) digest() [32]byte {
	return sha256.Sum256(e.Serialize())
}

// ComputeID returns the event identifier for the current field values.
func (e *Event) ComputeID() string {
	d := e.digest()
	return hex.EncodeToString(d[:])
}

// Sign fills PubKey, ID and Sig from the keypair. It refuses timestamps more
// than a small tolerance ahead of the local clock, and any keypair error is
// fatal to the run: nothing may be published without a valid signature.
func (e *Event) Sign(kp *identity.Keypair) error {
	if kp == nil {
		return fmt.Errorf("sign event: %w", identity.ErrMalformedKey)
	}
	if future := e.CreatedAt - time.Now().Unix(); future > int64(maxClockSkew/time.Second) {
		return fmt.Errorf("sign event: created_at %ds in the future", future)
	}

	e.PubKey = kp.PublicKeyHex()
	d := e.digest()
	e.ID = hex.EncodeToString(d[:])

	sig, err := kp.Sign(d)
	if err != nil {
		return fmt.Errorf("sign event: %w", err)
	}
	e.Sig = hex.EncodeToString(sig)
	return nil
}

// Verify checks that the identifier reproduces from the fields alone and
// that the signature verifies against the embedded public key.
func (e *Event) Verify() error {
	if e.ComputeID() != e.ID {
		return ErrIDMismatch
	}

	pkRaw, err := hex.DecodeString(e.PubKey)
	if err != nil {
		return fmt.Errorf("decode pubkey: %w", err)
	}
	pub, err := schnorr.ParsePubKey(pkRaw)
	if err != nil {
		return fmt.Errorf("parse pubkey: %w", err)
	}

	sigRaw, err := hex.DecodeString(e.Sig)
	if err != nil {
		return fmt.Errorf("decode signature: %w", err)
	}
	sig, err := schnorr.ParseSignature(sigRaw)
	if err != nil {
		return fmt.Errorf("parse signature: %w", err)
	}

	d := e.digest()
	if !sig.Verify(d[:], pub) {
		return ErrInvalidSignature
	}
	return nil
}
