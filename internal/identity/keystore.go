// Package identity owns the bot's long-term signing keypair. The private
// scalar never leaves this package except through Sign.
package identity

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil/bech32"
)

// ErrMalformedKey marks persisted key material that cannot be used. A key
// file that fails to parse is never overwritten: regenerating would silently
// change the bot's public identity.
var ErrMalformedKey = errors.New("malformed key material")

const (
	npubPrefix = "npub"
	nsecPrefix = "nsec"
)

// Keypair is a secp256k1 private scalar and its x-only public key.
type Keypair struct {
	priv   *btcec.PrivateKey
	pubKey []byte // 32-byte x-only serialization
}

// LoadOrCreate loads the keypair from path, or generates and persists a new
// one if the file does not exist. The file holds a single hex or nsec line
// and is created with owner-only permissions.
func LoadOrCreate(path string, logger *slog.Logger) (*Keypair, error) {
	info, err := os.Stat(path)
	switch {
	case err == nil:
		if info.Mode().Perm()&0o077 != 0 {
			return nil, fmt.Errorf("key file %s permissions %04o too open, want 0600", path, info.Mode().Perm())
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read key file %s: %w", path, err)
		}
		kp, err := Parse(strings.TrimSpace(string(data)))
		if err != nil {
			return nil, fmt.Errorf("key file %s: %w", path, err)
		}
		logger.Debug("loaded signing key", "path", path, "pubkey", kp.PublicKeyHex())
		return kp, nil

	case os.IsNotExist(err):
		kp, err := Generate()
		if err != nil {
			return nil, err
		}
		if err := kp.save(path); err != nil {
			return nil, err
		}
		logger.Info("generated new signing key", "path", path, "pubkey", kp.PublicKeyHex())
		return kp, nil

	default:
		return nil, fmt.Errorf("stat key file %s: %w", path, err)
	}
}

// Generate creates a new random keypair.
func Generate() (*Keypair, error) {
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("generate private key: %w", err)
	}
	return fromPrivate(priv), nil
}

// Parse accepts a private key as 64 hex characters or in nsec bech32 form.
func Parse(s string) (*Keypair, error) {
	raw, err := decodeSecret(s)
	if err != nil {
		return nil, err
	}
	priv, _ := btcec.PrivKeyFromBytes(raw)
	// PrivKeyFromBytes reduces out-of-range scalars mod the group order;
	// detect that (and the zero scalar) by round-tripping the bytes.
	if priv.Key.IsZero() || !bytes.Equal(priv.Serialize(), raw) {
		return nil, fmt.Errorf("%w: scalar out of range", ErrMalformedKey)
	}
	return fromPrivate(priv), nil
}

func decodeSecret(s string) ([]byte, error) {
	if strings.HasPrefix(s, nsecPrefix) {
		hrp, data5, err := bech32.Decode(s)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedKey, err)
		}
		if hrp != nsecPrefix {
			return nil, fmt.Errorf("%w: unexpected bech32 prefix %q", ErrMalformedKey, hrp)
		}
		raw, err := bech32.ConvertBits(data5, 5, 8, false)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedKey, err)
		}
		if len(raw) != 32 {
			return nil, fmt.Errorf("%w: nsec payload is %d bytes, want 32", ErrMalformedKey, len(raw))
		}
		return raw, nil
	}

	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedKey, err)
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("%w: key is %d bytes, want 32", ErrMalformedKey, len(raw))
	}
	return raw, nil
}

func fromPrivate(priv *btcec.PrivateKey) *Keypair {
	return &Keypair{
		priv:   priv,
		pubKey: schnorr.SerializePubKey(priv.PubKey()),
	}
}

func (k *Keypair) save(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create key directory: %w", err)
		}
	}
	line := hex.EncodeToString(k.priv.Serialize()) + "\n"
	if err := os.WriteFile(path, []byte(line), 0o600); err != nil {
		return fmt.Errorf("write key file %s: %w", path, err)
	}
	return nil
}

// Sign produces a 64-byte BIP-340 signature over a 32-byte digest.
func (k *Keypair) Sign(digest [32]byte) ([]byte, error) {
	if k == nil || k.priv == nil {
		return nil, fmt.Errorf("sign: %w", ErrMalformedKey)
	}
	sig, err := schnorr.Sign(k.priv, digest[:])
	if err != nil {
		return nil, fmt.Errorf("schnorr sign: %w", err)
	}
	return sig.Serialize(), nil
}

// PublicKeyHex returns the x-only public key as 64 lowercase hex characters,
// the form carried in published events.
func (k *Keypair) PublicKeyHex() string {
	return hex.EncodeToString(k.pubKey)
}

// Npub returns the bech32 form of the public key for display.
func (k *Keypair) Npub() (string, error) {
	return encodeBech32(npubPrefix, k.pubKey)
}

// Nsec returns the bech32 form of the private key.
func (k *Keypair) Nsec() (string, error) {
	return encodeBech32(nsecPrefix, k.priv.Serialize())
}

func encodeBech32(hrp string, raw []byte) (string, error) {
	data5, err := bech32.ConvertBits(raw, 8, 5, true)
	if err != nil {
		return "", fmt.Errorf("convert bits: %w", err)
	}
	s, err := bech32.Encode(hrp, data5)
	if err != nil {
		return "", fmt.Errorf("bech32 encode: %w", err)
	}
	return s, nil
}
