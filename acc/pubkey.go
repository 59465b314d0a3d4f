// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package acc

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// PubkeyLength is the byte length of an account key.
const PubkeyLength = 32

// Pubkey is the fixed-size public identifier of an account.
type Pubkey [PubkeyLength]byte

var (
	_ json.Marshaler   = (*Pubkey)(nil)
	_ json.Unmarshaler = (*Pubkey)(nil)
)

// String implements stringer
func (k Pubkey) String() string {
	return "0x" + hex.EncodeToString(k[:])
}

// AbbrevString returns abbrev string presentation.
func (k Pubkey) AbbrevString() string {
	return fmt.Sprintf("0x%x…%x", k[:4], k[28:])
}

// Bytes returns byte slice form of Pubkey.
func (k Pubkey) Bytes() []byte {
	return k[:]
}

// IsZero returns if Pubkey has all zero bytes.
func (k Pubkey) IsZero() bool {
	return k == Pubkey{}
}

// Compare compares two keys lexicographically.
func (k Pubkey) Compare(other Pubkey) int {
	return bytes.Compare(k[:], other[:])
}

// MarshalJSON implements json.Marshaler.
func (k *Pubkey) MarshalJSON() ([]byte, error) {
	if k == nil {
		return json.Marshal(nil)
	}
	return json.Marshal(k.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (k *Pubkey) UnmarshalJSON(data []byte) error {
	var hex string
	if err := json.Unmarshal(data, &hex); err != nil {
		return err
	}
	parsed, err := ParsePubkey(hex)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ParsePubkey converts the hex string form (optionally 0x prefixed) into a Pubkey.
func ParsePubkey(s string) (Pubkey, error) {
	if len(s) == PubkeyLength*2 {
	} else if len(s) == PubkeyLength*2+2 {
		if strings.ToLower(s[:2]) != "0x" {
			return Pubkey{}, errors.New("invalid prefix")
		}
		s = s[2:]
	} else {
		return Pubkey{}, errors.New("invalid length")
	}

	var k Pubkey
	if _, err := hex.Decode(k[:], []byte(s)); err != nil {
		return Pubkey{}, err
	}
	return k, nil
}

// MustParsePubkey converts the hex string form into a Pubkey, panic on error.
func MustParsePubkey(s string) Pubkey {
	k, err := ParsePubkey(s)
	if err != nil {
		panic(err)
	}
	return k
}

// BytesToPubkey converts bytes slice into Pubkey.
// If b is larger than Pubkey length, b will be cropped (from the left).
// If b is smaller than Pubkey length, b will be extended (from the left).
func BytesToPubkey(b []byte) Pubkey {
	var k Pubkey
	if len(b) > len(k) {
		b = b[len(b)-PubkeyLength:]
	}
	copy(k[PubkeyLength-len(b):], b)
	return k
}

// NewRandPubkey returns a random key. Used by tests and benchmarks.
func NewRandPubkey() Pubkey {
	var k Pubkey
	if _, err := rand.Read(k[:]); err != nil {
		panic(err)
	}
	return k
}
