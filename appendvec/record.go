// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package appendvec

import (
	"encoding/binary"
	"slices"

	"github.com/vechain/accountsdb/acc"
)

const (
	metaSize    = 8 + acc.PubkeyLength + 8 // write version, pubkey, data len
	balanceSize = 8 + acc.PubkeyLength + 8 // lamports, owner, executable
	headerSize  = metaSize + balanceSize
	alignment   = 8
)

// StoredMeta is the per-record header written ahead of the account content.
type StoredMeta struct {
	WriteVersion uint64
	Pubkey       acc.Pubkey
	DataLen      uint64
}

// Record is an account to be appended together with its header.
type Record struct {
	Meta    StoredMeta
	Account *acc.Account
}

// StoredAccount is a record read back from a segment.
type StoredAccount struct {
	Meta       StoredMeta
	Lamports   uint64
	Owner      acc.Pubkey
	Executable bool
	Data       []byte
	Offset     uint64
}

// CloneAccount returns the account held by the record.
func (sa *StoredAccount) CloneAccount() *acc.Account {
	return &acc.Account{
		Lamports:   sa.Lamports,
		Owner:      sa.Owner,
		Executable: sa.Executable,
		Data:       slices.Clone(sa.Data),
	}
}

func alignUp(n uint64) uint64 {
	return (n + alignment - 1) &^ (alignment - 1)
}

// RecordSize returns the aligned on-disk size of a record carrying dataLen bytes.
func RecordSize(dataLen uint64) uint64 {
	return alignUp(headerSize + dataLen)
}

// appendRecord encodes r at the end of buf, padded to the record alignment.
func appendRecord(buf []byte, r *Record) []byte {
	buf = binary.LittleEndian.AppendUint64(buf, r.Meta.WriteVersion)
	buf = append(buf, r.Meta.Pubkey[:]...)
	buf = binary.LittleEndian.AppendUint64(buf, r.Meta.DataLen)

	buf = binary.LittleEndian.AppendUint64(buf, r.Account.Lamports)
	buf = append(buf, r.Account.Owner[:]...)
	var exec uint64
	if r.Account.Executable {
		exec = 1
	}
	buf = binary.LittleEndian.AppendUint64(buf, exec)

	buf = append(buf, r.Account.Data[:r.Meta.DataLen]...)

	if pad := alignUp(headerSize+r.Meta.DataLen) - (headerSize + r.Meta.DataLen); pad > 0 {
		buf = append(buf, make([]byte, pad)...)
	}
	return buf
}

// decodeHeader decodes the fixed part of a record. b must hold at least headerSize bytes.
func decodeHeader(b []byte, sa *StoredAccount) {
	sa.Meta.WriteVersion = binary.LittleEndian.Uint64(b)
	copy(sa.Meta.Pubkey[:], b[8:])
	sa.Meta.DataLen = binary.LittleEndian.Uint64(b[8+acc.PubkeyLength:])

	b = b[metaSize:]
	sa.Lamports = binary.LittleEndian.Uint64(b)
	copy(sa.Owner[:], b[8:])
	sa.Executable = binary.LittleEndian.Uint64(b[8+acc.PubkeyLength:]) != 0
}
