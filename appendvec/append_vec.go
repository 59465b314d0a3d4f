// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package appendvec implements the storage segment primitive: a fixed-capacity,
// append-only log of account records backed by a single file.
//
// Appends are serialized by the segment. Readers never take a lock, they only
// see bytes below the published length.
package appendvec

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
)

// DataFile is the name of the file holding a segment's records.
const DataFile = "data"

// ErrOutOfRange is returned when reading at or past the published length.
var ErrOutOfRange = errors.New("offset out of range")

// AppendVec is a file backed append-only record log.
type AppendVec struct {
	path     string
	file     *os.File
	capacity uint64

	appendLock sync.Mutex
	length     atomic.Uint64 // published length, bytes below it are immutable until reset
	generation atomic.Uint64 // bumped on every reset
}

func openFile(path string, size uint64) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, errors.Wrap(err, "create segment dir")
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_TRUNC, 0600)
	if err != nil {
		return nil, errors.Wrap(err, "open segment file")
	}
	if err := f.Truncate(int64(size)); err != nil {
		f.Close()
		return nil, errors.Wrap(err, "allocate segment file")
	}
	return f, nil
}

// New creates an empty segment of the given capacity at path.
// Any existing file at path is truncated.
func New(path string, size uint64) (*AppendVec, error) {
	f, err := openFile(path, size)
	if err != nil {
		return nil, err
	}
	return &AppendVec{
		path:     path,
		file:     f,
		capacity: size,
	}, nil
}

// Restore creates a segment at path whose content is data.
func Restore(path string, size uint64, data []byte) (*AppendVec, error) {
	if uint64(len(data)) > size {
		return nil, fmt.Errorf("segment data (%d bytes) exceeds capacity (%d bytes)", len(data), size)
	}
	f, err := openFile(path, size)
	if err != nil {
		return nil, err
	}
	if _, err := f.WriteAt(data, 0); err != nil {
		f.Close()
		return nil, errors.Wrap(err, "write segment data")
	}
	av := &AppendVec{
		path:     path,
		file:     f,
		capacity: size,
	}
	av.length.Store(uint64(len(data)))
	return av, nil
}

// Path returns the path of the data file.
func (av *AppendVec) Path() string { return av.path }

// Capacity returns the maximum number of bytes the segment can hold.
func (av *AppendVec) Capacity() uint64 { return av.capacity }

// Len returns the number of bytes appended since creation or the last reset.
func (av *AppendVec) Len() uint64 { return av.length.Load() }

// Generation returns the number of resets the segment went through.
func (av *AppendVec) Generation() uint64 { return av.generation.Load() }

// Append writes the leading records that fit into the remaining capacity and
// returns their offsets. No offsets are returned if the first record does not fit.
func (av *AppendVec) Append(records []Record) ([]uint64, error) {
	av.appendLock.Lock()
	defer av.appendLock.Unlock()

	start := av.length.Load()
	offset := start

	var (
		buf     []byte
		offsets []uint64
	)
	for i := range records {
		size := RecordSize(records[i].Meta.DataLen)
		if offset+size > av.capacity {
			break
		}
		buf = appendRecord(buf, &records[i])
		offsets = append(offsets, offset)
		offset += size
	}
	if len(offsets) == 0 {
		return nil, nil
	}

	if _, err := av.file.WriteAt(buf, int64(start)); err != nil {
		return nil, errors.Wrap(err, "append records")
	}
	av.length.Store(offset)
	return offsets, nil
}

// Get reads the record at offset and returns it along with the offset of the
// next record.
func (av *AppendVec) Get(offset uint64) (*StoredAccount, uint64, error) {
	length := av.length.Load()
	if offset+headerSize > length {
		return nil, 0, ErrOutOfRange
	}

	var header [headerSize]byte
	if _, err := av.file.ReadAt(header[:], int64(offset)); err != nil {
		return nil, 0, errors.Wrap(err, "read record header")
	}
	sa := &StoredAccount{Offset: offset}
	decodeHeader(header[:], sa)

	end := offset + headerSize + sa.Meta.DataLen
	if end > length || end < offset {
		return nil, 0, fmt.Errorf("corrupted record at %d: data len %d", offset, sa.Meta.DataLen)
	}
	sa.Data = make([]byte, sa.Meta.DataLen)
	if sa.Meta.DataLen > 0 {
		if _, err := av.file.ReadAt(sa.Data, int64(offset+headerSize)); err != nil {
			return nil, 0, errors.Wrap(err, "read record data")
		}
	}
	return sa, alignUp(end), nil
}

// Accounts returns every record from start up to the published length.
func (av *AppendVec) Accounts(start uint64) ([]*StoredAccount, error) {
	length := av.length.Load()
	if start >= length {
		return nil, nil
	}
	buf := make([]byte, length-start)
	if _, err := av.file.ReadAt(buf, int64(start)); err != nil {
		return nil, errors.Wrap(err, "read records")
	}

	var (
		accounts []*StoredAccount
		pos      uint64
	)
	for pos+headerSize <= uint64(len(buf)) {
		sa := &StoredAccount{Offset: start + pos}
		decodeHeader(buf[pos:], sa)
		end := pos + headerSize + sa.Meta.DataLen
		if end > uint64(len(buf)) || end < pos {
			return nil, fmt.Errorf("corrupted record at %d: data len %d", start+pos, sa.Meta.DataLen)
		}
		sa.Data = make([]byte, sa.Meta.DataLen)
		copy(sa.Data, buf[pos+headerSize:end])
		accounts = append(accounts, sa)
		pos = alignUp(end)
	}
	return accounts, nil
}

// Bytes returns a copy of the appended bytes.
func (av *AppendVec) Bytes() ([]byte, error) {
	length := av.length.Load()
	buf := make([]byte, length)
	if length == 0 {
		return buf, nil
	}
	if _, err := av.file.ReadAt(buf, 0); err != nil {
		return nil, errors.Wrap(err, "read segment")
	}
	return buf, nil
}

// Reset logically truncates the segment so it can be reused.
// Offsets handed out before the reset become invalid.
func (av *AppendVec) Reset() {
	av.appendLock.Lock()
	defer av.appendLock.Unlock()

	av.length.Store(0)
	av.generation.Add(1)
}

// Close releases the data file.
func (av *AppendVec) Close() error {
	return av.file.Close()
}

// Remove closes the segment and deletes its directory.
func (av *AppendVec) Remove() error {
	av.file.Close()
	return os.RemoveAll(filepath.Dir(av.path))
}
