// Package record encodes the persisted file-entry and acquisition records.
//
// Records use the protobuf wire format so that fields can be added across
// store upgrades without breaking older readers:
//
//	FileEntryRecord { 1: file_id bytes, 2: path string, 3: expiration_time_in_millis int64 }
//	AcquireRecord   { 1: file_id bytes, 2: acquire_id bytes, 3: acquire_name string }
//
// Unknown fields are skipped on decode.
package record

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/jvs-project/managedfiles/pkg/errclass"
	"github.com/jvs-project/managedfiles/pkg/model"
)

const (
	fieldFileID     protowire.Number = 1
	fieldPath       protowire.Number = 2
	fieldExpiration protowire.Number = 3

	fieldAcquireID   protowire.Number = 2
	fieldAcquireName protowire.Number = 3
)

// MarshalFileEntry encodes a FileEntryRecord.
func MarshalFileEntry(e *model.FileEntry) []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldFileID, protowire.BytesType)
	b = protowire.AppendBytes(b, e.FileID)
	b = protowire.AppendTag(b, fieldPath, protowire.BytesType)
	b = protowire.AppendString(b, e.Path)
	if e.ExpirationTimeInMillis != 0 {
		b = protowire.AppendTag(b, fieldExpiration, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(e.ExpirationTimeInMillis))
	}
	return b
}

// UnmarshalFileEntry decodes a FileEntryRecord. Malformed input yields
// errclass.ErrDatabaseCorrupt.
func UnmarshalFileEntry(data []byte) (*model.FileEntry, error) {
	e := &model.FileEntry{}
	err := walk(data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == fieldFileID && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			e.FileID = append(model.FileID(nil), v...)
			return n, nil
		case num == fieldPath && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			e.Path = v
			return n, nil
		case num == fieldExpiration && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			e.ExpirationTimeInMillis = int64(v)
			return n, nil
		}
		return protowire.ConsumeFieldValue(num, typ, b), nil
	})
	if err != nil {
		return nil, errclass.ErrDatabaseCorrupt.WithMessagef("file entry: %v", err)
	}
	if len(e.FileID) == 0 || e.Path == "" {
		return nil, errclass.ErrDatabaseCorrupt.WithMessage("file entry: missing file_id or path")
	}
	return e, nil
}

// MarshalAcquire encodes an AcquireRecord.
func MarshalAcquire(a *model.Acquisition) []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldFileID, protowire.BytesType)
	b = protowire.AppendBytes(b, a.FileID)
	b = protowire.AppendTag(b, fieldAcquireID, protowire.BytesType)
	b = protowire.AppendBytes(b, a.AcquireID)
	b = protowire.AppendTag(b, fieldAcquireName, protowire.BytesType)
	b = protowire.AppendString(b, a.AcquireName)
	return b
}

// UnmarshalAcquire decodes an AcquireRecord. Malformed input yields
// errclass.ErrDatabaseCorrupt.
func UnmarshalAcquire(data []byte) (*model.Acquisition, error) {
	a := &model.Acquisition{}
	err := walk(data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if typ != protowire.BytesType {
			return protowire.ConsumeFieldValue(num, typ, b), nil
		}
		switch num {
		case fieldFileID:
			v, n := protowire.ConsumeBytes(b)
			a.FileID = append(model.FileID(nil), v...)
			return n, nil
		case fieldAcquireID:
			v, n := protowire.ConsumeBytes(b)
			a.AcquireID = append(model.AcquireID(nil), v...)
			return n, nil
		case fieldAcquireName:
			v, n := protowire.ConsumeString(b)
			a.AcquireName = v
			return n, nil
		}
		return protowire.ConsumeFieldValue(num, typ, b), nil
	})
	if err != nil {
		return nil, errclass.ErrDatabaseCorrupt.WithMessagef("acquire: %v", err)
	}
	if len(a.FileID) == 0 || len(a.AcquireID) == 0 {
		return nil, errclass.ErrDatabaseCorrupt.WithMessage("acquire: missing file_id or acquire_id")
	}
	return a, nil
}

// walk iterates the fields of a message, handing each value to fn, which
// returns the number of bytes it consumed (negative on error).
func walk(data []byte, fn func(protowire.Number, protowire.Type, []byte) (int, error)) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return protowire.ParseError(n)
		}
		data = data[n:]
		m, err := fn(num, typ, data)
		if err != nil {
			return err
		}
		if m < 0 {
			return fmt.Errorf("field %d: %w", num, protowire.ParseError(m))
		}
		data = data[m:]
	}
	return nil
}
