package record_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/jvs-project/managedfiles/internal/record"
	"github.com/jvs-project/managedfiles/pkg/errclass"
	"github.com/jvs-project/managedfiles/pkg/model"
)

func TestFileEntry_RoundTrip(t *testing.T) {
	in := &model.FileEntry{
		FileID:                 model.FileID{0x00, 0x01, 0xff},
		Path:                   "/tmp/managed-123.jpg",
		ExpirationTimeInMillis: 1_700_000_000_000,
	}
	out, err := record.UnmarshalFileEntry(record.MarshalFileEntry(in))
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestFileEntry_ZeroExpirationPreserved(t *testing.T) {
	in := &model.FileEntry{FileID: model.FileID{1}, Path: "/a"}
	out, err := record.UnmarshalFileEntry(record.MarshalFileEntry(in))
	require.NoError(t, err)
	assert.Zero(t, out.ExpirationTimeInMillis)
}

func TestFileEntry_SkipsUnknownFields(t *testing.T) {
	b := record.MarshalFileEntry(&model.FileEntry{FileID: model.FileID{1}, Path: "/a", ExpirationTimeInMillis: 5})
	b = protowire.AppendTag(b, 9, protowire.BytesType)
	b = protowire.AppendString(b, "added in a later version")
	b = protowire.AppendTag(b, 10, protowire.VarintType)
	b = protowire.AppendVarint(b, 42)

	out, err := record.UnmarshalFileEntry(b)
	require.NoError(t, err)
	assert.Equal(t, "/a", out.Path)
	assert.Equal(t, int64(5), out.ExpirationTimeInMillis)
}

func TestFileEntry_Corrupt(t *testing.T) {
	cases := map[string][]byte{
		"empty":     {},
		"truncated": record.MarshalFileEntry(&model.FileEntry{FileID: model.FileID{1}, Path: "/abc"})[:4],
		"garbage":   {0xff, 0xff, 0xff},
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := record.UnmarshalFileEntry(data)
			assert.ErrorIs(t, err, errclass.ErrDatabaseCorrupt)
		})
	}
}

func TestAcquire_RoundTrip(t *testing.T) {
	in := &model.Acquisition{
		FileID:      model.FileID{9, 8, 7},
		AcquireID:   model.AcquireID{1, 2, 3},
		AcquireName: "leaked share url - https://example.com/x",
	}
	out, err := record.UnmarshalAcquire(record.MarshalAcquire(in))
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestAcquire_Corrupt(t *testing.T) {
	_, err := record.UnmarshalAcquire([]byte("not a record"))
	assert.ErrorIs(t, err, errclass.ErrDatabaseCorrupt)

	_, err = record.UnmarshalAcquire(record.MarshalAcquire(&model.Acquisition{FileID: model.FileID{1}}))
	assert.ErrorIs(t, err, errclass.ErrDatabaseCorrupt)
}
