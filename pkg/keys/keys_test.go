package keys_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jvs-project/managedfiles/pkg/keys"
)

func TestValue_NamespacesDoNotCollide(t *testing.T) {
	fileKey := keys.Value("managed_file", []byte("x"))
	pathKey := keys.Value("managed_file_path", []byte("x"))
	assert.False(t, bytes.HasPrefix(pathKey, keys.Namespace("managed_file")),
		"managed_file namespace must not match managed_file_path keys")
	assert.True(t, bytes.HasPrefix(fileKey, keys.Namespace("managed_file")))
}

func TestValue_IDsDoNotCollide(t *testing.T) {
	a := keys.Value("ns", []byte("ab"))
	b := keys.Value("ns", []byte("abc"))
	assert.NotEqual(t, a, b)
	assert.False(t, bytes.HasPrefix(b, a))
}

func TestValue_EscapesZeroBytes(t *testing.T) {
	a := keys.Value("ns", []byte{0x00})
	b := keys.Value("ns", []byte{0x00, 0x01})
	assert.NotEqual(t, a, b)
	assert.False(t, bytes.HasPrefix(b, a))
}

func TestIndex_QueryPrefixesBuiltKeys(t *testing.T) {
	q := keys.Index("acq_by_file").Field("file_id", []byte("f1")).Query()
	k1 := keys.Index("acq_by_file").Field("file_id", []byte("f1")).Build([]byte("a1"))
	k2 := keys.Index("acq_by_file").Field("file_id", []byte("f1")).Build([]byte("a2"))
	other := keys.Index("acq_by_file").Field("file_id", []byte("f10")).Build([]byte("a1"))

	assert.True(t, bytes.HasPrefix(k1, q))
	assert.True(t, bytes.HasPrefix(k2, q))
	assert.False(t, bytes.HasPrefix(other, q), "f10 entries must not match the f1 query")
	assert.Equal(t, -1, bytes.Compare(k1, k2))
}

func TestIndex_QueryDoesNotAlias(t *testing.T) {
	b := keys.Index("ns").Field("f", []byte("v"))
	q := b.Query()
	_ = b.Build([]byte("id"))
	assert.Equal(t, q, b.Query())
}

func TestTrailingID(t *testing.T) {
	prefix := keys.Index("all").Query()
	key := keys.Index("all").Build([]byte{0x00, 0xff, 0x01})
	id, err := keys.TrailingID(prefix, key)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0xff, 0x01}, id)

	_, err = keys.TrailingID(keys.Index("other").Query(), key)
	assert.Error(t, err)

	_, err = keys.TrailingID(prefix, append(key, 0x07))
	assert.Error(t, err)
}
