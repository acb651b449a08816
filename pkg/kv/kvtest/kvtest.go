// Package kvtest is a conformance suite every kv.Store backend runs.
package kvtest

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jvs-project/managedfiles/pkg/kv"
)

// Factory returns a fresh, empty store. The suite closes it.
type Factory func(t *testing.T) kv.Store

// Run executes the conformance suite against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("GetMissing", func(t *testing.T) {
		s := open(t, newStore)
		_, err := s.Get([]byte("missing"))
		assert.ErrorIs(t, err, kv.ErrNotFound)
	})

	t.Run("PutGet", func(t *testing.T) {
		s := open(t, newStore)
		require.NoError(t, s.Put([]byte("a"), []byte("1")))
		v, err := s.Get([]byte("a"))
		require.NoError(t, err)
		assert.Equal(t, []byte("1"), v)

		require.NoError(t, s.Put([]byte("a"), []byte("2")))
		v, err = s.Get([]byte("a"))
		require.NoError(t, err)
		assert.Equal(t, []byte("2"), v)
	})

	t.Run("ReturnedValueIsCopy", func(t *testing.T) {
		s := open(t, newStore)
		require.NoError(t, s.Put([]byte("a"), []byte("xyz")))
		v, err := s.Get([]byte("a"))
		require.NoError(t, err)
		v[0] = 'q'
		again, err := s.Get([]byte("a"))
		require.NoError(t, err)
		assert.Equal(t, []byte("xyz"), again)
	})

	t.Run("Delete", func(t *testing.T) {
		s := open(t, newStore)
		require.NoError(t, s.Put([]byte("a"), []byte("1")))
		require.NoError(t, s.Delete([]byte("a")))
		_, err := s.Get([]byte("a"))
		assert.ErrorIs(t, err, kv.ErrNotFound)
		assert.ErrorIs(t, s.Delete([]byte("a")), kv.ErrNotFound)
	})

	t.Run("ScanOrderAndPrefix", func(t *testing.T) {
		s := open(t, newStore)
		for _, k := range []string{"p/c", "p/a", "q/a", "o/z", "p/b"} {
			require.NoError(t, s.Put([]byte(k), []byte("v-"+k)))
		}
		pairs, next, err := s.Scan([]byte("p/"), nil, 10)
		require.NoError(t, err)
		assert.Nil(t, next)
		assert.Equal(t, []string{"p/a", "p/b", "p/c"}, keysOf(pairs))
		assert.Equal(t, []byte("v-p/a"), pairs[0].Value)
	})

	t.Run("ScanEmptyPrefix", func(t *testing.T) {
		s := open(t, newStore)
		pairs, next, err := s.Scan([]byte("nothing/"), nil, 10)
		require.NoError(t, err)
		assert.Empty(t, pairs)
		assert.Nil(t, next)
	})

	t.Run("ScanPagination", func(t *testing.T) {
		s := open(t, newStore)
		var want []string
		for i := 0; i < 25; i++ {
			k := fmt.Sprintf("page/%03d", i)
			want = append(want, k)
			require.NoError(t, s.Put([]byte(k), []byte{byte(i)}))
		}
		require.NoError(t, s.Put([]byte("pagf"), []byte("outside")))

		var got []string
		var token []byte
		pages := 0
		for {
			pairs, next, err := s.Scan([]byte("page/"), token, 10)
			require.NoError(t, err)
			assert.LessOrEqual(t, len(pairs), 10)
			got = append(got, keysOf(pairs)...)
			pages++
			if next == nil {
				break
			}
			token = next
		}
		assert.Equal(t, want, got)
		assert.Equal(t, 3, pages)
	})

	t.Run("ScanExactPageBoundary", func(t *testing.T) {
		s := open(t, newStore)
		for i := 0; i < 4; i++ {
			require.NoError(t, s.Put([]byte(fmt.Sprintf("b/%d", i)), nil))
		}
		pairs, next, err := s.Scan([]byte("b/"), nil, 4)
		require.NoError(t, err)
		assert.Len(t, pairs, 4)
		assert.Nil(t, next)
	})

	t.Run("ScanAll", func(t *testing.T) {
		s := open(t, newStore)
		for i := 0; i < 7; i++ {
			require.NoError(t, s.Put([]byte(fmt.Sprintf("all/%d", i)), nil))
		}
		count := 0
		err := kv.ScanAll(s, []byte("all/"), 3, func(kv.Pair) error {
			count++
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 7, count)
	})

	t.Run("ScanRejectsBadArguments", func(t *testing.T) {
		s := open(t, newStore)
		_, _, err := s.Scan([]byte("a"), nil, 0)
		assert.Error(t, err)
		_, _, err = s.Scan([]byte("a"), []byte("b"), 1)
		assert.Error(t, err)
	})

	t.Run("BinaryKeys", func(t *testing.T) {
		s := open(t, newStore)
		k1 := []byte{0x01, 0x00, 0xff}
		k2 := []byte{0x01, 0x00, 0x01}
		require.NoError(t, s.Put(k1, []byte("one")))
		require.NoError(t, s.Put(k2, []byte("two")))
		pairs, _, err := s.Scan([]byte{0x01, 0x00}, nil, 10)
		require.NoError(t, err)
		require.Len(t, pairs, 2)
		assert.Equal(t, k2, pairs[0].Key)
		assert.Equal(t, k1, pairs[1].Key)
	})
}

func open(t *testing.T, newStore Factory) kv.Store {
	t.Helper()
	s := newStore(t)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func keysOf(pairs []kv.Pair) []string {
	keys := make([]string, 0, len(pairs))
	for _, p := range pairs {
		keys = append(keys, string(p.Key))
	}
	return keys
}
