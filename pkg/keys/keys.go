// Package keys builds the composite store keys used by the file ledger.
//
// Every component is written with the order-preserving encodings from
// cockroach-encoding. Strings and byte values are escaped and terminated, so
// no namespace, field name or value can be a raw prefix of another: the
// namespace "managed_file" never matches keys of "managed_file_path", and a
// file id "ab" never matches index keys of file id "abc".
//
// Two key families exist:
//
//	value key:  <namespace> <id>                       -> serialized record
//	index key:  <namespace> (<field> <value>)* <id>    -> value key
//
// Index fields precede the trailing entity id, so Query() yields a prefix
// that enumerates every record sharing the indexed field values.
package keys

import (
	"fmt"

	"github.com/jgraettinger/cockroach-encoding/encoding"
)

// Value returns the primary key for id within namespace.
func Value(namespace string, id []byte) []byte {
	b := encoding.EncodeStringAscending(nil, namespace)
	return encoding.EncodeBytesAscending(b, id)
}

// Namespace returns the prefix shared by every key of namespace.
func Namespace(namespace string) []byte {
	return encoding.EncodeStringAscending(nil, namespace)
}

// IndexBuilder accumulates the fields of an index key.
type IndexBuilder struct {
	buf []byte
}

// Index starts an index key within namespace.
func Index(namespace string) *IndexBuilder {
	return &IndexBuilder{buf: encoding.EncodeStringAscending(nil, namespace)}
}

// Field appends an indexed field name and its value.
func (b *IndexBuilder) Field(name string, value []byte) *IndexBuilder {
	b.buf = encoding.EncodeStringAscending(b.buf, name)
	b.buf = encoding.EncodeBytesAscending(b.buf, value)
	return b
}

// Query returns the prefix matching every index key built from the same
// namespace and fields.
func (b *IndexBuilder) Query() []byte {
	out := make([]byte, len(b.buf))
	copy(out, b.buf)
	return out
}

// Build terminates the index key with the entity id.
func (b *IndexBuilder) Build(id []byte) []byte {
	return encoding.EncodeBytesAscending(b.Query(), id)
}

// TrailingID decodes the entity id that terminates key, given the query
// prefix the key was built from.
func TrailingID(prefix, key []byte) ([]byte, error) {
	if len(key) < len(prefix) || string(key[:len(prefix)]) != string(prefix) {
		return nil, fmt.Errorf("key %x outside prefix %x", key, prefix)
	}
	rest, id, err := encoding.DecodeBytesAscending(key[len(prefix):], nil)
	if err != nil {
		return nil, fmt.Errorf("decode trailing id: %w", err)
	}
	if len(rest) != 0 {
		return nil, fmt.Errorf("key %x has %d trailing bytes", key, len(rest))
	}
	return id, nil
}
