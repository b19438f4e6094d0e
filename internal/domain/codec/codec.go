// Package codec provides the internal-peer wire alternative mentioned in
//: JSON is the default envelope format, but when both ends of a
// link are known to be internal components a denser binary encoding is
// permitted. We use encoding/gob rather than inventing a bincode port,
// since gob is the stdlib's "internal peers only" binary codec and
// needs no schema compiler.
package codec

import (
	"bytes"
	"encoding/gob"

	"github.com/abdoElHodaky/tradSys/internal/domain"
)

// EncodeInternal encodes a Message using the internal binary format.
func EncodeInternal(msg domain.Message) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(msg); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeInternal decodes a Message previously produced by EncodeInternal.
func DecodeInternal(data []byte) (domain.Message, error) {
	var msg domain.Message
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&msg); err != nil {
		return domain.Message{}, err
	}
	return msg, nil
}
