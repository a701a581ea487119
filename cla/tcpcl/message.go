// SPDX-FileCopyrightText: 2026 The bpagent Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package tcpcl

import (
	"bytes"
	"fmt"
	"io"
	"reflect"
)

// Message typecodes.
const (
	BUNDLE_DATA uint8 = 0x01
	BUNDLE_ACK uint8 = 0x02
	KEEPALIVE uint8 = 0x03
	SHUTDOWN uint8 = 0x04
)

// Message describes all kinds of TCPCL frames sharing a common
// serialization/deserialization contract.
type Message interface {
	Marshal(w io.Writer) error
	Unmarshal(r io.Reader) error
}

// messages maps a typecode to an example instance of its Message type.
// BUNDLE_DATA is deliberately absent: its body is streamed with interleaved
// BUNDLE_ACKs, which does not fit this fixed-buffer dispatch, so the
// session reads it directly, see Client.handleBundleData.
var messages = map[uint8]Message{
	BUNDLE_ACK: &BundleAckMessage{},
	KEEPALIVE: &KeepaliveMessage{},
	SHUTDOWN: &ShutdownMessage{},
}

// NewMessage creates a zero Message for the given typecode.
func NewMessage(typeCode uint8) (msg Message, err error) {
	msgType, exists := messages[typeCode]
	if !exists {
		err = fmt.Errorf("tcpcl: no message registered for type code %#x", typeCode)
		return
	}

	msgElem := reflect.TypeOf(msgType).Elem()
	msg = reflect.New(msgElem).Interface().(Message)
	return
}

// ReadMessage parses the next non-BUNDLE_DATA message from r.
func ReadMessage(r io.Reader) (msg Message, err error) {
	typeByte := make([]byte, 1)
	if _, err = io.ReadFull(r, typeByte); err != nil {
		return
	}

	msg, err = NewMessage(typeByte[0])
	if err != nil {
		return
	}

	mr := io.MultiReader(bytes.NewReader(typeByte), r)
	err = msg.Unmarshal(mr)
	return
}
