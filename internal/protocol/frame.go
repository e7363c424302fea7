// Package protocol implements Helix's wire codec and push/pull state
// machines: messages are framed with a u32 LE length prefix plus a
// one-byte kind discriminant, and a session is a strict, unmultiplexed
// sequence of such messages over one connection. The framing is a small
// reader that hands back one message's payload per call, using a fixed
// binary length prefix.
package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Kind is the one-byte message discriminant. Values are stable across
// versions of this protocol; do not renumber.
type Kind uint8

const (
	KindHello Kind = iota
	KindHelloAck
	KindPushRequest
	KindPushResponse
	KindPushObject
	KindPushDone
	KindPushAck
	KindPullRequest
	KindPullAck
	KindPullObject
	KindPullDone
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindHello:
		return "Hello"
	case KindHelloAck:
		return "HelloAck"
	case KindPushRequest:
		return "PushRequest"
	case KindPushResponse:
		return "PushResponse"
	case KindPushObject:
		return "PushObject"
	case KindPushDone:
		return "PushDone"
	case KindPushAck:
		return "PushAck"
	case KindPullRequest:
		return "PullRequest"
	case KindPullAck:
		return "PullAck"
	case KindPullObject:
		return "PullObject"
	case KindPullDone:
		return "PullDone"
	case KindError:
		return "Error"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// ErrProtocol marks a wire violation: an unexpected message kind or order.
// The connection is closed and both sides discard partial state.
var ErrProtocol = errors.New("protocol: violation")

// MaxPayload bounds a single message's payload size, guarding a malicious
// or corrupt peer from making a reader allocate an unbounded buffer from a
// forged length prefix.
const MaxPayload = 64 << 20 // 64 MiB, comfortably above a single blob chunk

// WriteMessage frames one message as length(u32 LE) | kind(u8) | payload
// and writes it to w.
func WriteMessage(w io.Writer, kind Kind, payload []byte) error {
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(payload)+1))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return fmt.Errorf("protocol: write length: %w", err)
	}
	if _, err := w.Write([]byte{byte(kind)}); err != nil {
		return fmt.Errorf("protocol: write kind: %w", err)
	}
	if len(payload) > 0 {
		if _, err := w.Write(payload); err != nil {
			return fmt.Errorf("protocol: write payload: %w", err)
		}
	}
	return nil
}

// ReadMessage reads one framed message from r, returning its kind and
// payload. io.EOF is returned unwrapped when the peer closes the
// connection between messages (the normal end of a session).
func ReadMessage(r io.Reader) (Kind, []byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return 0, nil, io.EOF
		}
		return 0, nil, fmt.Errorf("protocol: read length: %w", err)
	}

	n := binary.LittleEndian.Uint32(lenBuf[:])
	if n == 0 {
		return 0, nil, fmt.Errorf("%w: zero-length frame has no kind byte", ErrProtocol)
	}
	if n > MaxPayload {
		return 0, nil, fmt.Errorf("%w: frame of %d bytes exceeds %d byte limit", ErrProtocol, n, MaxPayload)
	}

	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return 0, nil, fmt.Errorf("protocol: read body: %w", err)
	}

	return Kind(body[0]), body[1:], nil
}
