package protocol

import (
	"fmt"
	"io"

	"github.com/helixvcs/helix/internal/walker"
	"github.com/helixvcs/helix/storage/objstore"
	"github.com/helixvcs/helix/storage/refstore"
)

// ClientPull drives the client side of the pull state machine: it asks the
// server for a ref, verifies every object it's sent before writing it (the
// digest carried in each ObjectPayload is re-derived from the decoded
// bytes by objstore.PutEncoded), and returns the server's reported new
// head once PullDone arrives.
func ClientPull(rw io.ReadWriter, objects *objstore.Store, req PullRequest) (PullAck, error) {
	if err := WriteMessage(rw, KindHello, Hello{ClientVersion: ProtocolVersion}.Encode()); err != nil {
		return PullAck{}, err
	}
	if err := WriteMessage(rw, KindPullRequest, req.Encode()); err != nil {
		return PullAck{}, err
	}

	kind, payload, err := ReadMessage(rw)
	if err != nil {
		return PullAck{}, err
	}
	if kind == KindError {
		e, derr := DecodeError(payload)
		if derr != nil {
			return PullAck{}, derr
		}
		return PullAck{}, e
	}
	if kind != KindPullAck {
		return PullAck{}, fmt.Errorf("%w: expected PullAck, got %s", ErrProtocol, kind)
	}
	ack, err := DecodePullAck(payload)
	if err != nil {
		return PullAck{}, err
	}

	for {
		kind, payload, err := ReadMessage(rw)
		if err != nil {
			return PullAck{}, err
		}
		if kind == KindPullDone {
			break
		}
		if kind != KindPullObject {
			return PullAck{}, fmt.Errorf("%w: expected PullObject, got %s", ErrProtocol, kind)
		}
		obj, err := DecodeObjectPayload(payload)
		if err != nil {
			return PullAck{}, err
		}
		if !objects.Has(obj.Kind, obj.Digest) {
			if err := objects.PutEncoded(obj.Kind, obj.Digest, obj.Encoded); err != nil {
				return PullAck{}, fmt.Errorf("protocol: store pulled object %s: %w", obj.Digest, err)
			}
		}
	}

	return ack, nil
}

// ServerHandlePull drives the server side of the pull state machine: after
// the handshake it walks the requested ref's history against the client's
// `have` digest and streams exactly the objects the client is missing.
func ServerHandlePull(rw io.ReadWriter, objects *objstore.Store, refs *refstore.Store) error {
	kind, payload, err := ReadMessage(rw)
	if err != nil {
		return err
	}
	if kind != KindHello {
		return sendProtocolError(rw, fmt.Errorf("%w: expected Hello, got %s", ErrProtocol, kind))
	}
	hello, err := DecodeHello(payload)
	if err != nil {
		return sendProtocolError(rw, err)
	}
	if hello.ClientVersion != ProtocolVersion {
		return WriteMessage(rw, KindError, Error{
			Code:    IncompatibleVersionCode,
			Message: fmt.Sprintf("server speaks protocol %d, client sent %d", ProtocolVersion, hello.ClientVersion),
		}.Encode())
	}

	kind, payload, err = ReadMessage(rw)
	if err != nil {
		return err
	}
	if kind != KindPullRequest {
		return sendProtocolError(rw, fmt.Errorf("%w: expected PullRequest, got %s", ErrProtocol, kind))
	}
	req, err := DecodePullRequest(payload)
	if err != nil {
		return sendProtocolError(rw, err)
	}

	head, exists, err := refs.Get(req.Ref)
	if err != nil {
		return sendProtocolError(rw, err)
	}
	if !exists {
		return WriteMessage(rw, KindError, Error{Code: 404, Message: fmt.Sprintf("ref %q not found", req.Ref)}.Encode())
	}

	result, err := walker.Walk(objects, head, req.Have)
	if err != nil {
		return sendProtocolError(rw, err)
	}

	if err := WriteMessage(rw, KindPullAck, PullAck{SentObjects: uint32(result.Len()), NewRemoteHead: head}.Encode()); err != nil {
		return err
	}

	for _, obj := range walkerObjects(result) {
		encoded, err := objects.GetEncoded(obj.kind, obj.digest)
		if err != nil {
			return err
		}
		body := ObjectPayload{Kind: obj.kind, Digest: obj.digest, Encoded: encoded}.Encode()
		if err := WriteMessage(rw, KindPullObject, body); err != nil {
			return err
		}
	}

	return WriteMessage(rw, KindPullDone, nil)
}

