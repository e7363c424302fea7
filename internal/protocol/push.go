package protocol

import (
	"errors"
	"fmt"
	"io"

	"github.com/helixvcs/helix/internal/walker"
	"github.com/helixvcs/helix/plumbing/hash"
	"github.com/helixvcs/helix/plumbing/object"
	"github.com/helixvcs/helix/storage/objstore"
	"github.com/helixvcs/helix/storage/refstore"
)

// ClientPush drives the client side of the push state machine: it
// announces itself, sends the ref update request, walks the objects the
// server doesn't have, streams them, and waits for the server's verdict.
// It does not itself update any local remote-tracking ref; the caller does
// that after a successful PushAck, using the req.New digest it already has.
func ClientPush(rw io.ReadWriter, objects *objstore.Store, req PushRequest) (PushAck, error) {
	if err := WriteMessage(rw, KindHello, Hello{ClientVersion: ProtocolVersion}.Encode()); err != nil {
		return PushAck{}, err
	}
	if err := WriteMessage(rw, KindPushRequest, req.Encode()); err != nil {
		return PushAck{}, err
	}

	kind, payload, err := ReadMessage(rw)
	if err != nil {
		return PushAck{}, err
	}
	if kind == KindError {
		e, derr := DecodeError(payload)
		if derr != nil {
			return PushAck{}, derr
		}
		return PushAck{}, e
	}
	if kind != KindPushResponse {
		return PushAck{}, fmt.Errorf("%w: expected PushResponse, got %s", ErrProtocol, kind)
	}
	resp, err := DecodePushResponse(payload)
	if err != nil {
		return PushAck{}, err
	}

	result, err := walker.Walk(objects, req.New, resp.RemoteHead)
	if err != nil {
		return PushAck{}, fmt.Errorf("protocol: walk objects for push: %w", err)
	}

	for _, obj := range walkerObjects(result) {
		encoded, err := objects.GetEncoded(obj.kind, obj.digest)
		if err != nil {
			return PushAck{}, fmt.Errorf("protocol: read object %s for push: %w", obj.digest, err)
		}
		payload := ObjectPayload{Kind: obj.kind, Digest: obj.digest, Encoded: encoded}.Encode()
		if err := WriteMessage(rw, KindPushObject, payload); err != nil {
			return PushAck{}, err
		}
	}
	if err := WriteMessage(rw, KindPushDone, nil); err != nil {
		return PushAck{}, err
	}

	kind, payload, err = ReadMessage(rw)
	if err != nil {
		return PushAck{}, err
	}
	switch kind {
	case KindPushAck:
		return DecodePushAck(payload)
	case KindError:
		e, derr := DecodeError(payload)
		if derr != nil {
			return PushAck{}, derr
		}
		return PushAck{}, e
	default:
		return PushAck{}, fmt.Errorf("%w: expected PushAck, got %s", ErrProtocol, kind)
	}
}

// ServerHandlePush drives the server side of the push state machine. It
// reads the Hello/PushRequest pair, replies with the ref's current value,
// ingests objects until PushDone, and only then attempts the ref CAS — so a
// client that disconnects mid-stream leaves at most unreferenced (harmless,
// content-addressed) objects and never a partial ref update.
func ServerHandlePush(rw io.ReadWriter, objects *objstore.Store, refs *refstore.Store) error {
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
	if kind != KindPushRequest {
		return sendProtocolError(rw, fmt.Errorf("%w: expected PushRequest, got %s", ErrProtocol, kind))
	}
	req, err := DecodePushRequest(payload)
	if err != nil {
		return sendProtocolError(rw, err)
	}

	remoteHead, _, err := refs.Get(req.Ref)
	if err != nil {
		return sendProtocolError(rw, err)
	}
	if err := WriteMessage(rw, KindPushResponse, PushResponse{RemoteHead: remoteHead}.Encode()); err != nil {
		return err
	}

	received := uint32(0)
	for {
		kind, payload, err = ReadMessage(rw)
		if err != nil {
			return err
		}
		switch kind {
		case KindPushObject:
			obj, err := DecodeObjectPayload(payload)
			if err != nil {
				return sendProtocolError(rw, err)
			}
			if !objects.Has(obj.Kind, obj.Digest) {
				if err := objects.PutEncoded(obj.Kind, obj.Digest, obj.Encoded); err != nil {
					return WriteMessage(rw, KindError, Error{Code: 400, Message: err.Error()}.Encode())
				}
			}
			received++
		case KindPushDone:
			goto applyRef
		default:
			return sendProtocolError(rw, fmt.Errorf("%w: unexpected %s during object stream", ErrProtocol, kind))
		}
	}

applyRef:
	if err := refs.CAS(req.Ref, req.Old, req.New); err != nil {
		var uce *refstore.UnexpectedCurrentError
		if errors.As(err, &uce) || errors.Is(err, refstore.ErrNotFastForward) {
			return WriteMessage(rw, KindError, Error{Code: NotFastForwardCode, Message: err.Error()}.Encode())
		}
		return WriteMessage(rw, KindError, Error{Code: 500, Message: err.Error()}.Encode())
	}

	return WriteMessage(rw, KindPushAck, PushAck{ReceivedObjects: received}.Encode())
}

func sendProtocolError(rw io.ReadWriter, cause error) error {
	werr := WriteMessage(rw, KindError, Error{Code: 400, Message: cause.Error()}.Encode())
	if werr != nil {
		return werr
	}
	return cause
}

type walkedObject struct {
	kind   object.Kind
	digest hash.Digest
}

func walkerObjects(result walker.Result) []walkedObject {
	out := make([]walkedObject, 0, result.Len())
	for _, d := range result.Commits {
		out = append(out, walkedObject{kind: object.CommitKind, digest: d})
	}
	for _, d := range result.Trees {
		out = append(out, walkedObject{kind: object.TreeKind, digest: d})
	}
	for _, d := range result.Blobs {
		out = append(out, walkedObject{kind: object.BlobKind, digest: d})
	}
	return out
}
