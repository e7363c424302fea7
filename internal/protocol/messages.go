package protocol

import (
	"fmt"

	"github.com/helixvcs/helix/internal/binutil"
	"github.com/helixvcs/helix/plumbing/hash"
	"github.com/helixvcs/helix/plumbing/object"
)

// ProtocolVersion is this implementation's wire version, sent in Hello and
// checked by the server against the client's Hello. A mismatch yields
// Error(code=426).
const ProtocolVersion uint32 = 1

// IncompatibleVersionCode is the code (426, matching HTTP's "Upgrade
// Required") carried in an Error message when Hello negotiation fails.
const IncompatibleVersionCode uint32 = 426

// NotFastForwardCode is the Error code a server sends when a push's ref CAS
// fails because expected no longer matches the remote's current value.
const NotFastForwardCode uint32 = 409

type Hello struct {
	ClientVersion uint32
}

func (m Hello) Encode() []byte {
	w := binutil.NewWriter(4)
	w.U32(m.ClientVersion)
	return w.Bytes()
}

func DecodeHello(b []byte) (Hello, error) {
	r := binutil.NewReader(b)
	v, err := r.U32()
	if err != nil {
		return Hello{}, fmt.Errorf("protocol: decode Hello: %w", err)
	}
	return Hello{ClientVersion: v}, nil
}

type HelloAck struct {
	ServerVersion uint32
}

func (m HelloAck) Encode() []byte {
	w := binutil.NewWriter(4)
	w.U32(m.ServerVersion)
	return w.Bytes()
}

func DecodeHelloAck(b []byte) (HelloAck, error) {
	r := binutil.NewReader(b)
	v, err := r.U32()
	if err != nil {
		return HelloAck{}, fmt.Errorf("protocol: decode HelloAck: %w", err)
	}
	return HelloAck{ServerVersion: v}, nil
}

type PushRequest struct {
	Repo string
	Ref  string
	Old  hash.Digest // hash.Zero means "None" (ref did not exist on the client's last knowledge)
	New  hash.Digest
}

func (m PushRequest) Encode() []byte {
	w := binutil.NewWriter(64 + len(m.Repo) + len(m.Ref))
	writeString(w, m.Repo)
	writeString(w, m.Ref)
	w.Raw(m.Old[:])
	w.Raw(m.New[:])
	return w.Bytes()
}

func DecodePushRequest(b []byte) (PushRequest, error) {
	r := binutil.NewReader(b)
	repo, err := readString(r)
	if err != nil {
		return PushRequest{}, fmt.Errorf("protocol: decode PushRequest repo: %w", err)
	}
	ref, err := readString(r)
	if err != nil {
		return PushRequest{}, fmt.Errorf("protocol: decode PushRequest ref: %w", err)
	}
	old, err := readDigest(r)
	if err != nil {
		return PushRequest{}, fmt.Errorf("protocol: decode PushRequest old: %w", err)
	}
	new_, err := readDigest(r)
	if err != nil {
		return PushRequest{}, fmt.Errorf("protocol: decode PushRequest new: %w", err)
	}
	return PushRequest{Repo: repo, Ref: ref, Old: old, New: new_}, nil
}

type PushResponse struct {
	RemoteHead hash.Digest // hash.Zero means the ref does not exist on the server
}

func (m PushResponse) Encode() []byte {
	w := binutil.NewWriter(hash.Size)
	w.Raw(m.RemoteHead[:])
	return w.Bytes()
}

func DecodePushResponse(b []byte) (PushResponse, error) {
	r := binutil.NewReader(b)
	d, err := readDigest(r)
	if err != nil {
		return PushResponse{}, fmt.Errorf("protocol: decode PushResponse: %w", err)
	}
	return PushResponse{RemoteHead: d}, nil
}

// ObjectPayload is the common shape of PushObject and PullObject: a kind, a
// digest and the encoded (on-disk, e.g. zstd-for-blobs) bytes, copied
// straight out of or into the object store via GetEncoded/PutEncoded.
type ObjectPayload struct {
	Kind    object.Kind
	Digest  hash.Digest
	Encoded []byte
}

func (m ObjectPayload) Encode() []byte {
	w := binutil.NewWriter(1 + hash.Size + 4 + len(m.Encoded))
	w.U8(uint8(m.Kind))
	w.Raw(m.Digest[:])
	w.U32(uint32(len(m.Encoded)))
	w.Raw(m.Encoded)
	return w.Bytes()
}

func DecodeObjectPayload(b []byte) (ObjectPayload, error) {
	r := binutil.NewReader(b)
	kindByte, err := r.U8()
	if err != nil {
		return ObjectPayload{}, fmt.Errorf("protocol: decode object kind: %w", err)
	}
	digest, err := readDigest(r)
	if err != nil {
		return ObjectPayload{}, fmt.Errorf("protocol: decode object digest: %w", err)
	}
	n, err := r.U32()
	if err != nil {
		return ObjectPayload{}, fmt.Errorf("protocol: decode object length: %w", err)
	}
	encoded, err := r.Raw(int(n))
	if err != nil {
		return ObjectPayload{}, fmt.Errorf("protocol: decode object payload: %w", err)
	}
	out := make([]byte, len(encoded))
	copy(out, encoded)
	return ObjectPayload{Kind: object.Kind(kindByte), Digest: digest, Encoded: out}, nil
}

type PushAck struct {
	ReceivedObjects uint32
}

func (m PushAck) Encode() []byte {
	w := binutil.NewWriter(4)
	w.U32(m.ReceivedObjects)
	return w.Bytes()
}

func DecodePushAck(b []byte) (PushAck, error) {
	r := binutil.NewReader(b)
	n, err := r.U32()
	if err != nil {
		return PushAck{}, fmt.Errorf("protocol: decode PushAck: %w", err)
	}
	return PushAck{ReceivedObjects: n}, nil
}

type PullRequest struct {
	Repo string
	Ref  string
	Have hash.Digest // the client's current commit for Ref, hash.Zero if none
}

func (m PullRequest) Encode() []byte {
	w := binutil.NewWriter(32 + len(m.Repo) + len(m.Ref))
	writeString(w, m.Repo)
	writeString(w, m.Ref)
	w.Raw(m.Have[:])
	return w.Bytes()
}

func DecodePullRequest(b []byte) (PullRequest, error) {
	r := binutil.NewReader(b)
	repo, err := readString(r)
	if err != nil {
		return PullRequest{}, fmt.Errorf("protocol: decode PullRequest repo: %w", err)
	}
	ref, err := readString(r)
	if err != nil {
		return PullRequest{}, fmt.Errorf("protocol: decode PullRequest ref: %w", err)
	}
	have, err := readDigest(r)
	if err != nil {
		return PullRequest{}, fmt.Errorf("protocol: decode PullRequest have: %w", err)
	}
	return PullRequest{Repo: repo, Ref: ref, Have: have}, nil
}

type PullAck struct {
	SentObjects   uint32
	NewRemoteHead hash.Digest
}

func (m PullAck) Encode() []byte {
	w := binutil.NewWriter(4 + hash.Size)
	w.U32(m.SentObjects)
	w.Raw(m.NewRemoteHead[:])
	return w.Bytes()
}

func DecodePullAck(b []byte) (PullAck, error) {
	r := binutil.NewReader(b)
	n, err := r.U32()
	if err != nil {
		return PullAck{}, fmt.Errorf("protocol: decode PullAck count: %w", err)
	}
	d, err := readDigest(r)
	if err != nil {
		return PullAck{}, fmt.Errorf("protocol: decode PullAck head: %w", err)
	}
	return PullAck{SentObjects: n, NewRemoteHead: d}, nil
}

type Error struct {
	Code    uint32
	Message string
}

func (m Error) Encode() []byte {
	w := binutil.NewWriter(8 + len(m.Message))
	w.U32(m.Code)
	writeString(w, m.Message)
	return w.Bytes()
}

func DecodeError(b []byte) (Error, error) {
	r := binutil.NewReader(b)
	code, err := r.U32()
	if err != nil {
		return Error{}, fmt.Errorf("protocol: decode Error code: %w", err)
	}
	msg, err := readString(r)
	if err != nil {
		return Error{}, fmt.Errorf("protocol: decode Error message: %w", err)
	}
	return Error{Code: code, Message: msg}, nil
}

func (e Error) Error() string {
	return fmt.Sprintf("protocol: remote error %d: %s", e.Code, e.Message)
}

func writeString(w *binutil.Writer, s string) {
	w.U32(uint32(len(s)))
	w.Raw([]byte(s))
}

func readString(r *binutil.Reader) (string, error) {
	n, err := r.U32()
	if err != nil {
		return "", err
	}
	b, err := r.Raw(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func readDigest(r *binutil.Reader) (hash.Digest, error) {
	b, err := r.Raw(hash.Size)
	if err != nil {
		return hash.Digest{}, err
	}
	var d hash.Digest
	copy(d[:], b)
	return d, nil
}
