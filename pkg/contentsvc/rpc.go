package contentsvc

import (
	"context"
	"encoding/json"
	"errors"
	"io"

	"github.com/opencontainers/go-digest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
)

// The content service's gRPC surface: the containerd verbs over a
// hand-rolled ServiceDesc with a JSON codec. No protobuf is involved —
// the wire messages are this package's own types — so binary
// compatibility with containerd remains the embedding application's
// concern; this transport exists so the service is actually reachable
// over the network, not just in-process.

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "repostack.content.v1.Content"

// CodecName is the gRPC content-subtype clients must dial with
// (grpc.CallContentSubtype(contentsvc.CodecName)).
const CodecName = "json"

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                       { return CodecName }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// Wire messages for the unary verbs and the Read stream. The Write
// stream reuses WriteRequest/WriteResponse directly.

type InfoRequest struct {
	Digest digest.Digest `json:"digest"`
}

type InfoResponse struct {
	Digest digest.Digest `json:"digest"`
	Size   int64         `json:"size"`
}

type StatusRequest struct {
	Ref string `json:"ref"`
}

type StatusResponse struct {
	Ref    string `json:"ref"`
	Offset int64  `json:"offset"`
}

type AbortRequest struct {
	Ref string `json:"ref"`
}

type AbortResponse struct{}

type ReadRequest struct {
	Digest digest.Digest `json:"digest"`
	Offset int64         `json:"offset"`
}

type ReadResponse struct {
	Data []byte `json:"data"`
}

// contentAPI is the handler contract ContentServiceDesc binds.
type contentAPI interface {
	Info(ctx context.Context, req *InfoRequest) (*InfoResponse, error)
	Status(ctx context.Context, req *StatusRequest) (*StatusResponse, error)
	Abort(ctx context.Context, req *AbortRequest) (*AbortResponse, error)
}

// rpcAdapter binds the Service to the gRPC handler shapes.
type rpcAdapter struct {
	svc *Service
}

func (a *rpcAdapter) Info(ctx context.Context, req *InfoRequest) (*InfoResponse, error) {
	info, err := a.svc.Info(req.Digest)
	if err != nil {
		return nil, err
	}
	return &InfoResponse{Digest: info.Digest, Size: info.Size}, nil
}

func (a *rpcAdapter) Status(ctx context.Context, req *StatusRequest) (*StatusResponse, error) {
	resp, err := a.svc.Status(req.Ref)
	if err != nil {
		return nil, err
	}
	return &StatusResponse{Ref: req.Ref, Offset: resp.Offset}, nil
}

func (a *rpcAdapter) Abort(ctx context.Context, req *AbortRequest) (*AbortResponse, error) {
	if err := a.svc.Abort(req.Ref); err != nil {
		return nil, err
	}
	return &AbortResponse{}, nil
}

func (a *rpcAdapter) read(req *ReadRequest, stream grpc.ServerStream) error {
	ch, err := a.svc.Read(stream.Context(), req.Digest, req.Offset)
	if err != nil {
		return err
	}
	for chunk := range ch {
		if err := stream.SendMsg(&ReadResponse{Data: chunk}); err != nil {
			return err
		}
	}
	return nil
}

func (a *rpcAdapter) write(stream grpc.ServerStream) error {
	ws := a.svc.NewWriteStream()
	for {
		req := new(WriteRequest)
		if err := stream.RecvMsg(req); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		resp, err := ws.Handle(*req)
		if err != nil {
			return err
		}
		if err := stream.SendMsg(&resp); err != nil {
			return err
		}
	}
}

// ContentServiceDesc is the hand-rolled grpc.ServiceDesc, playing the
// role protoc-generated registration code would.
var ContentServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*contentAPI)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Info", Handler: infoHandler},
		{MethodName: "Status", Handler: statusHandler},
		{MethodName: "Abort", Handler: abortHandler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "Read", Handler: readHandler, ServerStreams: true},
		{StreamName: "Write", Handler: writeHandler, ServerStreams: true, ClientStreams: true},
	},
}

func infoHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(InfoRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(contentAPI).Info(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/Info"}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(contentAPI).Info(ctx, req.(*InfoRequest))
	})
}

func statusHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(StatusRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(contentAPI).Status(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/Status"}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(contentAPI).Status(ctx, req.(*StatusRequest))
	})
}

func abortHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(AbortRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(contentAPI).Abort(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/Abort"}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(contentAPI).Abort(ctx, req.(*AbortRequest))
	})
}

func readHandler(srv any, stream grpc.ServerStream) error {
	req := new(ReadRequest)
	if err := stream.RecvMsg(req); err != nil {
		return err
	}
	return srv.(*rpcAdapter).read(req, stream)
}

func writeHandler(srv any, stream grpc.ServerStream) error {
	return srv.(*rpcAdapter).write(stream)
}
