package transport

import (
	"encoding/json"
	"fmt"
	"log"
	"net"
	"os"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/encoding"
)

// jsonCodec replaces grpc's default protobuf codec with plain JSON so the
// ControlEnvelope wire shape can be shared verbatim between the WebSocket
// and gRPC transports without a .proto file.
type jsonCodec struct{}

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) Marshal(v interface{}) ([]byte, error) { return json.Marshal(v) }

func (jsonCodec) Unmarshal(data []byte, v interface{}) error { return json.Unmarshal(data, v) }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// ControlServer is the gRPC service interface: a single bidirectional
// stream carrying ControlEnvelope in both directions, matching spec §6's
// subscribe-as-a-stream-of-events contract.
type ControlServer interface {
	Stream(Control_StreamServer) error
}

type UnimplementedControlServer struct{}

func (UnimplementedControlServer) Stream(Control_StreamServer) error {
	return fmt.Errorf("transport: Stream not implemented")
}

// Control_StreamServer is the server-side handle for the bidirectional
// stream, narrowed to what Hub.Stream needs.
type Control_StreamServer interface {
	Send(*ControlEnvelope) error
	Recv() (*ControlEnvelope, error)
	grpc.ServerStream
}

type controlStreamServer struct {
	grpc.ServerStream
}

func (x *controlStreamServer) Send(m *ControlEnvelope) error {
	return x.ServerStream.SendMsg(m)
}

func (x *controlStreamServer) Recv() (*ControlEnvelope, error) {
	m := new(ControlEnvelope)
	if err := x.ServerStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func _Control_Stream_Handler(srv interface{}, stream grpc.ServerStream) error {
	return srv.(ControlServer).Stream(&controlStreamServer{stream})
}

var _Control_serviceDesc = grpc.ServiceDesc{
	ServiceName: "transcore.Control",
	HandlerType: (*ControlServer)(nil),
	Methods:     []grpc.MethodDesc{},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Stream",
			Handler:       _Control_Stream_Handler,
			ServerStreams: true,
			ClientStreams: true,
		},
	},
	Metadata: "transport/control.proto",
}

func RegisterControlServer(s *grpc.Server, srv ControlServer) {
	s.RegisterService(&_Control_serviceDesc, srv)
}

// ServeGRPC starts a gRPC server exposing the Hub as a ControlServer on
// addr. addr is interpreted the same way as the teacher's listener: a
// "unix:" prefix selects a Unix domain socket, "npipe:" a Windows named
// pipe, anything else plain TCP.
func (h *Hub) ServeGRPC(addr string) error {
	lis, err := listenControl(addr)
	if err != nil {
		return fmt.Errorf("transport: listen %s: %w", addr, err)
	}

	server := grpc.NewServer(
		grpc.Creds(insecure.NewCredentials()),
		grpc.ForceServerCodec(jsonCodec{}),
	)
	RegisterControlServer(server, h)

	log.Printf("transport: gRPC control server listening on %s", addr)
	return server.Serve(lis)
}

func listenControl(addr string) (net.Listener, error) {
	switch {
	case strings.HasPrefix(addr, "unix:"):
		path := strings.TrimPrefix(addr, "unix:")
		removeIfExists(path)
		return net.Listen("unix", path)
	case strings.HasPrefix(addr, "npipe:"):
		return listenPipe(strings.TrimPrefix(addr, "npipe:"))
	default:
		return net.Listen("tcp", addr)
	}
}

func removeIfExists(path string) {
	if _, err := os.Stat(path); err == nil {
		_ = os.Remove(path)
	}
}
