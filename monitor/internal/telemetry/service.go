// Package telemetry описывает gRPC сервис ctg.telemetry.v1.DataService.
// Сообщения передаются как google.protobuf.Struct, поля описаны в messages.go.
package telemetry

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	ServiceName = "ctg.telemetry.v1.DataService"

	DataService_PushSamples_FullMethodName = "/ctg.telemetry.v1.DataService/PushSamples"
	DataService_EndSession_FullMethodName  = "/ctg.telemetry.v1.DataService/EndSession"
)

// DataServiceClient клиент сервиса приема измерений
type DataServiceClient interface {
	// PushSamples двунаправленный стрим: измерения от клиента, подтверждения от сервера
	PushSamples(ctx context.Context, opts ...grpc.CallOption) (grpc.BidiStreamingClient[structpb.Struct, structpb.Struct], error)
	// EndSession завершает сессию и возвращает итоги
	EndSession(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
}

type dataServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewDataServiceClient(cc grpc.ClientConnInterface) DataServiceClient {
	return &dataServiceClient{cc}
}

func (c *dataServiceClient) PushSamples(ctx context.Context, opts ...grpc.CallOption) (grpc.BidiStreamingClient[structpb.Struct, structpb.Struct], error) {
	cOpts := append([]grpc.CallOption{grpc.StaticMethod()}, opts...)
	stream, err := c.cc.NewStream(ctx, &DataService_ServiceDesc.Streams[0], DataService_PushSamples_FullMethodName, cOpts...)
	if err != nil {
		return nil, err
	}
	x := &grpc.GenericClientStream[structpb.Struct, structpb.Struct]{ClientStream: stream}
	return x, nil
}

func (c *dataServiceClient) EndSession(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	cOpts := append([]grpc.CallOption{grpc.StaticMethod()}, opts...)
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, DataService_EndSession_FullMethodName, in, out, cOpts...); err != nil {
		return nil, err
	}
	return out, nil
}

// DataService_PushSamplesClient клиентская сторона стрима измерений
type DataService_PushSamplesClient = grpc.BidiStreamingClient[structpb.Struct, structpb.Struct]

// DataServiceServer серверная сторона сервиса
type DataServiceServer interface {
	PushSamples(grpc.BidiStreamingServer[structpb.Struct, structpb.Struct]) error
	EndSession(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// UnimplementedDataServiceServer встраивается в реализации для совместимости
type UnimplementedDataServiceServer struct{}

func (UnimplementedDataServiceServer) PushSamples(grpc.BidiStreamingServer[structpb.Struct, structpb.Struct]) error {
	return status.Errorf(codes.Unimplemented, "method PushSamples not implemented")
}

func (UnimplementedDataServiceServer) EndSession(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Errorf(codes.Unimplemented, "method EndSession not implemented")
}

// DataService_PushSamplesServer серверная сторона стрима измерений
type DataService_PushSamplesServer = grpc.BidiStreamingServer[structpb.Struct, structpb.Struct]

func RegisterDataServiceServer(s grpc.ServiceRegistrar, srv DataServiceServer) {
	s.RegisterService(&DataService_ServiceDesc, srv)
}

func _DataService_PushSamples_Handler(srv interface{}, stream grpc.ServerStream) error {
	return srv.(DataServiceServer).PushSamples(&grpc.GenericServerStream[structpb.Struct, structpb.Struct]{ServerStream: stream})
}

func _DataService_EndSession_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(DataServiceServer).EndSession(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: DataService_EndSession_FullMethodName,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(DataServiceServer).EndSession(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// DataService_ServiceDesc описание сервиса для grpc.Server
var DataService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*DataServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "EndSession",
			Handler:    _DataService_EndSession_Handler,
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "PushSamples",
			Handler:       _DataService_PushSamples_Handler,
			ServerStreams: true,
			ClientStreams: true,
		},
	},
	Metadata: "ctg/telemetry/v1/telemetry.proto",
}
