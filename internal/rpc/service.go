// Package rpc serves the PetService over gRPC. Messages are
// google.protobuf.Struct values so the service needs no generated code.
package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// #region service-desc
const (
	// ServiceName is the fully qualified gRPC service name.
	ServiceName = "cardpet.v1.PetService"
	// OwnerMetadataKey carries the calling owner's id.
	OwnerMetadataKey = "owner-id"
)

// PetServer is the server API for PetService.
type PetServer interface {
	CreateContact(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UpdateContact(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListContacts(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetPet(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryMethod func(PetServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(name string, call unaryMethod) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(PetServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: FullMethod(name),
			}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(PetServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// PetServiceDesc describes PetService for grpc.Server.RegisterService.
var PetServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*PetServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryHandler("CreateContact", PetServer.CreateContact),
		unaryHandler("UpdateContact", PetServer.UpdateContact),
		unaryHandler("ListContacts", PetServer.ListContacts),
		unaryHandler("GetPet", PetServer.GetPet),
	},
	Streams: []grpc.StreamDesc{},
}

// RegisterPetServer registers srv on s.
func RegisterPetServer(s grpc.ServiceRegistrar, srv PetServer) {
	s.RegisterService(&PetServiceDesc, srv)
}

// FullMethod returns the "/service/method" path for a PetService method.
func FullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

// #endregion service-desc
