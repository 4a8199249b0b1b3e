package handler

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"clinic-records-api/internal/apperr"
)

const ServiceName = "clinic.v1.ClinicService"

// Method is the shape shared by every RPC of the service. Errors are returned in
// the apperr taxonomy; the gRPC descriptor converts them to statuses.
type Method func(h *Handler, ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)

// ClinicServer is the handler type the service descriptor is registered against.
type ClinicServer interface {
	Login(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

var methods = []struct {
	name string
	fn   Method
}{
	{"Login", (*Handler).Login},
	{"RegisterAccount", (*Handler).RegisterAccount},
	{"ListAccounts", (*Handler).ListAccounts},
	{"ChangeSecret", (*Handler).ChangeSecret},
	{"SetProfileImage", (*Handler).SetProfileImage},

	{"RegisterDoctor", (*Handler).RegisterDoctor},
	{"UpdateDoctor", (*Handler).UpdateDoctor},
	{"RemoveDoctor", (*Handler).RemoveDoctor},
	{"GetDoctor", (*Handler).GetDoctor},
	{"ListDoctors", (*Handler).ListDoctors},

	{"RegisterPatient", (*Handler).RegisterPatient},
	{"UpdatePatient", (*Handler).UpdatePatient},
	{"RemovePatient", (*Handler).RemovePatient},
	{"GetPatient", (*Handler).GetPatient},
	{"ListPatients", (*Handler).ListPatients},

	{"ScheduleAppointment", (*Handler).ScheduleAppointment},
	{"UpdateAppointment", (*Handler).UpdateAppointment},
	{"RemoveAppointment", (*Handler).RemoveAppointment},
	{"ListAppointments", (*Handler).ListAppointments},
}

// FullMethod returns the gRPC path of a method name, e.g. "/clinic.v1.ClinicService/Login".
func FullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

func ServiceDesc() grpc.ServiceDesc {
	desc := grpc.ServiceDesc{
		ServiceName: ServiceName,
		HandlerType: (*ClinicServer)(nil),
		Metadata:    "clinic/v1/clinic.proto",
	}
	for _, m := range methods {
		desc.Methods = append(desc.Methods, grpc.MethodDesc{
			MethodName: m.name,
			Handler:    unary(m.name, m.fn),
		})
	}
	return desc
}

// Register attaches h to s under ServiceName.
func Register(s grpc.ServiceRegistrar, h *Handler) {
	desc := ServiceDesc()
	s.RegisterService(&desc, h)
}

func unary(name string, fn Method) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		h := srv.(*Handler)
		call := func(ctx context.Context, req any) (any, error) {
			out, err := fn(h, ctx, req.(*structpb.Struct))
			if err != nil {
				return nil, apperr.GRPCError(err)
			}
			return out, nil
		}
		if interceptor == nil {
			return call(ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(name)}
		return interceptor(ctx, in, info, call)
	}
}
