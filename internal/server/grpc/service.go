package grpcserver

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified name of the Worklog service.
const ServiceName = "worklog.v1.Worklog"

// Method names of the Worklog service.
const (
	MethodRegister             = "Register"
	MethodLogin                = "Login"
	MethodCreateProject        = "CreateProject"
	MethodDeleteProject        = "DeleteProject"
	MethodListProjects         = "ListProjects"
	MethodInviteMembers        = "InviteMembers"
	MethodAnswerInvitation     = "AnswerInvitation"
	MethodListNotifications    = "ListNotifications"
	MethodRemoveNotification   = "RemoveNotification"
	MethodChangeRole           = "ChangeRole"
	MethodRemoveMember         = "RemoveMember"
	MethodCreateOrUpdateLog    = "CreateOrUpdateLog"
	MethodGetClientMonth       = "GetClientMonth"
	MethodGetStatistics        = "GetStatistics"
	MethodAuthorizeProjectRole = "AuthorizeProjectRole"
)

// FullMethod returns the RPC path of a Worklog method.
func FullMethod(name string) string { return "/" + ServiceName + "/" + name }

var publicMethods = map[string]bool{
	FullMethod(MethodRegister): true,
	FullMethod(MethodLogin):    true,
}

// WorklogServer is the server API of the Worklog service. Requests and
// responses are google.protobuf.Struct messages.
type WorklogServer interface {
	Register(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Login(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CreateProject(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DeleteProject(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListProjects(context.Context, *structpb.Struct) (*structpb.Struct, error)
	InviteMembers(context.Context, *structpb.Struct) (*structpb.Struct, error)
	AnswerInvitation(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListNotifications(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RemoveNotification(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ChangeRole(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RemoveMember(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CreateOrUpdateLog(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetClientMonth(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetStatistics(context.Context, *structpb.Struct) (*structpb.Struct, error)
	AuthorizeProjectRole(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type handlerFunc func(WorklogServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unary(name string, call handlerFunc) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, ic grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			s := srv.(WorklogServer)
			if ic == nil {
				return call(s, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(name)}
			return ic(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(s, ctx, req.(*structpb.Struct))
			})
		},
	}
}

// ServiceDesc describes the Worklog service for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*WorklogServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(MethodRegister, WorklogServer.Register),
		unary(MethodLogin, WorklogServer.Login),
		unary(MethodCreateProject, WorklogServer.CreateProject),
		unary(MethodDeleteProject, WorklogServer.DeleteProject),
		unary(MethodListProjects, WorklogServer.ListProjects),
		unary(MethodInviteMembers, WorklogServer.InviteMembers),
		unary(MethodAnswerInvitation, WorklogServer.AnswerInvitation),
		unary(MethodListNotifications, WorklogServer.ListNotifications),
		unary(MethodRemoveNotification, WorklogServer.RemoveNotification),
		unary(MethodChangeRole, WorklogServer.ChangeRole),
		unary(MethodRemoveMember, WorklogServer.RemoveMember),
		unary(MethodCreateOrUpdateLog, WorklogServer.CreateOrUpdateLog),
		unary(MethodGetClientMonth, WorklogServer.GetClientMonth),
		unary(MethodGetStatistics, WorklogServer.GetStatistics),
		unary(MethodAuthorizeProjectRole, WorklogServer.AuthorizeProjectRole),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "api/worklog/v1/worklog.proto",
}

// RegisterWorklogServer registers srv on s.
func RegisterWorklogServer(s grpc.ServiceRegistrar, srv WorklogServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// Client calls the Worklog service over cc.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps an established connection.
func NewClient(cc grpc.ClientConnInterface) *Client { return &Client{cc: cc} }

// Call invokes method with a request built from fields.
func (c *Client) Call(ctx context.Context, method string, fields map[string]any, opts ...grpc.CallOption) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, FullMethod(method), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
