// Package grpcserver exposes the Worklog gRPC API handlers.
package grpcserver

import (
	"context"
	"net"
	"time"

	"github.com/and161185/worklog/internal/convert"
	"github.com/and161185/worklog/internal/errs"
	"github.com/and161185/worklog/internal/model"
	"github.com/and161185/worklog/internal/service"
	"github.com/gofrs/uuid/v5"
	"google.golang.org/grpc/peer"
	"google.golang.org/protobuf/types/known/structpb"
)

// RoleAuthorizer resolves a caller's project membership against a minimum role.
type RoleAuthorizer interface {
	AuthorizeProjectRole(ctx context.Context, userID, projectID uuid.UUID, minimum model.Role) (*model.Client, error)
}

// Services groups the application services served over gRPC.
type Services struct {
	Auth        service.AuthService
	Logs        service.LogService
	Stats       service.StatsService
	Projects    service.ProjectService
	Invitations service.InvitationService
	Roles       RoleAuthorizer
}

// Server wires services into gRPC handlers.
type Server struct {
	svc Services
	loc *time.Location
}

var _ WorklogServer = (*Server)(nil)

// New constructs a gRPC server. Bare dates in requests are read in loc.
func New(svc Services, loc *time.Location) *Server {
	if loc == nil {
		loc = time.UTC
	}
	return &Server{svc: svc, loc: loc}
}

func empty() *structpb.Struct { return &structpb.Struct{Fields: map[string]*structpb.Value{}} }

// caller returns the identity stored by AuthUnary.
func caller(ctx context.Context) (model.Caller, error) {
	c, ok := CallerFromCtx(ctx)
	if !ok {
		return model.Caller{}, errs.ErrUnauthenticated
	}
	return c, nil
}

func remoteIP(ctx context.Context) string {
	p, ok := peer.FromContext(ctx)
	if !ok || p.Addr == nil {
		return ""
	}
	if host, _, err := net.SplitHostPort(p.Addr.String()); err == nil {
		return host
	}
	return p.Addr.String()
}

// --- Auth ---

// Register creates a new user account.
func (s *Server) Register(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	f := convert.Read(req)
	r := service.Registration{
		Email:     f.String("email"),
		FirstName: f.String("firstName"),
		LastName:  f.String("lastName"),
		Password:  f.String("password"),
	}
	if err := f.Err(); err != nil {
		return nil, err
	}
	id, err := s.svc.Auth.Register(ctx, r)
	if err != nil {
		return nil, err
	}
	return structpb.NewStruct(map[string]any{"userId": id.String()})
}

// Login authenticates a user and returns an access token.
func (s *Server) Login(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	f := convert.Read(req)
	email, password := f.String("email"), f.String("password")
	if err := f.Err(); err != nil {
		return nil, err
	}
	tok, u, err := s.svc.Auth.LoginWithIP(ctx, email, password, remoteIP(ctx))
	if err != nil {
		return nil, err
	}
	return convert.TokensStruct(tok, u)
}

// --- Projects ---

// CreateProject creates a project with the caller as its admin.
func (s *Server) CreateProject(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	c, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	f := convert.Read(req)
	name, desc := f.String("name"), f.String("description")
	if err := f.Err(); err != nil {
		return nil, err
	}
	p, err := s.svc.Projects.CreateProject(ctx, c, name, desc)
	if err != nil {
		return nil, err
	}
	return convert.ProjectStruct(*p)
}

// DeleteProject deletes a project created by the caller.
func (s *Server) DeleteProject(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	c, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	f := convert.Read(req)
	pid := f.RequiredUUID("projectId")
	if err := f.Err(); err != nil {
		return nil, err
	}
	if err := s.svc.Projects.DeleteProject(ctx, c, pid); err != nil {
		return nil, err
	}
	return empty(), nil
}

// ListProjects lists the caller's projects.
func (s *Server) ListProjects(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	c, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	ps, err := s.svc.Projects.ListProjects(ctx, c)
	if err != nil {
		return nil, err
	}
	return convert.ProjectsStruct(ps)
}

// ChangeRole sets a member's role.
func (s *Server) ChangeRole(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	c, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	f := convert.Read(req)
	pid, cid := f.RequiredUUID("projectId"), f.RequiredUUID("clientId")
	role, _ := model.ParseRole(f.String("role"))
	if err := f.Err(); err != nil {
		return nil, err
	}
	if err := s.svc.Projects.ChangeRole(ctx, c, pid, cid, role); err != nil {
		return nil, err
	}
	return empty(), nil
}

// RemoveMember removes a member from a project.
func (s *Server) RemoveMember(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	c, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	f := convert.Read(req)
	pid, cid := f.RequiredUUID("projectId"), f.RequiredUUID("clientId")
	if err := f.Err(); err != nil {
		return nil, err
	}
	if err := s.svc.Projects.RemoveMember(ctx, c, pid, cid); err != nil {
		return nil, err
	}
	return empty(), nil
}

// AuthorizeProjectRole returns the caller's membership when its role is at
// least the requested minimum (USER when omitted).
func (s *Server) AuthorizeProjectRole(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	c, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	f := convert.Read(req)
	pid := f.RequiredUUID("projectId")
	if err := f.Err(); err != nil {
		return nil, err
	}
	minimum, err := model.ParseRole(f.String("minimum"))
	if err != nil {
		v := errs.NewValidation()
		v.Add("minimum", "must be one of ADMIN, MANAGER, USER")
		return nil, v
	}
	if minimum == "" {
		minimum = model.RoleUser
	}
	cl, err := s.svc.Roles.AuthorizeProjectRole(ctx, c.UserID, pid, minimum)
	if err != nil {
		return nil, err
	}
	return convert.ClientStruct(*cl)
}

// --- Invitations ---

// InviteMembers invites users to a project.
func (s *Server) InviteMembers(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	c, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	f := convert.Read(req)
	pid, ids := f.RequiredUUID("projectId"), f.UUIDs("userIds")
	if err := f.Err(); err != nil {
		return nil, err
	}
	sent, err := s.svc.Invitations.Invite(ctx, c, pid, ids)
	if err != nil {
		return nil, err
	}
	return structpb.NewStruct(map[string]any{"sent": sent})
}

// AnswerInvitation accepts or declines an invitation.
func (s *Server) AnswerInvitation(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	c, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	f := convert.Read(req)
	nid, accept := f.RequiredUUID("notificationId"), f.Bool("accept")
	if err := f.Err(); err != nil {
		return nil, err
	}
	if err := s.svc.Invitations.Answer(ctx, c, nid, accept); err != nil {
		return nil, err
	}
	return empty(), nil
}

// ListNotifications returns the caller's inbox.
func (s *Server) ListNotifications(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	c, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	ns, err := s.svc.Invitations.List(ctx, c)
	if err != nil {
		return nil, err
	}
	return convert.NotificationsStruct(ns)
}

// RemoveNotification deletes a notification addressed to the caller.
func (s *Server) RemoveNotification(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	c, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	f := convert.Read(req)
	nid := f.RequiredUUID("notificationId")
	if err := f.Err(); err != nil {
		return nil, err
	}
	if err := s.svc.Invitations.Remove(ctx, c, nid); err != nil {
		return nil, err
	}
	return empty(), nil
}

// --- Logs ---

// CreateOrUpdateLog writes a day's log with optimistic concurrency.
func (s *Server) CreateOrUpdateLog(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	c, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	in, err := convert.LogInputFrom(req)
	if err != nil {
		return nil, err
	}
	v, err := s.svc.Logs.CreateOrUpdateLog(ctx, c, in)
	if err != nil {
		return nil, err
	}
	return convert.LogVersionStruct(v)
}

// GetClientMonth returns a member's month page.
func (s *Server) GetClientMonth(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	c, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	f := convert.Read(req)
	pid, cid := f.RequiredUUID("projectId"), f.RequiredUUID("clientId")
	month := f.Time("month", s.loc)
	if err := f.Err(); err != nil {
		return nil, err
	}
	cm, err := s.svc.Logs.ClientMonth(ctx, c, pid, cid, month)
	if err != nil {
		return nil, err
	}
	return convert.ClientMonthStruct(cm)
}

// GetStatistics returns project statistics for a date range.
func (s *Server) GetStatistics(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	c, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	filter, err := convert.StatsFilterFrom(req, s.loc)
	if err != nil {
		return nil, err
	}
	st, err := s.svc.Stats.GetProjectStatistics(ctx, c, filter)
	if err != nil {
		return nil, err
	}
	return convert.StatisticsStruct(st)
}
