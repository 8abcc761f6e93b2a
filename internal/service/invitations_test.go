package service

import (
	"context"
	"testing"

	"github.com/and161185/worklog/internal/errs"
	"github.com/and161185/worklog/internal/model"
	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/require"
)

type invFixture struct {
	project  *model.Project
	admin    *model.Client
	existing *model.Client
	invitee  *model.User
	users    *fakeUsers
	clients  *fakeClients
	projects *fakeProjects
	notifs   *fakeNotifs
	svc      *InvitationServiceImpl
}

func newInvFixture(t *testing.T) *invFixture {
	t.Helper()
	f := &invFixture{}
	pid := newID()
	f.admin = member(pid, model.RoleAdmin)
	f.existing = member(pid, model.RoleUser)
	f.project = &model.Project{ID: pid, Name: "Apollo", CreatedByID: f.admin.UserID}
	f.invitee = &model.User{ID: newID(), Email: "new@example.com", FirstName: "Nia", LastName: "Newcomer"}

	f.clients = newFakeClients(f.admin, f.existing)
	f.users = newFakeUsers(userOf(f.admin), userOf(f.existing), f.invitee)
	f.projects = newFakeProjects(f.clients, f.project)
	f.notifs = newFakeNotifs(f.clients)
	f.svc = NewInvitationService(f.notifs, f.projects, f.clients, f.users, NewGuard(f.clients, testKey))
	return f
}

func (f *invFixture) inbox(t *testing.T, userID uuid.UUID) []model.Notification {
	t.Helper()
	list, err := f.svc.List(context.Background(), model.Caller{UserID: userID})
	require.NoError(t, err)
	return list
}

func TestInvite(t *testing.T) {
	t.Parallel()
	f := newInvFixture(t)
	ctx := context.Background()

	_, err := f.svc.Invite(ctx, as(f.existing), f.project.ID, []uuid.UUID{f.invitee.ID})
	require.ErrorIs(t, err, errs.ErrForbidden)

	_, err = f.svc.Invite(ctx, as(f.admin), f.project.ID, nil)
	require.True(t, errs.IsValidation(err))

	sent, err := f.svc.Invite(ctx, as(f.admin), f.project.ID,
		[]uuid.UUID{f.invitee.ID, f.invitee.ID, f.existing.UserID, newID()})
	require.NoError(t, err)
	require.Equal(t, 1, sent)

	inbox := f.inbox(t, f.invitee.ID)
	require.Len(t, inbox, 1)
	require.True(t, inbox[0].Pending())
	require.Equal(t, "You have been invited to Apollo project", inbox[0].Message)
	require.Equal(t, f.admin.UserID, inbox[0].SentByID)
}

func TestAnswer_AcceptCreatesMembership(t *testing.T) {
	t.Parallel()
	f := newInvFixture(t)
	ctx := context.Background()
	_, err := f.svc.Invite(ctx, as(f.admin), f.project.ID, []uuid.UUID{f.invitee.ID})
	require.NoError(t, err)
	n := f.inbox(t, f.invitee.ID)[0]
	caller := model.Caller{UserID: f.invitee.ID}

	// only the recipient can answer
	require.ErrorIs(t, f.svc.Answer(ctx, as(f.existing), n.ID, true), errs.ErrNotFound)

	require.NoError(t, f.svc.Answer(ctx, caller, n.ID, true))
	c, err := f.clients.GetByUser(ctx, f.invitee.ID, f.project.ID)
	require.NoError(t, err)
	require.Equal(t, model.RoleUser, c.Role)
	require.Equal(t, f.admin.UserID, c.CreatedByID)

	reply := f.inbox(t, f.admin.UserID)
	require.Len(t, reply, 1)
	require.Equal(t, "Nia Newcomer has accepted your invitation", reply[0].Message)

	answered := f.inbox(t, f.invitee.ID)[0]
	require.False(t, answered.Pending())
	require.Equal(t, "You've accepted the invitation", answered.Message)

	require.ErrorIs(t, f.svc.Answer(ctx, caller, n.ID, false), errs.ErrVersionConflict)
}

func TestAnswer_Decline(t *testing.T) {
	t.Parallel()
	f := newInvFixture(t)
	ctx := context.Background()
	_, err := f.svc.Invite(ctx, as(f.admin), f.project.ID, []uuid.UUID{f.invitee.ID})
	require.NoError(t, err)
	n := f.inbox(t, f.invitee.ID)[0]

	require.NoError(t, f.svc.Answer(ctx, model.Caller{UserID: f.invitee.ID}, n.ID, false))
	_, err = f.clients.GetByUser(ctx, f.invitee.ID, f.project.ID)
	require.ErrorIs(t, err, errs.ErrNotFound)
	require.Nil(t, f.notifs.answered[0].Member)
}

func TestAnswer_ProjectGone(t *testing.T) {
	t.Parallel()
	f := newInvFixture(t)
	ctx := context.Background()
	_, err := f.svc.Invite(ctx, as(f.admin), f.project.ID, []uuid.UUID{f.invitee.ID})
	require.NoError(t, err)
	n := f.inbox(t, f.invitee.ID)[0]
	delete(f.projects.byID, f.project.ID)

	require.NoError(t, f.svc.Answer(ctx, model.Caller{UserID: f.invitee.ID}, n.ID, true))
	require.Nil(t, f.notifs.answered[0].Member)
}

func TestRemoveNotification(t *testing.T) {
	t.Parallel()
	f := newInvFixture(t)
	ctx := context.Background()
	_, err := f.svc.Invite(ctx, as(f.admin), f.project.ID, []uuid.UUID{f.invitee.ID})
	require.NoError(t, err)
	n := f.inbox(t, f.invitee.ID)[0]

	require.ErrorIs(t, f.svc.Remove(ctx, as(f.admin), n.ID), errs.ErrNotFound)
	require.NoError(t, f.svc.Remove(ctx, model.Caller{UserID: f.invitee.ID}, n.ID))
	require.Empty(t, f.inbox(t, f.invitee.ID))
}

func TestInvite_SkipsPendingInvitee(t *testing.T) {
	t.Parallel()
	f := newInvFixture(t)
	ctx := context.Background()

	sent, err := f.svc.Invite(ctx, as(f.admin), f.project.ID, []uuid.UUID{f.invitee.ID})
	require.NoError(t, err)
	require.Equal(t, 1, sent)

	sent, err = f.svc.Invite(ctx, as(f.admin), f.project.ID, []uuid.UUID{f.invitee.ID})
	require.NoError(t, err)
	require.Zero(t, sent)
	require.Len(t, f.inbox(t, f.invitee.ID), 1)

	// once declined, the user can be invited again
	n := f.inbox(t, f.invitee.ID)[0]
	require.NoError(t, f.svc.Answer(ctx, model.Caller{UserID: f.invitee.ID}, n.ID, false))
	sent, err = f.svc.Invite(ctx, as(f.admin), f.project.ID, []uuid.UUID{f.invitee.ID})
	require.NoError(t, err)
	require.Equal(t, 1, sent)
}

func TestAnswer_AcceptWhenAlreadyMember(t *testing.T) {
	t.Parallel()
	f := newInvFixture(t)
	ctx := context.Background()
	caller := model.Caller{UserID: f.invitee.ID}
	pid := f.project.ID

	// two invitations left pending for the same project
	for range 2 {
		require.NoError(t, f.notifs.Create(ctx, &model.Notification{
			ID: newID(), UserID: f.invitee.ID, SentByID: f.admin.UserID, ProjectID: &pid,
			Message: "You have been invited to Apollo project",
		}))
	}
	inbox := f.inbox(t, f.invitee.ID)
	require.Len(t, inbox, 2)

	require.NoError(t, f.svc.Answer(ctx, caller, inbox[0].ID, true))
	first, err := f.clients.GetByUser(ctx, f.invitee.ID, pid)
	require.NoError(t, err)

	require.NoError(t, f.svc.Answer(ctx, caller, inbox[1].ID, true))
	require.Len(t, f.notifs.answered, 2)
	require.NotNil(t, f.notifs.answered[0].Member)
	require.Nil(t, f.notifs.answered[1].Member)

	again, err := f.clients.GetByUser(ctx, f.invitee.ID, pid)
	require.NoError(t, err)
	require.Equal(t, first.ID, again.ID)
	for _, n := range f.inbox(t, f.invitee.ID) {
		require.False(t, n.Pending())
	}
}
