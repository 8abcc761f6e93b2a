package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/and161185/worklog/internal/errs"
	"github.com/and161185/worklog/internal/limiter"
	"github.com/and161185/worklog/internal/model"
	"github.com/and161185/worklog/internal/repository"
	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"
)

/************ users ************/

type fakeUsers struct {
	mu      sync.Mutex
	byID    map[uuid.UUID]*model.User
	byEmail map[string]uuid.UUID

	createErr error
	getErr    error
}

var _ repository.UserRepository = (*fakeUsers)(nil)

func newFakeUsers(us ...*model.User) *fakeUsers {
	f := &fakeUsers{byID: map[uuid.UUID]*model.User{}, byEmail: map[string]uuid.UUID{}}
	for _, u := range us {
		_ = f.Create(context.Background(), u)
	}
	return f
}

func (f *fakeUsers) Create(_ context.Context, u *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	if _, ok := f.byEmail[strings.ToLower(u.Email)]; ok {
		return errs.ErrAlreadyExists
	}
	cpy := *u
	f.byID[u.ID] = &cpy
	f.byEmail[strings.ToLower(u.Email)] = u.ID
	return nil
}

func (f *fakeUsers) GetByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	u, ok := f.byID[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	c := *u
	return &c, nil
}

func (f *fakeUsers) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	f.mu.Lock()
	id, ok := f.byEmail[strings.ToLower(email)]
	getErr := f.getErr
	f.mu.Unlock()
	if getErr != nil {
		return nil, getErr
	}
	if !ok {
		return nil, errs.ErrNotFound
	}
	return f.GetByID(ctx, id)
}

/************ clients ************/

type fakeClients struct {
	mu     sync.Mutex
	byID   map[uuid.UUID]*model.Client
	getErr error
	calls  int
}

var _ repository.ClientRepository = (*fakeClients)(nil)

func newFakeClients(cs ...*model.Client) *fakeClients {
	f := &fakeClients{byID: map[uuid.UUID]*model.Client{}}
	for _, c := range cs {
		f.put(c)
	}
	return f
}

func (f *fakeClients) put(c *model.Client) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cpy := *c
	f.byID[c.ID] = &cpy
}

func (f *fakeClients) GetByUser(_ context.Context, userID, projectID uuid.UUID) (*model.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.getErr != nil {
		return nil, f.getErr
	}
	for _, c := range f.byID {
		if c.UserID == userID && c.ProjectID == projectID {
			cpy := *c
			return &cpy, nil
		}
	}
	return nil, errs.ErrNotFound
}

func (f *fakeClients) GetByID(_ context.Context, projectID, clientID uuid.UUID) (*model.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	c, ok := f.byID[clientID]
	if !ok || c.ProjectID != projectID {
		return nil, errs.ErrNotFound
	}
	cpy := *c
	return &cpy, nil
}

func (f *fakeClients) UpdateRole(_ context.Context, projectID, clientID uuid.UUID, role model.Role) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.byID[clientID]
	if !ok || c.ProjectID != projectID {
		return errs.ErrNotFound
	}
	c.Role = role
	return nil
}

func (f *fakeClients) SoftDelete(_ context.Context, projectID, clientID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.byID[clientID]
	if !ok || c.ProjectID != projectID {
		return errs.ErrNotFound
	}
	delete(f.byID, clientID)
	return nil
}

/************ logs ************/

type slotKey struct {
	client, project uuid.UUID
	date            time.Time
}

// fakeLogs serializes writers the way the database does: one log per slot
// and compare-and-swap on version.
type fakeLogs struct {
	mu     sync.Mutex
	byID   map[uuid.UUID]*model.Log
	bySlot map[slotKey]uuid.UUID

	writeErr  error
	listErr   error
	writeWait time.Duration
	lastList  [2]time.Time
}

var _ repository.LogRepository = (*fakeLogs)(nil)

func newFakeLogs() *fakeLogs {
	return &fakeLogs{byID: map[uuid.UUID]*model.Log{}, bySlot: map[slotKey]uuid.UUID{}}
}

func (f *fakeLogs) wait(ctx context.Context) error {
	if f.writeWait == 0 {
		return nil
	}
	select {
	case <-time.After(f.writeWait):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func toLog(w model.LogWrite, version int64) *model.Log {
	end := w.EndTime
	return &model.Log{
		ID: w.ID, ClientID: w.ClientID, ProjectID: w.ProjectID, Date: w.Date,
		StartTime: w.StartTime, EndTime: &end, Duration: w.Duration,
		Title: w.Title, Content: w.Content, IsBillable: w.IsBillable, IsAbsent: w.IsAbsent,
		Version: version, ModifiedByID: w.ModifiedByID,
	}
}

func (f *fakeLogs) Create(ctx context.Context, w model.LogWrite) (model.LogVersion, error) {
	if err := f.wait(ctx); err != nil {
		return model.LogVersion{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return model.LogVersion{}, f.writeErr
	}
	k := slotKey{w.ClientID, w.ProjectID, w.Date}
	if _, taken := f.bySlot[k]; taken {
		return model.LogVersion{}, errs.ErrVersionConflict
	}
	f.byID[w.ID] = toLog(w, w.Version)
	f.bySlot[k] = w.ID
	return model.LogVersion{ID: w.ID, Version: w.Version}, nil
}

func (f *fakeLogs) Update(ctx context.Context, w model.LogWrite) (model.LogVersion, error) {
	if err := f.wait(ctx); err != nil {
		return model.LogVersion{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return model.LogVersion{}, f.writeErr
	}
	cur, ok := f.byID[w.ID]
	if !ok || cur.Version != w.Version || cur.ClientID != w.ClientID || cur.ProjectID != w.ProjectID {
		return model.LogVersion{}, errs.ErrVersionConflict
	}
	newKey := slotKey{w.ClientID, w.ProjectID, w.Date}
	if other, taken := f.bySlot[newKey]; taken && other != w.ID {
		return model.LogVersion{}, errs.ErrVersionConflict
	}
	delete(f.bySlot, slotKey{cur.ClientID, cur.ProjectID, cur.Date})
	f.byID[w.ID] = toLog(w, cur.Version+1)
	f.bySlot[newKey] = w.ID
	return model.LogVersion{ID: w.ID, Version: cur.Version + 1}, nil
}

func (f *fakeLogs) ListForClient(_ context.Context, projectID, clientID uuid.UUID, from, to time.Time, limit int) ([]model.Log, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastList = [2]time.Time{from, to}
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []model.Log
	for _, l := range f.byID {
		if l.ProjectID == projectID && l.ClientID == clientID && !l.Date.Before(from) && !l.Date.After(to) {
			out = append(out, *l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeLogs) TotalDuration(_ context.Context, projectID, clientID uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var total int64
	for _, l := range f.byID {
		if l.ProjectID == projectID && l.ClientID == clientID && !l.IsAbsent {
			total += l.Duration
		}
	}
	return total, nil
}

func (f *fakeLogs) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.byID)
}

/************ stats ************/

type fakeStats struct {
	out   []model.MemberLogs
	err   error
	block bool
	got   model.StatsFilter
	calls int
}

var _ repository.StatsRepository = (*fakeStats)(nil)

func (f *fakeStats) MembersWithLogs(ctx context.Context, filter model.StatsFilter) ([]model.MemberLogs, error) {
	f.calls++
	f.got = filter
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.out, f.err
}

/************ projects ************/

type fakeProjects struct {
	byID      map[uuid.UUID]*model.Project
	clients   *fakeClients
	createErr error
}

var _ repository.ProjectRepository = (*fakeProjects)(nil)

func newFakeProjects(clients *fakeClients, ps ...*model.Project) *fakeProjects {
	f := &fakeProjects{byID: map[uuid.UUID]*model.Project{}, clients: clients}
	for _, p := range ps {
		cpy := *p
		f.byID[p.ID] = &cpy
	}
	return f
}

func (f *fakeProjects) CreateWithAdmin(_ context.Context, p *model.Project, admin *model.Client) error {
	if f.createErr != nil {
		return f.createErr
	}
	cpy := *p
	f.byID[p.ID] = &cpy
	f.clients.put(admin)
	return nil
}

func (f *fakeProjects) GetByID(_ context.Context, id uuid.UUID) (*model.Project, error) {
	p, ok := f.byID[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	cpy := *p
	return &cpy, nil
}

func (f *fakeProjects) Delete(_ context.Context, id, createdByID uuid.UUID) error {
	p, ok := f.byID[id]
	if !ok || p.CreatedByID != createdByID {
		return errs.ErrNotFound
	}
	delete(f.byID, id)
	return nil
}

func (f *fakeProjects) ListForUser(ctx context.Context, userID uuid.UUID) ([]model.Project, error) {
	var out []model.Project
	for _, p := range f.byID {
		if _, err := f.clients.GetByUser(ctx, userID, p.ID); err == nil {
			out = append(out, *p)
		}
	}
	return out, nil
}

/************ notifications ************/

type fakeNotifs struct {
	byID      map[uuid.UUID]*model.Notification
	clients   *fakeClients
	answered  []model.InvitationAnswer
	createErr error
}

var _ repository.NotificationRepository = (*fakeNotifs)(nil)

func newFakeNotifs(clients *fakeClients) *fakeNotifs {
	return &fakeNotifs{byID: map[uuid.UUID]*model.Notification{}, clients: clients}
}

func (f *fakeNotifs) Create(_ context.Context, n *model.Notification) error {
	if f.createErr != nil {
		return f.createErr
	}
	cpy := *n
	cpy.CreatedAt = time.Now()
	f.byID[n.ID] = &cpy
	return nil
}

func (f *fakeNotifs) Get(_ context.Context, id, userID uuid.UUID) (*model.Notification, error) {
	n, ok := f.byID[id]
	if !ok || n.UserID != userID {
		return nil, errs.ErrNotFound
	}
	cpy := *n
	return &cpy, nil
}

func (f *fakeNotifs) ListForUser(_ context.Context, userID uuid.UUID) ([]model.Notification, error) {
	var out []model.Notification
	for _, n := range f.byID {
		if n.UserID == userID {
			out = append(out, *n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeNotifs) Answer(ctx context.Context, a model.InvitationAnswer) error {
	n, ok := f.byID[a.NotificationID]
	if !ok || n.UserID != a.UserID || !n.Pending() {
		return errs.ErrVersionConflict
	}
	answer := a.Accept
	n.Answer = &answer
	n.Message = a.Message
	_ = f.Create(ctx, &a.Reply)
	if a.Member != nil {
		f.clients.put(a.Member)
	}
	f.answered = append(f.answered, a)
	return nil
}

func (f *fakeNotifs) Delete(_ context.Context, id, userID uuid.UUID) error {
	n, ok := f.byID[id]
	if !ok || n.UserID != userID {
		return errs.ErrNotFound
	}
	delete(f.byID, id)
	return nil
}

/************ limiter ************/

type fakeLimiter struct {
	wait     time.Duration
	allowErr error
	lockOn   time.Duration
	failErr  error

	failureCalls int
	successCalls int
	lastKey      limiter.Key
}

var _ limiter.Limiter = (*fakeLimiter)(nil)

func (l *fakeLimiter) Allow(_ context.Context, k limiter.Key) (time.Duration, error) {
	l.lastKey = k
	return l.wait, l.allowErr
}

func (l *fakeLimiter) Success(context.Context, limiter.Key) error {
	l.successCalls++
	return nil
}

func (l *fakeLimiter) Failure(context.Context, limiter.Key) (time.Duration, error) {
	l.failureCalls++
	return l.lockOn, l.failErr
}

/************ fixtures ************/

var testKey = []byte("test-sign-key")

func newID() uuid.UUID { return uuid.Must(uuid.NewV4()) }

func member(projectID uuid.UUID, role model.Role) *model.Client {
	return &model.Client{
		ID:        newID(),
		UserID:    newID(),
		ProjectID: projectID,
		Role:      role,
		FirstName: "Test",
		LastName:  string(role),
		Email:     strings.ToLower(string(role)) + "@example.com",
	}
}

func userOf(c *model.Client) *model.User {
	return &model.User{ID: c.UserID, Email: c.Email, FirstName: c.FirstName, LastName: c.LastName}
}

func signToken(key []byte, sub string, exp time.Time, method jwt.SigningMethod) string {
	claims := jwt.RegisteredClaims{
		Subject:   sub,
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		panic(err)
	}
	return s
}
