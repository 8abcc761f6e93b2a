package convert

import (
	"fmt"
	"time"

	"github.com/and161185/worklog/internal/model"
	"github.com/gofrs/uuid/v5"
	"google.golang.org/protobuf/types/known/structpb"
)

// --- requests (server side) ---

// LogInputFrom decodes a CreateOrUpdateLog request.
func LogInputFrom(s *structpb.Struct) (model.LogInput, error) {
	f := Read(s)
	in := model.LogInput{
		LogID:      f.OptUUID("logId"),
		ClientID:   f.UUID("clientId"),
		ProjectID:  f.UUID("projectId"),
		Title:      f.String("title"),
		Content:    f.String("content"),
		StartTime:  f.Time("startTime", time.UTC),
		EndTime:    f.Time("endTime", time.UTC),
		IsBillable: f.Bool("isBillable"),
		IsAbsent:   f.Bool("isAbsent"),
		Version:    f.Int("version"),
	}
	return in, f.Err()
}

// StatsFilterFrom decodes a GetStatistics request. Bare dates are read in loc.
func StatsFilterFrom(s *structpb.Struct, loc *time.Location) (model.StatsFilter, error) {
	f := Read(s)
	out := model.StatsFilter{
		ProjectID: f.UUID("projectId"),
		Start:     f.Time("startDate", loc),
		End:       f.Time("endDate", loc),
		Search:    f.String("search"),
	}
	role, err := model.ParseRole(f.String("role"))
	if err != nil {
		f.bad.Add("role", "must be one of ADMIN, MANAGER, USER")
	}
	out.Role = role
	return out, f.Err()
}

// --- responses ---

// LogVersionStruct encodes the result of a log write.
func LogVersionStruct(v model.LogVersion) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{"id": v.ID.String(), "version": v.Version})
}

func logMap(l model.Log) map[string]any {
	return map[string]any{
		"id":           l.ID.String(),
		"clientId":     l.ClientID.String(),
		"projectId":    l.ProjectID.String(),
		"date":         ts(l.Date),
		"startTime":    ts(l.StartTime),
		"endTime":      tsPtr(l.EndTime),
		"duration":     l.Duration,
		"title":        l.Title,
		"content":      l.Content,
		"isBillable":   l.IsBillable,
		"isAbsent":     l.IsAbsent,
		"version":      l.Version,
		"modifiedById": l.ModifiedByID.String(),
	}
}

func clientMap(c model.Client) map[string]any {
	return map[string]any{
		"id":        c.ID.String(),
		"userId":    c.UserID.String(),
		"projectId": c.ProjectID.String(),
		"role":      c.Role.String(),
		"firstName": c.FirstName,
		"lastName":  c.LastName,
		"email":     c.Email,
		"createdAt": ts(c.CreatedAt),
	}
}

func logList(logs []model.Log) []any {
	out := make([]any, 0, len(logs))
	for _, l := range logs {
		out = append(out, logMap(l))
	}
	return out
}

// ClientStruct encodes a membership.
func ClientStruct(c model.Client) (*structpb.Struct, error) {
	return structpb.NewStruct(clientMap(c))
}

// StatisticsStruct encodes a statistics result.
func StatisticsStruct(st model.Statistics) (*structpb.Struct, error) {
	members := make([]any, 0, len(st.Members))
	for _, m := range st.Members {
		cm := clientMap(m.Client)
		cm["logs"] = logList(m.Logs)
		members = append(members, cm)
	}
	return structpb.NewStruct(map[string]any{
		"startDate": ts(st.Start),
		"endDate":   ts(st.End),
		"degraded":  st.Degraded,
		"members":   members,
	})
}

// ClientMonthStruct encodes a member month page.
func ClientMonthStruct(cm model.ClientMonth) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"client":        clientMap(cm.Client),
		"logs":          logList(cm.Logs),
		"monthHours":    cm.MonthHours,
		"totalDuration": cm.TotalDuration,
	})
}

func projectMap(p model.Project) map[string]any {
	return map[string]any{
		"id":          p.ID.String(),
		"name":        p.Name,
		"description": p.Description,
		"createdById": p.CreatedByID.String(),
		"createdAt":   ts(p.CreatedAt),
		"teamCount":   p.TeamCount,
	}
}

// ProjectStruct encodes a project.
func ProjectStruct(p model.Project) (*structpb.Struct, error) {
	return structpb.NewStruct(projectMap(p))
}

// ProjectsStruct encodes a project listing.
func ProjectsStruct(ps []model.Project) (*structpb.Struct, error) {
	list := make([]any, 0, len(ps))
	for _, p := range ps {
		list = append(list, projectMap(p))
	}
	return structpb.NewStruct(map[string]any{"projects": list})
}

// NotificationsStruct encodes an inbox.
func NotificationsStruct(ns []model.Notification) (*structpb.Struct, error) {
	list := make([]any, 0, len(ns))
	for _, n := range ns {
		m := map[string]any{
			"id":        n.ID.String(),
			"sentById":  n.SentByID.String(),
			"projectId": nil,
			"message":   n.Message,
			"answer":    nil,
			"checkedAt": tsPtr(n.CheckedAt),
			"createdAt": ts(n.CreatedAt),
		}
		if n.ProjectID != nil {
			m["projectId"] = n.ProjectID.String()
		}
		if n.Answer != nil {
			m["answer"] = *n.Answer
		}
		list = append(list, m)
	}
	return structpb.NewStruct(map[string]any{"notifications": list})
}

// TokensStruct encodes a login result.
func TokensStruct(t model.Tokens, u model.User) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"accessToken": t.AccessToken,
		"expiresAt":   ts(t.ExpiresAt),
		"userId":      u.ID.String(),
		"firstName":   u.FirstName,
		"lastName":    u.LastName,
	})
}

// --- responses (client side) ---

func clientFrom(f *Fields) model.Client {
	role, _ := model.ParseRole(f.String("role"))
	return model.Client{
		ID:        f.UUID("id"),
		UserID:    f.UUID("userId"),
		ProjectID: f.UUID("projectId"),
		Role:      role,
		FirstName: f.String("firstName"),
		LastName:  f.String("lastName"),
		Email:     f.String("email"),
		CreatedAt: f.Time("createdAt", time.UTC),
	}
}

func logFrom(s *structpb.Struct) (model.Log, error) {
	f := Read(s)
	l := model.Log{
		ID:           f.UUID("id"),
		ClientID:     f.UUID("clientId"),
		ProjectID:    f.UUID("projectId"),
		Date:         f.Time("date", time.UTC),
		StartTime:    f.Time("startTime", time.UTC),
		Duration:     f.Int("duration"),
		Title:        f.String("title"),
		Content:      f.String("content"),
		IsBillable:   f.Bool("isBillable"),
		IsAbsent:     f.Bool("isAbsent"),
		Version:      f.Int("version"),
		ModifiedByID: f.UUID("modifiedById"),
	}
	if f.Has("endTime") {
		end := f.Time("endTime", time.UTC)
		l.EndTime = &end
	}
	return l, f.Err()
}

func logsFrom(v *structpb.Value) ([]model.Log, error) {
	var out []model.Log
	for i, item := range v.GetListValue().GetValues() {
		l, err := logFrom(item.GetStructValue())
		if err != nil {
			return nil, fmt.Errorf("log %d: %w", i, err)
		}
		out = append(out, l)
	}
	return out, nil
}

// StatisticsFrom decodes a GetStatistics response.
func StatisticsFrom(s *structpb.Struct) (model.Statistics, error) {
	f := Read(s)
	start, err := parseTS(f.String("startDate"))
	if err != nil {
		return model.Statistics{}, fmt.Errorf("startDate: %w", err)
	}
	end, err := parseTS(f.String("endDate"))
	if err != nil {
		return model.Statistics{}, fmt.Errorf("endDate: %w", err)
	}
	out := model.Statistics{Start: start, End: end, Degraded: f.Bool("degraded")}
	for i, item := range s.GetFields()["members"].GetListValue().GetValues() {
		ms := item.GetStructValue()
		mf := Read(ms)
		c := clientFrom(mf)
		if err := mf.Err(); err != nil {
			return model.Statistics{}, fmt.Errorf("member %d: %w", i, err)
		}
		logs, err := logsFrom(ms.GetFields()["logs"])
		if err != nil {
			return model.Statistics{}, fmt.Errorf("member %d: %w", i, err)
		}
		out.Members = append(out.Members, model.MemberLogs{Client: c, Logs: logs})
	}
	return out, f.Err()
}

// LogVersionFrom decodes a CreateOrUpdateLog response.
func LogVersionFrom(s *structpb.Struct) (model.LogVersion, error) {
	f := Read(s)
	v := model.LogVersion{ID: f.UUID("id"), Version: f.Int("version")}
	return v, f.Err()
}

// UUIDList encodes ids for list-valued request fields.
func UUIDList(ids []uuid.UUID) []any {
	out := make([]any, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	return out
}

// ClientMonthFrom decodes a GetClientMonth response.
func ClientMonthFrom(s *structpb.Struct) (model.ClientMonth, error) {
	f := Read(s)
	cf := Read(s.GetFields()["client"].GetStructValue())
	out := model.ClientMonth{
		Client:        clientFrom(cf),
		MonthHours:    f.Float("monthHours"),
		TotalDuration: f.Int("totalDuration"),
	}
	if err := cf.Err(); err != nil {
		return model.ClientMonth{}, fmt.Errorf("client: %w", err)
	}
	logs, err := logsFrom(s.GetFields()["logs"])
	if err != nil {
		return model.ClientMonth{}, err
	}
	out.Logs = logs
	return out, f.Err()
}
