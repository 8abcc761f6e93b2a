package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/and161185/worklog/internal/errs"
	"github.com/and161185/worklog/internal/model"
	"github.com/and161185/worklog/internal/repository"
	"github.com/and161185/worklog/internal/timecalc"
	"github.com/gofrs/uuid/v5"
)

// DefaultTxTimeout bounds a single log write or statistics read.
const DefaultTxTimeout = 5 * time.Second

const maxMonthLogs = 31

// LogService defines the log mutation engine and member month reads.
type LogService interface {
	// CreateOrUpdateLog creates the day's log for a client or updates it when
	// the caller's expected version is still current.
	CreateOrUpdateLog(ctx context.Context, caller model.Caller, in model.LogInput) (model.LogVersion, error)
	// ClientMonth returns a client's logs and hour totals for month.
	ClientMonth(ctx context.Context, caller model.Caller, projectID, clientID uuid.UUID, month time.Time) (model.ClientMonth, error)
}

type LogServiceImpl struct {
	logs      repository.LogRepository
	clients   repository.ClientRepository
	guard     *Guard
	loc       *time.Location
	txTimeout time.Duration
}

// NewLogService constructs LogService. Calendar days are computed in loc.
func NewLogService(
	logs repository.LogRepository, clients repository.ClientRepository, guard *Guard,
	loc *time.Location, txTimeout time.Duration,
) *LogServiceImpl {
	if loc == nil {
		loc = time.UTC
	}
	if txTimeout <= 0 {
		txTimeout = DefaultTxTimeout
	}
	return &LogServiceImpl{logs: logs, clients: clients, guard: guard, loc: loc, txTimeout: txTimeout}
}

// validateLog checks in and fills defaults: version 0 becomes 1, an absent
// non-billable entry without an end ends at its start.
func validateLog(in *model.LogInput) error {
	v := errs.NewValidation()
	if in.ClientID == uuid.Nil {
		v.Add("clientId", "client id is required")
	}
	if in.ProjectID == uuid.Nil {
		v.Add("projectId", "project id is required")
	}
	switch {
	case in.Version == 0:
		in.Version = 1
	case in.Version < 0:
		v.Add("version", "must be at least 1")
	}
	if in.LogID != nil && *in.LogID == uuid.Nil {
		v.Add("logId", "must be a valid id when present")
	}

	if in.StartTime.IsZero() {
		v.Add("startTime", "start time is required")
	}
	if !in.IsAbsent || in.IsBillable {
		switch {
		case in.EndTime.IsZero():
			v.Add("endTime", "end time is required")
		case !in.StartTime.IsZero() && !in.EndTime.After(in.StartTime):
			v.Add("endTime", "end time must be after start time")
		}
	} else if in.EndTime.IsZero() {
		in.EndTime = in.StartTime
	} else if in.EndTime.Before(in.StartTime) {
		v.Add("endTime", "end time must not be before start time")
	}
	return v.OrNil()
}

// CreateOrUpdateLog validates and authorizes the write, then persists it
// under the configured timeout. A timed-out write is reported as a version
// conflict so that clients reload and retry.
func (s *LogServiceImpl) CreateOrUpdateLog(ctx context.Context, caller model.Caller, in model.LogInput) (model.LogVersion, error) {
	if err := validateLog(&in); err != nil {
		return model.LogVersion{}, err
	}
	if err := s.authorizeWrite(ctx, caller.UserID, in.ProjectID, in.ClientID); err != nil {
		return model.LogVersion{}, err
	}

	w := model.LogWrite{
		LogInput:     in,
		Date:         timecalc.StartOfDay(in.StartTime, s.loc),
		Duration:     timecalc.Duration(in.StartTime, in.EndTime),
		ModifiedByID: caller.UserID,
	}

	tctx, cancel := context.WithTimeout(ctx, s.txTimeout)
	defer cancel()

	var (
		res model.LogVersion
		err error
	)
	if in.LogID == nil {
		if w.ID, err = uuid.NewV4(); err != nil {
			return model.LogVersion{}, err
		}
		res, err = s.logs.Create(tctx, w)
	} else {
		w.ID = *in.LogID
		res, err = s.logs.Update(tctx, w)
	}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(tctx.Err(), context.DeadlineExceeded) {
			return model.LogVersion{}, errs.ErrVersionConflict
		}
		return model.LogVersion{}, err
	}
	return res, nil
}

// authorizeWrite admits project admins and members writing their own log.
// The target must be a live client of the project.
func (s *LogServiceImpl) authorizeWrite(ctx context.Context, userID, projectID, clientID uuid.UUID) error {
	own, err := s.guard.ResolveMember(ctx, userID, projectID)
	if err != nil {
		return err
	}
	if own.ID == clientID {
		return nil
	}
	if own.Role != model.RoleAdmin {
		return errs.ErrForbidden
	}
	if _, err := s.clients.GetByID(ctx, projectID, clientID); err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return err
		}
		return fmt.Errorf("load target client: %w", err)
	}
	return nil
}

// ClientMonth is readable by the client itself and by project admins and managers.
func (s *LogServiceImpl) ClientMonth(
	ctx context.Context, caller model.Caller, projectID, clientID uuid.UUID, month time.Time,
) (model.ClientMonth, error) {
	own, err := s.guard.ResolveMember(ctx, caller.UserID, projectID)
	if err != nil {
		return model.ClientMonth{}, err
	}
	target := own
	if own.ID != clientID {
		if !own.Role.AtLeast(model.RoleManager) {
			return model.ClientMonth{}, errs.ErrForbidden
		}
		if target, err = s.clients.GetByID(ctx, projectID, clientID); err != nil {
			return model.ClientMonth{}, err
		}
	}

	if month.IsZero() {
		month = time.Now()
	}
	month = month.In(s.loc)
	from, to := timecalc.MonthRange(month, s.loc)

	tctx, cancel := context.WithTimeout(ctx, s.txTimeout)
	defer cancel()

	logs, err := s.logs.ListForClient(tctx, projectID, clientID, from, to, maxMonthLogs)
	if err != nil {
		return model.ClientMonth{}, fmt.Errorf("list month logs: %w", err)
	}
	total, err := s.logs.TotalDuration(tctx, projectID, clientID)
	if err != nil {
		return model.ClientMonth{}, fmt.Errorf("total duration: %w", err)
	}
	return model.ClientMonth{
		Client:        *target,
		Logs:          logs,
		MonthHours:    timecalc.MonthHours(logs, month),
		TotalDuration: total,
	}, nil
}
