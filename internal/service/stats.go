package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/and161185/worklog/internal/errs"
	"github.com/and161185/worklog/internal/model"
	"github.com/and161185/worklog/internal/repository"
	"github.com/and161185/worklog/internal/timecalc"
	"go.uber.org/zap"
)

// StatsService defines project statistics reads.
type StatsService interface {
	// GetProjectStatistics returns members with their logs in the filter range.
	GetProjectStatistics(ctx context.Context, caller model.Caller, f model.StatsFilter) (model.Statistics, error)
}

// MaxStatsDays bounds the number of days one statistics request may span.
const MaxStatsDays = 14

type StatsServiceImpl struct {
	stats     repository.StatsRepository
	guard     *Guard
	log       *zap.Logger
	loc       *time.Location
	txTimeout time.Duration
	now       func() time.Time
}

// NewStatsService constructs StatsService.
func NewStatsService(
	stats repository.StatsRepository, guard *Guard, log *zap.Logger,
	loc *time.Location, txTimeout time.Duration,
) *StatsServiceImpl {
	if loc == nil {
		loc = time.UTC
	}
	if txTimeout <= 0 {
		txTimeout = DefaultTxTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &StatsServiceImpl{stats: stats, guard: guard, log: log, loc: loc, txTimeout: txTimeout, now: time.Now}
}

// normalizeFilter fills the current week for zero bounds and widens the
// range to whole days.
func (s *StatsServiceImpl) normalizeFilter(f *model.StatsFilter) error {
	weekStart, weekEnd := timecalc.WeekRange(s.now(), s.loc)
	if f.Start.IsZero() {
		f.Start = weekStart
	}
	if f.End.IsZero() {
		f.End = weekEnd
	}
	f.Start = timecalc.StartOfDay(f.Start, s.loc)
	f.End = timecalc.EndOfDay(f.End, s.loc)
	f.Search = strings.TrimSpace(f.Search)

	v := errs.NewValidation()
	if f.End.Before(f.Start) {
		v.Add("end", "end date must not be before start date")
	} else if timecalc.DayCount(f.Start, f.End, s.loc) > MaxStatsDays {
		v.Add("end", fmt.Sprintf("range must not exceed %d days", MaxStatsDays))
	}
	if f.Role != "" && !f.Role.Valid() {
		v.Add("role", "unknown role")
	}
	return v.OrNil()
}

// GetProjectStatistics requires ADMIN or MANAGER. Authorization and
// validation errors are returned; a failing read, including the membership
// lookup, is logged and yields an empty, Degraded result.
func (s *StatsServiceImpl) GetProjectStatistics(ctx context.Context, caller model.Caller, f model.StatsFilter) (model.Statistics, error) {
	_, guardErr := s.guard.RequireProjectAdminOrManager(ctx, caller.UserID, f.ProjectID)
	if errors.Is(guardErr, errs.ErrForbidden) || errors.Is(guardErr, errs.ErrUnauthenticated) {
		return model.Statistics{}, guardErr
	}
	if err := s.normalizeFilter(&f); err != nil {
		return model.Statistics{}, err
	}

	out := model.Statistics{Start: f.Start, End: f.End, Members: []model.MemberLogs{}}
	if guardErr != nil {
		s.degrade(&out, f, guardErr)
		return out, nil
	}

	tctx, cancel := context.WithTimeout(ctx, s.txTimeout)
	defer cancel()

	members, err := s.stats.MembersWithLogs(tctx, f)
	if err != nil {
		s.degrade(&out, f, err)
		return out, nil
	}
	if members != nil {
		out.Members = members
	}
	return out, nil
}

func (s *StatsServiceImpl) degrade(out *model.Statistics, f model.StatsFilter, err error) {
	s.log.Warn("statistics read failed",
		zap.String("project_id", f.ProjectID.String()),
		zap.Time("start", f.Start),
		zap.Time("end", f.End),
		zap.Error(err),
	)
	out.Degraded = true
}
