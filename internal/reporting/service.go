package reporting

import (
	"context"
	"errors"
	"time"

	"call-platform/internal/calls"
)

var ErrInvalidRequest = errors.New("reporting: invalid request")

// Repository reads call attempts of one workspace. Implementations must
// filter by workspace; calls.MemoryStore and calls.PostgresStore satisfy it.
type Repository interface {
	ListSessions(ctx context.Context, workspaceID string, from, to time.Time) ([]calls.CallSession, error)
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service { return &Service{repo: repo} }

func (s *Service) list(ctx context.Context, workspaceID string, r TimeRange) ([]calls.CallSession, error) {
	if workspaceID == "" || !r.valid() {
		return nil, ErrInvalidRequest
	}
	if s.repo == nil {
		return nil, errors.New("reporting: repository not configured")
	}
	return s.repo.ListSessions(ctx, workspaceID, r.From, r.To)
}

func (s *Service) CallsSummary(ctx context.Context, req CallsSummaryRequest) (CallsSummary, error) {
	if req.Kind != "" && !calls.Kind(req.Kind).Valid() {
		return CallsSummary{}, ErrInvalidRequest
	}
	rows, err := s.list(ctx, req.WorkspaceID, req.Range)
	if err != nil {
		return CallsSummary{}, err
	}

	out := CallsSummary{WorkspaceID: req.WorkspaceID, Kind: req.Kind}
	answeredClosed := 0
	for _, c := range rows {
		if req.Kind != "" && string(c.Kind) != req.Kind {
			continue
		}
		out.TotalCalls++
		if c.Kind == calls.KindGroup {
			out.GroupCalls++
		} else {
			out.DirectCalls++
		}
		if c.StartedAt != nil {
			out.AnsweredCalls++
			if c.Status.Terminal() {
				answeredClosed++
			}
		}
		if c.DurationSeconds != nil {
			out.TotalDurationSeconds += *c.DurationSeconds
		}
		switch c.Status {
		case calls.SessionStatusMissed:
			out.MissedCalls++
		case calls.SessionStatusRejected:
			out.RejectedCalls++
		case calls.SessionStatusCancelled:
			out.CancelledCalls++
		case calls.SessionStatusRinging, calls.SessionStatusActive:
			out.OpenCalls++
		}
	}
	if out.AnsweredCalls > 0 {
		out.AverageDurationSeconds = out.TotalDurationSeconds / out.AnsweredCalls
	}
	if closed := out.TotalCalls - out.OpenCalls; closed > 0 {
		out.AnswerRate = float64(answeredClosed) / float64(closed)
	}
	return out, nil
}

func (s *Service) UserSummary(ctx context.Context, req UserSummaryRequest) (UserSummary, error) {
	if req.UserID == "" {
		return UserSummary{}, ErrInvalidRequest
	}
	rows, err := s.list(ctx, req.WorkspaceID, req.Range)
	if err != nil {
		return UserSummary{}, err
	}

	out := UserSummary{WorkspaceID: req.WorkspaceID, UserID: req.UserID}
	for i := range rows {
		c := &rows[i]
		p := c.Participant(req.UserID)
		if p == nil {
			continue
		}
		if c.InitiatedBy == req.UserID {
			out.Placed++
		} else {
			out.Received++
			switch {
			case p.JoinedAt != nil:
				out.Joined++
			case p.Status == calls.ParticipantStatusRejected || p.Status == calls.ParticipantStatusLeft:
				out.Declined++
			case c.Status == calls.SessionStatusMissed || c.Status == calls.SessionStatusCancelled:
				out.Missed++
			}
		}
		out.TalkSeconds += talkSeconds(c, p)
	}
	return out, nil
}

// talkSeconds counts from the later of call start and the user's last join
// to the earlier of the user's leave and call end.
func talkSeconds(c *calls.CallSession, p *calls.CallParticipant) int {
	if c.Status != calls.SessionStatusEnded || c.StartedAt == nil || p.JoinedAt == nil || c.EndedAt == nil {
		return 0
	}
	from := *c.StartedAt
	if p.JoinedAt.After(from) {
		from = *p.JoinedAt
	}
	to := *c.EndedAt
	if p.LeftAt != nil && p.LeftAt.Before(to) {
		to = *p.LeftAt
	}
	if !to.After(from) {
		return 0
	}
	return int(to.Sub(from) / time.Second)
}
