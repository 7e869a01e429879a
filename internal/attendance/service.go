package attendance

import (
	"context"
	"errors"
	"time"
)

// Eligibility messages the devserver returns. The check-in wording is what
// the client's availability shadow keys off.
const (
	MsgAlreadyCheckedIn  = "you have already checked in today"
	MsgAlreadyCheckedOut = "you have already checked out today"
	MsgMustCheckInFirst  = "you must check in first"
)

// Service applies the check-in/check-out ordering rules over the repository.
type Service struct {
	repo *Repository
}

// NewService creates a service backed by a repository.
func NewService(repo *Repository) *Service {
	return &Service{repo: repo}
}

// today returns the vendor-format day ("yy-MM-dd") the rules operate on.
func today() string {
	return time.Now().UTC().Format("06-01-02")
}

// Eligibility decides whether the action is currently allowed for the
// phone and, when it is not, why.
func (s *Service) Eligibility(ctx context.Context, phone, action string) (bool, string, error) {
	if phone == "" {
		return false, "", errors.New("phone required")
	}
	day := today()
	switch action {
	case "CheckIn":
		in, err := s.repo.Exists(ctx, phone, "CheckIn", day)
		if err != nil {
			return false, "", err
		}
		if in {
			return false, MsgAlreadyCheckedIn, nil
		}
		return true, "", nil
	case "CheckOut":
		in, err := s.repo.Exists(ctx, phone, "CheckIn", day)
		if err != nil {
			return false, "", err
		}
		if !in {
			return false, MsgMustCheckInFirst, nil
		}
		out, err := s.repo.Exists(ctx, phone, "CheckOut", day)
		if err != nil {
			return false, "", err
		}
		if out {
			return false, MsgAlreadyCheckedOut, nil
		}
		return true, "", nil
	default:
		return false, "unknown action", nil
	}
}

// Create records the event after re-checking eligibility, so a duplicate
// submission cannot slip in between verification and submission.
func (s *Service) Create(ctx context.Context, rec Record) (Record, bool, string, error) {
	allowed, msg, err := s.Eligibility(ctx, rec.EmployeePhone, rec.Type)
	if err != nil {
		return Record{}, false, "", err
	}
	if !allowed {
		return Record{}, false, msg, nil
	}
	if rec.DateDay == "" {
		rec.DateDay = today()
	}
	stored, err := s.repo.Insert(ctx, rec)
	if err != nil {
		return Record{}, false, "", err
	}
	return stored, true, "", nil
}
