package polls

import (
	"context"

	"github.com/chatly-hq/chatly/internal/common/errors"
	"github.com/chatly-hq/chatly/internal/identity"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Service struct {
	repo   *Repository
	logger *zap.Logger
}

func NewService(repo *Repository, logger *zap.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

func (s *Service) Create(ctx context.Context, question string, options []string, multiChoice, anonymous bool) (*Poll, error) {
	actorID := identity.UserID(ctx)
	if actorID == uuid.Nil {
		return nil, errors.PermissionDenied("no acting user")
	}
	if question == "" {
		return nil, errors.Validation("poll question is required")
	}
	if len(options) < 2 {
		return nil, errors.Validation("poll needs at least two options")
	}

	poll := &Poll{
		Question:      question,
		IsMultiChoice: multiChoice,
		IsAnonymous:   anonymous,
		CreatedBy:     actorID,
	}
	for _, text := range options {
		if text == "" {
			return nil, errors.Validation("poll option cannot be empty")
		}
		poll.Options = append(poll.Options, &Option{Text: text})
	}

	if err := s.repo.Create(ctx, poll); err != nil {
		return nil, err
	}
	return poll, nil
}

// Get returns the poll plus the option ids the acting user has voted for.
// Anonymous polls still return the caller's own votes.
func (s *Service) Get(ctx context.Context, pollID uuid.UUID) (*Poll, []uuid.UUID, error) {
	poll, err := s.repo.GetByID(ctx, pollID)
	if err != nil {
		return nil, nil, err
	}

	actorID := identity.UserID(ctx)
	votes, err := s.repo.VotesForUser(ctx, pollID, actorID)
	if err != nil {
		return nil, nil, err
	}
	return poll, votes, nil
}

func (s *Service) Vote(ctx context.Context, pollID, optionID uuid.UUID) error {
	actorID := identity.UserID(ctx)
	if actorID == uuid.Nil {
		return errors.PermissionDenied("no acting user")
	}

	poll, err := s.repo.GetByID(ctx, pollID)
	if err != nil {
		return err
	}
	if poll.IsDisabled {
		return errors.Validation("poll is closed")
	}

	valid := false
	for _, opt := range poll.Options {
		if opt.ID == optionID {
			valid = true
			break
		}
	}
	if !valid {
		return errors.Validation("option does not belong to this poll")
	}

	return s.repo.Vote(ctx, pollID, optionID, actorID, poll.IsMultiChoice)
}

func (s *Service) RetractVote(ctx context.Context, pollID uuid.UUID) error {
	actorID := identity.UserID(ctx)
	if actorID == uuid.Nil {
		return errors.PermissionDenied("no acting user")
	}
	return s.repo.RetractVote(ctx, pollID, actorID)
}

// Close disables further voting. Only the poll creator or an administrator
// may close a poll.
func (s *Service) Close(ctx context.Context, pollID uuid.UUID) error {
	actor, ok := identity.ActorFrom(ctx)
	if !ok {
		return errors.PermissionDenied("no acting user")
	}

	poll, err := s.repo.GetByID(ctx, pollID)
	if err != nil {
		return err
	}
	if poll.CreatedBy != actor.UserID && !actor.IsAdministrator {
		return errors.PermissionDenied("only the poll creator can close it")
	}

	if err := s.repo.SetDisabled(ctx, pollID, true); err != nil {
		return err
	}
	s.logger.Info("poll closed",
		zap.String("poll_id", pollID.String()),
		zap.String("closed_by", actor.UserID.String()),
	)
	return nil
}
