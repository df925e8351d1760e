package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/aulanet/aulanet-backend/internal/logger"
	"github.com/aulanet/aulanet-backend/internal/repos"
	"github.com/aulanet/aulanet-backend/internal/types"
)

// StudySessionService opens and tracks quiz attempts. A session snapshots the
// quiz's question count at creation so later quiz edits don't shift its math.
type StudySessionService interface {
	Start(ctx context.Context, userID, quizID uuid.UUID) (*types.StudySession, error)
	Get(ctx context.Context, sessionID uuid.UUID) (*types.StudySession, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*types.StudySession, error)
	Abandon(ctx context.Context, userID, sessionID uuid.UUID) (*types.StudySession, error)
}

type studySessionService struct {
	sessionRepo  repos.StudySessionRepo
	quizRepo     repos.QuizRepo
	questionRepo repos.QuestionRepo
	userRepo     repos.UserRepo
	log          *logger.Logger
}

func NewStudySessionService(sessionRepo repos.StudySessionRepo, quizRepo repos.QuizRepo, questionRepo repos.QuestionRepo, userRepo repos.UserRepo, baseLog *logger.Logger) StudySessionService {
	return &studySessionService{
		sessionRepo:  sessionRepo,
		quizRepo:     quizRepo,
		questionRepo: questionRepo,
		userRepo:     userRepo,
		log:          baseLog.With("service", "StudySessionService"),
	}
}

func (s *studySessionService) Start(ctx context.Context, userID, quizID uuid.UUID) (*types.StudySession, error) {
	user, err := s.userRepo.GetByID(ctx, nil, userID)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("user %s not found", userID)
	}

	quiz, err := s.quizRepo.GetByID(ctx, nil, quizID)
	if err != nil {
		return nil, fmt.Errorf("load quiz: %w", err)
	}
	if quiz == nil {
		return nil, fmt.Errorf("quiz %s not found", quizID)
	}
	if quiz.Status != types.StatusCompleted {
		return nil, fmt.Errorf("quiz %s is not ready, status %s", quizID, quiz.Status)
	}

	total, err := s.questionRepo.CountByQuiz(ctx, nil, quizID)
	if err != nil {
		return nil, fmt.Errorf("count questions: %w", err)
	}
	if total == 0 {
		return nil, fmt.Errorf("quiz %s has no questions", quizID)
	}

	session := &types.StudySession{
		QuizID:         &quizID,
		UserID:         userID,
		State:          types.SessionInProgress,
		TotalQuestions: int(total),
		StartedAt:      time.Now(),
	}
	created, err := s.sessionRepo.Create(ctx, nil, session)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	s.log.Info("Study session started", "session_id", created.ID, "quiz_id", quizID, "total_questions", total)
	return created, nil
}

func (s *studySessionService) Get(ctx context.Context, sessionID uuid.UUID) (*types.StudySession, error) {
	session, err := s.sessionRepo.GetByID(ctx, nil, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if session == nil {
		return nil, fmt.Errorf("session %s not found", sessionID)
	}
	return session, nil
}

func (s *studySessionService) ListByUser(ctx context.Context, userID uuid.UUID) ([]*types.StudySession, error) {
	return s.sessionRepo.ListByUser(ctx, nil, userID)
}

// Abandon marks an in-progress session ABANDONED. Completed sessions stay as
// they are.
func (s *studySessionService) Abandon(ctx context.Context, userID, sessionID uuid.UUID) (*types.StudySession, error) {
	session, err := s.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.UserID != userID {
		return nil, fmt.Errorf("session %s does not belong to user %s", sessionID, userID)
	}
	if session.State != types.SessionInProgress {
		return nil, fmt.Errorf("session %s is not in progress, state %s", sessionID, session.State)
	}
	if err := s.sessionRepo.UpdateFields(ctx, nil, sessionID, map[string]interface{}{
		"state": types.SessionAbandoned,
	}); err != nil {
		return nil, fmt.Errorf("update session: %w", err)
	}
	return s.Get(ctx, sessionID)
}
