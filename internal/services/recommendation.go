package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aulanet/aulanet-backend/internal/logger"
	"github.com/aulanet/aulanet-backend/internal/repos"
	"github.com/aulanet/aulanet-backend/internal/types"
)

const (
	maxRecommendations      = 5
	recentSessionWindow     = 10
	recentIncorrectWindow   = 30
	quizIncorrectWindow     = 50
	similarityQueryPrompts  = 10
	directTopicSimilarity   = 1.0
	reasonDirectTopic       = "Tema relacionado con preguntas que respondiste incorrectamente"
	reasonSimilarTopic      = "Tema similar a conceptos donde tuviste dificultades"
	messageNoSessions       = "No hay sesiones de estudio previas para generar recomendaciones."
	messageNoIncorrect      = "No hay respuestas incorrectas recientes. ¡Excelente desempeño!"
	messageNoQuizSessions   = "No hay sesiones de estudio para este quiz."
	messageNoQuizIncorrect  = "No hay respuestas incorrectas en este quiz. ¡Excelente desempeño!"
)

// TopicRecommendation is one suggested topic to review, scored in [0,1].
type TopicRecommendation struct {
	Topic      *types.Topic `json:"topic"`
	Reason     string       `json:"reason"`
	Similarity float64      `json:"similarity"`
}

type RecommendationStats struct {
	TotalIncorrect    int     `json:"total_incorrect"`
	SessionsAnalyzed  int     `json:"sessions_analyzed"`
	AverageEvaluation float64 `json:"average_evaluation"`
}

// Recommendations is the cross-quiz result. Message is set instead of
// recommendations when the user has no history to analyze.
type Recommendations struct {
	Recommendations []TopicRecommendation `json:"recommendations"`
	Stats           *RecommendationStats  `json:"stats,omitempty"`
	Message         string                `json:"message,omitempty"`
}

// SessionErrorDetail summarizes one session's mistakes for the per-quiz view.
type SessionErrorDetail struct {
	SessionID        uuid.UUID `json:"session_id"`
	StartedAt        time.Time `json:"started_at"`
	Errors           int       `json:"errors"`
	EvaluationResult float64   `json:"evaluation_result"`
}

type QuizRecommendations struct {
	Recommendations []TopicRecommendation `json:"recommendations"`
	SessionDetails  []SessionErrorDetail  `json:"session_details"`
	Explanation     string                `json:"explanation,omitempty"`
	Message         string                `json:"message,omitempty"`
}

// RecommendationService derives topics to review from a user's incorrect
// answers. The cross-quiz variant supplements direct matches with embedding
// similarity; the per-quiz variant reports direct matches only.
type RecommendationService interface {
	ForUser(ctx context.Context, userID uuid.UUID) (*Recommendations, error)
	ForQuiz(ctx context.Context, userID, quizID uuid.UUID) (*QuizRecommendations, error)
}

type recommendationService struct {
	sessionRepo repos.StudySessionRepo
	answerRepo  repos.AnswerRepo
	topicRepo   repos.TopicRepo
	quizRepo    repos.QuizRepo
	embeddings  EmbeddingService
	log         *logger.Logger
}

func NewRecommendationService(sessionRepo repos.StudySessionRepo, answerRepo repos.AnswerRepo, topicRepo repos.TopicRepo, quizRepo repos.QuizRepo, embeddings EmbeddingService, baseLog *logger.Logger) RecommendationService {
	return &recommendationService{
		sessionRepo: sessionRepo,
		answerRepo:  answerRepo,
		topicRepo:   topicRepo,
		quizRepo:    quizRepo,
		embeddings:  embeddings,
		log:         baseLog.With("service", "RecommendationService"),
	}
}

// ForUser analyzes the user's last sessions and incorrect answers across all
// quizzes. Topics behind failed questions score 1.0; remaining slots are
// filled by embedding similarity against the failed prompts.
func (s *recommendationService) ForUser(ctx context.Context, userID uuid.UUID) (*Recommendations, error) {
	sessions, err := s.sessionRepo.ListByUser(ctx, nil, userID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	if len(sessions) == 0 {
		return &Recommendations{Recommendations: []TopicRecommendation{}, Message: messageNoSessions}, nil
	}
	recent := sessions
	if len(recent) > recentSessionWindow {
		recent = recent[:recentSessionWindow]
	}

	incorrect, err := s.answerRepo.ListIncorrectByUser(ctx, nil, userID, recentIncorrectWindow)
	if err != nil {
		return nil, fmt.Errorf("list incorrect answers: %w", err)
	}
	stats := &RecommendationStats{
		TotalIncorrect:    len(incorrect),
		SessionsAnalyzed:  len(recent),
		AverageEvaluation: averageEvaluation(recent),
	}
	if len(incorrect) == 0 {
		return &Recommendations{Recommendations: []TopicRecommendation{}, Stats: stats, Message: messageNoIncorrect}, nil
	}

	recs := s.directTopics(ctx, incorrect)

	if len(recs) < maxRecommendations && s.embeddings != nil {
		query := failedPromptsQuery(incorrect, similarityQueryPrompts)
		if query != "" {
			exclude := make([]uuid.UUID, 0, len(recs))
			for _, rec := range recs {
				exclude = append(exclude, rec.Topic.ID)
			}
			similar, err := s.embeddings.FindSimilarTopics(ctx, query, maxRecommendations-len(recs), exclude)
			switch {
			case errors.Is(err, ErrEmbeddingUnsupported):
				s.log.Warn("Similarity fill skipped, provider has no embeddings")
			case err != nil:
				s.log.Warn("Similarity fill failed", "error", err.Error())
			default:
				for _, match := range similar {
					recs = append(recs, TopicRecommendation{
						Topic:      match.Topic,
						Reason:     reasonSimilarTopic,
						Similarity: match.Similarity,
					})
				}
			}
		}
	}

	if len(recs) > maxRecommendations {
		recs = recs[:maxRecommendations]
	}
	return &Recommendations{Recommendations: recs, Stats: stats}, nil
}

// ForQuiz analyzes only sessions of one quiz. Embedding similarity is left
// out here, the quiz's own topics are the ones worth repeating.
func (s *recommendationService) ForQuiz(ctx context.Context, userID, quizID uuid.UUID) (*QuizRecommendations, error) {
	quizSessions, err := s.sessionRepo.ListByQuiz(ctx, nil, quizID)
	if err != nil {
		return nil, fmt.Errorf("list quiz sessions: %w", err)
	}
	userSessions := make([]*types.StudySession, 0, len(quizSessions))
	for _, session := range quizSessions {
		if session.UserID == userID {
			userSessions = append(userSessions, session)
		}
	}
	if len(userSessions) == 0 {
		return &QuizRecommendations{
			Recommendations: []TopicRecommendation{},
			SessionDetails:  []SessionErrorDetail{},
			Message:         messageNoQuizSessions,
		}, nil
	}

	incorrect, err := s.answerRepo.ListIncorrectByUserAndQuiz(ctx, nil, userID, quizID, quizIncorrectWindow)
	if err != nil {
		return nil, fmt.Errorf("list incorrect answers: %w", err)
	}

	errorsBySession := make(map[uuid.UUID]int, len(userSessions))
	for _, answer := range incorrect {
		errorsBySession[answer.StudySessionID]++
	}
	details := make([]SessionErrorDetail, 0, len(userSessions))
	for _, session := range userSessions {
		details = append(details, SessionErrorDetail{
			SessionID:        session.ID,
			StartedAt:        session.StartedAt,
			Errors:           errorsBySession[session.ID],
			EvaluationResult: session.EvaluationPercentage,
		})
	}

	if len(incorrect) == 0 {
		return &QuizRecommendations{
			Recommendations: []TopicRecommendation{},
			SessionDetails:  details,
			Message:         messageNoQuizIncorrect,
		}, nil
	}

	recs := s.directTopics(ctx, incorrect)
	if len(recs) > maxRecommendations {
		recs = recs[:maxRecommendations]
	}
	return &QuizRecommendations{
		Recommendations: recs,
		SessionDetails:  details,
		Explanation:     fmt.Sprintf("Se analizaron %d sesiones de este quiz para identificar los temas con más errores.", len(userSessions)),
	}, nil
}

// directTopics walks each failed question back through its quiz to the note
// that produced it and recommends that note's topics with the maximum score.
func (s *recommendationService) directTopics(ctx context.Context, incorrect []*types.Answer) []TopicRecommendation {
	seenQuiz := make(map[uuid.UUID]bool)
	seenNote := make(map[uuid.UUID]bool)
	noteIDs := make([]uuid.UUID, 0, len(incorrect))
	for _, answer := range incorrect {
		if answer.Question == nil || seenQuiz[answer.Question.QuizID] {
			continue
		}
		seenQuiz[answer.Question.QuizID] = true
		quiz, err := s.quizRepo.GetByID(ctx, nil, answer.Question.QuizID)
		if err != nil {
			s.log.Warn("Quiz lookup failed", "quiz_id", answer.Question.QuizID, "error", err.Error())
			continue
		}
		if quiz == nil || seenNote[quiz.NoteID] {
			continue
		}
		seenNote[quiz.NoteID] = true
		noteIDs = append(noteIDs, quiz.NoteID)
	}
	if len(noteIDs) == 0 {
		return []TopicRecommendation{}
	}

	topics, err := s.topicRepo.ListByNotes(ctx, nil, noteIDs)
	if err != nil {
		s.log.Warn("Direct topic lookup failed", "error", err.Error())
		return []TopicRecommendation{}
	}
	recs := make([]TopicRecommendation, 0, len(topics))
	for _, topic := range topics {
		recs = append(recs, TopicRecommendation{
			Topic:      topic,
			Reason:     reasonDirectTopic,
			Similarity: directTopicSimilarity,
		})
	}
	return recs
}

// failedPromptsQuery joins the first prompts of failed questions into one
// similarity query.
func failedPromptsQuery(incorrect []*types.Answer, limit int) string {
	prompts := make([]string, 0, limit)
	for _, answer := range incorrect {
		if len(prompts) >= limit {
			break
		}
		if answer.Question == nil || strings.TrimSpace(answer.Question.Prompt) == "" {
			continue
		}
		prompts = append(prompts, strings.TrimSpace(answer.Question.Prompt))
	}
	return strings.Join(prompts, " ")
}

func averageEvaluation(sessions []*types.StudySession) float64 {
	if len(sessions) == 0 {
		return 0
	}
	var sum float64
	for _, session := range sessions {
		sum += session.EvaluationPercentage
	}
	return math.Round(sum/float64(len(sessions))*100) / 100
}
