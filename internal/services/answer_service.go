package services

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/aulanet/aulanet-backend/internal/logger"
	"github.com/aulanet/aulanet-backend/internal/repos"
	"github.com/aulanet/aulanet-backend/internal/types"
)

const answerCorrectThreshold = 0.6

// SubmitAnswerInput carries one answer. Multiple-choice answers set
// SelectedIndex; open-ended answers set Text.
type SubmitAnswerInput struct {
	UserID         uuid.UUID `json:"user_id"`
	StudySessionID uuid.UUID `json:"study_session_id"`
	QuestionID     uuid.UUID `json:"question_id"`
	SelectedIndex  *int      `json:"selected_index,omitempty"`
	Text           string    `json:"text,omitempty"`
}

type AnswerEvaluation struct {
	Correct     bool    `json:"correct"`
	Score       float64 `json:"score"`
	Feedback    string  `json:"feedback,omitempty"`
	Explanation string  `json:"explanation,omitempty"`
}

type SubmitAnswerResult struct {
	Answer     *types.Answer       `json:"answer"`
	Session    *types.StudySession `json:"session"`
	Evaluation AnswerEvaluation    `json:"evaluation"`
}

// AnswerService records answers against in-progress sessions and keeps the
// session counters consistent with the answers that exist.
type AnswerService interface {
	Submit(ctx context.Context, input SubmitAnswerInput) (*SubmitAnswerResult, error)
	ListBySession(ctx context.Context, sessionID uuid.UUID) ([]*types.Answer, error)
}

type answerService struct {
	db           *gorm.DB
	selector     *AISelector
	answerRepo   repos.AnswerRepo
	questionRepo repos.QuestionRepo
	sessionRepo  repos.StudySessionRepo
	userRepo     repos.UserRepo
	log          *logger.Logger
}

func NewAnswerService(db *gorm.DB, selector *AISelector, answerRepo repos.AnswerRepo, questionRepo repos.QuestionRepo, sessionRepo repos.StudySessionRepo, userRepo repos.UserRepo, baseLog *logger.Logger) AnswerService {
	return &answerService{
		db:           db,
		selector:     selector,
		answerRepo:   answerRepo,
		questionRepo: questionRepo,
		sessionRepo:  sessionRepo,
		userRepo:     userRepo,
		log:          baseLog.With("service", "AnswerService"),
	}
}

// Submit validates, evaluates and records one answer, then updates the
// session counters in the same transaction as the insert.
func (s *answerService) Submit(ctx context.Context, input SubmitAnswerInput) (*SubmitAnswerResult, error) {
	question, err := s.questionRepo.GetByID(ctx, nil, input.QuestionID)
	if err != nil {
		return nil, fmt.Errorf("load question: %w", err)
	}
	if question == nil {
		return nil, fmt.Errorf("question %s not found", input.QuestionID)
	}

	user, err := s.userRepo.GetByID(ctx, nil, input.UserID)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("user %s not found", input.UserID)
	}

	session, err := s.sessionRepo.GetByID(ctx, nil, input.StudySessionID)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if session == nil {
		return nil, fmt.Errorf("session %s not found", input.StudySessionID)
	}
	if session.UserID != input.UserID {
		return nil, fmt.Errorf("session %s does not belong to user %s", session.ID, input.UserID)
	}
	if session.State != types.SessionInProgress {
		return nil, fmt.Errorf("answers can only be recorded on in-progress sessions, state %s", session.State)
	}
	if session.QuizID == nil {
		return nil, fmt.Errorf("session %s is no longer linked to a quiz", session.ID)
	}
	if question.QuizID != *session.QuizID {
		return nil, fmt.Errorf("question %s does not belong to quiz %s", question.ID, *session.QuizID)
	}

	existing, err := s.answerRepo.GetBySessionAndQuestion(ctx, nil, session.ID, question.ID, user.ID)
	if err != nil {
		return nil, fmt.Errorf("check existing answer: %w", err)
	}
	if existing != nil {
		return nil, fmt.Errorf("question %s was already answered in session %s", question.ID, session.ID)
	}

	evaluation, err := s.evaluate(ctx, question, input)
	if err != nil {
		return nil, err
	}
	evaluation.Explanation = question.Explanation

	answer := &types.Answer{
		QuestionID:     question.ID,
		UserID:         user.ID,
		StudySessionID: session.ID,
		SelectedIndex:  input.SelectedIndex,
		Text:           input.Text,
		Correct:        evaluation.Correct,
		Score:          evaluation.Score,
		Feedback:       evaluation.Feedback,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.answerRepo.Create(ctx, tx, answer); err != nil {
			return fmt.Errorf("create answer: %w", err)
		}
		updated := applyAnswerToSession(session, evaluation.Correct)
		if err := s.sessionRepo.UpdateFields(ctx, tx, session.ID, updated); err != nil {
			return fmt.Errorf("update session: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	session, err = s.sessionRepo.GetByID(ctx, nil, session.ID)
	if err != nil {
		return nil, fmt.Errorf("reload session: %w", err)
	}
	s.log.Info("Answer recorded",
		"session_id", session.ID,
		"question_id", question.ID,
		"correct", evaluation.Correct,
		"progress", session.ProgressPercentage,
	)
	return &SubmitAnswerResult{Answer: answer, Session: session, Evaluation: evaluation}, nil
}

func (s *answerService) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]*types.Answer, error) {
	session, err := s.sessionRepo.GetByID(ctx, nil, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if session == nil {
		return nil, fmt.Errorf("session %s not found", sessionID)
	}
	return s.answerRepo.ListBySession(ctx, nil, sessionID)
}

func (s *answerService) evaluate(ctx context.Context, question *types.Question, input SubmitAnswerInput) (AnswerEvaluation, error) {
	switch question.Kind {
	case types.QuestionMultipleChoice:
		if input.SelectedIndex == nil {
			return AnswerEvaluation{}, fmt.Errorf("selected_index is required for multiple-choice questions")
		}
		if question.CorrectIndex == nil {
			return AnswerEvaluation{}, fmt.Errorf("question %s has no correct index", question.ID)
		}
		correct := *input.SelectedIndex == *question.CorrectIndex
		score := 0.0
		if correct {
			score = 1.0
		}
		return AnswerEvaluation{Correct: correct, Score: score}, nil
	case types.QuestionOpenEnded:
		if strings.TrimSpace(input.Text) == "" {
			return AnswerEvaluation{}, fmt.Errorf("text is required for open-ended questions")
		}
		return s.evaluateOpenEnded(ctx, question, input.Text), nil
	default:
		return AnswerEvaluation{}, fmt.Errorf("unsupported question kind %s", question.Kind)
	}
}

// evaluateOpenEnded grades free text against the expected answer with the
// active model; when the model is unavailable it degrades to keyword overlap.
func (s *answerService) evaluateOpenEnded(ctx context.Context, question *types.Question, text string) AnswerEvaluation {
	clean := strings.TrimSpace(text)
	if len(clean) < 3 {
		return AnswerEvaluation{Feedback: "La respuesta está vacía o es demasiado corta."}
	}

	prompt := fmt.Sprintf(`Eres un evaluador académico experto. Debes evaluar la respuesta de un estudiante a una pregunta abierta.

**PREGUNTA:**
%s

**RESPUESTA ESPERADA (referencia):**
%s

**RESPUESTA DEL ESTUDIANTE:**
%s

**INSTRUCCIONES DE EVALUACIÓN:**
Evalúa la respuesta del estudiante comparándola con la respuesta esperada. Considera:
1. ¿Contiene los conceptos clave principales?
2. ¿Es coherente y tiene sentido en el contexto?
3. ¿Demuestra comprensión del tema?
4. No exijas una respuesta idéntica, valora respuestas correctas aunque estén redactadas diferente

**CRITERIOS DE CALIFICACIÓN:**
- **puntuacion:** valor numérico entre 0.0 y 1.0 (por ejemplo, 0.85).
- **correcta:** valor booleano (true si la puntuación es 0.6 o superior, false si es menor).
- **retroalimentacion:** texto breve (máximo 2 líneas) que indique qué hizo bien o qué puede mejorar el estudiante.

**FORMATO DE RESPUESTA (JSON):**
{
  "puntuacion": 0.0,
  "correcta": false,
  "retroalimentacion": ""
}`, question.Prompt, question.ExpectedAnswer, clean)

	temp := float32(0.3)
	provider, err := s.selector.EnsureAvailable(ctx)
	if err == nil {
		var raw string
		raw, err = provider.Generate(ctx, []AIMessage{
			{Role: RoleSystem, Content: "Eres un evaluador académico objetivo y justo. Respondes únicamente en formato JSON."},
			{Role: RoleUser, Content: prompt},
		}, &GenerationOptions{
			Temperature: &temp,
			MaxTokens:   500,
		})
		if err == nil {
			evaluation := parseModelEvaluation(raw)
			s.log.Info("Open answer evaluated", "question_id", question.ID, "score", evaluation.Score, "correct", evaluation.Correct)
			return evaluation
		}
	}

	s.log.Warn("Model evaluation failed, falling back to keyword overlap", "error", err.Error())
	return keywordFallbackEvaluation(clean, question.ExpectedAnswer)
}

var evalJSONRe = regexp.MustCompile(`(?s)\{.*\}`)
var positiveWordRe = regexp.MustCompile(`(?i)correct[ao]|bien|adecuad[ao]|acertad[ao]`)

// parseModelEvaluation extracts the {puntuacion, correcta, retroalimentacion}
// object from the completion. A completion with no parseable JSON is scored
// by whether it reads positively.
func parseModelEvaluation(raw string) AnswerEvaluation {
	match := evalJSONRe.FindString(raw)
	if match != "" {
		var parsed struct {
			Score    float64 `json:"puntuacion"`
			Correct  bool    `json:"correcta"`
			Feedback string  `json:"retroalimentacion"`
		}
		if err := json.Unmarshal([]byte(match), &parsed); err == nil {
			score := math.Max(0, math.Min(1, parsed.Score))
			feedback := parsed.Feedback
			if len(feedback) > 200 {
				feedback = feedback[:200]
			}
			if feedback == "" {
				feedback = "Evaluación completada."
			}
			return AnswerEvaluation{
				Correct:  parsed.Correct || score >= answerCorrectThreshold,
				Score:    score,
				Feedback: feedback,
			}
		}
	}

	positive := positiveWordRe.MatchString(raw)
	score := 0.3
	if positive {
		score = 0.7
	}
	feedback := raw
	if len(feedback) > 200 {
		feedback = feedback[:200]
	}
	if feedback == "" {
		feedback = "Evaluación completada."
	}
	return AnswerEvaluation{Correct: positive, Score: score, Feedback: feedback}
}

var answerStopwords = map[string]bool{
	"el": true, "la": true, "los": true, "las": true, "un": true, "una": true,
	"de": true, "del": true, "en": true, "y": true, "o": true, "que": true,
	"es": true, "por": true, "para": true, "con": true, "a": true, "como": true,
}

// keywordFallbackEvaluation scores by the share of expected keywords present
// in the student's text.
func keywordFallbackEvaluation(text, expected string) AnswerEvaluation {
	textLower := strings.ToLower(strings.TrimSpace(text))
	expectedLower := strings.ToLower(strings.TrimSpace(expected))

	keywords := make([]string, 0)
	for _, word := range strings.Fields(expectedLower) {
		if len(word) > 2 && !answerStopwords[word] {
			keywords = append(keywords, word)
		}
	}
	if len(keywords) == 0 {
		return AnswerEvaluation{Feedback: "No se pudo evaluar la respuesta esperada."}
	}

	found := 0
	for _, word := range keywords {
		if strings.Contains(textLower, word) {
			found++
		}
	}
	score := float64(found) / float64(len(keywords))
	correct := score >= answerCorrectThreshold

	var feedback string
	if correct {
		feedback = fmt.Sprintf("Respuesta correcta. Incluye %d de %d conceptos clave.", found, len(keywords))
	} else {
		feedback = fmt.Sprintf("Respuesta incompleta. Incluye solo %d de %d conceptos clave esperados.", found, len(keywords))
	}
	return AnswerEvaluation{Correct: correct, Score: score, Feedback: feedback}
}

// applyAnswerToSession recomputes the counters for one more answer and
// returns the column updates, flipping the state when the last question is
// answered. Percentages keep two decimals.
func applyAnswerToSession(session *types.StudySession, correct bool) map[string]interface{} {
	answered := session.AnsweredQuestions + 1
	correctCount := session.CorrectAnswers
	if correct {
		correctCount++
	}

	updates := map[string]interface{}{
		"answered_questions": answered,
		"correct_answers":    correctCount,
	}
	if session.TotalQuestions > 0 {
		updates["progress_percentage"] = roundToTwo(float64(answered) / float64(session.TotalQuestions) * 100)
	}
	if answered > 0 {
		updates["evaluation_percentage"] = roundToTwo(float64(correctCount) / float64(answered) * 100)
	}
	if session.TotalQuestions > 0 && answered >= session.TotalQuestions {
		now := time.Now()
		updates["state"] = types.SessionCompleted
		updates["completed_at"] = &now
	}
	return updates
}

func roundToTwo(value float64) float64 {
	return math.Round(value*100) / 100
}
