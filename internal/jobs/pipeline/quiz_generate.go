package pipeline

import (
	"fmt"

	"github.com/aulanet/aulanet-backend/internal/jobs/runtime"
	"github.com/aulanet/aulanet-backend/internal/logger"
	"github.com/aulanet/aulanet-backend/internal/services"
	"github.com/aulanet/aulanet-backend/internal/types"
)

// QuizGenerateHandler delegates to the quiz generator. Kind and difficulty
// ride in the payload so the HTTP layer only enqueues.
type QuizGenerateHandler struct {
	quizzes services.QuizGeneratorService
	log     *logger.Logger
}

func NewQuizGenerateHandler(quizzes services.QuizGeneratorService, baseLog *logger.Logger) *QuizGenerateHandler {
	return &QuizGenerateHandler{
		quizzes: quizzes,
		log:     baseLog.With("handler", types.JobTypeQuizGenerate),
	}
}

func (h *QuizGenerateHandler) Type() string { return types.JobTypeQuizGenerate }

func (h *QuizGenerateHandler) Run(jc *runtime.Context) error {
	noteID, ok := jc.PayloadUUID("note_id")
	if !ok {
		return fmt.Errorf("payload missing note_id")
	}
	userID, ok := jc.PayloadUUID("user_id")
	if !ok {
		userID = jc.Job.OwnerUserID
	}

	kind := types.QuizKind(jc.PayloadString("kind"))
	if kind == "" {
		kind = types.QuizMixed
	}
	difficulty := types.QuizDifficulty(jc.PayloadString("difficulty"))
	if difficulty == "" {
		difficulty = types.DifficultyMedium
	}

	jc.Progress(10, "Generando quiz")
	quiz, err := h.quizzes.GenerateFromNote(jc.Ctx, noteID, userID, kind, difficulty)
	if err != nil {
		return fmt.Errorf("generate quiz: %w", err)
	}

	jc.Succeed(map[string]any{
		"quiz_id":   quiz.ID.String(),
		"questions": len(quiz.Questions),
	})
	return nil
}
