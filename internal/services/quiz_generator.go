package services

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/aulanet/aulanet-backend/internal/logger"
	"github.com/aulanet/aulanet-backend/internal/repos"
	"github.com/aulanet/aulanet-backend/internal/types"
)

const maxQuizQuestions = 15

// QuizGeneratorService builds a quiz from a note's topics. The quiz row is
// persisted before generation and removed again if generation fails, so a
// quiz either exists with its questions or not at all.
type QuizGeneratorService interface {
	GenerateFromNote(ctx context.Context, noteID, userID uuid.UUID, kind types.QuizKind, difficulty types.QuizDifficulty) (*types.Quiz, error)
	GetQuiz(ctx context.Context, quizID uuid.UUID) (*types.Quiz, error)
	ListByNote(ctx context.Context, noteID uuid.UUID) ([]*types.Quiz, error)
	DeleteQuiz(ctx context.Context, quizID uuid.UUID) error
}

type quizGeneratorService struct {
	selector     *AISelector
	quizRepo     repos.QuizRepo
	questionRepo repos.QuestionRepo
	topicRepo    repos.TopicRepo
	noteRepo     repos.NoteRepo
	log          *logger.Logger
}

func NewQuizGeneratorService(selector *AISelector, quizRepo repos.QuizRepo, questionRepo repos.QuestionRepo, topicRepo repos.TopicRepo, noteRepo repos.NoteRepo, baseLog *logger.Logger) QuizGeneratorService {
	return &quizGeneratorService{
		selector:     selector,
		quizRepo:     quizRepo,
		questionRepo: questionRepo,
		topicRepo:    topicRepo,
		noteRepo:     noteRepo,
		log:          baseLog.With("service", "QuizGeneratorService"),
	}
}

type rawQuestion struct {
	Kind           string          `json:"tipo"`
	Prompt         string          `json:"enunciado"`
	Options        []string        `json:"opciones"`
	CorrectAnswer  json.RawMessage `json:"respuestaCorrecta"`
	ExpectedAnswer string          `json:"respuestaEsperada"`
	Explanation    string          `json:"explicacion"`
}

// QuestionCount gives questions-per-topic by difficulty (3/4/5), times the
// topic count, capped at 15.
func QuestionCount(difficulty types.QuizDifficulty, topicCount int) int {
	perTopic := 4
	switch difficulty {
	case types.DifficultyEasy:
		perTopic = 3
	case types.DifficultyHard:
		perTopic = 5
	}
	n := perTopic * topicCount
	if n > maxQuizQuestions {
		n = maxQuizQuestions
	}
	return n
}

// MixedSplit divides a MIXED quiz 60/40 with the multiple-choice share
// rounded up.
func MixedSplit(total int) (multipleChoice, openEnded int) {
	multipleChoice = int(math.Ceil(float64(total) * 0.6))
	openEnded = total - multipleChoice
	return
}

func (s *quizGeneratorService) GenerateFromNote(ctx context.Context, noteID, userID uuid.UUID, kind types.QuizKind, difficulty types.QuizDifficulty) (*types.Quiz, error) {
	note, err := s.noteRepo.GetByID(ctx, nil, noteID)
	if err != nil {
		return nil, fmt.Errorf("load note: %w", err)
	}
	if note == nil {
		return nil, fmt.Errorf("note %s not found", noteID)
	}

	topics, err := s.topicRepo.ListByNote(ctx, nil, noteID)
	if err != nil {
		return nil, fmt.Errorf("list topics: %w", err)
	}
	if len(topics) == 0 {
		return nil, fmt.Errorf("note %s has no topics", noteID)
	}

	if kind == "" {
		kind = types.QuizMultipleChoice
	}
	if difficulty == "" {
		difficulty = types.DifficultyMedium
	}

	quiz := &types.Quiz{
		NoteID:     noteID,
		UserID:     userID,
		Title:      fmt.Sprintf("Quiz: %s", note.Title),
		Kind:       kind,
		Difficulty: difficulty,
		Status:     types.StatusProcessing,
	}
	saved, err := s.quizRepo.Create(ctx, nil, quiz)
	if err != nil {
		return nil, fmt.Errorf("persist quiz: %w", err)
	}

	questions, err := s.generateQuestions(ctx, saved, topics)
	if err != nil {
		// Roll the placeholder back so no empty quiz survives a failure.
		if delErr := s.quizRepo.HardDelete(ctx, nil, saved.ID); delErr != nil {
			s.log.Error("Could not delete quiz after generation failure", "quiz_id", saved.ID, "error", delErr)
		}
		return nil, fmt.Errorf("generate questions: %w", err)
	}

	if err := s.quizRepo.UpdateFields(ctx, nil, saved.ID, map[string]interface{}{
		"status": types.StatusCompleted,
	}); err != nil {
		return nil, fmt.Errorf("finalize quiz: %w", err)
	}
	saved.Status = types.StatusCompleted
	saved.Questions = make([]types.Question, 0, len(questions))
	for _, q := range questions {
		saved.Questions = append(saved.Questions, *q)
	}
	s.log.Info("Quiz generated", "quiz_id", saved.ID, "questions", len(questions))
	return saved, nil
}

func (s *quizGeneratorService) generateQuestions(ctx context.Context, quiz *types.Quiz, topics []*types.Topic) ([]*types.Question, error) {
	provider, err := s.selector.EnsureAvailable(ctx)
	if err != nil {
		return nil, err
	}

	titles := make([]string, 0, len(topics))
	var sectionText strings.Builder
	for _, topic := range topics {
		titles = append(titles, topic.Title)
		sectionText.WriteString(fmt.Sprintf("\n\n## TEMA: %s\n", topic.Title))
		outline, err := topic.DecodeOutline()
		if err != nil {
			continue
		}
		sectionTitles := make([]string, 0, len(outline.Sections))
		for _, sec := range outline.Sections {
			sectionTitles = append(sectionTitles, sec.Title)
		}
		sectionText.WriteString(strings.Join(sectionTitles, "\n\n"))
	}

	total := QuestionCount(quiz.Difficulty, len(topics))
	numMultiple, numOpen := total, 0
	if quiz.Kind == types.QuizMixed {
		numMultiple, numOpen = MixedSplit(total)
	}

	var kindInstruction string
	switch quiz.Kind {
	case types.QuizMultipleChoice:
		kindInstruction = "de opción múltiple"
	case types.QuizOpenEnded:
		kindInstruction = "abiertas"
	default:
		kindInstruction = fmt.Sprintf("mixtas (%d de opción múltiple y %d abiertas)", numMultiple, numOpen)
	}

	mixedNote := ""
	if quiz.Kind == types.QuizMixed {
		mixedNote = fmt.Sprintf("\n\nIMPORTANTE: Debes crear exactamente %d preguntas de opción múltiple y %d preguntas abiertas. Cada pregunta DEBE incluir el campo \"tipo\" con valor \"multiple\" o \"abierta\".", numMultiple, numOpen)
	}

	temp := float32(0.7)
	messages := []AIMessage{
		{Role: RoleSystem, Content: "Eres un profesor experto que crea preguntas educativas de alta calidad. Genera preguntas basadas en el contenido proporcionado. Devuelve ÚNICAMENTE un array JSON válido con las preguntas, sin texto adicional. NO incluyas explicaciones, comentarios ni razonamiento. SOLO el JSON."},
		{Role: RoleUser, Content: fmt.Sprintf(`Crea %d preguntas %s sobre los siguientes temas: "%s"

Secciones de cada tema:
%s

Formato requerido (solo JSON):
[
  {
    "tipo": "multiple",
    "enunciado": "Texto de la pregunta",
    "opciones": ["Opción A", "Opción B", "Opción C", "Opción D"],
    "respuestaCorrecta": "Índice de la opción correcta (0-3)",
    "explicacion": "Explicación de la respuesta correcta"
  },
  {
    "tipo": "abierta",
    "enunciado": "Texto de la pregunta",
    "respuestaEsperada": "Texto con la respuesta esperada",
    "explicacion": "Explicación de la respuesta correcta"
  }
]

Nivel de dificultad: %s
Distribuye las preguntas de manera equilibrada entre todos los temas proporcionados.%s`,
			total, kindInstruction, strings.Join(titles, ", "), sectionText.String(), quiz.Difficulty, mixedNote)},
	}

	// Roughly 400 tokens per question plus headroom.
	estimatedTokens := total * 500
	if estimatedTokens < 6000 {
		estimatedTokens = 6000
	}

	s.log.Info("Generating questions", "quiz_id", quiz.ID, "count", total, "kind", quiz.Kind, "difficulty", quiz.Difficulty)
	raw, err := provider.Generate(ctx, messages, &GenerationOptions{
		Temperature: &temp,
		MaxTokens:   estimatedTokens,
	})
	if err != nil {
		return nil, err
	}

	parsed, err := ParseQuestions(raw, quiz.Kind, total)
	if err != nil {
		return nil, err
	}

	entities := make([]*types.Question, 0, len(parsed))
	for i, rq := range parsed {
		q := &types.Question{
			QuizID:      quiz.ID,
			Prompt:      rq.Prompt,
			Explanation: rq.Explanation,
			OrderIndex:  i,
		}
		if rq.Kind == "multiple" {
			optionsJSON, err := json.Marshal(rq.Options)
			if err != nil {
				return nil, fmt.Errorf("encode options: %w", err)
			}
			idx := parseCorrectIndex(rq.CorrectAnswer, len(rq.Options))
			q.Kind = types.QuestionMultipleChoice
			q.Options = datatypes.JSON(optionsJSON)
			q.CorrectIndex = &idx
		} else {
			q.Kind = types.QuestionOpenEnded
			q.ExpectedAnswer = rq.ExpectedAnswer
		}
		entities = append(entities, q)
	}
	return s.questionRepo.Create(ctx, nil, entities)
}

// ParseQuestions extracts, repairs and validates the model's question array.
// Recovering fewer than half of the expected questions is a hard failure.
func ParseQuestions(raw string, kind types.QuizKind, expected int) ([]rawQuestion, error) {
	clean := strings.TrimSpace(raw)
	clean = fenceOpenRe.ReplaceAllString(clean, "")
	clean = fenceCloseRe.ReplaceAllString(clean, "")

	first, last := strings.Index(clean, "["), strings.LastIndex(clean, "]")
	if first == -1 {
		return nil, fmt.Errorf("no JSON array found in response")
	}
	var jsonStr string
	if last > first {
		jsonStr = clean[first : last+1]
	} else {
		jsonStr = clean[first:]
	}

	var questions []rawQuestion
	if err := json.Unmarshal([]byte(jsonStr), &questions); err != nil {
		repaired := RepairTruncatedJSON(jsonStr)
		if err2 := json.Unmarshal([]byte(repaired), &questions); err2 != nil {
			return nil, fmt.Errorf("invalid and unrepairable JSON: %w", err)
		}
	}

	// Invalid questions are dropped one by one; only the recovery floor
	// below fails the batch.
	validated := make([]rawQuestion, 0, len(questions))
	for _, q := range questions {
		if strings.TrimSpace(q.Prompt) == "" {
			continue
		}
		qKind := q.Kind
		if qKind == "" {
			switch {
			case kind == types.QuizMultipleChoice:
				qKind = "multiple"
			case kind == types.QuizOpenEnded:
				qKind = "abierta"
			case len(q.Options) > 0:
				qKind = "multiple"
			default:
				qKind = "abierta"
			}
		}
		if qKind == "multiple" {
			if len(q.Options) < 2 {
				continue
			}
		} else if strings.TrimSpace(q.ExpectedAnswer) == "" {
			continue
		}
		q.Kind = qKind
		validated = append(validated, q)
	}

	minimum := int(math.Ceil(float64(expected) * 0.5))
	if len(validated) < minimum {
		return nil, fmt.Errorf("recovered only %d of %d expected questions", len(validated), expected)
	}
	return validated, nil
}

// parseCorrectIndex accepts a JSON number or numeric string; anything out of
// range, including garbage, falls back to the first option.
func parseCorrectIndex(raw json.RawMessage, optionCount int) int {
	if len(raw) == 0 {
		return 0
	}
	var asInt int
	if err := json.Unmarshal(raw, &asInt); err == nil {
		if asInt >= 0 && asInt < optionCount {
			return asInt
		}
		return 0
	}
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		if n, err := strconv.Atoi(strings.TrimSpace(asString)); err == nil && n >= 0 && n < optionCount {
			return n
		}
	}
	return 0
}

// RepairTruncatedJSON closes off a JSON string cut mid-stream: trailing comma
// removed, an odd quote count closed, then unbalanced braces and brackets
// appended.
func RepairTruncatedJSON(jsonStr string) string {
	repaired := strings.TrimSpace(jsonStr)

	if strings.HasSuffix(repaired, ",") {
		repaired = repaired[:len(repaired)-1]
	}
	if strings.Count(repaired, `"`)%2 != 0 {
		repaired += `"`
	}
	openBraces := strings.Count(repaired, "{")
	closeBraces := strings.Count(repaired, "}")
	for i := 0; i < openBraces-closeBraces; i++ {
		repaired += "}"
	}
	openBrackets := strings.Count(repaired, "[")
	closeBrackets := strings.Count(repaired, "]")
	for i := 0; i < openBrackets-closeBrackets; i++ {
		repaired += "]"
	}
	return repaired
}

func (s *quizGeneratorService) GetQuiz(ctx context.Context, quizID uuid.UUID) (*types.Quiz, error) {
	quiz, err := s.quizRepo.GetByIDWithQuestions(ctx, nil, quizID)
	if err != nil {
		return nil, err
	}
	if quiz == nil {
		return nil, fmt.Errorf("quiz %s not found", quizID)
	}
	return quiz, nil
}

func (s *quizGeneratorService) ListByNote(ctx context.Context, noteID uuid.UUID) ([]*types.Quiz, error) {
	return s.quizRepo.ListByNote(ctx, nil, noteID)
}

func (s *quizGeneratorService) DeleteQuiz(ctx context.Context, quizID uuid.UUID) error {
	quiz, err := s.quizRepo.GetByID(ctx, nil, quizID)
	if err != nil {
		return err
	}
	if quiz == nil {
		return fmt.Errorf("quiz %s not found", quizID)
	}
	return s.quizRepo.HardDelete(ctx, nil, quizID)
}
