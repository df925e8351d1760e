package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/aulanet/aulanet-backend/internal/logger"
	"github.com/aulanet/aulanet-backend/internal/repos"
	"github.com/aulanet/aulanet-backend/internal/types"
)

func TestParseModelEvaluation(t *testing.T) {
	cases := []struct {
		name         string
		raw          string
		wantCorrect  bool
		wantScore    float64
		wantFeedback string
	}{
		{
			name:         "clean json",
			raw:          `{"puntuacion": 0.85, "correcta": true, "retroalimentacion": "Muy bien."}`,
			wantCorrect:  true,
			wantScore:    0.85,
			wantFeedback: "Muy bien.",
		},
		{
			name:         "score above one is clamped",
			raw:          `{"puntuacion": 3.5, "correcta": true, "retroalimentacion": "ok"}`,
			wantCorrect:  true,
			wantScore:    1,
			wantFeedback: "ok",
		},
		{
			name:         "score at threshold forces correct",
			raw:          `{"puntuacion": 0.6, "correcta": false, "retroalimentacion": "Aceptable."}`,
			wantCorrect:  true,
			wantScore:    0.6,
			wantFeedback: "Aceptable.",
		},
		{
			name:         "empty feedback gets default",
			raw:          `{"puntuacion": 0.2, "correcta": false, "retroalimentacion": ""}`,
			wantCorrect:  false,
			wantScore:    0.2,
			wantFeedback: "Evaluación completada.",
		},
		{
			name:         "json embedded in prose",
			raw:          "Claro, aquí está: {\"puntuacion\": 0.7, \"correcta\": true, \"retroalimentacion\": \"Bien.\"} saludos",
			wantCorrect:  true,
			wantScore:    0.7,
			wantFeedback: "Bien.",
		},
		{
			name:        "no json but positive wording",
			raw:         "La respuesta es correcta y está bien fundamentada.",
			wantCorrect: true,
			wantScore:   0.7,
		},
		{
			name:        "no json and negative wording",
			raw:         "La respuesta no aborda la pregunta.",
			wantCorrect: false,
			wantScore:   0.3,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := parseModelEvaluation(tc.raw)
			if got.Correct != tc.wantCorrect {
				t.Fatalf("correct = %v, want %v", got.Correct, tc.wantCorrect)
			}
			if got.Score != tc.wantScore {
				t.Fatalf("score = %v, want %v", got.Score, tc.wantScore)
			}
			if tc.wantFeedback != "" && got.Feedback != tc.wantFeedback {
				t.Fatalf("feedback = %q, want %q", got.Feedback, tc.wantFeedback)
			}
		})
	}
}

func TestParseModelEvaluationTruncatesLongFeedback(t *testing.T) {
	long := strings.Repeat("a", 300)
	got := parseModelEvaluation(`{"puntuacion": 0.9, "correcta": true, "retroalimentacion": "` + long + `"}`)
	if len(got.Feedback) != 200 {
		t.Fatalf("feedback length %d, want 200", len(got.Feedback))
	}
}

func TestKeywordFallbackEvaluation(t *testing.T) {
	cases := []struct {
		name        string
		text        string
		expected    string
		wantCorrect bool
	}{
		{
			name:        "full overlap",
			text:        "La fotosíntesis convierte luz solar en energía química",
			expected:    "fotosíntesis convierte luz energía",
			wantCorrect: true,
		},
		{
			name:        "partial overlap below threshold",
			text:        "Habla de plantas",
			expected:    "fotosíntesis convierte luz energía química cloroplastos",
			wantCorrect: false,
		},
		{
			name:        "stopwords-only expected answer",
			text:        "cualquier cosa",
			expected:    "el la de en",
			wantCorrect: false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := keywordFallbackEvaluation(tc.text, tc.expected)
			if got.Correct != tc.wantCorrect {
				t.Fatalf("correct = %v, want %v (score %v, feedback %q)", got.Correct, tc.wantCorrect, got.Score, got.Feedback)
			}
		})
	}
}

func TestApplyAnswerToSession(t *testing.T) {
	cases := []struct {
		name          string
		session       types.StudySession
		correct       bool
		wantProgress  float64
		wantEval      float64
		wantCompleted bool
	}{
		{
			name:         "first of three correct",
			session:      types.StudySession{TotalQuestions: 3},
			correct:      true,
			wantProgress: 33.33,
			wantEval:     100,
		},
		{
			name:         "second of three incorrect",
			session:      types.StudySession{TotalQuestions: 3, AnsweredQuestions: 1, CorrectAnswers: 1},
			correct:      false,
			wantProgress: 66.67,
			wantEval:     50,
		},
		{
			name:          "final answer completes the session",
			session:       types.StudySession{TotalQuestions: 3, AnsweredQuestions: 2, CorrectAnswers: 1},
			correct:       true,
			wantProgress:  100,
			wantEval:      66.67,
			wantCompleted: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			updates := applyAnswerToSession(&tc.session, tc.correct)
			if got := updates["progress_percentage"]; got != tc.wantProgress {
				t.Fatalf("progress = %v, want %v", got, tc.wantProgress)
			}
			if got := updates["evaluation_percentage"]; got != tc.wantEval {
				t.Fatalf("evaluation = %v, want %v", got, tc.wantEval)
			}
			state, completed := updates["state"]
			if completed != tc.wantCompleted {
				t.Fatalf("completion flag = %v, want %v", completed, tc.wantCompleted)
			}
			if completed {
				if state != types.SessionCompleted {
					t.Fatalf("state = %v, want COMPLETED", state)
				}
				if updates["completed_at"] == nil {
					t.Fatal("completed_at not set")
				}
			}
		})
	}
}

type answerFixture struct {
	db        *gorm.DB
	svc       AnswerService
	sessions  StudySessionService
	user      *types.User
	session   *types.StudySession
	questions []*types.Question
}

// newAnswerFixture seeds a COMPLETED quiz with the given questions and an
// in-progress session for one user.
func newAnswerFixture(t *testing.T, provider AIProvider, questions []*types.Question) *answerFixture {
	t.Helper()
	db := newTestDB(t)
	log := logger.Nop()
	user := seedUser(t, db)
	transcript := seedTranscript(t, db, user.ID, "texto")
	note := seedNote(t, db, transcript.ID, user.ID, "Apuntes.")

	quiz := &types.Quiz{NoteID: note.ID, UserID: user.ID, Title: "Quiz", Kind: types.QuizMixed, Difficulty: types.DifficultyMedium, Status: types.StatusCompleted}
	if err := db.Create(quiz).Error; err != nil {
		t.Fatalf("seed quiz: %v", err)
	}
	for i, q := range questions {
		q.QuizID = quiz.ID
		q.OrderIndex = i
	}
	questionRepo := repos.NewQuestionRepo(db, log)
	if _, err := questionRepo.Create(context.Background(), nil, questions); err != nil {
		t.Fatalf("seed questions: %v", err)
	}

	selector := newTestSelector(provider)
	sessionRepo := repos.NewStudySessionRepo(db, log)
	userRepo := repos.NewUserRepo(db, log)
	sessions := NewStudySessionService(sessionRepo, repos.NewQuizRepo(db, log), questionRepo, userRepo, log)
	session, err := sessions.Start(context.Background(), user.ID, quiz.ID)
	if err != nil {
		t.Fatalf("start session: %v", err)
	}

	svc := NewAnswerService(db, selector, repos.NewAnswerRepo(db, log), questionRepo, sessionRepo, userRepo, log)
	return &answerFixture{db: db, svc: svc, sessions: sessions, user: user, session: session, questions: questions}
}

func mcOptions(t *testing.T) datatypes.JSON {
	t.Helper()
	raw, err := json.Marshal([]string{"A", "B", "C", "D"})
	if err != nil {
		t.Fatalf("marshal options: %v", err)
	}
	return datatypes.JSON(raw)
}

func intPtr(v int) *int { return &v }

func TestSubmitMultipleChoiceFlow(t *testing.T) {
	f := newAnswerFixture(t, &fakeProvider{}, []*types.Question{
		{Kind: types.QuestionMultipleChoice, Prompt: "P1", Options: mcOptions(t), CorrectIndex: intPtr(1)},
		{Kind: types.QuestionMultipleChoice, Prompt: "P2", Options: mcOptions(t), CorrectIndex: intPtr(2)},
	})
	ctx := context.Background()

	result, err := f.svc.Submit(ctx, SubmitAnswerInput{
		UserID:         f.user.ID,
		StudySessionID: f.session.ID,
		QuestionID:     f.questions[0].ID,
		SelectedIndex:  intPtr(1),
	})
	if err != nil {
		t.Fatalf("submit first answer: %v", err)
	}
	if !result.Evaluation.Correct || result.Evaluation.Score != 1 {
		t.Fatalf("correct choice graded %v/%v", result.Evaluation.Correct, result.Evaluation.Score)
	}
	if result.Session.AnsweredQuestions != 1 || result.Session.CorrectAnswers != 1 {
		t.Fatalf("counters %d/%d after first answer", result.Session.AnsweredQuestions, result.Session.CorrectAnswers)
	}
	if result.Session.ProgressPercentage != 50 || result.Session.EvaluationPercentage != 100 {
		t.Fatalf("percentages %v/%v after first answer", result.Session.ProgressPercentage, result.Session.EvaluationPercentage)
	}

	result, err = f.svc.Submit(ctx, SubmitAnswerInput{
		UserID:         f.user.ID,
		StudySessionID: f.session.ID,
		QuestionID:     f.questions[1].ID,
		SelectedIndex:  intPtr(0),
	})
	if err != nil {
		t.Fatalf("submit second answer: %v", err)
	}
	if result.Evaluation.Correct || result.Evaluation.Score != 0 {
		t.Fatalf("wrong choice graded %v/%v", result.Evaluation.Correct, result.Evaluation.Score)
	}
	if result.Session.State != types.SessionCompleted {
		t.Fatalf("session state %s after answering everything", result.Session.State)
	}
	if result.Session.CompletedAt == nil {
		t.Fatal("completed_at not set")
	}
	if result.Session.ProgressPercentage != 100 || result.Session.EvaluationPercentage != 50 {
		t.Fatalf("final percentages %v/%v", result.Session.ProgressPercentage, result.Session.EvaluationPercentage)
	}
}

func TestSubmitRejectsDuplicateAnswer(t *testing.T) {
	f := newAnswerFixture(t, &fakeProvider{}, []*types.Question{
		{Kind: types.QuestionMultipleChoice, Prompt: "P1", Options: mcOptions(t), CorrectIndex: intPtr(0)},
		{Kind: types.QuestionMultipleChoice, Prompt: "P2", Options: mcOptions(t), CorrectIndex: intPtr(0)},
	})
	ctx := context.Background()

	input := SubmitAnswerInput{
		UserID:         f.user.ID,
		StudySessionID: f.session.ID,
		QuestionID:     f.questions[0].ID,
		SelectedIndex:  intPtr(0),
	}
	if _, err := f.svc.Submit(ctx, input); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if _, err := f.svc.Submit(ctx, input); err == nil {
		t.Fatal("expected error for duplicate answer")
	}

	session, err := f.sessions.Get(ctx, f.session.ID)
	if err != nil {
		t.Fatalf("reload session: %v", err)
	}
	if session.AnsweredQuestions != 1 {
		t.Fatalf("duplicate attempt changed counters: answered=%d", session.AnsweredQuestions)
	}
}

func TestSubmitValidatesOwnershipAndState(t *testing.T) {
	f := newAnswerFixture(t, &fakeProvider{}, []*types.Question{
		{Kind: types.QuestionMultipleChoice, Prompt: "P1", Options: mcOptions(t), CorrectIndex: intPtr(0)},
	})
	ctx := context.Background()
	stranger := seedUser(t, f.db)

	if _, err := f.svc.Submit(ctx, SubmitAnswerInput{
		UserID:         stranger.ID,
		StudySessionID: f.session.ID,
		QuestionID:     f.questions[0].ID,
		SelectedIndex:  intPtr(0),
	}); err == nil {
		t.Fatal("expected error for another user's session")
	}

	if _, err := f.sessions.Abandon(ctx, f.user.ID, f.session.ID); err != nil {
		t.Fatalf("abandon session: %v", err)
	}
	if _, err := f.svc.Submit(ctx, SubmitAnswerInput{
		UserID:         f.user.ID,
		StudySessionID: f.session.ID,
		QuestionID:     f.questions[0].ID,
		SelectedIndex:  intPtr(0),
	}); err == nil {
		t.Fatal("expected error for abandoned session")
	}
}

func TestSubmitOpenEndedWithModel(t *testing.T) {
	provider := &fakeProvider{script: []scriptedCompletion{
		{text: `{"puntuacion": 0.9, "correcta": true, "retroalimentacion": "Excelente."}`},
	}}
	f := newAnswerFixture(t, provider, []*types.Question{
		{Kind: types.QuestionOpenEnded, Prompt: "Explica la fotosíntesis", ExpectedAnswer: "Convierte luz en energía química", Explanation: "Ver apuntes"},
	})

	result, err := f.svc.Submit(context.Background(), SubmitAnswerInput{
		UserID:         f.user.ID,
		StudySessionID: f.session.ID,
		QuestionID:     f.questions[0].ID,
		Text:           "La planta convierte la luz del sol en energía química.",
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !result.Evaluation.Correct || result.Evaluation.Score != 0.9 {
		t.Fatalf("evaluation %v/%v, want correct 0.9", result.Evaluation.Correct, result.Evaluation.Score)
	}
	if result.Evaluation.Feedback != "Excelente." {
		t.Fatalf("feedback %q", result.Evaluation.Feedback)
	}
	if result.Evaluation.Explanation != "Ver apuntes" {
		t.Fatalf("explanation %q, want the question's explanation", result.Evaluation.Explanation)
	}
}

func TestSubmitOpenEndedFallsBackToKeywords(t *testing.T) {
	// Generation fails, so grading must degrade to keyword overlap.
	provider := &fakeProvider{script: []scriptedCompletion{{err: errors.New("model down")}}}
	f := newAnswerFixture(t, provider, []*types.Question{
		{Kind: types.QuestionOpenEnded, Prompt: "Explica la fotosíntesis", ExpectedAnswer: "fotosíntesis convierte luz energía"},
	})

	result, err := f.svc.Submit(context.Background(), SubmitAnswerInput{
		UserID:         f.user.ID,
		StudySessionID: f.session.ID,
		QuestionID:     f.questions[0].ID,
		Text:           "La fotosíntesis convierte la luz en energía química.",
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !result.Evaluation.Correct {
		t.Fatalf("keyword fallback graded incorrect: %+v", result.Evaluation)
	}
	if !strings.Contains(result.Evaluation.Feedback, "conceptos clave") {
		t.Fatalf("feedback %q, want keyword summary", result.Evaluation.Feedback)
	}
}

func TestSubmitShortOpenAnswerScoresZero(t *testing.T) {
	f := newAnswerFixture(t, &fakeProvider{}, []*types.Question{
		{Kind: types.QuestionOpenEnded, Prompt: "Explica", ExpectedAnswer: "algo largo"},
	})

	result, err := f.svc.Submit(context.Background(), SubmitAnswerInput{
		UserID:         f.user.ID,
		StudySessionID: f.session.ID,
		QuestionID:     f.questions[0].ID,
		Text:           "no",
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if result.Evaluation.Correct || result.Evaluation.Score != 0 {
		t.Fatalf("short answer graded %v/%v", result.Evaluation.Correct, result.Evaluation.Score)
	}
	if result.Evaluation.Feedback != "La respuesta está vacía o es demasiado corta." {
		t.Fatalf("feedback %q", result.Evaluation.Feedback)
	}
}

func TestSubmitRequiresInputPerKind(t *testing.T) {
	f := newAnswerFixture(t, &fakeProvider{}, []*types.Question{
		{Kind: types.QuestionMultipleChoice, Prompt: "P1", Options: mcOptions(t), CorrectIndex: intPtr(0)},
		{Kind: types.QuestionOpenEnded, Prompt: "P2", ExpectedAnswer: "algo"},
	})
	ctx := context.Background()

	if _, err := f.svc.Submit(ctx, SubmitAnswerInput{
		UserID:         f.user.ID,
		StudySessionID: f.session.ID,
		QuestionID:     f.questions[0].ID,
		Text:           "índice olvidado",
	}); err == nil {
		t.Fatal("expected error for multiple choice without selected index")
	}

	if _, err := f.svc.Submit(ctx, SubmitAnswerInput{
		UserID:         f.user.ID,
		StudySessionID: f.session.ID,
		QuestionID:     f.questions[1].ID,
		SelectedIndex:  intPtr(0),
	}); err == nil {
		t.Fatal("expected error for open question without text")
	}
}

func TestSubmitRejectsQuestionFromAnotherQuiz(t *testing.T) {
	f := newAnswerFixture(t, &fakeProvider{}, []*types.Question{
		{Kind: types.QuestionMultipleChoice, Prompt: "P1", Options: mcOptions(t), CorrectIndex: intPtr(0)},
	})
	ctx := context.Background()

	otherQuiz := &types.Quiz{NoteID: uuid.New(), UserID: f.user.ID, Title: "Otro", Kind: types.QuizMixed, Difficulty: types.DifficultyEasy, Status: types.StatusCompleted}
	if err := f.db.Create(otherQuiz).Error; err != nil {
		t.Fatalf("seed quiz: %v", err)
	}
	foreign := &types.Question{QuizID: otherQuiz.ID, Kind: types.QuestionMultipleChoice, Prompt: "Ajena", Options: mcOptions(t), CorrectIndex: intPtr(0)}
	if err := f.db.Create(foreign).Error; err != nil {
		t.Fatalf("seed question: %v", err)
	}

	if _, err := f.svc.Submit(ctx, SubmitAnswerInput{
		UserID:         f.user.ID,
		StudySessionID: f.session.ID,
		QuestionID:     foreign.ID,
		SelectedIndex:  intPtr(0),
	}); err == nil {
		t.Fatal("expected error for question outside the session's quiz")
	}
}
