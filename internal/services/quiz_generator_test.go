package services

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/aulanet/aulanet-backend/internal/logger"
	"github.com/aulanet/aulanet-backend/internal/repos"
	"github.com/aulanet/aulanet-backend/internal/types"
)

func TestQuestionCount(t *testing.T) {
	cases := []struct {
		name       string
		difficulty types.QuizDifficulty
		topics     int
		want       int
	}{
		{"easy single topic", types.DifficultyEasy, 1, 3},
		{"medium single topic", types.DifficultyMedium, 1, 4},
		{"hard single topic", types.DifficultyHard, 1, 5},
		{"medium two topics", types.DifficultyMedium, 2, 8},
		{"cap at fifteen", types.DifficultyHard, 4, 15},
		{"easy five topics capped", types.DifficultyEasy, 6, 15},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := QuestionCount(tc.difficulty, tc.topics); got != tc.want {
				t.Fatalf("got %d, want %d", got, tc.want)
			}
		})
	}
}

func TestMixedSplit(t *testing.T) {
	cases := []struct {
		total, wantMC, wantOpen int
	}{
		{10, 6, 4},
		{7, 5, 2},
		{5, 3, 2},
		{1, 1, 0},
		{0, 0, 0},
	}
	for _, tc := range cases {
		mc, open := MixedSplit(tc.total)
		if mc != tc.wantMC || open != tc.wantOpen {
			t.Fatalf("MixedSplit(%d) = (%d, %d), want (%d, %d)", tc.total, mc, open, tc.wantMC, tc.wantOpen)
		}
	}
}

func TestRepairTruncatedJSON(t *testing.T) {
	cases := []struct {
		name string
		in   string
	}{
		{"trailing comma and open object", `[{"enunciado": "p1"},`},
		{"odd quote count", `[{"enunciado": "p1"}, {"enunciado": "p2`},
		{"missing closing bracket", `[{"enunciado": "p1"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repaired := RepairTruncatedJSON(tc.in)
			var out []map[string]any
			if err := json.Unmarshal([]byte(repaired), &out); err != nil {
				t.Fatalf("repaired JSON still invalid: %v\n%s", err, repaired)
			}
			if len(out) == 0 {
				t.Fatal("repair produced an empty array")
			}
		})
	}
}

func TestParseCorrectIndex(t *testing.T) {
	cases := []struct {
		name    string
		raw     string
		options int
		want    int
	}{
		{"number", `2`, 4, 2},
		{"numeric string", `"3"`, 4, 3},
		{"padded numeric string", `" 1 "`, 4, 1},
		{"out of range number", `9`, 4, 0},
		{"negative", `-1`, 4, 0},
		{"garbage string", `"la primera"`, 4, 0},
		{"empty", ``, 4, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := parseCorrectIndex(json.RawMessage(tc.raw), tc.options); got != tc.want {
				t.Fatalf("got %d, want %d", got, tc.want)
			}
		})
	}
}

func questionsJSON(t *testing.T, raws []map[string]any) string {
	t.Helper()
	b, err := json.Marshal(raws)
	if err != nil {
		t.Fatalf("marshal questions: %v", err)
	}
	return string(b)
}

func mcQuestion(prompt string, correct any) map[string]any {
	return map[string]any{
		"tipo":              "multiple",
		"enunciado":         prompt,
		"opciones":          []string{"A", "B", "C", "D"},
		"respuestaCorrecta": correct,
		"explicacion":       "Porque sí.",
	}
}

func openQuestion(prompt, expected string) map[string]any {
	return map[string]any{
		"tipo":              "abierta",
		"enunciado":         prompt,
		"respuestaEsperada": expected,
		"explicacion":       "Referencia.",
	}
}

func TestParseQuestions(t *testing.T) {
	t.Run("valid mixed set", func(t *testing.T) {
		raw := questionsJSON(t, []map[string]any{
			mcQuestion("P1", 1),
			openQuestion("P2", "respuesta"),
		})
		got, err := ParseQuestions(raw, types.QuizMixed, 2)
		if err != nil {
			t.Fatalf("ParseQuestions: %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("got %d questions, want 2", len(got))
		}
	})

	t.Run("kind inferred from options", func(t *testing.T) {
		q := mcQuestion("P1", 0)
		delete(q, "tipo")
		got, err := ParseQuestions(questionsJSON(t, []map[string]any{q}), types.QuizMixed, 1)
		if err != nil {
			t.Fatalf("ParseQuestions: %v", err)
		}
		if got[0].Kind != "multiple" {
			t.Fatalf("kind %q, want multiple", got[0].Kind)
		}
	})

	t.Run("invalid questions are dropped, not fatal", func(t *testing.T) {
		raw := questionsJSON(t, []map[string]any{
			mcQuestion("P1", 0),
			mcQuestion("  ", 0),
			openQuestion("P3", ""),
			mcQuestion("P4", 1),
		})
		got, err := ParseQuestions(raw, types.QuizMixed, 4)
		if err != nil {
			t.Fatalf("ParseQuestions: %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("got %d questions, want 2 survivors", len(got))
		}
		if got[0].Prompt != "P1" || got[1].Prompt != "P4" {
			t.Fatalf("wrong survivors: %q, %q", got[0].Prompt, got[1].Prompt)
		}
	})

	t.Run("only invalid questions hits the recovery floor", func(t *testing.T) {
		raw := questionsJSON(t, []map[string]any{mcQuestion("  ", 0), openQuestion("P2", "")})
		if _, err := ParseQuestions(raw, types.QuizMixed, 2); err == nil {
			t.Fatal("expected error when no question survives validation")
		}
	})

	t.Run("below half of expected fails", func(t *testing.T) {
		raw := questionsJSON(t, []map[string]any{mcQuestion("P1", 0)})
		if _, err := ParseQuestions(raw, types.QuizMultipleChoice, 4); err == nil {
			t.Fatal("expected error when fewer than half the questions survive")
		}
	})

	t.Run("truncated output is repaired", func(t *testing.T) {
		full := questionsJSON(t, []map[string]any{
			mcQuestion("P1", 0),
			mcQuestion("P2", 1),
		})
		truncated := full[:len(full)-20]
		got, err := ParseQuestions(truncated, types.QuizMultipleChoice, 2)
		if err != nil {
			t.Fatalf("ParseQuestions on truncated output: %v", err)
		}
		if len(got) < 1 {
			t.Fatal("repair recovered no questions")
		}
	})

	t.Run("no array at all fails", func(t *testing.T) {
		if _, err := ParseQuestions("lo siento, no puedo", types.QuizMultipleChoice, 2); err == nil {
			t.Fatal("expected error when no JSON array is present")
		}
	})
}

func TestGenerateFromNote(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db)
	transcript := seedTranscript(t, db, user.ID, "texto")
	note := seedNote(t, db, transcript.ID, user.ID, "Apuntes.")

	topicRepo := repos.NewTopicRepo(db, logger.Nop())
	topics := []*types.Topic{
		{NoteID: note.ID, Title: "La célula", Depth: 1, Origin: types.TopicOriginAI},
		{NoteID: note.ID, Title: "El ADN", Depth: 1, Origin: types.TopicOriginAI, OrderIndex: 1},
	}
	if _, err := topicRepo.Create(context.Background(), nil, topics); err != nil {
		t.Fatalf("seed topics: %v", err)
	}

	// MEDIUM with two topics expects eight questions.
	payload := make([]map[string]any, 0, 8)
	for i := 0; i < 8; i++ {
		payload = append(payload, mcQuestion("Pregunta", i%4))
	}
	provider := &fakeProvider{script: []scriptedCompletion{{text: questionsJSON(t, payload)}}}

	quizRepo := repos.NewQuizRepo(db, logger.Nop())
	questionRepo := repos.NewQuestionRepo(db, logger.Nop())
	svc := NewQuizGeneratorService(newTestSelector(provider), quizRepo, questionRepo, topicRepo, repos.NewNoteRepo(db, logger.Nop()), logger.Nop())

	quiz, err := svc.GenerateFromNote(context.Background(), note.ID, user.ID, types.QuizMultipleChoice, types.DifficultyMedium)
	if err != nil {
		t.Fatalf("GenerateFromNote: %v", err)
	}
	if quiz.Status != types.StatusCompleted {
		t.Fatalf("quiz status %s, want COMPLETED", quiz.Status)
	}
	if len(quiz.Questions) != 8 {
		t.Fatalf("got %d questions, want 8", len(quiz.Questions))
	}
	for i, q := range quiz.Questions {
		if q.Kind != types.QuestionMultipleChoice {
			t.Fatalf("question %d kind %s, want MULTIPLE_CHOICE", i, q.Kind)
		}
		if q.CorrectIndex == nil || *q.CorrectIndex < 0 || *q.CorrectIndex > 3 {
			t.Fatalf("question %d has invalid correct index", i)
		}
		if q.OrderIndex != i {
			t.Fatalf("question %d has order index %d", i, q.OrderIndex)
		}
	}
}

func TestGenerateFromNoteRollsBackOnFailure(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db)
	transcript := seedTranscript(t, db, user.ID, "texto")
	note := seedNote(t, db, transcript.ID, user.ID, "Apuntes.")

	topicRepo := repos.NewTopicRepo(db, logger.Nop())
	if _, err := topicRepo.Create(context.Background(), nil, []*types.Topic{{NoteID: note.ID, Title: "Tema", Depth: 1, Origin: types.TopicOriginAI}}); err != nil {
		t.Fatalf("seed topic: %v", err)
	}

	provider := &fakeProvider{script: []scriptedCompletion{{text: "no hay json aquí"}}}
	quizRepo := repos.NewQuizRepo(db, logger.Nop())
	svc := NewQuizGeneratorService(newTestSelector(provider), quizRepo, repos.NewQuestionRepo(db, logger.Nop()), topicRepo, repos.NewNoteRepo(db, logger.Nop()), logger.Nop())

	if _, err := svc.GenerateFromNote(context.Background(), note.ID, user.ID, types.QuizMultipleChoice, types.DifficultyEasy); err == nil {
		t.Fatal("expected error for unparseable output")
	}

	quizzes, err := quizRepo.ListByNote(context.Background(), nil, note.ID)
	if err != nil {
		t.Fatalf("list quizzes: %v", err)
	}
	if len(quizzes) != 0 {
		t.Fatalf("placeholder quiz survived a failed generation: %d rows", len(quizzes))
	}
}

func TestGenerateFromNoteRequiresTopics(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db)
	transcript := seedTranscript(t, db, user.ID, "texto")
	note := seedNote(t, db, transcript.ID, user.ID, "Apuntes.")

	svc := NewQuizGeneratorService(newTestSelector(&fakeProvider{}), repos.NewQuizRepo(db, logger.Nop()), repos.NewQuestionRepo(db, logger.Nop()), repos.NewTopicRepo(db, logger.Nop()), repos.NewNoteRepo(db, logger.Nop()), logger.Nop())
	if _, err := svc.GenerateFromNote(context.Background(), note.ID, user.ID, types.QuizMixed, types.DifficultyMedium); err == nil {
		t.Fatal("expected error for note without topics")
	}
}
