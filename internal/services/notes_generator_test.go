package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aulanet/aulanet-backend/internal/logger"
	"github.com/aulanet/aulanet-backend/internal/repos"
	"github.com/aulanet/aulanet-backend/internal/types"
)

func TestParseFlashcards(t *testing.T) {
	cases := []struct {
		name string
		text string
		want int
	}{
		{
			name: "three well-formed blocks",
			text: "PREGUNTA: ¿Qué es la célula?\nRESPUESTA: La unidad básica de la vida.\n---\nPREGUNTA: ¿Qué es el ADN?\nRESPUESTA: El material genético.\n---\nPREGUNTA: ¿Qué es la mitosis?\nRESPUESTA: La división celular.",
			want: 3,
		},
		{
			name: "block without answer marker is skipped",
			text: "PREGUNTA: ¿Qué es la célula?\nRESPUESTA: La unidad básica.\n---\nPREGUNTA: ¿Qué es el ADN?\nSin marcador de respuesta.",
			want: 1,
		},
		{
			name: "fallback pairs markers without separators",
			text: "PREGUNTA: ¿Qué es la célula?\nRESPUESTA: La unidad básica.\nPREGUNTA: ¿Qué es el ADN?\nRESPUESTA: El material genético.",
			want: 2,
		},
		{
			name: "missing separator recovers all pairs",
			text: "PREGUNTA: ¿Qué es la célula?\nRESPUESTA: La unidad básica.\nPREGUNTA: ¿Qué es el ADN?\nRESPUESTA: El material genético.\n---\nPREGUNTA: ¿Qué es la mitosis?\nRESPUESTA: La división celular.",
			want: 3,
		},
		{
			name: "case-insensitive markers",
			text: "pregunta: ¿Qué es la célula?\nrespuesta: La unidad básica.\n---\nPregunta : ¿Qué es el ADN?\nRespuesta : El material genético.",
			want: 2,
		},
		{
			name: "no markers at all",
			text: "El modelo decidió escribir un párrafo en lugar de flashcards.",
			want: 0,
		},
		{
			name: "empty input",
			text: "",
			want: 0,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cards := ParseFlashcards(tc.text)
			if len(cards) != tc.want {
				t.Fatalf("got %d cards, want %d: %#v", len(cards), tc.want, cards)
			}
			for i, card := range cards {
				if !questionMarkRe.MatchString(card) || !answerMarkRe.MatchString(card) {
					t.Fatalf("card %d is missing a marker: %q", i, card)
				}
			}
		})
	}
}

func TestParseFlashcardsFallbackKeepsContinuationLines(t *testing.T) {
	text := "PREGUNTA: ¿Qué es la fotosíntesis?\nRESPUESTA: Proceso que convierte luz\nen energía química.\nPREGUNTA: ¿Dónde ocurre?\nRESPUESTA: En los cloroplastos."
	cards := ParseFlashcards(text)
	if len(cards) != 2 {
		t.Fatalf("got %d cards, want 2", len(cards))
	}
	if !strings.Contains(cards[0], "energía química") {
		t.Fatalf("continuation line lost: %q", cards[0])
	}
}

const flashcardBatch = `PREGUNTA: P1
RESPUESTA: R1
---
PREGUNTA: P2
RESPUESTA: R2
---
PREGUNTA: P3
RESPUESTA: R3
---
PREGUNTA: P4
RESPUESTA: R4
---
PREGUNTA: P5
RESPUESTA: R5`

func TestGenerateFromTranscriptBatch(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db)
	transcript := seedTranscript(t, db, user.ID, "La célula es la unidad básica de la vida.")

	provider := &fakeProvider{script: []scriptedCompletion{
		{text: "Resumen generado."},
		{text: "Explicación generada."},
		{text: flashcardBatch},
	}}
	noteRepo := repos.NewNoteRepo(db, logger.Nop())
	svc := NewNotesGeneratorService(newTestSelector(provider), noteRepo, repos.NewTranscriptRepo(db, logger.Nop()), logger.Nop())

	notes, err := svc.GenerateFromTranscript(context.Background(), transcript.ID, user.ID)
	if err != nil {
		t.Fatalf("GenerateFromTranscript: %v", err)
	}
	if len(notes) != 7 {
		t.Fatalf("got %d notes, want 7 (summary + explanation + 5 flashcards)", len(notes))
	}

	byKind := map[types.NoteKind]int{}
	for _, n := range notes {
		if n.Status != types.StatusCompleted {
			t.Fatalf("note %s has status %s, want COMPLETED", n.ID, n.Status)
		}
		byKind[n.Kind]++
	}
	if byKind[types.NoteKindSummary] != 1 || byKind[types.NoteKindExplanation] != 1 || byKind[types.NoteKindFlashcard] != 5 {
		t.Fatalf("unexpected kind distribution: %v", byKind)
	}
}

func TestGenerateFromTranscriptIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db)
	transcript := seedTranscript(t, db, user.ID, "Contenido de la clase.")

	first := &fakeProvider{script: []scriptedCompletion{
		{text: "Resumen."},
		{text: "Explicación."},
		{text: flashcardBatch},
	}}
	noteRepo := repos.NewNoteRepo(db, logger.Nop())
	transcriptRepo := repos.NewTranscriptRepo(db, logger.Nop())
	svc := NewNotesGeneratorService(newTestSelector(first), noteRepo, transcriptRepo, logger.Nop())
	if _, err := svc.GenerateFromTranscript(context.Background(), transcript.ID, user.ID); err != nil {
		t.Fatalf("first run: %v", err)
	}

	// Second run with an empty script: everything must be served from storage.
	second := &fakeProvider{}
	svc = NewNotesGeneratorService(newTestSelector(second), noteRepo, transcriptRepo, logger.Nop())
	notes, err := svc.GenerateFromTranscript(context.Background(), transcript.ID, user.ID)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if second.calls != 0 {
		t.Fatalf("provider was called %d times on a fully generated transcript", second.calls)
	}
	if len(notes) != 7 {
		t.Fatalf("got %d notes, want 7", len(notes))
	}

	var count int64
	if err := db.Model(&types.Note{}).Count(&count).Error; err != nil {
		t.Fatalf("count notes: %v", err)
	}
	if count != 7 {
		t.Fatalf("store holds %d notes after rerun, want 7", count)
	}
}

func TestGenerateFromTranscriptIsolatesFailures(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db)
	transcript := seedTranscript(t, db, user.ID, "Contenido de la clase.")

	provider := &fakeProvider{script: []scriptedCompletion{
		{err: errors.New("model overloaded")}, // summary fails
		{text: "Explicación."},
		{text: flashcardBatch},
	}}
	noteRepo := repos.NewNoteRepo(db, logger.Nop())
	svc := NewNotesGeneratorService(newTestSelector(provider), noteRepo, repos.NewTranscriptRepo(db, logger.Nop()), logger.Nop())

	notes, err := svc.GenerateFromTranscript(context.Background(), transcript.ID, user.ID)
	if err != nil {
		t.Fatalf("GenerateFromTranscript: %v", err)
	}
	if len(notes) != 6 {
		t.Fatalf("got %d notes, want 6 (failed summary excluded)", len(notes))
	}

	errNote, err := noteRepo.GetByTranscriptAndKind(context.Background(), nil, transcript.ID, types.NoteKindSummary)
	if err != nil {
		t.Fatalf("load summary row: %v", err)
	}
	if errNote == nil {
		t.Fatal("no summary row persisted for the failed generation")
	}
	if errNote.Status != types.StatusError {
		t.Fatalf("summary row status %s, want ERROR", errNote.Status)
	}
	if errNote.Error == "" {
		t.Fatal("summary error row carries no error message")
	}
}

func TestGenerateFromTranscriptRejectsEmptyText(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db)
	transcript := seedTranscript(t, db, user.ID, "   ")

	svc := NewNotesGeneratorService(newTestSelector(&fakeProvider{}), repos.NewNoteRepo(db, logger.Nop()), repos.NewTranscriptRepo(db, logger.Nop()), logger.Nop())
	if _, err := svc.GenerateFromTranscript(context.Background(), transcript.ID, user.ID); err == nil {
		t.Fatal("expected error for transcript without text")
	}
}
