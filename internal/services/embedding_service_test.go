package services

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/aulanet/aulanet-backend/internal/logger"
	"github.com/aulanet/aulanet-backend/internal/repos"
	"github.com/aulanet/aulanet-backend/internal/types"
)

func TestCosineSimilarity(t *testing.T) {
	cases := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical vectors", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"opposite vectors", []float32{1, 0}, []float32{-1, 0}, 0},
		{"orthogonal vectors", []float32{1, 0}, []float32{0, 1}, 0.5},
		{"zero vector", []float32{0, 0}, []float32{1, 1}, 0},
		{"length mismatch", []float32{1, 2}, []float32{1, 2, 3}, 0},
		{"empty", nil, nil, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := CosineSimilarity(tc.a, tc.b)
			if math.Abs(got-tc.want) > 1e-9 {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestTopicEmbeddingText(t *testing.T) {
	t.Run("with outline sections", func(t *testing.T) {
		topic := &types.Topic{Title: "Fotosíntesis", Description: "Proceso vegetal", Body: "cuerpo plano"}
		err := topic.EncodeOutline(types.TopicOutline{
			Sections: []types.Section{
				{Title: "Qué es", Body: "Conversión de luz"},
				{Title: "Dónde ocurre", Body: "Cloroplastos"},
			},
			Version: 1,
		})
		if err != nil {
			t.Fatalf("encode outline: %v", err)
		}
		got := TopicEmbeddingText(topic)
		want := "Fotosíntesis. Proceso vegetal Qué es: Conversión de luz Dónde ocurre: Cloroplastos"
		if got != want {
			t.Fatalf("got %q, want %q", got, want)
		}
	})

	t.Run("without outline falls back to body", func(t *testing.T) {
		topic := &types.Topic{Title: "Fotosíntesis", Description: "Proceso", Body: "Texto del tema"}
		got := TopicEmbeddingText(topic)
		want := "Fotosíntesis. Proceso Texto del tema"
		if got != want {
			t.Fatalf("got %q, want %q", got, want)
		}
	})
}

func TestBuildForTopicWithoutEmbeddingSupport(t *testing.T) {
	db := newTestDB(t)
	log := logger.Nop()
	user := seedUser(t, db)
	transcript := seedTranscript(t, db, user.ID, "texto")
	note := seedNote(t, db, transcript.ID, user.ID, "Apuntes.")

	topicRepo := repos.NewTopicRepo(db, log)
	topic := &types.Topic{NoteID: note.ID, Title: "Tema", Description: "desc", Body: "cuerpo", Depth: 1, Origin: types.TopicOriginAI}
	if _, err := topicRepo.Create(context.Background(), nil, []*types.Topic{topic}); err != nil {
		t.Fatalf("seed topic: %v", err)
	}

	svc := NewEmbeddingService(newTestSelector(&fakeProvider{}), repos.NewEmbeddingRepo(db, log), topicRepo, log)
	_, err := svc.BuildForTopic(context.Background(), topic.ID)
	if !errors.Is(err, ErrEmbeddingUnsupported) {
		t.Fatalf("got %v, want ErrEmbeddingUnsupported", err)
	}
}

func TestFindSimilarTopicsRequiresQuery(t *testing.T) {
	db := newTestDB(t)
	log := logger.Nop()
	svc := NewEmbeddingService(newTestSelector(&fakeProvider{}), repos.NewEmbeddingRepo(db, log), repos.NewTopicRepo(db, log), log)
	if _, err := svc.FindSimilarTopics(context.Background(), "   ", 5, nil); err == nil {
		t.Fatal("expected error for blank query")
	}
}
