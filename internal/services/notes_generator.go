package services

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/aulanet/aulanet-backend/internal/logger"
	"github.com/aulanet/aulanet-backend/internal/repos"
	"github.com/aulanet/aulanet-backend/internal/types"
)

// NotesGeneratorService builds study notes from a completed transcript. Each
// artifact is generated and persisted independently: one failing kind never
// blocks the rest, and failures leave a visible ERROR row.
type NotesGeneratorService interface {
	GenerateFromTranscript(ctx context.Context, transcriptID, userID uuid.UUID) ([]*types.Note, error)
	GenerateConceptMap(ctx context.Context, transcriptID, userID uuid.UUID) (*types.Note, error)
	FindByUser(ctx context.Context, userID uuid.UUID) ([]*types.Note, error)
}

type notesGeneratorService struct {
	selector       *AISelector
	noteRepo       repos.NoteRepo
	transcriptRepo repos.TranscriptRepo
	log            *logger.Logger
}

func NewNotesGeneratorService(selector *AISelector, noteRepo repos.NoteRepo, transcriptRepo repos.TranscriptRepo, baseLog *logger.Logger) NotesGeneratorService {
	return &notesGeneratorService{
		selector:       selector,
		noteRepo:       noteRepo,
		transcriptRepo: transcriptRepo,
		log:            baseLog.With("service", "NotesGeneratorService"),
	}
}

const flashcardCount = 5

// GenerateFromTranscript produces the standard batch: one summary, one
// explanation and five flashcards. Kinds that already have a COMPLETED row
// are returned as-is without calling the provider again.
func (s *notesGeneratorService) GenerateFromTranscript(ctx context.Context, transcriptID, userID uuid.UUID) ([]*types.Note, error) {
	transcript, err := s.transcriptRepo.GetByID(ctx, nil, transcriptID)
	if err != nil {
		return nil, fmt.Errorf("load transcript: %w", err)
	}
	if transcript == nil {
		return nil, fmt.Errorf("transcript %s not found", transcriptID)
	}
	if strings.TrimSpace(transcript.Text) == "" {
		return nil, fmt.Errorf("transcript %s has no text", transcriptID)
	}

	// One availability check for the whole batch.
	provider, err := s.selector.EnsureAvailable(ctx)
	if err != nil {
		return nil, err
	}
	s.log.Info("Generating notes", "transcript_id", transcriptID, "provider", provider.Name())

	var saved []*types.Note

	if note := s.generateAndSaveNote(ctx, provider, transcript, userID, types.NoteKindSummary, "Resumen de la clase"); note != nil {
		saved = append(saved, note)
	}
	if note := s.generateAndSaveNote(ctx, provider, transcript, userID, types.NoteKindExplanation, "Explicación detallada"); note != nil {
		saved = append(saved, note)
	}
	saved = append(saved, s.generateAndSaveFlashcards(ctx, provider, transcript, userID)...)

	s.log.Info("Notes generation finished", "transcript_id", transcriptID, "saved", len(saved))
	return saved, nil
}

// GenerateConceptMap is on-demand only; it is not part of the standard batch.
func (s *notesGeneratorService) GenerateConceptMap(ctx context.Context, transcriptID, userID uuid.UUID) (*types.Note, error) {
	transcript, err := s.transcriptRepo.GetByID(ctx, nil, transcriptID)
	if err != nil {
		return nil, fmt.Errorf("load transcript: %w", err)
	}
	if transcript == nil {
		return nil, fmt.Errorf("transcript %s not found", transcriptID)
	}
	provider, err := s.selector.EnsureAvailable(ctx)
	if err != nil {
		return nil, err
	}
	note := s.generateAndSaveNote(ctx, provider, transcript, userID, types.NoteKindConceptMap, "Mapa conceptual")
	if note == nil {
		return nil, fmt.Errorf("concept map generation failed for transcript %s", transcriptID)
	}
	return note, nil
}

func (s *notesGeneratorService) FindByUser(ctx context.Context, userID uuid.UUID) ([]*types.Note, error) {
	return s.noteRepo.ListByUser(ctx, nil, userID)
}

// generateAndSaveNote returns nil on failure after persisting an ERROR row,
// so the caller can continue with the remaining kinds.
func (s *notesGeneratorService) generateAndSaveNote(ctx context.Context, provider AIProvider, transcript *types.Transcript, userID uuid.UUID, kind types.NoteKind, title string) *types.Note {
	existing, err := s.noteRepo.GetByTranscriptAndKind(ctx, nil, transcript.ID, kind)
	if err == nil && existing != nil && existing.Status == types.StatusCompleted {
		s.log.Info("Note already exists, skipping", "kind", kind, "note_id", existing.ID)
		return existing
	}

	body, err := s.generateBody(ctx, provider, kind, transcript.Text)
	if err != nil {
		s.log.Error("Note generation failed", "kind", kind, "error", err)
		errNote := &types.Note{
			TranscriptID: transcript.ID,
			UserID:       userID,
			Kind:         kind,
			Title:        title + " (Error)",
			Body:         "Error: " + err.Error(),
			Status:       types.StatusError,
			Error:        err.Error(),
		}
		if _, saveErr := s.noteRepo.Create(ctx, nil, errNote); saveErr != nil {
			s.log.Error("Could not persist error note", "kind", kind, "error", saveErr)
		}
		return nil
	}

	note := &types.Note{
		TranscriptID: transcript.ID,
		UserID:       userID,
		Kind:         kind,
		Title:        title,
		Body:         body,
		Status:       types.StatusCompleted,
	}
	saved, err := s.noteRepo.Create(ctx, nil, note)
	if err != nil {
		s.log.Error("Could not persist note", "kind", kind, "error", err)
		return nil
	}
	return saved
}

func (s *notesGeneratorService) generateAndSaveFlashcards(ctx context.Context, provider AIProvider, transcript *types.Transcript, userID uuid.UUID) []*types.Note {
	existing, err := s.noteRepo.ListByTranscript(ctx, nil, transcript.ID)
	if err == nil {
		var completed []*types.Note
		for _, n := range existing {
			if n.Kind == types.NoteKindFlashcard && n.Status == types.StatusCompleted {
				completed = append(completed, n)
			}
		}
		if len(completed) > 0 {
			s.log.Info("Flashcards already exist, skipping", "count", len(completed))
			return completed
		}
	}

	raw, err := s.requestFlashcards(ctx, provider, transcript.Text)
	if err != nil {
		s.log.Error("Flashcard generation failed", "error", err)
		return nil
	}
	cards := ParseFlashcards(raw)
	if len(cards) == 0 {
		s.log.Warn("No valid flashcards parsed from model output")
		return nil
	}

	var saved []*types.Note
	for i, content := range cards {
		note := &types.Note{
			TranscriptID: transcript.ID,
			UserID:       userID,
			Kind:         types.NoteKindFlashcard,
			Title:        fmt.Sprintf("Tarjeta de estudio %d", i+1),
			Body:         content,
			Status:       types.StatusCompleted,
		}
		persisted, err := s.noteRepo.Create(ctx, nil, note)
		if err != nil {
			s.log.Error("Could not persist flashcard", "index", i, "error", err)
			continue
		}
		saved = append(saved, persisted)
	}
	return saved
}

func (s *notesGeneratorService) generateBody(ctx context.Context, provider AIProvider, kind types.NoteKind, transcriptText string) (string, error) {
	switch kind {
	case types.NoteKindSummary:
		return s.generateSummary(ctx, provider, transcriptText)
	case types.NoteKindExplanation:
		return s.generateExplanation(ctx, provider, transcriptText)
	case types.NoteKindConceptMap:
		return s.generateConceptMapBody(ctx, provider, transcriptText)
	default:
		return "", fmt.Errorf("unsupported note kind: %s", kind)
	}
}

func (s *notesGeneratorService) generateSummary(ctx context.Context, provider AIProvider, transcriptText string) (string, error) {
	temp := float32(0.5)
	messages := []AIMessage{
		{Role: RoleSystem, Content: "Eres un profesor universitario experto en crear resúmenes educativos claros y concisos. IMPORTANTE: SIEMPRE respondes en español de manera natural y académica."},
		{Role: RoleUser, Content: fmt.Sprintf(`Por favor, genera un resumen breve y claro del siguiente contenido de clase.

El resumen debe:
- Capturar los puntos principales y conceptos clave
- Estar organizado en 3-5 párrafos
- Ser claro y fácil de entender
- Mantener el rigor académico

Contenido de la clase:
%s

Genera el resumen en español:`, transcriptText)},
	}
	return provider.Generate(ctx, messages, &GenerationOptions{
		Temperature: &temp,
		MaxTokens:   4000,
		Stop:        []string{"\n\n\n", "Usuario:", "Pregunta:", "Human:", "Assistant:"},
	})
}

func (s *notesGeneratorService) generateExplanation(ctx context.Context, provider AIProvider, transcriptText string) (string, error) {
	temp := float32(0.7)
	messages := []AIMessage{
		{Role: RoleSystem, Content: "Eres un profesor universitario que explica conceptos de manera clara, didáctica y con ejemplos prácticos. IMPORTANTE: SIEMPRE respondes en español de manera educativa y comprensible."},
		{Role: RoleUser, Content: fmt.Sprintf(`Por favor, genera una explicación detallada y didáctica del siguiente contenido de clase.

La explicación debe incluir:
1. Conceptos principales explicados de forma clara
2. Ejemplos prácticos que ayuden a entender mejor
3. Conexiones entre ideas y conceptos relacionados
4. Aplicaciones prácticas o casos de uso (si es relevante)
5. Estructura organizada y coherente

Contenido de la clase:
%s

Genera la explicación detallada en español:`, transcriptText)},
	}
	return provider.Generate(ctx, messages, &GenerationOptions{
		Temperature: &temp,
		MaxTokens:   4000,
		Stop:        []string{"\n\n\n\n", "Usuario:", "Human:", "Assistant:"},
	})
}

func (s *notesGeneratorService) requestFlashcards(ctx context.Context, provider AIProvider, transcriptText string) (string, error) {
	temp := float32(0.6)
	messages := []AIMessage{
		{Role: RoleSystem, Content: "Eres un profesor experto en crear flashcards educativas efectivas. IMPORTANTE: SIEMPRE respondes en español y sigues el formato exacto solicitado."},
		{Role: RoleUser, Content: fmt.Sprintf(`A partir del siguiente contenido de clase, genera exactamente %d flashcards en el formato especificado.

FORMATO REQUERIDO:

PREGUNTA: [pregunta concisa y clara]
RESPUESTA: [respuesta clara y breve]

---

PREGUNTA: [segunda pregunta]
RESPUESTA: [segunda respuesta]

---

(y así sucesivamente para las %d flashcards)

Instrucciones:
- Las preguntas deben cubrir los conceptos más importantes
- Las preguntas deben ser claras y directas
- Las respuestas deben ser concisas pero completas
- Usar el separador "---" entre cada flashcard
- Todo en español

Contenido de la clase:
%s

Genera las %d flashcards siguiendo el formato exacto:`, flashcardCount, flashcardCount, transcriptText, flashcardCount)},
	}
	return provider.Generate(ctx, messages, &GenerationOptions{
		Temperature: &temp,
		MaxTokens:   1000,
		Stop:        []string{"Usuario:", "Human:", "Assistant:", "\n\n\n\n"},
	})
}

func (s *notesGeneratorService) generateConceptMapBody(ctx context.Context, provider AIProvider, transcriptText string) (string, error) {
	temp := float32(0.6)
	messages := []AIMessage{
		{Role: RoleSystem, Content: "Eres un profesor experto en crear mapas conceptuales educativos claros y bien estructurados. IMPORTANTE: SIEMPRE respondes en español y sigues el formato visual especificado."},
		{Role: RoleUser, Content: fmt.Sprintf(`A partir del siguiente contenido de clase, genera un mapa conceptual en formato de texto estructurado.

FORMATO REQUERIDO (usa estos símbolos exactos):

CONCEPTO PRINCIPAL: [concepto central]
├─ Subconcepto 1: [descripción breve]
│  ├─ Detalle 1.1: [explicación]
│  └─ Detalle 1.2: [explicación]
├─ Subconcepto 2: [descripción breve]
│  ├─ Detalle 2.1: [explicación]
│  └─ Detalle 2.2: [explicación]
└─ Subconcepto 3: [descripción breve]
   └─ Detalle 3.1: [explicación]

Contenido de la clase:
%s

Genera el mapa conceptual en español:`, transcriptText)},
	}
	return provider.Generate(ctx, messages, &GenerationOptions{
		Temperature: &temp,
		MaxTokens:   1000,
		Stop:        []string{"Usuario:", "Human:", "Assistant:"},
	})
}

var (
	cardSeparatorRe = regexp.MustCompile(`---+`)
	questionMarkRe  = regexp.MustCompile(`(?i)PREGUNTA\s*:`)
	answerMarkRe    = regexp.MustCompile(`(?i)RESPUESTA\s*:`)
)

// ParseFlashcards splits the model output on "---" separators and keeps the
// blocks that carry both markers. When the blocks recover fewer cards than
// the text has question markers (separators missing or a block holding
// several pairs), it pairs PREGUNTA/RESPUESTA matches by position instead
// and keeps whichever parse yields more cards.
func ParseFlashcards(text string) []string {
	var cards []string
	for _, block := range cardSeparatorRe.Split(text, -1) {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		if questionMarkRe.MatchString(block) && answerMarkRe.MatchString(block) {
			cards = append(cards, block)
		}
	}
	if len(cards) >= len(questionMarkRe.FindAllString(text, -1)) {
		return cards
	}

	questions := extractMarkedLines(text, "PREGUNTA")
	answers := extractMarkedLines(text, "RESPUESTA")
	n := len(questions)
	if len(answers) < n {
		n = len(answers)
	}
	paired := make([]string, 0, n)
	for i := 0; i < n; i++ {
		paired = append(paired, fmt.Sprintf("PREGUNTA: %s\nRESPUESTA: %s", questions[i], answers[i]))
	}
	if len(paired) > len(cards) {
		return paired
	}
	return cards
}

// extractMarkedLines collects the text after each "MARKER:" occurrence,
// including continuation lines that do not start another marker.
func extractMarkedLines(text string, marker string) []string {
	var out []string
	lines := strings.Split(text, "\n")
	var current *strings.Builder
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		upper := strings.ToUpper(trimmed)
		switch {
		case strings.HasPrefix(upper, strings.ToUpper(marker)+":") ||
			strings.HasPrefix(upper, strings.ToUpper(marker)+" :"):
			if current != nil {
				out = append(out, strings.TrimSpace(current.String()))
			}
			idx := strings.Index(trimmed, ":")
			current = &strings.Builder{}
			current.WriteString(strings.TrimSpace(trimmed[idx+1:]))
		case strings.HasPrefix(upper, "PREGUNTA") || strings.HasPrefix(upper, "RESPUESTA"):
			if current != nil {
				out = append(out, strings.TrimSpace(current.String()))
				current = nil
			}
		case trimmed != "" && strings.Trim(trimmed, "-") == "":
			// Separator line ends the value.
			if current != nil {
				out = append(out, strings.TrimSpace(current.String()))
				current = nil
			}
		case current != nil && trimmed != "":
			current.WriteString("\n")
			current.WriteString(trimmed)
		}
	}
	if current != nil {
		out = append(out, strings.TrimSpace(current.String()))
	}
	return out
}
