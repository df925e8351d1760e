package services

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aulanet/aulanet-backend/internal/logger"
	"github.com/aulanet/aulanet-backend/internal/repos"
	"github.com/aulanet/aulanet-backend/internal/types"
)

type ExpansionKind string

const (
	ExpandDeepen        ExpansionKind = "DEEPEN"
	ExpandMoreExamples  ExpansionKind = "MORE_EXAMPLES"
	ExpandMoreExercises ExpansionKind = "MORE_EXERCISES"
)

// TopicExtractorService turns a completed note into 3-7 structured topics and
// grows them afterwards through expansions and user-authored sections.
type TopicExtractorService interface {
	ExtractFromNote(ctx context.Context, noteID uuid.UUID) ([]*types.Topic, error)
	ExpandTopic(ctx context.Context, topicID uuid.UUID, kind ExpansionKind) (*types.Topic, error)
	AddUserSection(ctx context.Context, topicID uuid.UUID, sectionType types.SectionType, title, body string) (*types.Topic, error)
	ListByNote(ctx context.Context, noteID uuid.UUID) ([]*types.Topic, error)
	UpdateTopic(ctx context.Context, topicID uuid.UUID, title, description *string, depth *int) (*types.Topic, error)
	DeleteTopic(ctx context.Context, topicID uuid.UUID) error
}

type topicExtractorService struct {
	selector  *AISelector
	topicRepo repos.TopicRepo
	noteRepo  repos.NoteRepo
	log       *logger.Logger
}

func NewTopicExtractorService(selector *AISelector, topicRepo repos.TopicRepo, noteRepo repos.NoteRepo, baseLog *logger.Logger) TopicExtractorService {
	return &topicExtractorService{
		selector:  selector,
		topicRepo: topicRepo,
		noteRepo:  noteRepo,
		log:       baseLog.With("service", "TopicExtractorService"),
	}
}

type rawTopic struct {
	Title       string       `json:"titulo_tema"`
	Description string       `json:"descripcion"`
	Body        string       `json:"contenido"`
	Depth       *int         `json:"nivel_profundidad"`
	Sections    []rawSection `json:"secciones"`
}

type rawSection struct {
	SectionType string `json:"tipoSeccion"`
	Title       string `json:"titulo"`
	Body        string `json:"contenido"`
	Order       int    `json:"orden"`
}

type rawExpansion struct {
	NewSections []rawSection `json:"nuevas_secciones"`
	UpdatedBody string       `json:"contenido_actualizado"`
}

// ExtractFromNote asks the model for 3-7 topics in strict JSON, deduplicates
// against existing topics by lowercased trimmed title, and persists the new
// ones in one batch. An unparseable response yields zero topics, not an error.
func (s *topicExtractorService) ExtractFromNote(ctx context.Context, noteID uuid.UUID) ([]*types.Topic, error) {
	note, err := s.noteRepo.GetByID(ctx, nil, noteID)
	if err != nil {
		return nil, fmt.Errorf("load note: %w", err)
	}
	if note == nil {
		return nil, fmt.Errorf("note %s not found", noteID)
	}

	provider, err := s.selector.EnsureAvailable(ctx)
	if err != nil {
		return nil, err
	}

	temp := float32(0.6)
	messages := []AIMessage{
		{Role: RoleSystem, Content: "Eres un profesor universitario experto que organiza contenido académico en temas estructurados y pedagógicos. Devuelve exclusivamente un JSON válido con temas que incluyan secciones organizadas. No incluyas texto extra."},
		{Role: RoleUser, Content: fmt.Sprintf(`A partir del siguiente contenido de apuntes, genera entre 3 y 7 temas relevantes. Cada tema debe tener estructura interna con secciones educativas.

Formato estricto (solo JSON):
[{
  "titulo_tema": "Título conciso del tema",
  "descripcion": "Descripción breve del tema",
  "contenido": "Resumen general del tema",
  "nivel_profundidad": 1,
  "secciones": [
    {
      "tipoSeccion": "introduccion|concepto|ejemplo|ejercicio|aplicacion|conclusion",
      "titulo": "Título de la sección",
      "contenido": "Contenido detallado de la sección",
      "orden": 1
    }
  ]
}]

Tipos de sección disponibles:
- introduccion: Presentación del tema
- concepto: Definiciones y conceptos clave
- ejemplo: Ejemplos prácticos
- ejercicio: Ejercicios o problemas
- aplicacion: Aplicaciones prácticas
- conclusion: Síntesis y conclusiones

Contenido del apunte:
%s`, note.Body)},
	}

	s.log.Info("Extracting topics", "note_id", noteID, "provider", provider.Name())
	raw, err := provider.Generate(ctx, messages, &GenerationOptions{
		Temperature: &temp,
		MaxTokens:   6000,
		Stop:        []string{"Usuario:", "Human:", "Assistant:"},
	})
	if err != nil {
		return nil, fmt.Errorf("topic generation: %w", err)
	}

	parsed := parseTopicsResponse(raw)
	if len(parsed) == 0 {
		s.log.Warn("No topics parsed from model output", "note_id", noteID)
		return []*types.Topic{}, nil
	}

	existing, err := s.topicRepo.ListByNote(ctx, nil, noteID)
	if err != nil {
		return nil, fmt.Errorf("list existing topics: %w", err)
	}
	seen := map[string]bool{}
	for _, t := range existing {
		seen[strings.ToLower(strings.TrimSpace(t.Title))] = true
	}

	orderIndex := len(existing)
	now := time.Now().UTC()
	var newTopics []*types.Topic
	for _, rt := range parsed {
		key := strings.ToLower(strings.TrimSpace(rt.Title))
		if key == "" || seen[key] {
			continue
		}

		sections := make([]types.Section, 0, len(rt.Sections))
		for i, rs := range rt.Sections {
			title := rs.Title
			if title == "" {
				title = fmt.Sprintf("Sección %d", i+1)
			}
			order := rs.Order
			if order == 0 {
				order = i + 1
			}
			sections = append(sections, types.Section{
				ID:          uuid.New(),
				SectionType: types.NormalizeSectionType(rs.SectionType),
				Title:       title,
				Body:        rs.Body,
				OrderIndex:  order,
				Depth:       1,
				Origin:      types.TopicOriginAI,
				CreatedAt:   now,
			})
		}

		depth := 1
		if rt.Depth != nil {
			depth = clampInt(*rt.Depth, 1, 3)
		}
		topic := &types.Topic{
			NoteID:      noteID,
			Title:       rt.Title,
			Description: rt.Description,
			Body:        rt.Body,
			Depth:       depth,
			Origin:      types.TopicOriginAI,
			OrderIndex:  orderIndex,
		}
		if err := topic.EncodeOutline(types.TopicOutline{Sections: sections, Version: 1, LastUpdated: now}); err != nil {
			return nil, fmt.Errorf("encode outline: %w", err)
		}
		newTopics = append(newTopics, topic)
		seen[key] = true
		orderIndex++
	}

	if len(newTopics) == 0 {
		s.log.Warn("All parsed topics were duplicates", "note_id", noteID)
		return []*types.Topic{}, nil
	}

	saved, err := s.topicRepo.Create(ctx, nil, newTopics)
	if err != nil {
		return nil, fmt.Errorf("persist topics: %w", err)
	}
	s.log.Info("Topics saved", "note_id", noteID, "count", len(saved))
	return saved, nil
}

// ExpandTopic appends 2-4 model-generated sections at depth+1 (section depth
// is the topic's depth before the bump), raises the topic depth capped at 5,
// bumps the outline version and promotes a USER topic to MIXED.
func (s *topicExtractorService) ExpandTopic(ctx context.Context, topicID uuid.UUID, kind ExpansionKind) (*types.Topic, error) {
	topic, err := s.topicRepo.GetByID(ctx, nil, topicID)
	if err != nil {
		return nil, fmt.Errorf("load topic: %w", err)
	}
	if topic == nil {
		return nil, fmt.Errorf("topic %s not found", topicID)
	}

	var note *types.Note
	if n, err := s.noteRepo.GetByID(ctx, nil, topic.NoteID); err == nil {
		note = n
	}
	sourceContext := ""
	if note != nil {
		sourceContext = truncate(note.Body, 1500)
	}

	outline, err := topic.DecodeOutline()
	if err != nil {
		return nil, fmt.Errorf("decode outline: %w", err)
	}

	provider, err := s.selector.EnsureAvailable(ctx)
	if err != nil {
		return nil, err
	}

	expansionLabel := map[ExpansionKind]string{
		ExpandDeepen:        "profundizar",
		ExpandMoreExamples:  "ejemplos",
		ExpandMoreExercises: "ejercicios",
	}[kind]
	if expansionLabel == "" {
		expansionLabel = "profundizar"
	}

	temp := float32(0.7)
	messages := []AIMessage{
		{Role: RoleSystem, Content: "Eres un profesor universitario experto que profundiza contenido académico. Genera nuevas secciones para expandir un tema existente. Devuelve solo JSON válido."},
		{Role: RoleUser, Content: fmt.Sprintf(`Expande el siguiente tema agregando nuevas secciones de tipo "%s".

Tema actual:
- Título: %s
- Descripción: %s
- Contenido: %s
- Nivel actual: %d
- Secciones existentes: %d

Contexto original del apunte:
%s

Genera 2-4 nuevas secciones según el tipo de expansión:
- profundizar: Conceptos más avanzados, detalles técnicos
- ejemplos: Ejemplos prácticos adicionales
- ejercicios: Ejercicios y problemas para practicar

Formato JSON:
{
  "nuevas_secciones": [
    {
      "tipoSeccion": "concepto|ejemplo|ejercicio|aplicacion",
      "titulo": "Título de la nueva sección",
      "contenido": "Contenido detallado de la sección"
    }
  ],
  "contenido_actualizado": "Resumen actualizado del tema expandido"
}`, expansionLabel, topic.Title, topic.Description, topic.Body, topic.Depth, len(outline.Sections), sourceContext)},
	}

	raw, err := provider.Generate(ctx, messages, &GenerationOptions{
		Temperature: &temp,
		MaxTokens:   1500,
		Stop:        []string{"Usuario:", "Human:", "Assistant:"},
	})
	if err != nil {
		return nil, fmt.Errorf("expansion generation: %w", err)
	}

	expansion := parseExpansionResponse(raw)
	now := time.Now().UTC()
	for i, rs := range expansion.NewSections {
		title := rs.Title
		if title == "" {
			title = fmt.Sprintf("Nueva sección %d", i+1)
		}
		outline.Sections = append(outline.Sections, types.Section{
			ID:          uuid.New(),
			SectionType: types.NormalizeSectionType(rs.SectionType),
			Title:       title,
			Body:        rs.Body,
			OrderIndex:  len(outline.Sections) + 1,
			Depth:       topic.Depth + 1,
			Origin:      types.TopicOriginAI,
			CreatedAt:   now,
		})
	}
	outline.Version++
	outline.LastUpdated = now

	if expansion.UpdatedBody != "" {
		topic.Body = expansion.UpdatedBody
	}
	topic.Depth = clampInt(topic.Depth+1, 1, 5)
	if topic.Origin == types.TopicOriginUser {
		topic.Origin = types.TopicOriginMixed
	}
	if err := topic.EncodeOutline(outline); err != nil {
		return nil, fmt.Errorf("encode outline: %w", err)
	}

	err = s.topicRepo.UpdateFields(ctx, nil, topic.ID, map[string]interface{}{
		"outline": topic.Outline,
		"body":    topic.Body,
		"depth":   topic.Depth,
		"origin":  topic.Origin,
	})
	if err != nil {
		return nil, fmt.Errorf("persist expansion: %w", err)
	}
	s.log.Info("Topic expanded", "topic_id", topicID, "new_sections", len(expansion.NewSections))
	return topic, nil
}

// AddUserSection appends a user-authored section at the topic's current depth
// and promotes an AI topic to MIXED. The topic depth itself does not change.
func (s *topicExtractorService) AddUserSection(ctx context.Context, topicID uuid.UUID, sectionType types.SectionType, title, body string) (*types.Topic, error) {
	topic, err := s.topicRepo.GetByID(ctx, nil, topicID)
	if err != nil {
		return nil, fmt.Errorf("load topic: %w", err)
	}
	if topic == nil {
		return nil, fmt.Errorf("topic %s not found", topicID)
	}
	if strings.TrimSpace(title) == "" {
		return nil, fmt.Errorf("section title required")
	}

	outline, err := topic.DecodeOutline()
	if err != nil {
		return nil, fmt.Errorf("decode outline: %w", err)
	}

	now := time.Now().UTC()
	outline.Sections = append(outline.Sections, types.Section{
		ID:          uuid.New(),
		SectionType: types.NormalizeSectionType(string(sectionType)),
		Title:       title,
		Body:        body,
		OrderIndex:  len(outline.Sections) + 1,
		Depth:       topic.Depth,
		Origin:      types.TopicOriginUser,
		CreatedAt:   now,
	})
	outline.Version++
	outline.LastUpdated = now

	if topic.Origin == types.TopicOriginAI {
		topic.Origin = types.TopicOriginMixed
	}
	if err := topic.EncodeOutline(outline); err != nil {
		return nil, fmt.Errorf("encode outline: %w", err)
	}

	err = s.topicRepo.UpdateFields(ctx, nil, topic.ID, map[string]interface{}{
		"outline": topic.Outline,
		"origin":  topic.Origin,
	})
	if err != nil {
		return nil, fmt.Errorf("persist user section: %w", err)
	}
	return topic, nil
}

func (s *topicExtractorService) ListByNote(ctx context.Context, noteID uuid.UUID) ([]*types.Topic, error) {
	return s.topicRepo.ListByNote(ctx, nil, noteID)
}

func (s *topicExtractorService) UpdateTopic(ctx context.Context, topicID uuid.UUID, title, description *string, depth *int) (*types.Topic, error) {
	topic, err := s.topicRepo.GetByID(ctx, nil, topicID)
	if err != nil {
		return nil, fmt.Errorf("load topic: %w", err)
	}
	if topic == nil {
		return nil, fmt.Errorf("topic %s not found", topicID)
	}
	updates := map[string]interface{}{}
	if title != nil {
		topic.Title = *title
		updates["title"] = *title
	}
	if description != nil {
		topic.Description = *description
		updates["description"] = *description
	}
	if depth != nil {
		topic.Depth = clampInt(*depth, 1, 5)
		updates["depth"] = topic.Depth
	}
	if len(updates) == 0 {
		return topic, nil
	}
	if err := s.topicRepo.UpdateFields(ctx, nil, topic.ID, updates); err != nil {
		return nil, fmt.Errorf("persist topic update: %w", err)
	}
	return topic, nil
}

func (s *topicExtractorService) DeleteTopic(ctx context.Context, topicID uuid.UUID) error {
	topic, err := s.topicRepo.GetByID(ctx, nil, topicID)
	if err != nil {
		return fmt.Errorf("load topic: %w", err)
	}
	if topic == nil {
		return fmt.Errorf("topic %s not found", topicID)
	}
	return s.topicRepo.Delete(ctx, nil, topicID)
}

func parseTopicsResponse(raw string) []rawTopic {
	jsonStr := ExtractJSON(raw)
	var parsed []rawTopic
	if err := json.Unmarshal([]byte(jsonStr), &parsed); err != nil {
		return nil
	}
	return parsed
}

func parseExpansionResponse(raw string) rawExpansion {
	t := strings.TrimSpace(raw)
	t = fenceOpenRe.ReplaceAllString(t, "")
	t = fenceCloseRe.ReplaceAllString(t, "")
	t = strings.TrimSpace(t)

	objStart := strings.Index(t, "{")
	arrStart := strings.Index(t, "[")

	// The documented shape is an object carrying the new sections and an
	// optional updated body. An object wraps its sections array, so the
	// object form must win whenever it opens first.
	if objStart != -1 && (arrStart == -1 || objStart < arrStart) {
		if end := strings.LastIndex(t, "}"); end > objStart {
			var parsed rawExpansion
			if err := json.Unmarshal([]byte(t[objStart:end+1]), &parsed); err == nil {
				return parsed
			}
		}
	}

	// A bare array is accepted as the new sections themselves.
	if arrStart != -1 {
		if end := strings.LastIndex(t, "]"); end > arrStart {
			var asArray []rawSection
			if err := json.Unmarshal([]byte(t[arrStart:end+1]), &asArray); err == nil {
				return rawExpansion{NewSections: asArray}
			}
		}
	}
	return rawExpansion{}
}

var (
	fenceOpenRe  = regexp.MustCompile("(?i)^```(?:json)?\\s*")
	fenceCloseRe = regexp.MustCompile("(?i)\\s*```\\s*$")
)

// ExtractJSON strips code fences and returns the widest []-bounded substring,
// falling back to the widest {}-bounded one, then to the trimmed input.
func ExtractJSON(text string) string {
	t := strings.TrimSpace(text)
	t = fenceOpenRe.ReplaceAllString(t, "")
	t = fenceCloseRe.ReplaceAllString(t, "")
	t = strings.TrimSpace(t)

	if first, last := strings.Index(t, "["), strings.LastIndex(t, "]"); first != -1 && last > first {
		return t[first : last+1]
	}
	if first, last := strings.Index(t, "{"), strings.LastIndex(t, "}"); first != -1 && last > first {
		return t[first : last+1]
	}
	return t
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
