package ingest

import (
	"encoding/json"
	"fmt"

	"github.com/xeipuuv/gojsonschema"

	"github.com/harun/engram/pkg/memory"
)

// dropSchema validates .json drops before they reach the store.
const dropSchema = `{
	"type": "object",
	"required": ["content"],
	"additionalProperties": false,
	"properties": {
		"content": {"type": "string", "minLength": 1},
		"emotion": {
			"type": "string",
			"enum": ["happy", "sad", "surprised", "moved", "excited", "nostalgic", "curious", "neutral"]
		},
		"category": {
			"type": "string",
			"enum": ["daily", "philosophical", "technical", "memory", "observation", "feeling", "conversation"]
		},
		"importance": {"type": "integer", "minimum": 1, "maximum": 5},
		"tags": {"type": "array", "items": {"type": "string"}},
		"media": {
			"type": "object",
			"additionalProperties": false,
			"properties": {
				"image_path": {"type": "string"},
				"audio_path": {"type": "string"},
				"transcript": {"type": "string"}
			}
		},
		"camera_pose": {
			"type": "object",
			"additionalProperties": false,
			"properties": {
				"pan": {"type": "number"},
				"tilt": {"type": "number"}
			}
		}
	}
}`

type dropPayload struct {
	Content    string             `json:"content"`
	Emotion    string             `json:"emotion"`
	Category   string             `json:"category"`
	Importance int                `json:"importance"`
	Tags       []string           `json:"tags"`
	Media      *memory.Media      `json:"media"`
	CameraPose *memory.CameraPose `json:"camera_pose"`
}

// parseDrop validates raw JSON against the drop schema and converts it
// to a draft. Schema violations surface as validation errors with the
// offending fields named.
func parseDrop(raw []byte) (*memory.Draft, error) {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(dropSchema),
		gojsonschema.NewBytesLoader(raw),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed JSON drop: %v", memory.ErrValidation, err)
	}
	if !result.Valid() {
		return nil, fmt.Errorf("%w: %s", memory.ErrValidation, formatSchemaErrors(result))
	}

	var payload dropPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("%w: decode drop: %v", memory.ErrValidation, err)
	}

	draft := &memory.Draft{
		Content:    payload.Content,
		Emotion:    memory.Emotion(payload.Emotion),
		Category:   memory.Category(payload.Category),
		Importance: payload.Importance,
		Tags:       payload.Tags,
		Media:      payload.Media,
		CameraPose: payload.CameraPose,
	}
	applyDraftDefaults(draft)
	return draft, nil
}

func formatSchemaErrors(result *gojsonschema.Result) string {
	msg := "invalid drop"
	for _, desc := range result.Errors() {
		msg += "; " + desc.String()
	}
	return msg
}

func applyDraftDefaults(d *memory.Draft) {
	if d.Emotion == "" {
		d.Emotion = memory.EmotionNeutral
	}
	if d.Category == "" {
		d.Category = memory.CategoryObservation
	}
	if d.Importance == 0 {
		d.Importance = 3
	}
}
