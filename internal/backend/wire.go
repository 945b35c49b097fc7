package backend

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/JaplinChen/ppt-narrator/internal/domain"
)

// flexibleString decodes a JSON value that some backend versions emit as a
// number and others as a string (slide_no is the known offender).
type flexibleString string

func (f *flexibleString) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" {
		*f = ""
		return nil
	}
	if strings.HasPrefix(trimmed, `"`) {
		var value string
		if err := json.Unmarshal(data, &value); err != nil {
			return err
		}
		*f = flexibleString(value)
		return nil
	}

	var number json.Number
	if err := json.Unmarshal(data, &number); err != nil {
		return err
	}
	*f = flexibleString(number.String())
	return nil
}

func (f flexibleString) MarshalJSON() ([]byte, error) {
	if value, err := strconv.Atoi(string(f)); err == nil {
		return json.Marshal(value)
	}
	return json.Marshal(string(f))
}

type slideScriptPayload struct {
	SlideNumber flexibleString `json:"slide_no"`
	Title       string         `json:"title"`
	Script      string         `json:"script"`
}

type scriptDocumentPayload struct {
	Opening      string               `json:"opening"`
	SlideScripts []slideScriptPayload `json:"slide_scripts"`
	FullScript   string               `json:"full_script"`
	Metadata     struct {
		Language string `json:"language"`
		Provider string `json:"provider"`
		Model    string `json:"model"`
	} `json:"metadata"`
}

func (p scriptDocumentPayload) toDomain() domain.ScriptDocument {
	segments := make([]domain.Segment, 0, len(p.SlideScripts))
	for index, item := range p.SlideScripts {
		segments = append(segments, domain.Segment{
			Index:       index,
			SlideNumber: string(item.SlideNumber),
			Title:       item.Title,
			Text:        item.Script,
		})
	}
	return domain.ScriptDocument{
		Opening:    p.Opening,
		Segments:   segments,
		FullScript: p.FullScript,
		Metadata: domain.ScriptMetadata{
			Language: p.Metadata.Language,
			Provider: p.Metadata.Provider,
			Model:    p.Metadata.Model,
		},
	}
}
