package domain

// Segment is one slide's narration unit. Its identity is the stable Index;
// SlideNumber is the display label reported by the backend and may not be
// contiguous.
type Segment struct {
	Index       int
	SlideNumber string
	Title       string
	Text        string
}

// ScriptMetadata is the subset of generation metadata the client acts on.
type ScriptMetadata struct {
	Language string
	Provider string
	Model    string
}

// ScriptDocument is the committed narration script for one presentation.
// Segment count and order are fixed at creation; only segment text changes
// afterwards, and only through the draft store.
// FullScript is the server-rendered assembly; after local edits the draft
// store's own rendering supersedes it.
type ScriptDocument struct {
	Opening    string
	Segments   []Segment
	FullScript string
	Metadata   ScriptMetadata
}

// Clone returns a deep copy so callers can hand documents out without
// aliasing the committed state.
func (d ScriptDocument) Clone() ScriptDocument {
	clone := d
	clone.Segments = append([]Segment(nil), d.Segments...)
	return clone
}

// Voice is one synthesis voice offered by the backend.
type Voice struct {
	ShortName    string
	FriendlyName string
	Locale       string
	Gender       string
}

// SpeechRequest asks the backend to synthesize one piece of narration.
// Rate and pitch are signed offset strings such as "+10%" and "-5Hz"; their
// numeric semantics belong to the backend and are passed through untouched.
type SpeechRequest struct {
	Text  string
	Voice string
	Rate  string
	Pitch string
}

// AudioClip is a synthesized audio artifact served by the backend.
type AudioClip struct {
	Filename string
	Path     string
	URLPath  string
}

// UploadResult describes an accepted presentation upload.
type UploadResult struct {
	FileID  string
	Message string
}

// FileInfo summarizes an uploaded presentation known to the backend.
type FileInfo struct {
	FileID     string
	Filename   string
	SlideCount int
}

// ParseStatus is one poll response for background presentation parsing.
type ParseStatus struct {
	FileID     string
	Status     string
	Progress   int
	Message    string
	SlideCount int
}
