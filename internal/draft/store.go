package draft

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/JaplinChen/ppt-narrator/internal/domain"
)

const noEditing = -1

// Store owns the committed script document and the per-segment edit state.
// Edits are staged in a working copy and reach the committed document only
// through SaveEditing; segment count and order never change. At most one
// segment is being edited at a time: starting an edit elsewhere discards
// the previous working text without committing it.
type Store struct {
	mu           sync.Mutex
	document     domain.ScriptDocument
	editingIndex int
	workingText  string
	originalText string
}

func NewStore(document domain.ScriptDocument) (*Store, error) {
	if len(document.Segments) == 0 {
		return nil, errors.New("script document has no segments")
	}
	for index, segment := range document.Segments {
		if segment.Index != index {
			return nil, fmt.Errorf("segment %d carries index %d", index, segment.Index)
		}
	}
	return &Store{
		document:     document.Clone(),
		editingIndex: noEditing,
	}, nil
}

// Document returns a copy of the committed document, without any staged
// working text.
func (s *Store) Document() domain.ScriptDocument {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.document.Clone()
}

func (s *Store) Opening() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.document.Opening
}

func (s *Store) Segment(index int) (domain.Segment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkIndex(index); err != nil {
		return domain.Segment{}, err
	}
	return s.document.Segments[index], nil
}

func (s *Store) SegmentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.document.Segments)
}

// EditingIndex reports which segment is currently being edited, if any.
func (s *Store) EditingIndex() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.editingIndex == noEditing {
		return 0, false
	}
	return s.editingIndex, true
}

// WorkingText returns the staged text of the segment being edited.
func (s *Store) WorkingText() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.editingIndex == noEditing {
		return "", false
	}
	return s.workingText, true
}

// StartEditing stages segment index for editing. If another segment was
// being edited its working text is discarded, never committed.
func (s *Store) StartEditing(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkIndex(index); err != nil {
		return err
	}
	if s.editingIndex == index {
		return fmt.Errorf("%w: segment %d is already being edited", domain.ErrInvalidState, index)
	}

	text := s.document.Segments[index].Text
	s.editingIndex = index
	s.workingText = text
	s.originalText = text
	return nil
}

// UpdateWorkingText replaces the staged text. The committed document is
// untouched.
func (s *Store) UpdateWorkingText(index int, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkEditing(index); err != nil {
		return err
	}
	s.workingText = text
	return nil
}

// CancelEditing discards the staged text and returns the segment to the
// viewing state.
func (s *Store) CancelEditing(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkEditing(index); err != nil {
		return err
	}
	s.reset()
	return nil
}

// SaveEditing writes the staged text into the committed document. This is
// the only mutation path for committed text.
func (s *Store) SaveEditing(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkEditing(index); err != nil {
		return err
	}
	s.document.Segments[index].Text = s.workingText
	s.reset()
	return nil
}

// FullScript assembles the committed document into one exportable text,
// reflecting any saved edits.
func (s *Store) FullScript() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var builder strings.Builder
	if strings.TrimSpace(s.document.Opening) != "" {
		builder.WriteString(s.document.Opening)
		builder.WriteString("\n\n")
	}
	for _, segment := range s.document.Segments {
		label := segment.SlideNumber
		if label == "" {
			label = fmt.Sprintf("%d", segment.Index+1)
		}
		fmt.Fprintf(&builder, "[Slide %s] %s\n%s\n\n", label, segment.Title, segment.Text)
	}
	return strings.TrimRight(builder.String(), "\n") + "\n"
}

func (s *Store) reset() {
	s.editingIndex = noEditing
	s.workingText = ""
	s.originalText = ""
}

func (s *Store) checkIndex(index int) error {
	if index < 0 || index >= len(s.document.Segments) {
		return fmt.Errorf("%w: segment index %d out of range", domain.ErrInvalidState, index)
	}
	return nil
}

func (s *Store) checkEditing(index int) error {
	if err := s.checkIndex(index); err != nil {
		return err
	}
	if s.editingIndex != index {
		return fmt.Errorf("%w: segment %d is not being edited", domain.ErrInvalidState, index)
	}
	return nil
}
