package forms

import (
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
)

// LocalPreviewPrefix marks previews of files that exist only locally.
const LocalPreviewPrefix = "local:"

var (
	// ErrUnknownField is returned for names outside the form's schema.
	ErrUnknownField = errors.New("unknown form field")
	// ErrNotFileSlot is returned when a file is selected for a text field.
	ErrNotFileSlot = errors.New("field is not a file slot")
)

// Form is an editable record: the snapshot taken at load time and the
// values currently being edited. Only Load replaces the snapshot.
type Form struct {
	schema Schema

	current  Fields
	original Fields

	previews         map[string]string
	originalPreviews map[string]string
	pending          map[string]*File
	loaded           bool
}

// NewForm returns a blank form whose snapshot is the schema's empty record.
func NewForm(schema Schema) *Form {
	return &Form{
		schema:           schema,
		current:          schema.Empty(),
		original:         schema.Empty(),
		previews:         make(map[string]string),
		originalPreviews: make(map[string]string),
		pending:          make(map[string]*File),
	}
}

// Schema returns the form's schema.
func (f *Form) Schema() Schema { return f.schema }

// Loaded reports whether a snapshot has been loaded from the backend.
func (f *Form) Loaded() bool { return f.loaded }

// Load replaces both the snapshot and the edited values with a fetched
// record. Keys outside the schema's text fields are ignored; previews are
// keyed by file slot. Pending file selections are discarded.
func (f *Form) Load(values Fields, previews map[string]string) {
	snapshot := f.schema.Empty()
	for k, v := range values {
		if field, ok := f.schema.Lookup(k); ok && field.Encoding == EncText {
			snapshot[k] = v
		}
	}
	f.current = snapshot.Clone()
	f.original = snapshot

	f.previews = make(map[string]string)
	f.originalPreviews = make(map[string]string)
	for _, slot := range f.schema.FileSlots() {
		if p := previews[slot]; p != "" {
			f.previews[slot] = p
			f.originalPreviews[slot] = p
		}
	}
	f.pending = make(map[string]*File)
	f.loaded = true
}

// Set updates one edited text value.
func (f *Form) Set(name, value string) error {
	field, ok := f.schema.Lookup(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownField, name)
	}
	if field.Encoding != EncText {
		return fmt.Errorf("%w: %s", ErrNotFileSlot, name)
	}
	f.current[name] = value
	return nil
}

// Get returns an edited text value.
func (f *Form) Get(name string) string {
	return f.current[name]
}

// SelectFile stages a file for upload in slot and returns its local
// preview handle.
func (f *Form) SelectFile(slot string, file *File) (string, error) {
	field, ok := f.schema.Lookup(slot)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownField, slot)
	}
	if field.Encoding != EncFile {
		return "", fmt.Errorf("%w: %s", ErrNotFileSlot, slot)
	}
	preview := LocalPreviewPrefix + uuid.New().String()
	f.pending[slot] = file
	f.previews[slot] = preview
	return preview, nil
}

// Preview returns the current preview of a file slot.
func (f *Form) Preview(slot string) string {
	return f.previews[slot]
}

// Pending returns the file staged in slot, if any.
func (f *Form) Pending(slot string) *File {
	return f.pending[slot]
}

// Values returns a copy of the edited values.
func (f *Form) Values() Fields { return f.current.Clone() }

// Original returns a copy of the loaded snapshot.
func (f *Form) Original() Fields { return f.original.Clone() }

// Dirty reports whether the edited state differs from the snapshot.
func (f *Form) Dirty() bool {
	slots := f.schema.FileSlots()
	cur := make([]string, len(slots))
	orig := make([]string, len(slots))
	pending := make([]*File, len(slots))
	for i, slot := range slots {
		cur[i] = f.previews[slot]
		orig[i] = f.originalPreviews[slot]
		pending[i] = f.pending[slot]
	}
	return IsDirty(f.current, f.original, cur, orig, pending)
}

// Encode writes the form as a multipart body. Slots without a pending
// file carry their persisted URL.
func (f *Form) Encode(w io.Writer) (string, error) {
	urls := make(map[string]string)
	for _, slot := range f.schema.FileSlots() {
		if p := f.originalPreviews[slot]; p != "" {
			urls[slot] = p
		}
	}
	return f.schema.Encode(w, f.current, urls, f.pending)
}

// FromSubmission builds a form from values decoded off an incoming
// submission. The snapshot stays blank; persisted URLs become previews.
func FromSubmission(schema Schema, values Fields, urls map[string]string, files map[string]*File) (*Form, error) {
	f := NewForm(schema)
	f.originalPreviews = make(map[string]string)
	for slot, url := range urls {
		if field, ok := schema.Lookup(slot); ok && field.Encoding == EncFile && url != "" {
			f.originalPreviews[slot] = url
			f.previews[slot] = url
		}
	}
	for k, v := range values {
		if err := f.Set(k, v); err != nil {
			return nil, err
		}
	}
	for slot, file := range files {
		if _, err := f.SelectFile(slot, file); err != nil {
			return nil, err
		}
	}
	return f, nil
}
