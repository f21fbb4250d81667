// Package forms tracks editable record forms: the loaded snapshot, the
// values being edited, selected files, and the multipart encoding sent to
// the backend.
package forms

// Fields maps a form field name to its text value.
type Fields map[string]string

// Clone returns an independent copy.
func (f Fields) Clone() Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// File is a locally selected file pending upload.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// IsDirty reports whether current differs from original. Fields are
// compared where the key exists in both maps. Previews are compared slot by
// slot ("" means no image) and any pending file makes the form dirty.
func IsDirty(current, original Fields, currentPreviews, originalPreviews []string, pending []*File) bool {
	for k, v := range current {
		if ov, ok := original[k]; ok && ov != v {
			return true
		}
	}

	if len(currentPreviews) != len(originalPreviews) {
		return true
	}
	for i := range currentPreviews {
		if currentPreviews[i] != originalPreviews[i] {
			return true
		}
	}

	for _, f := range pending {
		if f != nil {
			return true
		}
	}
	return false
}
