package forms

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"strings"
)

// Encoding says how a field travels in a multipart submission.
type Encoding int

const (
	// EncText fields are sent as plain form values.
	EncText Encoding = iota
	// EncFile slots are sent as file parts when a new file is selected, or as
	// the persisted URL otherwise.
	EncFile
)

// Field is one entry of a Schema.
type Field struct {
	Name     string
	Encoding Encoding
}

// Schema enumerates the fields a record form may submit. Nothing outside
// the schema is ever encoded.
type Schema struct {
	Name   string
	Fields []Field
}

// DonorSchema is the donor profile form.
var DonorSchema = Schema{
	Name: "donor",
	Fields: []Field{
		{"emailid", EncText},
		{"name", EncText},
		{"age", EncText},
		{"gender", EncText},
		{"curcity", EncText},
		{"curaddress", EncText},
		{"qualification", EncText},
		{"occupation", EncText},
		{"contact", EncText},
		{"adhaarpic", EncFile},
		{"profilepic", EncFile},
	},
}

// NeedySchema is the needy registration form.
var NeedySchema = Schema{
	Name: "needy",
	Fields: []Field{
		{"email", EncText},
		{"contact", EncText},
		{"name", EncText},
		{"dob", EncText},
		{"gender", EncText},
		{"address", EncText},
		{"aadhaarFront", EncFile},
		{"aadhaarBack", EncFile},
	},
}

// SchemaByName returns the schema registered under name.
func SchemaByName(name string) (Schema, bool) {
	switch name {
	case DonorSchema.Name:
		return DonorSchema, true
	case NeedySchema.Name:
		return NeedySchema, true
	}
	return Schema{}, false
}

// Lookup returns the field named name.
func (s Schema) Lookup(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// TextFields returns the names of text fields in schema order.
func (s Schema) TextFields() []string {
	return s.names(EncText)
}

// FileSlots returns the names of file slots in schema order.
func (s Schema) FileSlots() []string {
	return s.names(EncFile)
}

func (s Schema) names(enc Encoding) []string {
	var out []string
	for _, f := range s.Fields {
		if f.Encoding == enc {
			out = append(out, f.Name)
		}
	}
	return out
}

// Empty returns the blank record: every text field set to "".
func (s Schema) Empty() Fields {
	out := make(Fields)
	for _, name := range s.TextFields() {
		out[name] = ""
	}
	return out
}

// Encode writes values, persisted file URLs and pending files as a
// multipart body and returns its content type.
func (s Schema) Encode(w io.Writer, values Fields, urls map[string]string, files map[string]*File) (string, error) {
	mw := multipart.NewWriter(w)
	for _, f := range s.Fields {
		switch f.Encoding {
		case EncText:
			if err := mw.WriteField(f.Name, values[f.Name]); err != nil {
				return "", fmt.Errorf("write field %s: %w", f.Name, err)
			}
		case EncFile:
			if file := files[f.Name]; file != nil {
				if err := writeFile(mw, f.Name, file); err != nil {
					return "", err
				}
				continue
			}
			if url := urls[f.Name]; url != "" {
				if err := mw.WriteField(f.Name, url); err != nil {
					return "", fmt.Errorf("write field %s: %w", f.Name, err)
				}
			}
		}
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("close multipart: %w", err)
	}
	return mw.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func writeFile(mw *multipart.Writer, field string, file *File) error {
	name := file.Name
	if name == "" {
		name = field
	}
	contentType := file.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		quoteEscaper.Replace(field), quoteEscaper.Replace(name)))
	h.Set("Content-Type", contentType)

	part, err := mw.CreatePart(h)
	if err != nil {
		return fmt.Errorf("create part %s: %w", field, err)
	}
	if _, err := part.Write(file.Data); err != nil {
		return fmt.Errorf("write part %s: %w", field, err)
	}
	return nil
}

// Decode reads a submitted multipart form, keeping only schema fields.
// Text values of file slots are returned as persisted URLs.
func (s Schema) Decode(form *multipart.Form, maxFileBytes int64) (values Fields, urls map[string]string, files map[string]*File, err error) {
	values = s.Empty()
	urls = make(map[string]string)
	files = make(map[string]*File)
	if form == nil {
		return values, urls, files, nil
	}

	for _, f := range s.Fields {
		if v := form.Value[f.Name]; len(v) > 0 {
			if f.Encoding == EncText {
				values[f.Name] = v[0]
			} else {
				urls[f.Name] = v[0]
			}
		}
		if f.Encoding != EncFile {
			continue
		}
		if headers := form.File[f.Name]; len(headers) > 0 {
			file, err := ReadFile(headers[0], maxFileBytes)
			if err != nil {
				return nil, nil, nil, fmt.Errorf("read %s: %w", f.Name, err)
			}
			files[f.Name] = file
		}
	}
	return values, urls, files, nil
}

// ReadFile loads an uploaded file into memory, refusing files larger than
// maxBytes (0 means no limit).
func ReadFile(h *multipart.FileHeader, maxBytes int64) (*File, error) {
	if maxBytes > 0 && h.Size > maxBytes {
		return nil, fmt.Errorf("file %s is %d bytes, limit is %d", h.Filename, h.Size, maxBytes)
	}
	src, err := h.Open()
	if err != nil {
		return nil, err
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		return nil, err
	}
	return &File{
		Name:        h.Filename,
		ContentType: h.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

// EncodeFile writes a multipart body holding a single file part.
func EncodeFile(w io.Writer, field string, file *File) (string, error) {
	mw := multipart.NewWriter(w)
	if err := writeFile(mw, field, file); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("close multipart: %w", err)
	}
	return mw.FormDataContentType(), nil
}
