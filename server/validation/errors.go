// Package validation holds the fixed-shape, field-by-field error report
// returned to clients when a submitted form does not validate.
package validation

import (
	"bytes"
	"encoding/json"
)

// Errors maps an ordered, fixed set of field names to their error messages.
//
// Every registered field is always rendered, even when it has no error, so
// clients can rely on a stable envelope. A field either carries a list of
// messages or a nested Errors value (a sub-form).
type Errors struct {
	fields   []string
	messages map[string][]string
	children map[string]*Errors
	form     []string
}

// NewErrors creates an empty report over the given fields, in order.
func NewErrors(fields ...string) *Errors {
	e := &Errors{
		messages: make(map[string][]string, len(fields)),
		children: make(map[string]*Errors),
	}
	for _, f := range fields {
		e.register(f)
	}
	return e
}

func (e *Errors) register(field string) {
	if _, ok := e.messages[field]; ok {
		return
	}
	e.fields = append(e.fields, field)
	e.messages[field] = []string{}
}

// Add appends a message to field. Unknown fields are registered at the end.
func (e *Errors) Add(field, msg string) {
	e.register(field)
	e.messages[field] = append(e.messages[field], msg)
}

// AddForm appends a message that belongs to the form itself rather than to
// one of its fields.
func (e *Errors) AddForm(msg string) {
	e.form = append(e.form, msg)
}

// SetChild nests a sub-form report under field.
func (e *Errors) SetChild(field string, child *Errors) {
	e.register(field)
	if child == nil {
		delete(e.children, field)
		return
	}
	e.children[field] = child
}

// Child returns the nested report of field, or nil.
func (e *Errors) Child(field string) *Errors {
	return e.children[field]
}

// Messages returns the messages recorded for field. The result is never nil
// for a registered field.
func (e *Errors) Messages(field string) []string {
	return e.messages[field]
}

// FormMessages returns form-level messages.
func (e *Errors) FormMessages() []string {
	return e.form
}

// Fields returns the registered field names in render order.
func (e *Errors) Fields() []string {
	out := make([]string, len(e.fields))
	copy(out, e.fields)
	return out
}

// HasErrors reports whether the form, any field, or any nested form failed.
func (e *Errors) HasErrors() bool {
	if e == nil {
		return false
	}
	if len(e.form) > 0 {
		return true
	}
	for _, f := range e.fields {
		if len(e.messages[f]) > 0 {
			return true
		}
		if e.children[f].HasErrors() {
			return true
		}
	}
	return false
}

// Failed lists the fields that carry messages or failing sub-forms.
func (e *Errors) Failed() []string {
	var out []string
	for _, f := range e.fields {
		if len(e.messages[f]) > 0 || e.children[f].HasErrors() {
			out = append(out, f)
		}
	}
	return out
}

// MarshalJSON renders {"errors": [...], "children": {...}} keeping field
// order. The form-level "errors" key is only present when non-empty.
func (e *Errors) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	if len(e.form) > 0 {
		buf.WriteString(`"errors":`)
		b, err := json.Marshal(e.form)
		if err != nil {
			return nil, err
		}
		buf.Write(b)
		buf.WriteByte(',')
	}
	buf.WriteString(`"children":{`)
	for i, f := range e.fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')

		var val []byte
		if child, ok := e.children[f]; ok {
			val, err = child.MarshalJSON()
		} else {
			val, err = json.Marshal(e.messages[f])
		}
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteString("}}")
	return buf.Bytes(), nil
}

// Envelope is the body sent with a 400 response.
type Envelope struct {
	Code    int     `json:"code"`
	Message string  `json:"message"`
	Errors  *Errors `json:"errors"`
}

// NewEnvelope wraps a failed report in the standard 400 envelope.
func NewEnvelope(errs *Errors) Envelope {
	return Envelope{Code: 400, Message: MsgValidationFailed, Errors: errs}
}
