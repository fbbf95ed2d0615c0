package ui

import (
	"github.com/iancoleman/orderedmap"
)

// Builder collects selector keyed field assignments for one update. Setting
// the same selector twice keeps the first position and the last value.
type Builder struct {
	document string
	fields   *orderedmap.OrderedMap
}

func NewBuilder() *Builder {
	return &Builder{fields: orderedmap.New()}
}

// Append names the layout document the update applies to.
func (b *Builder) Append(document string) {
	b.document = document
}

// Set assigns a text, number or boolean value to selector.
func (b *Builder) Set(selector string, value any) {
	b.fields.Set(selector, value)
}

// SetNull clears selector on the client.
func (b *Builder) SetNull(selector string) {
	b.fields.Set(selector, nil)
}

// Value returns the pending assignment for selector.
func (b *Builder) Value(selector string) (any, bool) {
	return b.fields.Get(selector)
}

// Selectors lists the assigned selectors in first-assignment order.
func (b *Builder) Selectors() []string {
	return b.fields.Keys()
}

func (b *Builder) Len() int {
	return len(b.fields.Keys())
}

// Merge copies every assignment from other into b.
func (b *Builder) Merge(other *Builder) {
	if other == nil {
		return
	}
	if other.document != "" && b.document == "" {
		b.document = other.document
	}
	for _, key := range other.fields.Keys() {
		value, _ := other.fields.Get(key)
		b.fields.Set(key, value)
	}
}

// Update freezes the builder into an Update. A full update replaces the whole
// page on the client; a partial update only touches the listed selectors.
func (b *Builder) Update(full bool) Update {
	return Update{Full: full, Document: b.document, Fields: b.fields}
}

// Update is a batch of field assignments ready to be sent to a client.
type Update struct {
	Full     bool
	Document string
	Fields   *orderedmap.OrderedMap
}

// Value returns the assignment for selector.
func (u Update) Value(selector string) (any, bool) {
	if u.Fields == nil {
		return nil, false
	}
	return u.Fields.Get(selector)
}

// Text returns the string assigned to selector.
func (u Update) Text(selector string) (string, bool) {
	value, ok := u.Value(selector)
	if !ok {
		return "", false
	}
	text, ok := value.(string)
	return text, ok
}

// Selectors lists the assigned selectors in order.
func (u Update) Selectors() []string {
	if u.Fields == nil {
		return nil
	}
	return u.Fields.Keys()
}

// Sink receives UI updates for a single player.
type Sink interface {
	SendUI(update Update) error
}
