// Package fastview builds simple server-side views: a data model is converted to a view-model,
// which is multiplexed to one or more views, each emitting element updates that a small client
// script applies to the page.
package fastview

import (
	"html/template"
)

// EleUpdate is an element identifier and a set of operations to apply to its attributes/content.
type EleUpdate struct {
	// The id by which to find the element
	EleId string
	// Op keys are attribute names or 'textContent', values are what they are set to.
	// ('x','123') sets attribute x to 123; ('textContent','abc') sets ele.textContent to abc.
	Ops []Op
}

// Op is a key and value. For example an html attribute and its new value.
type Op struct {
	Key   string
	Value string
}

// TextContent is the reserved op key for replacing an element's text.
const TextContent = "textContent"

// Text returns an update replacing an element's text.
func Text(id, value string) EleUpdate {
	return EleUpdate{EleId: id, Ops: []Op{{Key: TextContent, Value: value}}}
}

// ViewComponent is a server side view: Parse adds its initial form to a page template, and
// Updates is the chan by which its element updates are published.
type ViewComponent interface {
	Updates() <-chan []EleUpdate
	// Parse adds the component's template to the parent, inheriting its func-map, and returns
	// the name under which it was defined.
	Parse(*template.Template) (string, error)
}
