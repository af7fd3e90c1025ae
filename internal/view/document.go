package view

import (
	"encoding/json"
	"maps"
	"slices"
	"sort"
	"sync"
)

// Element ids shared with the page template and browser shell.
const (
	ElemError           = "error"
	ElemStatus          = "status"
	ElemTicker          = "ticker"
	ElemInterval        = "interval"
	ElemSignal          = "signal"
	ElemConfidence      = "confidence"
	ElemPrice           = "price"
	ElemTimestamp       = "timestamp"
	ElemEntrySignal     = "entrySignal"
	ElemPatternStack    = "patternStack"
	ElemLogicList       = "logicList"
	ElemChart           = "tvchart"
	ElemLogo            = "logo"
	ElemNewsList        = "newsList"
	ElemBacktestResults = "backtestResults"
)

// AttrTimestamp stores the raw signal timestamp for periodic time-ago refresh.
const AttrTimestamp = "data-ts"

// OpKind is the kind of mutation carried by an Op.
type OpKind string

const (
	OpText   OpKind = "text"
	OpHTML   OpKind = "html"
	OpClass  OpKind = "class"
	OpHidden OpKind = "hidden"
	OpAttr   OpKind = "attr"
	OpItems  OpKind = "items"
	OpChart  OpKind = "chart"
)

// Op is one element mutation. Text and HTML replace each other, like innerText and innerHTML.
type Op struct {
	Kind   OpKind          `json:"op"`
	ID     string          `json:"id"`
	Value  string          `json:"value,omitempty"`
	Key    string          `json:"key,omitempty"`
	Hidden bool            `json:"hidden,omitempty"`
	Items  []string        `json:"items,omitempty"`
	Chart  json.RawMessage `json:"chart,omitempty"`
}

func SetText(id, v string) Op           { return Op{Kind: OpText, ID: id, Value: v} }
func SetHTML(id, v string) Op           { return Op{Kind: OpHTML, ID: id, Value: v} }
func SetClass(id, v string) Op          { return Op{Kind: OpClass, ID: id, Value: v} }
func SetHidden(id string, h bool) Op    { return Op{Kind: OpHidden, ID: id, Hidden: h} }
func SetAttr(id, key, v string) Op      { return Op{Kind: OpAttr, ID: id, Key: key, Value: v} }
func SetItems(id string, v []string) Op { return Op{Kind: OpItems, ID: id, Items: slices.Clone(v)} }

// SetChart mounts spec in the element; a nil spec tears the widget down.
func SetChart(id string, spec json.RawMessage) Op { return Op{Kind: OpChart, ID: id, Chart: spec} }

// Patch is a batch of ops applied atomically, numbered in application order.
type Patch struct {
	Seq uint64 `json:"seq"`
	Ops []Op   `json:"ops"`
}

// Element is the current state of one view element.
type Element struct {
	ID     string            `json:"id"`
	Text   string            `json:"text,omitempty"`
	HTML   string            `json:"html,omitempty"`
	Class  string            `json:"class,omitempty"`
	Hidden bool              `json:"hidden,omitempty"`
	Attrs  map[string]string `json:"attrs,omitempty"`
	Items  []string          `json:"items,omitempty"`
	Chart  json.RawMessage   `json:"chart,omitempty"`
}

func (e Element) clone() Element {
	e.Attrs = maps.Clone(e.Attrs)
	e.Items = slices.Clone(e.Items)
	return e
}

// Document is the view's element store. Every Apply is atomic with respect to
// readers and to the publish callback, so observers never see half a render.
type Document struct {
	mu      sync.RWMutex
	elems   map[string]*Element
	seq     uint64
	publish func(Patch)
}

// NewDocument creates a document. publish, when non-nil, receives every applied
// patch while the document lock is held, so patches arrive in order.
func NewDocument(publish func(Patch)) *Document {
	return &Document{elems: make(map[string]*Element), publish: publish}
}

// Apply mutates the document and returns the resulting patch.
func (d *Document) Apply(ops ...Op) Patch {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, op := range ops {
		el, ok := d.elems[op.ID]
		if !ok {
			el = &Element{ID: op.ID}
			d.elems[op.ID] = el
		}
		switch op.Kind {
		case OpText:
			el.Text, el.HTML = op.Value, ""
		case OpHTML:
			el.HTML, el.Text = op.Value, ""
		case OpClass:
			el.Class = op.Value
		case OpHidden:
			el.Hidden = op.Hidden
		case OpAttr:
			if el.Attrs == nil {
				el.Attrs = make(map[string]string)
			}
			if op.Value == "" {
				delete(el.Attrs, op.Key)
			} else {
				el.Attrs[op.Key] = op.Value
			}
		case OpItems:
			el.Items = slices.Clone(op.Items)
		case OpChart:
			el.Chart = op.Chart
		}
	}
	d.seq++
	p := Patch{Seq: d.seq, Ops: ops}
	if d.publish != nil {
		d.publish(p)
	}
	return p
}

// Element returns a copy of the element with id.
func (d *Document) Element(id string) (Element, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	el, ok := d.elems[id]
	if !ok {
		return Element{ID: id}, false
	}
	return el.clone(), true
}

// Elements returns copies of every element sorted by id.
func (d *Document) Elements() []Element {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Element, 0, len(d.elems))
	for _, el := range d.elems {
		out = append(out, el.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Replay returns a patch that rebuilds the whole document on an empty page,
// numbered with the current sequence so later patches follow it. The chart
// element always gets a chart op so a reconnecting page drops a widget the
// session no longer has.
func (d *Document) Replay() Patch {
	d.mu.RLock()
	defer d.mu.RUnlock()
	ids := slices.Sorted(maps.Keys(d.elems))
	ops := make([]Op, 0, len(ids)*3)
	for _, id := range ids {
		el := d.elems[id]
		if el.HTML != "" {
			ops = append(ops, SetHTML(id, el.HTML))
		} else {
			ops = append(ops, SetText(id, el.Text))
		}
		ops = append(ops, SetClass(id, el.Class), SetHidden(id, el.Hidden))
		for _, k := range slices.Sorted(maps.Keys(el.Attrs)) {
			ops = append(ops, SetAttr(id, k, el.Attrs[k]))
		}
		if el.Items != nil {
			ops = append(ops, SetItems(id, el.Items))
		}
		if el.Chart != nil || id == ElemChart {
			ops = append(ops, SetChart(id, el.Chart))
		}
	}
	return Patch{Seq: d.seq, Ops: ops}
}
