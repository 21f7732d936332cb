// Package payload defines the messages that flow through a prediction graph:
// the request travelling from the root down to the leaves, the response
// travelling back up, and the feedback record replayed after the fact. The
// same structs serve the JSON and msgpack transports.
package payload

// Message is one prediction payload. Data carries the numeric tensor and its
// feature-name annotations; Meta travels alongside and may be consulted or
// amended by any node.
type Message struct {
	Meta Meta `json:"meta,omitzero" msgpack:"meta,omitempty"`
	Data Data `json:"data" msgpack:"data"`
}

// Meta is the named metadata travelling with a message.
type Meta struct {
	// RequestID identifies one inbound request across all node calls.
	RequestID string `json:"request_id,omitempty" msgpack:"request_id,omitempty"`

	// Routing records, per router node name, the branch key it selected.
	// Stamped by the engine during execution and read back by the feedback
	// path so that feedback replays the exact route of the prediction.
	Routing map[string]string `json:"routing,omitempty" msgpack:"routing,omitempty"`

	// Tags carries free-form annotations set by nodes.
	Tags map[string]any `json:"tags,omitempty" msgpack:"tags,omitempty"`
}

// Data is the structured tensor payload: a row-major batch of float vectors
// plus optional per-column feature names.
type Data struct {
	Names  []string    `json:"names,omitempty" msgpack:"names,omitempty"`
	Values [][]float64 `json:"values" msgpack:"values"`
}

// Feedback is a prediction's request/response pair together with the ground
// truth and reward, delivered to the nodes that produced the prediction. No
// response payload is expected back.
type Feedback struct {
	Request  *Message `json:"request" msgpack:"request"`
	Response *Message `json:"response" msgpack:"response"`
	Truth    *Message `json:"truth,omitempty" msgpack:"truth,omitempty"`
	Reward   float64  `json:"reward,omitempty" msgpack:"reward,omitempty"`
}

// Clone returns a deep copy of the message. Transformer boundaries and
// concurrent combiner branches each get their own copy so sibling walks never
// share mutable payload state.
func (m *Message) Clone() *Message {
	if m == nil {
		return nil
	}
	out := &Message{
		Meta: Meta{RequestID: m.Meta.RequestID},
		Data: Data{},
	}
	if m.Meta.Routing != nil {
		out.Meta.Routing = make(map[string]string, len(m.Meta.Routing))
		for k, v := range m.Meta.Routing {
			out.Meta.Routing[k] = v
		}
	}
	if m.Meta.Tags != nil {
		out.Meta.Tags = make(map[string]any, len(m.Meta.Tags))
		for k, v := range m.Meta.Tags {
			out.Meta.Tags[k] = v
		}
	}
	if m.Data.Names != nil {
		out.Data.Names = append([]string(nil), m.Data.Names...)
	}
	if m.Data.Values != nil {
		out.Data.Values = make([][]float64, len(m.Data.Values))
		for i, row := range m.Data.Values {
			out.Data.Values[i] = append([]float64(nil), row...)
		}
	}
	return out
}

// Shape returns the (rows, cols) of the tensor. A ragged tensor reports the
// first row's width; SameShape is the authority for compatibility checks.
func (d Data) Shape() (rows, cols int) {
	rows = len(d.Values)
	if rows > 0 {
		cols = len(d.Values[0])
	}
	return rows, cols
}

// SameShape reports whether two tensors are element-wise alignable.
func (d Data) SameShape(other Data) bool {
	if len(d.Values) != len(other.Values) {
		return false
	}
	for i := range d.Values {
		if len(d.Values[i]) != len(other.Values[i]) {
			return false
		}
	}
	return true
}
