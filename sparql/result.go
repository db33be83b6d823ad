// Package sparql provides a SPARQL 1.1 protocol client and the result types
// shared by the fan-out engine and the merger. Execution failures are values
// (Outcome error variant), never panics across the caller boundary.
package sparql

import "encoding/json"

// Term is one typed RDF value in a binding row
type Term struct {
	Type     string `json:"type"`
	Value    string `json:"value"`
	Datatype string `json:"datatype,omitempty"`
	Lang     string `json:"xml:lang,omitempty"`
}

// Binding is one result row: a mapping from variable name to term
type Binding map[string]Term

// Head lists the variables selected by the query
type Head struct {
	Vars []string `json:"vars,omitempty"`
}

// Bindings holds the ordered result rows
type Bindings struct {
	Bindings []Binding `json:"bindings"`
}

// Result is a SPARQL JSON result document. The original wire bytes are
// retained so successful responses pass through the engine unmodified.
type Result struct {
	Head    Head      `json:"head"`
	Results *Bindings `json:"results,omitempty"`
	Boolean *bool     `json:"boolean,omitempty"`

	raw json.RawMessage
}

// UnmarshalJSON decodes a result document and retains the raw bytes
func (r *Result) UnmarshalJSON(data []byte) error {
	type alias Result
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*r = Result(a)
	r.raw = append(json.RawMessage(nil), data...)
	return nil
}

// MarshalJSON emits the original wire bytes when available so that callers
// see exactly what the endpoint returned.
func (r *Result) MarshalJSON() ([]byte, error) {
	if r.raw != nil {
		return r.raw, nil
	}

	type alias Result
	return json.Marshal(alias(*r))
}

// BindingRows returns the binding rows, or nil for ASK results
func (r *Result) BindingRows() []Binding {
	if r == nil || r.Results == nil {
		return nil
	}
	return r.Results.Bindings
}
