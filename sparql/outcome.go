package sparql

import "encoding/json"

// ExecutionError describes a failed execution against one endpoint. It is
// recorded as data in fan-out results so one endpoint's failure never blocks
// the others.
type ExecutionError struct {
	Reason string `json:"error"`
}

// Error implements the error interface
func (e *ExecutionError) Error() string {
	return e.Reason
}

// Outcome is the tagged per-endpoint result: exactly one of Result or Err is
// set. Callers switch on IsError instead of duck-typing on a map key.
type Outcome struct {
	Result *Result
	Err    *ExecutionError
}

// Success wraps a successful result
func Success(r *Result) Outcome {
	return Outcome{Result: r}
}

// Failure wraps an error reason
func Failure(reason string) Outcome {
	return Outcome{Err: &ExecutionError{Reason: reason}}
}

// IsError reports whether the outcome is the error variant
func (o Outcome) IsError() bool {
	return o.Err != nil
}

// MarshalJSON emits the raw result document for successes and
// {"error": reason} for failures, matching the engine's wire contract.
func (o Outcome) MarshalJSON() ([]byte, error) {
	if o.Err != nil {
		return json.Marshal(o.Err)
	}
	if o.Result == nil {
		return json.Marshal(&ExecutionError{Reason: "no result"})
	}
	return json.Marshal(o.Result)
}

// UnmarshalJSON decodes either variant, recognizing the error shape by its
// "error" key.
func (o *Outcome) UnmarshalJSON(data []byte) error {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}

	if raw, ok := probe["error"]; ok {
		var reason string
		if err := json.Unmarshal(raw, &reason); err != nil {
			return err
		}
		o.Err = &ExecutionError{Reason: reason}
		o.Result = nil
		return nil
	}

	var result Result
	if err := json.Unmarshal(data, &result); err != nil {
		return err
	}
	o.Result = &result
	o.Err = nil
	return nil
}
