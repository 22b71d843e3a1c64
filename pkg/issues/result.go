package issues

// Status is the tri-state outcome of a conversion.
type Status string

const (
	StatusSuccess Status = "success"
	StatusPartial Status = "partial"
	StatusFailure Status = "failure"
)

// Result carries the outcome of a conversion pass.
// Data holds the zero value when Status is StatusFailure.
type Result[T any] struct {
	Status Status  `json:"status" yaml:"status"`
	Data   T       `json:"data,omitempty" yaml:"data,omitempty"`
	Issues []Issue `json:"issues" yaml:"issues"`
}

// CreateResult computes the final status from the collector and attaches data
// unless the status is a failure.
func CreateResult[T any](c *Collector, data T) Result[T] {
	status := c.Status()
	r := Result[T]{Status: status, Issues: c.Issues()}
	if status != StatusFailure {
		r.Data = data
	}
	return r
}

// CreateFailureResult is used when no usable data could be assembled at all.
func CreateFailureResult[T any](c *Collector) Result[T] {
	return Result[T]{Status: StatusFailure, Issues: c.Issues()}
}

func (r Result[T]) Succeeded() bool { return r.Status == StatusSuccess }
func (r Result[T]) Failed() bool    { return r.Status == StatusFailure }

// HasData reports whether Data was populated.
func (r Result[T]) HasData() bool { return r.Status != StatusFailure }

// Filter returns the issues with the given severity.
func (r Result[T]) Filter(severity Severity) []Issue {
	var out []Issue
	for _, i := range r.Issues {
		if i.Severity == severity {
			out = append(out, i)
		}
	}
	return out
}

// ForItem returns the issues whose details name the given item type.
func (r Result[T]) ForItem(item ItemType) []Issue {
	var out []Issue
	for _, i := range r.Issues {
		if i.Details.ItemType == item {
			out = append(out, i)
		}
	}
	return out
}
