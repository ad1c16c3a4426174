package catalog

import (
	"encoding/json"
	"fmt"
)

// Status is the outcome of a match.
type Status string

const (
	StatusSuccess  Status = "success"
	StatusNotFound Status = "not_found"
	StatusError    Status = "error"
)

// Placeholders for fields that could not be extracted.
const (
	UnknownName        = "Unknown"
	UnknownPrice       = "Unknown"
	MissingDescription = "No description"
)

// ProductRecord holds the details extracted from a matched entry. Fields are
// never empty; missing values carry a placeholder.
type ProductRecord struct {
	Name        string
	Price       string
	Description string
}

// Result is the outcome of Match. Record is set iff Status is StatusSuccess.
type Result struct {
	Status  Status
	Record  *ProductRecord
	Message string
}

// Found wraps a record in a success result.
func Found(rec ProductRecord) Result {
	return Result{Status: StatusSuccess, Record: &rec}
}

// NotFound is the result for a target nothing matched.
func NotFound(target string) Result {
	return Result{Status: StatusNotFound, Message: fmt.Sprintf("product '%s' not found", target)}
}

// Failed is an error result carrying message.
func Failed(message string) Result {
	return Result{Status: StatusError, Message: message}
}

type resultJSON struct {
	Status      Status `json:"status"`
	ProductName string `json:"product_name,omitempty"`
	Price       string `json:"price,omitempty"`
	Description string `json:"description,omitempty"`
	Message     string `json:"message,omitempty"`
}

// MarshalJSON writes the flat wire form: record fields sit next to status.
func (r Result) MarshalJSON() ([]byte, error) {
	out := resultJSON{Status: r.Status, Message: r.Message}
	if r.Record != nil {
		out.ProductName = r.Record.Name
		out.Price = r.Record.Price
		out.Description = r.Record.Description
	}
	return json.Marshal(out)
}

// UnmarshalJSON reads the flat wire form.
func (r *Result) UnmarshalJSON(data []byte) error {
	var in resultJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	switch in.Status {
	case StatusSuccess:
		*r = Result{Status: in.Status, Message: in.Message, Record: &ProductRecord{
			Name:        in.ProductName,
			Price:       in.Price,
			Description: in.Description,
		}}
	case StatusNotFound, StatusError:
		*r = Result{Status: in.Status, Message: in.Message}
	default:
		return fmt.Errorf("unknown match status %q", in.Status)
	}
	return nil
}
