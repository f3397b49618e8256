// pkg/resource/resource.go
package resource

// Document is an open, schemaless JSON object as carried on the wire.
type Document map[string]any

// Clone returns a shallow copy; nil stays nil.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// Specification is the envelope for CreateOrUpdate and Preview.
type Specification struct {
	Type       string
	APIVersion string
	Properties Document
	// Config is nil when the caller sent no extension configuration.
	Config Document
}

// Reference is the envelope for Get and Delete.
type Reference struct {
	Type        string
	APIVersion  string
	Identifiers Document
	Config      Document
}

type Status string

const (
	StatusSucceeded Status = "Succeeded"
	StatusFailed    Status = "Failed"
	StatusCanceled  Status = "Canceled"
	StatusTimedOut  Status = "TimedOut"
)

func (s Status) Valid() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusCanceled, StatusTimedOut:
		return true
	}
	return false
}

type ErrorDetail struct {
	Code    string
	Target  string
	Message string
}

type ErrorInfo struct {
	Code       string
	Target     string
	Message    string
	InnerError string
	Details    []ErrorDetail
}

// Result is what a handler hands back to the dispatcher.
// Status is the only failure discriminant; Error explains a Failed result.
type Result struct {
	Status      Status
	Type        string
	APIVersion  string
	Identifiers Document
	Properties  Document
	Error       *ErrorInfo
	Message     string
}

func Succeeded(typ, apiVersion string, props, ids Document) *Result {
	return &Result{
		Status:      StatusSucceeded,
		Type:        typ,
		APIVersion:  apiVersion,
		Properties:  props,
		Identifiers: ids,
	}
}

func Failed(typ, apiVersion string, info *ErrorInfo) *Result {
	msg := ""
	if info != nil {
		msg = info.Message
	}
	return &Result{
		Status:     StatusFailed,
		Type:       typ,
		APIVersion: apiVersion,
		Error:      info,
		Message:    msg,
	}
}

func Canceled(typ, apiVersion, msg string) *Result {
	return &Result{Status: StatusCanceled, Type: typ, APIVersion: apiVersion, Message: msg}
}

func TimedOut(typ, apiVersion, msg string) *Result {
	return &Result{Status: StatusTimedOut, Type: typ, APIVersion: apiVersion, Message: msg}
}
