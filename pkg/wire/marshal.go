package wire

import (
	"errors"
	"fmt"

	"github.com/joeydtaylor/steeze-exthost/pkg/codec"
	"github.com/joeydtaylor/steeze-exthost/pkg/resource"
)

var errMissing = errors.New("value is required")

// DecodeSpecification turns a CreateOrUpdate/Preview payload into a domain
// envelope. Document failures name their field.
func DecodeSpecification(in *ResourceSpecification) (*resource.Specification, error) {
	if in == nil {
		return nil, resource.NewArgumentError("request", errMissing)
	}
	if in.Type == "" {
		return nil, resource.NewArgumentError("type", errMissing)
	}
	props, err := codec.ParseDocument("properties", in.Properties)
	if err != nil {
		return nil, err
	}
	cfg, err := codec.ParseOptionalDocument("config", in.Config)
	if err != nil {
		return nil, err
	}
	return &resource.Specification{
		Type:       in.Type,
		APIVersion: in.APIVersion,
		Properties: props,
		Config:     cfg,
	}, nil
}

func DecodeReference(in *ResourceReference) (*resource.Reference, error) {
	if in == nil {
		return nil, resource.NewArgumentError("request", errMissing)
	}
	if in.Type == "" {
		return nil, resource.NewArgumentError("type", errMissing)
	}
	ids, err := codec.ParseDocument("identifiers", in.Identifiers)
	if err != nil {
		return nil, err
	}
	cfg, err := codec.ParseOptionalDocument("config", in.Config)
	if err != nil {
		return nil, err
	}
	return &resource.Reference{
		Type:        in.Type,
		APIVersion:  in.APIVersion,
		Identifiers: ids,
		Config:      cfg,
	}, nil
}

// Fallback supplies type and apiVersion when a result leaves them empty.
type Fallback struct {
	Type       string
	APIVersion string
}

// EncodeResult never fails. Missing documents become "{}", a missing or
// unknown status becomes Failed, and a Failed result without an error gets a
// HandlerFault error.
func EncodeResult(res *resource.Result, fb Fallback) *Response {
	if res == nil {
		res = resource.Failed(fb.Type, fb.APIVersion, resource.NewHandlerFault(errors.New("handler returned no result")).Info())
	}
	out := &Response{
		Status:     string(res.Status),
		Type:       res.Type,
		APIVersion: res.APIVersion,
	}
	if out.Type == "" {
		out.Type = fb.Type
	}
	if out.APIVersion == "" {
		out.APIVersion = fb.APIVersion
	}

	info := res.Error
	if !res.Status.Valid() {
		out.Status = string(resource.StatusFailed)
		if info == nil {
			info = &resource.ErrorInfo{
				Code:    resource.CodeHandlerFault,
				Message: fmt.Sprintf("handler returned unknown status %q", res.Status),
			}
		}
	}
	if out.Status == string(resource.StatusFailed) && info == nil {
		msg := res.Message
		if msg == "" {
			msg = "handler reported failure without an error"
		}
		info = &resource.ErrorInfo{Code: resource.CodeHandlerFault, Message: msg}
	}

	out.Properties = formatOrEmpty(res.Properties)
	out.Identifiers = formatOrEmpty(res.Identifiers)
	if info != nil {
		out.Error = encodeError(info)
	}
	return out
}

func formatOrEmpty(doc resource.Document) string {
	s, err := codec.FormatDocument(doc)
	if err != nil {
		return "{}"
	}
	return s
}

func encodeError(info *resource.ErrorInfo) *Error {
	e := &Error{
		Code:       info.Code,
		Target:     info.Target,
		Message:    info.Message,
		InnerError: info.InnerError,
	}
	for _, d := range info.Details {
		e.Details = append(e.Details, ErrorDetail{Code: d.Code, Target: d.Target, Message: d.Message})
	}
	return e
}

// DecodeResponse is the orchestrator-side inverse of EncodeResult.
func DecodeResponse(in *Response) (*resource.Result, error) {
	if in == nil {
		return nil, resource.NewArgumentError("response", errMissing)
	}
	props, err := codec.ParseDocument("properties", in.Properties)
	if err != nil {
		return nil, err
	}
	ids, err := codec.ParseDocument("identifiers", in.Identifiers)
	if err != nil {
		return nil, err
	}
	res := &resource.Result{
		Status:      resource.Status(in.Status),
		Type:        in.Type,
		APIVersion:  in.APIVersion,
		Properties:  props,
		Identifiers: ids,
	}
	if in.Error != nil {
		res.Error = &resource.ErrorInfo{
			Code:       in.Error.Code,
			Target:     in.Error.Target,
			Message:    in.Error.Message,
			InnerError: in.Error.InnerError,
		}
		for _, d := range in.Error.Details {
			res.Error.Details = append(res.Error.Details, resource.ErrorDetail{Code: d.Code, Target: d.Target, Message: d.Message})
		}
		res.Message = in.Error.Message
	}
	return res, nil
}
