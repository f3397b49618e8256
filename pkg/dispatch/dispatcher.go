// Package dispatch implements the RPC surface: it decodes wire envelopes,
// resolves the handler, invokes it behind a fault boundary and encodes the
// result. No error or panic from a handler reaches the transport.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/joeydtaylor/steeze-exthost/pkg/codec"
	"github.com/joeydtaylor/steeze-exthost/pkg/handlers"
	"github.com/joeydtaylor/steeze-exthost/pkg/resource"
	"github.com/joeydtaylor/steeze-exthost/pkg/typespec"
	"github.com/joeydtaylor/steeze-exthost/pkg/wire"
)

const (
	OpCreateOrUpdate = "CreateOrUpdate"
	OpPreview        = "Preview"
	OpGet            = "Get"
	OpDelete         = "Delete"
	OpPing           = "Ping"
)

// SchemaType is the reserved Preview type that returns the compiled schema
// instead of reaching a handler.
const SchemaType = typespec.TypesFile

const (
	labelGeneric    = "generic"
	labelUnresolved = "unresolved"
)

var tracer = otel.Tracer("steeze-exthost/dispatch")

type Dispatcher struct {
	reg         *handlers.Registry
	schema      *typespec.Compiler
	log         *zap.Logger
	callTimeout time.Duration
}

type Option func(*Dispatcher)

// WithCallTimeout bounds every handler call; expiry yields TimedOut.
func WithCallTimeout(d time.Duration) Option { return func(x *Dispatcher) { x.callTimeout = d } }

func New(reg *handlers.Registry, schema *typespec.Compiler, log *zap.Logger, opts ...Option) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	d := &Dispatcher{reg: reg, schema: schema, log: log}
	for _, o := range opts {
		o(d)
	}
	return d
}

func (d *Dispatcher) CreateOrUpdate(ctx context.Context, req *wire.ResourceSpecification) *wire.Response {
	fb := specFallback(req)
	return d.run(ctx, OpCreateOrUpdate, fb, func(ctx context.Context) (*resource.Result, error) {
		spec, err := wire.DecodeSpecification(req)
		if err != nil {
			return nil, err
		}
		b, err := d.resolve(spec.Type)
		if err != nil {
			return nil, err
		}
		return b.Handler().CreateOrUpdate(ctx, spec)
	})
}

// Preview dispatches a dry run. The reserved type SchemaType answers with the
// compiled schema.
func (d *Dispatcher) Preview(ctx context.Context, req *wire.ResourceSpecification) *wire.Response {
	fb := specFallback(req)
	return d.run(ctx, OpPreview, fb, func(ctx context.Context) (*resource.Result, error) {
		spec, err := wire.DecodeSpecification(req)
		if err != nil {
			return nil, err
		}
		if spec.Type == SchemaType {
			return d.schemaResult(spec)
		}
		b, err := d.resolve(spec.Type)
		if err != nil {
			return nil, err
		}
		return b.Handler().Preview(ctx, spec)
	})
}

func (d *Dispatcher) Get(ctx context.Context, req *wire.ResourceReference) *wire.Response {
	fb := refFallback(req)
	return d.run(ctx, OpGet, fb, func(ctx context.Context) (*resource.Result, error) {
		ref, err := wire.DecodeReference(req)
		if err != nil {
			return nil, err
		}
		b, err := d.resolve(ref.Type)
		if err != nil {
			return nil, err
		}
		return b.Handler().Get(ctx, ref)
	})
}

func (d *Dispatcher) Delete(ctx context.Context, req *wire.ResourceReference) *wire.Response {
	fb := refFallback(req)
	return d.run(ctx, OpDelete, fb, func(ctx context.Context) (*resource.Result, error) {
		ref, err := wire.DecodeReference(req)
		if err != nil {
			return nil, err
		}
		b, err := d.resolve(ref.Type)
		if err != nil {
			return nil, err
		}
		return b.Handler().Delete(ctx, ref)
	})
}

// Ping never resolves a handler and always succeeds.
func (d *Dispatcher) Ping(ctx context.Context) *wire.Empty {
	_, span := tracer.Start(ctx, "exthost."+OpPing)
	span.End()
	operationsTotal.WithLabelValues(OpPing, "", string(resource.StatusSucceeded)).Inc()
	return &wire.Empty{}
}

// Describe returns the compiled schema artifacts.
func (d *Dispatcher) Describe(ctx context.Context) (*typespec.Artifacts, error) {
	_, span := tracer.Start(ctx, "exthost.Describe")
	defer span.End()
	if d.schema == nil {
		err := errors.New("no type schema compiler configured")
		span.RecordError(err)
		return nil, err
	}
	art, err := d.schema.Artifacts()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return art, nil
}

func (d *Dispatcher) resolve(typ string) (handlers.Binding, error) {
	if d.reg == nil {
		return handlers.Binding{}, resource.NewHandlerNotFound(typ)
	}
	return d.reg.Resolve(typ)
}

// typeLabel bounds the metric label set to registered names. Types served by
// the generic handler, or by nothing, share one label each.
func (d *Dispatcher) typeLabel(typ string) string {
	if typ == SchemaType {
		return SchemaType
	}
	if d.reg == nil {
		return labelUnresolved
	}
	b, err := d.reg.Resolve(typ)
	switch {
	case err != nil:
		return labelUnresolved
	case b.IsGeneric():
		return labelGeneric
	}
	return b.Name()
}

func (d *Dispatcher) schemaResult(spec *resource.Specification) (*resource.Result, error) {
	if d.schema == nil {
		return nil, resource.NewHandlerNotFound(spec.Type)
	}
	art, err := d.schema.Artifacts()
	if err != nil {
		return nil, err
	}
	var types, index any
	if err := decodeArtifact(art.Types, &types); err != nil {
		return nil, err
	}
	if err := decodeArtifact(art.Index, &index); err != nil {
		return nil, err
	}
	apiVersion := spec.APIVersion
	if apiVersion == "" {
		apiVersion = d.schema.Settings().Version
	}
	return resource.Succeeded(SchemaType, apiVersion, resource.Document{
		"types": types,
		"index": index,
	}, nil), nil
}

func specFallback(req *wire.ResourceSpecification) wire.Fallback {
	if req == nil {
		return wire.Fallback{}
	}
	return wire.Fallback{Type: req.Type, APIVersion: req.APIVersion}
}

func refFallback(req *wire.ResourceReference) wire.Fallback {
	if req == nil {
		return wire.Fallback{}
	}
	return wire.Fallback{Type: req.Type, APIVersion: req.APIVersion}
}

// run is the fault boundary shared by every data operation.
func (d *Dispatcher) run(
	ctx context.Context,
	op string,
	fb wire.Fallback,
	call func(context.Context) (*resource.Result, error),
) (resp *wire.Response) {
	callID := uuid.NewString()
	start := time.Now()

	ctx, span := tracer.Start(ctx, "exthost."+op,
		trace.WithAttributes(
			attribute.String("exthost.call_id", callID),
			attribute.String("exthost.resource_type", fb.Type),
			attribute.String("exthost.api_version", fb.APIVersion),
		),
	)
	if d.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.callTimeout)
		defer cancel()
	}

	var (
		res *resource.Result
		err error
	)
	func() {
		defer func() {
			if p := recover(); p != nil {
				err = &panicError{value: p}
				d.log.Error("handler panic",
					zap.String("callId", callID),
					zap.String("operation", op),
					zap.String("resourceType", fb.Type),
					zap.Any("panic", p),
					zap.Stack("stack"),
				)
			}
		}()
		res, err = call(ctx)
	}()

	if err != nil {
		res = d.failure(ctx, err, fb)
	} else if res == nil {
		res = d.failure(ctx, errors.New("handler returned no result"), fb)
	}

	resp = wire.EncodeResult(res, fb)

	lat := time.Since(start)
	code := ""
	if resp.Error != nil {
		code = resp.Error.Code
	}
	operationsTotal.WithLabelValues(op, d.typeLabel(fb.Type), resp.Status).Inc()
	operationDuration.WithLabelValues(op).Observe(lat.Seconds())

	span.SetAttributes(attribute.String("exthost.status", resp.Status))
	if resp.Status != string(resource.StatusSucceeded) {
		if err != nil {
			span.RecordError(err)
		}
		span.SetStatus(codes.Error, code)
	}
	span.End()

	fields := []zap.Field{
		zap.String("callId", callID),
		zap.String("operation", op),
		zap.String("resourceType", resp.Type),
		zap.String("apiVersion", resp.APIVersion),
		zap.String("status", resp.Status),
		zap.Duration("lat", lat),
	}
	switch {
	case code == resource.CodeHandlerFault:
		d.log.Error("operation failed", append(fields, zap.String("code", code), zap.Error(err))...)
	case resp.Status != string(resource.StatusSucceeded):
		d.log.Warn("operation not completed", append(fields, zap.String("code", code), zap.Error(err))...)
	default:
		d.log.Info("operation", fields...)
	}
	return resp
}

// failure maps err to a result. Cancellation and deadline expiry keep their
// own statuses; typed resource errors keep their code and target; anything
// else is a HandlerFault carrying the original message.
func (d *Dispatcher) failure(ctx context.Context, err error, fb wire.Fallback) *resource.Result {
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		r := resource.TimedOut(fb.Type, fb.APIVersion, err.Error())
		r.Error = resource.NewTimedOut(err).Info()
		return r
	case errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled):
		r := resource.Canceled(fb.Type, fb.APIVersion, err.Error())
		r.Error = resource.NewCanceled(err).Info()
		return r
	}
	if re, ok := resource.AsError(err); ok {
		return resource.Failed(fb.Type, fb.APIVersion, re.Info())
	}
	handlerFaults.Inc()
	return resource.Failed(fb.Type, fb.APIVersion, resource.NewHandlerFault(err).Info())
}

type panicError struct {
	value any
}

func (p *panicError) Error() string {
	if err, ok := p.value.(error); ok {
		return fmt.Sprintf("handler panic: %v", err)
	}
	return fmt.Sprintf("handler panic: %v", p.value)
}

func (p *panicError) Unwrap() error {
	err, _ := p.value.(error)
	return err
}

func decodeArtifact(raw []byte, v any) error {
	if err := codec.JSONDocument.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode schema artifact: %w", err)
	}
	return nil
}
