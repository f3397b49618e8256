package httpx

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	chimd "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/joeydtaylor/steeze-exthost/pkg/codec"
	"github.com/joeydtaylor/steeze-exthost/pkg/dispatch"
	"github.com/joeydtaylor/steeze-exthost/pkg/middleware/auth"
	"github.com/joeydtaylor/steeze-exthost/pkg/middleware/logger"
	hmetrics "github.com/joeydtaylor/steeze-exthost/pkg/middleware/metrics"
	"github.com/joeydtaylor/steeze-exthost/pkg/resource"
	"github.com/joeydtaylor/steeze-exthost/pkg/wire"
)

const maxBody = 4 << 20

type Deps struct {
	Dispatcher *dispatch.Dispatcher
	Auth       *auth.Middleware
	LogMW      *logger.Middleware
	Metrics    http.Handler
	Log        *zap.Logger
}

// Mount installs the middleware chain and the RPC routes and returns the
// finished handler.
func Mount(r Router, d Deps) http.Handler {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	r.Use(chimd.RequestID, chimd.Recoverer)

	if d.Auth.Enabled() {
		r.Use(d.Auth.Middleware())
	}
	if d.LogMW != nil {
		r.Use(d.LogMW.Middleware(d.Auth))
	}
	r.Use(hmetrics.Collect())

	if d.Metrics != nil {
		r.Get("/metrics", d.Metrics)
	}
	r.Get("/types", describe(d))

	r.Post("/rpc/"+dispatch.OpCreateOrUpdate, specRoute(d, d.Dispatcher.CreateOrUpdate))
	r.Post("/rpc/"+dispatch.OpPreview, specRoute(d, d.Dispatcher.Preview))
	r.Post("/rpc/"+dispatch.OpGet, refRoute(d, d.Dispatcher.Get))
	r.Post("/rpc/"+dispatch.OpDelete, refRoute(d, d.Dispatcher.Delete))
	r.Post("/rpc/"+dispatch.OpPing, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, d.Log, d.Dispatcher.Ping(r.Context()), http.StatusOK)
	}))
	return r.Mux()
}

func specRoute(d Deps, op func(context.Context, *wire.ResourceSpecification) *wire.Response) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req wire.ResourceSpecification
		if err := decodeBody(r, &req); err != nil {
			badRequest(w, d.Log, err)
			return
		}
		writeJSON(w, d.Log, op(r.Context(), &req), http.StatusOK)
	}
}

func refRoute(d Deps, op func(context.Context, *wire.ResourceReference) *wire.Response) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req wire.ResourceReference
		if err := decodeBody(r, &req); err != nil {
			badRequest(w, d.Log, err)
			return
		}
		writeJSON(w, d.Log, op(r.Context(), &req), http.StatusOK)
	}
}

func describe(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		art, err := d.Dispatcher.Describe(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, d.Log, map[string]json.RawMessage{
			"types": art.Types,
			"index": art.Index,
		}, http.StatusOK)
	}
}

func decodeBody(r *http.Request, v any) *resource.Error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		return resource.NewParseError("body", err)
	}
	if err := codec.JSONStrict.Unmarshal(body, v); err != nil {
		return resource.NewParseError("body", err)
	}
	return nil
}

func badRequest(w http.ResponseWriter, log *zap.Logger, err *resource.Error) {
	writeJSON(w, log, wire.EncodeResult(resource.Failed("", "", err.Info()), wire.Fallback{}), http.StatusBadRequest)
}

func writeJSON(w http.ResponseWriter, log *zap.Logger, v any, status int) {
	b, err := codec.JSONStrict.Marshal(v)
	if err != nil {
		log.Error("encode response", zap.Error(err))
		http.Error(w, "encode response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", codec.JSONStrict.ContentType())
	w.WriteHeader(status)
	_, _ = w.Write(b)
}
