package serverfx

import (
	"context"
	"errors"
	"net"
	"net/http"
	"reflect"
	"slices"
	"strings"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/joeydtaylor/steeze-exthost/pkg/bundlefx"
	"github.com/joeydtaylor/steeze-exthost/pkg/config"
	"github.com/joeydtaylor/steeze-exthost/pkg/dispatch"
	"github.com/joeydtaylor/steeze-exthost/pkg/handlers"
	"github.com/joeydtaylor/steeze-exthost/pkg/middleware/auth"
	"github.com/joeydtaylor/steeze-exthost/pkg/middleware/logger"
	"github.com/joeydtaylor/steeze-exthost/pkg/transport/grpcx"
	"github.com/joeydtaylor/steeze-exthost/pkg/transport/httpx"
	"github.com/joeydtaylor/steeze-exthost/pkg/transport/listen"
	"github.com/joeydtaylor/steeze-exthost/pkg/typespec"
)

// Options allow per-binary config sources without code duplication.
type Options struct {
	ConfigPath    string               // TOML or YAML; empty falls back to $EXTHOST_CONFIG, then defaults
	Override      func(*config.Config) // applied after env, before validation (CLI flags)
	Configuration reflect.Type         // optional extension configuration shape
}

// AsBinding adds a handler binding to the registry group.
func AsBinding(b handlers.Binding) fx.Option {
	return fx.Supply(fx.Annotated{Group: "bindings", Target: b})
}

// AsShape adds a standalone shape to the schema.
func AsShape(s typespec.Shape) fx.Option {
	return fx.Supply(fx.Annotated{Group: "shapes", Target: s})
}

// ---- Config ----

func provideConfig(opts Options) (config.Config, error) {
	var (
		cfg config.Config
		err error
	)
	if path := config.PathOr(opts.ConfigPath); path != "" {
		if cfg, err = config.Load(path); err != nil {
			return config.Config{}, err
		}
	} else {
		cfg = config.Default()
		if err := cfg.ApplyEnv(); err != nil {
			return config.Config{}, err
		}
	}
	if opts.Override != nil {
		opts.Override(&cfg)
	}
	return cfg, cfg.Validate()
}

// ---- Core ----

type registryDeps struct {
	fx.In
	Bindings []handlers.Binding `group:"bindings"`
}

// Group order is not stable across builds, so bindings are ordered by name
// before registration; generic bindings sort first.
func provideRegistry(d registryDeps) (*handlers.Registry, error) {
	bs := slices.Clone(d.Bindings)
	slices.SortStableFunc(bs, func(a, b handlers.Binding) int {
		return strings.Compare(a.Name(), b.Name())
	})
	return handlers.New(bs...)
}

type compilerDeps struct {
	fx.In
	Opts   Options
	Cfg    config.Config
	Reg    *handlers.Registry
	Shapes []typespec.Shape `group:"shapes"`
}

func provideCompiler(d compilerDeps) (*typespec.Compiler, error) {
	shapes := slices.Clone(d.Shapes)
	slices.SortStableFunc(shapes, func(a, b typespec.Shape) int { return strings.Compare(a.Name, b.Name) })

	c := typespec.NewCompiler(d.Reg, typespec.Settings{
		Name:          d.Cfg.Types.Name,
		Version:       d.Cfg.Types.Version,
		IsSingleton:   d.Cfg.Types.IsSingleton,
		Configuration: d.Opts.Configuration,
	}, shapes...)
	// compile eagerly so unsupported shapes abort startup
	if _, err := c.Artifacts(); err != nil {
		return nil, err
	}
	return c, nil
}

func provideDispatcher(cfg config.Config, reg *handlers.Registry, c *typespec.Compiler, log *zap.Logger) *dispatch.Dispatcher {
	return dispatch.New(reg, c, log.Named("dispatch"), dispatch.WithCallTimeout(cfg.Host.CallTimeout()))
}

// ---- Server lifecycle ----

// server hides which transport was selected from the lifecycle hooks.
type server interface {
	Serve(net.Listener) error
	Shutdown(context.Context) error
}

type grpcServer struct{ s *grpc.Server }

func (g grpcServer) Serve(ln net.Listener) error { return g.s.Serve(ln) }

func (g grpcServer) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		g.s.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		g.s.Stop()
		return ctx.Err()
	}
}

type serverDeps struct {
	fx.In
	Cfg        config.Config
	Logger     *zap.Logger
	Dispatcher *dispatch.Dispatcher
	AuthMW     *auth.Middleware
	LogMW      *logger.Middleware
	Access     logger.AccessLog
	Metrics    http.Handler `name:"metrics"`
}

func provideServer(d serverDeps) server {
	if d.Cfg.Listen.Protocol == config.ProtocolHTTP {
		return &http.Server{
			Handler: httpx.Mount(httpx.NewChi(), httpx.Deps{
				Dispatcher: d.Dispatcher,
				Auth:       d.AuthMW,
				LogMW:      d.LogMW,
				Metrics:    d.Metrics,
				Log:        d.Logger,
			}),
			ReadHeaderTimeout: 15 * time.Second,
			IdleTimeout:       60 * time.Second,
		}
	}
	return grpcServer{s: grpcx.NewServer(d.Dispatcher, d.Access.Logger, d.AuthMW)}
}

// Endpoint is populated once the listener is bound.
type Endpoint struct{ listen.Endpoint }

func registerHooks(lc fx.Lifecycle, sd fx.Shutdowner, cfg config.Config, log *zap.Logger, srv server, ep *Endpoint) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ln, bound, err := listen.Open(cfg.Listen)
			if err != nil {
				return err
			}
			ep.Endpoint = bound
			log.Info("server starting",
				zap.String("service", cfg.Host.Service),
				zap.String("protocol", cfg.Listen.Protocol),
				zap.String("network", bound.Network),
				zap.String("addr", bound.Address),
			)
			go func() {
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("server failed", zap.Error(err))
					_ = sd.Shutdown(fx.ExitCode(1))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("server stopping", zap.String("service", cfg.Host.Service))
			if t := cfg.Host.ShutdownTimeout(); t > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, t)
				defer cancel()
			}
			err := srv.Shutdown(ctx)
			_ = log.Sync()
			return err
		},
	})
}

// ---- Public Fx module ----

func Module(opts Options) fx.Option {
	return fx.Options(
		fx.Supply(opts),
		fx.Provide(provideConfig),

		// auth, loggers, metrics
		bundlefx.Module,

		fx.Provide(provideRegistry, provideCompiler, provideDispatcher),
		fx.Provide(provideServer),
		fx.Provide(func() *Endpoint { return &Endpoint{} }),

		fx.Invoke(registerHooks),
	)
}
