// bundlefx/bundlefx.go
package bundlefx

import (
	"go.uber.org/fx"

	"github.com/joeydtaylor/steeze-exthost/pkg/middleware/auth"
	"github.com/joeydtaylor/steeze-exthost/pkg/middleware/logger"
	"github.com/joeydtaylor/steeze-exthost/pkg/middleware/metrics"
)

// Module provides the ambient middleware every transport shares. It expects a
// config.Config in the graph.
var Module = fx.Options(
	fx.Provide(auth.ProvideAuthentication),
	fx.Provide(logger.ProvideLogger),
	fx.Provide(logger.ProvideAccessLog),
	fx.Provide(logger.ProvideLoggerMiddleware),
	fx.Provide(fx.Annotate(metrics.ProvideMetrics, fx.ResultTags(`name:"metrics"`))),
)
