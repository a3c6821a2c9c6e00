package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/vk/gridmapper/internal/ctxlog"
	"github.com/vk/gridmapper/internal/hclconfig"
	"github.com/vk/gridmapper/internal/mapping"
	"github.com/vk/gridmapper/internal/metrics"
	"github.com/vk/gridmapper/internal/observe"
	"github.com/vk/gridmapper/internal/place"
	"github.com/vk/gridmapper/internal/progress"
	"github.com/vk/gridmapper/internal/route"
)

// App encapsulates the application's dependencies, configuration, and
// lifecycle.
type App struct {
	outW    io.Writer
	errW    io.Writer
	logger  *slog.Logger
	config  *Config
	metrics *metrics.Recorder

	registry   *prometheus.Registry
	httpServer *http.Server
	healthAddr string
}

// NewApp is the constructor for the main application. Logs and the routing
// summary go to errW; the JSON report goes to outW unless Config.OutputPath
// is set.
func NewApp(outW, errW io.Writer, cfg *Config) *App {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, errW)
	logger.Debug("Logger configured successfully.")

	reg := prometheus.NewRegistry()
	return &App{
		outW:     outW,
		errW:     errW,
		logger:   logger,
		config:   cfg,
		metrics:  metrics.NewRecorder(reg),
		registry: reg,
	}
}

// Report is the JSON document a run writes.
type Report struct {
	mapping.Report
	Annealing *place.SAState `json:"annealing,omitempty"`
	Routing   *route.Result  `json:"routing,omitempty"`
}

// Check loads and validates the inputs without running the engines.
func (a *App) Check(ctx context.Context) (*hclconfig.Problem, error) {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	p, err := hclconfig.Load(ctx, a.config.Paths...)
	if err != nil {
		return nil, err
	}
	if _, err := a.placeConfig(p); err != nil {
		return nil, err
	}
	if err := a.routeConfig(p).Validate(); err != nil {
		return nil, err
	}
	// Building the placement problem runs the capacity checks.
	if _, err := place.NewProblem(p.Tasks, p.Arch); err != nil {
		return nil, err
	}
	a.logger.Info("Inputs are valid.",
		"files", len(p.Files),
		"resources", p.Arch.NumResources(),
		"tasks", p.Tasks.NumTasks(),
		"channels", p.Tasks.NumChannels(),
	)
	return p, nil
}

// Run loads the inputs, places, routes and writes the report. A routing
// failure still writes the report before its error is returned.
func (a *App) Run(ctx context.Context) (err error) {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	if a.config.HealthcheckPort > 0 {
		if err := a.startHealthcheckServer(ctx, fmt.Sprintf(":%d", a.config.HealthcheckPort)); err != nil {
			return err
		}
		defer func() { err = errors.Join(err, a.closeHealthcheckServer(ctx)) }()
	}

	p, err := hclconfig.Load(ctx, a.config.Paths...)
	if err != nil {
		return err
	}
	m := mapping.New(p.Tasks, p.Arch)
	a.logger.Info("Inputs loaded.", "run_id", m.Metadata.RunID, "files", len(p.Files))

	observers := observe.Multi{observe.LogObserver{}, a.metrics}
	if a.config.ProgressURL != "" {
		pub, err := progress.Dial(ctx, progress.Options{
			URL:       a.config.ProgressURL,
			Namespace: a.config.ProgressNamespace,
			RunID:     m.Metadata.RunID,
		})
		if err != nil {
			a.logger.Warn("Progress publisher unavailable, continuing without it.", "error", err)
		} else {
			defer pub.Close()
			observers = append(observers, pub)
			defer func() { pub.Done(m.Metadata) }()
		}
	}

	pcfg, err := a.placeConfig(p)
	if err != nil {
		return err
	}
	pcfg.Observer = observers
	if a.config.ResumePath != "" {
		state, err := loadState(a.config.ResumePath, m)
		if err != nil {
			return err
		}
		pcfg.Resume = state
		a.logger.Info("Resuming placement.", "path", a.config.ResumePath, "ticks", state.Ticks)
	}

	state, err := place.Place(ctx, m, pcfg)
	if err != nil {
		return fmt.Errorf("placement failed: %w", err)
	}
	if a.config.SaveStatePath != "" {
		if err := saveState(a.config.SaveStatePath, m, state); err != nil {
			return err
		}
		a.logger.Info("Annealing state saved.", "path", a.config.SaveStatePath)
	}

	rcfg := a.routeConfig(p)
	rcfg.Observer = observers
	res, routeErr := route.Route(ctx, m, rcfg)
	if res != nil && len(res.Checks) > 0 {
		fmt.Fprint(a.errW, res.Summary())
	}
	a.metrics.RecordMap(m)

	if err := a.writeReport(Report{Report: m.Report(), Annealing: state, Routing: res}); err != nil {
		return errors.Join(routeErr, err)
	}
	a.logger.Debug("App.Run method finished.")
	return routeErr
}

// placeConfig merges the HCL placement block with command-line overrides.
func (a *App) placeConfig(p *hclconfig.Problem) (place.Config, error) {
	opts, err := p.Placement.Options()
	if err != nil {
		return place.Config{}, err
	}
	c := a.config
	if c.Seed != nil {
		opts = append(opts, place.WithSeed(*c.Seed))
	}
	if c.MoveAttempts != nil {
		opts = append(opts, place.WithMoveAttempts(*c.MoveAttempts))
	}
	if c.InitialTemperature != nil {
		opts = append(opts, place.WithInitialTemperature(*c.InitialTemperature))
	}
	cfg := place.NewConfig(opts...)
	if c.ResumePath != "" && cfg.Seed != nil {
		a.logger.Warn("Ignoring placement seed while resuming.", "seed", *cfg.Seed)
		cfg.Seed = nil
	}
	return cfg, nil
}

// routeConfig merges the HCL routing block with command-line overrides.
func (a *App) routeConfig(p *hclconfig.Problem) route.Config {
	opts := p.Routing.Options()
	c := a.config
	if c.MaxIterations != nil {
		opts = append(opts, route.WithMaxIterations(*c.MaxIterations))
	}
	if c.Batched != nil {
		if *c.Batched {
			opts = append(opts, route.WithBatched(0))
		} else {
			opts = append(opts, func(rc *route.Config) { rc.Batched = false })
		}
	}
	return route.NewConfig(opts...)
}

func (a *App) writeReport(r Report) error {
	w := a.outW
	if a.config.OutputPath != "" {
		f, err := os.Create(a.config.OutputPath)
		if err != nil {
			return fmt.Errorf("creating report: %w", err)
		}
		defer f.Close()
		w = f
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	return nil
}
