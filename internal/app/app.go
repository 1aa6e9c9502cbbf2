// Package app wires configuration, components and the two run stages
// together.
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"go.uber.org/zap"

	"ragbench/internal/config"
	"ragbench/internal/logging"
	"ragbench/internal/metrics"
	"ragbench/internal/publish"
	"ragbench/internal/ratelimit"
	"ragbench/internal/registry"
	"ragbench/internal/report"
	"ragbench/internal/service"
)

// Artifact file names inside a run directory.
const (
	ConfigFile  = "config.yaml"
	MetricsFile = "metrics.prom"
)

// Stage selects how much of a run to execute.
type Stage int

const (
	// StageAll embeds and then chats unless embed_only is set.
	StageAll Stage = iota
	// StageEmbed only embeds.
	StageEmbed
)

// App runs experiments. The zero value is not usable; call New.
type App struct {
	Registry *registry.Registry
	Limiters *ratelimit.Set
	// Cwd anchors relative paths in the configuration.
	Cwd string
	Now func() time.Time
}

// New returns an App with the builtin components registered.
func New() (*App, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	return &App{Registry: Builtins(), Limiters: ratelimit.NewSet(), Cwd: cwd, Now: time.Now}, nil
}

// RunDir returns root/<date>/<time> for t.
func RunDir(root string, t time.Time) string {
	return filepath.Join(root, t.Format("2006-01-02"), t.Format("15-04-05"))
}

// MultirunDir returns multirun/<date>/<time>/<n> for job n of a sweep.
func MultirunDir(t time.Time, n int) string {
	return filepath.Join("multirun", t.Format("2006-01-02"), t.Format("15-04-05"), strconv.Itoa(n))
}

// Result summarizes a finished run.
type Result struct {
	RunDir   string
	Embedded int
	Turns    int
	Report   string
}

func (a *App) abs(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(a.Cwd, p)
}

// Env returns the registry environment for cfg.
func (a *App) Env(cfg *config.AppConfig, logger *zap.Logger) registry.Env {
	return registry.Env{Logger: logger, Location: cfg.VectorDBLocation(a.Cwd), DataDir: cfg.DataDir(a.Cwd)}
}

// Run executes one experiment in runDir (relative to Cwd unless absolute).
func (a *App) Run(ctx context.Context, composed *config.Composed, runDir string, stage Stage) (*Result, error) {
	cfg := composed.Config
	dir := a.abs(runDir)
	logger, closeLog, err := logging.New(cfg.Logging, dir)
	if err != nil {
		return nil, err
	}
	defer closeLog()

	if err := config.Save(filepath.Join(dir, ConfigFile), cfg); err != nil {
		return nil, fmt.Errorf("save config: %w", err)
	}
	logger.Info("run started", zap.String("run_dir", dir), zap.Any("choices", composed.Choices), zap.Strings("overrides", composed.Overrides))

	res := &Result{RunDir: dir}
	m := metrics.New(cfg.LLM.Type, cfg.Embedding.Embedding.Type)
	env := a.Env(cfg, logger)

	ingest, err := BuildIngest(ctx, a.Registry, cfg, env)
	if err != nil {
		return nil, err
	}
	defer ingest.Close() //nolint:errcheck

	ingestor := &service.Ingestor{
		Loaders:   ingest.Loaders,
		Splitter:  ingest.Splitter,
		Embedder:  ingest.Embedder,
		Store:     ingest.Store,
		Location:  env.Location,
		BatchSize: cfg.Embedding.Embedding.RateLimitChunks,
		Delay:     cfg.Embedding.Embedding.Delay(),
		Logger:    logger,
		Metrics:   m,
	}
	src := a.abs(cfg.SourceDocumentFolder)
	if res.Embedded, err = ingestor.Embed(ctx, src, cfg.WriteMode(logger)); err != nil {
		return nil, err
	}

	if stage == StageAll && !cfg.EmbedOnly {
		res.Report = cfg.OutputFile(dir)
		chat, err := a.chat(cfg, ingest, logger, m, report.New(res.Report, composed.YAML))
		if err != nil {
			return nil, err
		}
		if err := chat.Run(ctx, cfg.Question.Questions); err != nil {
			return nil, err
		}
		res.Turns = len(chat.History())
	}

	metricsPath := filepath.Join(dir, MetricsFile)
	if err := m.WriteFile(metricsPath); err != nil {
		logger.Warn("could not write metrics", zap.Error(err))
	}
	a.publish(ctx, cfg, dir, []string{res.Report, filepath.Join(dir, ConfigFile), metricsPath, filepath.Join(dir, cfg.Logging.File)}, logger)

	logger.Info("Source documents loaded from: " + src)
	logger.Info("Vector store located at: " + env.Location)
	if res.Report != "" {
		logger.Info("Chat results captured in: " + res.Report)
	}
	logger.Info("Run artifacts in: " + dir)
	return res, nil
}

// OpenChat builds a chat over the existing vector store without embedding.
// The report, if reportPath is set, gets the composed settings.
func (a *App) OpenChat(ctx context.Context, composed *config.Composed, reportPath string, logger *zap.Logger) (*service.Chat, func() error, error) {
	cfg := composed.Config
	ingest, err := BuildIngest(ctx, a.Registry, cfg, a.Env(cfg, logger))
	if err != nil {
		return nil, nil, err
	}
	var w *report.Writer
	if reportPath != "" {
		w = report.New(reportPath, composed.YAML)
	}
	chat, err := a.chat(cfg, ingest, logger, nil, w)
	if err != nil {
		ingest.Close() //nolint:errcheck
		return nil, nil, err
	}
	return chat, ingest.Close, nil
}

func (a *App) chat(cfg *config.AppConfig, ingest *Ingest, logger *zap.Logger, m *metrics.Run, w *report.Writer) (*service.Chat, error) {
	model, err := a.Registry.LLMs.Resolve(cfg.LLM.Type, cfg.LLM.Args, a.Env(cfg, logger))
	if err != nil {
		return nil, err
	}
	opts := service.ChatOptions{
		Embedder: ingest.Embedder,
		Store:    ingest.Store,
		LLM:      model,
		TopK:     cfg.Retriever.TopK,
		Logger:   logger,
		Metrics:  m,
		Report:   w,
	}
	if name, rl, ok := cfg.LLMRateLimiter(logger); ok {
		opts.Limiter = a.Limiters.Get(name, rl)
	}
	return service.NewChat(opts), nil
}

func (a *App) publish(ctx context.Context, cfg *config.AppConfig, dir string, files []string, logger *zap.Logger) {
	s3cfg := cfg.Publish.S3
	if s3cfg == nil || s3cfg.Bucket == "" {
		return
	}
	rel, err := filepath.Rel(a.Cwd, dir)
	if err != nil {
		rel = filepath.Base(dir)
	}
	p, err := publish.NewS3(ctx, *s3cfg, logger)
	if err != nil {
		logger.Warn("run artifacts not published", zap.Error(err))
		return
	}
	var existing []string
	for _, f := range files {
		if f != "" {
			existing = append(existing, f)
		}
	}
	n, err := p.Upload(ctx, rel, existing)
	if err != nil {
		logger.Warn("run artifacts not published", zap.Error(err))
		return
	}
	logger.Info("run artifacts published", zap.Int("files", n), zap.String("bucket", s3cfg.Bucket), zap.String("prefix", p.Key(rel, "")))
}
