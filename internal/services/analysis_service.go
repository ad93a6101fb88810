package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"

	"ferroci/internal/config"
	"ferroci/internal/dataprocessing"
	apierrors "ferroci/internal/errors"
	"ferroci/internal/exporter"
	"ferroci/internal/files"
	"ferroci/internal/infrastructure"
	"ferroci/internal/metrics"
	"ferroci/internal/plot"
	"ferroci/pkg/contracts/domain"
	"ferroci/pkg/contracts/events"
)

const tracerName = "ferroci.services"

// Notifier receives everything the GUI shows while a drop is processed.
// The WebSocket hub implements it.
type Notifier interface {
	dataprocessing.Reporter
	Broadcast(msgType events.MessageType, data interface{}, traceID string)
	BroadcastResults(ctx context.Context, update events.ResultsUpdated)
}

type nopNotifier struct{}

func (nopNotifier) Report(context.Context, events.StatusEntry)              {}
func (nopNotifier) Broadcast(events.MessageType, interface{}, string)       {}
func (nopNotifier) BroadcastResults(context.Context, events.ResultsUpdated) {}

// UploadedFile is one file of a browser upload
type UploadedFile struct {
	Name    string
	Content io.Reader
}

// session binds a processor to its working directory
type session struct {
	processor *dataprocessing.Processor
	files     *files.Manager
	store     *exporter.Store
}

// AnalysisService owns one processor per working directory and lets a single
// drop run at a time. Drops that arrive while another is running are
// rejected, not queued.
type AnalysisService struct {
	cfg      config.AnalysisConfig
	registry *metrics.Registry
	layout   files.Layout
	renderer *plot.Renderer
	notifier Notifier
	metrics  *infrastructure.AnalysisMetrics
	tracer   trace.Tracer
	logger   *slog.Logger

	gate *semaphore.Weighted

	mu       sync.Mutex
	sessions map[string]*session
}

// NewAnalysisService creates the service. notifier and m may be nil.
func NewAnalysisService(cfg config.AnalysisConfig, registry *metrics.Registry, notifier Notifier, m *infrastructure.AnalysisMetrics, logger *slog.Logger) *AnalysisService {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	if notifier == nil {
		notifier = nopNotifier{}
	}

	logger = logger.With(slog.String("service", "analysis"))
	logger.Info("AnalysisService initialized",
		slog.Any("metrics", registry.Names()),
		slog.String("alignment", cfg.Alignment),
		slog.Bool("save_plot", cfg.SavePlot))

	return &AnalysisService{
		cfg:      cfg,
		registry: registry,
		layout:   files.LayoutFrom(cfg),
		renderer: plot.NewRenderer(),
		notifier: notifier,
		metrics:  m,
		tracer:   otel.Tracer(tracerName),
		logger:   logger,
		gate:     semaphore.NewWeighted(1),
		sessions: make(map[string]*session),
	}
}

// Busy reports whether a drop is being processed
func (s *AnalysisService) Busy() bool {
	if s.gate.TryAcquire(1) {
		s.gate.Release(1)
		return false
	}
	return true
}

// Metrics lists the registered metrics in column order
func (s *AnalysisService) Metrics() []domain.MetricInfo {
	return s.registry.Infos()
}

// Drop processes a drop event. Paths are grouped by working directory, in
// the order their directory first appears, and each group is handled as one
// batch by that directory's processor.
func (s *AnalysisService) Drop(ctx context.Context, paths []string) (*domain.DropReport, error) {
	if len(paths) == 0 {
		return nil, ErrNoPaths
	}
	if !s.gate.TryAcquire(1) {
		return nil, apierrors.ErrBusy
	}
	defer s.gate.Release(1)

	return s.drop(ctx, paths)
}

func (s *AnalysisService) drop(ctx context.Context, paths []string) (*domain.DropReport, error) {
	ctx = infrastructure.EnsureTraceID(ctx)
	traceID := infrastructure.GetTraceID(ctx)

	ctx, span := s.tracer.Start(ctx, "analysis.drop",
		trace.WithAttributes(
			attribute.String("trace_id", traceID),
			attribute.Int("files", len(paths)),
		))
	defer span.End()

	report := &domain.DropReport{
		ID:        traceID,
		StartedAt: time.Now().UTC(),
	}

	s.logger.InfoContext(ctx, "drop received", slog.Int("files", len(paths)))
	s.notifier.Broadcast(events.MessageTypeDropStarted, map[string]interface{}{
		"id":    traceID,
		"files": len(paths),
	}, traceID)

	groups, order, err := groupByDir(paths)
	if err != nil {
		infrastructure.RecordError(ctx, err)
		return nil, err
	}

	var dropErr error
	for _, dir := range order {
		outcomes, info, err := s.processDir(ctx, dir, groups[dir])
		report.Outcomes = append(report.Outcomes, outcomes...)
		if info != nil {
			report.Sessions = append(report.Sessions, *info)
		}
		if err != nil {
			dropErr = err
			break
		}
	}

	report.FinishedAt = time.Now().UTC()
	elapsed := report.FinishedAt.Sub(report.StartedAt)
	s.metrics.RecordDrop(ctx, elapsed, len(paths))

	span.SetAttributes(
		attribute.Int("processed", report.Count(domain.OutcomeProcessed)),
		attribute.Int("failed", report.Count(domain.OutcomeFailed)),
	)
	s.notifier.Broadcast(events.MessageTypeDropFinished, report, traceID)

	if dropErr != nil {
		infrastructure.RecordError(ctx, dropErr)
		s.logger.ErrorContext(ctx, "drop aborted",
			slog.String("error", dropErr.Error()),
			slog.Int("outcomes", len(report.Outcomes)))
		return report, dropErr
	}

	s.logger.InfoContext(ctx, "drop finished",
		slog.Int("reference", report.Count(domain.OutcomeReference)),
		slog.Int("processed", report.Count(domain.OutcomeProcessed)),
		slog.Int("skipped", report.Count(domain.OutcomeSkipped)),
		slog.Int("failed", report.Count(domain.OutcomeFailed)),
		slog.Duration("duration", elapsed))
	return report, nil
}

// processDir runs one batch through the processor of dir, then refreshes the
// plot and tells the GUI to reload.
func (s *AnalysisService) processDir(ctx context.Context, dir string, paths []string) ([]domain.FileOutcome, *domain.SessionInfo, error) {
	ctx, span := s.tracer.Start(ctx, "analysis.batch",
		trace.WithAttributes(
			attribute.String("dir", dir),
			attribute.Int("files", len(paths)),
		))
	defer span.End()

	sess, err := s.session(ctx, dir)
	if err != nil {
		return nil, nil, err
	}

	outcomes, batchErr := sess.processor.HandleBatch(ctx, paths)
	changed := false
	for _, o := range outcomes {
		s.metrics.RecordFile(ctx, string(o.Kind))
		switch o.Kind {
		case domain.OutcomeFailed:
			s.metrics.RecordFailure(ctx)
		case domain.OutcomeProcessed:
			for _, mv := range o.Row.Metrics {
				s.metrics.RecordMetricValue(ctx, mv.Name, mv.Value)
			}
			changed = true
		case domain.OutcomeReference:
			changed = true
		}
	}

	if changed && s.cfg.SavePlot {
		s.savePlot(ctx, sess)
	}

	info := sess.processor.Session()
	s.notifier.BroadcastResults(ctx, events.ResultsUpdated{
		Directory: dir,
		RowCount:  info.RowCount,
		State:     string(info.State),
	})

	if batchErr != nil {
		infrastructure.RecordError(ctx, batchErr)
	}
	return outcomes, &info, batchErr
}

// savePlot refreshes plot.png. A plot that cannot be written is reported as
// a warning; the results files are already safe at this point.
func (s *AnalysisService) savePlot(ctx context.Context, sess *session) {
	ref := sess.processor.Reference()
	if ref == nil {
		return
	}
	path := sess.files.PlotPath()
	if err := s.renderer.SaveFile(path, ref, sess.processor.Samples()); err != nil {
		infrastructure.WithError(s.logger, err).WarnContext(ctx, "plot not saved",
			slog.String("path", path))
		s.notifier.Report(ctx, events.StatusEntry{
			Level:     events.LevelWarning,
			Message:   fmt.Sprintf("Plot not saved: %v", err),
			File:      filepath.Base(path),
			Directory: sess.files.Dir(),
		})
		return
	}
	s.logger.DebugContext(ctx, "plot saved", slog.String("path", path))
}

// Upload saves browser-uploaded files into dir and processes them as a drop
func (s *AnalysisService) Upload(ctx context.Context, dir string, uploads []UploadedFile) (*domain.DropReport, error) {
	if len(uploads) == 0 {
		return nil, ErrNoPaths
	}
	if err := checkDir(dir); err != nil {
		return nil, err
	}
	if !s.gate.TryAcquire(1) {
		return nil, apierrors.ErrBusy
	}
	defer s.gate.Release(1)

	dir = filepath.Clean(dir)
	fm := files.NewManager(dir, s.layout, s.logger)

	// Every name is checked before anything is written, so a rejected
	// upload leaves the folder untouched.
	names := make([]string, len(uploads))
	for i, up := range uploads {
		name := filepath.Base(up.Name)
		if !files.IsCSV(name) {
			return nil, fmt.Errorf("%s: %w", name, ErrInvalidFileType)
		}
		if fm.IsOutputFile(name) {
			return nil, fmt.Errorf("%s: %w", name, ErrReservedName)
		}
		names[i] = name
	}

	paths := make([]string, 0, len(uploads))
	for i, up := range uploads {
		name := names[i]
		content := up.Content
		if err := files.WriteAtomicFunc(fm.Path(name), func(w io.Writer) error {
			_, err := io.Copy(w, content)
			return err
		}); err != nil {
			return nil, apierrors.NewPersistenceError("save upload", fm.Path(name), err)
		}
		s.logger.InfoContext(ctx, "upload saved", slog.String("file", name), slog.String("dir", dir))
		paths = append(paths, fm.Path(name))
	}

	return s.drop(ctx, paths)
}

// Session returns the state of a working directory, opening it when the
// service has not seen it yet
func (s *AnalysisService) Session(ctx context.Context, dir string) (domain.SessionInfo, error) {
	sess, err := s.lookup(ctx, dir)
	if err != nil {
		return domain.SessionInfo{}, err
	}
	return sess.processor.Session(), nil
}

// Sessions lists the working directories opened so far, sorted by path
func (s *AnalysisService) Sessions() []domain.SessionInfo {
	s.mu.Lock()
	list := make([]*session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		list = append(list, sess)
	}
	s.mu.Unlock()

	infos := make([]domain.SessionInfo, len(list))
	for i, sess := range list {
		infos[i] = sess.processor.Session()
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Directory < infos[j].Directory })
	return infos
}

// Results returns the results table of a working directory as stored on disk
func (s *AnalysisService) Results(ctx context.Context, dir string) (domain.ResultsView, error) {
	sess, err := s.lookup(ctx, dir)
	if err != nil {
		return domain.ResultsView{}, err
	}
	table, err := sess.store.Load()
	if err != nil {
		return domain.ResultsView{}, err
	}
	return table.View(sess.files.Dir()), nil
}

// Plot renders the reference and test curves of a working directory.
// plot.ErrNothingToPlot is returned before a reference is set.
func (s *AnalysisService) Plot(ctx context.Context, dir string, format plot.Format, w io.Writer) error {
	sess, err := s.lookup(ctx, dir)
	if err != nil {
		return err
	}

	_, span := s.tracer.Start(ctx, "analysis.plot",
		trace.WithAttributes(attribute.String("dir", dir), attribute.String("format", string(format))))
	defer span.End()

	return s.renderer.Render(w, format, sess.processor.Reference(), sess.processor.Samples())
}

// lookup validates dir and returns its session
func (s *AnalysisService) lookup(ctx context.Context, dir string) (*session, error) {
	if err := checkDir(dir); err != nil {
		return nil, err
	}
	return s.session(ctx, filepath.Clean(dir))
}

// session returns the cached session of dir, restoring it from disk on first
// use
func (s *AnalysisService) session(ctx context.Context, dir string) (*session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[dir]; ok {
		return sess, nil
	}

	fm := files.NewManager(dir, s.layout, s.logger)
	store := exporter.NewStore(fm.CSVPath(), fm.XLSXPath(), s.logger)
	proc := dataprocessing.NewProcessor(dir, s.registry, store, fm, dataprocessing.OptionsFrom(s.cfg), s.logger)
	proc.SetReporter(s.notifier)

	if err := proc.Restore(ctx); err != nil {
		return nil, err
	}

	sess := &session{processor: proc, files: fm, store: store}
	s.sessions[dir] = sess

	s.logger.InfoContext(ctx, "session opened",
		slog.String("dir", dir),
		slog.String("state", string(proc.State())))
	return sess, nil
}

// groupByDir buckets paths by working directory, keeping drop order inside
// each bucket
func groupByDir(paths []string) (map[string][]string, []string, error) {
	groups := make(map[string][]string)
	var order []string
	for _, p := range paths {
		dir, err := files.ResolveWorkingDir(p)
		if err != nil {
			return nil, nil, err
		}
		if _, ok := groups[dir]; !ok {
			order = append(order, dir)
		}
		groups[dir] = append(groups[dir], p)
	}
	return groups, order, nil
}

func checkDir(dir string) error {
	if dir == "" {
		return apierrors.ErrValidation("dir", "directory is required")
	}
	if !filepath.IsAbs(dir) {
		return apierrors.ErrValidation("dir", ErrNotAbsolutePath.Error())
	}
	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return apierrors.NotFoundError("directory")
		}
		return err
	}
	if !info.IsDir() {
		return apierrors.ErrValidation("dir", ErrNotADirectory.Error())
	}
	return nil
}
