package services

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"apbn/internal/amqp"
	"apbn/internal/core"
	"apbn/internal/loader"
	"apbn/internal/log"
	"apbn/internal/storage"
)

// Load triggers recorded in the load log.
const (
	TriggerStartup = "startup"
	TriggerReload  = "reload"
	TriggerCLI     = "cli"
)

const sideEffectTimeout = 5 * time.Second

// LoadRecorder persists load runs. *storage.SQLiteRepository satisfies it.
type LoadRecorder interface {
	RecordRun(ctx context.Context, run storage.Run, files []storage.FileOutcome) error
}

// LoadNotifier announces completed loads. *amqp.Client satisfies it.
type LoadNotifier interface {
	PublishLoadCompleted(ctx context.Context, msg *amqp.LoadCompletedMessage) error
}

// Dataset is one immutable snapshot: the per-source results of a load run and
// either the validated unified table or the fatal error that stopped the run.
type Dataset struct {
	RunID    string
	Trigger  string
	Started  time.Time
	Finished time.Time
	Years    []string
	Results  []loader.Result
	Table    *core.Table
	Err      error
}

func (d *Dataset) OK() bool { return d != nil && d.Err == nil && d.Table != nil }

func (d *Dataset) Failures() []loader.Result { return loader.Failures(d.Results) }

func (d *Dataset) FilesOK() int { return len(d.Results) - len(d.Failures()) }

func (d *Dataset) TotalRows() int {
	if !d.OK() {
		return 0
	}
	return d.Table.Len()
}

// HasYear reports whether year is one of the configured year labels.
func (d *Dataset) HasYear(year string) bool {
	for _, y := range d.Years {
		if y == year {
			return true
		}
	}
	return false
}

type Option func(*DatasetService)

func WithRecorder(r LoadRecorder) Option { return func(s *DatasetService) { s.recorder = r } }

func WithNotifier(n LoadNotifier) Option { return func(s *DatasetService) { s.notifier = n } }

// OnSwap registers fn to run after a new snapshot is installed.
func OnSwap(fn func(*Dataset)) Option {
	return func(s *DatasetService) { s.onSwap = append(s.onSwap, fn) }
}

// DatasetService owns the current dataset snapshot. Readers never block on a
// load; a load builds a whole new snapshot and swaps the pointer.
type DatasetService struct {
	loader   *loader.Loader
	sources  []loader.Source
	recorder LoadRecorder
	notifier LoadNotifier
	onSwap   []func(*Dataset)
	logger   *log.Logger

	current atomic.Pointer[Dataset]
	group   singleflight.Group
	loads   atomic.Int64
}

func NewDatasetService(l *loader.Loader, sources []loader.Source, logger *log.Logger, opts ...Option) *DatasetService {
	s := &DatasetService{
		loader:  l,
		sources: append([]loader.Source(nil), sources...),
		logger:  logger.WithComponent(log.ComponentDataset),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Current returns the installed snapshot, or nil before the first load.
func (s *DatasetService) Current() *Dataset {
	return s.current.Load()
}

// Ready reports whether the installed snapshot holds a usable table.
func (s *DatasetService) Ready() bool {
	return s.Current().OK()
}

// Loads returns how many load runs completed.
func (s *DatasetService) Loads() int64 {
	return s.loads.Load()
}

// Load runs the pipeline once and installs the result.
func (s *DatasetService) Load(ctx context.Context, trigger string) *Dataset {
	ds := s.build(ctx, trigger)
	s.install(ds)
	s.afterLoad(ctx, ds)
	return ds
}

// Reload re-runs the pipeline. Concurrent callers share one run; shared is
// true for callers that joined a run already in flight.
func (s *DatasetService) Reload(ctx context.Context) (ds *Dataset, shared bool) {
	v, _, shared := s.group.Do("reload", func() (any, error) {
		return s.Load(context.WithoutCancel(ctx), TriggerReload), nil
	})
	return v.(*Dataset), shared
}

func (s *DatasetService) build(ctx context.Context, trigger string) *Dataset {
	ds := &Dataset{
		RunID:   uuid.NewString(),
		Trigger: trigger,
		Started: time.Now(),
		Years:   loader.Years(s.sources),
	}
	logger := s.logger.With(log.FieldRunID, ds.RunID)
	logger.InfoContext(ctx, "Loading dataset", log.FieldOperation, log.OpLoad, "trigger", trigger, "sources", len(s.sources))

	ds.Results = s.loader.Load(ctx, s.sources)

	merged, err := core.Merge(loader.Tables(ds.Results))
	if err != nil {
		ds.Err = fmt.Errorf("merge: %w", err)
	} else if err := core.ValidateColumns(merged); err != nil {
		ds.Err = fmt.Errorf("validate: %w", err)
	} else {
		ds.Table = merged
	}
	ds.Finished = time.Now()

	if ds.Err != nil {
		logger.ErrorContext(ctx, "Dataset load failed",
			log.FieldOperation, log.OpValidate,
			log.FieldError, ds.Err,
			log.FieldFilesOK, ds.FilesOK(),
			log.FieldFilesError, len(ds.Failures()))
	} else {
		logger.InfoContext(ctx, "Dataset loaded",
			log.FieldRows, ds.TotalRows(),
			log.FieldFilesOK, ds.FilesOK(),
			log.FieldFilesError, len(ds.Failures()),
			log.FieldDuration, ds.Finished.Sub(ds.Started).Milliseconds())
	}
	return ds
}

func (s *DatasetService) install(ds *Dataset) {
	s.current.Store(ds)
	s.loads.Add(1)
	for _, fn := range s.onSwap {
		fn(ds)
	}
}

// afterLoad records and announces the run. Failures here are logged only.
func (s *DatasetService) afterLoad(ctx context.Context, ds *Dataset) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sideEffectTimeout)
	defer cancel()

	if s.recorder != nil {
		run, files := RunRecord(ds)
		if err := s.recorder.RecordRun(ctx, run, files); err != nil {
			s.logger.ErrorContext(ctx, "Failed to record load run",
				log.FieldOperation, log.OpRecord, log.FieldRunID, ds.RunID, log.FieldError, err)
		}
	}
	if s.notifier != nil {
		if err := s.notifier.PublishLoadCompleted(ctx, LoadMessage(ds)); err != nil {
			s.logger.WarnContext(ctx, "Failed to publish load notification",
				log.FieldOperation, log.OpPublish, log.FieldRunID, ds.RunID, log.FieldError, err)
		}
	}
}

// RunRecord converts a dataset into its load log rows.
func RunRecord(ds *Dataset) (storage.Run, []storage.FileOutcome) {
	run := storage.Run{
		ID:          ds.RunID,
		StartedAt:   ds.Started,
		FinishedAt:  ds.Finished,
		Trigger:     ds.Trigger,
		FilesOK:     ds.FilesOK(),
		FilesFailed: len(ds.Failures()),
		TotalRows:   ds.TotalRows(),
	}
	if ds.Err != nil {
		run.FatalError = ds.Err.Error()
	}
	files := make([]storage.FileOutcome, len(ds.Results))
	for i, r := range ds.Results {
		files[i] = storage.FileOutcome{
			Position: i,
			Year:     r.Year,
			Source:   r.Location,
			Rows:     r.Rows(),
			Duration: r.Duration,
		}
		if r.Err != nil {
			files[i].Error = r.Err.Error()
		}
	}
	return run, files
}

// LoadMessage converts a dataset into its load.completed notification.
func LoadMessage(ds *Dataset) *amqp.LoadCompletedMessage {
	run, files := RunRecord(ds)
	msg := &amqp.LoadCompletedMessage{
		RunID:       run.ID,
		Trigger:     run.Trigger,
		StartedAt:   run.StartedAt,
		FinishedAt:  run.FinishedAt,
		FilesOK:     run.FilesOK,
		FilesFailed: run.FilesFailed,
		TotalRows:   run.TotalRows,
		FatalError:  run.FatalError,
		Timestamp:   time.Now(),
	}
	for _, f := range files {
		msg.Files = append(msg.Files, amqp.FileStatus{Year: f.Year, Source: f.Source, Rows: f.Rows, Error: f.Error})
	}
	return msg
}
