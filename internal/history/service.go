package history

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"
)

// Service is the orchestration layer over the history engines. It is what
// the CLI and the HTTP API talk to.
type Service struct {
	store      Store
	authorizer Authorizer
	query      *QueryEngine
	diff       *DiffEngine
	purger     *Purger
	restorer   *Restorer
	recorder   *Recorder
	metrics    Metrics
	logger     Logger
	clock      Clock

	// flight keeps purge runs and restores of one name from overlapping.
	flight singleflight.Group
}

// ServiceDeps carries the collaborators of a Service. Archiver and Exclude
// are optional. Recorder, when set, replaces the one built from Store and
// Exclude; hosts that record their own changes share it with the Service.
type ServiceDeps struct {
	Store      Store
	Host       Host
	Authorizer Authorizer
	Archiver   Archiver
	Exclude    NameMatcher
	Recorder   *Recorder
	Metrics    Metrics
	Logger     Logger
	Clock      Clock
}

// NewService creates a Service with the provided dependencies.
func NewService(deps ServiceDeps) *Service {
	if deps.Metrics == nil {
		deps.Metrics = NopMetrics{}
	}
	if deps.Logger == nil {
		deps.Logger = NewNopLogger()
	}
	if deps.Clock == nil {
		deps.Clock = RealClock{}
	}
	if deps.Authorizer == nil {
		deps.Authorizer = AllowAll{}
	}
	if deps.Recorder == nil {
		deps.Recorder = NewRecorder(deps.Store, deps.Clock, deps.Exclude, deps.Metrics, deps.Logger)
	}

	return &Service{
		store:      deps.Store,
		authorizer: deps.Authorizer,
		query:      NewQueryEngine(deps.Store, deps.Logger),
		diff:       NewDiffEngine(deps.Store, deps.Logger),
		purger:     NewPurger(deps.Store, deps.Clock, deps.Archiver, deps.Logger),
		restorer:   NewRestorer(deps.Store, deps.Host, deps.Logger),
		recorder:   deps.Recorder,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
		clock:      deps.Clock,
	}
}

// Authorize evaluates subject's capabilities.
func (s *Service) Authorize(subject string) Authorization {
	return Authorize(s.authorizer, subject)
}

// Query returns the query engine.
func (s *Service) Query() *QueryEngine { return s.query }

// Diff returns the diff engine.
func (s *Service) Diff() *DiffEngine { return s.diff }

// Recorder returns the write path.
func (s *Service) Recorder() *Recorder { return s.recorder }

// Purge runs the purger. Concurrent calls with the same retention share a
// single run.
func (s *Service) Purge(maxAgeDays int) (*PurgeResult, error) {
	v, err, shared := s.flight.Do(fmt.Sprintf("purge:%d", maxAgeDays), func() (any, error) {
		start := s.clock.Now()
		result, err := s.purger.Run(maxAgeDays)
		if result != nil {
			s.metrics.PurgeCompleted(result, s.clock.Now().Sub(start))
		}
		return result, err
	})
	if shared {
		s.logger.Debug("joined running purge")
	}
	if v == nil {
		return nil, err
	}
	return v.(*PurgeResult), err
}

// Restore restores a deleted object. Concurrent restores of the same name
// share a single run.
func (s *Service) Restore(auth Authorization, deletedName string) (*RestoreResult, error) {
	if !auth.ConfigureJobs {
		return nil, fmt.Errorf("%w: %s may not restore jobs", ErrPermissionDenied, auth.Subject)
	}
	v, err, _ := s.flight.Do("restore:"+deletedName, func() (any, error) {
		return s.restorer.Restore(auth, deletedName)
	})
	s.metrics.RestoreCompleted(err)
	if err != nil {
		return nil, err
	}
	return v.(*RestoreResult), nil
}

// RunPurgeLoop purges every interval until ctx is done. maxAge is
// re-read before each run so configuration changes take effect.
func (s *Service) RunPurgeLoop(ctx context.Context, interval time.Duration, maxAge func() int) error {
	if interval <= 0 {
		return fmt.Errorf("purge interval must be positive, got %s", interval)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := s.Purge(maxAge()); err != nil {
				s.logger.Error("scheduled purge failed", "error", err)
			}
		}
	}
}
