package patient

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/clinic/registry/internal/platform/metrics"
)

// Service is the write path of the registry: every create and update goes
// through the engine before it reaches the store.
type Service struct {
	repo    Repository
	engine  *Engine
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

type ServiceOption func(*Service)

func WithLogger(l zerolog.Logger) ServiceOption {
	return func(s *Service) { s.logger = l }
}

func WithMetrics(m *metrics.Metrics) ServiceOption {
	return func(s *Service) { s.metrics = m }
}

func NewService(repo Repository, engine *Engine, opts ...ServiceOption) *Service {
	s := &Service{repo: repo, engine: engine, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Validate runs the engine without touching the store.
func (s *Service) Validate(in Input) *Result {
	r := s.engine.Validate(in)
	s.observeIssues(r)
	return r
}

func (s *Service) ListPatients(ctx context.Context) ([]*Patient, error) {
	patients, err := s.repo.List(ctx)
	s.observe("list", err)
	return patients, err
}

func (s *Service) GetPatient(ctx context.Context, hn HN) (*Patient, error) {
	p, err := s.repo.Get(ctx, hn)
	s.observe("get", err)
	return p, err
}

// CreatePatient validates in and stores the normalized record. The Result is
// returned on success too so callers can surface advisories.
func (s *Service) CreatePatient(ctx context.Context, in Input) (*Patient, *Result, error) {
	r := s.Validate(in)
	if err := r.Err(); err != nil {
		s.logger.Debug().Int("issues", len(r.Rejections())).Msg("patient create rejected")
		s.observe("create", err)
		return nil, r, err
	}

	p, err := s.repo.Create(ctx, &r.Patient)
	s.observe("create", err)
	if err != nil {
		return nil, r, err
	}
	if s.metrics != nil {
		s.metrics.Patients.Inc()
	}
	s.logger.Info().Str("hn", p.HN.String()).Int("advisories", len(r.Advisories())).Msg("patient created")
	return p, r, nil
}

// UpdatePatient validates in and replaces the mutable fields of hn. An
// omitted hn in the body means "the one in the path"; a different one is
// rejected because hospital numbers are immutable.
func (s *Service) UpdatePatient(ctx context.Context, hn HN, in Input) (*Patient, *Result, error) {
	if in.HN == "" {
		in.HN = hn.String()
	}
	r := s.Validate(in)
	if r.FieldStatus(FieldHN) == StatusAccepted && r.Patient.HN != hn {
		r.reject(FieldHN, CodeHNImmutable, "hospital number cannot be changed")
	}
	if err := r.Err(); err != nil {
		s.logger.Debug().Str("hn", hn.String()).Int("issues", len(r.Rejections())).Msg("patient update rejected")
		s.observe("update", err)
		return nil, r, err
	}

	p, err := s.repo.Update(ctx, hn, &r.Patient)
	s.observe("update", err)
	if err != nil {
		return nil, r, err
	}
	s.logger.Info().Str("hn", p.HN.String()).Msg("patient updated")
	return p, r, nil
}

func (s *Service) DeletePatient(ctx context.Context, hn HN) error {
	err := s.repo.Delete(ctx, hn)
	s.observe("delete", err)
	if err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.Patients.Dec()
	}
	s.logger.Info().Str("hn", hn.String()).Msg("patient deleted")
	return nil
}

// SyncRecordGauge sets the live-record gauge from the store. Needed once at
// startup when the store is durable and already holds records.
func (s *Service) SyncRecordGauge(ctx context.Context) error {
	if s.metrics == nil {
		return nil
	}
	patients, err := s.repo.List(ctx)
	if err != nil {
		return err
	}
	s.metrics.Patients.Set(float64(len(patients)))
	return nil
}

func (s *Service) observe(op string, err error) {
	if s.metrics == nil {
		return
	}
	s.metrics.ObserveOperation(op, outcome(err))
}

func (s *Service) observeIssues(r *Result) {
	if s.metrics == nil {
		return
	}
	for _, is := range r.Issues {
		s.metrics.ObserveIssue(is.Field, is.Code, string(is.Status))
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrValidationFailed), errors.Is(err, ErrInvalidFormat):
		return "invalid"
	case errors.Is(err, ErrAlreadyExists):
		return "conflict"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	}
	return "error"
}
