package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"vendemos/internal/listing/metrics"
	"vendemos/internal/listing/models"
	id "vendemos/pkg/domain"
	dErrors "vendemos/pkg/domain-errors"
	"vendemos/pkg/platform/sentinel"
	"vendemos/pkg/requestcontext"
)

// ListingStore is the entity store holding each listing's current status.
type ListingStore interface {
	Create(ctx context.Context, listing *models.Listing) error
	FindByID(ctx context.Context, listingID id.ListingID) (*models.Listing, error)
	UpdateStatus(ctx context.Context, listingID id.ListingID, status models.Status, now time.Time) error
	CompareAndSetStatus(ctx context.Context, listingID id.ListingID, from, to models.Status, now time.Time) error
}

// HistoryStore is the append-only audit trail of status transitions.
type HistoryStore interface {
	Append(ctx context.Context, record *models.TransitionRecord) error
	ListByListing(ctx context.Context, listingID id.ListingID) ([]*models.TransitionRecord, error)
}

const tracerName = "vendemos/internal/listing/service"

// Audit event names.
const (
	EventListingCreated        = "listing_created"
	EventCreationRegistered    = "listing_creation_registered"
	EventStatusChanged         = "listing_status_changed"
	EventTransitionRejected    = "listing_transition_rejected"
	EventAuditWriteFailed      = "listing_audit_write_failed"
	EventStatusWriteConflicted = "listing_status_write_conflicted"
	EventActorForbidden        = "listing_actor_forbidden"
)

// Service is the only component that mutates listing status. It consults the
// status policy, performs the authoritative write, then appends to the audit
// trail on a best-effort basis.
type Service struct {
	listings       ListingStore
	history        HistoryStore
	logger         *slog.Logger
	metrics        *metrics.Metrics
	tracer         trace.Tracer
	compareAndSwap bool
	ownerOnly      bool
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

// WithCompareAndSwap makes status writes conditional on the status read in
// the same call. A concurrent change surfaces as CodeConflict.
func WithCompareAndSwap() Option {
	return func(s *Service) {
		s.compareAndSwap = true
	}
}

// WithOwnerAuthorization restricts status changes and creation events to
// the listing's owner. Every command then needs an actor; a creation event
// for a listing that is not stored yet is accepted from any actor.
func WithOwnerAuthorization() Option {
	return func(s *Service) {
		s.ownerOnly = true
	}
}

// New constructs a Service. Writes default to last-writer-wins.
func New(listings ListingStore, history HistoryStore, opts ...Option) *Service {
	s := &Service{
		listings: listings,
		history:  history,
		logger:   slog.Default(),
		tracer:   otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ChangeStatus moves a listing to the requested status when the policy allows it.
//
// A request for the current status is a no-op: nothing is written and
// Changed is false. The audit append runs only after a successful status
// write and its failure is logged, never returned.
func (s *Service) ChangeStatus(ctx context.Context, cmd models.ChangeStatusCommand) (*models.TransitionResult, error) {
	start := time.Now()
	defer s.observeChangeStatus(start)

	ctx, span := s.tracer.Start(ctx, "listing.ChangeStatus",
		trace.WithAttributes(attribute.String("listing.id", cmd.ListingID.String())),
	)
	defer span.End()

	cmd.Normalize()
	if err := cmd.Validate(); err != nil {
		return nil, recordErr(span, err)
	}
	requested, err := models.ParseStatus(cmd.RequestedStatus)
	if err != nil {
		return nil, recordErr(span, err)
	}

	listing, err := s.load(ctx, cmd.ListingID)
	if err != nil {
		return nil, recordErr(span, err)
	}
	if err := s.authorize(ctx, listing, cmd.ActorID); err != nil {
		return nil, recordErr(span, err)
	}
	current := listing.Status
	span.SetAttributes(
		attribute.String("listing.status.from", string(current)),
		attribute.String("listing.status.to", string(requested)),
	)

	decision := models.Decide(current, requested)
	switch {
	case decision.NoOp():
		s.incrementNoOp()
		span.SetAttributes(attribute.String("listing.transition.outcome", decision.Outcome.String()))
		return &models.TransitionResult{
			ListingID:      listing.ID,
			PreviousStatus: current.Ptr(),
			NewStatus:      current,
			Changed:        false,
		}, nil
	case decision.Rejected():
		s.incrementRejection(decision.Reason)
		s.logAudit(ctx, EventTransitionRejected,
			"listing_id", listing.ID.String(),
			"from", string(current),
			"to", string(requested),
			"reason", string(decision.Reason),
		)
		rejection := &models.TransitionError{From: current, To: requested, Reason: decision.Reason}
		return nil, recordErr(span, dErrors.Wrap(rejection, dErrors.CodeInvalidTransition, decision.Reason.Message()))
	}

	now := requestcontext.Now(ctx)
	if err := s.writeStatus(ctx, listing.ID, current, requested, now); err != nil {
		return nil, recordErr(span, err)
	}
	s.incrementTransition(current, requested)

	record := &models.TransitionRecord{
		ID:             id.NewRecordID(),
		ListingID:      listing.ID,
		PreviousStatus: current.Ptr(),
		NewStatus:      requested,
		ActorID:        cmd.ActorID,
		Reason:         cmd.Reason,
		Notes:          cmd.Notes,
	}
	result := &models.TransitionResult{
		ListingID:      listing.ID,
		PreviousStatus: current.Ptr(),
		NewStatus:      requested,
		Changed:        true,
	}
	if s.appendAudit(ctx, record) {
		recordID := record.ID
		result.AuditRecordID = &recordID
	}

	s.logAudit(ctx, EventStatusChanged,
		"listing_id", listing.ID.String(),
		"from", string(current),
		"to", string(requested),
		"actor_id", actorString(cmd.ActorID),
	)
	return result, nil
}

// RegisterCreation records the creation event of a listing. The policy is not
// consulted and the listing is not required to exist in the entity store.
func (s *Service) RegisterCreation(ctx context.Context, cmd models.RegisterCreationCommand) (*models.TransitionResult, error) {
	ctx, span := s.tracer.Start(ctx, "listing.RegisterCreation",
		trace.WithAttributes(attribute.String("listing.id", cmd.ListingID.String())),
	)
	defer span.End()

	cmd.Normalize()
	if err := cmd.Validate(); err != nil {
		return nil, recordErr(span, err)
	}
	initial, err := models.ParseStatus(cmd.InitialStatus)
	if err != nil {
		return nil, recordErr(span, err)
	}
	if s.ownerOnly {
		listing, err := s.load(ctx, cmd.ListingID)
		switch {
		case dErrors.HasCode(err, dErrors.CodeNotFound):
			if cmd.ActorID == nil {
				return nil, recordErr(span, s.forbid(ctx, cmd.ListingID, nil, "an authenticated actor is required"))
			}
		case err != nil:
			return nil, recordErr(span, err)
		default:
			if err := s.authorize(ctx, listing, cmd.ActorID); err != nil {
				return nil, recordErr(span, err)
			}
		}
	}

	result := s.recordCreation(ctx, cmd.ListingID, initial, cmd.ActorID, cmd.Reason, cmd.Notes)
	s.logAudit(ctx, EventCreationRegistered,
		"listing_id", cmd.ListingID.String(),
		"status", string(initial),
		"actor_id", actorString(cmd.ActorID),
	)
	return result, nil
}

// CreateListing stores a new pending listing and registers its creation event.
func (s *Service) CreateListing(ctx context.Context, cmd models.CreateListingCommand) (*models.Listing, *models.TransitionResult, error) {
	ctx, span := s.tracer.Start(ctx, "listing.CreateListing")
	defer span.End()

	cmd.Normalize()
	if err := cmd.Validate(); err != nil {
		return nil, nil, recordErr(span, err)
	}

	listing, err := models.NewListing(id.NewListingID(), cmd.OwnerID, requestcontext.Now(ctx))
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, nil, recordErr(span, dErrors.New(dErrors.CodeInvalidInput, dErrors.MessageOf(err)))
		}
		return nil, nil, recordErr(span, err)
	}
	span.SetAttributes(attribute.String("listing.id", listing.ID.String()))

	if err := s.listings.Create(ctx, listing); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return nil, nil, recordErr(span, dErrors.Wrap(err, dErrors.CodeConflict, "listing already exists"))
		}
		return nil, nil, recordErr(span, dErrors.Wrap(err, dErrors.CodePersistence, "failed to create listing"))
	}

	result := s.recordCreation(ctx, listing.ID, listing.Status, cmd.ActorID, cmd.Reason, cmd.Notes)
	s.logAudit(ctx, EventListingCreated,
		"listing_id", listing.ID.String(),
		"owner_id", listing.OwnerID.String(),
		"actor_id", actorString(cmd.ActorID),
	)
	return listing, result, nil
}

// GetListing returns the listing's current state.
func (s *Service) GetListing(ctx context.Context, listingID id.ListingID) (*models.Listing, error) {
	ctx, span := s.tracer.Start(ctx, "listing.GetListing",
		trace.WithAttributes(attribute.String("listing.id", listingID.String())),
	)
	defer span.End()

	if listingID.IsNil() {
		return nil, recordErr(span, dErrors.New(dErrors.CodeInvalidInput, "listing ID is required"))
	}
	listing, err := s.load(ctx, listingID)
	if err != nil {
		return nil, recordErr(span, err)
	}
	return listing, nil
}

// GetHistory returns the listing's audit trail, newest first.
func (s *Service) GetHistory(ctx context.Context, listingID id.ListingID) ([]*models.TransitionRecord, error) {
	ctx, span := s.tracer.Start(ctx, "listing.GetHistory",
		trace.WithAttributes(attribute.String("listing.id", listingID.String())),
	)
	defer span.End()

	if listingID.IsNil() {
		return nil, recordErr(span, dErrors.New(dErrors.CodeInvalidInput, "listing ID is required"))
	}
	if _, err := s.load(ctx, listingID); err != nil {
		return nil, recordErr(span, err)
	}

	records, err := s.history.ListByListing(ctx, listingID)
	if err != nil {
		return nil, recordErr(span, dErrors.Wrap(err, dErrors.CodePersistence, "failed to load listing history"))
	}
	if records == nil {
		records = []*models.TransitionRecord{}
	}
	span.SetAttributes(attribute.Int("listing.history.count", len(records)))
	return records, nil
}

// authorize enforces WithOwnerAuthorization for an existing listing.
func (s *Service) authorize(ctx context.Context, listing *models.Listing, actor *id.UserID) error {
	if !s.ownerOnly {
		return nil
	}
	if actor == nil {
		return s.forbid(ctx, listing.ID, nil, "an authenticated actor is required")
	}
	if *actor != listing.OwnerID {
		return s.forbid(ctx, listing.ID, actor, "only the listing owner may change its status")
	}
	return nil
}

func (s *Service) forbid(ctx context.Context, listingID id.ListingID, actor *id.UserID, message string) error {
	s.logAudit(ctx, EventActorForbidden,
		"listing_id", listingID.String(),
		"actor_id", actorString(actor),
	)
	return dErrors.New(dErrors.CodeForbidden, message)
}

func (s *Service) load(ctx context.Context, listingID id.ListingID) (*models.Listing, error) {
	listing, err := s.listings.FindByID(ctx, listingID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "listing not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodePersistence, "failed to load listing")
	}
	return listing, nil
}

func (s *Service) writeStatus(ctx context.Context, listingID id.ListingID, from, to models.Status, now time.Time) error {
	var err error
	if s.compareAndSwap {
		err = s.listings.CompareAndSetStatus(ctx, listingID, from, to, now)
	} else {
		err = s.listings.UpdateStatus(ctx, listingID, to, now)
	}
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, sentinel.ErrConflict):
		s.incrementWriteConflict()
		s.logAudit(ctx, EventStatusWriteConflicted,
			"listing_id", listingID.String(),
			"from", string(from),
			"to", string(to),
		)
		return dErrors.Wrap(err, dErrors.CodeConflict, "listing status changed concurrently")
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "listing not found")
	default:
		return dErrors.Wrap(err, dErrors.CodePersistence, "failed to update listing status")
	}
}

func (s *Service) recordCreation(ctx context.Context, listingID id.ListingID, status models.Status, actor *id.UserID, reason, notes string) *models.TransitionResult {
	record := &models.TransitionRecord{
		ID:        id.NewRecordID(),
		ListingID: listingID,
		NewStatus: status,
		ActorID:   actor,
		Reason:    reason,
		Notes:     notes,
	}
	result := &models.TransitionResult{
		ListingID: listingID,
		NewStatus: status,
		Changed:   true,
	}
	if s.appendAudit(ctx, record) {
		recordID := record.ID
		result.AuditRecordID = &recordID
	}
	return result
}

// appendAudit writes record and reports success. Failures are logged with
// code audit_write_failed and counted; they never reach the caller.
func (s *Service) appendAudit(ctx context.Context, record *models.TransitionRecord) bool {
	err := s.history.Append(ctx, record)
	if err == nil {
		return true
	}
	auditErr := dErrors.Wrap(err, dErrors.CodeAuditWriteFailed, "failed to append transition record")
	s.incrementAuditWriteFailure()
	trace.SpanFromContext(ctx).AddEvent(EventAuditWriteFailed)
	args := []any{
		"event", EventAuditWriteFailed,
		"code", string(dErrors.CodeAuditWriteFailed),
		"listing_id", record.ListingID.String(),
		"record_id", record.ID.String(),
		"new_status", string(record.NewStatus),
		"error", auditErr,
	}
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		args = append(args, "request_id", requestID)
	}
	s.logger.ErrorContext(ctx, "audit write failed", args...)
	return false
}

func (s *Service) logAudit(ctx context.Context, event string, attributes ...any) {
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes, "event", event, "log_type", "audit")
	if s.logger != nil {
		s.logger.InfoContext(ctx, event, args...)
	}
}

func recordErr(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
	return err
}

func actorString(actor *id.UserID) string {
	if actor == nil {
		return ""
	}
	return actor.String()
}

func (s *Service) observeChangeStatus(start time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveChangeStatus(start)
	}
}

func (s *Service) incrementTransition(from, to models.Status) {
	if s.metrics != nil {
		s.metrics.IncrementTransition(string(from), string(to))
	}
}

func (s *Service) incrementRejection(reason models.RejectionReason) {
	if s.metrics != nil {
		s.metrics.IncrementRejection(string(reason))
	}
}

func (s *Service) incrementNoOp() {
	if s.metrics != nil {
		s.metrics.IncrementNoOp()
	}
}

func (s *Service) incrementWriteConflict() {
	if s.metrics != nil {
		s.metrics.IncrementWriteConflict()
	}
}

func (s *Service) incrementAuditWriteFailure() {
	if s.metrics != nil {
		s.metrics.IncrementAuditWriteFailure()
	}
}
