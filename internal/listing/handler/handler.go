package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"vendemos/internal/listing/models"
	id "vendemos/pkg/domain"
	dErrors "vendemos/pkg/domain-errors"
	"vendemos/pkg/platform/httputil"
	"vendemos/pkg/requestcontext"
)

// Service defines the listing operations exposed over HTTP.
type Service interface {
	CreateListing(ctx context.Context, cmd models.CreateListingCommand) (*models.Listing, *models.TransitionResult, error)
	GetListing(ctx context.Context, listingID id.ListingID) (*models.Listing, error)
	ChangeStatus(ctx context.Context, cmd models.ChangeStatusCommand) (*models.TransitionResult, error)
	RegisterCreation(ctx context.Context, cmd models.RegisterCreationCommand) (*models.TransitionResult, error)
	GetHistory(ctx context.Context, listingID id.ListingID) ([]*models.TransitionRecord, error)
}

// Handler wires listing endpoints to the listing service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Register mounts every listing endpoint on the router.
func (h *Handler) Register(r chi.Router) {
	h.RegisterWrites(r)
	h.RegisterReads(r)
}

// RegisterWrites mounts the endpoints that change listing state.
func (h *Handler) RegisterWrites(r chi.Router) {
	r.Post("/listings", h.HandleCreateListing)
	r.Post("/listings/{id}/status", h.HandleChangeStatus)
	r.Post("/listings/{id}/creation-events", h.HandleRegisterCreation)
}

// RegisterReads mounts the read-only endpoints.
func (h *Handler) RegisterReads(r chi.Router) {
	r.Get("/listings/{id}", h.HandleGetListing)
	r.Get("/listings/{id}/history", h.HandleGetHistory)
}

// HandleCreateListing handles POST /listings. The caller becomes the owner.
func (h *Handler) HandleCreateListing(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	userID := requestcontext.UserID(ctx)
	if userID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	req, ok := httputil.DecodeAndPrepare[CreateListingRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	listing, result, err := h.service.CreateListing(ctx, models.CreateListingCommand{
		OwnerID: userID,
		ActorID: &userID,
		Reason:  req.Reason,
		Notes:   req.Notes,
	})
	if err != nil {
		h.logFailure(ctx, "create listing failed", requestID, err)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, CreateListingResponse{
		Listing:    FromListing(listing),
		Transition: FromTransition(result),
	})
}

// HandleGetListing handles GET /listings/{id}.
func (h *Handler) HandleGetListing(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	listingID, ok := h.listingID(w, r)
	if !ok {
		return
	}
	listing, err := h.service.GetListing(ctx, listingID)
	if err != nil {
		h.logFailure(ctx, "get listing failed", requestID, err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromListing(listing))
}

// HandleChangeStatus handles POST /listings/{id}/status.
func (h *Handler) HandleChangeStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	listingID, ok := h.listingID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[ChangeStatusRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	result, err := h.service.ChangeStatus(ctx, models.ChangeStatusCommand{
		ListingID:       listingID,
		RequestedStatus: req.Status,
		ActorID:         actor(ctx),
		Reason:          req.Reason,
		Notes:           req.Notes,
	})
	if err != nil {
		h.logFailure(ctx, "change listing status failed", requestID, err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromTransition(result))
}

// HandleRegisterCreation handles POST /listings/{id}/creation-events.
func (h *Handler) HandleRegisterCreation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	listingID, ok := h.listingID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[RegisterCreationRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	result, err := h.service.RegisterCreation(ctx, models.RegisterCreationCommand{
		ListingID:     listingID,
		InitialStatus: req.InitialStatus,
		ActorID:       actor(ctx),
		Reason:        req.Reason,
		Notes:         req.Notes,
	})
	if err != nil {
		h.logFailure(ctx, "register listing creation failed", requestID, err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, FromTransition(result))
}

// HandleGetHistory handles GET /listings/{id}/history. Records are newest first.
func (h *Handler) HandleGetHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	listingID, ok := h.listingID(w, r)
	if !ok {
		return
	}
	records, err := h.service.GetHistory(ctx, listingID)
	if err != nil {
		h.logFailure(ctx, "get listing history failed", requestID, err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromHistory(listingID.String(), records))
}

// listingID parses the path parameter. A value that is not a listing ID
// cannot name an existing listing, so it is reported as not found.
func (h *Handler) listingID(w http.ResponseWriter, r *http.Request) (id.ListingID, bool) {
	listingID, err := id.ParseListingID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "listing not found"))
		return id.ListingID{}, false
	}
	return listingID, true
}

// logFailure logs client errors at warn and everything else at error.
func (h *Handler) logFailure(ctx context.Context, msg, requestID string, err error) {
	if httputil.StatusFor(dErrors.CodeOf(err)) < http.StatusInternalServerError {
		h.logger.WarnContext(ctx, msg, "request_id", requestID, "error", err)
		return
	}
	h.logger.ErrorContext(ctx, msg, "request_id", requestID, "error", err)
}

func actor(ctx context.Context) *id.UserID {
	userID := requestcontext.UserID(ctx)
	if userID.IsNil() {
		return nil
	}
	return &userID
}
