// Package handler exposes the registry over HTTP/JSON.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"deedbook/internal/platform/middleware"
	"deedbook/internal/registry/models"
	"deedbook/internal/registry/service"
	id "deedbook/pkg/domain"
	dErrors "deedbook/pkg/domain-errors"
	"deedbook/pkg/platform/httputil"
	"deedbook/pkg/requestcontext"
)

// Service defines the registry operations the HTTP surface exposes.
type Service interface {
	Register(ctx context.Context, caller id.Address, description string) (*models.Property, error)
	BulkRegister(ctx context.Context, caller id.Address, descriptions []string) ([]*models.Property, error)
	Transfer(ctx context.Context, caller id.Address, propertyID id.PropertyID, recipient id.Address) (*models.Property, error)
	Freeze(ctx context.Context, caller id.Address, propertyID id.PropertyID) (*models.Property, error)
	ApproveTransfer(ctx context.Context, caller id.Address, propertyID id.PropertyID, candidate id.Address) error
	RevokeTransferApproval(ctx context.Context, caller id.Address, propertyID id.PropertyID, candidate id.Address) error
	IsTransferApproved(ctx context.Context, propertyID id.PropertyID, candidate id.Address) (bool, error)

	SetCategory(ctx context.Context, caller id.Address, propertyID id.PropertyID, category string) error
	SetLocation(ctx context.Context, caller id.Address, propertyID id.PropertyID, location string) error
	SetValue(ctx context.Context, caller id.Address, propertyID id.PropertyID, value uint64) error
	SetTax(ctx context.Context, caller id.Address, propertyID id.PropertyID, amount uint64) error
	SetInsurance(ctx context.Context, caller id.Address, propertyID id.PropertyID, insured bool, provider string) error
	SetOccupancy(ctx context.Context, caller id.Address, propertyID id.PropertyID, occupied bool) error
	SetZoning(ctx context.Context, caller id.Address, propertyID id.PropertyID, zoning string) error
	SetConstructionYear(ctx context.Context, caller id.Address, propertyID id.PropertyID, year uint16) error
	SetListed(ctx context.Context, caller id.Address, propertyID id.PropertyID, listed bool) error
	AppendMaintenance(ctx context.Context, caller id.Address, propertyID id.PropertyID, rec models.MaintenanceRecord) error
	AppendAppraisal(ctx context.Context, caller id.Address, propertyID id.PropertyID, rec models.Appraisal) error

	Snapshot(ctx context.Context, propertyID id.PropertyID) (*service.Snapshot, error)
	Attributes(ctx context.Context, propertyID id.PropertyID) (*models.Attributes, error)
	MaintenanceLog(ctx context.Context, propertyID id.PropertyID) ([]models.MaintenanceRecord, error)
	Appraisals(ctx context.Context, propertyID id.PropertyID) ([]models.Appraisal, error)
	LastID(ctx context.Context) (id.PropertyID, error)
	NextID(ctx context.Context) (id.PropertyID, error)
	Count(ctx context.Context) (uint64, error)
	IsValidRange(ctx context.Context, lo, hi id.PropertyID) (bool, error)
}

// TokenMinter issues caller identity tokens for the operator endpoint.
type TokenMinter interface {
	Mint(addr id.Address, expiresIn time.Duration) (string, error)
}

const defaultTokenTTL = time.Hour

// Handler handles registry endpoints.
type Handler struct {
	logger         *slog.Logger
	registry       Service
	validator      middleware.TokenValidator
	minter         TokenMinter
	adminTokenHash string
}

// New creates a registry Handler.
func New(
	registry Service,
	validator middleware.TokenValidator,
	minter TokenMinter,
	adminTokenHash string,
	logger *slog.Logger) *Handler {
	return &Handler{
		logger:         logger,
		registry:       registry,
		validator:      validator,
		minter:         minter,
		adminTokenHash: adminTokenHash,
	}
}

// Register registers the registry routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	router := chi.NewRouter()
	router.Use(middleware.Recovery(h.logger))
	router.Use(middleware.RequestID)
	router.Use(middleware.RequestTime)
	router.Use(middleware.Logger(h.logger))

	router.Get("/healthz", h.handleHealth)

	router.Route("/registry", func(r chi.Router) {
		r.Get("/stats", h.handleStats)
		r.Get("/range", h.handleRange)
	})

	router.Route("/properties", func(r chi.Router) {
		r.Get("/{propertyID}", h.handleSnapshot)
		r.Get("/{propertyID}/attributes", h.handleAttributes)
		r.Get("/{propertyID}/maintenance", h.handleMaintenanceLog)
		r.Get("/{propertyID}/appraisals", h.handleAppraisals)
		r.Get("/{propertyID}/approvals/{address}", h.handleApprovalStatus)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(h.validator, h.logger))
			r.Post("/", h.handleRegister)
			r.Post("/bulk", h.handleBulkRegister)
			r.Post("/{propertyID}/transfer", h.handleTransfer)
			r.Post("/{propertyID}/freeze", h.handleFreeze)
			r.Post("/{propertyID}/list", h.handleList)
			r.Post("/{propertyID}/delist", h.handleDelist)
			r.Put("/{propertyID}/category", h.handleSetCategory)
			r.Put("/{propertyID}/location", h.handleSetLocation)
			r.Put("/{propertyID}/value", h.handleSetValue)
			r.Put("/{propertyID}/tax", h.handleSetTax)
			r.Put("/{propertyID}/insurance", h.handleSetInsurance)
			r.Put("/{propertyID}/occupancy", h.handleSetOccupancy)
			r.Put("/{propertyID}/zoning", h.handleSetZoning)
			r.Put("/{propertyID}/construction-year", h.handleSetConstructionYear)
			r.Post("/{propertyID}/maintenance", h.handleAppendMaintenance)
			r.Post("/{propertyID}/appraisals", h.handleAppendAppraisal)
			r.Post("/{propertyID}/approvals", h.handleApprove)
			r.Delete("/{propertyID}/approvals/{address}", h.handleRevokeApproval)
		})
	})

	if h.minter != nil {
		router.Group(func(r chi.Router) {
			r.Use(middleware.RequireAdminToken(h.adminTokenHash, h.logger))
			r.Post("/tokens", h.handleMintToken)
		})
	}

	r.Mount("/", router)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := h.caller(w, ctx)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[registerRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	p, err := h.registry.Register(ctx, caller, req.Description)
	if err != nil {
		h.writeServiceError(w, ctx, err, "failed to register property")
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, fromProperty(p))
}

func (h *Handler) handleBulkRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := h.caller(w, ctx)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[bulkRegisterRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	created, err := h.registry.BulkRegister(ctx, caller, req.Descriptions)
	if err != nil {
		h.writeServiceError(w, ctx, err, "failed to register batch")
		return
	}

	resp := bulkRegisterResponse{Properties: make([]propertyResponse, 0, len(created))}
	for _, p := range created {
		resp.Properties = append(resp.Properties, fromProperty(p))
	}
	httputil.WriteJSON(w, http.StatusCreated, resp)
}

func (h *Handler) handleTransfer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := h.caller(w, ctx)
	if !ok {
		return
	}
	propertyID, ok := h.propertyID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[transferRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	p, err := h.registry.Transfer(ctx, caller, propertyID, id.Address(req.Recipient))
	if err != nil {
		h.writeServiceError(w, ctx, err, "failed to transfer property")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, fromProperty(p))
}

func (h *Handler) handleFreeze(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := h.caller(w, ctx)
	if !ok {
		return
	}
	propertyID, ok := h.propertyID(w, r)
	if !ok {
		return
	}

	p, err := h.registry.Freeze(ctx, caller, propertyID)
	if err != nil {
		h.writeServiceError(w, ctx, err, "failed to freeze property")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, fromProperty(p))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	h.setListed(w, r, true)
}

func (h *Handler) handleDelist(w http.ResponseWriter, r *http.Request) {
	h.setListed(w, r, false)
}

func (h *Handler) setListed(w http.ResponseWriter, r *http.Request, listed bool) {
	ctx := r.Context()
	caller, ok := h.caller(w, ctx)
	if !ok {
		return
	}
	propertyID, ok := h.propertyID(w, r)
	if !ok {
		return
	}

	if err := h.registry.SetListed(ctx, caller, propertyID, listed); err != nil {
		h.writeServiceError(w, ctx, err, "failed to update listing")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSetCategory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, propertyID, ok := h.mutationTarget(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[categoryRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	h.finishUpdate(w, ctx, h.registry.SetCategory(ctx, caller, propertyID, req.Category))
}

func (h *Handler) handleSetLocation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, propertyID, ok := h.mutationTarget(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[locationRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	h.finishUpdate(w, ctx, h.registry.SetLocation(ctx, caller, propertyID, req.Location))
}

func (h *Handler) handleSetValue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, propertyID, ok := h.mutationTarget(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[valueRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	h.finishUpdate(w, ctx, h.registry.SetValue(ctx, caller, propertyID, req.Value))
}

func (h *Handler) handleSetTax(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, propertyID, ok := h.mutationTarget(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[taxRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	h.finishUpdate(w, ctx, h.registry.SetTax(ctx, caller, propertyID, req.Amount))
}

func (h *Handler) handleSetInsurance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, propertyID, ok := h.mutationTarget(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[insuranceRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	h.finishUpdate(w, ctx, h.registry.SetInsurance(ctx, caller, propertyID, req.Insured, req.Provider))
}

func (h *Handler) handleSetOccupancy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, propertyID, ok := h.mutationTarget(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[occupancyRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	h.finishUpdate(w, ctx, h.registry.SetOccupancy(ctx, caller, propertyID, req.Occupied))
}

func (h *Handler) handleSetZoning(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, propertyID, ok := h.mutationTarget(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[zoningRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	h.finishUpdate(w, ctx, h.registry.SetZoning(ctx, caller, propertyID, req.Zoning))
}

func (h *Handler) handleSetConstructionYear(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, propertyID, ok := h.mutationTarget(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[constructionYearRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	h.finishUpdate(w, ctx, h.registry.SetConstructionYear(ctx, caller, propertyID, req.Year))
}

func (h *Handler) handleAppendMaintenance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, propertyID, ok := h.mutationTarget(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[maintenanceRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	h.finishUpdate(w, ctx, h.registry.AppendMaintenance(ctx, caller, propertyID, req.record()))
}

func (h *Handler) handleAppendAppraisal(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, propertyID, ok := h.mutationTarget(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[appraisalRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	h.finishUpdate(w, ctx, h.registry.AppendAppraisal(ctx, caller, propertyID,
		models.Appraisal{Timestamp: req.Timestamp, Value: req.Value}))
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, propertyID, ok := h.mutationTarget(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[approvalRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	h.finishUpdate(w, ctx, h.registry.ApproveTransfer(ctx, caller, propertyID, id.Address(req.Candidate)))
}

func (h *Handler) handleRevokeApproval(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, propertyID, ok := h.mutationTarget(w, r)
	if !ok {
		return
	}
	candidate, err := id.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.finishUpdate(w, ctx, h.registry.RevokeTransferApproval(ctx, caller, propertyID, candidate))
}

func (h *Handler) handleApprovalStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	propertyID, ok := h.propertyID(w, r)
	if !ok {
		return
	}
	candidate, err := id.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	approved, err := h.registry.IsTransferApproved(ctx, propertyID, candidate)
	if err != nil {
		h.writeServiceError(w, ctx, err, "failed to read transfer approval")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, approvalResponse{Approved: approved})
}

func (h *Handler) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	propertyID, ok := h.propertyID(w, r)
	if !ok {
		return
	}

	snap, err := h.registry.Snapshot(ctx, propertyID)
	if err != nil {
		h.writeServiceError(w, ctx, err, "failed to load property")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, snap)
}

func (h *Handler) handleAttributes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	propertyID, ok := h.propertyID(w, r)
	if !ok {
		return
	}

	attrs, err := h.registry.Attributes(ctx, propertyID)
	if err != nil {
		h.writeServiceError(w, ctx, err, "failed to load attributes")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, attrs)
}

func (h *Handler) handleMaintenanceLog(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	propertyID, ok := h.propertyID(w, r)
	if !ok {
		return
	}

	log, err := h.registry.MaintenanceLog(ctx, propertyID)
	if err != nil {
		h.writeServiceError(w, ctx, err, "failed to load maintenance log")
		return
	}
	if log == nil {
		log = []models.MaintenanceRecord{}
	}
	httputil.WriteJSON(w, http.StatusOK, log)
}

func (h *Handler) handleAppraisals(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	propertyID, ok := h.propertyID(w, r)
	if !ok {
		return
	}

	log, err := h.registry.Appraisals(ctx, propertyID)
	if err != nil {
		h.writeServiceError(w, ctx, err, "failed to load appraisals")
		return
	}
	if log == nil {
		log = []models.Appraisal{}
	}
	httputil.WriteJSON(w, http.StatusOK, log)
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	count, err := h.registry.Count(ctx)
	if err != nil {
		h.writeServiceError(w, ctx, err, "failed to read registry stats")
		return
	}
	last, err := h.registry.LastID(ctx)
	if err != nil {
		h.writeServiceError(w, ctx, err, "failed to read registry stats")
		return
	}
	next, err := h.registry.NextID(ctx)
	if err != nil {
		h.writeServiceError(w, ctx, err, "failed to read registry stats")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, statsResponse{Count: count, LastID: last, NextID: next})
}

// handleRange answers the id-range validity predicate. Bounds outside the
// assigned space (including zero) answer valid=false rather than an error.
func (h *Handler) handleRange(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	lo, err := strconv.ParseUint(r.URL.Query().Get("lo"), 10, 64)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "lo must be a non-negative integer"))
		return
	}
	hi, err := strconv.ParseUint(r.URL.Query().Get("hi"), 10, 64)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "hi must be a non-negative integer"))
		return
	}

	valid, err := h.registry.IsValidRange(ctx, id.PropertyID(lo), id.PropertyID(hi))
	if err != nil {
		h.writeServiceError(w, ctx, err, "failed to evaluate id range")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, rangeResponse{Valid: valid})
}

func (h *Handler) handleMintToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[mintTokenRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	addr, err := id.ParseAddress(req.Address)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	ttl := defaultTokenTTL
	if req.TTLSeconds > 0 {
		ttl = time.Duration(req.TTLSeconds) * time.Second
	}

	token, err := h.minter.Mint(addr, ttl)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to mint token",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "failed to mint token"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, tokenResponse{Token: token, ExpiresIn: int(ttl.Seconds())})
}

// caller reads the authenticated address set by RequireAuth. An empty value
// means the middleware chain is misconfigured.
func (h *Handler) caller(w http.ResponseWriter, ctx context.Context) (id.Address, bool) {
	caller := requestcontext.Caller(ctx)
	if caller.IsZero() {
		h.logger.ErrorContext(ctx, "caller missing from context despite auth middleware",
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return "", false
	}
	return caller, true
}

func (h *Handler) propertyID(w http.ResponseWriter, r *http.Request) (id.PropertyID, bool) {
	propertyID, err := id.ParsePropertyID(chi.URLParam(r, "propertyID"))
	if err != nil {
		httputil.WriteError(w, err)
		return 0, false
	}
	return propertyID, true
}

func (h *Handler) mutationTarget(w http.ResponseWriter, r *http.Request) (id.Address, id.PropertyID, bool) {
	caller, ok := h.caller(w, r.Context())
	if !ok {
		return "", 0, false
	}
	propertyID, ok := h.propertyID(w, r)
	if !ok {
		return "", 0, false
	}
	return caller, propertyID, true
}

func (h *Handler) finishUpdate(w http.ResponseWriter, ctx context.Context, err error) {
	if err != nil {
		h.writeServiceError(w, ctx, err, "failed to update property")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeServiceError(w http.ResponseWriter, ctx context.Context, err error, message string) {
	requestID := requestcontext.RequestID(ctx)
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, message,
			"request_id", requestID,
			"error", err.Error(),
		)
	} else {
		h.logger.WarnContext(ctx, message,
			"request_id", requestID,
			"error", err.Error(),
		)
	}
	httputil.WriteError(w, err)
}
