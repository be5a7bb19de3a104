package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/tair/pos-ledger/internal/operator/domain"
	"github.com/tair/pos-ledger/internal/operator/usecase/command"
	posHTTP "github.com/tair/pos-ledger/internal/pos/delivery/http"
	"github.com/tair/pos-ledger/pkg/auth"
	"github.com/tair/pos-ledger/pkg/logger"
)

// OperatorHandler handles login and operator administration
type OperatorHandler struct {
	registerHandler  *command.RegisterOperatorHandler
	loginHandler     *command.LoginOperatorHandler
	setActiveHandler *command.SetActiveHandler
}

// NewOperatorHandler creates a new operator handler
func NewOperatorHandler(
	registerHandler *command.RegisterOperatorHandler,
	loginHandler *command.LoginOperatorHandler,
	setActiveHandler *command.SetActiveHandler,
) *OperatorHandler {
	return &OperatorHandler{
		registerHandler:  registerHandler,
		loginHandler:     loginHandler,
		setActiveHandler: setActiveHandler,
	}
}

// RegisterRoutes registers the public login route on router and the admin
// routes on the authenticated api subrouter
func (h *OperatorHandler) RegisterRoutes(router, api *mux.Router, authn *posHTTP.Authenticator, limiter *posHTTP.RateLimiter) {
	router.Handle("/auth/login", limiter.Middleware(http.HandlerFunc(h.Login))).Methods("POST")

	admin := authn.RequireRole(auth.RoleAdmin)
	api.HandleFunc("/operators", admin(h.Register)).Methods("POST")
	api.HandleFunc("/operators/{id}/active", admin(h.SetActive)).Methods("PATCH")
}

// Login godoc
// @Summary Log an operator in
// @Tags Operators
// @Accept json
// @Produce json
// @Param request body command.LoginOperatorCommand true "Credentials"
// @Success 200 {object} posHTTP.Response
// @Failure 401 {object} posHTTP.Response
// @Router /auth/login [post]
func (h *OperatorHandler) Login(w http.ResponseWriter, r *http.Request) {
	var cmd command.LoginOperatorCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		respondJSON(w, http.StatusBadRequest, posHTTP.Response{Success: false, Error: "Invalid request body"})
		return
	}

	result, err := h.loginHandler.Handle(r.Context(), cmd)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, posHTTP.Response{Success: true, Data: result})
}

// Register godoc
// @Summary Add a till operator
// @Tags Operators
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body command.RegisterOperatorCommand true "Operator"
// @Success 201 {object} posHTTP.Response
// @Failure 400 {object} posHTTP.Response
// @Failure 409 {object} posHTTP.Response
// @Router /api/operators [post]
func (h *OperatorHandler) Register(w http.ResponseWriter, r *http.Request) {
	var cmd command.RegisterOperatorCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		respondJSON(w, http.StatusBadRequest, posHTTP.Response{Success: false, Error: "Invalid request body"})
		return
	}

	operator, err := h.registerHandler.Handle(r.Context(), cmd)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, posHTTP.Response{
		Success: true,
		Message: "Operator registered",
		Data:    operator,
	})
}

// SetActive godoc
// @Summary Enable or disable an operator
// @Tags Operators
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Operator ID"
// @Success 200 {object} posHTTP.Response
// @Failure 404 {object} posHTTP.Response
// @Router /api/operators/{id}/active [patch]
func (h *OperatorHandler) SetActive(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 32)
	if err != nil || id == 0 {
		respondJSON(w, http.StatusBadRequest, posHTTP.Response{Success: false, Error: "Invalid operator ID"})
		return
	}

	var body struct {
		Active *bool `json:"active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Active == nil {
		respondJSON(w, http.StatusBadRequest, posHTTP.Response{Success: false, Error: "active is required"})
		return
	}

	operator, err := h.setActiveHandler.Handle(r.Context(), command.SetActiveCommand{
		OperatorID: uint(id),
		Active:     *body.Active,
		Actor:      posHTTP.Username(r),
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, posHTTP.Response{Success: true, Data: operator})
}

func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrInvalidCredentials), errors.Is(err, domain.ErrInactive):
		status = http.StatusUnauthorized
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrDuplicate):
		status = http.StatusConflict
	}

	if status == http.StatusInternalServerError {
		logger.Error(r.Context()).Err(err).Str("path", r.URL.Path).Msg("Operator request failed")
		respondJSON(w, status, posHTTP.Response{Success: false, Error: "Internal server error"})
		return
	}
	respondJSON(w, status, posHTTP.Response{Success: false, Error: err.Error()})
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
