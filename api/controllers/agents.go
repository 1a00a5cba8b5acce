package controllers

import (
	"net/http"

	"github.com/agrilink/agrilink-backend/api/responses"
	"github.com/agrilink/agrilink-backend/api/validators"
	"github.com/agrilink/agrilink-backend/internal/actors"
	"github.com/agrilink/agrilink-backend/pkg/logger"
)

// RegisterAgent enrolls the authenticated user as a delivery agent.
func RegisterAgent(svc actors.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var input actors.RegisterAgentInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input.UserID = userID

		agent, err := svc.RegisterAgent(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, agent)
	}
}

// RegisterCoordinator enrolls the authenticated user as a regional
// coordinator. Admission fails when another coordinator already covers the
// area.
func RegisterCoordinator(svc actors.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var input actors.RegisterCoordinatorInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input.UserID = userID

		coordinator, err := svc.RegisterCoordinator(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, coordinator)
	}
}
