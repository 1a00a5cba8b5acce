package controllers

import (
	"net/http"

	"github.com/agrilink/agrilink-backend/api/responses"
	"github.com/agrilink/agrilink-backend/api/validators"
	"github.com/agrilink/agrilink-backend/internal/delivery"
	"github.com/agrilink/agrilink-backend/pkg/enums"
	pkgerrors "github.com/agrilink/agrilink-backend/pkg/errors"
	"github.com/agrilink/agrilink-backend/pkg/logger"
)

// AgentJobs lists the delivery jobs assigned to the authenticated agent.
func AgentJobs(svc delivery.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		agentID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		jobs, err := svc.AgentJobs(r.Context(), agentID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"items": jobs})
	}
}

// AgentAdvanceJob moves a job to the supplied next status on behalf of the
// assigned agent. The route decides the target status.
func AgentAdvanceJob(svc delivery.Service, next enums.DeliveryJobStatus, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		agentID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		jobID, err := pathUUID(r, "jobID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		job, err := svc.Transition(r.Context(), delivery.TransitionInput{
			JobID:     jobID,
			ActorID:   agentID,
			ActorRole: enums.ActorRoleDeliveryAgent,
			Next:      next,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, job)
	}
}

type rejectDeliveryBody struct {
	Note string `json:"note" validate:"required,min=3,max=500"`
}

// CustomerApproveDelivery confirms a requested delivery, completing the job.
func CustomerApproveDelivery(svc delivery.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resolveDelivery(svc, logg, w, r, enums.DeliveryJobStatusDelivered, nil)
	}
}

// CustomerRejectDelivery sends a requested delivery back to the same agent.
// A note explaining the rejection is mandatory.
func CustomerRejectDelivery(svc delivery.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body rejectDeliveryBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		note := validators.SanitizeString(body.Note, 500)
		resolveDelivery(svc, logg, w, r, enums.DeliveryJobStatusPickedUp, &note)
	}
}

func resolveDelivery(svc delivery.Service, logg *logger.Logger, w http.ResponseWriter, r *http.Request, next enums.DeliveryJobStatus, note *string) {
	customerID, err := actorID(r)
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return
	}

	orderID, err := pathUUID(r, "orderID")
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return
	}

	job, err := svc.JobForOrder(r.Context(), orderID)
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return
	}
	if job == nil {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "order has no delivery job"))
		return
	}

	updated, err := svc.Transition(r.Context(), delivery.TransitionInput{
		JobID:     job.ID,
		ActorID:   customerID,
		ActorRole: enums.ActorRoleCustomer,
		Next:      next,
		Note:      note,
	})
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return
	}
	responses.WriteSuccess(w, updated)
}
