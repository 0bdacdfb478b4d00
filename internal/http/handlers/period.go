package handlers

import (
	"net/http"
	"strings"

	"admissions/internal/app"
	"admissions/internal/domain/period"
	"admissions/internal/http/response"
)

type PeriodHandler struct {
	periods *app.PeriodService
}

func NewPeriodHandler(periods *app.PeriodService) *PeriodHandler {
	return &PeriodHandler{periods: periods}
}

type periodRequest struct {
	Name              *string          `json:"nom"`
	Year              *int             `json:"annee"`
	Semester          *period.Semester `json:"semestre"`
	StartDate         *string          `json:"dateDebut"`
	EndDate           *string          `json:"dateFin"`
	ApplicationCutoff *string          `json:"dateLimiteCandidature"`
	DecisionDate      *string          `json:"dateDecision"`
	Status            *period.Status   `json:"statut"`
	ProgramIDs        []string         `json:"programmes"`
}

func (h *PeriodHandler) List(w http.ResponseWriter, r *http.Request) {
	periods, err := h.periods.List(r.Context())
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, periods)
}

func (h *PeriodHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		response.Error(w, err)
		return
	}
	p, err := h.periods.Get(r.Context(), id)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, p)
}

func (h *PeriodHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req periodRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, err)
		return
	}
	fields := map[string]string{}
	input := app.PeriodInput{DecisionDate: parseOptionalDate(req.DecisionDate, "dateDecision", fields)}
	if req.Name != nil {
		input.Name = strings.TrimSpace(*req.Name)
	}
	if req.Year != nil {
		input.Year = *req.Year
	}
	if req.Semester != nil {
		input.Semester = period.Semester(strings.ToUpper(string(*req.Semester)))
	}
	input.StartDate = requiredDate(req.StartDate, "dateDebut", fields)
	input.EndDate = requiredDate(req.EndDate, "dateFin", fields)
	input.ApplicationCutoff = requiredDate(req.ApplicationCutoff, "dateLimiteCandidature", fields)
	ids, err := parseIDs(req.ProgramIDs, "programmes")
	if err != nil {
		response.Error(w, err)
		return
	}
	input.ProgramIDs = ids
	if err := invalidFields(fields); err != nil {
		response.Error(w, err)
		return
	}
	created, err := h.periods.Create(r.Context(), input)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusCreated, created)
}

func (h *PeriodHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		response.Error(w, err)
		return
	}
	var req periodRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, err)
		return
	}
	fields := map[string]string{}
	patch := app.PeriodPatch{
		Name:              req.Name,
		Year:              req.Year,
		StartDate:         parseOptionalDate(req.StartDate, "dateDebut", fields),
		EndDate:           parseOptionalDate(req.EndDate, "dateFin", fields),
		ApplicationCutoff: parseOptionalDate(req.ApplicationCutoff, "dateLimiteCandidature", fields),
		DecisionDate:      parseOptionalDate(req.DecisionDate, "dateDecision", fields),
	}
	if req.Semester != nil {
		semester := period.Semester(strings.ToUpper(string(*req.Semester)))
		patch.Semester = &semester
	}
	if req.Status != nil {
		status := period.Status(strings.ToUpper(string(*req.Status)))
		patch.Status = &status
	}
	if patch.ProgramIDs, err = parseIDs(req.ProgramIDs, "programmes"); err != nil {
		response.Error(w, err)
		return
	}
	if err := invalidFields(fields); err != nil {
		response.Error(w, err)
		return
	}
	updated, err := h.periods.Update(r.Context(), id, patch)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, updated)
}

func (h *PeriodHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		response.Error(w, err)
		return
	}
	if err := h.periods.Delete(r.Context(), id); err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, messageResponse{Message: "période supprimée"})
}
