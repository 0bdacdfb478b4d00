package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"admissions/internal/app"
	"admissions/internal/domain/program"
	"admissions/internal/http/response"
)

type ProgramHandler struct {
	programs *app.ProgramService
}

func NewProgramHandler(programs *app.ProgramService) *ProgramHandler {
	return &ProgramHandler{programs: programs}
}

type programRequest struct {
	Code              string   `json:"code"`
	Name              string   `json:"nom"`
	Description       string   `json:"description"`
	Department        string   `json:"departement"`
	Degree            string   `json:"diplome"`
	DurationMonths    int      `json:"duree"`
	MinimumAverage    float64  `json:"moyenneMinimale"`
	RequiredDocuments []string `json:"documentsRequis"`
	ApplicationFee    float64  `json:"fraisCandidature"`
	Capacity          int      `json:"capacite"`
	Active            *bool    `json:"actif"`
	Deadline          *string  `json:"dateLimite"`
}

func (req programRequest) toInput() (app.ProgramInput, error) {
	fields := map[string]string{}
	input := app.ProgramInput{
		Code:              req.Code,
		Name:              req.Name,
		Description:       req.Description,
		Department:        req.Department,
		Degree:            req.Degree,
		DurationMonths:    req.DurationMonths,
		MinimumAverage:    req.MinimumAverage,
		RequiredDocuments: req.RequiredDocuments,
		ApplicationFee:    req.ApplicationFee,
		Capacity:          req.Capacity,
		Active:            req.Active,
		Deadline:          parseOptionalDate(req.Deadline, "dateLimite", fields),
	}
	return input, invalidFields(fields)
}

func (h *ProgramHandler) List(w http.ResponseWriter, r *http.Request) {
	active, err := queryBool(r, "actif")
	if err != nil {
		response.Error(w, err)
		return
	}
	query := r.URL.Query()
	programs, err := h.programs.List(r.Context(), program.Filter{
		Active:     active,
		Department: strings.TrimSpace(query.Get("departement")),
		Degree:     strings.TrimSpace(query.Get("diplome")),
	})
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, programs)
}

func (h *ProgramHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := h.programs.Get(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, p)
}

func (h *ProgramHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req programRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, err)
		return
	}
	input, err := req.toInput()
	if err != nil {
		response.Error(w, err)
		return
	}
	created, err := h.programs.Create(r.Context(), input)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusCreated, created)
}

func (h *ProgramHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req programRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, err)
		return
	}
	input, err := req.toInput()
	if err != nil {
		response.Error(w, err)
		return
	}
	updated, err := h.programs.Update(r.Context(), chi.URLParam(r, "code"), input)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, updated)
}

func (h *ProgramHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.programs.Delete(r.Context(), chi.URLParam(r, "code")); err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, messageResponse{Message: "programme supprimé"})
}
