package handlers

import (
	"net/http"
	"strings"

	"admissions/internal/app"
	"admissions/internal/common"
	"admissions/internal/domain/interview"
	"admissions/internal/http/response"
)

type EntretienHandler struct {
	entretiens *app.EntretienService
}

func NewEntretienHandler(entretiens *app.EntretienService) *EntretienHandler {
	return &EntretienHandler{entretiens: entretiens}
}

type createEntretienRequest struct {
	CandidatureID   string           `json:"candidatureId"`
	ExaminerID      string           `json:"examinateurId"`
	PeriodID        string           `json:"periode"`
	Type            interview.Type   `json:"type"`
	Format          interview.Format `json:"format"`
	Date            string           `json:"dateProgrammee"`
	Time            string           `json:"heureProgrammee"`
	DurationMinutes int              `json:"duree"`
	Location        string           `json:"lieu"`
	MeetingLink     string           `json:"lienReunion"`
	MeetingID       string           `json:"idReunion"`
	MeetingPassword string           `json:"motDePasseReunion"`
	Title           string           `json:"titre"`
	Description     string           `json:"description"`
}

type updateEntretienRequest struct {
	Type            *interview.Type   `json:"type"`
	Format          *interview.Format `json:"format"`
	Date            *string           `json:"dateProgrammee"`
	Time            *string           `json:"heureProgrammee"`
	DurationMinutes *int              `json:"duree"`
	Location        *string           `json:"lieu"`
	MeetingLink     *string           `json:"lienReunion"`
	MeetingID       *string           `json:"idReunion"`
	MeetingPassword *string           `json:"motDePasseReunion"`
	Title           *string           `json:"titre"`
	Description     *string           `json:"description"`
	Status          *interview.Status `json:"statut"`
	Recommendation  *string           `json:"recommandation"`
}

type entretienNoteRequest struct {
	TechnicalEvaluation   string `json:"evaluationTechnique"`
	CommunicationSkills   string `json:"competencesCommunication"`
	MotivationFit         string `json:"motivationAdequation"`
	OverallRecommendation string `json:"recommandationGlobale"`
	TechnicalScore        *int   `json:"noteTechnique"`
	CommunicationScore    *int   `json:"noteCommunication"`
	MotivationScore       *int   `json:"noteMotivation"`
	OverallScore          *int   `json:"noteGlobale"`
	Strengths             string `json:"pointsForts"`
	Weaknesses            string `json:"pointsFaibles"`
	AdditionalComments    string `json:"commentairesSupplementaires"`
	Complete              bool   `json:"estComplete"`
	Draft                 bool   `json:"estBrouillon"`
}

type cancelRequest struct {
	Reason string `json:"raison"`
}

func (h *EntretienHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := withActor(w, r)
	if !ok {
		return
	}
	query := r.URL.Query()
	filter := interview.Filter{Status: interview.Status(strings.ToUpper(strings.TrimSpace(query.Get("statut"))))}
	fields := map[string]string{}
	date := query.Get("date")
	filter.Date = parseOptionalDate(&date, "date", fields)
	if err := invalidFields(fields); err != nil {
		response.Error(w, err)
		return
	}
	var err error
	if filter.ExaminerID, err = queryUUID(r, "examinateur"); err != nil {
		response.Error(w, err)
		return
	}
	if filter.PeriodID, err = queryUUID(r, "periode"); err != nil {
		response.Error(w, err)
		return
	}
	items, err := h.entretiens.List(r.Context(), actor, filter)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, items)
}

func (h *EntretienHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := withActor(w, r)
	if !ok {
		return
	}
	id, err := idParam(r, "id")
	if err != nil {
		response.Error(w, err)
		return
	}
	detail, err := h.entretiens.Get(r.Context(), actor, id)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, detail)
}

func (h *EntretienHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := withActor(w, r)
	if !ok {
		return
	}
	var req createEntretienRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, err)
		return
	}
	fields := map[string]string{}
	input := app.InterviewInput{
		Type:            interview.Type(strings.ToUpper(string(req.Type))),
		Format:          interview.Format(strings.ToUpper(string(req.Format))),
		Date:            strings.TrimSpace(req.Date),
		Time:            strings.TrimSpace(req.Time),
		DurationMinutes: req.DurationMinutes,
		Location:        req.Location,
		MeetingLink:     req.MeetingLink,
		MeetingID:       req.MeetingID,
		MeetingPassword: req.MeetingPassword,
		Title:           req.Title,
		Description:     req.Description,
	}
	var err error
	if input.CandidatureID, err = common.ParseUUID(req.CandidatureID); err != nil {
		fields["candidatureId"] = "doit être un UUID"
	}
	if input.ExaminerID, err = common.ParseUUID(req.ExaminerID); err != nil {
		fields["examinateurId"] = "doit être un UUID"
	}
	if strings.TrimSpace(req.PeriodID) != "" {
		if input.PeriodID, err = common.ParseUUID(req.PeriodID); err != nil {
			fields["periode"] = "doit être un UUID"
		}
	}
	if err := invalidFields(fields); err != nil {
		response.Error(w, err)
		return
	}
	created, err := h.entretiens.Create(r.Context(), actor, input)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusCreated, created)
}

func (h *EntretienHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, ok := withActor(w, r)
	if !ok {
		return
	}
	id, err := idParam(r, "id")
	if err != nil {
		response.Error(w, err)
		return
	}
	var req updateEntretienRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, err)
		return
	}
	updated, err := h.entretiens.Update(r.Context(), actor, id, app.InterviewPatch{
		Type:            req.Type,
		Format:          req.Format,
		Date:            req.Date,
		Time:            req.Time,
		DurationMinutes: req.DurationMinutes,
		Location:        req.Location,
		MeetingLink:     req.MeetingLink,
		MeetingID:       req.MeetingID,
		MeetingPassword: req.MeetingPassword,
		Title:           req.Title,
		Description:     req.Description,
		Status:          req.Status,
		Recommendation:  req.Recommendation,
	})
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, updated)
}

func (h *EntretienHandler) ListNotes(w http.ResponseWriter, r *http.Request) {
	actor, ok := withActor(w, r)
	if !ok {
		return
	}
	id, err := idParam(r, "id")
	if err != nil {
		response.Error(w, err)
		return
	}
	notes, err := h.entretiens.ListNotes(r.Context(), actor, id)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, notes)
}

func (h *EntretienHandler) AddNote(w http.ResponseWriter, r *http.Request) {
	actor, ok := withActor(w, r)
	if !ok {
		return
	}
	id, err := idParam(r, "id")
	if err != nil {
		response.Error(w, err)
		return
	}
	var req entretienNoteRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, err)
		return
	}
	note, err := h.entretiens.AddNote(r.Context(), actor, id, app.InterviewNoteInput{
		TechnicalEvaluation:   req.TechnicalEvaluation,
		CommunicationSkills:   req.CommunicationSkills,
		MotivationFit:         req.MotivationFit,
		OverallRecommendation: req.OverallRecommendation,
		TechnicalScore:        req.TechnicalScore,
		CommunicationScore:    req.CommunicationScore,
		MotivationScore:       req.MotivationScore,
		OverallScore:          req.OverallScore,
		Strengths:             req.Strengths,
		Weaknesses:            req.Weaknesses,
		AdditionalComments:    req.AdditionalComments,
		Complete:              req.Complete,
		Draft:                 req.Draft,
	})
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusCreated, note)
}

func (h *EntretienHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	actor, ok := withActor(w, r)
	if !ok {
		return
	}
	id, err := idParam(r, "id")
	if err != nil {
		response.Error(w, err)
		return
	}
	var req cancelRequest
	if err := decodeOptionalJSON(r, &req); err != nil {
		response.Error(w, err)
		return
	}
	cancelled, err := h.entretiens.Cancel(r.Context(), actor, id, req.Reason)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, cancelled)
}
