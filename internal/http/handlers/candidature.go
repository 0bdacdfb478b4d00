package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"admissions/internal/app"
	"admissions/internal/common"
	"admissions/internal/domain/candidature"
	"admissions/internal/domain/user"
	"admissions/internal/http/response"
)

type CandidatureHandler struct {
	candidatures *app.CandidatureService
}

func NewCandidatureHandler(candidatures *app.CandidatureService) *CandidatureHandler {
	return &CandidatureHandler{candidatures: candidatures}
}

type createCandidatureRequest struct {
	ProgramID   string `json:"programmeId"`
	PeriodID    string `json:"periodeId"`
	CandidateID string `json:"candidatId"`
}

type recordRequest struct {
	ID              string                 `json:"id"`
	Institution     string                 `json:"nomEtablissement"`
	InstitutionType string                 `json:"typeEtablissement"`
	City            string                 `json:"ville"`
	Country         string                 `json:"pays"`
	DegreeType      string                 `json:"typeDiplome"`
	FieldOfStudy    string                 `json:"domaineEtude"`
	Specialty       string                 `json:"specialite"`
	Honors          string                 `json:"mention"`
	Average         *float64               `json:"moyenne"`
	Scale           *float64               `json:"echelleMoyenne"`
	StartDate       *string                `json:"dateDebut"`
	EndDate         *string                `json:"dateFin"`
	GraduationDate  *string                `json:"dateObtentionDiplome"`
	Completed       bool                   `json:"estTermine"`
	Semesters       []candidature.Semester `json:"semestres"`
}

func (req recordRequest) toRecord(key string, fields map[string]string) candidature.AcademicRecord {
	rec := candidature.AcademicRecord{
		Institution:     req.Institution,
		InstitutionType: req.InstitutionType,
		City:            req.City,
		Country:         req.Country,
		DegreeType:      req.DegreeType,
		FieldOfStudy:    req.FieldOfStudy,
		Specialty:       req.Specialty,
		Honors:          req.Honors,
		Average:         req.Average,
		Scale:           req.Scale,
		StartDate:       parseOptionalDate(req.StartDate, key+".dateDebut", fields),
		EndDate:         parseOptionalDate(req.EndDate, key+".dateFin", fields),
		GraduationDate:  parseOptionalDate(req.GraduationDate, key+".dateObtentionDiplome", fields),
		Completed:       req.Completed,
		Semesters:       req.Semesters,
	}
	if strings.TrimSpace(req.ID) != "" {
		id, err := common.ParseUUID(req.ID)
		if err != nil {
			fields[key+".id"] = "doit être un UUID"
		}
		rec.ID = id
	}
	return rec
}

func toRecords(reqs []recordRequest, fields map[string]string) []candidature.AcademicRecord {
	if reqs == nil {
		return nil
	}
	records := make([]candidature.AcademicRecord, 0, len(reqs))
	for i, req := range reqs {
		records = append(records, req.toRecord("dossierAcademique["+strconv.Itoa(i)+"]", fields))
	}
	return records
}

type identityRequest struct {
	FirstName   *string `json:"prenom"`
	LastName    *string `json:"nom"`
	Email       *string `json:"email"`
	Phone       *string `json:"telephone"`
	BirthDate   *string `json:"dateNaissance"`
	Gender      *string `json:"genre"`
	Nationality *string `json:"nationalite"`
	Address     *string `json:"adresse"`
	City        *string `json:"ville"`
	Province    *string `json:"province"`
	Country     *string `json:"pays"`
	NationalID  *string `json:"numeroCIN"`
}

func (req identityRequest) patches(fields map[string]string) (user.IdentityPatch, user.CandidateProfilePatch) {
	identity := user.IdentityPatch{FirstName: req.FirstName, LastName: req.LastName, Email: req.Email, Phone: req.Phone}
	profile := user.CandidateProfilePatch{
		BirthDate:   parseOptionalDate(req.BirthDate, "dateNaissance", fields),
		Gender:      req.Gender,
		Nationality: req.Nationality,
		Address:     req.Address,
		City:        req.City,
		Province:    req.Province,
		Country:     req.Country,
		NationalID:  req.NationalID,
	}
	return identity, profile
}

type updateCandidatureRequest struct {
	identityRequest
	Progress        *int            `json:"progression"`
	Statement       *string         `json:"statement"`
	AcademicRecords []recordRequest `json:"dossierAcademique"`
}

type decisionRequest struct {
	Status   *candidature.Status   `json:"statut"`
	Priority *candidature.Priority `json:"priorite"`
	Decision *string               `json:"decision"`
	Reason   *string               `json:"raisonDecision"`
	Force    bool                  `json:"forcer"`
}

type applicationInfoRequest struct {
	Statement       *string                 `json:"statement"`
	FirstName       *string                 `json:"prenom"`
	LastName        *string                 `json:"nom"`
	Phone           *string                 `json:"telephone"`
	Address         *string                 `json:"adresse"`
	City            *string                 `json:"ville"`
	Country         *string                 `json:"pays"`
	AcademicRecords []recordRequest         `json:"dossierAcademique"`
	References      []candidature.Reference `json:"references"`
}

type contactRequest struct {
	Phone    *string `json:"telephone"`
	Address  *string `json:"adresse"`
	City     *string `json:"ville"`
	Province *string `json:"province"`
	Country  *string `json:"pays"`
}

type withdrawRequest struct {
	Reason string `json:"raison"`
}

type noteRequest struct {
	Content string               `json:"contenu"`
	Type    candidature.NoteType `json:"type"`
}

func (h *CandidatureHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := withActor(w, r)
	if !ok {
		return
	}
	filter, err := candidatureFilter(r)
	if err != nil {
		response.Error(w, err)
		return
	}
	list, err := h.candidatures.List(r.Context(), actor, filter)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, list)
}

func candidatureFilter(r *http.Request) (candidature.Filter, error) {
	query := r.URL.Query()
	filter := candidature.Filter{
		Status: candidature.Status(strings.ToUpper(strings.TrimSpace(query.Get("statut")))),
		Search: strings.TrimSpace(query.Get("recherche")),
	}
	var err error
	if filter.ProgramID, err = queryUUID(r, "programme"); err != nil {
		return filter, err
	}
	if filter.PeriodID, err = queryUUID(r, "periode"); err != nil {
		return filter, err
	}
	if filter.Page, err = queryInt(r, "page", 1); err != nil {
		return filter, err
	}
	if filter.Limit, err = queryInt(r, "limite", 0); err != nil {
		return filter, err
	}
	return filter, nil
}

func (h *CandidatureHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := withActor(w, r)
	if !ok {
		return
	}
	var req createCandidatureRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, err)
		return
	}
	fields := map[string]string{}
	input := app.CreateCandidatureInput{}
	var err error
	if input.ProgramID, err = common.ParseUUID(req.ProgramID); err != nil {
		fields["programmeId"] = "doit être un UUID"
	}
	if input.PeriodID, err = common.ParseUUID(req.PeriodID); err != nil {
		fields["periodeId"] = "doit être un UUID"
	}
	if strings.TrimSpace(req.CandidateID) != "" {
		if input.CandidateID, err = common.ParseUUID(req.CandidateID); err != nil {
			fields["candidatId"] = "doit être un UUID"
		}
	}
	if err := invalidFields(fields); err != nil {
		response.Error(w, err)
		return
	}
	created, err := h.candidatures.Create(r.Context(), actor, input)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusCreated, created)
}

func (h *CandidatureHandler) ActiveStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := withActor(w, r)
	if !ok {
		return
	}
	status, err := h.candidatures.ActiveStatus(r.Context(), actor)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, status)
}

func (h *CandidatureHandler) ActivePeriods(w http.ResponseWriter, r *http.Request) {
	periods, err := h.candidatures.ActivePeriods(r.Context())
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, periods)
}

func (h *CandidatureHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	actor, ok := withActor(w, r)
	if !ok {
		return
	}
	items, err := h.candidatures.ListMine(r.Context(), actor)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, items)
}

func (h *CandidatureHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := withActor(w, r)
	if !ok {
		return
	}
	id, err := idParam(r, "id")
	if err != nil {
		response.Error(w, err)
		return
	}
	detail, err := h.candidatures.Get(r.Context(), actor, id)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, detail)
}

func (h *CandidatureHandler) GetMine(w http.ResponseWriter, r *http.Request) {
	actor, ok := withActor(w, r)
	if !ok {
		return
	}
	id, err := idParam(r, "id")
	if err != nil {
		response.Error(w, err)
		return
	}
	detail, err := h.candidatures.GetMine(r.Context(), actor, id)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, detail)
}

func (h *CandidatureHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, ok := withActor(w, r)
	if !ok {
		return
	}
	id, err := idParam(r, "id")
	if err != nil {
		response.Error(w, err)
		return
	}
	var req updateCandidatureRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, err)
		return
	}
	fields := map[string]string{}
	identity, profile := req.patches(fields)
	input := app.CandidatureUpdate{
		Identity:        identity,
		Profile:         profile,
		Progress:        req.Progress,
		Statement:       req.Statement,
		AcademicRecords: toRecords(req.AcademicRecords, fields),
	}
	if err := invalidFields(fields); err != nil {
		response.Error(w, err)
		return
	}
	updated, err := h.candidatures.Update(r.Context(), actor, id, input)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, updated)
}

func (h *CandidatureHandler) UpdateDecision(w http.ResponseWriter, r *http.Request) {
	actor, ok := withActor(w, r)
	if !ok {
		return
	}
	id, err := idParam(r, "id")
	if err != nil {
		response.Error(w, err)
		return
	}
	var req decisionRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, err)
		return
	}
	updated, err := h.candidatures.UpdateDecision(r.Context(), actor, id, app.DecisionInput{
		Status:   req.Status,
		Priority: req.Priority,
		Decision: req.Decision,
		Reason:   req.Reason,
		Force:    req.Force,
	})
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, updated)
}

func (h *CandidatureHandler) UpdateApplicationInfo(w http.ResponseWriter, r *http.Request) {
	actor, ok := withActor(w, r)
	if !ok {
		return
	}
	id, err := idParam(r, "id")
	if err != nil {
		response.Error(w, err)
		return
	}
	var req applicationInfoRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, err)
		return
	}
	fields := map[string]string{}
	input := app.ApplicationInfo{
		Statement:       req.Statement,
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		Phone:           req.Phone,
		Address:         req.Address,
		City:            req.City,
		Country:         req.Country,
		AcademicRecords: toRecords(req.AcademicRecords, fields),
		References:      req.References,
	}
	if err := invalidFields(fields); err != nil {
		response.Error(w, err)
		return
	}
	updated, err := h.candidatures.UpdateApplicationInfo(r.Context(), actor, id, input)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, updated)
}

func (h *CandidatureHandler) UpdatePersonalInfo(w http.ResponseWriter, r *http.Request) {
	actor, ok := withActor(w, r)
	if !ok {
		return
	}
	id, err := idParam(r, "id")
	if err != nil {
		response.Error(w, err)
		return
	}
	var req identityRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, err)
		return
	}
	fields := map[string]string{}
	identity, profile := req.patches(fields)
	if err := invalidFields(fields); err != nil {
		response.Error(w, err)
		return
	}
	updated, err := h.candidatures.UpdatePersonalInfo(r.Context(), actor, id, app.PersonalInfo{Identity: identity, Profile: profile})
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, updated)
}

func (h *CandidatureHandler) UpdateMine(w http.ResponseWriter, r *http.Request) {
	actor, ok := withActor(w, r)
	if !ok {
		return
	}
	id, err := idParam(r, "id")
	if err != nil {
		response.Error(w, err)
		return
	}
	var req contactRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, err)
		return
	}
	updated, err := h.candidatures.UpdateMyContact(r.Context(), actor, id, app.ContactUpdate{
		Phone:    req.Phone,
		Address:  req.Address,
		City:     req.City,
		Province: req.Province,
		Country:  req.Country,
	})
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, updated)
}

func (h *CandidatureHandler) Submit(w http.ResponseWriter, r *http.Request) {
	actor, ok := withActor(w, r)
	if !ok {
		return
	}
	id, err := idParam(r, "id")
	if err != nil {
		response.Error(w, err)
		return
	}
	submitted, err := h.candidatures.Submit(r.Context(), actor, id)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, submitted)
}

func (h *CandidatureHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	actor, ok := withActor(w, r)
	if !ok {
		return
	}
	id, err := idParam(r, "id")
	if err != nil {
		response.Error(w, err)
		return
	}
	var req withdrawRequest
	if err := decodeOptionalJSON(r, &req); err != nil {
		response.Error(w, err)
		return
	}
	withdrawn, err := h.candidatures.Withdraw(r.Context(), actor, id, req.Reason)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, withdrawn)
}

func (h *CandidatureHandler) ListAcademicRecords(w http.ResponseWriter, r *http.Request) {
	actor, ok := withActor(w, r)
	if !ok {
		return
	}
	id, err := idParam(r, "id")
	if err != nil {
		response.Error(w, err)
		return
	}
	records, err := h.candidatures.ListAcademicRecords(r.Context(), actor, id)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, records)
}

func (h *CandidatureHandler) decodeRecord(r *http.Request) (candidature.AcademicRecord, error) {
	var req recordRequest
	if err := decodeJSON(r, &req); err != nil {
		return candidature.AcademicRecord{}, err
	}
	fields := map[string]string{}
	req.ID = ""
	rec := req.toRecord("dossierAcademique", fields)
	return rec, invalidFields(fields)
}

func (h *CandidatureHandler) AddAcademicRecord(w http.ResponseWriter, r *http.Request) {
	actor, ok := withActor(w, r)
	if !ok {
		return
	}
	id, err := idParam(r, "id")
	if err != nil {
		response.Error(w, err)
		return
	}
	rec, err := h.decodeRecord(r)
	if err != nil {
		response.Error(w, err)
		return
	}
	created, err := h.candidatures.AddAcademicRecord(r.Context(), actor, id, rec)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusCreated, created)
}

func (h *CandidatureHandler) UpdateAcademicRecord(w http.ResponseWriter, r *http.Request) {
	actor, ok := withActor(w, r)
	if !ok {
		return
	}
	id, err := idParam(r, "id")
	if err != nil {
		response.Error(w, err)
		return
	}
	recordID, err := idParam(r, "dossierId")
	if err != nil {
		response.Error(w, err)
		return
	}
	rec, err := h.decodeRecord(r)
	if err != nil {
		response.Error(w, err)
		return
	}
	updated, err := h.candidatures.UpdateAcademicRecord(r.Context(), actor, id, recordID, rec)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, updated)
}

func (h *CandidatureHandler) DeleteAcademicRecord(w http.ResponseWriter, r *http.Request) {
	actor, ok := withActor(w, r)
	if !ok {
		return
	}
	id, err := idParam(r, "id")
	if err != nil {
		response.Error(w, err)
		return
	}
	recordID, err := idParam(r, "dossierId")
	if err != nil {
		response.Error(w, err)
		return
	}
	if err := h.candidatures.DeleteAcademicRecord(r.Context(), actor, id, recordID); err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, messageResponse{Message: "dossier académique supprimé"})
}

func (h *CandidatureHandler) ListNotes(w http.ResponseWriter, r *http.Request) {
	actor, ok := withActor(w, r)
	if !ok {
		return
	}
	id, err := idParam(r, "id")
	if err != nil {
		response.Error(w, err)
		return
	}
	notes, err := h.candidatures.ListNotes(r.Context(), actor, id)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, notes)
}

func (h *CandidatureHandler) AddNote(w http.ResponseWriter, r *http.Request) {
	actor, ok := withActor(w, r)
	if !ok {
		return
	}
	id, err := idParam(r, "id")
	if err != nil {
		response.Error(w, err)
		return
	}
	var req noteRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, err)
		return
	}
	note, err := h.candidatures.AddNote(r.Context(), actor, id, app.NoteInput{Content: req.Content, Type: req.Type})
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusCreated, note)
}

func (h *CandidatureHandler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	actor, ok := withActor(w, r)
	if !ok {
		return
	}
	id, err := idParam(r, "id")
	if err != nil {
		response.Error(w, err)
		return
	}
	noteID, err := idParam(r, "noteId")
	if err != nil {
		response.Error(w, err)
		return
	}
	if err := h.candidatures.DeleteNote(r.Context(), actor, id, noteID); err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, messageResponse{Message: "note supprimée"})
}
