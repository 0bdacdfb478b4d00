package handlers

import (
	"net/http"
	"strings"

	"admissions/internal/app"
	"admissions/internal/domain/user"
	"admissions/internal/http/response"
)

type UserHandler struct {
	users *app.UserService
}

func NewUserHandler(users *app.UserService) *UserHandler {
	return &UserHandler{users: users}
}

type updateUserRequest struct {
	FirstName *string      `json:"prenom"`
	LastName  *string      `json:"nom"`
	Email     *string      `json:"email"`
	Phone     *string      `json:"telephone"`
	Role      *string      `json:"role"`
	Status    *user.Status `json:"statut"`
	Password  *string      `json:"password"`
}

type profileRequest struct {
	BirthDate   *string `json:"dateNaissance"`
	Gender      *string `json:"genre"`
	Nationality *string `json:"nationalite"`
	Address     *string `json:"adresse"`
	City        *string `json:"ville"`
	Province    *string `json:"province"`
	Country     *string `json:"pays"`
	NationalID  *string `json:"numeroCIN"`

	Department          *string  `json:"departement"`
	Title               *string  `json:"titre"`
	Specializations     []string `json:"specialisation"`
	MaxInterviewsPerDay *int     `json:"maxEntretiensParJour"`
	AssignedPrograms    []string `json:"programmesAssignes"`
}

func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := user.Filter{
		Status: user.Status(strings.ToUpper(strings.TrimSpace(query.Get("statut")))),
		Search: strings.TrimSpace(query.Get("recherche")),
	}
	if raw := strings.TrimSpace(query.Get("role")); raw != "" {
		filter.Role = user.NormalizeRole(raw)
	}
	var err error
	if filter.Page, err = queryInt(r, "page", 1); err != nil {
		response.Error(w, err)
		return
	}
	if filter.Limit, err = queryInt(r, "limite", 0); err != nil {
		response.Error(w, err)
		return
	}
	list, err := h.users.List(r.Context(), filter)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, list)
}

func (h *UserHandler) ListExaminers(w http.ResponseWriter, r *http.Request) {
	examiners, err := h.users.ListExaminers(r.Context())
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, examiners)
}

func (h *UserHandler) ListCandidates(w http.ResponseWriter, r *http.Request) {
	candidates, err := h.users.ListCandidates(r.Context())
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, candidates)
}

func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		response.Error(w, err)
		return
	}
	account, err := h.users.Get(r.Context(), id)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, account)
}

func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		response.Error(w, err)
		return
	}
	var req updateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, err)
		return
	}
	input := app.UserUpdate{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Phone:     req.Phone,
		Password:  req.Password,
	}
	if req.Role != nil {
		role := user.NormalizeRole(*req.Role)
		input.Role = &role
	}
	if req.Status != nil {
		status := user.Status(strings.ToUpper(strings.TrimSpace(string(*req.Status))))
		input.Status = &status
	}
	account, err := h.users.Update(r.Context(), id, input)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, account)
}

func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		response.Error(w, err)
		return
	}
	if err := h.users.Delete(r.Context(), id); err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, messageResponse{Message: "utilisateur supprimé"})
}

func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	actor, ok := withActor(w, r)
	if !ok {
		return
	}
	id, err := idParam(r, "id")
	if err != nil {
		response.Error(w, err)
		return
	}
	var req profileRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, err)
		return
	}
	fields := map[string]string{}
	input := app.ProfileUpdate{
		Candidate: user.CandidateProfilePatch{
			BirthDate:   parseOptionalDate(req.BirthDate, "dateNaissance", fields),
			Gender:      req.Gender,
			Nationality: req.Nationality,
			Address:     req.Address,
			City:        req.City,
			Province:    req.Province,
			Country:     req.Country,
			NationalID:  req.NationalID,
		},
		Department:          req.Department,
		Title:               req.Title,
		Specializations:     req.Specializations,
		MaxInterviewsPerDay: req.MaxInterviewsPerDay,
	}
	if input.AssignedPrograms, err = parseIDs(req.AssignedPrograms, "programmesAssignes"); err != nil {
		response.Error(w, err)
		return
	}
	if err := invalidFields(fields); err != nil {
		response.Error(w, err)
		return
	}
	account, err := h.users.UpdateProfile(r.Context(), actor, id, input)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, account)
}
