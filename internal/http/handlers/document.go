package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"admissions/internal/app"
	"admissions/internal/common"
	"admissions/internal/domain/document"
	"admissions/internal/http/response"
	"admissions/internal/storage"
)

// multipartOverhead leaves room for the form fields around the file part.
const multipartOverhead = 1 << 20

type DocumentHandler struct {
	documents *app.DocumentService
}

func NewDocumentHandler(documents *app.DocumentService) *DocumentHandler {
	return &DocumentHandler{documents: documents}
}

type verifyRequest struct {
	Status document.Status `json:"statut"`
	Notes  string          `json:"notes"`
}

func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	actor, ok := withActor(w, r)
	if !ok {
		return
	}
	candidatureID, err := idParam(r, "id")
	if err != nil {
		response.Error(w, err)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, document.MaxFileSize+multipartOverhead)
	if err := r.ParseMultipartForm(document.MaxFileSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Error(w, common.NewValidationError("fichier trop volumineux", map[string]string{"file": "taille maximale 5 Mo"}))
			return
		}
		response.Error(w, common.NewValidationError("formulaire multipart invalide", nil))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		response.Error(w, common.NewValidationError("fichier requis", map[string]string{"file": "requis"}))
		return
	}
	defer file.Close()

	input := app.UploadInput{
		File: &storage.File{
			Name:        header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Size:        header.Size,
			Body:        file,
		},
		Type:        document.NormalizeType(r.FormValue("type")),
		Title:       strings.TrimSpace(r.FormValue("titre")),
		Description: strings.TrimSpace(r.FormValue("description")),
	}
	if raw := strings.TrimSpace(r.FormValue("estObligatoire")); raw != "" {
		required, err := strconv.ParseBool(raw)
		if err != nil {
			response.Error(w, common.NewValidationError("paramètre invalide", map[string]string{"estObligatoire": "doit être un booléen"}))
			return
		}
		input.Required = &required
	}

	doc, err := h.documents.Upload(r.Context(), actor, candidatureID, input)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusCreated, doc)
}

func (h *DocumentHandler) ListForCandidature(w http.ResponseWriter, r *http.Request) {
	actor, ok := withActor(w, r)
	if !ok {
		return
	}
	candidatureID, err := idParam(r, "id")
	if err != nil {
		response.Error(w, err)
		return
	}
	docs, err := h.documents.ListForCandidature(r.Context(), actor, candidatureID)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, docs)
}

func (h *DocumentHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	actor, ok := withActor(w, r)
	if !ok {
		return
	}
	year, err := queryInt(r, "annee", 0)
	if err != nil {
		response.Error(w, err)
		return
	}
	docs, err := h.documents.ListAll(r.Context(), actor, year)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, docs)
}

func (h *DocumentHandler) Verify(w http.ResponseWriter, r *http.Request) {
	actor, ok := withActor(w, r)
	if !ok {
		return
	}
	id, err := idParam(r, "id")
	if err != nil {
		response.Error(w, err)
		return
	}
	var req verifyRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, err)
		return
	}
	doc, err := h.documents.Verify(r.Context(), actor, id, document.Status(strings.ToUpper(strings.TrimSpace(string(req.Status)))), req.Notes)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, doc)
}

func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := withActor(w, r)
	if !ok {
		return
	}
	id, err := idParam(r, "id")
	if err != nil {
		response.Error(w, err)
		return
	}
	if err := h.documents.Delete(r.Context(), actor, id); err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, messageResponse{Message: "document supprimé"})
}
