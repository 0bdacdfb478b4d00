package handlers

import (
	"net/http"
	"strings"

	"admissions/internal/app"
	"admissions/internal/domain/notification"
	"admissions/internal/http/response"
)

type NotificationHandler struct {
	notifications *app.NotificationService
}

func NewNotificationHandler(notifications *app.NotificationService) *NotificationHandler {
	return &NotificationHandler{notifications: notifications}
}

type notificationRequest struct {
	Title      string                `json:"titre"`
	Content    string                `json:"contenu"`
	Type       notification.Type     `json:"type"`
	Audience   notification.Audience `json:"audience"`
	ProgramIDs []string              `json:"idsProgrammes"`
}

type markAllReadResponse struct {
	Updated int `json:"misesAJour"`
}

func (h *NotificationHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	actor, ok := withActor(w, r)
	if !ok {
		return
	}
	read, err := queryBool(r, "lue")
	if err != nil {
		response.Error(w, err)
		return
	}
	limit, err := queryInt(r, "limite", notification.DefaultInboxLimit)
	if err != nil {
		response.Error(w, err)
		return
	}
	items, err := h.notifications.ListMine(r.Context(), actor, notification.InboxFilter{
		Read:  read,
		Type:  notification.Type(strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("type")))),
		Limit: limit,
	})
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, items)
}

func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	actor, ok := withActor(w, r)
	if !ok {
		return
	}
	id, err := idParam(r, "id")
	if err != nil {
		response.Error(w, err)
		return
	}
	if err := h.notifications.MarkRead(r.Context(), actor, id); err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, messageResponse{Message: "notification lue"})
}

func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	actor, ok := withActor(w, r)
	if !ok {
		return
	}
	updated, err := h.notifications.MarkAllRead(r.Context(), actor)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, markAllReadResponse{Updated: updated})
}

func (h *NotificationHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := withActor(w, r)
	if !ok {
		return
	}
	var req notificationRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, err)
		return
	}
	ids, err := parseIDs(req.ProgramIDs, "idsProgrammes")
	if err != nil {
		response.Error(w, err)
		return
	}
	delivery, err := h.notifications.Create(r.Context(), actor, app.NotificationInput{
		Title:      req.Title,
		Content:    req.Content,
		Type:       notification.Type(strings.ToUpper(string(req.Type))),
		Audience:   notification.Audience(strings.ToUpper(string(req.Audience))),
		ProgramIDs: ids,
	})
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusCreated, delivery)
}

func (h *NotificationHandler) ListAdmin(w http.ResponseWriter, r *http.Request) {
	actor, ok := withActor(w, r)
	if !ok {
		return
	}
	report, err := h.notifications.ListAdmin(r.Context(), actor)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, report)
}

func (h *NotificationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := withActor(w, r)
	if !ok {
		return
	}
	id, err := idParam(r, "id")
	if err != nil {
		response.Error(w, err)
		return
	}
	if err := h.notifications.Delete(r.Context(), actor, id); err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, messageResponse{Message: "notification supprimée"})
}
