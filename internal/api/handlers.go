package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/inkday/internal/apperr"
	"github.com/starford/inkday/internal/diary"
	"github.com/starford/inkday/internal/diaryservice"
)

const maxBodyBytes = 10 << 20

// Handler holds API route handlers.
type Handler struct {
	svc DiaryService
}

// NewHandler creates a new Handler.
func NewHandler(svc DiaryService) *Handler {
	return &Handler{svc: svc}
}

// Load handles GET /load.
//
//	@Summary		Load the whole calendar from the Markdown document
//	@Description	Every DateKey maps to its events; lastSavedTimestamp is a string.
//	@Tags			sync
//	@Produce		json
//	@Success		200	{object}	map[string]any
//	@Security		BearerAuth
//	@Router			/load [get]
func (h *Handler) Load(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Load(r.Context())
	if err != nil {
		slog.Error("load failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}

	body := make(map[string]any, len(res.Calendar)+1)
	for key, events := range res.Calendar {
		body[string(key)] = events
	}
	body[diary.TimestampKey] = res.LastSavedTimestamp

	if res.ETag != "" {
		w.Header().Set("ETag", res.ETag)
	}
	writeJSON(w, http.StatusOK, body)
}

// Save handles POST /save.
//
//	@Summary		Save the whole calendar to the Markdown document
//	@Description	Keys that are not DateKeys with array values are ignored.
//	@Tags			sync
//	@Accept			json
//	@Produce		json
//	@Param			If-Match	header		string	false	"ETag of the document being replaced"
//	@Success		200			{object}	SaveResponse
//	@Failure		400			{object}	errResponse
//	@Failure		409			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/save [post]
func (h *Handler) Save(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var payload map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload == nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}

	cal, ts := calendarFromPayload(payload)
	res, err := h.svc.Save(r.Context(), diaryservice.SaveRequest{
		Calendar:           cal,
		LastSavedTimestamp: ts,
		IfMatch:            r.Header.Get("If-Match"),
	})
	if err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			writeJSON(w, http.StatusConflict, errorBody("document changed since it was loaded"))
			return
		}
		slog.Error("save failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	w.Header().Set("ETag", res.ETag)
	writeJSON(w, http.StatusOK, SaveResponse{
		Status:             "saved",
		LastSavedTimestamp: res.LastSavedTimestamp,
		Days:               res.Days,
	})
}

// calendarFromPayload keeps DateKey entries whose value is an array and pulls
// out lastSavedTimestamp, which may be a JSON number or string.
func calendarFromPayload(payload map[string]json.RawMessage) (diary.CalendarMap, string) {
	cal := make(diary.CalendarMap)
	ts := ""
	for key, raw := range payload {
		raw = bytes.TrimSpace(raw)
		if key == diary.TimestampKey {
			ts = timestampValue(raw)
			continue
		}
		if !dateKeyRe.MatchString(key) || len(raw) == 0 || raw[0] != '[' {
			continue
		}
		var events []diary.RawEvent
		if err := json.Unmarshal(raw, &events); err != nil {
			continue
		}
		cal[diary.DateKey(key)] = diary.Normalize(events)
	}
	return cal, ts
}

func timestampValue(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

// Export handles GET /export.
//
//	@Summary		Export the diary as Markdown
//	@Tags			document
//	@Produce		plain
//	@Success		200	{string}	string
//	@Security		BearerAuth
//	@Router			/export [get]
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	text, err := h.svc.Export(r.Context())
	if err != nil {
		slog.Error("export failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="diary.md"`)
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, text)
}

// Import handles POST /import.
//
//	@Summary		Replace the diary with an uploaded Markdown document
//	@Tags			document
//	@Accept			plain
//	@Produce		json
//	@Success		200	{object}	SaveResponse
//	@Failure		400	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/import [post]
func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	data, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read body"))
		return
	}
	res, err := h.svc.Import(r.Context(), string(data))
	if err != nil {
		slog.Error("import failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	w.Header().Set("ETag", res.ETag)
	writeJSON(w, http.StatusOK, SaveResponse{
		Status:             "imported",
		LastSavedTimestamp: res.LastSavedTimestamp,
		Days:               res.Days,
	})
}

// dayKey extracts and validates the {key} URL parameter.
func dayKey(w http.ResponseWriter, r *http.Request) (diary.DateKey, bool) {
	key := chi.URLParam(r, "key")
	if err := validateDateKey(key); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return "", false
	}
	return diary.DateKey(key), true
}

// GetDay handles GET /days/{key}.
//
//	@Summary		Get the events of one day
//	@Tags			days
//	@Produce		json
//	@Param			key	path		string	true	"DateKey, e.g. 2_14_2024"
//	@Success		200	{object}	DayResponse
//	@Failure		400	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/days/{key} [get]
func (h *Handler) GetDay(w http.ResponseWriter, r *http.Request) {
	key, ok := dayKey(w, r)
	if !ok {
		return
	}
	events, err := h.svc.GetDay(r.Context(), key)
	if err != nil {
		h.dayError(w, key, "get day", err)
		return
	}
	writeJSON(w, http.StatusOK, DayResponse{DateKey: key, Events: events})
}

// PutDay handles PUT /days/{key}.
//
//	@Summary		Replace the events of one day
//	@Tags			days
//	@Accept			json
//	@Produce		json
//	@Param			key		path		string			true	"DateKey"
//	@Param			body	body		PutDayRequest	true	"Events"
//	@Success		200		{object}	DayResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/days/{key} [put]
func (h *Handler) PutDay(w http.ResponseWriter, r *http.Request) {
	key, ok := dayKey(w, r)
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req PutDayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	events, err := h.svc.PutDay(r.Context(), key, diary.Normalize(req.Events))
	if err != nil {
		h.dayError(w, key, "put day", err)
		return
	}
	writeJSON(w, http.StatusOK, DayResponse{DateKey: key, Events: events})
}

// AddEvent handles POST /days/{key}/events.
//
//	@Summary		Append one event to a day
//	@Tags			days
//	@Accept			json
//	@Produce		json
//	@Param			key		path		string			true	"DateKey"
//	@Param			body	body		AddEventRequest	true	"Event"
//	@Success		201		{object}	DayResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/days/{key}/events [post]
func (h *Handler) AddEvent(w http.ResponseWriter, r *http.Request) {
	key, ok := dayKey(w, r)
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req AddEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	events, err := h.svc.AddEvent(r.Context(), key, diary.Event{
		Text:      req.Text,
		Completed: req.Completed,
		Tags:      req.Tags,
	})
	if err != nil {
		h.dayError(w, key, "add event", err)
		return
	}
	writeJSON(w, http.StatusCreated, DayResponse{DateKey: key, Events: events})
}

// DeleteDay handles DELETE /days/{key}.
//
//	@Summary		Delete a day
//	@Tags			days
//	@Param			key	path	string	true	"DateKey"
//	@Success		204	"Day deleted"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/days/{key} [delete]
func (h *Handler) DeleteDay(w http.ResponseWriter, r *http.Request) {
	key, ok := dayKey(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeleteDay(r.Context(), key); err != nil {
		h.dayError(w, key, "delete day", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) dayError(w http.ResponseWriter, key diary.DateKey, op string, err error) {
	switch {
	case errors.Is(err, apperr.ErrInvalidDateKey):
		writeJSON(w, http.StatusBadRequest, errorBody("invalid date key"))
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	default:
		slog.Error(op+" failed", slog.String("dateKey", string(key)), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}

// Search handles GET /search.
//
//	@Summary		Search event text and tags
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.svc.Search(r.Context(), q, limit)
	if err != nil {
		slog.Error("search failed", slog.String("query", q), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}

// Tags handles GET /tags.
//
//	@Summary		List tags with usage counts
//	@Tags			search
//	@Produce		json
//	@Success		200	{object}	TagsResponse
//	@Security		BearerAuth
//	@Router			/tags [get]
func (h *Handler) Tags(w http.ResponseWriter, r *http.Request) {
	tags, err := h.svc.Tags(r.Context())
	if err != nil {
		slog.Error("tags failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, TagsResponse{Tags: tags})
}
