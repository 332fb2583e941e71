package expense

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"finelth-api/internal/observability"
)

const (
	maxJSONBodyBytes = 1 << 20
	maxNameLength    = 255

	defaultPage     = 1
	defaultPageSize = 20
	maxPageSize     = 100
	maxOffset       = 1 << 31
)

type Handler struct {
	repo   *Repository
	logger *observability.Logger
}

func NewHandler(repo *Repository, logger *observability.Logger) *Handler {
	return &Handler{repo: repo, logger: logger}
}

type nameInput struct {
	Name *string `json:"name"`
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	name, ok := parseName(w, r)
	if !ok {
		return
	}

	c, err := h.repo.Create(r.Context(), name)
	if err != nil {
		h.internalError(w, r, "create_expense_category_failed", err)
		return
	}

	writeData(w, http.StatusCreated, CategorySummary{ID: c.ID, Name: c.Name})
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	var details []fieldError
	page, detail := positiveQueryInt(query.Get("page"), "page", "Page", defaultPage)
	if detail != nil {
		details = append(details, *detail)
	}
	pageSize, detail := positiveQueryInt(query.Get("page_size"), "page_size", "Page size", defaultPageSize)
	if detail != nil {
		details = append(details, *detail)
	}
	if len(details) > 0 {
		writeValidation(w, details)
		return
	}

	pageSize = min(pageSize, maxPageSize)
	if page-1 > maxOffset/pageSize {
		writeValidation(w, []fieldError{{Path: "page", Message: "Page is out of range"}})
		return
	}
	offset := (page - 1) * pageSize

	result, err := h.repo.List(r.Context(), ListParams{
		Limit:  pageSize,
		Offset: offset,
		Search: query.Get("search"),
	})
	if err != nil {
		h.internalError(w, r, "list_expense_categories_failed", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"pagination": Pagination{
			Total:  result.Total,
			Count:  len(result.Items),
			Limit:  pageSize,
			Offset: offset,
		},
		"data": result.Items,
	})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	c, err := h.repo.Get(r.Context(), id)
	if err != nil {
		h.repoError(w, r, id, "get_expense_category_failed", err)
		return
	}

	writeData(w, http.StatusOK, c)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	name, ok := parseName(w, r)
	if !ok {
		return
	}

	c, err := h.repo.Update(r.Context(), id, name)
	if err != nil {
		h.repoError(w, r, id, "update_expense_category_failed", err)
		return
	}

	writeData(w, http.StatusOK, CategorySummary{ID: c.ID, Name: c.Name})
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	if err := h.repo.Delete(r.Context(), id); err != nil {
		h.repoError(w, r, id, "delete_expense_category_failed", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) repoError(w http.ResponseWriter, r *http.Request, id int64, event string, err error) {
	if errors.Is(err, ErrNotFound) {
		writeNotFound(w, id)
		return
	}
	h.internalError(w, r, event, err)
}

func (h *Handler) internalError(w http.ResponseWriter, r *http.Request, event string, err error) {
	observability.CaptureError(r.Context(), err)
	h.logger.ErrorContext(r.Context(), event, map[string]any{"error": err.Error()})
	writeJSON(w, http.StatusInternalServerError, errorBody{
		Status:  http.StatusInternalServerError,
		Error:   codeInternal,
		Message: messageUnexpected,
	})
}

func parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	switch {
	case err != nil:
		writeValidation(w, []fieldError{{Path: "id", Message: "ID must be an integer"}})
		return 0, false
	case id <= 0:
		writeValidation(w, []fieldError{{Path: "id", Message: "ID must be a positive number"}})
		return 0, false
	}
	return id, true
}

func parseName(w http.ResponseWriter, r *http.Request) (string, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	var input nameInput
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&input); err != nil {
		writeValidation(w, []fieldError{{Path: "", Message: "Invalid JSON body"}})
		return "", false
	}

	if input.Name == nil {
		writeValidation(w, []fieldError{{Path: "name", Message: "Name is required"}})
		return "", false
	}

	name := strings.TrimSpace(*input.Name)
	if name == "" {
		writeValidation(w, []fieldError{{Path: "name", Message: "Name must not be empty"}})
		return "", false
	}
	if !utf8.ValidString(name) || utf8.RuneCountInString(name) > maxNameLength {
		writeValidation(w, []fieldError{{Path: "name", Message: "Name must be at most 255 characters"}})
		return "", false
	}

	return name, true
}

// positiveQueryInt parses an optional positive integer query parameter.
func positiveQueryInt(raw, path, label string, fallback int) (int, *fieldError) {
	if raw == "" {
		return fallback, nil
	}

	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, &fieldError{Path: path, Message: label + " must be an integer"}
	}
	if value <= 0 {
		return 0, &fieldError{Path: path, Message: label + " must be a positive number"}
	}
	return value, nil
}
