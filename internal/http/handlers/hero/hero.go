// Package hero contains all HTTP handlers related to the Hero resource.
//
// Each exported function is a factory: it receives its dependencies
// (the storage handle, and for New the conflict status) once at route
// registration, and returns the http.HandlerFunc that runs on every
// request. The closure is how the connection pool reaches the handler;
// there is no package-level database.
//
//	r.Post("/heroes/", hero.New(store, http.StatusNotFound))
package hero

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/aanand-mishra/heroes-api/internal/storage"
	"github.com/aanand-mishra/heroes-api/internal/types"
	"github.com/aanand-mishra/heroes-api/internal/utils/response"
)

// Messages clients see for the two domain errors.
const (
	msgNotFound      = "Hero not found"
	msgAlreadyExists = "Hero already exists"
)

// MaxListLimit caps ?limit on GET /heroes/.
const MaxListLimit = 100

// MaxBodyBytes caps request bodies. A hero is a few hundred bytes.
const MaxBodyBytes = 64 << 10

// validate is shared: a *validator.Validate caches struct metadata and
// is safe for concurrent use. Field names in messages use the json tag
// so clients see "secret_name", not "SecretName".
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ─────────────────────────────────────────────────────────────────────────────
// New handles POST /heroes/
//
// Request body (JSON), id optional:
//
//	{ "id": 1, "name": "Deadpond", "secret_name": "Dive Wilson" }
//
// Success response (200 OK), the stored hero:
//
//	{ "id": 1, "name": "Deadpond", "secret_name": "Dive Wilson", "age": null }
//
// Error responses:
//
//	conflictStatus  a hero with that id already exists
//	400             empty body, malformed JSON, or failed validation
//	500             database error
//
// ─────────────────────────────────────────────────────────────────────────────
func New(store storage.Storage, conflictStatus int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slog.InfoContext(r.Context(), "creating a hero")

		var in types.HeroCreate
		if !decodeBody(w, r, &in) {
			return
		}

		if err := validate.Struct(in); err != nil {
			var validateErrs validator.ValidationErrors
			if errors.As(err, &validateErrs) {
				response.WriteJSON(w, http.StatusBadRequest, response.ValidationError(validateErrs))
				return
			}
			response.WriteJSON(w, http.StatusBadRequest, response.GeneralError(err))
			return
		}

		hero, err := store.CreateHero(r.Context(), in)
		if err != nil {
			if errors.Is(err, storage.ErrConflict) {
				slog.InfoContext(r.Context(), "hero already exists")
				response.WriteJSON(w, conflictStatus, response.Message(msgAlreadyExists))
				return
			}
			writeStorageError(w, r, "creating hero", err)
			return
		}

		slog.InfoContext(r.Context(), "hero created", slog.Int64("id", hero.ID))
		response.WriteJSON(w, http.StatusOK, hero)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// GetList handles GET /heroes/
//
// Without query parameters every hero is returned. With ?offset= and/or
// ?limit= the list is paged; limit defaults to MaxListLimit and may not
// exceed it.
//
// Returns an empty array [] (not null) when there are no heroes.
// ─────────────────────────────────────────────────────────────────────────────
func GetList(store storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slog.InfoContext(r.Context(), "listing heroes")

		opts, err := listOptions(r)
		if err != nil {
			response.WriteJSON(w, http.StatusBadRequest, response.GeneralError(err))
			return
		}

		heroes, err := store.ListHeroes(r.Context(), opts)
		if err != nil {
			writeStorageError(w, r, "listing heroes", err)
			return
		}

		response.WriteJSON(w, http.StatusOK, heroes)
	}
}

// GetByID handles GET /heroes/{id}.
func GetByID(store storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		slog.InfoContext(r.Context(), "getting a hero", slog.Int64("id", id))

		hero, err := store.GetHeroByID(r.Context(), id)
		if err != nil {
			writeStorageError(w, r, "getting hero", err)
			return
		}

		response.WriteJSON(w, http.StatusOK, hero)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Update handles PATCH /heroes/{id}
//
// Merge-patch: only keys present in the body change. Sending
// "age": null clears the age; null is not accepted for the name fields.
//
//	{ "age": 30 }
//
// Success response (200 OK) is the full updated hero.
// ─────────────────────────────────────────────────────────────────────────────
func Update(store storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		slog.InfoContext(r.Context(), "updating a hero", slog.Int64("id", id))

		var patch types.HeroUpdate
		if !decodeBody(w, r, &patch) {
			return
		}

		if err := patch.Validate(); err != nil {
			response.WriteJSON(w, http.StatusBadRequest, response.GeneralError(err))
			return
		}

		hero, err := store.UpdateHeroByID(r.Context(), id, patch)
		if err != nil {
			writeStorageError(w, r, "updating hero", err)
			return
		}

		slog.InfoContext(r.Context(), "hero updated", slog.Int64("id", id))
		response.WriteJSON(w, http.StatusOK, hero)
	}
}

// Delete handles DELETE /heroes/{id} and answers { "Deleted": id }.
func Delete(store storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		slog.InfoContext(r.Context(), "deleting a hero", slog.Int64("id", id))

		if err := store.DeleteHeroByID(r.Context(), id); err != nil {
			writeStorageError(w, r, "deleting hero", err)
			return
		}

		slog.InfoContext(r.Context(), "hero deleted", slog.Int64("id", id))
		response.WriteJSON(w, http.StatusOK, map[string]int64{"Deleted": id})
	}
}

// decodeBody decodes exactly one JSON value from the body into v. On
// failure it has already written the error response and returns false.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	dec := json.NewDecoder(r.Body)

	err := dec.Decode(v)
	if err == nil {
		// Anything after the first value, other than whitespace, is an error.
		if _, extra := dec.Token(); !errors.Is(extra, io.EOF) {
			err = errors.New("request body must contain a single JSON object")
		}
	}

	var tooLarge *http.MaxBytesError
	switch {
	case err == nil:
		return true
	case errors.As(err, &tooLarge):
		response.WriteJSON(w, http.StatusRequestEntityTooLarge,
			response.GeneralError(fmt.Errorf("request body exceeds %d bytes", tooLarge.Limit)))
	case errors.Is(err, io.EOF):
		response.WriteJSON(w, http.StatusBadRequest,
			response.GeneralError(errors.New("request body is empty")))
	default:
		response.WriteJSON(w, http.StatusBadRequest, response.GeneralError(err))
	}
	return false
}

// pathID parses the {id} route parameter.
func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		response.WriteJSON(w, http.StatusBadRequest,
			response.GeneralError(errors.New("invalid id: must be an integer")))
		return 0, false
	}
	return id, true
}

func listOptions(r *http.Request) (storage.ListOptions, error) {
	q := r.URL.Query()
	if !q.Has("offset") && !q.Has("limit") {
		return storage.ListOptions{}, nil
	}

	opts := storage.ListOptions{Limit: MaxListLimit}
	if q.Has("offset") {
		n, err := strconv.Atoi(q.Get("offset"))
		if err != nil || n < 0 {
			return storage.ListOptions{}, errors.New("offset must be a non-negative integer")
		}
		opts.Offset = n
	}
	if q.Has("limit") {
		n, err := strconv.Atoi(q.Get("limit"))
		if err != nil || n < 1 || n > MaxListLimit {
			return storage.ListOptions{}, fmt.Errorf("limit must be an integer between 1 and %d", MaxListLimit)
		}
		opts.Limit = n
	}
	return opts, nil
}

// writeStorageError maps storage errors to responses. Anything that is
// not a domain error is logged and becomes a 500.
func writeStorageError(w http.ResponseWriter, r *http.Request, op string, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		response.WriteJSON(w, http.StatusNotFound, response.Message(msgNotFound))
		return
	}

	slog.ErrorContext(r.Context(), "error "+op, slog.String("error", err.Error()))
	response.WriteJSON(w, http.StatusInternalServerError, response.GeneralError(err))
}
