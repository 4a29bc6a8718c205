package assets

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"nocap-editor/core"
	"nocap-editor/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"
)

type createRequest struct {
	URL  string `json:"url"`
	Name string `json:"name,omitempty"`
	Size int64  `json:"size,omitempty"`
	Type string `json:"type,omitempty"`
}

func fail(w http.ResponseWriter, r *http.Request, status int, msg string) {
	render.Status(r, status)
	render.JSON(w, r, map[string]string{"error": msg})
}

func subject(w http.ResponseWriter, r *http.Request) (string, bool) {
	claims, ok := middleware.ClaimsFrom(r.Context())
	if !ok {
		fail(w, r, http.StatusUnauthorized, "User claims not found")
		return "", false
	}
	return claims.Subject, true
}

func HandleList(store core.AssetStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := subject(w, r)
		if !ok {
			return
		}
		assets, err := store.ListAssets(r.Context(), userID)
		if err != nil {
			logrus.WithError(err).WithField("user_id", userID).Error("Failed to list assets")
			fail(w, r, http.StatusInternalServerError, "Failed to list assets")
			return
		}
		if assets == nil {
			assets = []*core.Asset{}
		}
		render.JSON(w, r, assets)
	}
}

// HandleCreate registers an already uploaded file. The upload itself happens
// elsewhere; only its public URL is stored.
func HandleCreate(store core.AssetStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := subject(w, r)
		if !ok {
			return
		}

		var req createRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			fail(w, r, http.StatusBadRequest, "Invalid request body")
			return
		}
		u, err := url.Parse(req.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https" && u.Scheme != "data") {
			fail(w, r, http.StatusBadRequest, "Asset url must be http, https or data")
			return
		}
		if req.Size < 0 {
			fail(w, r, http.StatusBadRequest, "Asset size cannot be negative")
			return
		}

		asset, err := store.CreateAsset(r.Context(), core.NewAsset{
			UserID: userID,
			URL:    req.URL,
			Name:   req.Name,
			Size:   req.Size,
			Type:   req.Type,
		})
		if err != nil {
			logrus.WithError(err).WithField("user_id", userID).Error("Failed to create asset")
			fail(w, r, http.StatusInternalServerError, "Failed to create asset")
			return
		}
		render.Status(r, http.StatusCreated)
		render.JSON(w, r, asset)
	}
}

// HandleDelete removes an asset owned by the caller. Ownership is checked
// against the caller's listing since stores expose no single-asset lookup.
func HandleDelete(store core.AssetStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := subject(w, r)
		if !ok {
			return
		}
		id := chi.URLParam(r, "id")
		log := logrus.WithFields(logrus.Fields{"user_id": userID, "asset_id": id})

		assets, err := store.ListAssets(r.Context(), userID)
		if err != nil {
			log.WithError(err).Error("Failed to list assets")
			fail(w, r, http.StatusInternalServerError, "Failed to delete asset")
			return
		}
		found := false
		for _, a := range assets {
			if a.ID == id {
				found = true
				break
			}
		}
		if !found {
			log.Warn("Asset not found for deletion")
			fail(w, r, http.StatusNotFound, "Asset not found")
			return
		}

		if err := store.DeleteAsset(r.Context(), id); err != nil {
			if errors.Is(err, core.ErrAssetNotFound) {
				fail(w, r, http.StatusNotFound, "Asset not found")
				return
			}
			log.WithError(err).Error("Failed to delete asset")
			fail(w, r, http.StatusInternalServerError, "Failed to delete asset")
			return
		}
		render.NoContent(w, r)
	}
}

// Routes mounts the asset handlers. Callers add authentication.
func Routes(store core.AssetStore) chi.Router {
	r := chi.NewRouter()
	r.Get("/", HandleList(store))
	r.Post("/", HandleCreate(store))
	r.Delete("/{id}", HandleDelete(store))
	return r
}
