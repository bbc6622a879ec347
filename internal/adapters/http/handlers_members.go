package web

import (
	"errors"
	"net/http"
	"path/filepath"
	"strings"

	"accesspanel/internal/adapters/storage/portrait"
	"accesspanel/internal/application/orchestrators"
	"accesspanel/internal/application/projections"
)

// multipartOverhead is the slack allowed above portrait.MaxSize for form framing.
const multipartOverhead = 1 << 20

// handleMembers handles GET (list) and POST (register) for /api/members
func handleMembers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	switch r.Method {
	case http.MethodGet:
		query := projections.GetMemberListQuery{
			Search: r.URL.Query().Get("q"),
			Limit:  queryInt(r, "limit", projections.DefaultPageSize),
			Offset: queryInt(r, "offset", 0),
		}
		result, err := projections.QueryGetMemberList(ctx, query, projections.GetMemberListDeps{
			MemberStore: stores.MemberStore,
			Now:         timeNow,
		})
		if err != nil {
			internalError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)

	case http.MethodPost:
		var input orchestrators.RegisterMemberInput
		if err := strictDecode(w, r, &input); err != nil {
			http.Error(w, "Invalid request", http.StatusBadRequest)
			return
		}
		m, err := orchestrators.ExecuteRegisterMember(ctx, input, orchestrators.RegisterMemberDeps{
			MemberStore: stores.MemberStore,
			Notifier:    services.Notifier,
			Now:         timeNow,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		view, err := projections.QueryGetMember(ctx, m.ID, memberViewDeps())
		if err != nil {
			internalError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, view)

	default:
		methodNotAllowed(w, "GET, POST")
	}
}

// handleMember handles GET, PUT and DELETE for /api/members/{id}
func handleMember(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	switch r.Method {
	case http.MethodGet:
		view, err := projections.QueryGetMember(ctx, id, memberViewDeps())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, view)

	case http.MethodPut:
		var input orchestrators.UpdateMemberInput
		if err := strictDecode(w, r, &input); err != nil {
			http.Error(w, "Invalid request", http.StatusBadRequest)
			return
		}
		if input.ID != "" && input.ID != id {
			http.Error(w, "id in body does not match path", http.StatusBadRequest)
			return
		}
		input.ID = id
		if _, err := orchestrators.ExecuteUpdateMember(ctx, input, orchestrators.UpdateMemberDeps{
			MemberStore: stores.MemberStore,
			Notifier:    services.Notifier,
		}); err != nil {
			writeError(w, err)
			return
		}
		view, err := projections.QueryGetMember(ctx, id, memberViewDeps())
		if err != nil {
			internalError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, view)

	case http.MethodDelete:
		err := orchestrators.ExecuteDeleteMember(ctx, id, orchestrators.DeleteMemberDeps{
			MemberStore: stores.MemberStore,
			Portraits:   portraitStore(),
			Notifier:    services.Notifier,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		methodNotAllowed(w, "GET, PUT, DELETE")
	}
}

// handlePortraitUpload handles POST /api/members/{id}/portrait (multipart field "portrait")
func handlePortraitUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, portrait.MaxSize+multipartOverhead)
	file, _, err := r.FormFile("portrait")
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, portrait.ErrTooLarge)
			return
		}
		http.Error(w, "a multipart \"portrait\" file is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	_, err = orchestrators.ExecuteUploadPortrait(r.Context(), orchestrators.UploadPortraitInput{
		MemberID: r.PathValue("id"),
		Image:    file,
	}, portraitDeps())
	if err != nil {
		writeError(w, err)
		return
	}
	respondWithMember(w, r, r.PathValue("id"))
}

// handlePortraitCapture handles POST /api/members/{id}/portrait/capture
func handlePortraitCapture(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	_, err := orchestrators.ExecuteCapturePortrait(r.Context(), r.PathValue("id"), orchestrators.CapturePortraitDeps{
		UploadPortraitDeps: portraitDeps(),
		Camera:             services.Camera,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	respondWithMember(w, r, r.PathValue("id"))
}

// handlePortraitFile handles GET /portraits/{file}
func handlePortraitFile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		methodNotAllowed(w, "GET, HEAD")
		return
	}
	name := strings.TrimPrefix(r.URL.Path, portrait.URLPrefix)
	if stores.Portraits == nil || name == "" || strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, ".") {
		http.NotFound(w, r)
		return
	}
	// Names are unique per upload, so the content never changes.
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	http.ServeFile(w, r, filepath.Join(stores.Portraits.Dir(), name))
}

func respondWithMember(w http.ResponseWriter, r *http.Request, id string) {
	view, err := projections.QueryGetMember(r.Context(), id, memberViewDeps())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func memberViewDeps() projections.GetMemberDeps {
	return projections.GetMemberDeps{MemberStore: stores.MemberStore, Now: timeNow}
}

func portraitDeps() orchestrators.UploadPortraitDeps {
	return orchestrators.UploadPortraitDeps{
		MemberStore: stores.MemberStore,
		Portraits:   portraitStore(),
		Notifier:    services.Notifier,
	}
}

// portraitStore avoids handing a typed nil pointer to the orchestrators.
func portraitStore() orchestrators.PortraitStore {
	if stores.Portraits == nil {
		return nil
	}
	return stores.Portraits
}
