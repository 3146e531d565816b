package handlers

import (
	"errors"
	"net/http"

	"github.com/muhammadzainrehmani/ai-todo-agent/internal/api/middleware"
	"github.com/muhammadzainrehmani/ai-todo-agent/internal/knowledge"
)

// uploadMemory is how much of a multipart body is buffered in memory.
const uploadMemory = 1 << 20

// Upload ingests a document for the authenticated user. Ingestion failures
// are reported as {"error": ...} with status 200 so clients read one shape.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if user == nil {
		h.Error(w, http.StatusUnauthorized, middleware.CredentialsError)
		return
	}

	if err := r.ParseMultipartForm(uploadMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.Error(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		h.Error(w, http.StatusBadRequest, "invalid multipart body")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		h.Error(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	_, err = h.docs.Ingest(r.Context(), user.ID, header.Filename, file)
	switch {
	case errors.Is(err, knowledge.ErrUnsupportedType),
		errors.Is(err, knowledge.ErrUnreadableDocument),
		errors.Is(err, knowledge.ErrEmptyDocument):
		h.JSON(w, http.StatusOK, map[string]string{"error": err.Error()})
		return
	case err != nil:
		h.logger.Error().Err(err).Int64("user_id", user.ID).Msg("ingest document")
		h.JSON(w, http.StatusOK, map[string]string{"error": "failed to process document"})
		return
	}

	h.JSON(w, http.StatusOK, map[string]string{"message": knowledge.IngestedMessage})
}
