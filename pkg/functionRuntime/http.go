package functionRuntime

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
)

func (s *Server) handleInvoke(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "Request Entity Too Large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	ic, completion, outcome, err := s.invoke(r.Context(), raw)
	switch outcome {
	case outcomeNotFound:
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	case outcomeBadRequest:
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ic.CreateReplyHeader(w.Header())
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(completion); err != nil {
		s.logger.Error("Error writing completion", "task", ic.ID(), "error", err)
	}
}
