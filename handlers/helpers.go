package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

type jsonResponse map[string]interface{}

func writeJSON(w http.ResponseWriter, status int, data interface{}) error {
	js, err := json.MarshalIndent(data, "", "\t")
	if err != nil {
		return err
	}
	js = append(js, '\n')

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, err = w.Write(js)
	return err
}

func errorResponse(w http.ResponseWriter, logger *slog.Logger, status int, message string) {
	if err := writeJSON(w, status, jsonResponse{"error": message}); err != nil {
		logger.Error("failed to write error response", slog.Any("error", err))
		w.WriteHeader(http.StatusInternalServerError)
	}
}

func serverErrorResponse(w http.ResponseWriter, logger *slog.Logger, err error) {
	logger.Error("internal server error", slog.Any("error", err))
	errorResponse(w, logger, http.StatusInternalServerError, "the server encountered a problem and could not process your request")
}
