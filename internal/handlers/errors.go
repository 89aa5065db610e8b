package handlers

import (
	"errors"
	"log"
	"net/http"

	"tablet-tracker/internal/middleware"
	"tablet-tracker/internal/models"
	"tablet-tracker/pkg/utils"
)

// statusFor maps the service error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	var (
		ve *models.ValidationError
		nf *models.NotFoundError
		db *models.DuplicateBagError
		nl *models.NoMatchingLineError
		vl *models.VerificationLockedError
		ce *models.ConflictError
	)
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest
	case errors.As(err, &nf):
		return http.StatusNotFound
	case errors.As(err, &db), errors.As(err, &nl), errors.As(err, &vl), errors.As(err, &ce):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Printf("[HTTP] %s %s [%s] failed: %v", r.Method, r.URL.Path, middleware.GetRequestIDFromContext(r.Context()), err)
		utils.Error(w, status, "Internal server error")
		return
	}
	utils.Error(w, status, err.Error())
}
