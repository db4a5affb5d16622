package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"takaro-dashboard-api/internal/repository"
	"takaro-dashboard-api/pkg/apierror"
	"takaro-dashboard-api/pkg/response"
	"takaro-dashboard-api/pkg/uid"
)

// writeError maps service and upstream errors onto API errors.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var apiErr *apierror.Error
	if errors.As(err, &apiErr) {
		response.Error(w, apiErr)
		return
	}

	var upstream *repository.UpstreamError
	switch {
	case errors.As(err, &upstream):
		if upstream.StatusCode == http.StatusNotFound {
			apiErr = apierror.NotFound("")
		} else {
			apiErr = apierror.Upstream(fmt.Sprintf("upstream API returned status %d", upstream.StatusCode))
		}
	case errors.Is(err, context.DeadlineExceeded):
		apiErr = apierror.Upstream("upstream API timed out")
	default:
		apiErr = apierror.Upstream("")
	}

	logger.WarnContext(r.Context(), "request failed",
		"path", r.URL.Path,
		uid.Attr(r.Context()),
		"code", apiErr.Code,
		"error", err,
	)
	response.Error(w, apiErr)
}
