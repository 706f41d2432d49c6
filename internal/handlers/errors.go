package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/imyashkale/authbroker/internal/logger"
	"github.com/imyashkale/authbroker/internal/models"
	"github.com/imyashkale/authbroker/internal/repository"
	"github.com/imyashkale/authbroker/internal/services"
)

// respondError maps a service error onto the admin/API error shape
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, repository.ErrServerNotFound),
		errors.Is(err, repository.ErrScopeNotFound),
		errors.Is(err, repository.ErrConnectionNotFound),
		errors.Is(err, repository.ErrMappingNotFound),
		errors.Is(err, repository.ErrClientNotFound),
		errors.Is(err, repository.ErrJourneyNotFound):
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Error:   "not_found",
			Message: err.Error(),
		})
	case errors.Is(err, repository.ErrServerAlreadyExists),
		errors.Is(err, repository.ErrScopeAlreadyExists),
		errors.Is(err, repository.ErrConnectionExists),
		errors.Is(err, repository.ErrClientAlreadyExists),
		errors.Is(err, services.ErrScopeInUse),
		errors.Is(err, services.ErrConnectionInUse),
		errors.Is(err, repository.ErrVersionConflict),
		errors.Is(err, services.ErrJourneyTerminal):
		c.JSON(http.StatusConflict, models.ErrorResponse{
			Error:   "conflict",
			Message: err.Error(),
		})
	case errors.Is(err, services.ErrInvalidRequest),
		errors.Is(err, services.ErrInvalidScope),
		errors.Is(err, services.ErrMappingServerMismatch):
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "validation_error",
			Message: err.Error(),
		})
	case errors.Is(err, services.ErrVerificationFailed):
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{
			Error:   "verification_failed",
			Message: err.Error(),
		})
	case errors.Is(err, services.ErrUpstreamFailure):
		c.JSON(http.StatusBadGateway, models.ErrorResponse{
			Error:   "upstream_failure",
			Message: err.Error(),
		})
	default:
		logger.Errorf("Unhandled service error: %v", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "internal_error",
			Message: "An internal error occurred",
		})
	}
}

// respondOAuthError maps a service error onto the RFC 6749 error body used by
// the token, registration and introspection endpoints
func respondOAuthError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrAuthorizationPending):
		c.JSON(http.StatusBadRequest, models.OAuthError{
			Code:        "authorization_pending",
			Description: err.Error(),
		})
	case errors.Is(err, services.ErrDownstreamAuthRequired):
		c.JSON(http.StatusBadRequest, models.OAuthError{
			Code:        "invalid_grant",
			Description: err.Error(),
		})
	case errors.Is(err, services.ErrConsentDenied):
		c.JSON(http.StatusBadRequest, models.OAuthError{
			Code:        "access_denied",
			Description: err.Error(),
		})
	case errors.Is(err, services.ErrInvalidGrant):
		c.JSON(http.StatusBadRequest, models.OAuthError{
			Code:        "invalid_grant",
			Description: err.Error(),
		})
	case errors.Is(err, services.ErrInvalidScope):
		c.JSON(http.StatusBadRequest, models.OAuthError{
			Code:        "invalid_scope",
			Description: err.Error(),
		})
	case errors.Is(err, services.ErrVerificationFailed):
		c.JSON(http.StatusUnauthorized, models.OAuthError{
			Code:        "invalid_grant",
			Description: err.Error(),
		})
	case errors.Is(err, services.ErrInvalidRequest):
		c.JSON(http.StatusBadRequest, models.OAuthError{
			Code:        "invalid_request",
			Description: err.Error(),
		})
	case errors.Is(err, repository.ErrClientAlreadyExists):
		c.JSON(http.StatusConflict, models.OAuthError{
			Code:        "invalid_client_metadata",
			Description: "a client with this name is already registered",
		})
	case errors.Is(err, repository.ErrClientNotFound):
		c.JSON(http.StatusNotFound, models.OAuthError{
			Code:        "invalid_client",
			Description: "client not found",
		})
	case errors.Is(err, repository.ErrServerNotFound):
		c.JSON(http.StatusNotFound, models.OAuthError{
			Code:        "invalid_request",
			Description: "unknown server identifier",
		})
	case errors.Is(err, services.ErrUpstreamFailure):
		c.JSON(http.StatusBadGateway, models.OAuthError{
			Code:        "temporarily_unavailable",
			Description: err.Error(),
		})
	default:
		logger.Errorf("Unhandled service error: %v", err)
		c.JSON(http.StatusInternalServerError, models.OAuthError{
			Code:        "server_error",
			Description: "an internal error occurred",
		})
	}
}
