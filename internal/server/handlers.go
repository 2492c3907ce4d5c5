package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vyrodovalexey/avdataccess/internal/access"
	"github.com/vyrodovalexey/avdataccess/internal/auth"
	"github.com/vyrodovalexey/avdataccess/internal/observability"
)

func (s *Server) handleReadLocation(c *gin.Context) {
	identity, ok := s.identity(c)
	if !ok {
		return
	}

	var req readLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "malformed request body"})
		return
	}

	resp, err := s.access.ReadLocation(c.Request.Context(), &access.ReadRequest{
		UserID:  identity.UserID,
		Bearer:  identity.Bearer,
		Path:    req.Path,
		Version: req.Snapshot,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, readLocationResponse{
		AccessAllowed:  resp.AccessAllowed,
		ParentURI:      resp.ParentURI,
		Version:        resp.Version,
		AccessToken:    resp.Token,
		ExpirationTime: resp.ExpiresAtMillis,
	})
}

func (s *Server) handleWriteLocation(c *gin.Context) {
	identity, ok := s.identity(c)
	if !ok {
		return
	}

	var req writeLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "malformed request body"})
		return
	}

	resp, err := s.access.WriteLocation(c.Request.Context(), &access.WriteRequest{
		UserID:       identity.UserID,
		Bearer:       identity.Bearer,
		MetadataJSON: []byte(req.MetadataJSON),
	})
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, writeLocationResponse{
		AccessAllowed:        resp.AccessAllowed,
		ParentURI:            resp.ParentURI,
		ValidMetadataJSON:    string(resp.ValidMetadataJSON),
		MetadataSignature:    resp.MetadataSignature,
		AllValidMetadataJSON: string(resp.AllValidMetadataJSON),
		AllMetadataSignature: resp.AllMetadataSignature,
		AccessToken:          resp.Token,
		ExpirationTime:       resp.ExpiresAtMillis,
	})
}

func (s *Server) handleWriteAccessToken(c *gin.Context) {
	identity, ok := s.identity(c)
	if !ok {
		return
	}

	var req writeAccessTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "malformed request body"})
		return
	}

	resp, err := s.access.WriteAccessToken(c.Request.Context(), &access.WriteAccessTokenRequest{
		UserID:       identity.UserID,
		Bearer:       identity.Bearer,
		MetadataJSON: []byte(req.MetadataJSON),
		Signature:    req.MetadataSignature,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, writeAccessTokenResponse{
		AccessToken:    resp.Token,
		ExpirationTime: resp.ExpiresAtMillis,
		ParentURI:      resp.ParentURI,
	})
}

func (s *Server) handleDeleteLocation(c *gin.Context) {
	identity, ok := s.identity(c)
	if !ok {
		return
	}

	var req deleteLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "malformed request body"})
		return
	}

	resp, err := s.access.DeleteLocation(c.Request.Context(), &access.DeleteRequest{
		UserID:  identity.UserID,
		Bearer:  identity.Bearer,
		Path:    req.Path,
		Version: req.Snapshot,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, deleteLocationResponse{
		AccessAllowed:  resp.AccessAllowed,
		ParentURI:      resp.ParentURI,
		Version:        resp.Version,
		AccessToken:    resp.Token,
		ExpirationTime: resp.ExpiresAtMillis,
	})
}

// identity recovers the caller identity or terminates the request with a
// 401.
func (s *Server) identity(c *gin.Context) (*auth.Identity, bool) {
	identity, err := auth.IdentityFromRequest(c.Request)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse{Error: err.Error()})
		return nil, false
	}
	return identity, true
}

// writeError maps orchestrator errors onto HTTP statuses. Denial never
// reaches here; it travels as a 200 with accessAllowed=false.
func (s *Server) writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	message := "internal server error"

	switch {
	case errors.Is(err, access.ErrNotFound):
		status = http.StatusNotFound
		message = "dataset not found"
	case errors.Is(err, access.ErrInvalidArgument):
		status = http.StatusBadRequest
		message = err.Error()
	}

	if status == http.StatusInternalServerError {
		s.logger.Error("request failed",
			observability.String("requestID", GetRequestID(c)),
			observability.String("path", c.Request.URL.Path),
			observability.Error(err),
		)
	}

	c.JSON(status, errorResponse{Error: message})
}
