package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v5"

	"github.com/samcharles93/specdec/internal/batch"
)

// VerifyResponse wraps the verified batch with its creation time.
type VerifyResponse struct {
	Object  string `json:"object"`
	Created int64  `json:"created"`
	batch.Result
}

func (s *Server) handleVerify(c *echo.Context) error {
	body := http.MaxBytesReader(c.Response(), c.Request().Body, s.maxBodyBytes)
	req, err := decodeJSON[batch.File](body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return writeError(c, http.StatusRequestEntityTooLarge, "invalid_request_error", err.Error(), "", "body_too_large")
		}
		return writeBadRequest(c, err.Error())
	}

	in, err := req.Input()
	if err != nil {
		return writeVerifyError(c, err)
	}

	ctx := c.Request().Context()
	out, err := s.verifier.Forward(ctx, in)
	if err != nil {
		if ctx.Err() == nil {
			s.log.Warn("verify failed", "error", err, "batch_size", len(in.DraftTokenIDs))
		}
		return writeVerifyError(c, err)
	}

	res := VerifyResponse{
		Object:  "verification",
		Created: s.clock().Unix(),
		Result:  batch.NewResult(newVerifyID(), out),
	}
	s.log.Debug("verified",
		"id", res.ID,
		"batch_size", len(res.Outputs),
		"accepted", res.Usage.AcceptedTokens,
		"drafted", res.Usage.DraftTokens,
	)
	return c.JSON(http.StatusOK, res)
}
