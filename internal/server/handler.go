package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/Angella-Mulikatete/AmplystV2-sub001/internal/ai"
	"github.com/Angella-Mulikatete/AmplystV2-sub001/internal/logger"
	"github.com/Angella-Mulikatete/AmplystV2-sub001/internal/matching"
)

// StatusClientClosedRequest is written when the caller cancelled the request.
const StatusClientClosedRequest = 499

type matchRequest struct {
	Campaign      any  `json:"campaign"`
	Candidates    any  `json:"candidates"`
	K             *int `json:"k"`
	IncludeSource bool `json:"include_source"`
}

type matchResponse struct {
	Matches []string `json:"matches"`
	Source  string   `json:"source,omitempty"`
}

type errorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

func (h *Handler) match(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, h.opts.MaxBodyBytes)
	dec := json.NewDecoder(body)
	dec.UseNumber()

	var req matchRequest
	if err := dec.Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusBadRequest, "validation", "body: exceeds limit")
			return
		}
		writeError(w, http.StatusBadRequest, "validation", "body: "+err.Error())
		return
	}

	ctx := r.Context()
	if h.opts.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.opts.RequestTimeout)
		defer cancel()
	}

	res, err := h.ranker.Rank(ctx, matching.RawRequest{
		Campaign:   req.Campaign,
		Candidates: req.Candidates,
		K:          req.K,
	})
	if err != nil {
		h.writeRankError(w, r, err)
		return
	}

	resp := matchResponse{Matches: res.Matches}
	if resp.Matches == nil {
		resp.Matches = []string{}
	}
	if req.IncludeSource {
		resp.Source = string(res.Source)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) writeRankError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *matching.ValidationError
	switch {
	case errors.As(err, &verr):
		detail := verr.Detail
		if verr.Field != "" {
			detail = verr.Field + ": " + verr.Detail
		}
		writeError(w, http.StatusBadRequest, "validation", detail)
	case errors.Is(err, ai.ErrOverloaded):
		writeError(w, http.StatusServiceUnavailable, "overloaded", "")
	case errors.Is(err, ai.ErrRequestCancelled):
		w.WriteHeader(StatusClientClosedRequest)
	case errors.Is(err, ai.ErrMisconfigured):
		writeError(w, http.StatusBadGateway, "upstream", err.Error())
	default:
		h.logger.Error("ranking failed",
			zap.String(logger.FieldRequestID, requestIDFromContext(r.Context())),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "internal", "")
	}
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	writeJSON(w, status, errorResponse{Error: code, Detail: detail})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
