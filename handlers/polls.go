// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/danielhkuo/topic-polls/middleware"
	"github.com/danielhkuo/topic-polls/models"
	"github.com/danielhkuo/topic-polls/polls"
)

const (
	maxBodyBytes   = 64 << 10
	guestCookieAge = 365 * 24 * 60 * 60
)

type PollHandler struct {
	svc *polls.Service
}

func NewPollHandler(svc *polls.Service) *PollHandler {
	return &PollHandler{svc: svc}
}

// Handle returns the HTTP handler for one poll action.
func (h *PollHandler) Handle(action models.Action) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ac, ok := h.actionContext(w, r)
		if !ok {
			return
		}

		switch action {
		case models.ActionView:
			h.view(w, r, ac)
		case models.ActionAdd:
			h.add(w, r, ac)
		case models.ActionEdit:
			h.edit(w, r, ac)
		case models.ActionRemove:
			h.remove(w, r, ac)
		case models.ActionVote:
			h.vote(w, r, ac)
		case models.ActionWithdraw:
			h.withdraw(w, r, ac)
		case models.ActionLock:
			h.lock(w, r, ac)
		case models.ActionReset:
			h.reset(w, r, ac)
		default:
			middleware.ErrorResponse(w, http.StatusNotFound, "Unknown poll action "+action.String())
		}
	}
}

// IssueFormToken handles POST /form-tokens
func (h *PollHandler) IssueFormToken(w http.ResponseWriter, r *http.Request) {
	token, err := h.svc.IssueFormToken(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	middleware.JSONResponse(w, http.StatusCreated, models.FormTokenResponse{FormToken: token})
}

func (h *PollHandler) actionContext(w http.ResponseWriter, r *http.Request) (polls.ActionContext, bool) {
	topicID, err := strconv.ParseInt(chi.URLParam(r, "topicID"), 10, 64)
	if err != nil || topicID <= 0 {
		middleware.ErrorResponse(w, http.StatusBadRequest, "invalid topic id")
		return polls.ActionContext{}, false
	}

	principal, err := middleware.GetPrincipal(r)
	if err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, err.Error())
		return polls.ActionContext{}, false
	}

	return polls.ActionContext{
		TopicID:    topicID,
		Principal:  principal,
		FormToken:  r.Header.Get(middleware.HeaderFormToken),
		GuestToken: middleware.Cookie(r, polls.GuestCookieName(topicID)),
	}, true
}

// view handles GET /topics/{topicID}/poll
func (h *PollHandler) view(w http.ResponseWriter, r *http.Request, ac polls.ActionContext) {
	view, err := h.svc.View(r.Context(), ac)
	if err != nil {
		writeError(w, err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, view)
}

// add handles POST /topics/{topicID}/poll
func (h *PollHandler) add(w http.ResponseWriter, r *http.Request, ac polls.ActionContext) {
	var req models.CreatePollRequest
	if !parseBody(w, r, &req) {
		return
	}

	poll, err := h.svc.Create(r.Context(), ac, req)
	if err != nil {
		writeError(w, err)
		return
	}
	middleware.JSONResponse(w, http.StatusCreated, poll)
}

// edit handles PATCH /topics/{topicID}/poll
func (h *PollHandler) edit(w http.ResponseWriter, r *http.Request, ac polls.ActionContext) {
	var req models.UpdatePollRequest
	if !parseBody(w, r, &req) {
		return
	}

	poll, err := h.svc.Update(r.Context(), ac, req)
	if err != nil {
		writeError(w, err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, poll)
}

// remove handles DELETE /topics/{topicID}/poll
func (h *PollHandler) remove(w http.ResponseWriter, r *http.Request, ac polls.ActionContext) {
	if err := h.svc.Remove(r.Context(), ac); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// vote handles POST /topics/{topicID}/poll/votes
func (h *PollHandler) vote(w http.ResponseWriter, r *http.Request, ac polls.ActionContext) {
	var req models.CastVotesRequest
	if !parseBody(w, r, &req) {
		return
	}

	res, err := h.svc.CastVotes(r.Context(), ac, req.Choices)
	if err != nil {
		writeError(w, err)
		return
	}

	// One cookie per topic, replaced on every guest vote
	if res.GuestToken != "" {
		http.SetCookie(w, &http.Cookie{
			Name:     polls.GuestCookieName(ac.TopicID),
			Value:    res.GuestToken,
			Path:     "/",
			MaxAge:   guestCookieAge,
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}

	middleware.JSONResponse(w, http.StatusOK, models.CastVotesResponse{
		Poll:    res.View,
		Revoted: res.Revoted,
	})
}

// withdraw handles DELETE /topics/{topicID}/poll/votes
func (h *PollHandler) withdraw(w http.ResponseWriter, r *http.Request, ac polls.ActionContext) {
	view, err := h.svc.WithdrawVotes(r.Context(), ac)
	if err != nil {
		writeError(w, err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, view)
}

// lock handles POST /topics/{topicID}/poll/lock
func (h *PollHandler) lock(w http.ResponseWriter, r *http.Request, ac polls.ActionContext) {
	var req models.LockRequest
	if r.ContentLength != 0 && !parseBody(w, r, &req) {
		return
	}

	state, err := h.svc.ToggleLock(r.Context(), ac, req.Intent)
	if err != nil {
		writeError(w, err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, models.LockResponse{VotingLocked: state})
}

// reset handles POST /topics/{topicID}/poll/reset
func (h *PollHandler) reset(w http.ResponseWriter, r *http.Request, ac polls.ActionContext) {
	view, err := h.svc.ResetVotes(r.Context(), ac)
	if err != nil {
		writeError(w, err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, view)
}

func parseBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := middleware.ParseJSONBody(r, v); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return false
	}
	return true
}

// StatusFor maps a poll error class onto an HTTP status.
func StatusFor(err error) int {
	switch polls.Classify(err) {
	case polls.ClassNone:
		return http.StatusOK
	case polls.ClassValidation:
		return http.StatusBadRequest
	case polls.ClassPermission:
		return http.StatusForbidden
	case polls.ClassNotFound:
		return http.StatusNotFound
	case polls.ClassConflict:
		return http.StatusConflict
	case polls.ClassUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	switch status {
	case http.StatusInternalServerError:
		slog.Error("poll action failed", "error", err)
		middleware.ErrorResponse(w, status, "Internal error")
	case http.StatusServiceUnavailable:
		middleware.ErrorResponse(w, status, "Temporarily unavailable, try again")
	default:
		middleware.ErrorResponse(w, status, polls.Message(err))
	}
}
