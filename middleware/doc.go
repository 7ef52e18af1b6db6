// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package middleware provides HTTP middleware and helper functions.

# Request Logging

Wrap handlers with request logging:

	r.Use(middleware.WithLogging)

Logs request start (method, path, remote, request_id) and completion
(status, duration_ms). The request id comes from chi's RequestID middleware
when it runs first.

# CORS Middleware

Enable cross-origin requests for frontend access:

	r.Use(middleware.CORS)

Allows methods GET, POST, PATCH, DELETE, OPTIONS with headers
Content-Type, Authorization, X-Member-ID, X-Member-Name, X-Form-Token.

# JSON Helpers

Write JSON responses:

	middleware.JSONResponse(w, http.StatusOK, data)
	middleware.ErrorResponse(w, http.StatusBadRequest, "message")

Parse JSON request bodies:

	var req models.CreatePollRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

# Principal

The membership layer in front of this service authenticates the member and
forwards the result:

	X-Member-ID    member id (absent for guests)
	X-Member-Name  display name

	principal, err := middleware.GetPrincipal(r)

# Client IP Extraction

Get the original client IP (handles X-Forwarded-For, X-Real-IP):

	ip := middleware.GetClientIP(r)

Stored only hashed, in the moderation log.
*/
package middleware
