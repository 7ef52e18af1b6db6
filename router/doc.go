// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package router defines HTTP routes for the topic polls API.

# Route Registration

NewRouter creates a chi router with all endpoints:

	r := router.NewRouter(svc, db, registry)

Every request gets a request id (chi RequestID), panics become 500s
(chi Recoverer) and CORS headers are set. Poll routes are logged through
middleware.WithLogging.

# Endpoints

Operations:

	GET /health   - 200 OK when the database answers a ping
	GET /metrics  - Prometheus metrics from the given gatherer

Form tokens:

	POST /form-tokens - Mint a single-use form token

Poll actions (X-Member-ID identifies the member, absent for guests;
mutations need X-Form-Token):

	GET    /topics/{topicID}/poll       - View
	POST   /topics/{topicID}/poll       - Add poll
	PATCH  /topics/{topicID}/poll       - Edit poll
	DELETE /topics/{topicID}/poll       - Remove poll
	POST   /topics/{topicID}/poll/votes - Cast votes (or change them)
	DELETE /topics/{topicID}/poll/votes - Withdraw votes
	POST   /topics/{topicID}/poll/lock  - Toggle, lock or unlock voting
	POST   /topics/{topicID}/poll/reset - Reset all votes

Each poll route is bound to one models.Action; handlers.PollHandler.Handle
switches on it.
*/
package router
