// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package handlers adapts the poll service to HTTP.

# Handler Types

PollHandler wraps a *polls.Service and serves one handler per poll action:

	pollHandler := handlers.NewPollHandler(svc)
	r.Post("/votes", pollHandler.Handle(models.ActionVote))

Handle dispatches on the models.Action enum, so the router decides which
sub-action a route runs and the handler never parses an action name.

# Request Context

Every action reads:

  - the topic id from the {topicID} URL parameter
  - the acting member from X-Member-ID and X-Member-Name (absent = guest)
  - the single-use form token from X-Form-Token (mutating actions)
  - the guest vote token from the poll_guest_<topicID> cookie

A client without a poll view to take a form token from gets one from
POST /form-tokens.

# Actions

	GET    /topics/{topicID}/poll        → view (empty view with allow_add when the topic has no poll)
	POST   /topics/{topicID}/poll        → add (201)
	PATCH  /topics/{topicID}/poll        → edit
	DELETE /topics/{topicID}/poll        → remove (204)
	POST   /topics/{topicID}/poll/votes  → vote (sets the guest cookie for guests)
	DELETE /topics/{topicID}/poll/votes  → withdraw
	POST   /topics/{topicID}/poll/lock   → lock toggle, optional {"intent": ...}
	POST   /topics/{topicID}/poll/reset  → reset votes

# Errors

StatusFor maps the service's error classes onto statuses:

	validation  → 400
	permission  → 403
	not_found   → 404
	conflict    → 409 (double submission, lock conflicts, existing poll)
	unavailable → 503
	internal    → 500, logged, message withheld

Other error bodies carry polls.Message, never wrapped store detail.
*/
package handlers
