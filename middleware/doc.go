// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package middleware provides HTTP middleware and helper functions.

# Request Logging

Wrap handlers with request logging:

	mux.HandleFunc("GET /start.php", middleware.WithLogging(handler))

Logs request start (method, path, remote) and completion (status,
duration_ms). Each request gets a uuid, sent back in X-Request-ID and
attached to every record logged with the request context.

# Identity Stage

Game routes carry an encrypted query string. The identity stage
decrypts it, resolves the device and account, applies the route's gate
and stores the caller on the context:

	stage := middleware.NewIdentityStage(resolver, evaluator)
	mux.HandleFunc("GET /result.php", middleware.WithLogging(
		stage.Wrap(middleware.GateFull, rejectXML, h.Result)))

	// in the handler
	id, _ := identity.FromContext(r.Context())

Refusals go to the route's RejectFunc so each route answers in its own
format (XML code, inform page or JSON envelope).

# Server Wrappers

	handler := middleware.Recover(middleware.Gzip(middleware.CORS(mux)))

CORS echoes the request origin with credentials for the web console.
Gzip compresses text responses and leaves zip and pak downloads alone.

# Response Helpers

	middleware.JSONResponse(w, http.StatusOK, data)
	middleware.ErrorResponse(w, http.StatusBadRequest, "message")
	middleware.APIResponse(w, http.StatusOK, 1, "Success", data)
	middleware.ConsoleResponse(w, http.StatusForbidden, "failed", "Invalid token.")
	middleware.XMLResponse(w, http.StatusOK, body)

# Client IP Extraction

	ip := middleware.GetClientIP(r)

Checks X-Forwarded-For, then X-Real-IP, then RemoteAddr.
*/
package middleware
