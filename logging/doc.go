// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package logging configures the process-wide slog logger.

Setup picks a text handler when stderr is a terminal and JSON otherwise,
unless a format is forced. With a file path, records are also written
to a size-rotated file.

Records logged with a context carry the request id the middleware
stored with WithRequestID:

	slog.ErrorContext(r.Context(), "failed to save", "error", err)
	// ... request_id=6f1c... error=...
*/
package logging
