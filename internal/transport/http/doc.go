// Package http exposes licensebridge over HTTP.
//
// Two surfaces are served. The command surface under /api/commands/{name}
// is the remote backend itself: each call runs one backend operation and
// returns its raw result, or an RFC 7807 problem on failure. The workflow
// surface under /api/workflow drives the workflow controller, so its
// precondition gate, status text and progress apply exactly as they do
// for the CLI.
//
// # Request Flow
//
//	HTTP Request → Chi Router → Middleware → Handler → Proxy/Controller → Backend
//
// # Error Handling
//
// Handlers never write error bodies themselves; every failure goes through
// errors.ErrorHandler:
//
//	if failure != nil {
//	    h.errorHandler.HandleError(w, r, failure.AppError())
//	    return
//	}
//
// # Live Updates
//
// /ws streams backend log lines and tracker status changes; see package
// websocket.
package http
