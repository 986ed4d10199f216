// Package http implements the HTTP request handlers for the dashboard
// service. It provides a thin layer between HTTP transport and business
// logic, keeping handlers focused solely on HTTP concerns.
//
// # Architecture Principles
//
// Handlers in this package follow these principles:
//
//	1. Thin handlers - minimal logic, delegate to services
//	2. HTTP-only concerns - request parsing, response formatting
//	3. Error transformation - convert service errors to HTTP responses
//	4. No business logic - all logic belongs in the service layer
//	5. Consistent patterns - standardized request/response handling
//
// # Request Flow
//
// A typical request flows through these layers:
//
//	HTTP Request → Chi Router → Middleware → Handler → Service → Snapshot
//	                                              ↓
//	HTTP Response ← Handler ← Service Response ←─┘
//
// # Handler Structure
//
// Each handler follows this pattern:
//
//	func (h *Handler) HandleSomething(w http.ResponseWriter, r *http.Request) {
//	    // 1. Parse and validate request
//	    var req apiv1.SomeRequest
//	    if err := decodeJSON(r, &req); err != nil {
//	        h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
//	        return
//	    }
//
//	    // 2. Call service layer
//	    result, err := h.service.DoSomething(r.Context(), &req)
//	    if err != nil {
//	        h.errorHandler.HandleError(w, r, mapServiceError(err))
//	        return
//	    }
//
//	    // 3. Format and send response
//	    render.JSON(w, r, result)
//	}
//
// # Error Handling
//
// All errors follow RFC 7807 Problem Details:
//
//	{
//	    "type": "/errors/dataset/not-loaded",
//	    "title": "Service Unavailable",
//	    "status": 503,
//	    "detail": "Dataset not loaded",
//	    "instance": "/api/query"
//	}
//
// Service sentinels are mapped with errors.Is (ErrDatasetNotLoaded → 503,
// ErrReloadInProgress → 409, source errors → 404) and structurally invalid
// filter states surface as 400 validation problems with per-column details.
// Unknown filter columns are never an error; the query result carries them
// in skipped_predicates.
//
// # Streaming Exports
//
// The export handler sets the attachment headers and then hands the
// ResponseWriter to the service. Every rejectable failure happens before
// the first CSV byte, so problems can still be rendered; once streaming
// has begun an error can only be logged.
//
// # Testing
//
// Handlers are tested using httptest:
//
//	- Mock service dependencies
//	- Test various HTTP scenarios
//	- Verify error responses
//	- Check middleware integration
package http
