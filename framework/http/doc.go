// Package http provides request and response helpers for handlers that run
// inside a container scope.
//
// # Request
//
//	req := gohttp.NewRequest(r)
//
//	scope := req.Scope()            // set by routing.ScopeMiddleware
//	svc, err := container.Resolve[*Checkout](req.Context(), c, checkoutD)
//
//	// Query string
//	name := req.Query("service", "")
//	open := req.QueryBool("open")   // ?open and ?open=true are both true
//	if v := req.Validate(validation.Rules{"lifestyle": "nullable|in:transient,singleton,scoped"}); v.Fails() {
//	    res.ValidationError(v.Errors())
//	}
//
//	// Body and routing
//	err := req.Bind(&payload)       // JSON only
//	id := req.RouteParam("id")
//
// # Response
//
//	res := gohttp.NewResponse(w)
//
//	res.JSON(200, data)           // raw JSON with status
//	res.Success(data)             // 200 {"data": ...}
//	res.Error(400, "bad input")   // {"message": "bad input"}
//	res.NotFound()                // 404 {"message": "Not found."}
//	res.ServerError()             // 500 {"message": "Server Error."}
//	res.ValidationError(errs)     // 422 {"errors": {"field": ["msg"]}}
//	res.ContainerError(err)       // status from the container sentinel
//
// ContainerError maps ErrVerificationFailed to 422, ErrMissingRegistration
// to 404, ErrContainerLocked to 409 and anything else to 500. The body
// carries the message, the metrics outcome label and, for resolution errors,
// the dependent chain ending at the failing service.
package http
