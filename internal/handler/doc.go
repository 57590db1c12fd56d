// Package handler contains the HTTP request handlers of the blog API.
//
// HANDLER RESPONSIBILITIES:
// 1. Parse the incoming request (path values, query params, JSON or form body)
// 2. Call the service with the caller's identity from the request context
// 3. Write the response (status code, JSON body) via writeJSON / writeError
//
// Handlers hold no business rules. Access control, validation and
// pagination defaults all live in the service package.
package handler
