// Package httpclient issues the benchmark's GET requests and classifies their results.
//
// # Request Building
//
// [NewRequestBuilder] captures the target, extra headers and the optional
// Authorization value once; [RequestBuilder.Build] then stamps out identical
// requests bound to a per-request context.
//
// # HTTP Client
//
// [NewClient] creates a client tuned for load generation. Redirects are not
// followed, so a 3xx is observed and counted as a success in its own right.
//
//	client := httpclient.NewClient(10 * time.Second)
//
// # Execution
//
// [Executor.Execute] sends one request, drains the body and returns a
// [metrics.Outcome]. It never returns an error: every failure becomes one of
// timeout, connection_refused, malformed_response or http_error_status.
//
//	exec := httpclient.NewExecutor(client, builder)
//	outcome := exec.Execute(ctx)
//
// # Preflight
//
// [Preflight] resolves the target host before the run so an unresolvable
// target is reported as a startup failure rather than N connection errors.
package httpclient
