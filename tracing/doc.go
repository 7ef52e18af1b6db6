// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package tracing installs the OpenTelemetry tracer provider.

When OTEL_EXPORTER_OTLP_ENDPOINT (or -otlp) is set, spans from the poll
service and the HTTP layer are batched to that collector over gRPC. Every
poll action is one span named polls.<action> carrying the topic id, member
id and outcome class; failed actions have status Error.

Without an endpoint the global no-op provider stays in place.
*/
package tracing
