package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// StartSpan creates a new span for a service operation.
// This is a convenience wrapper around otel.Tracer().Start() with common patterns.
//
// Usage in services:
//
//	ctx, span := telemetry.StartSpan(ctx, "twothumbsup/services/likes", "likes.Toggle",
//	    attribute.String(telemetry.AttrImageID, imageID),
//	)
//	defer span.End()
func StartSpan(ctx context.Context, tracerName, spanName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	tracer := otel.Tracer(tracerName)
	return tracer.Start(ctx, spanName, trace.WithAttributes(attrs...))
}

// RecordError records an error on the span and sets the span status to error.
func RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// AddEvent adds a named event to the span with optional attributes.
// Use for business events like a downgrade to an anonymous identity.
func AddEvent(span trace.Span, name string, attrs ...attribute.KeyValue) {
	span.AddEvent(name, trace.WithAttributes(attrs...))
}

// Common attribute keys
const (
	// Identity attributes
	AttrPrincipalID   = "principal.id"
	AttrPrincipalKind = "principal.kind"
	AttrPrincipalRole = "principal.role"
	AttrAuthGroup     = "auth.group"
	AttrSubject       = "auth.subject"

	// Authorization attributes
	AttrCapability    = "authz.capability"
	AttrAuthzAllowed  = "authz.allowed"
	AttrAuthzDecision = "authz.reason"

	// Like attributes
	AttrImageID   = "image.id"
	AttrLiked     = "like.liked"
	AttrLikeCount = "like.count"
)
