// Copyright (c) 2023 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package common

import (
	"context"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
)

const (
	traceIDLogField = "traceID"
	tracerName      = "drop-farmer"
)

// Scope carries the span and trace-tagged logger of one remote call.
type Scope struct {
	Ctx     context.Context
	TraceID string
	span    oteltrace.Span
	Log     *log.Entry
}

// StartScope starts a span named name under whatever span ctx carries.
// Every attribute is also added to the scope logger.
func StartScope(ctx context.Context, name string, attrs ...attribute.KeyValue) *Scope {
	spanCtx, span := otel.Tracer(tracerName).Start(ctx, name, oteltrace.WithAttributes(attrs...))
	traceID := span.SpanContext().TraceID().String()

	fields := log.Fields{traceIDLogField: traceID}
	for _, a := range attrs {
		fields[string(a.Key)] = a.Value.Emit()
	}

	return &Scope{
		Ctx:     spanCtx,
		TraceID: traceID,
		span:    span,
		Log:     log.WithFields(fields),
	}
}

// Finish ends the span.
func (s *Scope) Finish() {
	s.span.End()
}

// TraceEvent records that something happened during the call, such as a retry.
func (s *Scope) TraceEvent(name string, attrs ...attribute.KeyValue) {
	s.span.AddEvent(name, oteltrace.WithAttributes(attrs...))
}

// TraceError records err and marks the span failed.
func (s *Scope) TraceError(err error) {
	s.span.RecordError(err)
	s.span.SetStatus(codes.Error, err.Error())
}

// SetAttributes adds attributes to the span.
func (s *Scope) SetAttributes(attrs ...attribute.KeyValue) {
	s.span.SetAttributes(attrs...)
}
