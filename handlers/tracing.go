package handlers

import "github.com/mohsenfayyazi/billder/telemetry"

// Tracer opens the per-handler spans. It records nothing until SetTracer is
// called.
var Tracer telemetry.Tracer = telemetry.Noop()

func SetTracer(t telemetry.Tracer) {
	Tracer = t
}

func InitTracerForTests() {
	Tracer = telemetry.Noop()
}
