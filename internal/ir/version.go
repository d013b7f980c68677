package ir

// Version constants for trace records and the engine.
const (
	// TraceVersion is the transition trace schema version.
	TraceVersion = "1"

	// EngineVersion is the hyperplay engine version.
	EngineVersion = "0.1.0"
)
