package imagine

// EngineVersion is the imagine engine version, stamped on journal sessions.
const EngineVersion = "0.1.0"
