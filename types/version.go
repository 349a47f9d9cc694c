package types

// Version is the crashreporter release version.
const Version = "0.3.0"
