package whatsflow

// Version is the release of the library and CLI. Overridden at build time with
// -ldflags "-X github.com/casfuk/whatsapp-flow-builder-sub001.Version=...".
var Version = "0.1.0-dev"
