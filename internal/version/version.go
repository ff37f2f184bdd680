// ABOUTME: Version constants for the player
// ABOUTME: Single place for product identity strings
package version

// Product is the user-facing application name.
const Product = "Sidecar EQ"

// Version is the release version, overridden at build time via
// -ldflags "-X .../internal/version.Version=x.y.z".
var Version = "0.1.0"
