package types

// Version is the ChaosSec release version.
// Bumped on every tagged release; surfaced by `chaossec version`.
const Version = "0.2.0"
