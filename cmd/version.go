package cmd

// Version is the build version, overridden at release time via
// -ldflags "-X github.com/storewatch/storewatchd/cmd.Version=...".
var Version = "dev"
