package cmd

// Version is set at build time via ldflags, e.g.
// go build -ldflags "-X github.com/kmalloy/sitejudge/cmd.Version=1.2.0"
var Version = "0.1.0"
