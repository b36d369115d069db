package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const banner = `
  ┌─┐┌─┐┌─┐┌─┐┌┐┌┌─┐┌┬┐
  └─┐├┤ └─┐└─┐│││├┤  │
  └─┘└─┘└─┘└─┘┘└┘└─┘ ┴
`

func main() {
	rootCmd := &cobra.Command{
		Use:   "sessnet",
		Short: "Session-oriented RPC server",
		Long: `sessnet serves request/response and event operations over
TCP, TLS, WebSocket, UDP and HTTP on one set of logical sessions.

  • Handshake with optional HS256 auth tokens
  • Per-user session caps with oldest-first eviction
  • AES-GCM and ChaCha20-Poly1305 payload encryption
  • Prometheus metrics endpoint`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		serveCmd(),
		tokenCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		errorMsg("%s", err)
		os.Exit(1)
	}
}

// printBanner prints the ASCII art banner.
func printBanner() {
	color.Cyan(banner)
}

// success prints a success message.
func success(format string, args ...any) {
	fmt.Printf("%s %s\n", color.GreenString("✓"), fmt.Sprintf(format, args...))
}

// info prints an info message.
func info(format string, args ...any) {
	fmt.Printf("  %s\n", fmt.Sprintf(format, args...))
}

// warn prints a warning message.
func warn(format string, args ...any) {
	fmt.Printf("%s %s\n", color.YellowString("⚠"), fmt.Sprintf(format, args...))
}

// errorMsg prints an error message.
func errorMsg(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "%s %s\n", color.RedString("✗"), fmt.Sprintf(format, args...))
}
