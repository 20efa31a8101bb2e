// Package cli provides command-line interface setup and configuration
// for the chmtrans application. It handles flag parsing, command
// creation, and configuration management using cobra and viper, and
// turns the resolved settings into pipeline components.
package cli
