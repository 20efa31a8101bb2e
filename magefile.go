//go:build mage

package main

import (
	"fmt"
	"os"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

var Default = Build

const binary = "chmtrans"

// Build builds the chmtrans binary
func Build() error {
	mg.Deps(Tidy)
	fmt.Println("Building", binary)
	return sh.RunV("go", "build", "-o", binary, "./cmd/chmtrans")
}

// Install installs chmtrans into GOPATH/bin
func Install() error {
	mg.Deps(Build)
	return sh.RunV("go", "install", "./cmd/chmtrans")
}

// Test runs all tests
func Test() error {
	return sh.RunV("go", "test", "./...")
}

// Race runs all tests with the race detector
func Race() error {
	return sh.RunV("go", "test", "-race", "./...")
}

// Vet runs go vet
func Vet() error {
	return sh.RunV("go", "vet", "./...")
}

// Tidy tidies go.mod
func Tidy() error {
	return sh.Run("go", "mod", "tidy")
}

// Clean removes build artifacts
func Clean() error {
	return os.RemoveAll(binary)
}
