// Package batch selects the CHM files a run works on, either from glob
// patterns or from a list file.
package batch
