// Package version reports the build version of the batch executor binary.
package version
