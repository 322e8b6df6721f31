//go:build !windows

package device

// supportsSyncOutput gates the synchronized output sequence (DEC mode 2026).
// Terminals that do not know it ignore it, so it is on everywhere except the
// Windows console.
const supportsSyncOutput = true
