// Package storage provides a minimal persistence layer for the daemon.
//
// It currently supports:
//   - Job run history (one row per fire, pruned by age)
package storage
