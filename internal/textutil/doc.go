// Package textutil provides filename sanitization and title derivation
// helpers shared by the executor and engine.
package textutil
