// Package engine wraps the media extraction tool behind a Resolver interface
// and owns the format/quality selector mapping.
package engine
