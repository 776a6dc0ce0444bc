// Command fetchd runs the media download orchestration daemon and provides
// operator utilities for inspecting jobs and configuration.
package main
