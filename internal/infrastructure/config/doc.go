// Package config loads and validates Voicematch configuration.
//
// Configuration is loaded from YAML with environment variable overrides
// (VOICEMATCH_SECTION_KEY pattern) for secrets and deployment-specific
// values. Loading order:
//
//  1. Hardcoded defaults
//  2. YAML file values
//  3. Environment variables
//
// Validation runs after loading; a config that fails validation is never
// returned to the caller.
package config
