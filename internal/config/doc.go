// Package config loads, normalizes and validates Bloom configuration.
//
// Settings come from a TOML file (by default ~/.config/bloom/config.toml, or
// bloom.toml in the working directory) layered over repository defaults.
// BLOOM_CAPTION_API_KEY overrides the caption key so credentials can stay out
// of the file. User style choices such as theme and growth scale are not
// configuration; they live in the settings package.
package config
