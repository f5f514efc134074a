// Package config provides configuration for csstrim: run limits, HTTP
// request settings, the purge safelist, the zero-stylesheet policy, server
// settings and the optional .csstrim YAML file with per-site overrides.
package config
