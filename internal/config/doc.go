// Package config loads the trademonitor YAML configuration.
//
// Values of the form ${VAR} are expanded from the environment before parsing,
// so secrets such as database passwords can stay out of the file.
package config
