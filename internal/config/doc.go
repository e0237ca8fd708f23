// Package config defines the format-agnostic model of a task grid file and
// the Loader interface implemented by the HCL and YAML loaders.
//
// Settings are pointers so a loader can tell "not set" from a zero value;
// ResolverConfig and ConflictConfig lay them over library defaults.
package config
