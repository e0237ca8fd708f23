// Package hcl provides the HCL implementation of config.Loader. It parses
// grid files with hclparse, decodes them with gohcl and converts free-form
// values through go-cty.
package hcl
