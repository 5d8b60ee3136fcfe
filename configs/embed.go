// Package configs provides the embedded configuration template for wikindex.
//
// The template is written by `wikindex config init` and documents every
// setting with its default value.
package configs

import _ "embed"

// ProjectConfigTemplate is the commented wikindex.yaml template.
//
//go:embed wikindex.example.yaml
var ProjectConfigTemplate string
