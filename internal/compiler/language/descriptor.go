// Package language describes compiler toolchains and renders their command templates.
package language

import (
	"bytes"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/pelletier/go-toml/v2"

	appErr "polyjudge/pkg/errors"
)

// Descriptor defines how to compile and run one language version.
// Values returned by the registry are validated and must be treated as read-only.
type Descriptor struct {
	ID           uuid.UUID `toml:"uuid"`
	Name         string    `toml:"name"`
	Version      string    `toml:"version"`
	ExecCmd      string    `toml:"exec_cmd"`
	CompileExec  string    `toml:"compile_exec"`
	CompileArgs  string    `toml:"compile_args"`
	EntrySource  string    `toml:"entry_source"`
	AddMemLimit  uint64    `toml:"add_mem_limit"`
	AddTimeLimit uint64    `toml:"add_time_limit"`

	execTpl    *Template
	compileTpl *Template
}

// ParseDescriptor decodes one TOML language definition and validates it.
// Unknown keys are rejected so that misspelled fields do not load silently.
func ParseDescriptor(data []byte) (Descriptor, error) {
	var d Descriptor
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&d); err != nil {
		return Descriptor{}, appErr.Wrapf(err, appErr.LanguageConfigInvalid, "decode language definition failed")
	}
	if err := d.Validate(); err != nil {
		return Descriptor{}, err
	}
	return d, nil
}

// Validate checks required fields and parses both templates, caching the result.
func (d *Descriptor) Validate() error {
	if d.ID == uuid.Nil {
		return appErr.ValidationError("uuid", "required")
	}
	if strings.TrimSpace(d.Name) == "" {
		return appErr.ValidationError("name", "required")
	}
	if strings.TrimSpace(d.CompileExec) == "" {
		return appErr.ValidationError("compile_exec", "required")
	}
	if err := validateEntrySource(d.EntrySource); err != nil {
		return err
	}

	execTpl, err := ParseTemplate(d.ExecCmd, ExecPlaceholders...)
	if err != nil {
		return appErr.Wrapf(err, appErr.TemplateInvalid, "exec_cmd of %s is invalid", d.Label())
	}
	if execTpl.Empty() {
		return appErr.ValidationError("exec_cmd", "required")
	}
	compileTpl, err := ParseTemplate(d.CompileArgs, CompilePlaceholders...)
	if err != nil {
		return appErr.Wrapf(err, appErr.TemplateInvalid, "compile_args of %s is invalid", d.Label())
	}
	d.execTpl = &execTpl
	d.compileTpl = &compileTpl
	return nil
}

// entry_source is joined onto the scoped workspace, so it must stay inside it.
func validateEntrySource(name string) error {
	switch {
	case name == "":
		return appErr.ValidationError("entry_source", "required")
	case name == "." || name == "..":
		return appErr.ValidationError("entry_source", "must be a file name")
	case strings.ContainsAny(name, `/\`) || filepath.Base(name) != name:
		return appErr.ValidationError("entry_source", "must not contain path separators")
	}
	return nil
}

// Label returns "name version" for logs and messages.
func (d Descriptor) Label() string {
	if d.Version == "" {
		return d.Name
	}
	return d.Name + " " + d.Version
}

// ExecCommand renders exec_cmd for the artifact at file.
// The first element is the program to start.
func (d Descriptor) ExecCommand(file string) ([]string, error) {
	tpl, err := d.template(d.execTpl, d.ExecCmd, ExecPlaceholders)
	if err != nil {
		return nil, err
	}
	return tpl.Render(map[Placeholder]string{PlaceholderFile: file})
}

// CompileArgv renders compile_args for one compilation, excluding compile_exec itself.
func (d Descriptor) CompileArgv(infile, outfile string) ([]string, error) {
	tpl, err := d.template(d.compileTpl, d.CompileArgs, CompilePlaceholders)
	if err != nil {
		return nil, err
	}
	return tpl.Render(map[Placeholder]string{
		PlaceholderInfile:  infile,
		PlaceholderOutfile: outfile,
	})
}

// template falls back to parsing on the fly for descriptors built in code
// without Validate.
func (d Descriptor) template(cached *Template, raw string, allowed []Placeholder) (Template, error) {
	if cached != nil {
		return *cached, nil
	}
	return ParseTemplate(raw, allowed...)
}
