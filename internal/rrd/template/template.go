// Package template loads the rrd database definition an output writes to.
//
// A template declares the sampling step, the data sources and the archives
// of one round-robin database. Field values are kept as authored and are
// copied literally into rrdtool arguments.
//
// Two file formats are accepted, selected by extension. The XML form is the
// legacy rrd_def document:
//
//	<rrd_def>
//	  <step>300</step>
//	  <datasource>
//	    <name>cpuUsage</name><type>GAUGE</type>
//	    <heartbeat>600</heartbeat><min>0</min><max>U</max>
//	  </datasource>
//	  <archive><cf>AVERAGE</cf><xff>0.5</xff><steps>1</steps><rows>576</rows></archive>
//	</rrd_def>
//
// The YAML form (.yaml, .yml, .json) uses the same field names.
package template

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/xtxerr/rrdsink/internal/errors"
)

// Template is the schema of one rrd database.
type Template struct {
	XMLName xml.Name `xml:"rrd_def" yaml:"-"`

	// Path is carried over from rrd_def documents and not used for writing.
	Path string `xml:"path" yaml:"path,omitempty"`

	// Step is the number of seconds between samples.
	Step int `xml:"step" yaml:"step" validate:"gt=0"`

	// DataSources in declaration order.
	DataSources []DataSource `xml:"datasource" yaml:"datasource" validate:"min=1,unique=Name"`

	// Archives in declaration order.
	Archives []Archive `xml:"archive" yaml:"archive"`
}

// DataSource declares one time series.
type DataSource struct {
	Name      string `xml:"name" yaml:"name" validate:"required,dsname"`
	Type      string `xml:"type" yaml:"type" validate:"required"`
	Heartbeat string `xml:"heartbeat" yaml:"heartbeat" validate:"required"`
	Min       string `xml:"min" yaml:"min" validate:"required"`
	Max       string `xml:"max" yaml:"max" validate:"required"`
}

// Archive declares one consolidation rule.
type Archive struct {
	CF    string `xml:"cf" yaml:"cf" validate:"required"`
	XFF   string `xml:"xff" yaml:"xff" validate:"required"`
	Steps string `xml:"steps" yaml:"steps" validate:"required"`
	Rows  string `xml:"rows" yaml:"rows" validate:"required"`
}

var dsNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]{1,19}$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report yaml field names so messages match the file the user wrote.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})

	_ = v.RegisterValidation("dsname", func(fl validator.FieldLevel) bool {
		return dsNamePattern.MatchString(fl.Field().String())
	})

	return v
}

// =============================================================================
// Load
// =============================================================================

// Load reads and validates a template file.
//
// Every failure is returned as *errors.SchemaLoadError.
func Load(path string) (*Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &errors.SchemaLoadError{Path: path, Err: err}
	}

	t, err := Parse(data, formatOf(path))
	if err != nil {
		return nil, &errors.SchemaLoadError{Path: path, Err: err}
	}

	return t, nil
}

// Format names accepted by Parse.
const (
	FormatXML  = "xml"
	FormatYAML = "yaml"
)

func formatOf(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
		return FormatYAML
	default:
		return FormatXML
	}
}

// Parse decodes a template document and checks the fields every template
// must have: a positive step and at least one uniquely named data source.
func Parse(data []byte, format string) (*Template, error) {
	t := &Template{}

	switch format {
	case FormatXML:
		if err := xml.Unmarshal(data, t); err != nil {
			return nil, fmt.Errorf("parse xml: %w", err)
		}
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(t); err != nil {
			if err == io.EOF {
				return nil, fmt.Errorf("parse yaml: empty document")
			}
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown template format: %s", format)
	}

	if err := validate.Struct(t); err != nil {
		return nil, describe(err)
	}

	return t, nil
}

// describe turns validator output into a single readable error.
func describe(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldPath(fe)+" failed "+tagDescription(fe))
	}
	return errors.New(strings.Join(msgs, "; "))
}

func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func tagDescription(fe validator.FieldError) string {
	if fe.Param() != "" {
		return fe.Tag() + "=" + fe.Param()
	}
	return fe.Tag()
}

// =============================================================================
// Accessors
// =============================================================================

// Names returns the set of declared data source names.
func (t *Template) Names() map[string]struct{} {
	names := make(map[string]struct{}, len(t.DataSources))
	for _, ds := range t.DataSources {
		names[ds.Name] = struct{}{}
	}
	return names
}

// Has returns true if name is a declared data source.
func (t *Template) Has(name string) bool {
	for _, ds := range t.DataSources {
		if ds.Name == name {
			return true
		}
	}
	return false
}

// Complete checks that every data source and archive field is set and that
// data source names are legal rrd names. The first problem found is
// returned as *errors.TemplateIncompleteError.
func (t *Template) Complete() error {
	if err := validate.Var(t.Step, "gt=0"); err != nil {
		return &errors.TemplateIncompleteError{Field: "step"}
	}
	if len(t.DataSources) == 0 {
		return &errors.TemplateIncompleteError{Field: "datasource"}
	}

	for i := range t.DataSources {
		if err := validate.Struct(&t.DataSources[i]); err != nil {
			return incomplete("datasource", i, err)
		}
	}
	for i := range t.Archives {
		if err := validate.Struct(&t.Archives[i]); err != nil {
			return incomplete("archive", i, err)
		}
	}

	return nil
}

func incomplete(kind string, index int, err error) error {
	field := fmt.Sprintf("%s[%d]", kind, index)

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		field += "." + fe.Field()
		if fe.Tag() != "required" {
			field += " (" + fe.Tag() + ")"
		}
	}

	return &errors.TemplateIncompleteError{Field: field}
}
