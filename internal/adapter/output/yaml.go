package output

import (
	"io"

	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/notiq/internal/model"
)

// YAMLFormatter formats notifications as a YAML sequence.
type YAMLFormatter struct {
	opts FormatterOptions
}

// NewYAMLFormatter creates a new YAML formatter.
func NewYAMLFormatter(opts FormatterOptions) *YAMLFormatter {
	return &YAMLFormatter{opts: opts}
}

// Format writes notifications as a YAML document.
func (f *YAMLFormatter) Format(w io.Writer, notifications []model.Notification) error {
	if notifications == nil {
		notifications = []model.Notification{}
	}
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(notifications); err != nil {
		return err
	}
	return encoder.Close()
}
