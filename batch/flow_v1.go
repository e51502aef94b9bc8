package batch

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/emptyOVO/peakhour/batch/mysql_batch"
	"github.com/go-playground/validator/v10"
)

const FlowVersionV1 = "v1"

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func flowValidator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		// report json names, which is what users write in flow files
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		_ = v.RegisterValidation("sqlident", func(fl validator.FieldLevel) bool {
			return mysql_batch.ValidIdentifier(fl.Field().String())
		})
		validate = v
	})
	return validate
}

// ValidateFlowConfig validates v1 flow schema and required fields.
func ValidateFlowConfig(cfg FlowConfig) error {
	cfg.withDefaults()

	if err := flowValidator().Struct(cfg); err != nil {
		return describeValidation(err)
	}

	switch cfg.Source.Type {
	case "file":
		if len(cfg.Source.Files) == 0 {
			return fmt.Errorf("source.files is required for file source")
		}
	case "mysql":
		if cfg.Source.DB.User == "" || cfg.Source.DB.Database == "" {
			return fmt.Errorf("source.db.user and source.db.database are required for mysql source")
		}
		if strings.TrimSpace(cfg.Source.Config.Table) == "" {
			return fmt.Errorf("source.config.table is required for mysql source")
		}
	}
	if cfg.Sink.Type == "mysql" && (cfg.Sink.DB.User == "" || cfg.Sink.DB.Database == "") {
		return fmt.Errorf("sink.db.user and sink.db.database are required for mysql sink")
	}
	return nil
}

func describeValidation(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Namespace()
		if i := strings.IndexByte(field, '.'); i >= 0 {
			field = field[i+1:]
		}
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s: failed %s=%s (got %v)", field, fe.Tag(), fe.Param(), fe.Value()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s: failed %s (got %v)", field, fe.Tag(), fe.Value()))
		}
	}
	return fmt.Errorf("invalid flow config: %s", strings.Join(msgs, "; "))
}
