package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/sceneflow/sceneflow/internal/core/asset"
	"github.com/sceneflow/sceneflow/internal/core/flow"
	"github.com/sceneflow/sceneflow/pkg/serialization"
)

var (
	// Validate is the shared validator instance with the flow tags registered.
	Validate *validator.Validate
)

func init() {
	Validate = validator.New()

	Validate.RegisterValidation("trigger_id", validateTriggerID)
	Validate.RegisterValidation("port", validatePort)
	Validate.RegisterValidation("flow_mode", validateFlowMode)
	Validate.RegisterValidation("asset_name", validateAssetName)
	Validate.RegisterValidation("asset_kind", validateAssetKind)
	Validate.RegisterValidation("blob_key", validateBlobKey)

	// Report fields by their JSON names
	Validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
}

// ValidateWithPlayground validates using go-playground/validator only.
func ValidateWithPlayground(s any) error {
	if err := Validate.Struct(s); err != nil {
		return formatValidationErrors(err)
	}
	return nil
}

// formatValidationErrors converts validator errors to ValidationErrors.
// Field paths drop the top-level struct name: "edges[0].mode".
func formatValidationErrors(err error) error {
	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return err
	}
	out := make(ValidationErrors, 0, len(fieldErrors))
	for _, fe := range fieldErrors {
		field := fe.Namespace()
		if i := strings.IndexByte(field, '.'); i >= 0 {
			field = field[i+1:]
		}
		out = append(out, ValidationError{
			Field:   field,
			Value:   fe.Value(),
			Message: getErrorMessage(fe),
		})
	}
	return out
}

// getErrorMessage returns a human-readable error message
func getErrorMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "field is required"
	case "min":
		return fmt.Sprintf("minimum value/length is %s", fe.Param())
	case "max":
		return fmt.Sprintf("maximum value/length is %s", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "url":
		return "must be a valid URL"
	case "hostname_port":
		return "must be a host:port address"
	case "trigger_id":
		return "must be a valid trigger identifier (letter or underscore, then letters, digits, underscores)"
	case "port":
		return "must be an anchor (top, right, bottom, left) or a trigger identifier"
	case "flow_mode":
		return "must be replace or overlay"
	case "asset_name":
		return "must be a non-empty name without path separators or '..'"
	case "asset_kind":
		return "must be one of map, character, object, scene, flow, code"
	case "blob_key":
		return "must be a hex AES key of 16, 24 or 32 bytes"
	default:
		return fmt.Sprintf("validation failed: %s", fe.Tag())
	}
}

func validateTriggerID(fl validator.FieldLevel) bool {
	return flow.ValidTriggerID(fl.Field().String())
}

func validatePort(fl validator.FieldLevel) bool {
	_, err := flow.ParsePort(fl.Field().String())
	return err == nil
}

func validateFlowMode(fl validator.FieldLevel) bool {
	return flow.Mode(fl.Field().String()).Valid()
}

func validateAssetName(fl validator.FieldLevel) bool {
	return asset.ValidateName(fl.Field().String()) == nil
}

func validateAssetKind(fl validator.FieldLevel) bool {
	return asset.Kind(fl.Field().String()).Valid()
}

func validateBlobKey(fl validator.FieldLevel) bool {
	_, err := serialization.ParseKey(fl.Field().String())
	return err == nil
}

// ValidationConfig holds validation configuration
type ValidationConfig struct {
	// StrictMode turns flow warnings into errors.
	StrictMode bool `json:"strict_mode"`
	MaxErrors  int  `json:"max_errors"`
}

// DefaultValidationConfig returns default validation configuration
func DefaultValidationConfig() *ValidationConfig {
	return &ValidationConfig{
		StrictMode: false,
		MaxErrors:  10,
	}
}

// ValidateWithConfig validates with specific configuration
func ValidateWithConfig(s any, config *ValidationConfig) error {
	if config == nil {
		config = DefaultValidationConfig()
	}

	err := ValidateStruct(s)
	var verrs ValidationErrors
	if errors.As(err, &verrs) && config.MaxErrors > 0 && len(verrs) > config.MaxErrors {
		return verrs[:config.MaxErrors]
	}
	return err
}

type errorResponse struct {
	Errors []ValidationError `json:"errors"`
	Count  int               `json:"count"`
}

// MarshalValidationErrors marshals validation errors to JSON
func MarshalValidationErrors(errs ValidationErrors) ([]byte, error) {
	return json.Marshal(errorResponse{Errors: errs, Count: len(errs)})
}

// UnmarshalValidationErrors unmarshals validation errors from JSON
func UnmarshalValidationErrors(data []byte) (ValidationErrors, error) {
	var response errorResponse
	if err := json.Unmarshal(data, &response); err != nil {
		return nil, err
	}
	return ValidationErrors(response.Errors), nil
}
