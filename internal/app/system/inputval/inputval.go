// internal/app/system/inputval/inputval.go
//
// Package inputval validates request input structs with go-playground/validator
// and turns failures into field-level messages suitable for a JSON response.
//
// Struct fields use the usual `validate` tag plus an optional `label` tag that
// names the field in messages, and the `json` tag for the field key:
//
//	type sendInput struct {
//	    PeerID string `json:"peerId" validate:"required,objectid" label:"Receiver"`
//	}
package inputval

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	once sync.Once
	v    *validator.Validate
)

func engine() *validator.Validate {
	once.Do(func() {
		v = validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			if label := f.Tag.Get("label"); label != "" {
				return label
			}
			return f.Name
		})
		_ = v.RegisterValidation("objectid", func(fl validator.FieldLevel) bool {
			return IsValidObjectID(fl.Field().String())
		})
		_ = v.RegisterValidation("chatmode", func(fl validator.FieldLevel) bool {
			return IsValidChatMode(fl.Field().String())
		})
	})
	return v
}

// ChatModes lists the accepted send modes.
var ChatModes = []string{"draft", "completed"}

// IsValidChatMode reports whether s is a known send mode.
func IsValidChatMode(s string) bool {
	s = strings.TrimSpace(s)
	for _, m := range ChatModes {
		if s == m {
			return true
		}
	}
	return false
}

// IsValidObjectID reports whether s (trimmed) is a 24 character hex ObjectID.
func IsValidObjectID(s string) bool {
	_, err := primitive.ObjectIDFromHex(strings.TrimSpace(s))
	return err == nil
}

// IsValidEmail reports whether s looks like a deliverable address.
func IsValidEmail(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	return engine().Var(s, "email") == nil
}

// FieldError is one failed rule on one field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Result collects the field errors of one validation pass.
type Result struct {
	Errors []FieldError `json:"errors"`
}

// HasErrors returns true if any rule failed.
func (r *Result) HasErrors() bool { return r != nil && len(r.Errors) > 0 }

// Add appends an error that was detected outside the struct tags.
func (r *Result) Add(field, message string) {
	r.Errors = append(r.Errors, FieldError{Field: field, Message: message})
}

// First returns the first message, or "" when valid.
func (r *Result) First() string {
	if !r.HasErrors() {
		return ""
	}
	return r.Errors[0].Message
}

// All joins every message with "; ".
func (r *Result) All() string {
	if !r.HasErrors() {
		return ""
	}
	msgs := make([]string, len(r.Errors))
	for i, e := range r.Errors {
		msgs[i] = e.Message
	}
	return strings.Join(msgs, "; ")
}

// Validate runs the struct tags on s and returns the collected errors.
// The returned Result is never nil.
func Validate(s any) *Result {
	res := &Result{}
	err := engine().Struct(s)
	if err == nil {
		return res
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		res.Add("", err.Error())
		return res
	}

	keys := jsonKeys(s)
	for _, fe := range verrs {
		key := keys[fe.StructField()]
		if key == "" {
			key = strings.ToLower(fe.StructField())
		}
		res.Add(key, message(fe))
	}
	return res
}

func message(fe validator.FieldError) string {
	label := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required.", label)
	case "max":
		return fmt.Sprintf("%s must be at most %s characters.", label, fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s characters.", label, fe.Param())
	case "email":
		return "A valid email address is required."
	case "objectid":
		return fmt.Sprintf("%s must be a valid identifier.", label)
	case "chatmode":
		return fmt.Sprintf("%s must be one of: %s.", label, strings.Join(ChatModes, ", "))
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s.", label, strings.ReplaceAll(fe.Param(), " ", ", "))
	default:
		return fmt.Sprintf("%s is invalid.", label)
	}
}

// jsonKeys maps Go field names to their json key for error reporting.
func jsonKeys(s any) map[string]string {
	t := reflect.TypeOf(s)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	keys := map[string]string{}
	if t == nil || t.Kind() != reflect.Struct {
		return keys
	}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name != "" && name != "-" {
			keys[f.Name] = name
		}
	}
	return keys
}
