package handler

import (
    "net/http"
    "reflect"
    "strings"

    "github.com/go-playground/validator/v10"
    "github.com/labstack/echo/v4"
)

// RequestValidator plugs go-playground/validator into echo.  Field names in
// error reports use the json tag so clients see the names they sent.
type RequestValidator struct {
    v *validator.Validate
}

// NewRequestValidator builds the validator installed on the echo instance.
func NewRequestValidator() *RequestValidator {
    v := validator.New(validator.WithRequiredStructEnabled())
    v.RegisterTagNameFunc(func(f reflect.StructField) string {
        name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
        if name == "-" {
            return ""
        }
        return name
    })
    return &RequestValidator{v: v}
}

// Validate implements echo.Validator.
func (rv *RequestValidator) Validate(i interface{}) error {
    return rv.v.Struct(i)
}

// bindAndValidate decodes the body into req and runs struct validation.  On
// failure it writes the response itself and returns false; the caller must
// then return nil.
//
// Validation failures are reported as {"error": "validation_failed",
// "fields": {"email": ["..."]}} with status 400.
func bindAndValidate(c echo.Context, req interface{}) bool {
    if err := c.Bind(req); err != nil {
        _ = c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid_body", "message": "invalid request body"})
        return false
    }
    switch err := c.Validate(req).(type) {
    case nil:
        return true
    case *validator.InvalidValidationError:
        _ = c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal_error"})
    case validator.ValidationErrors:
        fields := make(map[string][]string)
        for _, fe := range err {
            fields[fe.Field()] = append(fields[fe.Field()], fieldMessage(fe))
        }
        _ = c.JSON(http.StatusBadRequest, echo.Map{"error": "validation_failed", "fields": fields})
    default:
        _ = c.JSON(http.StatusBadRequest, echo.Map{"error": "validation_failed", "message": err.Error()})
    }
    return false
}

func fieldMessage(fe validator.FieldError) string {
    switch fe.Tag() {
    case "required":
        return "is required"
    case "email":
        return "must be a valid email address"
    case "min", "gte":
        return "must be at least " + fe.Param()
    case "max", "lte":
        return "must be at most " + fe.Param()
    case "oneof":
        return "must be one of " + fe.Param()
    }
    return "failed " + fe.Tag()
}
