package blocks

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/codr1/courtbook/internal/models"
	"github.com/codr1/courtbook/internal/schedule"
)

const errHalfRange = "both time_from and time_to are required for a partial-day block; leave both empty to block the whole day"

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return field.Name
		}
		return name
	})
	return v
}

// ConfigError is a block definition rejected at creation time.
type ConfigError struct {
	Field  string
	Reason string
}

func (e ConfigError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Weekdays decodes either "1,3,4" or [1,3,4].
type Weekdays []int

func (w *Weekdays) UnmarshalJSON(data []byte) error {
	var list []int
	if err := json.Unmarshal(data, &list); err == nil {
		*w = list
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("weekdays must be a list or a comma-separated string")
	}
	parsed, err := ParseWeekdays(raw)
	if err != nil {
		return err
	}
	*w = parsed
	return nil
}

// ParseWeekdays parses the comma-separated storage encoding. The result is
// deduplicated and sorted.
func ParseWeekdays(raw string) ([]int, error) {
	seen := make(map[int]struct{})
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		day, err := strconv.Atoi(part)
		if err != nil || day < 1 || day > 7 {
			return nil, fmt.Errorf("weekday %q must be between 1 and 7", part)
		}
		seen[day] = struct{}{}
	}
	days := make([]int, 0, len(seen))
	for day := range seen {
		days = append(days, day)
	}
	sort.Ints(days)
	return days, nil
}

func FormatWeekdays(days []int) string {
	parts := make([]string, len(days))
	for i, day := range days {
		parts[i] = strconv.Itoa(day)
	}
	return strings.Join(parts, ",")
}

type AdHocInput struct {
	CourtID    *int64  `json:"courtId" validate:"omitempty,gt=0"`
	DateFrom   string  `json:"dateFrom" validate:"required,datetime=2006-01-02"`
	DateTo     string  `json:"dateTo" validate:"required,datetime=2006-01-02"`
	TimeFrom   *string `json:"timeFrom"`
	TimeTo     *string `json:"timeTo"`
	ReasonType string  `json:"reasonType" validate:"required,oneof=tournament closure other"`
	Reason     string  `json:"reason" validate:"max=200"`
}

type RecurringInput struct {
	CourtID  *int64   `json:"courtId" validate:"omitempty,gt=0"`
	Weekdays Weekdays `json:"weekdays" validate:"required,min=1,dive,min=1,max=7"`
	TimeFrom string   `json:"timeFrom" validate:"required"`
	TimeTo   string   `json:"timeTo" validate:"required"`
	Label    string   `json:"label" validate:"required,max=120"`
	Active   *bool    `json:"active"`
}

// ValidateAdHoc normalizes and checks an admin-submitted closure.
func ValidateAdHoc(input AdHocInput) (models.AdHocBlock, error) {
	input.TimeFrom = blankToNil(input.TimeFrom)
	input.TimeTo = blankToNil(input.TimeTo)
	input.ReasonType = strings.ToLower(strings.TrimSpace(input.ReasonType))
	if input.ReasonType == "" {
		input.ReasonType = models.BlockReasonOther
	}

	if err := validate.Struct(input); err != nil {
		return models.AdHocBlock{}, fromValidation(err)
	}
	if input.DateTo < input.DateFrom {
		return models.AdHocBlock{}, ConfigError{Field: "dateTo", Reason: "must not be before dateFrom"}
	}

	block := models.AdHocBlock{
		CourtID:    input.CourtID,
		DateFrom:   input.DateFrom,
		DateTo:     input.DateTo,
		ReasonType: input.ReasonType,
		Reason:     strings.TrimSpace(input.Reason),
	}
	if input.TimeFrom == nil && input.TimeTo == nil {
		return block, nil
	}
	if input.TimeFrom == nil || input.TimeTo == nil {
		return models.AdHocBlock{}, ConfigError{Field: "timeRange", Reason: errHalfRange}
	}
	from, to, err := normalizeRange(*input.TimeFrom, *input.TimeTo)
	if err != nil {
		return models.AdHocBlock{}, err
	}
	block.TimeFrom = &from
	block.TimeTo = &to
	return block, nil
}

// ValidateRecurring normalizes and checks a weekly closure. Active defaults to true.
func ValidateRecurring(input RecurringInput) (models.RecurringBlock, error) {
	input.Label = strings.TrimSpace(input.Label)
	if err := validate.Struct(input); err != nil {
		return models.RecurringBlock{}, fromValidation(err)
	}
	from, to, err := normalizeRange(input.TimeFrom, input.TimeTo)
	if err != nil {
		return models.RecurringBlock{}, err
	}
	days, err := ParseWeekdays(FormatWeekdays(input.Weekdays))
	if err != nil {
		return models.RecurringBlock{}, ConfigError{Field: "weekdays", Reason: err.Error()}
	}

	active := true
	if input.Active != nil {
		active = *input.Active
	}
	return models.RecurringBlock{
		CourtID:  input.CourtID,
		Weekdays: days,
		TimeFrom: from,
		TimeTo:   to,
		Label:    input.Label,
		Active:   active,
	}, nil
}

func normalizeRange(rawFrom, rawTo string) (string, string, error) {
	fromMin, err := schedule.ParseTimeOfDay(rawFrom)
	if err != nil {
		return "", "", ConfigError{Field: "timeFrom", Reason: err.Error()}
	}
	toMin, err := schedule.ParseTimeOfDay(rawTo)
	if err != nil {
		return "", "", ConfigError{Field: "timeTo", Reason: err.Error()}
	}
	if fromMin >= toMin {
		return "", "", ConfigError{Field: "timeFrom", Reason: "must be before timeTo"}
	}
	return schedule.Slot(fromMin).Label(), schedule.Slot(toMin).Label(), nil
}

func blankToNil(value *string) *string {
	if value == nil || strings.TrimSpace(*value) == "" {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	return &trimmed
}

func fromValidation(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return ConfigError{Field: "input", Reason: err.Error()}
	}
	fe := fieldErrs[0]
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return ConfigError{Field: field, Reason: "is required"}
	case "datetime":
		return ConfigError{Field: field, Reason: "must be in YYYY-MM-DD format"}
	case "oneof":
		return ConfigError{Field: field, Reason: "must be one of " + fe.Param()}
	case "min", "max", "gt":
		return ConfigError{Field: field, Reason: fmt.Sprintf("failed %s=%s", fe.Tag(), fe.Param())}
	default:
		return ConfigError{Field: field, Reason: "is invalid"}
	}
}
