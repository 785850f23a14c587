package utils

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/Jorge523757/DIGITSOFT/config"
	"github.com/bsm/redislock"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/ttacon/libphonenumber"
)

var CountryCode = "CO"

const DefaultTimezone = "America/Bogota"

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

func IsValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

func ValidatePhoneNumber(phoneNumber, countryCode string) error {
	p, err := libphonenumber.Parse(phoneNumber, countryCode)
	if err != nil {
		return err
	}

	if !libphonenumber.IsValidNumber(p) {
		return fmt.Errorf("phone number is not valid")
	}

	return nil
}

// FormatPhoneNumber returns the E164 form, or the input unchanged when it
// cannot be parsed.
func FormatPhoneNumber(phoneNumber string) string {
	p, err := libphonenumber.Parse(phoneNumber, CountryCode)
	if err != nil {
		return phoneNumber
	}
	return libphonenumber.Format(p, libphonenumber.E164)
}

// ValidateContact checks optional email and phone fields shared by customers,
// suppliers and technicians.
func ValidateContact(email string, phone string) error {
	if email != "" && !IsValidEmail(email) {
		return NewValidationError("invalid email")
	}
	if phone != "" {
		if err := ValidatePhoneNumber(phone, CountryCode); err != nil {
			return NewValidationError("invalid phone number")
		}
	}
	return nil
}

func GenerateUniqueFilename() string {
	return fmt.Sprintf("%d_%s", time.Now().UnixNano(), uuid.NewString()[:8])
}

func ProcessValidationErrors(err error) map[string]string {
	errorResponse := make(map[string]string)

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return errorResponse
	}
	for _, ve := range validationErrors {
		errorResponse[ve.Field()] = ve.Tag()
	}

	return errorResponse
}

func LoadLocation(timezone string) *time.Location {
	if timezone == "" {
		timezone = DefaultTimezone
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ConvertToDate truncates t to midnight in the given timezone.
func ConvertToDate(t time.Time, timezone string) time.Time {
	loc := LoadLocation(timezone)
	localTime := t.In(loc)
	return time.Date(localTime.Year(), localTime.Month(), localTime.Day(), 0, 0, 0, 0, loc)
}

// ParseDateRange reads YYYY-MM-DD bounds; the end date is inclusive, so the
// returned upper bound is the following midnight.
func ParseDateRange(from string, to string, timezone string) (*time.Time, *time.Time, error) {
	loc := LoadLocation(timezone)
	var start, end *time.Time
	if strings.TrimSpace(from) != "" {
		t, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(from), loc)
		if err != nil {
			return nil, nil, NewValidationError("invalid start date, expected YYYY-MM-DD")
		}
		t = t.UTC()
		start = &t
	}
	if strings.TrimSpace(to) != "" {
		t, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(to), loc)
		if err != nil {
			return nil, nil, NewValidationError("invalid end date, expected YYYY-MM-DD")
		}
		t = t.AddDate(0, 0, 1).UTC()
		end = &t
	}
	if start != nil && end != nil && !start.Before(*end) {
		return nil, nil, NewValidationError("start date must not be after end date")
	}
	return start, end, nil
}

// returns slice removing duplicate elements
func UniqueSlice[T comparable](slice []T) []T {
	inResult := make(map[T]bool)
	var result []T
	for _, elm := range slice {
		if _, ok := inResult[elm]; !ok {
			inResult[elm] = true
			result = append(result, elm)
		}
	}
	return result
}

// safely dereference pointer of type T, nil pointer return zero value or optional default
func DereferencePtr[T any](ptr *T, defaults ...T) T {
	var defaultValue T
	if len(defaults) > 0 {
		defaultValue = defaults[0]
	}
	if ptr == nil {
		return defaultValue
	}
	return *ptr
}

func NilIfEmpty[T comparable](ptr T) *T {
	var defaultZero T
	if ptr == defaultZero {
		return nil
	}
	return &ptr
}

// ParseDecimal converts a string to a decimal.Decimal value.
func ParseDecimal(value string) (decimal.Decimal, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return decimal.Zero, errors.New("empty decimal string")
	}
	return decimal.NewFromString(value)
}

// ObtainLock takes a short-lived redis lock. The returned release func is
// always safe to call. When redis is unavailable or the lock is held
// elsewhere the caller proceeds, relying on row locks.
func ObtainLock(ctx context.Context, key string, ttl time.Duration, moduleName string, functionName string) func() {
	logger := config.GetLogger()
	locker := config.GetRedisLock()
	if locker == nil {
		return func() {}
	}
	lock, err := locker.Obtain(ctx, key, ttl, &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(100*time.Millisecond), 20),
	})
	if errors.Is(err, redislock.ErrNotObtained) {
		config.LogError(logger, moduleName, functionName, "Could not obtain lock, continuing", key, err)
		return func() {}
	} else if err != nil {
		config.LogError(logger, moduleName, functionName, "Error obtaining lock", key, err)
		return func() {}
	}
	return func() {
		_ = lock.Release(context.Background())
	}
}
