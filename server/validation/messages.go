package validation

import "fmt"

// Messages shared with clients. They mirror the wording clients already
// match against, so keep them stable.
const (
	MsgValidationFailed = "Validation Failed"
	MsgNotBlank         = "This value should not be blank."
	MsgInvalid          = "This value is not valid."
	MsgChoice           = "The value you selected is not a valid choice."
	MsgChoices          = "One or more of the given values is invalid."
	MsgTimezone         = "This value is not a valid timezone."
	MsgEmail            = "This value is not a valid email address."
	MsgExtraFields      = "This form should not contain extra fields."
	MsgEndBeforeStart   = "End date should be equal or after start date."
	MsgSingleEnd        = "Only one of endTime or occurrences may be set."
	MsgDuplicate        = "This value is already used."
)

// MsgMin is reported when a number is below limit.
func MsgMin(limit int) string {
	return fmt.Sprintf("This value should be %d or more.", limit)
}

// MsgMax is reported when a number is above limit.
func MsgMax(limit int) string {
	return fmt.Sprintf("This value should be %d or less.", limit)
}

// MsgMultipleOf is reported when a number is not divisible by n.
func MsgMultipleOf(n int) string {
	return fmt.Sprintf("This value should be a multiple of %d.", n)
}

// MsgTooLong is reported when a text exceeds limit characters.
func MsgTooLong(limit int) string {
	return fmt.Sprintf("This value is too long. It should have %d characters or less.", limit)
}
