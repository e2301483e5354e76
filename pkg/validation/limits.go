package validation

import (
	"fmt"

	dErrors "trustbridge/pkg/domain-errors"
)

const (
	MaxDataTypes      = 50
	MaxDataTypeLength = 100
	MaxReasonLength   = 1000
	MaxNameLength     = 100
	MaxEmailLength    = 255

	MinCitizenIDLength   = 3
	MaxCitizenIDLength   = 50
	MinCompanyNameLength = 2
	MinPolicyTextLength  = 100
)

// CheckSliceCount validates that a slice does not exceed the maximum count.
func CheckSliceCount(fieldName string, count, limit int) error {
	if count > limit {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("too many %s: max %d allowed", fieldName, limit))
	}
	return nil
}

// CheckEachStringLength validates that each string in a slice stays within limit.
func CheckEachStringLength(fieldName string, values []string, limit int) error {
	for _, v := range values {
		if len(v) > limit {
			return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("%s exceeds max length of %d", fieldName, limit))
		}
	}
	return nil
}
