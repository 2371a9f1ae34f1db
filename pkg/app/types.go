package app

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/deploymenttheory/go-its/internal/types"
)

// AssetTarget selects an asset by owner and UID
type AssetTarget struct {
	Owner int32  `json:"owner" yaml:"owner"`
	UID   uint64 `json:"uid" yaml:"uid"`
}

// Validate ensures the asset target is valid
func (t *AssetTarget) Validate() error {
	if t.UID == types.InvalidUID {
		return errors.New("uid 0 is reserved")
	}
	return nil
}

// String returns a string representation of the asset target
func (t *AssetTarget) String() string {
	return fmt.Sprintf("owner %d uid %d", t.Owner, t.UID)
}

var flagNames = map[string]types.CreateFlags{
	"write-once":           types.FlagWriteOnce,
	"no-confidentiality":   types.FlagNoConfidentiality,
	"no-replay-protection": types.FlagNoReplayProtection,
}

// ParseFlags converts flag names into a create flag set
func ParseFlags(names []string) (types.CreateFlags, error) {
	var flags types.CreateFlags
	for _, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		f, ok := flagNames[name]
		if !ok {
			return 0, fmt.Errorf("unknown flag %q", name)
		}
		flags |= f
	}
	return flags, nil
}

// FlagNames lists the names of the flags set in f
func FlagNames(f types.CreateFlags) []string {
	names := []string{}
	for name, flag := range flagNames {
		if f&flag != 0 {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// CommonError represents application-level errors
type CommonError struct {
	Code    string
	Message string
	Cause   error
}

func (e *CommonError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *CommonError) Unwrap() error {
	return e.Cause
}

// Common error codes
const (
	ErrCodeInvalidInput = "INVALID_INPUT"
	ErrCodeFlashAccess  = "FLASH_ACCESS"
	ErrCodeStorage      = "STORAGE"
	ErrCodeConfig       = "CONFIG"
)

// NewError creates a new CommonError
func NewError(code, message string, cause error) *CommonError {
	return &CommonError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}
