package license

import (
	"errors"
	"fmt"
)

// Operation is one of the closed set of domain operations reachable over RPC.
type Operation string

const (
	OpVerify            Operation = "verify"
	OpUpdate            Operation = "update"
	OpGenerate          Operation = "generate"
	OpGetInfo           Operation = "get_license_info"
	OpGetPlan           Operation = "get_license_plan"
	OpGetDefinitions    Operation = "get_license_definitions"
	OpUpdateDefinitions Operation = "update_license_definitions"
)

// ErrUnknownOperation is returned for methods outside the closed set.
var ErrUnknownOperation = errors.New("unknown operation")

// ParseOperation maps a request method name to an operation.
func ParseOperation(method string) (Operation, error) {
	switch Operation(method) {
	case OpVerify, OpUpdate, OpGenerate, OpGetInfo, OpGetPlan, OpGetDefinitions, OpUpdateDefinitions:
		return Operation(method), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownOperation, method)
	}
}

// Result is the outcome of a successful operation. Operations that produce
// structured data return it in Data as JSON; others leave Data empty and set
// a human-readable Message.
type Result struct {
	Data    []byte
	Message string
}

// LicenseFileName is the fixed filename inside the licenses directory. The
// caller-supplied path parameter is never honored.
const LicenseFileName = "license.lic"

// License is the on-disk license document.
type License struct {
	LicenseID   string   `json:"license_id"`
	UserName    string   `json:"user_name"`
	UserEmail   string   `json:"user_email"`
	LicenceType string   `json:"licence_type"`
	LicenseTier string   `json:"license_tier,omitempty"`
	Product     string   `json:"product,omitempty"`
	Version     string   `json:"version,omitempty"`
	IssuedAt    string   `json:"issued_at"`
	ValidUntil  string   `json:"valid_until"`
	Features    []string `json:"features,omitempty"`
	Signature   string   `json:"signature,omitempty"`
}
