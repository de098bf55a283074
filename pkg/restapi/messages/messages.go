/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package messages

const (
	// ErrBlankToken is returned when a validation request carries no token.
	ErrBlankToken = didTokenError("token can't be blank")
	// ErrBlankDID is returned when a resolution request carries no DID.
	ErrBlankDID = didTokenError("DID can't be blank")
	// ErrDIDNotFound is returned when no resolver knows the requested DID.
	ErrDIDNotFound = didTokenError("specified DID could not be found")

	// FailWriteResponse is logged when a ResponseWriter fails to write.
	FailWriteResponse = " Failed to write response back to sender: %s."

	// DebugLogEvent is used for logging debug events.
	DebugLogEvent = "Event: %s"
	// DebugLogEventWithReceivedData is used for logging debug events along with the data that was received.
	DebugLogEventWithReceivedData = DebugLogEvent + " Received data: %s"

	// ValidateFailReadRequestBody is used when the incoming request body can't be read.
	// This should not happen during normal operation.
	ValidateFailReadRequestBody = "Received request to validate a token, but failed to read the request body: %s."
	// ValidateReceiveRequest is used for logging new validation requests.
	ValidateReceiveRequest = "Received request to validate a token."
	// InvalidValidationRequest is used when a received validation request is invalid.
	InvalidValidationRequest = "Received invalid validation request: %s."
	// ValidationFailure is used when an error aborts a validation.
	ValidationFailure = "Failed to validate token: %s."
	// ValidationComplete is used when a validation finishes, whatever its result.
	ValidationComplete = "Validated token with result %t and status %d."
	// MarshalValidationResultFailure is used when the validation result can't be marshalled.
	// This should not happen during normal operation.
	MarshalValidationResultFailure = "Failed to marshal the validation result: %s."

	// CreateDIDFailReadRequestBody is used when the incoming request body can't be read.
	// This should not happen during normal operation.
	CreateDIDFailReadRequestBody = "Received request to create a DID, but failed to read the request body: %s."
	// CreateDIDReceiveRequest is used for logging new DID creation requests.
	CreateDIDReceiveRequest = "Received request to create a DID."
	// InvalidCreateDIDRequest is used when a received DID creation request is invalid.
	InvalidCreateDIDRequest = "Received invalid DID creation request: %s."
	// KeyReferenceGenerationFailure is used when a key reference can't be generated.
	KeyReferenceGenerationFailure = "Failed to generate a key reference: %s."
	// CreateDIDFailure is used when an error prevents a new DID from being created.
	CreateDIDFailure = "Failed to create a new DID: %s."
	// CreateDIDSuccess is used when a DID is successfully created.
	CreateDIDSuccess = "Successfully created DID %s with key reference %s."

	// ResolveDIDReceiveRequest is used for logging new DID resolution requests.
	ResolveDIDReceiveRequest = "Received request to resolve DID %s."
	// ResolveDIDFailure is used when an error occurs while resolving a DID.
	ResolveDIDFailure = "Failed to resolve DID %s: %s."
	// ResolveDIDSuccess is used when a DID is successfully resolved.
	ResolveDIDSuccess = "Successfully resolved DID %s."

	// InvalidLogSpec is used when a request is made to change the current log specification
	// but it is in an invalid format.
	InvalidLogSpec = `Invalid log spec. It needs to be in the following format: ` +
		`ModuleName1=Level1:ModuleName2=Level2:ModuleNameN=LevelN:AllOtherModuleDefaultLevel
Valid log levels: critical,error,warning,info,debug
Error: %s`
	// SetLogSpecSuccess is used when the current log specification is successfully changed.
	SetLogSpecSuccess = "Successfully set log level(s)."
	// GetLogSpecSuccess is used when the current log specification is successfully retrieved.
	GetLogSpecSuccess = "Successfully got log level(s)."

	// UnescapeFailure is used when an error occurs while unescaping a path variable.
	UnescapeFailure = "Unable to unescape %s path variable: %s."
)

type didTokenError string

// Error returns the associated error message.
// This satisfies the built-in error interface.
func (e didTokenError) Error() string { return string(e) }
