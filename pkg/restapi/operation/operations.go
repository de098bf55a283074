/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package operation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/ioutil"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/gorilla/mux"
	"github.com/trustbloc/edge-core/pkg/log"

	"github.com/trustbloc/didtoken/pkg/didresolver"
	"github.com/trustbloc/didtoken/pkg/didutils"
	"github.com/trustbloc/didtoken/pkg/internal/common/support"
	"github.com/trustbloc/didtoken/pkg/longformdid"
	"github.com/trustbloc/didtoken/pkg/restapi/messages"
	"github.com/trustbloc/didtoken/pkg/restapi/models"
	"github.com/trustbloc/didtoken/pkg/validation"
	"github.com/trustbloc/didtoken/pkg/validator"
)

const (
	logModuleName = "restapi"

	didPathVariable = "did"

	validationsEndpoint    = "/validations"
	createDIDEndpoint      = "/identifiers"
	resolveDIDEndpoint     = "/identifiers/{" + didPathVariable + "}"
	logSpecEndpoint        = "/loglevels"
	logSpecModuleSeparator = ":"
	logSpecLevelSeparator  = "="
)

var logger = log.New(logModuleName)

// Handler represents an HTTP handler for each controller API endpoint.
type Handler interface {
	Path() string
	Method() string
	Handle() http.HandlerFunc
}

type tokenValidator interface {
	Validate(ctx context.Context, rawToken string) (*validation.Response, error)
}

type didCreator interface {
	Create(keyReference string) (*longformdid.CreateResult, error)
}

// Config defines configuration for the DID token operations.
type Config struct {
	Validator tokenValidator
	Creator   didCreator
	Resolver  didresolver.Resolver
}

// Operation defines handler logic for the DID token service.
type Operation struct {
	handlers  []Handler
	validator tokenValidator
	creator   didCreator
	resolver  didresolver.Resolver

	logModulesMutex sync.Mutex
	logModules      map[string]struct{}
}

// New returns a new DID token operations instance.
func New(config *Config) *Operation {
	svc := &Operation{
		validator:  config.Validator,
		creator:    config.Creator,
		resolver:   config.Resolver,
		logModules: make(map[string]struct{}),
	}

	svc.registerHandler()

	return svc
}

// registerHandler register handlers to be exposed from this service as REST API endpoints.
func (c *Operation) registerHandler() {
	c.handlers = []Handler{
		support.NewHTTPHandler(validationsEndpoint, http.MethodPost, c.validateTokenHandler),
		support.NewHTTPHandler(createDIDEndpoint, http.MethodPost, c.createDIDHandler),
		support.NewHTTPHandler(resolveDIDEndpoint, http.MethodGet, c.resolveDIDHandler),
		support.NewHTTPHandler(logSpecEndpoint, http.MethodPut, c.logSpecPutHandler),
		support.NewHTTPHandler(logSpecEndpoint, http.MethodGet, c.logSpecGetHandler),
	}
}

// GetRESTHandlers gets all controller API handler available for this service.
func (c *Operation) GetRESTHandlers() []Handler {
	return c.handlers
}

// Validate Token swagger:route POST /validations validateTokenReq
//
// Validates a token and every token embedded in it.
//
// Responses:
//    default: genericError
//        200: validateTokenRes
func (c *Operation) validateTokenHandler(rw http.ResponseWriter, req *http.Request) {
	requestBody, err := ioutil.ReadAll(req.Body)
	if err != nil {
		writeErrorWithReceivedData(rw, http.StatusInternalServerError, messages.ValidateFailReadRequestBody, err, nil)
		return
	}

	logger.Debugf(messages.DebugLogEventWithReceivedData, messages.ValidateReceiveRequest, requestBody)

	var request models.ValidationRequest

	err = json.Unmarshal(requestBody, &request)
	if err != nil {
		writeErrorWithReceivedData(rw, http.StatusBadRequest, messages.InvalidValidationRequest, err, requestBody)
		return
	}

	if request.Token == "" {
		writeErrorWithReceivedData(rw, http.StatusBadRequest, messages.InvalidValidationRequest,
			messages.ErrBlankToken, requestBody)

		return
	}

	result, err := c.validator.Validate(req.Context(), request.Token)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, validator.ErrUnsupportedTokenType) {
			status = http.StatusBadRequest
		}

		writeErrorWithReceivedData(rw, status, messages.ValidationFailure, err, requestBody)

		return
	}

	writeValidationResult(rw, result)
}

// Create DID swagger:route POST /identifiers createDIDReq
//
// Creates a long-form DID. The signing key is stored under the key reference.
//
// Responses:
//    default: genericError
//        201: createDIDRes
func (c *Operation) createDIDHandler(rw http.ResponseWriter, req *http.Request) {
	requestBody, err := ioutil.ReadAll(req.Body)
	if err != nil {
		writeErrorWithReceivedData(rw, http.StatusInternalServerError, messages.CreateDIDFailReadRequestBody, err, nil)
		return
	}

	logger.Debugf(messages.DebugLogEventWithReceivedData, messages.CreateDIDReceiveRequest, requestBody)

	var request models.CreateDIDRequest

	if len(requestBody) > 0 {
		err = json.Unmarshal(requestBody, &request)
		if err != nil {
			writeErrorWithReceivedData(rw, http.StatusBadRequest, messages.InvalidCreateDIDRequest, err, requestBody)
			return
		}
	}

	if request.KeyReference == "" {
		request.KeyReference, err = didutils.GenerateKeyReference()
		if err != nil {
			writeErrorWithReceivedData(rw, http.StatusInternalServerError, messages.KeyReferenceGenerationFailure,
				err, requestBody)

			return
		}
	}

	result, err := c.creator.Create(request.KeyReference)
	if err != nil {
		writeErrorWithReceivedData(rw, http.StatusInternalServerError, messages.CreateDIDFailure, err, requestBody)
		return
	}

	writeCreateDIDSuccess(rw, &models.CreateDIDResponse{KeyReference: request.KeyReference, CreateResult: result},
		req.Host)
}

// Resolve DID swagger:route GET /identifiers/{did} resolveDIDReq
//
// Resolves a DID. Long-form DIDs are resolved from their initial state.
//
// Responses:
//    default: genericError
//        200: resolveDIDRes
func (c *Operation) resolveDIDHandler(rw http.ResponseWriter, req *http.Request) {
	didID, success := unescapePathVar(didPathVariable, mux.Vars(req), rw)
	if !success {
		return
	}

	logger.Debugf(messages.DebugLogEvent, fmt.Sprintf(messages.ResolveDIDReceiveRequest, didID))

	if strings.TrimSpace(didID) == "" {
		writeResolveDIDFailure(rw, http.StatusBadRequest, didID, messages.ErrBlankDID)
		return
	}

	doc, err := c.resolver.Resolve(req.Context(), didID)
	if err != nil {
		if didresolver.IsNotFound(err) {
			writeResolveDIDFailure(rw, http.StatusNotFound, didID, fmt.Errorf("%w: %s", messages.ErrDIDNotFound, err))
			return
		}

		writeResolveDIDFailure(rw, http.StatusInternalServerError, didID, err)

		return
	}

	docBytes, err := doc.JSONBytes()
	if err != nil {
		writeResolveDIDFailure(rw, http.StatusInternalServerError, didID, err)
		return
	}

	writeResolveDIDSuccess(rw, didID, docBytes)
}

// Change Log Level swagger:route PUT /loglevels changeLogSpecReq
//
// Changes the current log specification.
// Format: ModuleName1=Level1:ModuleName2=Level2:ModuleNameN=LevelN:AllOtherModuleDefaultLevel
// Valid log levels: critical,error,warning,info,debug
//
// Responses:
//    default: genericError
//        200: changeLogSpecRes
func (c *Operation) logSpecPutHandler(rw http.ResponseWriter, req *http.Request) {
	var incomingLogSpec models.LogSpec

	err := json.NewDecoder(req.Body).Decode(&incomingLogSpec)
	if err != nil {
		writeInvalidLogSpec(rw, err)
		return
	}

	levels, defaultLevel, err := parseLogSpec(incomingLogSpec.Spec)
	if err != nil {
		writeInvalidLogSpec(rw, err)
		return
	}

	c.logModulesMutex.Lock()

	if defaultLevel != nil {
		log.SetLevel("", *defaultLevel)
	}

	for module, level := range levels {
		log.SetLevel(module, level)
		c.logModules[module] = struct{}{}
	}

	c.logModulesMutex.Unlock()

	logger.Infof(messages.SetLogSpecSuccess)

	writePutLogSpecSuccess(rw)
}

// Get Log Level swagger:route GET /loglevels getLogSpecReq
//
// Gets the current log specification.
// Format: ModuleName1=Level1:ModuleName2=Level2:ModuleNameN=LevelN:AllOtherModuleDefaultLevel
//
// Responses:
//    default: genericError
//        200: getLogSpecRes
func (c *Operation) logSpecGetHandler(rw http.ResponseWriter, _ *http.Request) {
	c.logModulesMutex.Lock()

	modules := make([]string, 0, len(c.logModules))
	for module := range c.logModules {
		modules = append(modules, module)
	}

	c.logModulesMutex.Unlock()

	sort.Strings(modules)

	var spec strings.Builder

	for _, module := range modules {
		spec.WriteString(module + logSpecLevelSeparator + levelName(log.GetLevel(module)) + logSpecModuleSeparator)
	}

	spec.WriteString(levelName(log.GetLevel("")))

	logger.Debugf(messages.GetLogSpecSuccess)

	writeJSON(rw, http.StatusOK, models.LogSpec{Spec: spec.String()})
}

// The last element may be a bare level, which becomes the default level of every other module.
func parseLogSpec(spec string) (map[string]log.Level, *log.Level, error) {
	if strings.TrimSpace(spec) == "" {
		return nil, nil, errors.New("log spec is blank")
	}

	levels := make(map[string]log.Level)

	var defaultLevel *log.Level

	elements := strings.Split(spec, logSpecModuleSeparator)

	for i, element := range elements {
		moduleAndLevel := strings.Split(element, logSpecLevelSeparator)

		switch len(moduleAndLevel) {
		case 1:
			if i != len(elements)-1 {
				return nil, nil, fmt.Errorf("default level %q must be the last element", element)
			}

			level, err := log.ParseLevel(moduleAndLevel[0])
			if err != nil {
				return nil, nil, err
			}

			defaultLevel = &level
		case 2: //nolint:gomnd
			if moduleAndLevel[0] == "" {
				return nil, nil, fmt.Errorf("module name missing in %q", element)
			}

			level, err := log.ParseLevel(moduleAndLevel[1])
			if err != nil {
				return nil, nil, err
			}

			levels[moduleAndLevel[0]] = level
		default:
			return nil, nil, fmt.Errorf("invalid element %q", element)
		}
	}

	return levels, defaultLevel, nil
}

func levelName(level log.Level) string {
	switch level {
	case log.CRITICAL:
		return "CRITICAL"
	case log.ERROR:
		return "ERROR"
	case log.WARNING:
		return "WARNING"
	case log.INFO:
		return "INFO"
	case log.DEBUG:
		return "DEBUG"
	default:
		return fmt.Sprintf("%d", level)
	}
}
