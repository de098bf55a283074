/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package operation

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/trustbloc/didtoken/pkg/restapi/messages"
	"github.com/trustbloc/didtoken/pkg/restapi/models"
	"github.com/trustbloc/didtoken/pkg/validation"
)

const contentTypeJSON = "application/json"

func writeErrorWithReceivedData(rw http.ResponseWriter, status int, message string, err error, receivedData []byte) {
	logger.Errorf(message, err)
	logger.Debugf(messages.DebugLogEventWithReceivedData, fmt.Sprintf(message, err), receivedData)

	rw.WriteHeader(status)

	_, errWrite := rw.Write([]byte(fmt.Sprintf(message, err)))
	if errWrite != nil {
		logger.Errorf(message+messages.FailWriteResponse, err, errWrite)
	}
}

func writeValidationResult(rw http.ResponseWriter, result *validation.Response) {
	logger.Debugf(messages.DebugLogEvent, fmt.Sprintf(messages.ValidationComplete, result.Result, result.Status))

	status := result.Status
	if status == 0 {
		status = http.StatusOK
	}

	writeJSON(rw, status, result)
}

func writeCreateDIDSuccess(rw http.ResponseWriter, response *models.CreateDIDResponse, hostURL string) {
	logger.Infof(messages.CreateDIDSuccess, response.DID, response.KeyReference)

	rw.Header().Set("Location", hostURL+createDIDEndpoint+"/"+url.PathEscape(response.LongFormDID))

	writeJSON(rw, http.StatusCreated, response)
}

func writeResolveDIDFailure(rw http.ResponseWriter, status int, didID string, err error) {
	logger.Errorf(messages.ResolveDIDFailure, didID, err)

	rw.WriteHeader(status)

	_, errWrite := rw.Write([]byte(fmt.Sprintf(messages.ResolveDIDFailure, didID, err)))
	if errWrite != nil {
		logger.Errorf(messages.ResolveDIDFailure+messages.FailWriteResponse, didID, err, errWrite)
	}
}

func writeResolveDIDSuccess(rw http.ResponseWriter, didID string, docBytes []byte) {
	logger.Debugf(messages.DebugLogEvent, fmt.Sprintf(messages.ResolveDIDSuccess, didID))

	rw.Header().Set("Content-Type", contentTypeJSON)

	_, err := rw.Write(docBytes)
	if err != nil {
		logger.Errorf(messages.ResolveDIDSuccess+messages.FailWriteResponse, didID, err)
	}
}

func writeInvalidLogSpec(rw http.ResponseWriter, err error) {
	logger.Errorf(messages.InvalidLogSpec, err)

	rw.WriteHeader(http.StatusBadRequest)

	_, errWrite := rw.Write([]byte(fmt.Sprintf(messages.InvalidLogSpec, err)))
	if errWrite != nil {
		logger.Errorf(messages.InvalidLogSpec+messages.FailWriteResponse, err, errWrite)
	}
}

func writePutLogSpecSuccess(rw http.ResponseWriter) {
	_, errWrite := rw.Write([]byte(messages.SetLogSpecSuccess))
	if errWrite != nil {
		logger.Errorf(messages.SetLogSpecSuccess+messages.FailWriteResponse, errWrite)
	}
}

func writeJSON(rw http.ResponseWriter, status int, v interface{}) {
	responseBytes, err := json.Marshal(v)
	if err != nil {
		logger.Errorf(messages.MarshalValidationResultFailure, err)

		rw.WriteHeader(http.StatusInternalServerError)

		return
	}

	rw.Header().Set("Content-Type", contentTypeJSON)
	rw.WriteHeader(status)

	_, err = rw.Write(responseBytes)
	if err != nil {
		logger.Errorf(messages.FailWriteResponse, err)
	}
}
