// Copyright (c) 2024 Uber Technologies, Inc.
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

package http

import (
	"net/http"

	"go.uber.org/cmdrouter/routingerrors"
)

var (
	// _codeToStatusCode maps all Codes to their corresponding HTTP status code.
	_codeToStatusCode = map[routingerrors.Code]int{
		routingerrors.CodeOK:                 http.StatusOK,
		routingerrors.CodeCancelled:          499,
		routingerrors.CodeUnknown:            http.StatusInternalServerError,
		routingerrors.CodeInvalidArgument:    http.StatusBadRequest,
		routingerrors.CodeDeadlineExceeded:   http.StatusGatewayTimeout,
		routingerrors.CodeNotFound:           http.StatusNotFound,
		routingerrors.CodeFailedPrecondition: http.StatusBadRequest,
		routingerrors.CodeUnimplemented:      http.StatusNotImplemented,
		routingerrors.CodeInternal:           http.StatusInternalServerError,
		routingerrors.CodeUnavailable:        http.StatusServiceUnavailable,
	}

	// _statusCodeToCodes maps HTTP status codes to a slice of their
	// corresponding Codes. The first Code is the best guess.
	_statusCodeToCodes = map[int][]routingerrors.Code{
		http.StatusOK: {routingerrors.CodeOK},
		http.StatusBadRequest: {
			routingerrors.CodeInvalidArgument,
			routingerrors.CodeFailedPrecondition,
		},
		http.StatusNotFound:         {routingerrors.CodeNotFound},
		http.StatusMethodNotAllowed: {routingerrors.CodeUnimplemented},
		499:                         {routingerrors.CodeCancelled},
		http.StatusInternalServerError: {
			routingerrors.CodeUnknown,
			routingerrors.CodeInternal,
		},
		http.StatusNotImplemented:     {routingerrors.CodeUnimplemented},
		http.StatusServiceUnavailable: {routingerrors.CodeUnavailable},
		http.StatusGatewayTimeout:     {routingerrors.CodeDeadlineExceeded},
	}
)

// codeToHTTPStatusCode returns the HTTP status code for the given Code. It
// returns false if the Code is unknown.
func codeToHTTPStatusCode(code routingerrors.Code) (int, bool) {
	statusCode, ok := _codeToStatusCode[code]
	return statusCode, ok
}

// statusCodeToBestCode does a best-effort conversion from the given HTTP status
// code to a Code.
//
// If one Code maps to the given HTTP status code, that Code is returned.
// If more than one Code maps to the given HTTP status Code, one Code is returned.
// If the Code is >=400 and < 500, routingerrors.CodeInvalidArgument is returned.
// Else, routingerrors.CodeUnknown is returned.
func statusCodeToBestCode(statusCode int) routingerrors.Code {
	codes, ok := _statusCodeToCodes[statusCode]
	if !ok || len(codes) == 0 {
		if statusCode >= 400 && statusCode < 500 {
			return routingerrors.CodeInvalidArgument
		}
		return routingerrors.CodeUnknown
	}
	return codes[0]
}
