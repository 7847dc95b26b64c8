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

import "time"

const transportName = "http"

// DefaultCommandsPath is the path, relative to a member endpoint, at which
// members accept commands.
const DefaultCommandsPath = "/commands"

// DefaultTimeout bounds command calls whose context carries no deadline.
const DefaultTimeout = 10 * time.Second

// HTTP headers used in requests and responses to carry command metadata.
const (
	// Unique identifier of the command. This corresponds to the Command.ID
	// attribute.
	CommandIDHeader = "Cmd-Id"

	// Name of the command type. This corresponds to the Command.Name
	// attribute.
	CommandNameHeader = "Cmd-Name"

	// Name of the service sending the command.
	CallerHeader = "Cmd-Caller"

	// Amount of time (in milliseconds) within which the command is expected
	// to finish.
	TTLMSHeader = "Context-TTL-MS"

	// ErrorCodeHeader contains the string representation of the error code.
	ErrorCodeHeader = "Cmd-Error-Code"

	// MetadataHeaderPrefix is the prefix of headers carrying command
	// metadata entries.
	MetadataHeaderPrefix = "Cmd-Meta-"
)
