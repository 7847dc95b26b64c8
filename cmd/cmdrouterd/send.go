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

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/cmdrouter/api/command"
	"go.uber.org/cmdrouter/api/member"
	transporthttp "go.uber.org/cmdrouter/transport/http"
)

type sendFlags struct {
	endpoint   string
	service    string
	name       string
	routingKey string
	payload    string
	metadata   map[string]string
	timeout    time.Duration
}

func newSendCmd() *cobra.Command {
	var f sendFlags
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Deliver a single command to a member",
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := f.send(cmd.Context())
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(res)
			return err
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&f.endpoint, "endpoint", "", "endpoint of the member, including its context root")
	flags.StringVar(&f.service, "service", "cmdrouterd", "service id of the member")
	flags.StringVar(&f.name, "name", "", "name of the command")
	flags.StringVar(&f.routingKey, "routing-key", "", "routing key of the command")
	flags.StringVar(&f.payload, "payload", "", "payload of the command")
	flags.StringToStringVar(&f.metadata, "metadata", nil, "additional metadata of the command")
	flags.DurationVar(&f.timeout, "timeout", transporthttp.DefaultTimeout, "time to wait for the result")
	_ = cmd.MarkFlagRequired("endpoint")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func (f sendFlags) send(ctx context.Context) ([]byte, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	metadata := make(map[string]string, len(f.metadata)+1)
	for k, v := range f.metadata {
		metadata[k] = v
	}
	if f.routingKey != "" {
		metadata[command.DefaultRoutingKeyMetadata] = f.routingKey
	}

	cmd := command.Command{
		ID:       uuid.New().String(),
		Name:     f.name,
		Metadata: metadata,
	}
	if f.payload != "" {
		cmd.Payload = []byte(f.payload)
	}

	outbound := transporthttp.NewOutbound(transporthttp.Caller("cmdrouterd"), transporthttp.Timeout(f.timeout))
	res, err := outbound.Call(ctx, member.New(f.service, f.endpoint), cmd)
	if err != nil {
		return nil, fmt.Errorf("failed to send %q to %v: %v", f.name, f.endpoint, err)
	}
	return res, nil
}
