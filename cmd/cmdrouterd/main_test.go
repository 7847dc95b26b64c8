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
	"bytes"
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/cmdrouter/api/command"
	transporthttp "go.uber.org/cmdrouter/transport/http"
	"go.uber.org/zap/zapcore"
)

func TestServeFlagsOverrideConfig(t *testing.T) {
	cmd := newServeCmd()
	require.NoError(t, cmd.Flags().Parse([]string{"--service", "orders", "--listen", "127.0.0.1:9999", "--log-level", "warn"}))

	var f serveFlags
	f.service, _ = cmd.Flags().GetString("service")
	f.listen, _ = cmd.Flags().GetString("listen")
	f.logLevel, _ = cmd.Flags().GetString("log-level")

	cfg, err := f.load(cmd.Flags())
	require.NoError(t, err)
	assert.Equal(t, "orders", cfg.Service)
	assert.Equal(t, "127.0.0.1:9999", cfg.Listen)
	assert.Equal(t, zapcore.WarnLevel, cfg.Logging.ZapLevel())
}

func TestServeRequiresService(t *testing.T) {
	cmd := newServeCmd()
	require.NoError(t, cmd.Flags().Parse(nil))
	_, err := serveFlags{}.load(cmd.Flags())
	assert.Error(t, err)
}

func TestSend(t *testing.T) {
	var got command.Command
	inbound := transporthttp.NewInbound("127.0.0.1:0",
		command.HandlerFunc(func(_ context.Context, cmd command.Command) ([]byte, error) {
			got = cmd
			return []byte("ok"), nil
		}),
		transporthttp.ContextRoot("/api"),
	)
	require.NoError(t, inbound.Start())
	defer inbound.Stop()

	addr := inbound.Addr().(*net.TCPAddr)
	endpoint := "http://127.0.0.1:" + strconv.Itoa(addr.Port) + "/api"

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"send",
		"--endpoint", endpoint,
		"--name", "OrderCommand",
		"--routing-key", "order-1",
		"--payload", "hello",
		"--timeout", time.Second.String(),
	})
	require.NoError(t, root.Execute())

	assert.Equal(t, "ok", out.String())
	assert.Equal(t, "OrderCommand", got.Name)
	assert.Equal(t, []byte("hello"), got.Payload)
	assert.Equal(t, "order-1", got.Metadata[command.DefaultRoutingKeyMetadata])
	assert.NotEmpty(t, got.ID)
}
