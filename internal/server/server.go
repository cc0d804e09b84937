// Package server dispatches tool requests arriving over stdio.
//
// The protocol is line-delimited JSON: one request object per line on stdin,
// one response object per line on stdout. Requests are processed strictly one
// at a time, so a script run always observes the session state left by the
// previous request.
package server

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/awsgate/awsgate/internal/log"
	"github.com/awsgate/awsgate/internal/tools"
)

// Tool names accepted on the wire.
const (
	ToolRunScript     = "run-script"
	ToolListProfiles  = "list-profiles"
	ToolSelectProfile = "select-profile"
)

// maxRequestBytes bounds one request line. Scripts are text; a megabyte is
// generous.
const maxRequestBytes = 1 << 20

// Request is one inbound tool call.
type Request struct {
	ID   string          `json:"id"`
	Tool string          `json:"tool"`
	Args json.RawMessage `json:"args,omitempty"`
}

// Response is the reply to one Request. Exactly one of Result and Error is
// set.
type Response struct {
	ID     string  `json:"id"`
	Result *string `json:"result,omitempty"`
	Error  *string `json:"error,omitempty"`
}

// Server reads requests and routes them to the tool handlers.
type Server struct {
	handler *tools.Handler
	mu      sync.Mutex
}

// New creates a Server over the given tool handler.
func New(handler *tools.Handler) *Server {
	return &Server{handler: handler}
}

// Serve processes requests from in until EOF or ctx cancellation, writing one
// response line per request to out. Malformed input produces an error
// response, never a dropped connection.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), maxRequestBytes)
	enc := json.NewEncoder(out)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			log.Warn("malformed request line", "error", err)
			if encErr := enc.Encode(errorResponse("", fmt.Sprintf("invalid request: %v", err))); encErr != nil {
				return encErr
			}
			continue
		}

		resp := s.dispatch(ctx, req)
		if err := enc.Encode(resp); err != nil {
			return err
		}
	}
	return scanner.Err()
}

// dispatch runs one request to completion. The mutex makes tool calls
// single-flight even if Serve ever gains concurrent callers.
func (s *Server) dispatch(ctx context.Context, req Request) (resp Response) {
	s.mu.Lock()
	defer s.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			log.Error("tool handler panicked", "tool", req.Tool, "panic", fmt.Sprint(r))
			resp = errorResponse(req.ID, fmt.Sprintf("internal error in %s: %v", req.Tool, r))
		}
	}()

	log.SetToolCallID(req.ID)
	defer log.SetToolCallID("")
	log.Debug("dispatching tool call", "id", req.ID, "tool", req.Tool)

	switch req.Tool {
	case ToolRunScript:
		var args tools.RunScriptArgs
		if err := unmarshalArgs(req.Args, &args); err != nil {
			return errorResponse(req.ID, err.Error())
		}
		return resultResponse(req.ID, s.handler.RunScript(ctx, args))

	case ToolListProfiles:
		return resultResponse(req.ID, s.handler.ListProfiles(ctx))

	case ToolSelectProfile:
		var args tools.SelectProfileArgs
		if err := unmarshalArgs(req.Args, &args); err != nil {
			return errorResponse(req.ID, err.Error())
		}
		return resultResponse(req.ID, s.handler.SelectProfile(ctx, args))

	default:
		return errorResponse(req.ID, fmt.Sprintf("unknown tool %q", req.Tool))
	}
}

func unmarshalArgs(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("invalid args: %w", err)
	}
	return nil
}

func resultResponse(id, result string) Response {
	return Response{ID: id, Result: &result}
}

func errorResponse(id, msg string) Response {
	return Response{ID: id, Error: &msg}
}
