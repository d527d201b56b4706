// Package mcp exposes the advisor API as Model Context Protocol tools over
// stdio JSON-RPC.
package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/go-logr/logr"
)

const (
	serverName      = "solaradvisor-mcp"
	serverVersion   = "0.1.0"
	protocolVersion = "2024-11-05"

	maxLineBytes = 1 << 20
)

// Server bridges stdio JSON-RPC to the advisor REST API.
type Server struct {
	client *APIClient
	tools  []Tool
	log    logr.Logger
}

// NewServer creates a Server backed by client.
func NewServer(client *APIClient, log logr.Logger) *Server {
	return &Server{client: client, tools: AllTools(), log: log}
}

// Run reads one request per line from in and writes responses to out. It
// returns nil when in is exhausted.
func (s *Server) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64<<10), maxLineBytes)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			s.write(out, &Response{JSONRPC: "2.0", Error: &RPCError{Code: ErrCodeParseError, Message: "Parse error: " + err.Error()}})
			continue
		}
		s.log.V(1).Info("Received request", "method", req.Method, "id", string(req.ID))
		s.write(out, s.dispatch(ctx, &req))
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}
	s.log.Info("Input closed, shutting down")
	return nil
}

// dispatch routes a request. A nil response means none is sent.
func (s *Server) dispatch(ctx context.Context, req *Request) *Response {
	switch req.Method {
	case "initialize":
		return result(req, InitializeResult{
			ProtocolVersion: protocolVersion,
			Capabilities:    ServerCaps{Tools: &ToolsCap{}},
			ServerInfo:      ServerInfo{Name: serverName, Version: serverVersion},
			Instructions: "Solar advisor MCP server. Sizes residential solar systems from a location and " +
				"consumption, and computes slab-tariff bills. Requires a running solar advisor API.",
		})
	case "initialized", "notifications/initialized":
		return nil
	case "tools/list":
		return result(req, ToolsListResult{Tools: s.tools})
	case "tools/call":
		return s.handleToolsCall(ctx, req)
	case "ping":
		return result(req, map[string]interface{}{})
	default:
		if len(req.ID) == 0 {
			// unknown notification
			return nil
		}
		return rpcError(req, ErrCodeMethodNotFound, "Method not found: "+req.Method)
	}
}

func (s *Server) handleToolsCall(ctx context.Context, req *Request) *Response {
	var params ToolCallParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return rpcError(req, ErrCodeInvalidParams, "Invalid params: "+err.Error())
		}
	}
	if params.Name == "" {
		return rpcError(req, ErrCodeInvalidParams, "Missing required parameter: name")
	}

	out, err := s.executeTool(ctx, params.Name, params.Arguments)
	if err != nil {
		s.log.Info("Tool failed", "tool", params.Name, "error", err.Error())
		return result(req, ToolCallResult{
			Content: []TextContent{{Type: "text", Text: "Error: " + err.Error()}},
			IsError: true,
		})
	}
	return result(req, ToolCallResult{Content: []TextContent{{Type: "text", Text: string(out)}}})
}

// executeTool dispatches to the API client method for name.
func (s *Server) executeTool(ctx context.Context, name string, raw json.RawMessage) (json.RawMessage, error) {
	decode := func(v any) error {
		if len(raw) == 0 {
			return nil
		}
		if err := json.Unmarshal(raw, v); err != nil {
			return fmt.Errorf("invalid arguments: %w", err)
		}
		return nil
	}

	switch name {
	case "recommend_solar_system":
		var args RecommendArgs
		if err := decode(&args); err != nil {
			return nil, err
		}
		if args.Location == "" {
			return nil, errors.New("missing required argument: location")
		}
		return s.client.Recommend(ctx, args)

	case "size_system":
		var args struct {
			DailyKWh   *float64 `json:"daily_kwh"`
			Irradiance *float64 `json:"solar_irradiance"`
		}
		if err := decode(&args); err != nil {
			return nil, err
		}
		if args.DailyKWh == nil || args.Irradiance == nil {
			return nil, errors.New("daily_kwh and solar_irradiance are required")
		}
		return s.client.Size(ctx, *args.DailyKWh, *args.Irradiance)

	case "tariff_cost":
		var args struct {
			Units *float64 `json:"units"`
		}
		if err := decode(&args); err != nil {
			return nil, err
		}
		if args.Units == nil {
			return nil, errors.New("missing required argument: units")
		}
		return s.client.Tariff(ctx, *args.Units)

	case "list_recommendations":
		var args struct {
			Limit int `json:"limit"`
		}
		if err := decode(&args); err != nil {
			return nil, err
		}
		return s.client.ListRecommendations(ctx, args.Limit)

	case "get_recommendation":
		var args struct {
			ID string `json:"id"`
		}
		if err := decode(&args); err != nil {
			return nil, err
		}
		if args.ID == "" {
			return nil, errors.New("missing required argument: id")
		}
		return s.client.GetRecommendation(ctx, args.ID)

	case "get_config":
		return s.client.GetConfig(ctx)

	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

func result(req *Request, v interface{}) *Response {
	return &Response{JSONRPC: "2.0", ID: req.ID, Result: v}
}

func rpcError(req *Request, code int, message string) *Response {
	return &Response{JSONRPC: "2.0", ID: req.ID, Error: &RPCError{Code: code, Message: message}}
}

// write emits resp as a single JSON line.
func (s *Server) write(w io.Writer, resp *Response) {
	if resp == nil {
		return
	}
	data, err := json.Marshal(resp)
	if err != nil {
		s.log.Error(err, "Failed to marshal response")
		return
	}
	data = append(data, '\n')
	if _, err := w.Write(data); err != nil {
		s.log.Error(err, "Failed to write response")
	}
}
