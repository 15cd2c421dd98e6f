package mcshell

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
)

// RPCRequest is one line of the stdio protocol: an id the caller
// chose (echoed back so responses can be matched to requests sent
// concurrently), a method naming one of the four Facade operations,
// and method-specific params.
type RPCRequest struct {
	ID     string          `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// RPCResponse is the reply to one RPCRequest. Exactly one of Result or
// Error is set.
type RPCResponse struct {
	ID     string          `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *RPCError       `json:"error,omitempty"`
}

// RPCError is the wire form of a request that could not be served at
// all (bad method, bad params) as distinct from a pipeline that ran
// and produced a PipelineResult with Status "error" — the latter is
// still a successful RPC call.
type RPCError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

const (
	methodExecutePipeline            = "execute_pipeline"
	methodListAllTools               = "list_all_tools"
	methodGetToolDetails             = "get_tool_details"
	methodListAvailableShellCommands = "list_available_shell_commands"
)

// Server dispatches RPCRequests read from a transport to a Facade and
// writes back RPCResponses: request correlation and concurrent
// in-flight tracking, but inverted in role from a typical client
// protocol — mcshell answers requests here rather than awaiting
// responses to ones it sent.
type Server struct {
	facade    Facade
	transport *StdioTransport
	log       Logger

	served   atomic.Uint64
	inFlight sync.Map // request id -> context.CancelFunc
}

// NewServer returns a Server that serves facade over transport.
func NewServer(facade Facade, transport *StdioTransport, log Logger) *Server {
	if log == nil {
		log = NewNopLogger()
	}
	return &Server{facade: facade, transport: transport, log: log}
}

// Serve reads requests from the transport until ctx is cancelled or
// the transport reaches EOF, dispatching each to its own goroutine so
// a slow pipeline never blocks unrelated requests. It returns once all
// in-flight requests have been given a chance to observe cancellation.
func (s *Server) Serve(ctx context.Context) error {
	var wg sync.WaitGroup
	defer wg.Wait()

	for req, err := range s.transport.ReadRequests(ctx) {
		if err != nil {
			s.log.Warn("malformed request", "error", err)
			continue
		}

		wg.Add(1)
		go func(req RPCRequest) {
			defer wg.Done()
			s.handle(ctx, req)
		}(req)
	}
	return nil
}

// Cancel cancels the in-flight request identified by id, if any is
// still running. This backs a future out-of-band "cancel" control
// message; nothing in the current wire protocol sends one yet, but the
// bookkeeping (inFlight) costs nothing to keep ready.
func (s *Server) Cancel(id string) bool {
	v, ok := s.inFlight.Load(id)
	if !ok {
		return false
	}
	v.(context.CancelFunc)()
	return true
}

func (s *Server) handle(ctx context.Context, req RPCRequest) {
	reqCtx, cancel := context.WithCancel(ctx)
	s.inFlight.Store(req.ID, cancel)
	defer func() {
		s.inFlight.Delete(req.ID)
		cancel()
	}()

	s.served.Add(1)

	result, rpcErr := s.dispatch(reqCtx, req)
	resp := RPCResponse{ID: req.ID}
	if rpcErr != nil {
		resp.Error = rpcErr
	} else {
		resp.Result = result
	}

	if err := s.transport.WriteResponse(resp); err != nil {
		s.log.Warn("write response failed", "id", req.ID, "error", err)
	}
}

func (s *Server) dispatch(ctx context.Context, req RPCRequest) (json.RawMessage, *RPCError) {
	switch req.Method {
	case methodExecutePipeline:
		var p Pipeline
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return nil, &RPCError{Kind: KindValidation, Message: "invalid params: " + err.Error()}
		}
		result := s.facade.ExecutePipeline(ctx, p)
		return marshalResult(result)

	case methodListAllTools:
		tools, err := s.facade.ListAllTools(ctx)
		if err != nil {
			return nil, toRPCError(err)
		}
		return marshalResult(tools)

	case methodGetToolDetails:
		var dreq ToolDetailsRequest
		if err := json.Unmarshal(req.Params, &dreq); err != nil {
			return nil, &RPCError{Kind: KindValidation, Message: "invalid params: " + err.Error()}
		}
		desc, err := s.facade.GetToolDetails(ctx, dreq)
		if err != nil {
			return nil, toRPCError(err)
		}
		return marshalResult(desc)

	case methodListAvailableShellCommands:
		commands, err := s.facade.ListAvailableShellCommands(ctx)
		if err != nil {
			return nil, toRPCError(err)
		}
		return marshalResult(commands)

	default:
		return nil, &RPCError{Kind: KindValidation, Message: "unknown method: " + req.Method}
	}
}

func marshalResult(v any) (json.RawMessage, *RPCError) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, &RPCError{Kind: KindInternal, Message: err.Error()}
	}
	return data, nil
}

func toRPCError(err error) *RPCError {
	kind, ok := Classify(err)
	if !ok {
		kind = KindInternal
	}
	return &RPCError{Kind: kind, Message: err.Error()}
}
