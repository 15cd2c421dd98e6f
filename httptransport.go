package mcshell

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// HTTPHandler exposes the Facade over HTTP, for callers that prefer a
// request/response style integration over the stdio JSON-RPC loop.
// Routing follows chi's usual mux-plus-middleware shape; the streaming
// endpoint reuses the event/data framing goadesign-goa-ai's SSE caller
// parses on the client side, written here from the server end instead.
type HTTPHandler struct {
	facade Facade
	log    Logger
	router chi.Router
}

// NewHTTPHandler builds the routed handler. Mount it directly as an
// http.Handler, or embed router into a larger mux via Router().
func NewHTTPHandler(facade Facade, log Logger) *HTTPHandler {
	if log == nil {
		log = NewNopLogger()
	}
	h := &HTTPHandler{facade: facade, log: log}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Post("/v1/pipelines", h.executePipeline)
	r.Get("/v1/pipelines/stream", h.executePipelineSSE)
	r.Get("/v1/tools", h.listAllTools)
	r.Get("/v1/tools/{server}/{tool}", h.getToolDetails)
	r.Get("/v1/commands", h.listAvailableShellCommands)

	h.router = r
	return h
}

func (h *HTTPHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

// Router exposes the chi router for callers that want to mount it
// under a prefix or alongside other routes.
func (h *HTTPHandler) Router() chi.Router { return h.router }

func (h *HTTPHandler) executePipeline(w http.ResponseWriter, r *http.Request) {
	var p Pipeline
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}
	result := h.facade.ExecutePipeline(r.Context(), p)
	writeJSON(w, http.StatusOK, result)
}

// executePipelineSSE runs the pipeline and writes its PipelineResult as
// one "result" SSE event, whatever the pipeline's status. A malformed
// request body gets a 400 JSON error response instead of an event
// stream. The event is written once every stage has finished; no
// per-stage progress events are sent.
func (h *HTTPHandler) executePipelineSSE(w http.ResponseWriter, r *http.Request) {
	var p Pipeline
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSONError(w, http.StatusInternalServerError, fmt.Errorf("streaming unsupported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	result := h.facade.ExecutePipeline(r.Context(), p)
	writeSSEEvent(w, "result", result)
	flusher.Flush()
}

func (h *HTTPHandler) listAllTools(w http.ResponseWriter, r *http.Request) {
	tools, err := h.facade.ListAllTools(r.Context())
	if err != nil {
		writeJSONError(w, statusForErr(err), err)
		return
	}
	writeJSON(w, http.StatusOK, tools)
}

func (h *HTTPHandler) getToolDetails(w http.ResponseWriter, r *http.Request) {
	server := chi.URLParam(r, "server")
	tool := chi.URLParam(r, "tool")
	desc, err := h.facade.GetToolDetails(r.Context(), ToolDetailsRequest{Server: server, Tool: tool})
	if err != nil {
		writeJSONError(w, statusForErr(err), err)
		return
	}
	writeJSON(w, http.StatusOK, desc)
}

func (h *HTTPHandler) listAvailableShellCommands(w http.ResponseWriter, r *http.Request) {
	commands, err := h.facade.ListAvailableShellCommands(r.Context())
	if err != nil {
		writeJSONError(w, statusForErr(err), err)
		return
	}
	writeJSON(w, http.StatusOK, commands)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// writeSSEEvent frames v as one SSE event, matching the event:/data:
// line shape the SSE caller's reader expects.
func writeSSEEvent(w http.ResponseWriter, event string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		data = []byte(fmt.Sprintf(`{"error":%q}`, err.Error()))
	}
	fmt.Fprintf(w, "event: %s\n", event)
	fmt.Fprintf(w, "data: %s\n\n", data)
}

func statusForErr(err error) int {
	kind, ok := Classify(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindValidation:
		return http.StatusBadRequest
	case KindRuntimeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
