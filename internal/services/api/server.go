// Package api exposes snapshot, change detection, and aggregation as JSON-over-HTTP operations.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	defaultListenAddress    = "127.0.0.1:0"
	defaultShutdownDuration = 5 * time.Second
	defaultMaxRequestBytes  = 64 << 20
	headerContentType       = "Content-Type"
	mimeTypeJSON            = "application/json"

	// ListFilesPath serves snapshot requests.
	ListFilesPath = "/list_files"
	// FilesContentPath serves aggregation requests.
	FilesContentPath = "/get_files_content"
	// ChangesPath serves change detection requests.
	ChangesPath      = "/changes"
	capabilitiesPath = "/capabilities"
	healthPath       = "/healthz"

	errorFieldName   = "error"
	errorReadBody    = "read request body: %v"
	errorBodyTooBig  = "request body exceeds %d bytes; send a fingerprint instead of the previous tree"
	errorEncodeReply = "encode response: %v"

	logRequestServed = "request served"
	logServerStarted = "server listening"
)

// Capability describes an operation exposed by the server.
type Capability struct {
	Name        string `json:"name"`
	Path        string `json:"path"`
	Description string `json:"description"`
}

// Operation handles the decoded body of one POST request and returns the
// payload to encode as the JSON response.
type Operation interface {
	Execute(ctx context.Context, payload json.RawMessage) (interface{}, error)
}

// OperationFunc adapts a function into an Operation.
type OperationFunc func(context.Context, json.RawMessage) (interface{}, error)

// Execute invokes the underlying function.
func (operation OperationFunc) Execute(ctx context.Context, payload json.RawMessage) (interface{}, error) {
	return operation(ctx, payload)
}

// RequestError is a failure accompanied by an HTTP status code.
type RequestError struct {
	statusCode int
	err        error
}

// Error returns the error string.
func (requestError RequestError) Error() string {
	return requestError.err.Error()
}

// Unwrap exposes the wrapped error.
func (requestError RequestError) Unwrap() error {
	return requestError.err
}

// StatusCode reports the associated HTTP status code.
func (requestError RequestError) StatusCode() int {
	return requestError.statusCode
}

// NewRequestError creates a new RequestError.
func NewRequestError(statusCode int, err error) error {
	if err == nil {
		return nil
	}
	return RequestError{statusCode: statusCode, err: err}
}

// Config defines runtime options for the server.
type Config struct {
	Address         string
	ShutdownTimeout time.Duration
	MaxRequestBytes int64
	Operations      map[string]Operation
	Capabilities    []Capability
	Logger          *zap.Logger
}

// Server routes POST requests to operations and reports capabilities.
type Server struct {
	config Config
}

// NewServer creates a new Server with defaults applied.
func NewServer(config Config) Server {
	normalized := config
	if normalized.Address == "" {
		normalized.Address = defaultListenAddress
	}
	if normalized.ShutdownTimeout <= 0 {
		normalized.ShutdownTimeout = defaultShutdownDuration
	}
	if normalized.MaxRequestBytes <= 0 {
		normalized.MaxRequestBytes = defaultMaxRequestBytes
	}
	if normalized.Operations == nil {
		normalized.Operations = map[string]Operation{}
	}
	if normalized.Capabilities == nil {
		normalized.Capabilities = []Capability{}
	}
	if normalized.Logger == nil {
		normalized.Logger = zap.NewNop()
	}
	return Server{config: normalized}
}

// Handler returns the HTTP handler serving every route.
func (server Server) Handler() http.Handler {
	router := http.NewServeMux()
	router.HandleFunc(capabilitiesPath, server.handleCapabilities)
	router.HandleFunc(healthPath, server.handleHealth)
	for path, operation := range server.config.Operations {
		router.Handle(path, server.operationHandler(operation))
	}
	return server.logRequests(router)
}

// Run starts the server and blocks until the provided context is canceled.
// The notify callback receives the bound address once the listener is active.
func (server Server) Run(ctx context.Context, notify func(string)) error {
	listener, listenErr := net.Listen("tcp", server.config.Address)
	if listenErr != nil {
		return fmt.Errorf("listen on %s: %w", server.config.Address, listenErr)
	}
	actualAddress := listener.Addr().String()

	httpServer := &http.Server{Handler: server.Handler(), ReadHeaderTimeout: 10 * time.Second}
	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		serveErr := httpServer.Serve(listener)
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", serveErr)
		}
		return nil
	})

	server.config.Logger.Info(logServerStarted, zap.String("address", actualAddress))
	if notify != nil {
		notify(actualAddress)
	}

	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), server.config.ShutdownTimeout)
		defer cancel()
		shutdownErr := httpServer.Shutdown(shutdownCtx)
		if shutdownErr != nil && !errors.Is(shutdownErr, context.Canceled) && !errors.Is(shutdownErr, http.ErrServerClosed) {
			return fmt.Errorf("shutdown: %w", shutdownErr)
		}
		return nil
	})

	return group.Wait()
}

func (server Server) handleCapabilities(writer http.ResponseWriter, request *http.Request) {
	if request.Method != http.MethodGet {
		writer.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	payload := struct {
		Capabilities []Capability `json:"capabilities"`
	}{Capabilities: server.config.Capabilities}
	server.writeJSON(writer, http.StatusOK, payload)
}

func (server Server) handleHealth(writer http.ResponseWriter, request *http.Request) {
	if request.Method != http.MethodGet {
		writer.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writer.WriteHeader(http.StatusOK)
}

func (server Server) operationHandler(operation Operation) http.HandlerFunc {
	return func(writer http.ResponseWriter, request *http.Request) {
		if request.Method != http.MethodPost {
			writer.Header().Set("Allow", http.MethodPost)
			writer.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		body, readErr := io.ReadAll(http.MaxBytesReader(writer, request.Body, server.config.MaxRequestBytes))
		if readErr != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(readErr, &tooLarge) {
				server.writeJSON(writer, http.StatusRequestEntityTooLarge, map[string]string{errorFieldName: fmt.Sprintf(errorBodyTooBig, tooLarge.Limit)})
				return
			}
			server.writeJSON(writer, http.StatusBadRequest, map[string]string{errorFieldName: fmt.Sprintf(errorReadBody, readErr)})
			return
		}
		response, executeErr := operation.Execute(request.Context(), json.RawMessage(body))
		if executeErr != nil {
			statusCode := server.statusCodeFromError(executeErr)
			server.writeJSON(writer, statusCode, map[string]string{errorFieldName: executeErr.Error()})
			return
		}
		server.writeJSON(writer, http.StatusOK, response)
	}
}

func (server Server) writeJSON(writer http.ResponseWriter, statusCode int, payload interface{}) {
	var buffer bytes.Buffer
	if encodeErr := json.NewEncoder(&buffer).Encode(payload); encodeErr != nil {
		fallback := map[string]string{errorFieldName: fmt.Sprintf(errorEncodeReply, encodeErr)}
		writer.Header().Set(headerContentType, mimeTypeJSON)
		writer.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(writer).Encode(fallback)
		return
	}
	writer.Header().Set(headerContentType, mimeTypeJSON)
	writer.WriteHeader(statusCode)
	_, _ = writer.Write(buffer.Bytes())
}

func (server Server) statusCodeFromError(err error) int {
	var requestError RequestError
	if errors.As(err, &requestError) {
		return requestError.StatusCode()
	}
	return http.StatusInternalServerError
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (recorder *statusRecorder) WriteHeader(statusCode int) {
	recorder.statusCode = statusCode
	recorder.ResponseWriter.WriteHeader(statusCode)
}

func (server Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		startedAt := time.Now()
		recorder := &statusRecorder{ResponseWriter: writer, statusCode: http.StatusOK}
		next.ServeHTTP(recorder, request)
		server.config.Logger.Info(logRequestServed,
			zap.String("method", request.Method),
			zap.String("path", request.URL.Path),
			zap.Int("status", recorder.statusCode),
			zap.Duration("duration", time.Since(startedAt)),
		)
	})
}
