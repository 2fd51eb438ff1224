// Package orchestrator runs the nine-step tool-call pipeline: Received
// → Authenticated → Validated → Dispatched → Injected → Executing →
// Scrubbed → Logged → Returned, branching to Errored on any failure.
package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/VouchlyAI/Pincer-MCP/internal/audit"
	"github.com/VouchlyAI/Pincer-MCP/internal/caller"
	"github.com/VouchlyAI/Pincer-MCP/internal/gatekeeper"
	"github.com/VouchlyAI/Pincer-MCP/internal/gwerrors"
	"github.com/VouchlyAI/Pincer-MCP/internal/injector"
	"github.com/VouchlyAI/Pincer-MCP/internal/schema"
	"github.com/VouchlyAI/Pincer-MCP/internal/store"
)

// Request is an inbound tool call: a name, optional arguments, and an
// optional metadata map a proxy token may ride in.
type Request struct {
	Tool      string
	Arguments map[string]any
	Meta      map[string]any
}

// Response is what a successful tool call returns to the caller of
// CallTool.
type Response struct {
	Output map[string]any
}

// ToolDescriptor is one entry in the static discovery list ListTools
// returns.
type ToolDescriptor struct {
	Name   string
	Schema []byte
}

// Orchestrator wires the Gatekeeper, schema validator, caller registry,
// Injector, and Audit Log into the tool-call pipeline.
type Orchestrator struct {
	gatekeeper *gatekeeper.Gatekeeper
	validator  schema.Validator
	callers    caller.Registry
	injector   *injector.Injector
	auditLog   *audit.Log
	tools      []ToolDescriptor
	store      *store.Store
}

// New builds an Orchestrator. tools is the static discovery list
// returned unconditionally by ListTools.
func New(s *store.Store, validator schema.Validator, callers caller.Registry, auditLog *audit.Log, tools []ToolDescriptor) *Orchestrator {
	return &Orchestrator{
		gatekeeper: gatekeeper.New(s),
		validator:  validator,
		callers:    callers,
		injector:   injector.New(s),
		auditLog:   auditLog,
		tools:      tools,
		store:      s,
	}
}

// ListTools returns the static tool schema list. It requires no
// authentication; it is a discovery endpoint.
func (o *Orchestrator) ListTools() []ToolDescriptor {
	return o.tools
}

// CallTool runs the nine-step pipeline for req and returns its result.
func (o *Orchestrator) CallTool(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()

	agentID, _, err := o.gatekeeper.Authenticate(ctx, gatekeeper.Request{
		Tool:      req.Tool,
		Meta:      req.Meta,
		Arguments: req.Arguments,
	})
	if err != nil {
		o.logOutcome("unknown", req.Tool, start, err)
		return nil, err
	}

	if err := o.validator.Validate(req.Tool, req.Arguments); err != nil {
		o.logOutcome(agentID, req.Tool, start, err)
		return nil, err
	}

	c, err := o.callers.Lookup(req.Tool)
	if err != nil {
		o.logOutcome(agentID, req.Tool, start, err)
		return nil, err
	}

	enriched, err := o.injector.Inject(ctx, req.Tool, req.Arguments, agentID)
	if err != nil {
		o.logOutcome(agentID, req.Tool, start, err)
		return nil, err
	}
	defer o.injector.Scrub(enriched)

	resp, err := c.Execute(ctx, enriched)
	if err != nil {
		o.logOutcome(agentID, req.Tool, start, err)
		return nil, err
	}

	o.logOutcome(agentID, req.Tool, start, nil)
	return &Response{Output: resp.Output}, nil
}

// Close closes the Gatekeeper's and Injector's shared Vault Store
// handle, zeroing the cached master key.
func (o *Orchestrator) Close() error {
	return o.store.Close()
}

func (o *Orchestrator) logOutcome(agentID, tool string, start time.Time, err error) {
	if o.auditLog == nil {
		return
	}
	event := audit.Event{
		AgentID:    agentID,
		Tool:       tool,
		DurationMS: time.Since(start).Milliseconds(),
	}
	if err != nil {
		event.Status = "error"
		event.Error = summarize(err)
	} else {
		event.Status = "success"
	}
	o.auditLog.Log(event)
}

// summarize renders err as a short textual summary safe for the audit
// log: never the secret, never the full stack trace.
func summarize(err error) string {
	var gwErr *gwerrors.Error
	if errors.As(err, &gwErr) {
		return gwErr.Kind.String() + ": " + gwErr.Msg
	}
	return err.Error()
}
