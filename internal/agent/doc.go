// Package agent turns a conversation history into an LLM reply.
//
// # Invoker
//
// The conversation service depends only on the Invoker interface:
//
//	type Invoker interface {
//	    Invoke(ctx context.Context, history []Turn) Result
//	}
//
// History is an ordered, read-only slice of role/content pairs. Each call is
// a single attempt; there is no retry.
//
// # Result
//
// Result is a tagged value: Ok(text) or Fail(kind, cause). Kinds:
//
//   - KindNotConfigured: no credentials or provider "none"
//   - KindUpstream: the provider call failed or timed out
//   - KindEmptyReply: the provider answered with nothing usable
//
// Result.Err converts a failure into an *Error that matches ErrUnavailable.
//
// # Implementations
//
//   - LLMInvoker: wraps any langchaingo llms.Model and prepends a system prompt
//   - Unconfigured: always fails with KindNotConfigured
//   - InvokerFunc: adapter for tests and small integrations
//
// New builds the right one from config.AgentConfig, choosing the OpenAI,
// Anthropic or Ollama client from langchaingo.
package agent
