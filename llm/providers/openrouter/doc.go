// Package openrouter provides the OpenRouter backend strategy. It is the
// default OpenAI-compatible strategy plus the HTTP-Referer and X-Title
// attribution headers OpenRouter uses for app rankings.
package openrouter
