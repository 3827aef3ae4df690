// Package azure provides the Azure OpenAI backend strategy.
//
// Azure differs from the default strategy in three ways: the credential is
// sent in an api-key header instead of a bearer token, the endpoint is
// /openai/deployments/<model>/chat/completions?api-version=<v>, and model
// ids are lower-cased before the request is sent.
package azure
