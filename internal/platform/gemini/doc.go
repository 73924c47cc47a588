// Package gemini implements the generation.Generator interface using
// Google's Gemini API. It turns a template's parameter schema and target
// words into a structured JSON prompt, calls the model with retry and
// backoff, and parses the response into per-parameter text values.
package gemini
