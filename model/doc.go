// Package model routes generation requests to language model backends by
// task class. Callers name a class (fast, quality, code or auto); the router
// resolves it to a bound Backend, classifying the query itself when the class
// is auto and falling back across classes when the primary backend fails.
//
// Concrete backends live in the subpackages openai and anthropic; MockBackend
// serves tests and examples.
package model
