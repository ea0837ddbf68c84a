// Package script is the facade consumed by the surrounding script runtime:
// one Runtime per executing script, bound to the identity (session, user,
// agent, conversation) the script runs as. Its methods map one-to-one onto
// the script keywords: ADD BOT, DELEGATE, BROADCAST, TRANSFER, SET/GET
// MEMORY, USE MODEL and the pending-message poll.
//
// The facade resolves memory scopes to their implicit owners from the bound
// identity, so scripts never name owner ids directly.
package script
