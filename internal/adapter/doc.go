// Package adapter abstracts vendor cloud APIs behind a uniform session
// interface.
//
// Each brand contributes a Factory to the Registry; the poll scheduler
// and jobs build adapters through it without knowing vendor specifics.
// Sessions persist across poll cycles in a SessionStore so controllers
// reauthenticate only after a failure.
//
// Commands use a uniform 0-100 level scale; QuantizeLevel maps it to
// whatever discrete scale each port's hardware accepts.
package adapter
