// Package audit records every action invocation in the audit_logs table
// and serves it back for operator review.
//
// Recorder implements kommander.ActionRecorder. Accepted and rejected
// invocations from REST and MQTT are both stored, with the encoded command
// for the accepted ones and the error text for the rest.
package audit
