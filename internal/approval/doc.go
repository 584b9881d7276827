// Package approval implements the human-in-the-loop pairing workflow.
//
// A remote device that presents the correct pairing code does not get a
// credential immediately; it gets a pending request. The operator reviews the
// request (name, platform, requesting IP) and approves or denies it from a
// trusted device. Approval mints exactly one device record and one session
// token, which the requester picks up by polling.
//
// Requests expire five minutes after creation. Expiry is computed whenever a
// request is read; nothing is deleted or swept in the background, and the
// stored status stays pending.
package approval
