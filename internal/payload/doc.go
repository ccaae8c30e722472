// Package payload normalizes provider responses into a single recursive value
// model.
//
// eBay answers REST calls with JSON and Trading API calls with XML. Both are
// decoded into a Value (null, scalar, list or map) so that callers can read
// fields with a dotted path such as "User.UserID" without caring about the
// wire encoding.
//
// XML decoding mirrors the element hierarchy and is keyed by tag name.
// Repeated sibling elements do not accumulate into a list: the last one
// wins.
package payload
