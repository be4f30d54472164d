// Package value implements the unified tagged data representation used for
// every port payload and persisted field in a workspace.
//
// A Value is one of: Empty, Null, Bool, I64, U64, Float, String, Array,
// Map or Error. Equality and ordering are total across all variants, and
// there is no implicit cross-variant coercion; conversions go through
// Convert and fail loudly. Arrays and Maps preserve element and key order
// exactly as supplied.
//
// The Error variant carries an upstream failure as ordinary data, so a
// failed node's output flows to its consumers through the same channel as
// any other value.
package value
