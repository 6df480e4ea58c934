// Package colibri holds the JSON document model the bridge exchanges
// with its controller: conference descriptions, channel descriptions and
// the structured processing errors raised while applying them.
//
// Documents are mutable output structures. Describe operations fill them
// in through their Add/GetOrCreate methods; they are built per request
// and are not safe for concurrent mutation.
package colibri
