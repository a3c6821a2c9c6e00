// Package route assigns placed channels to physical links with Pathfinder
// negotiated-congestion routing and validates the result.
//
// Every pass rips up and reroutes all channels. Elements used beyond their
// capacity get more expensive in two ways: a present-congestion term that
// grows every pass, and a history term that accumulates the overuse seen
// after each pass. Routing converges when a pass leaves nothing over
// capacity.
//
// A link carries one unit of occupancy per channel whose routing tree uses
// it, however many of the channel's sinks share it. A routable resource
// carries one unit per channel that relays through it; endpoints do not
// count.
package route
