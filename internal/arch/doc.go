// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// Package arch models the target architecture as an abstract resource graph.
//
// # Core Concepts
//
//   - Resource: a tile, memory, port or any other named element of the
//     architecture. A resource has a class, which is what tasks are matched
//     against during placement, and a capacity, which bounds how many routes
//     may pass through it when it is used as a routing hop.
//
//   - Link: a directed connection between two resources. Links carry a
//     capacity (how many channels may share them), an integer length (used
//     for reporting) and a floating point cost (used by routing and by the
//     graph distance metric).
//
//   - Graph: the frozen result of a Builder. Once built, the topology never
//     changes. Occupancy is tracked by the placement and routing state, not
//     here, so a single Graph may back several independent mapping runs.
//
// # Lifecycle
//
//  1. Create a Builder and add resources, meshes and links.
//  2. Call Build, which validates the topology and returns a Graph.
//  3. Ask the Graph for a DistanceTable over the classes that tasks use.
package arch
