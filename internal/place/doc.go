// Package place binds tasks to architecture resources by simulated annealing.
//
// The objective is the weighted wire length of every channel: for each sink,
// the distance between the source's site and the sink's site, scaled by the
// channel weight. A run warms up until nearly every move is accepted, then
// cools under the control of four pluggable policies (Warmer, Cooler,
// Limiter and Doner) that see the schedule only through an SAState.
//
// All randomness comes from one PCG generator owned by the run, so a fixed
// seed reproduces the placement exactly and a saved SAState resumes the same
// random sequence.
package place
