// Package dynamo provides core primitives shared by the contact simulation:
//
//   - [Transform]: rigid transform (translation + rotation) on mgl64 types
//   - rotation helpers used by the solver ([QuatFromVector], [IntegrateRotation])
//   - inertia helpers ([CrossMatrix], [WorldInvInertia])
//   - [ParallelFor] for chunked data-parallel loops
//   - sentinel errors for programmer and configuration faults
//
// # Thread Safety
//
// All functions in this package are pure except [ParallelFor], which joins
// every worker before returning.
package dynamo
