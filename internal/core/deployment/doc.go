// Package deployment is the functional core of the N-slot rolling deployment.
//
// It owns the persisted State, slot resolution over a fixed port Pool, the
// commit transitions that promote a slot to live, request validation and the
// error taxonomy shared by the shell. All functions are pure: they take values
// and return values, and never touch the filesystem, Docker or the network.
//
// # Functions
//
//   - State: DefaultState, Encode, Decode, (*State).Clone, (*State).CheckPool
//   - Slots: ResolveSlots, ResolveRollbackTarget, DescribeSlots
//   - Transitions: CommitDeploy, CommitRollback
//   - Requests: ParsePool, ParseAction, DeployRequest.Validate, RollbackRequest.Validate
//   - Naming: ProjectHandle, NetworkName, ContainerName, VolumeName, HealthURL
//   - Containers: BuildContainerPlan, StartOrder, StopOrder
//   - Phases: ValidatePhaseTransition, Operation
//
// # Usage
//
// The orchestrator in internal/shell/orchestrator loads a State, resolves the
// target slot here, drives the service controller and health probe, and asks
// this package for the committed State to persist.
//
//	deployPort, livePort := deployment.ResolveSlots(state, pool)
//	next, err := deployment.CommitDeploy(state, pool, deployPort, version)
package deployment
