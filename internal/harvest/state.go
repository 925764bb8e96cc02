package harvest

// State is a step of a harvest run.
type State string

const (
	StateIdle                 State = "Idle"
	StateConnecting           State = "Connecting"
	StateRoleSet              State = "RoleSet"
	StateWarehousesListed     State = "WarehousesListed"
	StateWarehouseSet         State = "WarehouseSet"
	StateDatabasesListed      State = "DatabasesListed"
	StateSingleDatabasePinned State = "SingleDatabasePinned"
	StatePerDatabaseFanOut    State = "PerDatabaseFanOut"
	StateAggregating          State = "Aggregating"
	StateDisconnecting        State = "Disconnecting"
	StateDone                 State = "Done"
	StateFailed               State = "Failed"
)

// Terminal reports whether no further transition can follow.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}
