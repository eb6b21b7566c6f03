package traci

// Lane queries lane variables
type Lane struct{ c *Client }

func (l Lane) IDList() ([]string, error) {
	return l.c.getStringList(CmdGetLaneVariable, VarIDList, "")
}

func (l Lane) IDCount() (int, error) {
	return l.c.getInt(CmdGetLaneVariable, VarIDCount, "")
}

func (l Lane) LastStepVehicleNumber(laneID string) (int, error) {
	return l.c.getInt(CmdGetLaneVariable, VarLastStepVehicleNumber, laneID)
}

func (l Lane) LastStepHaltingNumber(laneID string) (int, error) {
	return l.c.getInt(CmdGetLaneVariable, VarLastStepHaltingNumber, laneID)
}

// Vehicle queries vehicle variables
type Vehicle struct{ c *Client }

func (v Vehicle) IDList() ([]string, error) {
	return v.c.getStringList(CmdGetVehicleVariable, VarIDList, "")
}

func (v Vehicle) IDCount() (int, error) {
	return v.c.getInt(CmdGetVehicleVariable, VarIDCount, "")
}

func (v Vehicle) Speed(vehicleID string) (float64, error) {
	return v.c.getDouble(CmdGetVehicleVariable, VarSpeed, vehicleID)
}

// TrafficLight reads and writes traffic light programs
type TrafficLight struct{ c *Client }

func (t TrafficLight) IDList() ([]string, error) {
	return t.c.getStringList(CmdGetTLVariable, VarIDList, "")
}

func (t TrafficLight) IDCount() (int, error) {
	return t.c.getInt(CmdGetTLVariable, VarIDCount, "")
}

func (t TrafficLight) Phase(tlsID string) (int, error) {
	return t.c.getInt(CmdGetTLVariable, VarTLCurrentPhase, tlsID)
}

func (t TrafficLight) SetPhase(tlsID string, index int) error {
	return t.c.setInt(CmdSetTLVariable, VarTLPhaseIndex, tlsID, index)
}

// InductionLoop reads induction loop detectors
type InductionLoop struct{ c *Client }

func (i InductionLoop) IDList() ([]string, error) {
	return i.c.getStringList(CmdGetInductionLoopVariable, VarIDList, "")
}

func (i InductionLoop) LastStepVehicleNumber(loopID string) (int, error) {
	return i.c.getInt(CmdGetInductionLoopVariable, VarLastStepVehicleNumber, loopID)
}

// Simulation reads global simulation variables
type Simulation struct{ c *Client }

// MinExpectedNumber is the number of vehicles in the network plus the ones
// still waiting to depart
func (s Simulation) MinExpectedNumber() (int, error) {
	return s.c.getInt(CmdGetSimVariable, VarMinExpectedVehicles, "")
}
