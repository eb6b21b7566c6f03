package traci

// Command identifiers
const (
	CmdGetVersion     byte = 0x00
	CmdSimulationStep byte = 0x02
	CmdSetOrder       byte = 0x03
	CmdClose          byte = 0x7F

	CmdGetInductionLoopVariable byte = 0xa0
	CmdGetTLVariable            byte = 0xa2
	CmdGetLaneVariable          byte = 0xa3
	CmdGetVehicleVariable       byte = 0xa4
	CmdGetSimVariable           byte = 0xab

	CmdSetTLVariable byte = 0xc2
)

// responses to get commands carry the command id shifted by this offset
const ResponseOffset byte = 0x10

// Variable identifiers
const (
	VarIDList                byte = 0x00
	VarIDCount               byte = 0x01
	VarLastStepVehicleNumber byte = 0x10
	VarSpeed                 byte = 0x40
	VarTLCurrentPhase        byte = 0x28
	VarTLPhaseIndex          byte = 0x22
	VarMinExpectedVehicles   byte = 0x7d
	VarLastStepHaltingNumber byte = 0x14
)

// Value type identifiers
const (
	TypeInteger    byte = 0x09
	TypeDouble     byte = 0x0B
	TypeStringList byte = 0x0E
)

// Status results
const (
	ResultOK             byte = 0x00
	ResultNotImplemented byte = 0x01
	ResultError          byte = 0xFF
)
