// Package tracitest provides an in process TraCI server backed by a
// scripted World, used to exercise clients without a SUMO installation.
package tracitest

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/samber/lo"
	"github.com/zeu5/sumo-rl-test/traci"
)

// Server accepts TraCI connections, each one served by a fresh World
type Server struct {
	listener net.Listener
	ctx      context.Context
	cancel   context.CancelFunc
	newWorld func() *World

	lock   *sync.Mutex
	worlds []*World
	wg     *sync.WaitGroup
}

// NewServer listens on a random local port
func NewServer(newWorld func() *World) (*Server, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		listener: l,
		ctx:      ctx,
		cancel:   cancel,
		newWorld: newWorld,
		lock:     new(sync.Mutex),
		worlds:   make([]*World, 0),
		wg:       new(sync.WaitGroup),
	}
	go s.accept()
	return s, nil
}

func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Port returns the listening port
func (s *Server) Port() int {
	return s.listener.Addr().(*net.TCPAddr).Port
}

// Worlds returns the worlds created so far, in connection order
func (s *Server) Worlds() []*World {
	s.lock.Lock()
	defer s.lock.Unlock()
	out := make([]*World, len(s.worlds))
	copy(out, s.worlds)
	return out
}

// Last returns the world of the most recent connection
func (s *Server) Last() *World {
	worlds := s.Worlds()
	if len(worlds) == 0 {
		return nil
	}
	return worlds[len(worlds)-1]
}

func (s *Server) Close() error {
	s.cancel()
	err := s.listener.Close()
	s.wg.Wait()
	return err
}

func (s *Server) accept() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		w := s.newWorld()
		s.lock.Lock()
		s.worlds = append(s.worlds, w)
		s.lock.Unlock()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.serve(conn, w)
		}()
	}
}

func (s *Server) serve(conn net.Conn, w *World) {
	defer conn.Close()
	go func() {
		<-s.ctx.Done()
		conn.Close()
	}()

	for {
		msg, err := traci.ReadMessage(conn)
		if err != nil {
			return
		}
		resp := &traci.Buffer{}
		closing := false
		for msg.Len() > 0 {
			id, payload, err := msg.ReadCommand()
			if err != nil {
				return
			}
			if id == traci.CmdClose {
				closing = true
			}
			w.handle(resp, id, payload)
		}
		if _, err := conn.Write(resp.Frame()); err != nil {
			return
		}
		if closing {
			return
		}
	}
}

func writeStatus(b *traci.Buffer, cmd, result byte, desc string) {
	p := &traci.Buffer{}
	p.WriteUbyte(result)
	p.WriteString(desc)
	b.WriteCommand(cmd, p.Bytes())
}

func (w *World) handle(resp *traci.Buffer, cmd byte, payload *traci.Storage) {
	w.mu.Lock()
	w.Commands = append(w.Commands, cmd)
	w.mu.Unlock()

	switch cmd {
	case traci.CmdGetVersion:
		writeStatus(resp, cmd, traci.ResultOK, "")
		p := &traci.Buffer{}
		p.WriteInt(21)
		p.WriteString("SUMO tracitest")
		resp.WriteCommand(cmd, p.Bytes())
	case traci.CmdSimulationStep:
		if _, err := payload.ReadDouble(); err != nil {
			writeStatus(resp, cmd, traci.ResultError, err.Error())
			return
		}
		w.step()
		writeStatus(resp, cmd, traci.ResultOK, "")
		resp.WriteInt(0)
	case traci.CmdSetOrder:
		writeStatus(resp, cmd, traci.ResultOK, "")
	case traci.CmdClose:
		w.mu.Lock()
		w.Closed = true
		w.mu.Unlock()
		writeStatus(resp, cmd, traci.ResultOK, "")
	case traci.CmdGetLaneVariable, traci.CmdGetVehicleVariable, traci.CmdGetTLVariable,
		traci.CmdGetInductionLoopVariable, traci.CmdGetSimVariable:
		w.handleGet(resp, cmd, payload)
	case traci.CmdSetTLVariable:
		w.handleSetTL(resp, cmd, payload)
	default:
		writeStatus(resp, cmd, traci.ResultNotImplemented, fmt.Sprintf("command 0x%02x not implemented", cmd))
	}
}

func (w *World) handleGet(resp *traci.Buffer, cmd byte, payload *traci.Storage) {
	varID, err := payload.ReadUbyte()
	if err != nil {
		writeStatus(resp, cmd, traci.ResultError, err.Error())
		return
	}
	objID, err := payload.ReadString()
	if err != nil {
		writeStatus(resp, cmd, traci.ResultError, err.Error())
		return
	}

	w.mu.Lock()
	value, err := w.lookup(cmd, varID, objID)
	w.mu.Unlock()
	if err != nil {
		writeStatus(resp, cmd, traci.ResultError, err.Error())
		return
	}

	writeStatus(resp, cmd, traci.ResultOK, "")
	p := &traci.Buffer{}
	p.WriteUbyte(varID)
	p.WriteString(objID)
	switch v := value.(type) {
	case int:
		p.WriteUbyte(traci.TypeInteger)
		p.WriteInt(int32(v))
	case float64:
		p.WriteUbyte(traci.TypeDouble)
		p.WriteDouble(v)
	case []string:
		p.WriteUbyte(traci.TypeStringList)
		p.WriteStringList(v)
	}
	resp.WriteCommand(cmd+traci.ResponseOffset, p.Bytes())
}

func (w *World) lookup(cmd, varID byte, objID string) (interface{}, error) {
	switch cmd {
	case traci.CmdGetLaneVariable:
		switch varID {
		case traci.VarIDList:
			return lo.Keys(w.Lanes), nil
		case traci.VarIDCount:
			return len(w.Lanes), nil
		case traci.VarLastStepVehicleNumber, traci.VarLastStepHaltingNumber:
			n, ok := w.Lanes[objID]
			if !ok {
				return nil, fmt.Errorf("Lane '%s' is not known", objID)
			}
			return n, nil
		}
	case traci.CmdGetVehicleVariable:
		switch varID {
		case traci.VarIDList:
			return lo.Keys(w.Vehicles), nil
		case traci.VarIDCount:
			return len(w.Vehicles), nil
		case traci.VarSpeed:
			v, ok := w.Vehicles[objID]
			if !ok {
				return nil, fmt.Errorf("Vehicle '%s' is not known", objID)
			}
			return v, nil
		}
	case traci.CmdGetTLVariable:
		switch varID {
		case traci.VarIDList:
			return lo.Keys(w.Phases), nil
		case traci.VarIDCount:
			return len(w.Phases), nil
		case traci.VarTLCurrentPhase:
			p, ok := w.Phases[objID]
			if !ok {
				return nil, fmt.Errorf("Traffic light '%s' is not known", objID)
			}
			return p, nil
		}
	case traci.CmdGetInductionLoopVariable:
		switch varID {
		case traci.VarIDList:
			return lo.Keys(w.Loops), nil
		case traci.VarLastStepVehicleNumber:
			n, ok := w.Loops[objID]
			if !ok {
				return nil, fmt.Errorf("Induction loop '%s' is not known", objID)
			}
			return n, nil
		}
	case traci.CmdGetSimVariable:
		switch varID {
		case traci.VarMinExpectedVehicles:
			return w.Expected, nil
		}
	}
	return nil, fmt.Errorf("variable 0x%02x of domain 0x%02x not supported", varID, cmd)
}

func (w *World) handleSetTL(resp *traci.Buffer, cmd byte, payload *traci.Storage) {
	varID, err := payload.ReadUbyte()
	if err != nil {
		writeStatus(resp, cmd, traci.ResultError, err.Error())
		return
	}
	objID, err := payload.ReadString()
	if err != nil {
		writeStatus(resp, cmd, traci.ResultError, err.Error())
		return
	}
	typeID, err := payload.ReadUbyte()
	if err != nil || typeID != traci.TypeInteger {
		writeStatus(resp, cmd, traci.ResultError, "phase index must be an integer")
		return
	}
	phase, err := payload.ReadInt()
	if err != nil {
		writeStatus(resp, cmd, traci.ResultError, err.Error())
		return
	}
	if varID != traci.VarTLPhaseIndex {
		writeStatus(resp, cmd, traci.ResultError, fmt.Sprintf("variable 0x%02x not supported", varID))
		return
	}

	w.mu.Lock()
	_, ok := w.Phases[objID]
	if ok {
		w.Phases[objID] = int(phase)
		w.PhaseHistory = append(w.PhaseHistory, PhaseSet{Time: w.Time, Light: objID, Phase: int(phase)})
	}
	w.mu.Unlock()
	if !ok {
		writeStatus(resp, cmd, traci.ResultError, fmt.Sprintf("Traffic light '%s' is not known", objID))
		return
	}
	writeStatus(resp, cmd, traci.ResultOK, "")
}
