// Package traci implements the client side of the SUMO TraCI protocol,
// covering the subset of commands needed to drive a traffic light
// controller: clock advance, lane and vehicle queries, traffic light phase
// get/set, induction loops and the remaining vehicle count.
package traci

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

var ErrClosed = errors.New("traci: connection closed")

// StatusError is returned when the simulator answers a command with a non OK status
type StatusError struct {
	Command     byte
	Result      byte
	Description string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("traci: command 0x%02x failed with status 0x%02x: %s", e.Command, e.Result, e.Description)
}

// Client is a single TraCI connection. Each call blocks until the simulator
// replies, calls must not be issued concurrently.
type Client struct {
	conn   net.Conn
	closed bool

	Lane          Lane
	Vehicle       Vehicle
	TrafficLight  TrafficLight
	InductionLoop InductionLoop
	Simulation    Simulation
}

func NewClient(conn net.Conn) *Client {
	c := &Client{conn: conn}
	c.Lane = Lane{c}
	c.Vehicle = Vehicle{c}
	c.TrafficLight = TrafficLight{c}
	c.InductionLoop = InductionLoop{c}
	c.Simulation = Simulation{c}
	return c
}

// Dial connects to a TraCI server listening on addr
func Dial(ctx context.Context, addr string) (*Client, error) {
	d := &net.Dialer{}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	return NewClient(conn), nil
}

// DialRetry keeps dialing while a freshly launched simulator opens its port
func DialRetry(ctx context.Context, addr string, retries int, wait time.Duration) (*Client, error) {
	var lastErr error
	for i := 0; i <= retries; i++ {
		c, err := Dial(ctx, addr)
		if err == nil {
			return c, nil
		}
		lastErr = err
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
	return nil, fmt.Errorf("traci: could not connect to %s after %d attempts: %w", addr, retries+1, lastErr)
}

func (c *Client) send(b *Buffer) error {
	if c.closed {
		return ErrClosed
	}
	_, err := c.conn.Write(b.Frame())
	return err
}

func (c *Client) receive() (*Storage, error) {
	return ReadMessage(c.conn)
}

// do sends a single command and checks the status response, the returned
// storage is positioned right after the status
func (c *Client) do(cmd byte, payload []byte) (*Storage, error) {
	b := &Buffer{}
	b.WriteCommand(cmd, payload)
	if err := c.send(b); err != nil {
		return nil, err
	}
	resp, err := c.receive()
	if err != nil {
		return nil, err
	}
	id, status, err := resp.ReadCommand()
	if err != nil {
		return nil, err
	}
	if id != cmd {
		return nil, fmt.Errorf("traci: status for command 0x%02x, expected 0x%02x", id, cmd)
	}
	result, err := status.ReadUbyte()
	if err != nil {
		return nil, err
	}
	desc, err := status.ReadString()
	if err != nil {
		return nil, err
	}
	if result != ResultOK {
		return nil, &StatusError{Command: cmd, Result: result, Description: desc}
	}
	return resp, nil
}

// GetVersion returns the API version and the identifier of the simulator
func (c *Client) GetVersion() (int, string, error) {
	resp, err := c.do(CmdGetVersion, nil)
	if err != nil {
		return 0, "", err
	}
	_, body, err := resp.ReadCommand()
	if err != nil {
		return 0, "", err
	}
	version, err := body.ReadInt()
	if err != nil {
		return 0, "", err
	}
	ident, err := body.ReadString()
	if err != nil {
		return 0, "", err
	}
	return int(version), ident, nil
}

// SimulationStep advances the simulation. A target time of 0 advances
// exactly one step.
func (c *Client) SimulationStep(targetTime float64) error {
	p := &Buffer{}
	p.WriteDouble(targetTime)
	resp, err := c.do(CmdSimulationStep, p.Bytes())
	if err != nil {
		return err
	}
	// no subscriptions are ever issued, the count is read and discarded
	if resp.Len() >= 4 {
		if _, err := resp.ReadInt(); err != nil {
			return err
		}
	}
	return nil
}

// SetOrder sets the client order for multi client setups
func (c *Client) SetOrder(order int) error {
	p := &Buffer{}
	p.WriteInt(int32(order))
	_, err := c.do(CmdSetOrder, p.Bytes())
	return err
}

// Close asks the simulator to finish and closes the connection
func (c *Client) Close() error {
	if c.closed {
		return nil
	}
	_, err := c.do(CmdClose, nil)
	c.closed = true
	if cerr := c.conn.Close(); err == nil {
		err = cerr
	}
	return err
}

func (c *Client) getVariable(cmd, varID byte, objectID string) (byte, *Storage, error) {
	p := &Buffer{}
	p.WriteUbyte(varID)
	p.WriteString(objectID)
	resp, err := c.do(cmd, p.Bytes())
	if err != nil {
		return 0, nil, err
	}
	id, body, err := resp.ReadCommand()
	if err != nil {
		return 0, nil, err
	}
	if id != cmd+ResponseOffset {
		return 0, nil, fmt.Errorf("traci: response 0x%02x to command 0x%02x", id, cmd)
	}
	v, err := body.ReadUbyte()
	if err != nil {
		return 0, nil, err
	}
	if v != varID {
		return 0, nil, fmt.Errorf("traci: response for variable 0x%02x, expected 0x%02x", v, varID)
	}
	if _, err := body.ReadString(); err != nil {
		return 0, nil, err
	}
	typeID, err := body.ReadUbyte()
	if err != nil {
		return 0, nil, err
	}
	return typeID, body, nil
}

func (c *Client) getInt(cmd, varID byte, objectID string) (int, error) {
	t, body, err := c.getVariable(cmd, varID, objectID)
	if err != nil {
		return 0, err
	}
	if t != TypeInteger {
		return 0, fmt.Errorf("traci: expected integer, got type 0x%02x", t)
	}
	v, err := body.ReadInt()
	return int(v), err
}

func (c *Client) getDouble(cmd, varID byte, objectID string) (float64, error) {
	t, body, err := c.getVariable(cmd, varID, objectID)
	if err != nil {
		return 0, err
	}
	if t != TypeDouble {
		return 0, fmt.Errorf("traci: expected double, got type 0x%02x", t)
	}
	return body.ReadDouble()
}

func (c *Client) getStringList(cmd, varID byte, objectID string) ([]string, error) {
	t, body, err := c.getVariable(cmd, varID, objectID)
	if err != nil {
		return nil, err
	}
	if t != TypeStringList {
		return nil, fmt.Errorf("traci: expected string list, got type 0x%02x", t)
	}
	return body.ReadStringList()
}

func (c *Client) setInt(cmd, varID byte, objectID string, value int) error {
	p := &Buffer{}
	p.WriteUbyte(varID)
	p.WriteString(objectID)
	p.WriteUbyte(TypeInteger)
	p.WriteInt(int32(value))
	_, err := c.do(cmd, p.Bytes())
	return err
}
